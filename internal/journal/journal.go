package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"traderelay/internal/config"
	"traderelay/internal/order"
)

// EventType 表示流水事件类型。
type EventType string

const (
	EventCreated    EventType = "order_created"
	EventTriggered  EventType = "order_triggered"
	EventExecuted   EventType = "order_executed"
	EventExecFailed EventType = "order_exec_failed"
	EventCancelled  EventType = "order_cancelled"
)

// Event 封装一条订单流水。
type Event struct {
	Type      EventType   `json:"type"`
	OrderID   int64       `json:"order_id"`
	Owner     string      `json:"owner"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TriggerPayload 记录触发时刻的观察价。
type TriggerPayload struct {
	Platform      string  `json:"platform"`
	Asset         string  `json:"asset"`
	Action        string  `json:"action"`
	TargetPrice   float64 `json:"target_price"`
	ObservedPrice float64 `json:"observed_price"`
}

// ExecutionPayload 记录成交信息。
type ExecutionPayload struct {
	Platform      string  `json:"platform"`
	Asset         string  `json:"asset"`
	Action        string  `json:"action"`
	Amount        float64 `json:"amount"`
	ExecutedPrice float64 `json:"executed_price"`
	Reference     string  `json:"reference"`
}

// FailurePayload 记录一次执行失败。
type FailurePayload struct {
	Platform string `json:"platform"`
	Asset    string `json:"asset"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

// Journal 将订单生命周期事件持久化到 SQLite。
// 订单注册表本身驻留内存，流水仅用于历史追溯。
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open 打开流水数据库并初始化表结构。
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 数据库失败: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite WAL 模式失败: %w", err)
	}
	if _, err := conn.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite 同步级别失败: %w", err)
	}

	j := &Journal{db: conn, logger: logger}
	if err := j.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return j, nil
}

func (j *Journal) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS order_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	order_id INTEGER NOT NULL,
	owner TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_events_type ON order_events(event_type);
CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id);
`
	if _, err := j.db.Exec(stmt); err != nil {
		return fmt.Errorf("journal: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单条流水。
func (j *Journal) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("journal: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO order_events (event_type, order_id, owner, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(event.Type), event.OrderID, event.Owner, string(payload),
		event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: 写入事件失败: %w", err)
	}

	return nil
}

// RecordCreated 记录订单创建。
func (j *Journal) RecordCreated(ctx context.Context, ord order.LimitOrder) {
	j.record(ctx, Event{
		Type:    EventCreated,
		OrderID: ord.ID,
		Owner:   ord.Owner,
		Payload: ord,
	})
}

// RecordTriggered 记录触发事件。
func (j *Journal) RecordTriggered(ctx context.Context, ord order.LimitOrder, observed float64) {
	j.record(ctx, Event{
		Type:    EventTriggered,
		OrderID: ord.ID,
		Owner:   ord.Owner,
		Payload: TriggerPayload{
			Platform:      string(ord.Platform),
			Asset:         ord.Asset,
			Action:        string(ord.Action),
			TargetPrice:   ord.TargetPrice,
			ObservedPrice: observed,
		},
	})
}

// RecordExecuted 记录成交事件。
func (j *Journal) RecordExecuted(ctx context.Context, ord order.LimitOrder, reference string) {
	j.record(ctx, Event{
		Type:    EventExecuted,
		OrderID: ord.ID,
		Owner:   ord.Owner,
		Payload: ExecutionPayload{
			Platform:      string(ord.Platform),
			Asset:         ord.Asset,
			Action:        string(ord.Action),
			Amount:        ord.Amount,
			ExecutedPrice: ord.ExecutedPrice,
			Reference:     reference,
		},
	})
}

// RecordExecFailed 记录执行失败事件。
func (j *Journal) RecordExecFailed(ctx context.Context, ord order.LimitOrder, execErr error, attempts int) {
	j.record(ctx, Event{
		Type:    EventExecFailed,
		OrderID: ord.ID,
		Owner:   ord.Owner,
		Payload: FailurePayload{
			Platform: string(ord.Platform),
			Asset:    ord.Asset,
			Error:    execErr.Error(),
			Attempts: attempts,
		},
	})
}

// RecordCancelled 记录取消事件。
func (j *Journal) RecordCancelled(ctx context.Context, owner string, orderID int64) {
	j.record(ctx, Event{
		Type:    EventCancelled,
		OrderID: orderID,
		Owner:   owner,
	})
}

// record 为尽力而为写入：失败只告警，不影响调用方。
func (j *Journal) record(ctx context.Context, event Event) {
	if err := j.Record(ctx, event); err != nil {
		j.logger.Warn("记录订单流水失败",
			zap.String("event_type", string(event.Type)),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// ListEvents 按类型检索最近流水。
func (j *Journal) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, order_id, owner, payload, created_at FROM order_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			orderID int64
			owner   string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &orderID, &owner, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("journal: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			OrderID:   orderID,
			Owner:     owner,
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 读取事件失败: %w", err)
	}

	return events, nil
}

// Close 关闭数据库连接。
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("创建目录 %q 失败: %w", path, err)
	}
	return nil
}
