// Package monitor 实现限价单巡检循环：周期性扫描 active 订单，
// 解析参考价并在越过触发阈值时转入执行。
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"traderelay/internal/notify"
	"traderelay/internal/order"
	"traderelay/internal/venue"
)

// Recorder 为订单流水的落库契约，由 journal.Journal 实现。
type Recorder interface {
	RecordTriggered(ctx context.Context, ord order.LimitOrder, observed float64)
	RecordExecuted(ctx context.Context, ord order.LimitOrder, reference string)
	RecordExecFailed(ctx context.Context, ord order.LimitOrder, execErr error, attempts int)
}

type nopRecorder struct{}

func (nopRecorder) RecordTriggered(context.Context, order.LimitOrder, float64) {}

func (nopRecorder) RecordExecuted(context.Context, order.LimitOrder, string) {}

func (nopRecorder) RecordExecFailed(context.Context, order.LimitOrder, error, int) {}

// Options 控制巡检行为。
type Options struct {
	// MaxExecAttempts 为连续执行失败多少次后通知所有者一次。
	MaxExecAttempts int
	// PriceWorkers 为单周期内并发拉取参考价的上限。
	PriceWorkers int
}

// Monitor 驱动单个巡检周期。周期之间严格串行，由调用方的
// 单协程定时循环保证，同一订单不会被重叠评估。
type Monitor struct {
	store    *order.Store
	venues   *venue.Registry
	recorder Recorder
	notifier notify.Notifier
	logger   *zap.Logger
	opts     Options
}

// New 创建巡检器。
func New(store *order.Store, venues *venue.Registry, recorder Recorder, notifier notify.Notifier, opts Options, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if opts.MaxExecAttempts <= 0 {
		opts.MaxExecAttempts = 5
	}
	if opts.PriceWorkers <= 0 {
		opts.PriceWorkers = 4
	}
	return &Monitor{
		store:    store,
		venues:   venues,
		recorder: recorder,
		notifier: notifier,
		logger:   logger.Named("monitor"),
		opts:     opts,
	}
}

// CycleStats 汇总一个周期的处理结果，用于日志与测试断言。
type CycleStats struct {
	Scanned  int
	Skipped  int
	Executed int
	Failed   int
}

type priceKey struct {
	platform venue.Platform
	asset    string
}

// RunCycle 执行一个完整巡检周期。
// 单个订单的报价或执行失败只影响该订单本身，循环继续推进。
func (m *Monitor) RunCycle(ctx context.Context) CycleStats {
	snapshot := m.store.ActiveSnapshot()
	stats := CycleStats{Scanned: len(snapshot)}
	if len(snapshot) == 0 {
		return stats
	}

	prices := m.fetchPrices(ctx, snapshot)

	for _, ord := range snapshot {
		if ctx.Err() != nil {
			return stats
		}

		price, ok := prices[priceKey{platform: ord.Platform, asset: ord.Asset}]
		if !ok {
			// 报价暂不可得属于稳态情况，留待下个周期。
			stats.Skipped++
			continue
		}

		if !ord.Triggered(price) {
			continue
		}

		switch m.executeOrder(ctx, ord, price) {
		case outcomeExecuted:
			stats.Executed++
		case outcomeFailed:
			stats.Failed++
		case outcomeSkipped:
			stats.Skipped++
		}
	}

	return stats
}

// fetchPrices 并发解析快照中出现的全部 (场所, 资产) 组合的参考价。
func (m *Monitor) fetchPrices(ctx context.Context, snapshot []order.LimitOrder) map[priceKey]float64 {
	keys := make([]priceKey, 0, len(snapshot))
	seen := make(map[priceKey]struct{}, len(snapshot))
	for _, ord := range snapshot {
		key := priceKey{platform: ord.Platform, asset: ord.Asset}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	var mu sync.Mutex
	prices := make(map[priceKey]float64, len(keys))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(m.opts.PriceWorkers)

	for _, key := range keys {
		key := key
		group.Go(func() error {
			adapter, ok := m.venues.Lookup(key.platform)
			if !ok {
				m.logger.Warn("场所未注册，跳过报价",
					zap.String("platform", string(key.platform)),
					zap.String("asset", key.asset),
				)
				return nil
			}

			quote, err := adapter.Price(groupCtx, key.asset)
			if err != nil {
				if errors.Is(err, venue.ErrNoQuote) {
					m.logger.Debug("资产暂无报价",
						zap.String("platform", string(key.platform)),
						zap.String("asset", key.asset),
					)
				} else {
					m.logger.Warn("拉取参考价失败",
						zap.String("platform", string(key.platform)),
						zap.String("asset", key.asset),
						zap.Error(err),
					)
				}
				return nil
			}

			mu.Lock()
			prices[key] = quote.Price
			mu.Unlock()
			return nil
		})
	}

	// 协程内不返回错误，Wait 仅用于同步。
	_ = group.Wait()
	return prices
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeExecuted
	outcomeFailed
)

func (m *Monitor) executeOrder(ctx context.Context, ord order.LimitOrder, observed float64) outcome {
	// 提交前复查状态：快照之后被取消的订单绝不能执行。
	current, err := m.store.Get(ord.Owner, ord.ID)
	if err != nil || current.Status != order.StatusActive {
		m.logger.Debug("订单在评估期间已脱离 active，跳过执行", zap.Int64("order_id", ord.ID))
		return outcomeSkipped
	}

	m.recorder.RecordTriggered(ctx, ord, observed)
	m.logger.Info("限价单触发",
		zap.Int64("order_id", ord.ID),
		zap.String("platform", string(ord.Platform)),
		zap.String("asset", ord.Asset),
		zap.String("action", string(ord.Action)),
		zap.Float64("target_price", ord.TargetPrice),
		zap.Float64("observed_price", observed),
	)

	adapter, ok := m.venues.Lookup(ord.Platform)
	if !ok {
		m.logger.Warn("场所未注册，无法执行", zap.Int64("order_id", ord.ID))
		return outcomeSkipped
	}

	fill, execErr := adapter.Execute(ctx, venue.TradeRequest{
		Side:      venue.Side(ord.Action),
		Amount:    ord.Amount,
		Asset:     ord.Asset,
		WalletRef: ord.WalletRef,
	})
	if execErr != nil {
		return m.handleExecFailure(ctx, ord, execErr)
	}

	// 成交价以场所回执为准；触发与提交之间行情可能已经移动。
	executedPrice := fill.Price
	if executedPrice <= 0 {
		executedPrice = observed
	}

	executed, markErr := m.store.MarkExecuted(ord.Owner, ord.ID, executedPrice)
	if markErr != nil {
		// 执行期间并发取消胜出：交易已不可撤回地提交，
		// 注册表保留后提交的取消状态，这里只能告警留痕。
		m.logger.Warn("成交登记失败，订单状态已被并发修改",
			zap.Int64("order_id", ord.ID),
			zap.String("reference", fill.Reference),
			zap.Error(markErr),
		)
		return outcomeSkipped
	}

	m.recorder.RecordExecuted(ctx, executed, fill.Reference)
	m.notifier.Notify(ctx, executed.NotifyChannel, fmt.Sprintf(
		"限价单 #%d 已成交：%s %.6f %s @ %.6f（%s）",
		executed.ID, executed.Action, executed.Amount, executed.Asset,
		executed.ExecutedPrice, executed.Platform,
	))

	m.logger.Info("限价单已成交",
		zap.Int64("order_id", ord.ID),
		zap.Float64("executed_price", executedPrice),
		zap.String("reference", fill.Reference),
	)
	return outcomeExecuted
}

// handleExecFailure 处理执行失败：订单保持 active 以便下个周期重试；
// 连续失败达到阈值时通知所有者一次，避免无声空转。
func (m *Monitor) handleExecFailure(ctx context.Context, ord order.LimitOrder, execErr error) outcome {
	attempts, recordErr := m.store.RecordExecFailure(ord.Owner, ord.ID)
	if recordErr != nil {
		m.logger.Debug("订单已脱离 active，不再累计失败次数", zap.Int64("order_id", ord.ID))
		return outcomeSkipped
	}

	m.recorder.RecordExecFailed(ctx, ord, execErr, attempts)
	m.logger.Warn("限价单执行失败，下个周期重试",
		zap.Int64("order_id", ord.ID),
		zap.String("platform", string(ord.Platform)),
		zap.Int("attempts", attempts),
		zap.Error(execErr),
	)

	if attempts == m.opts.MaxExecAttempts {
		m.notifier.Notify(ctx, ord.NotifyChannel, fmt.Sprintf(
			"限价单 #%d 已连续 %d 次执行失败，将继续重试；如需终止请取消该订单。",
			ord.ID, attempts,
		))
	}

	return outcomeFailed
}
