package order

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"traderelay/internal/venue"
)

// CreateRequest 为经路由层校验后的订单创建参数。
type CreateRequest struct {
	Owner         string
	Platform      venue.Platform
	Action        Action
	Amount        float64
	Asset         string
	TargetPrice   float64
	WalletRef     string
	NotifyChannel string
}

// Store 为进程生命周期内的限价单注册表，按所有者分区查询。
// 所有读写都在互斥锁内完成；巡检循环与指令路由共享同一实例。
type Store struct {
	mu      sync.Mutex
	node    *snowflake.Node
	byID    map[int64]*LimitOrder
	byOwner map[string][]*LimitOrder
}

// NewStore 创建空注册表。雪花节点保证 ID 全局唯一且严格递增。
func NewStore(nodeID int64) (*Store, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("初始化雪花节点失败: %w", err)
	}
	return &Store{
		node:    node,
		byID:    make(map[int64]*LimitOrder),
		byOwner: make(map[string][]*LimitOrder),
	}, nil
}

// Create 校验并登记一条新限价单，初始状态为 active。
func (s *Store) Create(req CreateRequest) (LimitOrder, error) {
	if strings.TrimSpace(req.Owner) == "" {
		return LimitOrder{}, fmt.Errorf("%w: owner 不能为空", ErrValidation)
	}
	if _, ok := venue.ParsePlatform(string(req.Platform)); !ok {
		return LimitOrder{}, fmt.Errorf("%w: 未知场所 %q", ErrValidation, req.Platform)
	}
	if req.Action != ActionBuy && req.Action != ActionSell {
		return LimitOrder{}, fmt.Errorf("%w: action 必须为 buy 或 sell", ErrValidation)
	}
	if req.Amount <= 0 {
		return LimitOrder{}, fmt.Errorf("%w: amount 必须大于0", ErrValidation)
	}
	if strings.TrimSpace(req.Asset) == "" {
		return LimitOrder{}, fmt.Errorf("%w: asset 不能为空", ErrValidation)
	}
	if req.TargetPrice <= 0 {
		return LimitOrder{}, fmt.Errorf("%w: target_price 必须大于0", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ord := &LimitOrder{
		ID:            s.node.Generate().Int64(),
		Owner:         req.Owner,
		Platform:      req.Platform,
		Action:        req.Action,
		Amount:        req.Amount,
		Asset:         strings.TrimSpace(req.Asset),
		TargetPrice:   req.TargetPrice,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
		WalletRef:     req.WalletRef,
		NotifyChannel: req.NotifyChannel,
	}

	s.byID[ord.ID] = ord
	s.byOwner[ord.Owner] = append(s.byOwner[ord.Owner], ord)

	return *ord, nil
}

// ListByOwner 按插入顺序返回所有者的全部订单副本；无订单时返回空切片。
func (s *Store) ListByOwner(owner string) []LimitOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.byOwner[owner]
	out := make([]LimitOrder, 0, len(orders))
	for _, ord := range orders {
		out = append(out, *ord)
	}
	return out
}

// Get 返回所有者名下指定订单的副本。
func (s *Store) Get(owner string, id int64) (LimitOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, err := s.find(owner, id)
	if err != nil {
		return LimitOrder{}, err
	}
	return *ord, nil
}

// Cancel 将 active 订单置为 cancelled。
// 对终态订单重复取消始终失败，不会静默成功。
func (s *Store) Cancel(owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, err := s.find(owner, id)
	if err != nil {
		return err
	}
	if ord.Status != StatusActive {
		return fmt.Errorf("%w: 订单 %d 当前状态为 %s", ErrInvalidState, id, ord.Status)
	}

	ord.Status = StatusCancelled
	return nil
}

// MarkExecuted 仅供巡检循环调用：置为 executed 并记录成交信息。
// 订单不再 active 时失败，以抵御重叠评估导致的二次执行。
func (s *Store) MarkExecuted(owner string, id int64, executedPrice float64) (LimitOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, err := s.find(owner, id)
	if err != nil {
		return LimitOrder{}, err
	}
	if ord.Status != StatusActive {
		return LimitOrder{}, fmt.Errorf("%w: 订单 %d 当前状态为 %s", ErrInvalidState, id, ord.Status)
	}

	ord.Status = StatusExecuted
	ord.ExecutedAt = time.Now().UTC()
	ord.ExecutedPrice = executedPrice
	ord.ExecAttempts = 0

	return *ord, nil
}

// RecordExecFailure 累加订单的连续执行失败次数并返回累计值。
// 订单已脱离 active 状态时不再累计。
func (s *Store) RecordExecFailure(owner string, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, err := s.find(owner, id)
	if err != nil {
		return 0, err
	}
	if ord.Status != StatusActive {
		return ord.ExecAttempts, fmt.Errorf("%w: 订单 %d 当前状态为 %s", ErrInvalidState, id, ord.Status)
	}

	ord.ExecAttempts++
	return ord.ExecAttempts, nil
}

// ActiveSnapshot 返回全部 active 订单的副本，供巡检循环遍历。
// 快照释放锁后迭代，不会阻塞新的订单创建。
func (s *Store) ActiveSnapshot() []LimitOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LimitOrder, 0, len(s.byID))
	for _, orders := range s.byOwner {
		for _, ord := range orders {
			if ord.Status == StatusActive {
				out = append(out, *ord)
			}
		}
	}
	return out
}

func (s *Store) find(owner string, id int64) (*LimitOrder, error) {
	ord, ok := s.byID[id]
	if !ok || ord.Owner != owner {
		return nil, fmt.Errorf("%w: 订单 %d", ErrNotFound, id)
	}
	return ord, nil
}
