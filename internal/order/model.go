package order

import (
	"strings"
	"time"

	"traderelay/internal/venue"
)

// Action 表示下单方向。
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// ParseAction 解析下单方向字符串。
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	default:
		return "", false
	}
}

// Status 表示限价单的生命周期状态。
// active 为唯一的非终态，executed 与 cancelled 均为终态。
type Status string

const (
	StatusActive    Status = "active"
	StatusExecuted  Status = "executed"
	StatusCancelled Status = "cancelled"
)

// LimitOrder 表示一条条件触发的交易指令。
// ID 单调递增且不可变；除状态及成交字段外，其余字段创建后不再修改。
type LimitOrder struct {
	ID            int64          `json:"id"`
	Owner         string         `json:"owner"`
	Platform      venue.Platform `json:"platform"`
	Action        Action         `json:"action"`
	Amount        float64        `json:"amount"`
	Asset         string         `json:"asset"`
	TargetPrice   float64        `json:"target_price"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ExecutedAt    time.Time      `json:"executed_at,omitempty"`
	ExecutedPrice float64        `json:"executed_price,omitempty"`
	WalletRef     string         `json:"wallet_ref"`
	NotifyChannel string         `json:"notify_channel"`

	// ExecAttempts 记录巡检循环连续执行失败的次数，用于限次告警。
	ExecAttempts int `json:"exec_attempts,omitempty"`
}

// Triggered 判断给定观察价是否越过触发阈值。
// 买单在价格跌破目标价时触发，卖单在价格突破目标价时触发。
func (o LimitOrder) Triggered(price float64) bool {
	switch o.Action {
	case ActionBuy:
		return price <= o.TargetPrice
	case ActionSell:
		return price >= o.TargetPrice
	default:
		return false
	}
}
