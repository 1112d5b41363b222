// Package command 实现聊天指令面：createLimitOrder / listOrders /
// cancelOrder 与订单注册表一一对应，消息协议本身不在此层关心。
package command

import (
	"errors"
	"fmt"
	"strings"

	"traderelay/internal/order"
	"traderelay/internal/venue"
)

// Kind 表示指令类别。
type Kind string

const (
	KindCreate Kind = "create"
	KindList   Kind = "list"
	KindCancel Kind = "cancel"
)

// ErrUnrecognized 表示文本无法解析为任何已知指令。
var ErrUnrecognized = errors.New("command: unrecognized")

// CreateParams 为创建限价单的表示层参数。
type CreateParams struct {
	Platform    venue.Platform
	Action      order.Action
	Amount      float64
	Asset       string
	TargetPrice float64
}

// Command 为解析后的结构化指令。
type Command struct {
	Kind     Kind
	Create   *CreateParams
	CancelID int64
}

// Validate 在进入注册表之前完成表示层范围校验。
func (c Command) Validate() error {
	switch c.Kind {
	case KindList:
		return nil
	case KindCancel:
		if c.CancelID <= 0 {
			return errors.New("cancel 指令缺少合法的订单ID")
		}
		return nil
	case KindCreate:
		if c.Create == nil {
			return errors.New("create 指令缺少参数")
		}
		if _, ok := venue.ParsePlatform(string(c.Create.Platform)); !ok {
			return fmt.Errorf("未知场所: %q", c.Create.Platform)
		}
		if c.Create.Action != order.ActionBuy && c.Create.Action != order.ActionSell {
			return fmt.Errorf("action 必须为 buy 或 sell: %q", c.Create.Action)
		}
		if c.Create.Amount <= 0 {
			return errors.New("amount 必须大于0")
		}
		if strings.TrimSpace(c.Create.Asset) == "" {
			return errors.New("asset 不能为空")
		}
		if c.Create.TargetPrice <= 0 {
			return errors.New("target_price 必须大于0")
		}
		return nil
	default:
		return fmt.Errorf("未知指令类别: %q", c.Kind)
	}
}
