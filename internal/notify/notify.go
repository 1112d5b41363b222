// Package notify 负责把订单终态结果投递给用户。
// 投递为尽力而为：任何失败只记录日志，绝不影响调用方操作。
package notify

import "context"

// Notifier 为结果投递的统一契约。channel 为不透明的会话句柄。
type Notifier interface {
	Notify(ctx context.Context, channel, text string)
}

// Nop 丢弃所有通知，用于测试或未配置推送渠道的场景。
type Nop struct{}

// Notify 实现 Notifier。
func (Nop) Notify(context.Context, string, string) {}

var _ Notifier = Nop{}
