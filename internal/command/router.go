package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"traderelay/internal/notify"
	"traderelay/internal/order"
)

// Journal 为路由层需要的流水落库契约。
type Journal interface {
	RecordCreated(ctx context.Context, ord order.LimitOrder)
	RecordCancelled(ctx context.Context, owner string, orderID int64)
}

type nopJournal struct{}

func (nopJournal) RecordCreated(context.Context, order.LimitOrder) {}

func (nopJournal) RecordCancelled(context.Context, string, int64) {}

// Router 把校验后的指令映射到订单注册表的四个操作。
// 注册表之外的能力（渲染、推送）都在这一层终结。
type Router struct {
	store    *order.Store
	journal  Journal
	notifier notify.Notifier
	interp   *Interpreter
	logger   *zap.Logger
}

// NewRouter 创建指令路由。interp 可为 nil，表示只接受结构化文法。
func NewRouter(store *order.Store, journal Journal, notifier notify.Notifier, interp *Interpreter, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = nopJournal{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Router{
		store:    store,
		journal:  journal,
		notifier: notifier,
		interp:   interp,
		logger:   logger.Named("command"),
	}
}

// CreateLimitOrder 登记一条新限价单。
func (r *Router) CreateLimitOrder(ctx context.Context, req order.CreateRequest) (order.LimitOrder, error) {
	ord, err := r.store.Create(req)
	if err != nil {
		return order.LimitOrder{}, err
	}

	r.journal.RecordCreated(ctx, ord)
	r.logger.Info("限价单已创建",
		zap.Int64("order_id", ord.ID),
		zap.String("owner", ord.Owner),
		zap.String("platform", string(ord.Platform)),
		zap.String("action", string(ord.Action)),
		zap.String("asset", ord.Asset),
		zap.Float64("target_price", ord.TargetPrice),
	)
	return ord, nil
}

// ListOrders 返回所有者的全部订单（含历史终态订单）。
func (r *Router) ListOrders(owner string) []order.LimitOrder {
	return r.store.ListByOwner(owner)
}

// CancelOrder 取消所有者名下的 active 订单并推送确认。
func (r *Router) CancelOrder(ctx context.Context, owner string, id int64) error {
	ord, err := r.store.Get(owner, id)
	if err != nil {
		return err
	}
	if err := r.store.Cancel(owner, id); err != nil {
		return err
	}

	r.journal.RecordCancelled(ctx, owner, id)
	r.notifier.Notify(ctx, ord.NotifyChannel, fmt.Sprintf("限价单 #%d 已取消。", id))
	r.logger.Info("限价单已取消", zap.Int64("order_id", id), zap.String("owner", owner))
	return nil
}

// Handle 处理一条原始聊天文本：结构化文法优先，失败时交由
// 自然语言解析兜底，最终分发到对应操作并返回回执文本。
func (r *Router) Handle(ctx context.Context, owner, walletRef, channel, text string) (string, error) {
	cmd, err := Parse(text)
	if err != nil {
		if r.interp == nil || !errors.Is(err, ErrUnrecognized) {
			return "", err
		}
		cmd, err = r.interp.Interpret(ctx, text)
		if err != nil {
			return "", err
		}
	}

	if err := cmd.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", order.ErrValidation, err)
	}

	switch cmd.Kind {
	case KindCreate:
		ord, err := r.CreateLimitOrder(ctx, order.CreateRequest{
			Owner:         owner,
			Platform:      cmd.Create.Platform,
			Action:        cmd.Create.Action,
			Amount:        cmd.Create.Amount,
			Asset:         cmd.Create.Asset,
			TargetPrice:   cmd.Create.TargetPrice,
			WalletRef:     walletRef,
			NotifyChannel: channel,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("限价单 #%d 已登记：%s %.6f %s @ %.6f（%s）",
			ord.ID, ord.Action, ord.Amount, ord.Asset, ord.TargetPrice, ord.Platform), nil

	case KindList:
		return renderOrders(r.ListOrders(owner)), nil

	case KindCancel:
		if err := r.CancelOrder(ctx, owner, cmd.CancelID); err != nil {
			return "", err
		}
		return fmt.Sprintf("限价单 #%d 已取消。", cmd.CancelID), nil

	default:
		return "", ErrUnrecognized
	}
}

func renderOrders(orders []order.LimitOrder) string {
	if len(orders) == 0 {
		return "当前没有任何限价单。"
	}

	var b strings.Builder
	for _, ord := range orders {
		fmt.Fprintf(&b, "#%d [%s] %s %.6f %s @ %.6f（%s）",
			ord.ID, ord.Status, ord.Action, ord.Amount, ord.Asset, ord.TargetPrice, ord.Platform)
		if ord.Status == order.StatusExecuted {
			fmt.Fprintf(&b, " 成交价 %.6f", ord.ExecutedPrice)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
