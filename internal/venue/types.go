package venue

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Platform 标识一个外部交易场所。
type Platform string

const (
	// PlatformJupiter 为现货兑换聚合器。
	PlatformJupiter Platform = "jupiter"
	// PlatformHyperliquid 为永续合约交易所。
	PlatformHyperliquid Platform = "hyperliquid"
	// PlatformPolymarket 为预测市场。
	PlatformPolymarket Platform = "polymarket"
)

// ParsePlatform 解析场所标识字符串。
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformJupiter:
		return PlatformJupiter, true
	case PlatformHyperliquid:
		return PlatformHyperliquid, true
	case PlatformPolymarket:
		return PlatformPolymarket, true
	default:
		return "", false
	}
}

var (
	// ErrNoQuote 表示该资产当前无法报价，属于稳态情况而非故障。
	ErrNoQuote = errors.New("venue: no quote available")
	// ErrUnavailable 表示场所暂时不可用，下个巡检周期可重试。
	ErrUnavailable = errors.New("venue: temporarily unavailable")
)

// Side 表示委托方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Quote 为一次参考价查询结果。
type Quote struct {
	Asset       string
	Price       float64
	RetrievedAt time.Time
}

// TradeRequest 描述一笔待提交的市价交易。
// WalletRef 为外部托管钱包的不透明句柄，场所适配器原样透传。
type TradeRequest struct {
	Side      Side
	Amount    float64
	Asset     string
	WalletRef string
}

// Fill 为场所返回的成交回执。
type Fill struct {
	Price     float64
	Reference string
	Timestamp time.Time
}

// Adapter 为三个场所统一的对外契约。
type Adapter interface {
	Platform() Platform
	// Price 查询资产当前参考价；资产不可报价时返回 ErrNoQuote。
	Price(ctx context.Context, asset string) (Quote, error)
	// Execute 以市价提交交易并返回成交回执。
	Execute(ctx context.Context, req TradeRequest) (Fill, error)
}

// Registry 以封闭的变体集合管理场所适配器，避免调用点散落分支。
type Registry struct {
	adapters map[Platform]Adapter
}

// NewRegistry 注册给定适配器。
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[Platform]Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			continue
		}
		m[a.Platform()] = a
	}
	return &Registry{adapters: m}
}

// Lookup 按场所查找适配器。
func (r *Registry) Lookup(p Platform) (Adapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}

// Platforms 返回已注册的场所列表。
func (r *Registry) Platforms() []Platform {
	out := make([]Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}
