package venue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"traderelay/internal/config"
)

// Hyperliquid 通过 ccxt 客户端接入永续合约交易所。
// 交易以代理钱包签名，用户托管钱包地址通过 vaultAddress 参数透传。
type Hyperliquid struct {
	exchange *ccxt.Hyperliquid
	retry    retrier
	timeout  time.Duration
	logger   *zap.Logger

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewHyperliquid 构造永续合约适配器。
func NewHyperliquid(cfg config.HyperliquidConfig, venues config.VenuesConfig, logger *zap.Logger) *Hyperliquid {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewHyperliquid(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	timeout := venues.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Hyperliquid{
		exchange: ex,
		retry:    newRetrier(venues.Retry, logger.Named("hyperliquid")),
		timeout:  timeout,
		logger:   logger.Named("hyperliquid"),
	}
}

// Platform 实现 Adapter。
func (h *Hyperliquid) Platform() Platform {
	return PlatformHyperliquid
}

// Price 取盘口中间价作为参考价。
func (h *Hyperliquid) Price(ctx context.Context, asset string) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	symbol := h.symbol(asset)

	var book ccxt.OrderBook
	err := h.retry.do(ctx, "hyperliquid_order_book", func() error {
		if err := h.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := h.exchange.FetchOrderBook(symbol, ccxt.WithFetchOrderBookLimit(5))
		if err != nil {
			return err
		}
		book = result
		return nil
	})
	if err != nil {
		return Quote{}, err
	}

	price := midPrice(book)
	if price <= 0 {
		return Quote{}, fmt.Errorf("%w: 合约 %s", ErrNoQuote, symbol)
	}

	return Quote{Asset: asset, Price: price, RetrievedAt: time.Now().UTC()}, nil
}

// Execute 以市价单提交交易。
func (h *Hyperliquid) Execute(ctx context.Context, req TradeRequest) (Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	symbol := h.symbol(req.Asset)
	params := map[string]interface{}{}
	if req.WalletRef != "" {
		params["vaultAddress"] = req.WalletRef
	}

	var placed ccxt.Order
	err := h.retry.do(ctx, "hyperliquid_market_order", func() error {
		if err := h.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := h.exchange.CreateMarketOrder(symbol, string(req.Side), req.Amount,
			ccxt.WithCreateMarketOrderParams(params))
		if err != nil {
			return err
		}
		placed = result
		return nil
	})
	if err != nil {
		return Fill{}, err
	}

	fill := Fill{
		Price:     firstFloat(placed.Average, placed.Price),
		Reference: derefString(placed.Id),
		Timestamp: time.Now().UTC(),
	}

	h.logger.Info("合约市价单已提交",
		zap.String("symbol", symbol),
		zap.String("side", string(req.Side)),
		zap.Float64("amount", req.Amount),
		zap.Float64("avg_price", fill.Price),
		zap.String("order_id", fill.Reference),
	)

	return fill, nil
}

func (h *Hyperliquid) ensureMarketsLoaded(ctx context.Context) error {
	if h.marketsLoaded {
		return nil
	}

	h.marketsMu.Lock()
	defer h.marketsMu.Unlock()

	if h.marketsLoaded {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if _, err := h.exchange.LoadMarkets(); err != nil {
		return err
	}

	h.marketsLoaded = true
	h.logger.Info("已完成市场元数据加载")
	return nil
}

func (h *Hyperliquid) symbol(asset string) string {
	return fmt.Sprintf("%s/USDC:USDC", strings.ToUpper(strings.TrimSpace(asset)))
}

func midPrice(book ccxt.OrderBook) float64 {
	var bid, ask float64
	if len(book.Bids) > 0 && len(book.Bids[0]) >= 1 {
		bid = book.Bids[0][0]
	}
	if len(book.Asks) > 0 && len(book.Asks[0]) >= 1 {
		ask = book.Asks[0][0]
	}
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case bid > 0:
		return bid
	default:
		return ask
	}
}

func firstFloat(values ...*float64) float64 {
	for _, v := range values {
		if v != nil && *v > 0 {
			return *v
		}
	}
	return 0
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

var _ Adapter = (*Hyperliquid)(nil)
