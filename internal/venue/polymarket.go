package venue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"traderelay/internal/config"
)

// Polymarket 通过 CLOB REST 接口接入预测市场。
// 这里的 asset 为结果代币的 token id。
type Polymarket struct {
	cfg     config.PolymarketConfig
	client  *http.Client
	retry   retrier
	timeout time.Duration
	logger  *zap.Logger
}

// NewPolymarket 构造预测市场适配器。
func NewPolymarket(cfg config.PolymarketConfig, venues config.VenuesConfig, logger *zap.Logger) *Polymarket {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := venues.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Polymarket{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		retry:   newRetrier(venues.Retry, logger.Named("polymarket")),
		timeout: timeout,
		logger:  logger.Named("polymarket"),
	}
}

// Platform 实现 Adapter。
func (p *Polymarket) Platform() Platform {
	return PlatformPolymarket
}

type polymarketMidpointResponse struct {
	Mid string `json:"mid"`
}

// Price 查询结果代币的盘口中间价，取值区间 (0,1)。
func (p *Polymarket) Price(ctx context.Context, asset string) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/midpoint?token_id=%s", p.cfg.BaseURL, url.QueryEscape(asset))

	var resp polymarketMidpointResponse
	err := p.retry.do(ctx, "polymarket_midpoint", func() error {
		return doJSON(ctx, p.client, http.MethodGet, endpoint, nil, &resp)
	})
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return Quote{}, fmt.Errorf("%w: 市场 %s", ErrNoQuote, asset)
		}
		return Quote{}, err
	}

	price, parseErr := strconv.ParseFloat(resp.Mid, 64)
	if parseErr != nil || price <= 0 {
		return Quote{}, fmt.Errorf("%w: 市场 %s 无有效中间价", ErrNoQuote, asset)
	}

	return Quote{Asset: asset, Price: price, RetrievedAt: time.Now().UTC()}, nil
}

type polymarketOrderRequest struct {
	TokenID string  `json:"token_id"`
	Side    string  `json:"side"`
	Size    float64 `json:"size"`
	Maker   string  `json:"maker"`
	Type    string  `json:"type"`
}

type polymarketOrderResponse struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderID"`
	AvgPrice string `json:"avgPrice"`
	ErrorMsg string `json:"errorMsg"`
}

// Execute 以可成交价提交市价单。
func (p *Polymarket) Execute(ctx context.Context, req TradeRequest) (Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload := polymarketOrderRequest{
		TokenID: req.Asset,
		Side:    string(req.Side),
		Size:    req.Amount,
		Maker:   req.WalletRef,
		Type:    "FOK",
	}

	var resp polymarketOrderResponse
	err := p.retry.do(ctx, "polymarket_order", func() error {
		return doJSON(ctx, p.client, http.MethodPost, p.cfg.BaseURL+"/order", payload, &resp)
	})
	if err != nil {
		return Fill{}, err
	}
	if !resp.Success {
		msg := resp.ErrorMsg
		if msg == "" {
			msg = "unknown order failure"
		}
		return Fill{}, fmt.Errorf("预测市场委托被拒绝: %s", msg)
	}

	price, parseErr := strconv.ParseFloat(resp.AvgPrice, 64)
	if parseErr != nil {
		// 成交价字段异常时回执价置0，由巡检侧回退到触发观测价。
		p.logger.Warn("回执成交价无法解析，按无成交价处理",
			zap.String("order_id", resp.OrderID),
			zap.String("avg_price", resp.AvgPrice),
			zap.Error(parseErr),
		)
		price = 0
	}

	p.logger.Info("预测市场委托已提交",
		zap.String("token_id", req.Asset),
		zap.String("side", string(req.Side)),
		zap.Float64("size", req.Amount),
		zap.Float64("avg_price", price),
		zap.String("order_id", resp.OrderID),
	)

	return Fill{Price: price, Reference: resp.OrderID, Timestamp: time.Now().UTC()}, nil
}

var _ Adapter = (*Polymarket)(nil)
