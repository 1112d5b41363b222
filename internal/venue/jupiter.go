package venue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"traderelay/internal/config"
)

// Jupiter 通过聚合器 REST 接口实现现货报价与兑换。
type Jupiter struct {
	cfg     config.JupiterConfig
	client  *http.Client
	retry   retrier
	timeout time.Duration
	logger  *zap.Logger
}

// NewJupiter 构造现货聚合器适配器。
func NewJupiter(cfg config.JupiterConfig, venues config.VenuesConfig, logger *zap.Logger) *Jupiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := venues.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Jupiter{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		retry:   newRetrier(venues.Retry, logger.Named("jupiter")),
		timeout: timeout,
		logger:  logger.Named("jupiter"),
	}
}

// Platform 实现 Adapter。
func (j *Jupiter) Platform() Platform {
	return PlatformJupiter
}

type jupiterPriceResponse struct {
	Data map[string]struct {
		Price float64 `json:"price"`
	} `json:"data"`
}

// Price 查询资产的聚合参考价（USDC 计价）。
func (j *Jupiter) Price(ctx context.Context, asset string) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/price?ids=%s", j.cfg.BaseURL, url.QueryEscape(asset))

	var resp jupiterPriceResponse
	err := j.retry.do(ctx, "jupiter_price", func() error {
		return doJSON(ctx, j.client, http.MethodGet, endpoint, nil, &resp)
	})
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
			return Quote{}, fmt.Errorf("%w: 资产 %s", ErrNoQuote, asset)
		}
		return Quote{}, err
	}

	entry, ok := resp.Data[asset]
	if !ok || entry.Price <= 0 {
		return Quote{}, fmt.Errorf("%w: 资产 %s", ErrNoQuote, asset)
	}

	return Quote{Asset: asset, Price: entry.Price, RetrievedAt: time.Now().UTC()}, nil
}

type jupiterSwapRequest struct {
	Wallet      string  `json:"wallet"`
	Side        string  `json:"side"`
	Asset       string  `json:"asset"`
	Amount      float64 `json:"amount"`
	SlippageBps int     `json:"slippageBps"`
}

type jupiterSwapResponse struct {
	Success  bool    `json:"success"`
	Price    float64 `json:"price"`
	TxID     string  `json:"txid"`
	ErrorMsg string  `json:"error"`
}

// Execute 提交一笔兑换，由外部托管服务完成签名。
func (j *Jupiter) Execute(ctx context.Context, req TradeRequest) (Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	payload := jupiterSwapRequest{
		Wallet:      req.WalletRef,
		Side:        string(req.Side),
		Asset:       req.Asset,
		Amount:      req.Amount,
		SlippageBps: j.cfg.SlippageBps,
	}

	var resp jupiterSwapResponse
	err := j.retry.do(ctx, "jupiter_swap", func() error {
		return doJSON(ctx, j.client, http.MethodPost, j.cfg.BaseURL+"/swap", payload, &resp)
	})
	if err != nil {
		return Fill{}, err
	}
	if !resp.Success {
		msg := resp.ErrorMsg
		if msg == "" {
			msg = "unknown swap failure"
		}
		return Fill{}, fmt.Errorf("兑换被拒绝: %s", msg)
	}

	j.logger.Info("兑换已提交",
		zap.String("asset", req.Asset),
		zap.String("side", string(req.Side)),
		zap.Float64("price", resp.Price),
		zap.String("txid", resp.TxID),
	)

	return Fill{Price: resp.Price, Reference: resp.TxID, Timestamp: time.Now().UTC()}, nil
}

var _ Adapter = (*Jupiter)(nil)
