package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"traderelay/internal/config"
)

// Telegram 通过 Bot API 推送消息，channel 为会话 chat_id。
type Telegram struct {
	cfg    config.TelegramConfig
	client *http.Client
	logger *zap.Logger
}

// NewTelegram 构造 Telegram 推送器。
func NewTelegram(cfg config.TelegramConfig, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("telegram"),
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Notify 实现 Notifier。失败仅告警，不向调用方传播。
func (t *Telegram) Notify(ctx context.Context, channel, text string) {
	if channel == "" || text == "" {
		return
	}

	payload, err := json.Marshal(sendMessageRequest{ChatID: channel, Text: text})
	if err != nil {
		t.logger.Warn("序列化推送消息失败", zap.Error(err))
		return
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		t.logger.Warn("构造推送请求失败", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("推送消息失败", zap.String("channel", channel), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.logger.Warn("推送消息被拒绝",
			zap.String("channel", channel),
			zap.Int("status", resp.StatusCode),
		)
	}
}

var _ Notifier = (*Telegram)(nil)
