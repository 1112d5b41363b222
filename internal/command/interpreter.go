package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"traderelay/internal/config"
	"traderelay/internal/order"
	"traderelay/internal/venue"
)

const interpretPrompt = `你是交易指令解析器。把用户的自然语言消息解析为结构化指令。

支持的场所：jupiter（现货兑换）、hyperliquid（永续合约）、polymarket（预测市场）。
支持的操作：
- create：创建限价单（需要 platform、action、amount、asset、target_price）
- list：列出订单
- cancel：取消订单（需要 order_id）

用户消息：
%s

请严格输出唯一的 JSON 对象，格式如下：
{
  "command": "create|list|cancel",
  "platform": "jupiter|hyperliquid|polymarket",
  "action": "buy|sell",
  "amount": 0.0,
  "asset": "...",
  "target_price": 0.0,
  "order_id": 0
}

注意事项：
- 与指令无关的字段填零值。
- 无法确定用户意图时，输出 {"command": ""}。
- 不要输出 JSON 以外的任何内容。`

type interpretResult struct {
	Command     string  `json:"command"`
	Platform    string  `json:"platform"`
	Action      string  `json:"action"`
	Amount      float64 `json:"amount"`
	Asset       string  `json:"asset"`
	TargetPrice float64 `json:"target_price"`
	OrderID     int64   `json:"order_id"`
}

// Interpreter 通过大模型把自由文本消息转成结构化指令，
// 作为结构化文法解析失败时的兜底。
type Interpreter struct {
	cfg    config.InterpreterConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewInterpreter 使用给定配置创建解析器。
func NewInterpreter(cfg config.InterpreterConfig, logger *zap.Logger) (*Interpreter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("interpreter api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout + 5*time.Second}

	return &Interpreter{
		cfg:    cfg,
		logger: logger.Named("interpreter"),
		sdk:    openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Interpret 解析一条自由文本消息。
func (i *Interpreter) Interpret(ctx context.Context, text string) (Command, error) {
	if i.cfg.Model == "" {
		return Command{}, errors.New("interpreter model 不能为空")
	}

	response, err := i.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: i.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(interpretPrompt, text),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		i.logger.Error("调用模型失败", zap.Error(err))
		return Command{}, fmt.Errorf("调用模型失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return Command{}, errors.New("模型返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return Command{}, errors.New("模型返回内容为空")
	}

	cmd, err := parseInterpretation(rawContent)
	if err != nil {
		i.logger.Error("解析模型输出失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return Command{}, err
	}

	if err := cmd.Validate(); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}

	i.logger.Info("自然语言指令解析成功", zap.String("kind", string(cmd.Kind)))
	return cmd, nil
}

func parseInterpretation(content string) (Command, error) {
	jsonPayload, err := extractJSON(content)
	if err != nil {
		return Command{}, err
	}

	var result interpretResult
	if err = json.Unmarshal(jsonPayload, &result); err != nil {
		return Command{}, fmt.Errorf("解析指令JSON失败: %w", err)
	}

	switch Kind(strings.ToLower(strings.TrimSpace(result.Command))) {
	case KindList:
		return Command{Kind: KindList}, nil
	case KindCancel:
		return Command{Kind: KindCancel, CancelID: result.OrderID}, nil
	case KindCreate:
		action, _ := order.ParseAction(result.Action)
		platform, _ := venue.ParsePlatform(result.Platform)
		return Command{
			Kind: KindCreate,
			Create: &CreateParams{
				Platform:    platform,
				Action:      action,
				Amount:      result.Amount,
				Asset:       strings.ToUpper(strings.TrimSpace(result.Asset)),
				TargetPrice: result.TargetPrice,
			},
		}, nil
	default:
		return Command{}, fmt.Errorf("%w: 模型未能识别指令", ErrUnrecognized)
	}
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
