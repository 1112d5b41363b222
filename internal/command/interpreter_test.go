package command

import (
	"errors"
	"strings"
	"testing"

	"traderelay/internal/order"
	"traderelay/internal/venue"
)

func TestParseInterpretation_Create(t *testing.T) {
	content := "解析结果如下：\n" + `{
  "command": "create",
  "platform": "hyperliquid",
  "action": "sell",
  "amount": 0.5,
  "asset": "btc",
  "target_price": 120000,
  "order_id": 0
}`

	cmd, err := parseInterpretation(content)
	if err != nil {
		t.Fatalf("parseInterpretation returned error: %v", err)
	}
	if err := cmd.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if cmd.Kind != KindCreate ||
		cmd.Create.Platform != venue.PlatformHyperliquid ||
		cmd.Create.Action != order.ActionSell ||
		cmd.Create.Asset != "BTC" ||
		cmd.Create.TargetPrice != 120000 {
		t.Fatalf("unexpected command: %+v", cmd.Create)
	}
}

func TestParseInterpretation_CancelAndList(t *testing.T) {
	cmd, err := parseInterpretation(`{"command": "cancel", "order_id": 7}`)
	if err != nil || cmd.Kind != KindCancel || cmd.CancelID != 7 {
		t.Fatalf("unexpected cancel command: %+v err=%v", cmd, err)
	}

	cmd, err = parseInterpretation(`{"command": "list"}`)
	if err != nil || cmd.Kind != KindList {
		t.Fatalf("unexpected list command: %+v err=%v", cmd, err)
	}
}

func TestParseInterpretation_UnknownCommand(t *testing.T) {
	if _, err := parseInterpretation(`{"command": ""}`); !errors.Is(err, ErrUnrecognized) {
		t.Fatalf("expected ErrUnrecognized, got %v", err)
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	if _, err := extractJSON("抱歉，我无法解析"); err == nil || !strings.Contains(err.Error(), "未找到有效JSON") {
		t.Fatalf("expected extraction error, got %v", err)
	}
}
