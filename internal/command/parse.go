package command

import (
	"fmt"
	"strconv"
	"strings"

	"traderelay/internal/order"
	"traderelay/internal/venue"
)

// Parse 解析结构化聊天指令。支持的文法：
//
//	limit buy 1.5 SOL @ 10 on jupiter
//	orders
//	cancel 1234
//
// 前导斜杠可选。无法识别时返回 ErrUnrecognized，由上层决定
// 是否交给自然语言解析兜底。
func Parse(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Command{}, ErrUnrecognized
	}

	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))

	switch verb {
	case "orders", "list":
		return Command{Kind: KindList}, nil

	case "cancel":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: cancel 需要且仅需要一个订单ID", ErrUnrecognized)
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || id <= 0 {
			return Command{}, fmt.Errorf("%w: 非法订单ID %q", ErrUnrecognized, fields[1])
		}
		return Command{Kind: KindCancel, CancelID: id}, nil

	case "limit":
		return parseCreate(fields[1:])

	default:
		return Command{}, ErrUnrecognized
	}
}

// parseCreate 解析 "buy 1.5 SOL @ 10 on jupiter" 形式的剩余字段。
func parseCreate(fields []string) (Command, error) {
	if len(fields) != 7 || fields[3] != "@" || strings.ToLower(fields[5]) != "on" {
		return Command{}, fmt.Errorf("%w: limit 指令格式应为 `limit buy|sell <数量> <资产> @ <目标价> on <场所>`", ErrUnrecognized)
	}

	action, ok := order.ParseAction(fields[0])
	if !ok {
		return Command{}, fmt.Errorf("%w: 方向 %q 非法", ErrUnrecognized, fields[0])
	}

	amount, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: 数量 %q 非法", ErrUnrecognized, fields[1])
	}

	target, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: 目标价 %q 非法", ErrUnrecognized, fields[4])
	}

	platform, ok := venue.ParsePlatform(fields[6])
	if !ok {
		return Command{}, fmt.Errorf("%w: 场所 %q 非法", ErrUnrecognized, fields[6])
	}

	cmd := Command{
		Kind: KindCreate,
		Create: &CreateParams{
			Platform:    platform,
			Action:      action,
			Amount:      amount,
			Asset:       strings.ToUpper(fields[2]),
			TargetPrice: target,
		},
	}

	if err := cmd.Validate(); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}

	return cmd, nil
}
