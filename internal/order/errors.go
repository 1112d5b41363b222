package order

import "errors"

var (
	// ErrValidation 表示创建参数非法，订单不会被记录。
	ErrValidation = errors.New("order: invalid parameters")
	// ErrNotFound 表示指定所有者名下不存在该订单。
	ErrNotFound = errors.New("order: not found")
	// ErrInvalidState 表示操作的订单已处于终态。
	ErrInvalidState = errors.New("order: invalid state")
)
