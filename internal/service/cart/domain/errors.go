// internal/service/cart/domain/errors.go
package domain

import "errors"

var (
	// ErrOutOfStock 请求数量一次性超过库存快照。
	ErrOutOfStock = errors.New("requested quantity exceeds available stock")

	// ErrExceedsStock 合并已有行后总数量超过库存快照。
	ErrExceedsStock = errors.New("total quantity in cart exceeds available stock")

	// ErrItemNotFound 购物车里没有匹配的行。
	ErrItemNotFound = errors.New("cart item not found")

	// ErrInvalidQuantity 数量必须为正整数。
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)
