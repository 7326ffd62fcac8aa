// internal/service/checkout/domain/errors.go
package domain

import "errors"

var (
	// ErrMissingAddress 尚未选择收货地址。
	ErrMissingAddress = errors.New("shipping address has not been selected")

	// ErrEmptySelection 没有勾选任何购物车行，结算不可发起。
	ErrEmptySelection = errors.New("no cart items selected for checkout")

	// ErrOrderCreateFailed 服务端下单失败，包装时附带服务端消息；购物车/勾选/券原样保留，可重试。
	ErrOrderCreateFailed = errors.New("order creation failed")

	// ErrPaymentInitFailed 获取外部支付跳转地址失败；订单已创建，流程状态不回退。
	ErrPaymentInitFailed = errors.New("failed to initiate payment")

	// ErrOrderNotCancellable 订单已进入发货及之后的状态，不允许取消。
	ErrOrderNotCancellable = errors.New("order can no longer be cancelled")

	// ErrOrderNotFound 查不到对应订单。
	ErrOrderNotFound = errors.New("order not found")
)
