// internal/service/checkout/port/events.go
package port

import (
	"context"

	"bazaar/internal/service/checkout/domain"
)

// CheckoutEventProducer 是结算生命周期事件的出站端口。
// 事件发布是尽力而为的：发布失败记日志，不影响结算主流程。
type CheckoutEventProducer interface {
	// OrderPlaced 订单已在服务端创建。
	OrderPlaced(ctx context.Context, order *domain.Order) error

	// PaymentConfirmed 外部支付已确认，结算完成。
	PaymentConfirmed(ctx context.Context, order *domain.Order) error

	// CheckoutFailed 支付被取消，结算失败。
	CheckoutFailed(ctx context.Context, order *domain.Order, reason string) error
}

// NopEventProducer 是事件端口的空实现，事件开关关闭时注入。
type NopEventProducer struct{}

func (NopEventProducer) OrderPlaced(context.Context, *domain.Order) error      { return nil }
func (NopEventProducer) PaymentConfirmed(context.Context, *domain.Order) error { return nil }
func (NopEventProducer) CheckoutFailed(context.Context, *domain.Order, string) error {
	return nil
}
