// internal/service/checkout/port/gateway.go
package port

import (
	"context"

	"bazaar/internal/service/checkout/domain"
)

// CreateOrderRequest 是提交到上游后端的下单载荷。
type CreateOrderRequest struct {
	Subtotal       int64              `json:"subtotal"`
	ShippingFee    int64              `json:"shippingFee"`
	DiscountAmount int64              `json:"discountAmount"`
	TotalAmount    int64              `json:"totalAmount"`
	VoucherCode    string             `json:"voucherCode,omitempty"`
	PaymentMethod  string             `json:"paymentMethod"`
	Address        domain.Address     `json:"address"`
	Items          []domain.OrderLine `json:"items"`
}

// OrderStatusInfo 是服务端订单当前的履约与支付状态。
type OrderStatusInfo struct {
	OrderID       string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
}

// OrderGateway 是订单操作的出站端口，由上游商城后端的 HTTP 适配器实现。
type OrderGateway interface {
	// CreateOrder 创建订单并返回服务端订单号。
	CreateOrder(ctx context.Context, token string, req *CreateOrderRequest) (orderID string, err error)

	// GetOrder 查询订单状态。
	GetOrder(ctx context.Context, token, orderID string) (*OrderStatusInfo, error)

	// CancelOrder 取消订单。状态门禁由应用层先行检查，服务端仍是权威。
	CancelOrder(ctx context.Context, token, orderID, reason string) error
}

// PaymentGateway 是外部支付的出站端口。
type PaymentGateway interface {
	// CreateVNPayPayment 为订单创建 VNPAY 支付，返回外部跳转地址。
	CreateVNPayPayment(ctx context.Context, token, orderID string) (paymentURL string, err error)
}
