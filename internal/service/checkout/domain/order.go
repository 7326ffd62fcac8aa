// internal/service/checkout/domain/order.go
package domain

import (
	"errors"
	"time"
)

// OrderLine 是订单里的一行，只携带下单所需的最小字段。
// PriceBuy 是下单时刻的生效单价快照。
type OrderLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	PriceBuy  int64 `json:"priceBuy"`
}

// Order 是一次结算产出的订单聚合。
// 金额字段在提交前由 Quote 现算得出，绝不沿用更早步骤算过的数值。
type Order struct {
	ID            string
	SessionID     string
	Address       Address
	PaymentMethod PaymentMethod
	Lines         []OrderLine

	Subtotal       int64
	ShippingFee    int64
	DiscountAmount int64
	TotalAmount    int64
	VoucherCode    string

	Status        OrderStatus
	PaymentStatus PaymentStatus
	FlowState     FlowState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Address 是收货地址。正确性由服务端兜底，这里只做存在性校验。
type Address struct {
	Recipient string `json:"recipient"`
	Phone     string `json:"phone"`
	Detail    string `json:"detail"`
}

// Empty 报告地址是否未填写。
func (a Address) Empty() bool {
	return a.Recipient == "" && a.Phone == "" && a.Detail == ""
}

// NewOrder 用报价和已勾选行构造订单聚合。
func NewOrder(sessionID string, addr Address, method PaymentMethod, quote Quote, lines []OrderLine, voucherCode string) (*Order, error) {
	if addr.Empty() {
		return nil, ErrMissingAddress
	}
	if len(lines) == 0 {
		return nil, ErrEmptySelection
	}
	now := time.Now()
	return &Order{
		SessionID:      sessionID,
		Address:        addr,
		PaymentMethod:  method,
		Lines:          lines,
		Subtotal:       quote.Subtotal,
		ShippingFee:    quote.ShippingFee,
		DiscountAmount: quote.Discount,
		TotalAmount:    quote.Total,
		VoucherCode:    voucherCode,
		Status:         OrderPending,
		PaymentStatus:  PaymentUnpaid,
		FlowState:      StateOrderCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MarkPaymentPending 进入等待外部支付确认的状态。
func (o *Order) MarkPaymentPending() error {
	if o.FlowState != StateOrderCreated {
		return errors.New("order can only await payment right after creation")
	}
	o.FlowState = StatePaymentPending
	o.UpdatedAt = time.Now()
	return nil
}

// MarkComplete 结算完成。
func (o *Order) MarkComplete() {
	o.FlowState = StateComplete
	o.PaymentStatus = PaymentPaid
	o.UpdatedAt = time.Now()
}

// MarkFailed 支付被取消，结算失败。
func (o *Order) MarkFailed() {
	o.FlowState = StateFailed
	o.UpdatedAt = time.Now()
}
