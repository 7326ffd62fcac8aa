// internal/service/checkout/domain/state.go
package domain

// FlowState 定义了一次结算流程的生命周期状态。
type FlowState string

const (
	StateAddressSelection       FlowState = "ADDRESS_SELECTION"        // 正在选择收货地址
	StatePaymentMethodSelection FlowState = "PAYMENT_METHOD_SELECTION" // 正在选择支付方式
	StateOrderCreated           FlowState = "ORDER_CREATED"            // 订单已在服务端创建
	StatePaymentPending         FlowState = "PAYMENT_PENDING"          // 等待外部支付确认 (VNPAY)
	StateComplete               FlowState = "COMPLETE"                 // 结算完成，已购行已清理
	StateFailed                 FlowState = "FAILED"                   // 支付被取消，购物车保持原样
)

// Terminal 报告该状态是否为终态。
func (s FlowState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// PaymentMethod 是支持的支付方式。
type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "COD"   // 货到付款，下单即完成
	PaymentVNPay PaymentMethod = "VNPAY" // 外部网关，下单后跳转支付
)

// OrderStatus 是服务端订单的履约状态。
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderPreparing OrderStatus = "PREPARING"
	OrderShipping  OrderStatus = "SHIPPING"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// CanCancel 报告某个履约状态下用户是否还能取消订单。
// 发货之后不允许取消。
func CanCancel(status OrderStatus) bool {
	switch status {
	case OrderPending, OrderConfirmed, OrderPreparing:
		return true
	default:
		return false
	}
}

// PaymentStatus 是服务端订单的支付状态。
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)
