// internal/service/checkout/port/records.go
package port

import (
	"context"

	"bazaar/internal/service/checkout/domain"
)

// OrderRecordRepository 持久化本服务创建过的订单。
// 它既是支付轮询的簿记，也支撑订单历史查询；服务端订单状态仍是权威。
type OrderRecordRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateState(ctx context.Context, orderID string, flow domain.FlowState, payment domain.PaymentStatus) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error)
}
