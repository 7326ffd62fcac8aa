// internal/service/checkout/infrastructure/memory_records.go
package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"bazaar/internal/service/checkout/domain"
)

// MemoryOrderRecordRepository 是订单记录仓储的内存实现。
// 未配置 MySQL 时作为降级兜底，测试里也用它。
type MemoryOrderRecordRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewMemoryOrderRecordRepository() *MemoryOrderRecordRepository {
	return &MemoryOrderRecordRepository{orders: make(map[string]domain.Order)}
}

func (r *MemoryOrderRecordRepository) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
	return nil
}

func (r *MemoryOrderRecordRepository) FindByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (r *MemoryOrderRecordRepository) UpdateState(_ context.Context, orderID string, flow domain.FlowState, payment domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.FlowState = flow
	o.PaymentStatus = payment
	o.UpdatedAt = time.Now()
	r.orders[orderID] = o
	return nil
}

func (r *MemoryOrderRecordRepository) ListBySession(_ context.Context, sessionID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.SessionID == sessionID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
