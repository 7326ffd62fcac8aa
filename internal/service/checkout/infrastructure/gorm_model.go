// internal/service/checkout/infrastructure/gorm_model.go
package infrastructure

import (
	"encoding/json"

	"gorm.io/gorm"

	"bazaar/internal/service/checkout/domain"
)

// OrderRecordModel 对应数据库中的 order_record 表。
// 订单行与收货地址以 JSON 文本落库，查询维度只有订单号和会话。
type OrderRecordModel struct {
	gorm.Model
	OrderID        string `gorm:"uniqueIndex;size:64"`
	SessionID      string `gorm:"index;size:64"`
	PaymentMethod  string `gorm:"size:16"`
	Subtotal       int64
	ShippingFee    int64
	DiscountAmount int64
	TotalAmount    int64
	VoucherCode    string `gorm:"size:64"`
	FlowState      string `gorm:"size:32"`
	PaymentStatus  string `gorm:"size:16"`
	AddressJSON    string `gorm:"type:text"`
	LinesJSON      string `gorm:"type:text"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderRecordModel) TableName() string {
	return "order_record"
}

// fromDomainOrder 将领域模型转换为数据库模型。
func fromDomainOrder(o *domain.Order) (*OrderRecordModel, error) {
	addr, err := json.Marshal(o.Address)
	if err != nil {
		return nil, err
	}
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return nil, err
	}
	return &OrderRecordModel{
		OrderID:        o.ID,
		SessionID:      o.SessionID,
		PaymentMethod:  string(o.PaymentMethod),
		Subtotal:       o.Subtotal,
		ShippingFee:    o.ShippingFee,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		VoucherCode:    o.VoucherCode,
		FlowState:      string(o.FlowState),
		PaymentStatus:  string(o.PaymentStatus),
		AddressJSON:    string(addr),
		LinesJSON:      string(lines),
	}, nil
}

// toDomainOrder 将数据库模型转换为领域模型。
func toDomainOrder(m *OrderRecordModel) *domain.Order {
	if m == nil {
		return nil
	}
	o := &domain.Order{
		ID:             m.OrderID,
		SessionID:      m.SessionID,
		PaymentMethod:  domain.PaymentMethod(m.PaymentMethod),
		Subtotal:       m.Subtotal,
		ShippingFee:    m.ShippingFee,
		DiscountAmount: m.DiscountAmount,
		TotalAmount:    m.TotalAmount,
		VoucherCode:    m.VoucherCode,
		FlowState:      domain.FlowState(m.FlowState),
		PaymentStatus:  domain.PaymentStatus(m.PaymentStatus),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	// 落库的是快照，解析失败时保留空值而不是让查询失败
	_ = json.Unmarshal([]byte(m.AddressJSON), &o.Address)
	_ = json.Unmarshal([]byte(m.LinesJSON), &o.Lines)
	return o
}
