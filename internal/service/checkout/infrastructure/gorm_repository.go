// internal/service/checkout/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"bazaar/internal/service/checkout/domain"
)

// GormOrderRecordRepository 是订单记录仓储的 GORM 实现。
type GormOrderRecordRepository struct {
	db *gorm.DB
}

// OpenMysql 连接 MySQL 并迁移订单记录表。
func OpenMysql(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&OrderRecordModel{}); err != nil {
		return nil, err
	}
	return db, nil
}

// NewGormOrderRecordRepository 创建一个新的 GORM 仓储实例。
func NewGormOrderRecordRepository(db *gorm.DB) *GormOrderRecordRepository {
	return &GormOrderRecordRepository{db: db}
}

func (r *GormOrderRecordRepository) Save(ctx context.Context, order *domain.Order) error {
	model, err := fromDomainOrder(order)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormOrderRecordRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var model OrderRecordModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return toDomainOrder(&model), nil
}

func (r *GormOrderRecordRepository) UpdateState(ctx context.Context, orderID string, flow domain.FlowState, payment domain.PaymentStatus) error {
	updateData := map[string]interface{}{
		"flow_state":     string(flow),
		"payment_status": string(payment),
	}
	res := r.db.WithContext(ctx).Model(&OrderRecordModel{}).Where("order_id = ?", orderID).Updates(updateData)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *GormOrderRecordRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Order, error) {
	var models []OrderRecordModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *toDomainOrder(&models[i]))
	}
	return orders, nil
}
