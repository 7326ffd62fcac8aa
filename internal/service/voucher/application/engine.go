// internal/service/voucher/application/engine.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/constants"
	"bazaar/internal/pkg/kvstore"
	"bazaar/internal/pkg/logger"
	cartdomain "bazaar/internal/service/cart/domain"
	"bazaar/internal/service/voucher/domain"
	"bazaar/internal/service/voucher/port"
)

// VoucherEngine 负责券的应用、移除和生效折扣的持续一致。
// 应用动作先过本地守卫规则，再请求服务端校验；
// 校验结果持久化后，折扣金额随小计变化由 ComputeDiscount 现算。
type VoucherEngine struct {
	gateway   port.VoucherGateway
	prefilter port.RulePrefilter
	store     kvstore.Store
	tracer    trace.Tracer
}

// NewVoucherEngine 创建券引擎。
func NewVoucherEngine(gateway port.VoucherGateway, prefilter port.RulePrefilter, store kvstore.Store, tracer trace.Tracer) *VoucherEngine {
	return &VoucherEngine{gateway: gateway, prefilter: prefilter, store: store, tracer: tracer}
}

func (e *VoucherEngine) key(sess cartdomain.Session) string {
	return fmt.Sprintf("%s:%s", constants.AppliedVoucherKeyPrefix, sess.ID)
}

// Apply 校验并应用一张券。
// orderAmount 是当前勾选行小计，selectedCount 是勾选行数。
// 不支持叠加：已有生效券时直接拒绝。
func (e *VoucherEngine) Apply(ctx context.Context, sess cartdomain.Session, code string, orderAmount int64, selectedCount int) (*domain.AppliedVoucher, error) {
	ctx, span := e.tracer.Start(ctx, "voucher.Apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("voucher.code", code),
		attribute.Int64("order.amount", orderAmount),
	)

	if existing, err := e.Applied(ctx, sess); err == nil && existing != nil {
		return nil, domain.ErrVoucherAlreadyApplied
	}

	// 本地守卫规则：空码、零勾选等在触网前就拒绝
	if err := e.prefilter.Evaluate(port.ApplyFact{Code: code, OrderAmount: orderAmount, SelectedCount: selectedCount}); err != nil {
		span.RecordError(err)
		return nil, err
	}

	result, err := e.gateway.Check(ctx, sess.AuthToken, code, orderAmount)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "voucher check call failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrVoucherCheckFailed, err)
	}

	if !result.Valid {
		span.AddEvent("voucher rejected by server")
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidVoucher, result.Message)
	}

	applied := &domain.AppliedVoucher{
		VoucherCode:       code,
		DiscountType:      result.DiscountType,
		DiscountValue:     result.DiscountValue,
		MaxDiscountAmount: result.MaxDiscountAmount,
		MinOrderAmount:    result.MinOrderAmount,
		DiscountAmount:    result.DiscountAmount,
	}
	if err := e.persist(ctx, sess, applied); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("code", code).Int64("discount", applied.DiscountAmount).Msg("voucher applied")
	return applied, nil
}

// Applied 返回当前生效的券，没有时返回 (nil, nil)。
func (e *VoucherEngine) Applied(ctx context.Context, sess cartdomain.Session) (*domain.AppliedVoucher, error) {
	raw, err := e.store.Get(ctx, e.key(sess))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var v domain.AppliedVoucher
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		// 损坏的券状态按无券处理
		return nil, nil
	}
	return &v, nil
}

// Remove 清除生效券（用户主动移除或购买完成后调用）。
func (e *VoucherEngine) Remove(ctx context.Context, sess cartdomain.Session) error {
	return e.store.Delete(ctx, e.key(sess))
}

func (e *VoucherEngine) persist(ctx context.Context, sess cartdomain.Session, v *domain.AppliedVoucher) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, e.key(sess), string(raw))
}
