// internal/service/checkout/application/cleanup_step.go
package application

import (
	"go.opentelemetry.io/otel/codes"

	"bazaar/internal/pkg/logger"
)

// CleanupStep 在订单成交后收尾：移除已购商品、清空选中集与优惠券。
// 清理失败不影响订单结果，只记录日志，用户下次打开购物车时可重新结算。
type CleanupStep struct {
	NextHandler
}

func (s *CleanupStep) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.Cleanup")
	defer span.End()

	if cctx.Finalize != nil {
		if err := cctx.Finalize(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cart cleanup failed")
			logger.Ctx(ctx).Warn().Err(err).Str("order", cctx.Order.ID).Msg("cart cleanup after checkout failed")
		}
	}

	order := cctx.Order
	order.MarkComplete()
	if err := cctx.Records.UpdateState(ctx, order.ID, order.FlowState, order.PaymentStatus); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order", order.ID).Msg("failed to record completed state")
	}
	if cctx.Events != nil {
		if err := cctx.Events.PaymentConfirmed(ctx, order); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", order.ID).Msg("failed to publish payment confirmed event")
		}
	}

	return s.executeNext(cctx)
}
