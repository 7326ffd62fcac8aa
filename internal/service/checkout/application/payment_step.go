// internal/service/checkout/application/payment_step.go
package application

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/checkout/domain"
)

// PaymentStep 按支付方式分叉：
//   - COD 下单即视为成交，继续走链内清理；
//   - VNPAY 创建外部支付并返回跳转地址，购物车清理推迟到支付确认，
//     避免支付失败或被放弃时丢失购物车内容。
type PaymentStep struct {
	NextHandler
}

func (s *PaymentStep) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.Payment")
	defer span.End()

	order := cctx.Order

	if order.PaymentMethod == domain.PaymentCOD {
		span.AddEvent("COD order, settling immediately.")
		return s.executeNext(cctx)
	}

	url, err := cctx.Payments.CreateVNPayPayment(ctx, cctx.Session.AuthToken, order.ID)
	if err != nil {
		// 订单已创建成功，流程状态不回退；支付可以对同一订单重试
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment initiation failed")
		return fmt.Errorf("%w: %v", domain.ErrPaymentInitFailed, err)
	}
	cctx.PaymentURL = url

	if err := order.MarkPaymentPending(); err != nil {
		span.RecordError(err)
		return err
	}
	if err := cctx.Records.UpdateState(ctx, order.ID, order.FlowState, order.PaymentStatus); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order", order.ID).Msg("failed to record payment pending state")
	}

	span.AddEvent("Payment created, awaiting external confirmation.")
	// VNPAY 不进入清理步骤，链到此为止
	return nil
}
