// internal/service/checkout/application/order_step.go
package application

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/checkout/domain"
	"bazaar/internal/service/checkout/port"
)

// CreateOrderStep 负责把订单提交到上游后端并落本地记录。
// 下单失败时直接中断链：购物车、勾选集、券全部原样保留，调用方可重试。
type CreateOrderStep struct {
	NextHandler
}

func (s *CreateOrderStep) Handle(cctx *CheckoutContext) error {
	ctx, span := cctx.Tracer.Start(cctx.Ctx, "checkout.CreateOrder")
	defer span.End()

	order := cctx.Order
	req := &port.CreateOrderRequest{
		Subtotal:       order.Subtotal,
		ShippingFee:    order.ShippingFee,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		VoucherCode:    order.VoucherCode,
		PaymentMethod:  string(order.PaymentMethod),
		Address:        order.Address,
		Items:          order.Lines,
	}

	orderID, err := cctx.Orders.CreateOrder(ctx, cctx.Session.AuthToken, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order creation rejected by upstream")
		return fmt.Errorf("%w: %v", domain.ErrOrderCreateFailed, err)
	}
	order.ID = orderID
	span.AddEvent("Order created upstream.")

	if err := cctx.Records.Save(ctx, order); err != nil {
		// 本地记录失败不影响已创建的订单，轮询与历史会缺这一单，记日志
		logger.Ctx(ctx).Error().Err(err).Str("order", orderID).Msg("failed to persist order record")
	}

	if err := cctx.Events.OrderPlaced(ctx, order); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("failed to publish order placed event")
	}

	return s.executeNext(cctx)
}
