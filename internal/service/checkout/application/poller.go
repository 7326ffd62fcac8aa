// internal/service/checkout/application/poller.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/logger"
	cartdomain "bazaar/internal/service/cart/domain"
	"bazaar/internal/service/checkout/domain"
	"bazaar/internal/service/checkout/port"
)

const defaultPollInterval = 3 * time.Second

// PaymentPoller 周期性查询服务端订单，直到支付被确认或取消。
// 单次查询失败不终止轮询，等下一个周期重试。
type PaymentPoller struct {
	orders   port.OrderGateway
	orch     *Orchestrator
	interval time.Duration
	tracer   trace.Tracer
}

func NewPaymentPoller(orders port.OrderGateway, orch *Orchestrator, interval time.Duration, tracer trace.Tracer) *PaymentPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &PaymentPoller{orders: orders, orch: orch, interval: interval, tracer: tracer}
}

// Await 阻塞轮询直到出现终态或 ctx 结束。
//   - 支付确认：清理购物车，返回 COMPLETE；
//   - 订单被取消：购物车原样保留，返回 FAILED；
//   - ctx 取消/超时：返回 PAYMENT_PENDING 和 ctx 的错误，轮询可以重新发起。
func (p *PaymentPoller) Await(ctx context.Context, sess cartdomain.Session, orderID string) (domain.FlowState, error) {
	ctx, span := p.tracer.Start(ctx, "checkout.AwaitPayment")
	defer span.End()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.StatePaymentPending, ctx.Err()
		case <-ticker.C:
		}

		info, err := p.orders.GetOrder(ctx, sess.AuthToken, orderID)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("payment status poll failed")
			continue
		}

		switch {
		case info.PaymentStatus == domain.PaymentPaid:
			span.AddEvent("Payment confirmed.")
			if err := p.orch.FinalizePaid(ctx, sess, orderID); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("finalize after payment failed")
			}
			return domain.StateComplete, nil
		case info.Status == domain.OrderCancelled:
			span.AddEvent("Order cancelled while awaiting payment.")
			p.orch.MarkCheckoutFailed(ctx, sess, orderID, "payment cancelled")
			return domain.StateFailed, nil
		}
	}
}
