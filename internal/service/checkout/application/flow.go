// internal/service/checkout/application/flow.go
package application

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	cartdomain "bazaar/internal/service/cart/domain"
	"bazaar/internal/service/checkout/domain"
	"bazaar/internal/service/checkout/port"
)

// CheckoutContext 在结算步骤链中传递上下文数据。
// 所有外部依赖都是抽象端口，测试时逐个替换。
type CheckoutContext struct {
	Ctx     context.Context
	Tracer  trace.Tracer
	Session cartdomain.Session

	// 进入链之前由编排器现算好的输入
	Order *domain.Order

	// 出站端口
	Orders   port.OrderGateway
	Payments port.PaymentGateway
	Records  port.OrderRecordRepository
	Events   port.CheckoutEventProducer

	// 清理回调由编排器注入，COD 路径在链内完成清理
	Finalize func(ctx context.Context) error

	// 链执行的产出
	PaymentURL string
}

// Handler 定义了结算步骤链中每个节点的接口。
type Handler interface {
	// SetNext 设置链中的下一个处理器
	SetNext(handler Handler) Handler
	// Handle 执行当前节点的处理逻辑
	Handle(checkoutCtx *CheckoutContext) error
}

// NextHandler 是一个辅助结构，嵌入到具体的处理器中以减少重复代码。
type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

// executeNext 封装了调用下一个处理器的通用逻辑。
func (h *NextHandler) executeNext(checkoutCtx *CheckoutContext) error {
	if h.next != nil {
		return h.next.Handle(checkoutCtx)
	}
	return nil
}
