// internal/service/checkout/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/checkout/domain"
)

// 结算生命周期事件类型。
const (
	eventOrderPlaced      = "checkout.order_placed"
	eventPaymentConfirmed = "checkout.payment_confirmed"
	eventCheckoutFailed   = "checkout.failed"
)

// checkoutEvent 是发往 Kafka 的事件载荷，以订单号为分区键保证同单有序。
// EventID 供消费方去重。
type checkoutEvent struct {
	EventID       string    `json:"eventId"`
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId"`
	SessionID     string    `json:"sessionId"`
	PaymentMethod string    `json:"paymentMethod"`
	TotalAmount   int64     `json:"totalAmount"`
	VoucherCode   string    `json:"voucherCode,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// KafkaEventProducer 把结算生命周期事件发布到 Kafka。
type KafkaEventProducer struct {
	writer *kafka.Writer
}

func NewKafkaEventProducer(brokers []string, topic string) *KafkaEventProducer {
	return &KafkaEventProducer{writer: mq.NewWriter(brokers, topic)}
}

func (p *KafkaEventProducer) Close() error {
	return p.writer.Close()
}

func (p *KafkaEventProducer) publish(ctx context.Context, ev checkoutEvent) error {
	ev.EventID = uuid.New().String()
	ev.OccurredAt = time.Now()
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(ev.OrderID), payload)
}

func (p *KafkaEventProducer) OrderPlaced(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, checkoutEvent{
		Type:          eventOrderPlaced,
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		PaymentMethod: string(order.PaymentMethod),
		TotalAmount:   order.TotalAmount,
		VoucherCode:   order.VoucherCode,
	})
}

func (p *KafkaEventProducer) PaymentConfirmed(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, checkoutEvent{
		Type:          eventPaymentConfirmed,
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		PaymentMethod: string(order.PaymentMethod),
		TotalAmount:   order.TotalAmount,
	})
}

func (p *KafkaEventProducer) CheckoutFailed(ctx context.Context, order *domain.Order, reason string) error {
	return p.publish(ctx, checkoutEvent{
		Type:          eventCheckoutFailed,
		OrderID:       order.ID,
		SessionID:     order.SessionID,
		PaymentMethod: string(order.PaymentMethod),
		TotalAmount:   order.TotalAmount,
		Reason:        reason,
	})
}
