package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"bazaar/internal/service/checkout/domain"
	"bazaar/internal/service/checkout/port"
)

func newTestPoller(f *checkoutFixture) *PaymentPoller {
	return NewPaymentPoller(f.orders, f.orch, 5*time.Millisecond, otel.Tracer("test"))
}

func TestAwaitStopsOnPaid(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)
	_, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentVNPay)
	require.NoError(t, err)

	f.orders.statuses = []port.OrderStatusInfo{
		{OrderID: "ORD-1", Status: domain.OrderPending, PaymentStatus: domain.PaymentUnpaid},
		{OrderID: "ORD-1", Status: domain.OrderPending, PaymentStatus: domain.PaymentUnpaid},
		{OrderID: "ORD-1", Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid},
	}

	state, err := newTestPoller(f).Await(ctx, checkoutSess, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateComplete, state)

	// 支付确认后按快照完成清理
	items, _ := f.cart.GetCart(ctx, checkoutSess)
	assert.Empty(t, items)
}

func TestAwaitStopsOnCancelled(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)
	_, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentVNPay)
	require.NoError(t, err)

	f.orders.statuses = []port.OrderStatusInfo{
		{OrderID: "ORD-1", Status: domain.OrderCancelled, PaymentStatus: domain.PaymentUnpaid},
	}

	state, err := newTestPoller(f).Await(ctx, checkoutSess, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, state)

	// 支付被取消：购物车保持原样
	items, _ := f.cart.GetCart(ctx, checkoutSess)
	assert.Len(t, items, 2)

	record, _ := f.records.FindByID(ctx, "ORD-1")
	assert.Equal(t, domain.StateFailed, record.FlowState)
}

func TestAwaitToleratesPollErrors(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)
	_, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentVNPay)
	require.NoError(t, err)

	// 前几次查询失败不终止轮询
	f.orders.getErr = errors.New("timeout")
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.orders.mu.Lock()
		f.orders.getErr = nil
		f.orders.statuses = []port.OrderStatusInfo{
			{OrderID: "ORD-1", Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid},
		}
		f.orders.mu.Unlock()
	}()

	state, err := newTestPoller(f).Await(ctx, checkoutSess, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateComplete, state)
}

func TestAwaitStopsOnContextCancel(t *testing.T) {
	f := newCheckoutFixture(t)
	f.orders.statuses = []port.OrderStatusInfo{
		{OrderID: "ORD-1", Status: domain.OrderPending, PaymentStatus: domain.PaymentUnpaid},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	state, err := newTestPoller(f).Await(ctx, checkoutSess, "ORD-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StatePaymentPending, state)
}
