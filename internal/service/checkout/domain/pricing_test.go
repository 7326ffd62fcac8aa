package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	cartdomain "bazaar/internal/service/cart/domain"
	voucherdomain "bazaar/internal/service/voucher/domain"
)

func amount(v int64) *int64 { return &v }

func sampleCart() []cartdomain.CartItem {
	return []cartdomain.CartItem{
		{ID: 1, ProductID: 10, SalePrice: 150000, DiscountPrice: amount(120000), Quantity: 2, SelectedSize: "M"},
		{ID: 2, ProductID: 11, SalePrice: 80000, Quantity: 1},
		{ID: 3, ProductID: 12, SalePrice: 50000, Quantity: 3, SelectedSize: "L"},
	}
}

func TestComputeQuoteSelectedLinesOnly(t *testing.T) {
	items := sampleCart()
	sel := cartdomain.NewSelection("1-M", "2-default")

	q := ComputeQuote(items, sel, nil)

	// 2*120000 + 80000，第三行未勾选不参与计价
	assert.Equal(t, int64(320000), q.Subtotal)
	assert.Equal(t, FlatShippingFee, q.ShippingFee)
	assert.Equal(t, int64(0), q.Discount)
	assert.Equal(t, int64(340000), q.Total)
	assert.Equal(t, 2, q.SelectedCount)
}

func TestComputeQuoteEmptySelection(t *testing.T) {
	q := ComputeQuote(sampleCart(), cartdomain.NewSelection(), nil)

	assert.Equal(t, int64(0), q.Subtotal)
	// 空单免运费
	assert.Equal(t, int64(0), q.ShippingFee)
	assert.Equal(t, int64(0), q.Total)
	assert.Equal(t, 0, q.SelectedCount)
}

func TestComputeQuoteWithVoucher(t *testing.T) {
	items := sampleCart()
	sel := cartdomain.NewSelection("1-M", "2-default")
	v := &voucherdomain.AppliedVoucher{
		DiscountType:  voucherdomain.DiscountPercentage,
		DiscountValue: 10,
	}

	q := ComputeQuote(items, sel, v)

	assert.Equal(t, int64(32000), q.Discount)
	assert.Equal(t, int64(320000)+FlatShippingFee-int64(32000), q.Total)
	assert.False(t, q.VoucherInert)
}

func TestComputeQuoteVoucherInert(t *testing.T) {
	items := sampleCart()
	sel := cartdomain.NewSelection("2-default") // 小计 80000
	v := &voucherdomain.AppliedVoucher{
		DiscountType:   voucherdomain.DiscountFixed,
		DiscountValue:  50000,
		MinOrderAmount: 200000,
	}

	q := ComputeQuote(items, sel, v)

	// 未达门槛：折扣归零但券的存在被标记出来
	assert.Equal(t, int64(0), q.Discount)
	assert.True(t, q.VoucherInert)

	// 勾选更多行达到门槛后折扣恢复
	sel = cartdomain.NewSelection("1-M", "2-default")
	q = ComputeQuote(items, sel, v)
	assert.Equal(t, int64(50000), q.Discount)
	assert.False(t, q.VoucherInert)
}

func TestComputeQuoteTotalNeverNegative(t *testing.T) {
	items := []cartdomain.CartItem{{ID: 1, SalePrice: 10000, Quantity: 1}}
	sel := cartdomain.NewSelection("1-default")
	v := &voucherdomain.AppliedVoucher{
		DiscountType:  voucherdomain.DiscountFixed,
		DiscountValue: 10000,
	}

	q := ComputeQuote(items, sel, v)
	assert.GreaterOrEqual(t, q.Total, int64(0))
}

func TestQuoteCacheMemoizes(t *testing.T) {
	items := sampleCart()
	sel := cartdomain.NewSelection("1-M")
	cache := &QuoteCache{}

	q1 := cache.Get(items, sel, nil)
	q2 := cache.Get(items, sel, nil)
	assert.Equal(t, q1, q2)

	// 任一输入变化都使缓存失效
	sel.Toggle("2-default")
	q3 := cache.Get(items, sel, nil)
	assert.NotEqual(t, q1.Subtotal, q3.Subtotal)
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(OrderPending))
	assert.True(t, CanCancel(OrderConfirmed))
	assert.True(t, CanCancel(OrderPreparing))
	assert.False(t, CanCancel(OrderShipping))
	assert.False(t, CanCancel(OrderDelivered))
	assert.False(t, CanCancel(OrderCancelled))
}

func TestOrderTransitions(t *testing.T) {
	quote := Quote{Subtotal: 100000, ShippingFee: FlatShippingFee, Total: 120000}
	lines := []OrderLine{{ProductID: 10, Quantity: 1, PriceBuy: 100000}}
	addr := Address{Recipient: "Nguyen Van A", Phone: "0900000000", Detail: "1 Le Loi, Q1"}

	_, err := NewOrder("s1", Address{}, PaymentCOD, quote, lines, "")
	assert.ErrorIs(t, err, ErrMissingAddress)

	_, err = NewOrder("s1", addr, PaymentCOD, quote, nil, "")
	assert.ErrorIs(t, err, ErrEmptySelection)

	order, err := NewOrder("s1", addr, PaymentVNPay, quote, lines, "SAVE10")
	assert.NoError(t, err)
	assert.Equal(t, StateOrderCreated, order.FlowState)
	assert.Equal(t, PaymentUnpaid, order.PaymentStatus)

	assert.NoError(t, order.MarkPaymentPending())
	assert.Equal(t, StatePaymentPending, order.FlowState)
	// 只能从刚创建的状态进入等待支付
	assert.Error(t, order.MarkPaymentPending())

	order.MarkComplete()
	assert.Equal(t, StateComplete, order.FlowState)
	assert.Equal(t, PaymentPaid, order.PaymentStatus)
	assert.True(t, order.FlowState.Terminal())
}
