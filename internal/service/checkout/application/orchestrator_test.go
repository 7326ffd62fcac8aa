package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"bazaar/internal/pkg/kvstore"
	cartapp "bazaar/internal/service/cart/application"
	cartdomain "bazaar/internal/service/cart/domain"
	cartinfra "bazaar/internal/service/cart/infrastructure"
	cartport "bazaar/internal/service/cart/port"
	"bazaar/internal/service/checkout/domain"
	checkoutinfra "bazaar/internal/service/checkout/infrastructure"
	"bazaar/internal/service/checkout/port"
	voucherdomain "bazaar/internal/service/voucher/domain"
)

// stubOrders 是可编程的订单网关。
type stubOrders struct {
	mu        sync.Mutex
	createErr error
	nextID    string

	statuses  []port.OrderStatusInfo // GetOrder 依次返回的状态序列，走完后停在最后一个
	statusIdx int
	getErr    error

	cancelled []string
	cancelErr error
}

func (s *stubOrders) CreateOrder(context.Context, string, *port.CreateOrderRequest) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	if s.nextID == "" {
		s.nextID = "ORD-1"
	}
	return s.nextID, nil
}

func (s *stubOrders) GetOrder(context.Context, string, string) (*port.OrderStatusInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	info := s.statuses[s.statusIdx]
	if s.statusIdx < len(s.statuses)-1 {
		s.statusIdx++
	}
	return &info, nil
}

func (s *stubOrders) CancelOrder(_ context.Context, _ string, orderID, _ string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, orderID)
	return nil
}

type stubPayments struct {
	url string
	err error
}

func (s *stubPayments) CreateVNPayPayment(context.Context, string, string) (string, error) {
	return s.url, s.err
}

type stubVouchers struct {
	voucher *voucherdomain.AppliedVoucher
	removed bool
}

func (s *stubVouchers) Applied(context.Context, cartdomain.Session) (*voucherdomain.AppliedVoucher, error) {
	return s.voucher, nil
}

func (s *stubVouchers) Remove(context.Context, cartdomain.Session) error {
	s.voucher = nil
	s.removed = true
	return nil
}

type checkoutFixture struct {
	store     kvstore.Store
	cart      *cartapp.CartService
	selection *cartapp.SelectionManager
	vouchers  *stubVouchers
	orders    *stubOrders
	payments  *stubPayments
	records   *checkoutinfra.MemoryOrderRecordRepository
	orch      *Orchestrator
}

var checkoutSess = cartdomain.Session{ID: "s1"}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	tracer := otel.Tracer("test")
	store := kvstore.NewMemoryStore()
	backend := cartinfra.NewLocalCartBackend(store)
	cart := cartapp.NewCartService(backend, backend, cartport.NoopLocker{}, tracer)
	selection := cartapp.NewSelectionManager(store, tracer)
	vouchers := &stubVouchers{}
	orders := &stubOrders{}
	payments := &stubPayments{url: "https://pay.vnpay.vn/tx/1"}
	records := checkoutinfra.NewMemoryOrderRecordRepository()

	orch := NewOrchestrator(cart, selection, vouchers, orders, payments, records, port.NopEventProducer{}, store, tracer)
	return &checkoutFixture{
		store: store, cart: cart, selection: selection, vouchers: vouchers,
		orders: orders, payments: payments, records: records, orch: orch,
	}
}

func (f *checkoutFixture) fillCart(t *testing.T, selectAll bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.cart.AddItem(ctx, checkoutSess, cartdomain.Product{ID: 10, Name: "Áo thun", SalePrice: 150000, Stock: 5}, 2, "M"))
	require.NoError(t, f.cart.AddItem(ctx, checkoutSess, cartdomain.Product{ID: 11, Name: "Quần jean", SalePrice: 300000, Stock: 5}, 1, ""))
	if selectAll {
		items, err := f.cart.GetCart(ctx, checkoutSess)
		require.NoError(t, err)
		_, err = f.selection.ToggleAll(ctx, checkoutSess, items)
		require.NoError(t, err)
	}
}

func (f *checkoutFixture) setAddress(t *testing.T) {
	t.Helper()
	addr := domain.Address{Recipient: "Nguyen Van A", Phone: "0900000000", Detail: "1 Le Loi, Q1"}
	require.NoError(t, f.orch.SelectAddress(context.Background(), checkoutSess, addr))
}

func TestConfirmCODCompletesAndCleansCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)
	f.vouchers.voucher = &voucherdomain.AppliedVoucher{DiscountType: voucherdomain.DiscountFixed, DiscountValue: 50000, VoucherCode: "SAVE50K"}

	result, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentCOD)
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", result.Order.ID)
	assert.Empty(t, result.PaymentURL)
	assert.Equal(t, domain.StateComplete, result.Order.FlowState)

	// 金额为提交时刻现算：2*150000 + 300000 + 运费 - 折扣
	assert.Equal(t, int64(600000), result.Order.Subtotal)
	assert.Equal(t, int64(600000)+domain.FlatShippingFee-50000, result.Order.TotalAmount)
	assert.Equal(t, "SAVE50K", result.Order.VoucherCode)

	// 已购行被移除，勾选集与券清空
	items, _ := f.cart.GetCart(ctx, checkoutSess)
	assert.Empty(t, items)
	sel, _ := f.selection.Load(ctx, checkoutSess, items)
	assert.Empty(t, sel)
	assert.True(t, f.vouchers.removed)

	// 本地记录已落终态
	record, err := f.records.FindByID(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateComplete, record.FlowState)
	assert.Equal(t, domain.PaymentPaid, record.PaymentStatus)
}

func TestConfirmCODKeepsUnselectedLines(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, false)
	f.setAddress(t)

	items, _ := f.cart.GetCart(ctx, checkoutSess)
	_, err := f.selection.Toggle(ctx, checkoutSess, items, "10-M")
	require.NoError(t, err)

	_, err = f.orch.Confirm(ctx, checkoutSess, domain.PaymentCOD)
	require.NoError(t, err)

	// 未勾选的行留在购物车里
	left, _ := f.cart.GetCart(ctx, checkoutSess)
	require.Len(t, left, 1)
	assert.Equal(t, int64(11), left[0].ProductID)
}

func TestConfirmRequiresAddress(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart(t, true)

	_, err := f.orch.Confirm(context.Background(), checkoutSess, domain.PaymentCOD)
	assert.ErrorIs(t, err, domain.ErrMissingAddress)
}

func TestConfirmRequiresSelection(t *testing.T) {
	f := newCheckoutFixture(t)
	f.fillCart(t, false)
	f.setAddress(t)

	_, err := f.orch.Confirm(context.Background(), checkoutSess, domain.PaymentCOD)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
}

func TestConfirmCreateFailureLeavesEverythingIntact(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)
	f.vouchers.voucher = &voucherdomain.AppliedVoucher{DiscountType: voucherdomain.DiscountFixed, DiscountValue: 50000}
	f.orders.createErr = errors.New("inventory conflict")

	_, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentCOD)
	assert.ErrorIs(t, err, domain.ErrOrderCreateFailed)

	// 购物车、勾选集、券全部原样保留，可直接重试
	items, _ := f.cart.GetCart(ctx, checkoutSess)
	assert.Len(t, items, 2)
	sel, _ := f.selection.Load(ctx, checkoutSess, items)
	assert.Len(t, sel, 2)
	assert.NotNil(t, f.vouchers.voucher)
	assert.False(t, f.vouchers.removed)
}

func TestConfirmVNPayDefersCleanup(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)

	result, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentVNPay)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.vnpay.vn/tx/1", result.PaymentURL)
	assert.Equal(t, domain.StatePaymentPending, result.Order.FlowState)

	// 支付尚未确认：购物车保持原样，快照已落盘等待收尾
	items, _ := f.cart.GetCart(ctx, checkoutSess)
	assert.Len(t, items, 2)
	snapshot, err := f.store.Get(ctx, "selected_cart_keys:s1:ORD-1")
	require.NoError(t, err)
	assert.Contains(t, snapshot, "10-M")

	record, err := f.records.FindByID(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaymentPending, record.FlowState)
}

func TestConfirmVNPayPaymentInitFailure(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)
	f.payments.err = errors.New("gateway unavailable")

	_, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentVNPay)
	assert.ErrorIs(t, err, domain.ErrPaymentInitFailed)

	// 订单已创建但未进入支付等待，购物车不动
	record, err := f.records.FindByID(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateOrderCreated, record.FlowState)
	items, _ := f.cart.GetCart(ctx, checkoutSess)
	assert.Len(t, items, 2)
}

func TestFinalizePaidUsesSnapshotNotCurrentSelection(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)

	_, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentVNPay)
	require.NoError(t, err)

	// 等待支付期间用户改了勾选，清理仍按下单时刻的快照进行
	items, _ := f.cart.GetCart(ctx, checkoutSess)
	_, err = f.selection.ToggleAll(ctx, checkoutSess, items)
	require.NoError(t, err)

	require.NoError(t, f.orch.FinalizePaid(ctx, checkoutSess, "ORD-1"))

	left, _ := f.cart.GetCart(ctx, checkoutSess)
	assert.Empty(t, left)
	_, err = f.store.Get(ctx, "selected_cart_keys:s1:ORD-1")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	record, _ := f.records.FindByID(ctx, "ORD-1")
	assert.Equal(t, domain.StateComplete, record.FlowState)
}

func TestCancelOrderGating(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)

	f.orders.statuses = []port.OrderStatusInfo{{OrderID: "ORD-9", Status: domain.OrderShipping}}
	err := f.orch.CancelOrder(ctx, checkoutSess, "ORD-9", "changed my mind")
	assert.ErrorIs(t, err, domain.ErrOrderNotCancellable)
	assert.Empty(t, f.orders.cancelled)

	f.orders.statuses = []port.OrderStatusInfo{{OrderID: "ORD-9", Status: domain.OrderPending}}
	f.orders.statusIdx = 0
	err = f.orch.CancelOrder(ctx, checkoutSess, "ORD-9", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, []string{"ORD-9"}, f.orders.cancelled)
}

func TestCancelOtherOrderKeepsPendingSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)
	f.setAddress(t)

	_, err := f.orch.Confirm(ctx, checkoutSess, domain.PaymentVNPay)
	require.NoError(t, err)

	// 等待支付期间取消同会话的另一笔旧订单，不能动到待支付订单的快照
	f.orders.statuses = []port.OrderStatusInfo{{OrderID: "ORD-OLD", Status: domain.OrderPending}}
	require.NoError(t, f.orch.CancelOrder(ctx, checkoutSess, "ORD-OLD", "ordered twice"))

	snapshot, err := f.store.Get(ctx, "selected_cart_keys:s1:ORD-1")
	require.NoError(t, err)
	assert.Contains(t, snapshot, "10-M")

	// 支付确认后仍按快照完成清理
	require.NoError(t, f.orch.FinalizePaid(ctx, checkoutSess, "ORD-1"))
	left, _ := f.cart.GetCart(ctx, checkoutSess)
	assert.Empty(t, left)
}

func TestQuoteReflectsSelectionAndVoucher(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	f.fillCart(t, true)

	quote, err := f.orch.Quote(ctx, checkoutSess)
	require.NoError(t, err)
	assert.Equal(t, int64(600000), quote.Subtotal)
	assert.Equal(t, 2, quote.SelectedCount)

	f.vouchers.voucher = &voucherdomain.AppliedVoucher{DiscountType: voucherdomain.DiscountPercentage, DiscountValue: 10}
	quote, err = f.orch.Quote(ctx, checkoutSess)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), quote.Discount)
}
