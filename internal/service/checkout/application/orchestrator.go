// internal/service/checkout/application/orchestrator.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/constants"
	"bazaar/internal/pkg/kvstore"
	"bazaar/internal/pkg/logger"
	cartapp "bazaar/internal/service/cart/application"
	cartdomain "bazaar/internal/service/cart/domain"
	"bazaar/internal/service/checkout/domain"
	"bazaar/internal/service/checkout/port"
	voucherdomain "bazaar/internal/service/voucher/domain"
)

// VoucherEngine 是编排器对券引擎的依赖面：读生效券、结算后销券。
type VoucherEngine interface {
	Applied(ctx context.Context, sess cartdomain.Session) (*voucherdomain.AppliedVoucher, error)
	Remove(ctx context.Context, sess cartdomain.Session) error
}

// Orchestrator 驱动一次完整的结算：地址 → 报价 → 下单 → 支付 → 清理。
// 金额在提交时刻现算，绝不信任调用方或更早步骤传来的数值。
type Orchestrator struct {
	cart      *cartapp.CartService
	selection *cartapp.SelectionManager
	vouchers  VoucherEngine
	orders    port.OrderGateway
	payments  port.PaymentGateway
	records   port.OrderRecordRepository
	events    port.CheckoutEventProducer
	store     kvstore.Store
	tracer    trace.Tracer

	quotes domain.QuoteCache
}

func NewOrchestrator(
	cart *cartapp.CartService,
	selection *cartapp.SelectionManager,
	vouchers VoucherEngine,
	orders port.OrderGateway,
	payments port.PaymentGateway,
	records port.OrderRecordRepository,
	events port.CheckoutEventProducer,
	store kvstore.Store,
	tracer trace.Tracer,
) *Orchestrator {
	if events == nil {
		events = port.NopEventProducer{}
	}
	return &Orchestrator{
		cart:      cart,
		selection: selection,
		vouchers:  vouchers,
		orders:    orders,
		payments:  payments,
		records:   records,
		events:    events,
		store:     store,
		tracer:    tracer,
	}
}

func (o *Orchestrator) addressKey(sess cartdomain.Session) string {
	return fmt.Sprintf("%s:%s", constants.CheckoutAddressKeyPrefix, sess.ID)
}

// purchasedKeysKey 按 (会话, 订单) 定位快照。同会话可以同时挂着多笔
// 待支付订单，取消其中一笔不能动到其余订单的快照。
func (o *Orchestrator) purchasedKeysKey(sess cartdomain.Session, orderID string) string {
	return fmt.Sprintf("%s:%s:%s", constants.PurchasedKeysKeyPrefix, sess.ID, orderID)
}

// SelectAddress 记录本次结算使用的收货地址。
func (o *Orchestrator) SelectAddress(ctx context.Context, sess cartdomain.Session, addr domain.Address) error {
	ctx, span := o.tracer.Start(ctx, "checkout.SelectAddress")
	defer span.End()

	if addr.Empty() {
		return domain.ErrMissingAddress
	}
	raw, err := json.Marshal(addr)
	if err != nil {
		return err
	}
	return o.store.Set(ctx, o.addressKey(sess), string(raw))
}

// Address 返回已选的收货地址，尚未选择时返回 ErrMissingAddress。
func (o *Orchestrator) Address(ctx context.Context, sess cartdomain.Session) (domain.Address, error) {
	raw, err := o.store.Get(ctx, o.addressKey(sess))
	if errors.Is(err, kvstore.ErrNotFound) {
		return domain.Address{}, domain.ErrMissingAddress
	}
	if err != nil {
		return domain.Address{}, err
	}
	var addr domain.Address
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return domain.Address{}, domain.ErrMissingAddress
	}
	if addr.Empty() {
		return domain.Address{}, domain.ErrMissingAddress
	}
	return addr, nil
}

// Quote 对当前 (购物车, 勾选集, 生效券) 现算一份报价。
func (o *Orchestrator) Quote(ctx context.Context, sess cartdomain.Session) (domain.Quote, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.Quote")
	defer span.End()

	items, selection, voucher, err := o.snapshot(ctx, sess)
	if err != nil {
		span.RecordError(err)
		return domain.Quote{}, err
	}
	return o.quotes.Get(items, selection, voucher), nil
}

// snapshot 拉取计价三要素的最新状态。勾选集先与购物车对账，幽灵键不会参与计价。
func (o *Orchestrator) snapshot(ctx context.Context, sess cartdomain.Session) ([]cartdomain.CartItem, cartdomain.Selection, *voucherdomain.AppliedVoucher, error) {
	items, err := o.cart.GetCart(ctx, sess)
	if err != nil {
		return nil, nil, nil, err
	}
	selection, err := o.selection.Reconcile(ctx, sess, items)
	if err != nil {
		return nil, nil, nil, err
	}
	voucher, err := o.vouchers.Applied(ctx, sess)
	if err != nil {
		return nil, nil, nil, err
	}
	return items, selection, voucher, nil
}

// ConfirmResult 是一次成功提交的产物。
// VNPAY 订单带跳转地址且尚未完成，COD 订单提交即完成。
type ConfirmResult struct {
	Order      *domain.Order
	PaymentURL string
}

// Confirm 提交订单。勾选为空或地址缺失时拒绝；
// 下单失败时购物车、勾选集、券全部原样保留。
func (o *Orchestrator) Confirm(ctx context.Context, sess cartdomain.Session, method domain.PaymentMethod) (*ConfirmResult, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.Confirm")
	defer span.End()

	addr, err := o.Address(ctx, sess)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	items, selection, voucher, err := o.snapshot(ctx, sess)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	quote := domain.ComputeQuote(items, selection, voucher)
	if quote.SelectedCount == 0 {
		return nil, domain.ErrEmptySelection
	}

	selected := selection.SelectedItems(items)
	lines := make([]domain.OrderLine, 0, len(selected))
	for _, it := range selected {
		lines = append(lines, domain.OrderLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			PriceBuy:  it.EffectiveUnitPrice(),
		})
	}

	voucherCode := ""
	if voucher != nil {
		voucherCode = voucher.VoucherCode
	}
	order, err := domain.NewOrder(sess.ID, addr, method, quote, lines, voucherCode)
	if err != nil {
		return nil, err
	}

	purchasedKeys := cartdomain.Keys(selected)

	cctx := &CheckoutContext{
		Ctx:      ctx,
		Tracer:   o.tracer,
		Session:  sess,
		Order:    order,
		Orders:   o.orders,
		Payments: o.payments,
		Records:  o.records,
		Events:   o.events,
		Finalize: func(ctx context.Context) error {
			return o.cleanupAfterPurchase(ctx, sess, order.ID, purchasedKeys)
		},
	}

	chain := &CreateOrderStep{}
	chain.SetNext(&PaymentStep{}).SetNext(&CleanupStep{})
	if err := chain.Handle(cctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout chain aborted")
		return nil, err
	}

	// 订单号由上游下单时生成，快照要等链走完才能按 (会话, 订单) 落键。
	// COD 在链内已完成清理，用不到快照；只有待支付的订单才需要留。
	if !order.FlowState.Terminal() {
		if err := o.savePurchasedKeys(ctx, sess, order.ID, purchasedKeys); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to snapshot purchased keys")
		}
	}

	return &ConfirmResult{Order: order, PaymentURL: cctx.PaymentURL}, nil
}

func (o *Orchestrator) savePurchasedKeys(ctx context.Context, sess cartdomain.Session, orderID string, keys []string) error {
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return o.store.Set(ctx, o.purchasedKeysKey(sess, orderID), string(raw))
}

func (o *Orchestrator) loadPurchasedKeys(ctx context.Context, sess cartdomain.Session, orderID string) ([]string, error) {
	raw, err := o.store.Get(ctx, o.purchasedKeysKey(sess, orderID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, nil
	}
	return keys, nil
}

// cleanupAfterPurchase 移除已购行并清空勾选集、券与快照。
// 任何一步失败都不回滚订单，残留由下次结算前的对账兜底。
func (o *Orchestrator) cleanupAfterPurchase(ctx context.Context, sess cartdomain.Session, orderID string, keys []string) error {
	result, err := o.cart.RemovePurchasedItems(ctx, sess, keys)
	if err != nil {
		return err
	}
	if failed := result.FailedKeys(); len(failed) > 0 {
		logger.Ctx(ctx).Warn().Strs("keys", failed).Msg("some purchased items could not be removed from cart")
	}
	if err := o.selection.Clear(ctx, sess); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to clear selection after purchase")
	}
	if err := o.vouchers.Remove(ctx, sess); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to clear applied voucher after purchase")
	}
	if err := o.store.Delete(ctx, o.purchasedKeysKey(sess, orderID)); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to drop purchased keys snapshot")
	}
	return nil
}

// FinalizePaid 在外部支付确认后收尾：按下单时刻的快照清理购物车，
// 更新本地订单记录并发布结算完成事件。轮询器在看到 PAID 时调用。
func (o *Orchestrator) FinalizePaid(ctx context.Context, sess cartdomain.Session, orderID string) error {
	ctx, span := o.tracer.Start(ctx, "checkout.FinalizePaid")
	defer span.End()

	keys, err := o.loadPurchasedKeys(ctx, sess, orderID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to load purchased keys snapshot")
	}
	if len(keys) > 0 {
		if err := o.cleanupAfterPurchase(ctx, sess, orderID, keys); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("cart cleanup after payment failed")
		}
	}

	if err := o.records.UpdateState(ctx, orderID, domain.StateComplete, domain.PaymentPaid); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("failed to record completed state")
	}
	if order, err := o.records.FindByID(ctx, orderID); err == nil {
		if err := o.events.PaymentConfirmed(ctx, order); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("failed to publish payment confirmed event")
		}
	}
	return nil
}

// MarkCheckoutFailed 记录支付被取消。购物车不做任何改动。
func (o *Orchestrator) MarkCheckoutFailed(ctx context.Context, sess cartdomain.Session, orderID, reason string) {
	if err := o.records.UpdateState(ctx, orderID, domain.StateFailed, domain.PaymentUnpaid); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("failed to record failed state")
	}
	if order, err := o.records.FindByID(ctx, orderID); err == nil {
		if err := o.events.CheckoutFailed(ctx, order, reason); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("failed to publish checkout failed event")
		}
	}
	// 只清本订单的快照，同会话其余待支付订单的快照不受影响
	if err := o.store.Delete(ctx, o.purchasedKeysKey(sess, orderID)); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to drop purchased keys snapshot")
	}
}

// CancelOrder 取消订单。先查服务端状态做门禁，发货后的订单直接拒绝。
func (o *Orchestrator) CancelOrder(ctx context.Context, sess cartdomain.Session, orderID, reason string) error {
	ctx, span := o.tracer.Start(ctx, "checkout.CancelOrder")
	defer span.End()

	info, err := o.orders.GetOrder(ctx, sess.AuthToken, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !domain.CanCancel(info.Status) {
		return fmt.Errorf("%w: order is %s", domain.ErrOrderNotCancellable, info.Status)
	}
	if err := o.orders.CancelOrder(ctx, sess.AuthToken, orderID, reason); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel rejected by upstream")
		return err
	}
	o.MarkCheckoutFailed(ctx, sess, orderID, reason)
	return nil
}

// History 返回本服务为该会话创建过的订单。
func (o *Orchestrator) History(ctx context.Context, sess cartdomain.Session) ([]domain.Order, error) {
	return o.records.ListBySession(ctx, sess.ID)
}
