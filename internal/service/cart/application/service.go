// internal/service/cart/application/service.go
package application

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/cart/domain"
	"bazaar/internal/service/cart/port"
)

// CartService 对外呈现统一的购物车视图，不区分游客还是登录用户。
// 后端选择只发生在 backendFor 这一处边界上。
type CartService struct {
	local  port.CartBackend
	remote port.CartBackend
	locker port.MutationLocker
	tracer trace.Tracer

	subMu       sync.Mutex
	subscribers map[string]map[int]chan int
	nextSubID   int
}

// NewCartService 创建购物车应用服务。
func NewCartService(local, remote port.CartBackend, locker port.MutationLocker, tracer trace.Tracer) *CartService {
	if locker == nil {
		locker = port.NoopLocker{}
	}
	return &CartService{
		local:       local,
		remote:      remote,
		locker:      locker,
		tracer:      tracer,
		subscribers: make(map[string]map[int]chan int),
	}
}

// backendFor 按会话认证状态选择后端。这是全服务唯一的一处判断。
func (s *CartService) backendFor(sess domain.Session) port.CartBackend {
	if sess.Authenticated() {
		return s.remote
	}
	return s.local
}

func (s *CartService) lockResource(sess domain.Session) string {
	return "cart-" + sess.ID
}

// GetCart 返回购物车当前全部行。
// 登录态下远端不可达时由后端退回本地缓存，此操作对调用方永不报错。
func (s *CartService) GetCart(ctx context.Context, sess domain.Session) ([]domain.CartItem, error) {
	ctx, span := s.tracer.Start(ctx, "cart.GetCart")
	defer span.End()

	items, err := s.backendFor(sess).Items(ctx, sess)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("cart.size", len(items)))
	return items, nil
}

// AddItem 加购一个商品。数量超出库存快照时拒绝，购物车保持不变。
func (s *CartService) AddItem(ctx context.Context, sess domain.Session, product domain.Product, quantity int64, selectedSize string) error {
	ctx, span := s.tracer.Start(ctx, "cart.AddItem")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", product.ID),
		attribute.Int64("quantity", quantity),
	)

	unlock, err := s.locker.Lock(ctx, s.lockResource(sess))
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer unlock()

	if err := s.backendFor(sess).Add(ctx, sess, product, quantity, selectedSize); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add item failed")
		return err
	}

	s.notify(ctx, sess)
	return nil
}

// UpdateQuantity 将匹配行的数量改为 quantity。
func (s *CartService) UpdateQuantity(ctx context.Context, sess domain.Session, itemID, quantity int64, selectedSize string) error {
	ctx, span := s.tracer.Start(ctx, "cart.UpdateQuantity")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, s.lockResource(sess))
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer unlock()

	if err := s.backendFor(sess).UpdateQuantity(ctx, sess, itemID, quantity, selectedSize); err != nil {
		span.RecordError(err)
		return err
	}

	s.notify(ctx, sess)
	return nil
}

// RemoveItem 删除匹配行。
func (s *CartService) RemoveItem(ctx context.Context, sess domain.Session, itemID int64, selectedSize string) error {
	ctx, span := s.tracer.Start(ctx, "cart.RemoveItem")
	defer span.End()

	unlock, err := s.locker.Lock(ctx, s.lockResource(sess))
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer unlock()

	if err := s.backendFor(sess).Remove(ctx, sess, itemID, selectedSize); err != nil {
		span.RecordError(err)
		return err
	}

	s.notify(ctx, sess)
	return nil
}

// RemovePurchasedItems 只删除复合键命中 keys 的行，下单后调用，
// 未购买的行保持原样。逐条尽力而为：单条失败不阻止其余条目。
func (s *CartService) RemovePurchasedItems(ctx context.Context, sess domain.Session, keys []string) (BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "cart.RemovePurchasedItems")
	defer span.End()
	span.SetAttributes(attribute.Int("keys.count", len(keys)))

	unlock, err := s.locker.Lock(ctx, s.lockResource(sess))
	if err != nil {
		span.RecordError(err)
		return BatchResult{}, err
	}
	defer unlock()

	outcome, err := s.backendFor(sess).RemoveByKeys(ctx, sess, keys)
	if err != nil {
		span.RecordError(err)
		return BatchResult{}, err
	}

	results := make([]BatchItemResult, 0, len(outcome))
	for _, key := range keys {
		removeErr, hit := outcome[key]
		if !hit {
			continue
		}
		if removeErr != nil {
			logger.Ctx(ctx).Error().Err(removeErr).Str("key", key).Msg("failed to remove purchased item, continuing with the rest")
		}
		results = append(results, BatchItemResult{Key: key, Err: removeErr})
	}

	s.notify(ctx, sess)
	return BatchResult{Results: results}, nil
}

// ClearCart 清空购物车。
func (s *CartService) ClearCart(ctx context.Context, sess domain.Session) error {
	ctx, span := s.tracer.Start(ctx, "cart.ClearCart")
	defer span.End()

	if err := s.backendFor(sess).Clear(ctx, sess); err != nil {
		span.RecordError(err)
		return err
	}

	s.notify(ctx, sess)
	return nil
}

// SyncAfterLogin 把非空的游客购物车逐行迁移到远端购物车。
// 每行是一次独立的远端调用；部分失败时游客缓存保留，
// 调用方拿到逐条结果后自行决定重试。全部成功才删除游客缓存。
func (s *CartService) SyncAfterLogin(ctx context.Context, sess domain.Session) (BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "cart.SyncAfterLogin")
	defer span.End()

	guestItems, err := s.local.Items(ctx, sess)
	if err != nil {
		span.RecordError(err)
		return BatchResult{}, err
	}
	if len(guestItems) == 0 {
		return BatchResult{}, nil
	}

	results := make([]BatchItemResult, 0, len(guestItems))
	for _, it := range guestItems {
		product := domain.Product{
			ID:            it.ProductID,
			Name:          it.Name,
			Image:         it.Image,
			SalePrice:     it.SalePrice,
			DiscountPrice: it.DiscountPrice,
			Stock:         it.Stock,
		}
		addErr := s.remote.Add(ctx, sess, product, it.Quantity, it.SelectedSize)
		if addErr != nil {
			logger.Ctx(ctx).Error().Err(addErr).Str("key", it.Key()).Msg("failed to sync guest cart line, continuing with the rest")
		}
		results = append(results, BatchItemResult{Key: it.Key(), Err: addErr})
	}

	batch := BatchResult{Results: results}
	if batch.AllOK() {
		if err := s.local.Clear(ctx, sess); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to drop guest cart after sync")
		}
	}

	// 迁移后以远端为准刷新一次
	if _, err := s.remote.Items(ctx, sess); err != nil {
		span.RecordError(err)
	}

	s.notify(ctx, sess)
	return batch, nil
}

// Subscribe 订阅某个会话购物车行数的变化，返回只读通道和退订函数。
// 消费方在退出时必须调用退订函数，否则通道会泄漏。
func (s *CartService) Subscribe(sessionID string) (<-chan int, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subscribers[sessionID] == nil {
		s.subscribers[sessionID] = make(map[int]chan int)
	}
	id := s.nextSubID
	s.nextSubID++

	ch := make(chan int, 8)
	s.subscribers[sessionID][id] = ch

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if subs, ok := s.subscribers[sessionID]; ok {
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
			}
			if len(subs) == 0 {
				delete(s.subscribers, sessionID)
			}
		}
	}
	return ch, unsubscribe
}

// notify 把当前行数推送给该会话的所有订阅者。
// 订阅者只收到数量而不是整车内容，角标场景足够。
func (s *CartService) notify(ctx context.Context, sess domain.Session) {
	items, err := s.backendFor(sess).Items(ctx, sess)
	if err != nil {
		return
	}
	count := len(items)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers[sess.ID] {
		select {
		case ch <- count:
		default:
			// 消费慢的订阅者丢最旧的一条，腾出位置放最新行数，不阻塞写路径
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- count:
			default:
			}
		}
	}
}
