// internal/service/cart/infrastructure/remote_backend.go
package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"bazaar/internal/pkg/constants"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/kvstore"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/cart/domain"
)

// removeByKeysConcurrency 限制批量删除时的并发远端调用数。
const removeByKeysConcurrency = 4

// wireCartItem 是上游后端购物车行的线上形态。
type wireCartItem struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"productId"`
	ProductName   string `json:"productName"`
	ProductImage  string `json:"productImage"`
	SalePrice     int64  `json:"salePrice"`
	DiscountPrice *int64 `json:"discountPrice"`
	Quantity      int64  `json:"quantity"`
	Size          string `json:"size"`
	Stock         int64  `json:"stock"`
}

type wireCart struct {
	Items []wireCartItem `json:"items"`
}

func (w wireCartItem) toDomain() domain.CartItem {
	return domain.CartItem{
		ID:            w.ID,
		ProductID:     w.ProductID,
		Name:          w.ProductName,
		Image:         w.ProductImage,
		SalePrice:     w.SalePrice,
		DiscountPrice: w.DiscountPrice,
		Quantity:      w.Quantity,
		SelectedSize:  w.Size,
		Stock:         w.Stock,
	}
}

// RemoteCartBackend 是登录态购物车的实现：一切以上游后端为准，
// 每次成功读取都写穿到本地缓存；读取失败时退回最近一次缓存（陈旧读兜底）。
// 写操作没有本地回退——远端失败就如实报错，绝不制造本地与远端的双写分叉。
type RemoteCartBackend struct {
	client *httpclient.Client
	cache  kvstore.Store
}

// NewRemoteCartBackend 创建一个远程购物车后端。
func NewRemoteCartBackend(client *httpclient.Client, cache kvstore.Store) *RemoteCartBackend {
	return &RemoteCartBackend{client: client, cache: cache}
}

func (b *RemoteCartBackend) cacheKey(sess domain.Session) string {
	return fmt.Sprintf("%s:%s", constants.CartCacheKeyPrefix, sess.ID)
}

// Items 读取远端购物车。远端不可达时返回本地缓存，此操作对调用方永不报错。
func (b *RemoteCartBackend) Items(ctx context.Context, sess domain.Session) ([]domain.CartItem, error) {
	var wire wireCart
	err := b.client.Get(ctx, constants.CommerceBackend, constants.CartPath, nil, sess.AuthToken, &wire)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("session", sess.ID).Msg("remote cart fetch failed, serving cached copy")
		return b.cachedItems(ctx, sess), nil
	}

	items := make([]domain.CartItem, 0, len(wire.Items))
	for _, w := range wire.Items {
		items = append(items, w.toDomain())
	}

	// 写穿缓存。缓存写失败只是让缓存变陈旧，下次成功读取会自愈，不上抛。
	if raw, err := json.Marshal(items); err == nil {
		if err := b.cache.Set(ctx, b.cacheKey(sess), string(raw)); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to refresh local cart cache")
		}
	}
	return items, nil
}

func (b *RemoteCartBackend) cachedItems(ctx context.Context, sess domain.Session) []domain.CartItem {
	raw, err := b.cache.Get(ctx, b.cacheKey(sess))
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			logger.Ctx(ctx).Warn().Err(err).Msg("cart cache read failed")
		}
		return nil
	}
	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

func (b *RemoteCartBackend) Add(ctx context.Context, sess domain.Session, product domain.Product, quantity int64, selectedSize string) error {
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	// 客户端侧的快照校验；权威校验仍在服务端下单时发生
	if quantity > product.Stock {
		return domain.ErrOutOfStock
	}

	params := url.Values{}
	params.Set("productId", strconv.FormatInt(product.ID, 10))
	params.Set("quantity", strconv.FormatInt(quantity, 10))
	if selectedSize != "" {
		params.Set("size", selectedSize)
	}

	if err := b.client.Post(ctx, constants.CommerceBackend, constants.CartItemsPath, params, sess.AuthToken, nil, nil); err != nil {
		return err
	}

	// 成功后刷新缓存
	_, _ = b.Items(ctx, sess)
	return nil
}

func (b *RemoteCartBackend) UpdateQuantity(ctx context.Context, sess domain.Session, itemID, quantity int64, selectedSize string) error {
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	// 对照最近的购物车快照做库存上界检查
	items, _ := b.Items(ctx, sess)
	idx := -1
	for i, it := range items {
		if it.ID == itemID && it.SelectedSize == selectedSize {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrItemNotFound
	}
	if quantity > items[idx].Stock {
		return domain.ErrOutOfStock
	}

	params := url.Values{}
	params.Set("quantity", strconv.FormatInt(quantity, 10))
	path := fmt.Sprintf("%s/%d", constants.CartItemsPath, itemID)
	if err := b.client.Put(ctx, constants.CommerceBackend, path, params, sess.AuthToken, nil, nil); err != nil {
		return translateNotFound(err)
	}

	_, _ = b.Items(ctx, sess)
	return nil
}

func (b *RemoteCartBackend) Remove(ctx context.Context, sess domain.Session, itemID int64, selectedSize string) error {
	path := fmt.Sprintf("%s/%d", constants.CartItemsPath, itemID)
	if err := b.client.Delete(ctx, constants.CommerceBackend, path, sess.AuthToken); err != nil {
		return translateNotFound(err)
	}

	_, _ = b.Items(ctx, sess)
	return nil
}

// RemoveByKeys 按键批量删除。远端每行是独立资源，逐条删除互不覆盖，
// 可以安全并发；行已不存在（404）等同删除成功。结束后刷新一次缓存。
func (b *RemoteCartBackend) RemoveByKeys(ctx context.Context, sess domain.Session, keys []string) (map[string]error, error) {
	items, err := b.Items(ctx, sess)
	if err != nil {
		return nil, err
	}

	wanted := domain.NewSelection(keys...)
	var matched []domain.CartItem
	for _, it := range items {
		if wanted.Has(it.Key()) {
			matched = append(matched, it)
		}
	}

	results := make(map[string]error, len(matched))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(removeByKeysConcurrency)
	for _, it := range matched {
		g.Go(func() error {
			path := fmt.Sprintf("%s/%d", constants.CartItemsPath, it.ID)
			removeErr := b.client.Delete(ctx, constants.CommerceBackend, path, sess.AuthToken)
			if errors.Is(translateNotFound(removeErr), domain.ErrItemNotFound) {
				removeErr = nil
			}
			mu.Lock()
			results[it.Key()] = removeErr
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	_, _ = b.Items(ctx, sess)
	return results, nil
}

// translateNotFound 把上游 404 翻译成领域错误，与本地后端语义保持一致。
func translateNotFound(err error) error {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return domain.ErrItemNotFound
	}
	return err
}

func (b *RemoteCartBackend) Clear(ctx context.Context, sess domain.Session) error {
	if err := b.client.Delete(ctx, constants.CommerceBackend, constants.CartPath, sess.AuthToken); err != nil {
		return err
	}
	return b.cache.Delete(ctx, b.cacheKey(sess))
}
