// internal/service/cart/infrastructure/local_backend.go
package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bazaar/internal/pkg/constants"
	"bazaar/internal/pkg/kvstore"
	"bazaar/internal/service/cart/domain"
)

// LocalCartBackend 是游客购物车的实现，整车以 JSON 形式存在键值存储里。
// 构造函数注入存储依赖，测试可以换成内存实现。
type LocalCartBackend struct {
	store kvstore.Store
}

// NewLocalCartBackend 创建一个游客购物车后端。
func NewLocalCartBackend(store kvstore.Store) *LocalCartBackend {
	return &LocalCartBackend{store: store}
}

func (b *LocalCartBackend) cartKey(sess domain.Session) string {
	return fmt.Sprintf("%s:%s", constants.GuestCartKeyPrefix, sess.ID)
}

func (b *LocalCartBackend) load(ctx context.Context, sess domain.Session) ([]domain.CartItem, error) {
	raw, err := b.store.Get(ctx, b.cartKey(sess))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("corrupt guest cart for session %s: %w", sess.ID, err)
	}
	return items, nil
}

func (b *LocalCartBackend) save(ctx context.Context, sess domain.Session, items []domain.CartItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, b.cartKey(sess), string(raw))
}

func (b *LocalCartBackend) Items(ctx context.Context, sess domain.Session) ([]domain.CartItem, error) {
	return b.load(ctx, sess)
}

func (b *LocalCartBackend) Add(ctx context.Context, sess domain.Session, product domain.Product, quantity int64, selectedSize string) error {
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}
	if quantity > product.Stock {
		return domain.ErrOutOfStock
	}

	items, err := b.load(ctx, sess)
	if err != nil {
		return err
	}

	// 同 (productID, size) 的行按数量合并，绝不追加重复行
	if idx := domain.FindLine(items, product.ID, selectedSize); idx >= 0 {
		merged := items[idx].Quantity + quantity
		if merged > items[idx].Stock {
			return domain.ErrExceedsStock
		}
		items[idx].Quantity = merged
		return b.save(ctx, sess, items)
	}

	items = append(items, domain.CartItem{
		ID:            product.ID, // 游客态行 ID 即商品 ID
		ProductID:     product.ID,
		Name:          product.Name,
		Image:         product.Image,
		SalePrice:     product.SalePrice,
		DiscountPrice: product.DiscountPrice,
		Quantity:      quantity,
		SelectedSize:  selectedSize,
		Stock:         product.Stock,
	})
	return b.save(ctx, sess, items)
}

func (b *LocalCartBackend) UpdateQuantity(ctx context.Context, sess domain.Session, itemID, quantity int64, selectedSize string) error {
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	items, err := b.load(ctx, sess)
	if err != nil {
		return err
	}

	for idx := range items {
		if items[idx].ID == itemID && items[idx].SelectedSize == selectedSize {
			if quantity > items[idx].Stock {
				return domain.ErrOutOfStock
			}
			items[idx].Quantity = quantity
			return b.save(ctx, sess, items)
		}
	}
	return domain.ErrItemNotFound
}

func (b *LocalCartBackend) Remove(ctx context.Context, sess domain.Session, itemID int64, selectedSize string) error {
	items, err := b.load(ctx, sess)
	if err != nil {
		return err
	}

	kept := items[:0]
	removed := false
	for _, it := range items {
		if it.ID == itemID && it.SelectedSize == selectedSize {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	if !removed {
		return domain.ErrItemNotFound
	}
	return b.save(ctx, sess, kept)
}

// RemoveByKeys 用一次读改写删除整批行。单键的 Remove 是对同一个
// JSON 快照的非原子竞争，批量删除必须走这里而不是并发的单键删除。
func (b *LocalCartBackend) RemoveByKeys(ctx context.Context, sess domain.Session, keys []string) (map[string]error, error) {
	items, err := b.load(ctx, sess)
	if err != nil {
		return nil, err
	}

	wanted := domain.NewSelection(keys...)
	kept := items[:0]
	results := make(map[string]error)
	for _, it := range items {
		if wanted.Has(it.Key()) {
			results[it.Key()] = nil
			continue
		}
		kept = append(kept, it)
	}
	if len(results) == 0 {
		return results, nil
	}

	if err := b.save(ctx, sess, kept); err != nil {
		for key := range results {
			results[key] = err
		}
	}
	return results, nil
}

func (b *LocalCartBackend) Clear(ctx context.Context, sess domain.Session) error {
	return b.store.Delete(ctx, b.cartKey(sess))
}
