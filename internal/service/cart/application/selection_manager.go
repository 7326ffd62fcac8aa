// internal/service/cart/application/selection_manager.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/constants"
	"bazaar/internal/pkg/kvstore"
	"bazaar/internal/service/cart/domain"
)

// SelectionManager 维护哪些购物车行被勾选进下次结算。
// 勾选集是纯本地状态，不与服务端同步；每次变更后立即落盘，
// 每次读取都与当前购物车求交集，保证不残留指向已删除行的悬空键。
type SelectionManager struct {
	store  kvstore.Store
	tracer trace.Tracer
}

// NewSelectionManager 创建勾选集管理器。
func NewSelectionManager(store kvstore.Store, tracer trace.Tracer) *SelectionManager {
	return &SelectionManager{store: store, tracer: tracer}
}

func (m *SelectionManager) key(sess domain.Session) string {
	return fmt.Sprintf("%s:%s", constants.SelectedItemsKeyPrefix, sess.ID)
}

// Load 读取持久化的勾选集，并按当前购物车裁剪掉失效键。
// 裁剪结果回写存储，使持久化状态与返回值一致。
func (m *SelectionManager) Load(ctx context.Context, sess domain.Session, cart []domain.CartItem) (domain.Selection, error) {
	ctx, span := m.tracer.Start(ctx, "selection.Load")
	defer span.End()

	raw, err := m.store.Get(ctx, m.key(sess))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return domain.NewSelection(), nil
		}
		span.RecordError(err)
		return nil, err
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		// 损坏的勾选集当空集处理，不阻塞购物车页面
		return domain.NewSelection(), nil
	}

	selection := domain.NewSelection(keys...).Intersect(cart)
	if len(selection) != len(keys) {
		if err := m.persist(ctx, sess, selection); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	return selection, nil
}

// Toggle 翻转一个键的勾选状态并立即持久化。
func (m *SelectionManager) Toggle(ctx context.Context, sess domain.Session, cart []domain.CartItem, key string) (domain.Selection, error) {
	ctx, span := m.tracer.Start(ctx, "selection.Toggle")
	defer span.End()

	selection, err := m.Load(ctx, sess, cart)
	if err != nil {
		return nil, err
	}
	selection.Toggle(key)
	// 勾选的键必须指向现存行
	selection = selection.Intersect(cart)

	if err := m.persist(ctx, sess, selection); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return selection, nil
}

// ToggleAll 全选/全不选：当前勾选数等于购物车行数时清空，否则全选。
func (m *SelectionManager) ToggleAll(ctx context.Context, sess domain.Session, cart []domain.CartItem) (domain.Selection, error) {
	ctx, span := m.tracer.Start(ctx, "selection.ToggleAll")
	defer span.End()

	selection, err := m.Load(ctx, sess, cart)
	if err != nil {
		return nil, err
	}

	if len(selection) == len(cart) {
		selection = domain.NewSelection()
	} else {
		selection = domain.NewSelection(domain.Keys(cart)...)
	}

	if err := m.persist(ctx, sess, selection); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return selection, nil
}

// Reconcile 在购物车发生变化后调用，把勾选集裁剪到仍然存在的行并持久化。
func (m *SelectionManager) Reconcile(ctx context.Context, sess domain.Session, cart []domain.CartItem) (domain.Selection, error) {
	return m.Load(ctx, sess, cart)
}

// Clear 清空勾选集（购买完成后调用）。
func (m *SelectionManager) Clear(ctx context.Context, sess domain.Session) error {
	return m.store.Delete(ctx, m.key(sess))
}

func (m *SelectionManager) persist(ctx context.Context, sess domain.Session, selection domain.Selection) error {
	raw, err := json.Marshal(selection.Keys())
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.key(sess), string(raw))
}
