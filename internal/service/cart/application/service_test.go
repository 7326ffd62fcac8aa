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
	"bazaar/internal/service/cart/domain"
	"bazaar/internal/service/cart/infrastructure"
	"bazaar/internal/service/cart/port"
)

// fakeBackend 是可编程的购物车后端，按 (productID, size) 注入单行失败。
type fakeBackend struct {
	mu        sync.Mutex
	items     []domain.CartItem
	addErrs   map[string]error
	removeErr map[int64]error
	itemsErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{addErrs: make(map[string]error), removeErr: make(map[int64]error)}
}

func (f *fakeBackend) Items(context.Context, domain.Session) ([]domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	out := make([]domain.CartItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeBackend) Add(_ context.Context, _ domain.Session, product domain.Product, quantity int64, selectedSize string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.addErrs[domain.KeyOf(product.ID, selectedSize)]; err != nil {
		return err
	}
	if idx := domain.FindLine(f.items, product.ID, selectedSize); idx >= 0 {
		f.items[idx].Quantity += quantity
		return nil
	}
	f.items = append(f.items, domain.CartItem{
		ID: product.ID, ProductID: product.ID, Name: product.Name,
		SalePrice: product.SalePrice, Quantity: quantity,
		SelectedSize: selectedSize, Stock: product.Stock,
	})
	return nil
}

func (f *fakeBackend) UpdateQuantity(_ context.Context, _ domain.Session, itemID, quantity int64, selectedSize string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for idx := range f.items {
		if f.items[idx].ID == itemID && f.items[idx].SelectedSize == selectedSize {
			f.items[idx].Quantity = quantity
			return nil
		}
	}
	return domain.ErrItemNotFound
}

func (f *fakeBackend) Remove(_ context.Context, _ domain.Session, itemID int64, selectedSize string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[itemID]; err != nil {
		return err
	}
	for idx, it := range f.items {
		if it.ID == itemID && it.SelectedSize == selectedSize {
			f.items = append(f.items[:idx], f.items[idx+1:]...)
			return nil
		}
	}
	return domain.ErrItemNotFound
}

func (f *fakeBackend) RemoveByKeys(_ context.Context, _ domain.Session, keys []string) (map[string]error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	wanted := domain.NewSelection(keys...)
	kept := f.items[:0]
	results := make(map[string]error)
	for _, it := range f.items {
		if !wanted.Has(it.Key()) {
			kept = append(kept, it)
			continue
		}
		if err := f.removeErr[it.ID]; err != nil {
			results[it.Key()] = err
			kept = append(kept, it)
			continue
		}
		results[it.Key()] = nil
	}
	f.items = kept
	return results, nil
}

func (f *fakeBackend) Clear(context.Context, domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	return nil
}

func newTestService(local, remote *fakeBackend) *CartService {
	return NewCartService(local, remote, port.NoopLocker{}, otel.Tracer("test"))
}

var (
	guest = domain.Session{ID: "s1"}
	user  = domain.Session{ID: "s1", AuthToken: "jwt"}
)

func TestBackendSelectionByAuthState(t *testing.T) {
	ctx := context.Background()
	local, remote := newFakeBackend(), newFakeBackend()
	local.items = []domain.CartItem{{ID: 1, ProductID: 1}}
	remote.items = []domain.CartItem{{ID: 2, ProductID: 2}, {ID: 3, ProductID: 3}}
	svc := newTestService(local, remote)

	items, err := svc.GetCart(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = svc.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSyncAfterLoginAllOK(t *testing.T) {
	ctx := context.Background()
	local, remote := newFakeBackend(), newFakeBackend()
	local.items = []domain.CartItem{
		{ID: 10, ProductID: 10, Quantity: 2, SelectedSize: "M", Stock: 5},
		{ID: 11, ProductID: 11, Quantity: 1, Stock: 5},
	}
	svc := newTestService(local, remote)

	batch, err := svc.SyncAfterLogin(ctx, user)
	require.NoError(t, err)
	assert.True(t, batch.AllOK())
	assert.Len(t, remote.items, 2)

	// 全部成功后游客缓存被清空
	guestItems, _ := local.Items(ctx, guest)
	assert.Empty(t, guestItems)
}

func TestSyncAfterLoginPartialFailureKeepsGuestCart(t *testing.T) {
	ctx := context.Background()
	local, remote := newFakeBackend(), newFakeBackend()
	local.items = []domain.CartItem{
		{ID: 10, ProductID: 10, Quantity: 2, SelectedSize: "M", Stock: 5},
		{ID: 11, ProductID: 11, Quantity: 1, Stock: 5},
	}
	remote.addErrs["11-default"] = errors.New("upstream rejected")
	svc := newTestService(local, remote)

	batch, err := svc.SyncAfterLogin(ctx, user)
	require.NoError(t, err)
	assert.False(t, batch.AllOK())
	assert.Equal(t, []string{"11-default"}, batch.FailedKeys())

	// 成功的行已经迁到远端
	assert.Len(t, remote.items, 1)
	// 有失败行时游客缓存保留，调用方可重试
	guestItems, _ := local.Items(ctx, guest)
	assert.Len(t, guestItems, 2)
}

func TestSyncAfterLoginEmptyGuestCart(t *testing.T) {
	local, remote := newFakeBackend(), newFakeBackend()
	svc := newTestService(local, remote)

	batch, err := svc.SyncAfterLogin(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	assert.Empty(t, remote.items)
}

func TestRemovePurchasedItemsPartialFailure(t *testing.T) {
	ctx := context.Background()
	local, remote := newFakeBackend(), newFakeBackend()
	remote.items = []domain.CartItem{
		{ID: 1, ProductID: 1, SelectedSize: "M"},
		{ID: 2, ProductID: 2},
		{ID: 3, ProductID: 3},
	}
	remote.removeErr[2] = errors.New("remove rejected")
	svc := newTestService(local, remote)

	// 键 3-default 保留：只删除快照中的键，键不存在的行被跳过
	batch, err := svc.RemovePurchasedItems(ctx, user, []string{"1-M", "2-default", "9-default"})
	require.NoError(t, err)
	assert.Len(t, batch.Results, 2)
	assert.Equal(t, []string{"2-default"}, batch.FailedKeys())

	left, _ := remote.Items(ctx, user)
	require.Len(t, left, 2)
	assert.Equal(t, int64(2), left[0].ID)
	assert.Equal(t, int64(3), left[1].ID)
}

func TestRemovePurchasedItemsManyLines(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	backend := infrastructure.NewLocalCartBackend(store)
	svc := NewCartService(backend, newFakeBackend(), port.NoopLocker{}, otel.Tracer("test"))

	var keys []string
	for i := int64(1); i <= 40; i++ {
		require.NoError(t, svc.AddItem(ctx, guest, domain.Product{ID: i, SalePrice: 1000, Stock: 10}, 1, ""), i)
		keys = append(keys, domain.KeyOf(i, ""))
	}

	// 整批删除是后端的一次读改写，不存在逐条删除互相覆盖把行带回来的窗口
	batch, err := svc.RemovePurchasedItems(ctx, guest, keys)
	require.NoError(t, err)
	assert.True(t, batch.AllOK())
	assert.Len(t, batch.Results, 40)

	left, err := svc.GetCart(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSubscribeReceivesBadgeCounts(t *testing.T) {
	ctx := context.Background()
	local, remote := newFakeBackend(), newFakeBackend()
	svc := newTestService(local, remote)

	ch, unsubscribe := svc.Subscribe("s1")
	defer unsubscribe()

	require.NoError(t, svc.AddItem(ctx, guest, domain.Product{ID: 10, Stock: 5}, 1, ""))
	assert.Equal(t, 1, <-ch)

	require.NoError(t, svc.AddItem(ctx, guest, domain.Product{ID: 11, Stock: 5}, 1, ""))
	assert.Equal(t, 2, <-ch)

	require.NoError(t, svc.ClearCart(ctx, guest))
	assert.Equal(t, 0, <-ch)
}

func TestSlowSubscriberSeesLatestCount(t *testing.T) {
	ctx := context.Background()
	local, remote := newFakeBackend(), newFakeBackend()
	svc := newTestService(local, remote)

	ch, unsubscribe := svc.Subscribe("s1")
	defer unsubscribe()

	// 不消费，把缓冲塞满再多写几条：缓冲满时丢最旧的一条
	const mutations = 12
	for i := int64(1); i <= mutations; i++ {
		require.NoError(t, svc.AddItem(ctx, guest, domain.Product{ID: i, Stock: 5}, 1, ""))
	}

	var last int
	for {
		select {
		case n := <-ch:
			last = n
		default:
			assert.Equal(t, mutations, last)
			return
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	local, remote := newFakeBackend(), newFakeBackend()
	svc := newTestService(local, remote)

	ch, unsubscribe := svc.Subscribe("s1")
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	// 重复退订不恐慌
	unsubscribe()
}
