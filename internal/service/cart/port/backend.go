// internal/service/cart/port/backend.go
package port

import (
	"context"

	"bazaar/internal/service/cart/domain"
)

// CartBackend 是购物车存取的出站端口。
// 两个实现：LocalCartBackend（游客，键值存储）与 RemoteCartBackend（登录，上游后端）。
// 选择哪一个由应用层在边界上按会话认证状态一次性决定。
type CartBackend interface {
	// Items 返回当前购物车的全部行。
	Items(ctx context.Context, sess domain.Session) ([]domain.CartItem, error)

	// Add 加购一个商品；同 (productID, size) 的已有行按数量合并，绝不产生重复行。
	Add(ctx context.Context, sess domain.Session, product domain.Product, quantity int64, selectedSize string) error

	// UpdateQuantity 将匹配行的数量改为 quantity。
	UpdateQuantity(ctx context.Context, sess domain.Session, itemID, quantity int64, selectedSize string) error

	// Remove 删除匹配行。
	Remove(ctx context.Context, sess domain.Session, itemID int64, selectedSize string) error

	// RemoveByKeys 删除复合键命中 keys 的全部行，返回逐键结果。
	// 未命中任何行的键视为已达成目标，不出现在结果里。
	// 实现必须保证并发安全：本地实现一次读改写完成整批，
	// 远端实现逐条删除时行与行互不覆盖。
	RemoveByKeys(ctx context.Context, sess domain.Session, keys []string) (map[string]error, error)

	// Clear 清空购物车。
	Clear(ctx context.Context, sess domain.Session) error
}
