// internal/pkg/kvstore/store.go
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound 表示键不存在。
var ErrNotFound = errors.New("kvstore: key not found")

// Store 是会话级键值持久化的出站端口。
// 购物车缓存、勾选集、已应用的代金券、收货地址都通过它落盘。
// 生产环境由 Redis 实现，测试注入内存实现。
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
