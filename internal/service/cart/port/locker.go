// internal/service/cart/port/locker.go
package port

import "context"

// MutationLocker 串行化同一资源上的读-改-写序列。
// 单实例部署用 NoopLocker 即可；多实例部署接 ZooKeeper 实现，
// 否则并发写同一购物车会出现后到请求覆盖先到请求的丢更新。
type MutationLocker interface {
	// Lock 获取 resourceID 上的互斥锁，返回解锁函数。
	Lock(ctx context.Context, resourceID string) (unlock func(), err error)
}

// NoopLocker 是 MutationLocker 的空实现。
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
