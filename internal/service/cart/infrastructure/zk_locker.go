// internal/service/cart/infrastructure/zk_locker.go
package infrastructure

import (
	"context"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/zookeeper"
	"bazaar/internal/service/cart/port"
)

// ZkMutationLocker 用 ZooKeeper 临时顺序节点实现 port.MutationLocker。
// 多实例部署时串行化同一会话购物车的读-改-写序列。
type ZkMutationLocker struct {
	conn *zookeeper.Conn
}

// NewZkMutationLocker 创建一个 ZooKeeper 互斥锁适配器。
func NewZkMutationLocker(conn *zookeeper.Conn) *ZkMutationLocker {
	return &ZkMutationLocker{conn: conn}
}

func (l *ZkMutationLocker) Lock(ctx context.Context, resourceID string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(l.conn, resourceID)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("resource", resourceID).Msg("failed to release mutation lock")
		}
	}, nil
}

var _ port.MutationLocker = (*ZkMutationLocker)(nil)
