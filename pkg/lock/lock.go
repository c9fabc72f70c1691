// Package lock 提供按键串行化的互斥锁。
// 进程内使用带引用计数的信号量；配置 Redis 后叠加一层跨实例锁。
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pkgerrors "volunteer-hub/pkg/errors"
)

// KeyedMutex 按键互斥，不同键互不阻塞
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex 创建 KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock 获取 key 对应的锁，ctx 取消时返回 ctx.Err()
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				k.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) release(key string, s *slot) {
	k.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}

// Len 当前持有或等待中的键数量
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// RemoteLocker 跨实例锁（由 pkg/redis.Client 实现）
type RemoteLocker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// PairLocker 组合锁：先取进程内锁，再取 Redis 锁
type PairLocker struct {
	local   *KeyedMutex
	remote  RemoteLocker
	timeout time.Duration
	ttl     time.Duration
	retry   time.Duration
	logger  *zap.Logger
}

// NewPairLocker 创建组合锁，remote 为 nil 时仅使用进程内锁
func NewPairLocker(remote RemoteLocker, timeout, ttl time.Duration, logger *zap.Logger) *PairLocker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &PairLocker{
		local:   NewKeyedMutex(),
		remote:  remote,
		timeout: timeout,
		ttl:     ttl,
		retry:   25 * time.Millisecond,
		logger:  logger,
	}
}

// Acquire 获取 key 的锁，超时返回 ErrLockTimeout
// Redis 不可用时降级为进程内锁
func (p *PairLocker) Acquire(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	unlockLocal, err := p.local.Lock(waitCtx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.ErrLockTimeout
	}
	if p.remote == nil {
		return unlockLocal, nil
	}

	token := uuid.NewString()
	for {
		ok, err := p.remote.AcquireLock(waitCtx, key, token, p.ttl)
		if err != nil {
			p.logger.Warn("Redis 锁不可用，降级为进程内锁", zap.String("key", key), zap.Error(err))
			return unlockLocal, nil
		}
		if ok {
			break
		}
		select {
		case <-time.After(p.retry):
		case <-waitCtx.Done():
			unlockLocal()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, pkgerrors.ErrLockTimeout
		}
	}

	return func() {
		// 使用独立 context，避免请求取消后锁残留到 TTL
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := p.remote.ReleaseLock(releaseCtx, key, token); err != nil {
			p.logger.Warn("释放 Redis 锁失败", zap.String("key", key), zap.Error(err))
		}
		unlockLocal()
	}, nil
}
