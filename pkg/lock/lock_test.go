package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"volunteer-hub/config"
	pkgerrors "volunteer-hub/pkg/errors"
	"volunteer-hub/pkg/redis"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(context.Background(), "pair")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, km.Len(), "全部释放后不应残留键")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	unlockA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := km.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextTimeout(t *testing.T) {
	km := NewKeyedMutex()
	unlock, _ := km.Lock(context.Background(), "a")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := km.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPairLocker_LocalOnlyTimeout(t *testing.T) {
	p := NewPairLocker(nil, 30*time.Millisecond, time.Second, zap.NewNop())
	unlock, err := p.Acquire(context.Background(), "pair")
	require.NoError(t, err)
	defer unlock()

	_, err = p.Acquire(context.Background(), "pair")
	assert.True(t, errors.Is(err, pkgerrors.ErrLockTimeout))
}

func TestPairLocker_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := redis.NewClient(&config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	// 两个实例共享同一个 Redis，模拟多副本
	p1 := NewPairLocker(rdb, 50*time.Millisecond, time.Second, zap.NewNop())
	p2 := NewPairLocker(rdb, 50*time.Millisecond, time.Second, zap.NewNop())

	unlock, err := p1.Acquire(context.Background(), "e1:v1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:e1:v1"))

	_, err = p2.Acquire(context.Background(), "e1:v1")
	assert.ErrorIs(t, err, pkgerrors.ErrLockTimeout)

	unlock()
	assert.False(t, mr.Exists("lock:e1:v1"))

	unlock2, err := p2.Acquire(context.Background(), "e1:v1")
	require.NoError(t, err)
	unlock2()
}

func TestPairLocker_RedisDownDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := redis.NewClient(&config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()
	mr.Close()

	p := NewPairLocker(rdb, 200*time.Millisecond, time.Second, zap.NewNop())
	unlock, err := p.Acquire(context.Background(), "pair")
	require.NoError(t, err, "Redis 不可用时应降级为进程内锁")
	unlock()
}
