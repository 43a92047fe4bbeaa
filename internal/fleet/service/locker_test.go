package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis 内存实现 SET NX 与解锁脚本
type fakeRedis struct {
	mu   sync.Mutex
	keys map[string]interface{}
	ttls map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: make(map[string]interface{}), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(keys) == 1 && len(args) == 1 && f.keys[keys[0]] == args[0] {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLocker(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, 5*time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "device:dev-05")
	require.NoError(t, err)
	assert.Contains(t, client.keys, "mojing:lock:device:dev-05")
	assert.Equal(t, 5*time.Second, client.ttls["mojing:lock:device:dev-05"])

	_, err = locker.Lock(ctx, "device:dev-05")
	assert.ErrorIs(t, err, ErrDeviceBusy)

	// 其他设备不受影响
	unlockOther, err := locker.Lock(ctx, "device:dev-06")
	require.NoError(t, err)
	unlockOther()

	unlock()
	assert.NotContains(t, client.keys, "mojing:lock:device:dev-05")

	unlock, err = locker.Lock(ctx, "device:dev-05")
	require.NoError(t, err)
	unlock()
}

func TestRedisLockerDoesNotReleaseForeignLock(t *testing.T) {
	client := newFakeRedis()
	locker := NewRedisLocker(client, 0)

	unlock, err := locker.Lock(context.Background(), "device:dev-05")
	require.NoError(t, err)

	// 锁过期后被其他实例获取
	client.keys["mojing:lock:device:dev-05"] = "other-token"
	unlock()
	assert.Equal(t, "other-token", client.keys["mojing:lock:device:dev-05"])
}

func TestRedisLockerError(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	locker := NewRedisLocker(client, time.Second)

	_, err := locker.Lock(context.Background(), "device:dev-05")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDeviceBusy)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNoopLocker(t *testing.T) {
	unlock, err := NoopLocker{}.Lock(context.Background(), "device:dev-05")
	require.NoError(t, err)
	unlock()
}
