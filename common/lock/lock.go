// Package lock 提供基于外部存储的分布式锁
//
// 实现原理：
//   - 基于 SETNX + TTL，锁超时自动释放，防止死锁
//   - 锁值携带持有者标识，只有持有者才能释放（Lua 脚本原子校验）
//   - 误删保护：实例 A 的锁超时释放后被实例 B 获取，A 完成后
//     不会删掉 B 的锁
package lock

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/common/constants"
	"github.com/levi04206/hmdp/common/kv"
)

// UnlockScript 释放锁脚本：只有 token 匹配才删除
const UnlockScript = `if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0`

// processID 进程级唯一标识，作为锁 token 前缀
var processID = uuid.NewString()

// acquireSeq 进程内获取锁的序列号，区分同进程的不同持有者
var acquireSeq atomic.Int64

// Lock 分布式锁接口
type Lock interface {
	// TryLock 尝试获取锁，返回是否成功（不阻塞、不重试）
	TryLock(ctx context.Context) (bool, error)
	// Unlock 释放锁，只有持有者释放才生效
	Unlock(ctx context.Context) error
}

// RedisLock 基于 kv.Store 的分布式锁实现
type RedisLock struct {
	store kv.Store
	key   string        // 锁的 key
	token string        // 持有者标识（用于安全释放）
	ttl   time.Duration // 锁的过期时间
}

// NewRedisLock 创建分布式锁
//
// 参数：
//   - store: KV 存储
//   - name: 锁的业务名（最终 key 为 lock:{name}）
//   - ttl: 锁的过期时间，必须大于业务的最大执行时间
func NewRedisLock(store kv.Store, name string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		store: store,
		key:   constants.LockPrefix + name,
		token: fmt.Sprintf("%s-%d", processID, acquireSeq.Add(1)),
		ttl:   ttl,
	}
}

// TryLock 尝试获取锁
//
// 使用 SETNX + TTL 原子操作。
// 成功返回 true，失败返回 false（锁已被其他持有者持有）。
func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.store.SetNX(ctx, l.key, l.token, l.ttl)
	if err != nil {
		return false, errors.WithMessage(err, "lock: try lock")
	}

	if ok {
		logx.WithContext(ctx).Debugf("[RedisLock] 获取锁成功: key=%s, ttl=%v", l.key, l.ttl)
	}

	return ok, nil
}

// Unlock 释放锁
//
// 只有锁的持有者（token 匹配）才能释放，
// 使用 Lua 脚本保证读取和删除的原子性。
func (l *RedisLock) Unlock(ctx context.Context) error {
	result, err := l.store.Eval(ctx, UnlockScript, []string{l.key}, l.token)
	if err != nil {
		return errors.WithMessage(err, "lock: unlock")
	}

	if n, ok := result.(int64); ok && n == 0 {
		// 锁已超时释放或被其他持有者重新获取，不是错误
		logx.WithContext(ctx).Infof("[RedisLock] 锁已过期或易主: key=%s", l.key)
	}

	return nil
}

// Token 返回持有者标识（测试和排障用）
func (l *RedisLock) Token() string {
	return l.token
}

// ==================== 重试锁 ====================

// RetryLock 在 TryLock 基础上做有限次重试
//
// 适合短临界区的互斥重建场景：拿不到锁先等一小段再试，
// 次数用完仍失败则放弃，由调用方决定降级策略。
type RetryLock struct {
	inner    Lock
	attempts int
	backoff  time.Duration
}

// NewRetryLock 包装已有锁，attempts 为总尝试次数（含首次）
func NewRetryLock(inner Lock, attempts int, backoff time.Duration) *RetryLock {
	if attempts <= 0 {
		attempts = 1
	}
	return &RetryLock{inner: inner, attempts: attempts, backoff: backoff}
}

// TryLock 重试获取锁，重试间隔固定，ctx 取消立即返回
func (l *RetryLock) TryLock(ctx context.Context) (bool, error) {
	for i := 0; i < l.attempts; i++ {
		ok, err := l.inner.TryLock(ctx)
		if err != nil || ok {
			return ok, err
		}
		if i == l.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	return false, nil
}

// Unlock 释放内层锁
func (l *RetryLock) Unlock(ctx context.Context) error {
	return l.inner.Unlock(ctx)
}

// ==================== 空锁实现（单实例模式） ====================

// NoopLock 空锁实现，适用于单实例部署
type NoopLock struct{}

// NewNoopLock 创建空锁
func NewNoopLock() *NoopLock {
	return &NoopLock{}
}

// TryLock 总是返回成功
func (l *NoopLock) TryLock(ctx context.Context) (bool, error) {
	return true, nil
}

// Unlock 不做任何操作
func (l *NoopLock) Unlock(ctx context.Context) error {
	return nil
}
