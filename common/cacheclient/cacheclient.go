// Package cacheclient 封装缓存读写的通用策略
//
// 提供两种读取策略：
//   - Get: 缓存空值防穿透，singleflight 合并并发回源
//   - GetWithLogicalExpire: 逻辑过期防击穿，过期后异步重建、先返回旧值
//
// 约定：
//   - 缓存值为 JSON 序列化结果
//   - 空值哨兵为空字符串，配短 TTL
//   - 数据不存在统一返回 kv.ErrNotFound
package cacheclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
	"golang.org/x/sync/singleflight"

	"github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/constants"
	"github.com/levi04206/hmdp/common/kv"
	"github.com/levi04206/hmdp/common/lock"
)

const (
	// rebuildWorkers 逻辑过期重建协程池大小
	rebuildWorkers = 10

	// rebuildLockTTL 重建互斥锁过期时间
	rebuildLockTTL = 10 * time.Second
)

// redisData 逻辑过期数据信封
type redisData struct {
	ExpireTime time.Time       `json:"expireTime"`
	Data       json.RawMessage `json:"data"`
}

// Client 缓存客户端
type Client struct {
	store kv.Store
	// group 合并同 key 的并发回源，防止缓存失效瞬间打爆 DB
	group singleflight.Group
	// rebuildPool 异步重建协程池
	rebuildPool *threading.TaskRunner
	// now 可注入的时钟，便于测试
	now func() time.Time
}

// New 创建缓存客户端
func New(store kv.Store) *Client {
	return &Client{
		store:       store,
		rebuildPool: threading.NewTaskRunner(rebuildWorkers),
		now:         time.Now,
	}
}

// Store 返回底层 KV 存储
func (c *Client) Store() kv.Store {
	return c.store
}

// ==================== 缓存空值防穿透 ====================

// Get 缓存读取，未命中回源并写回
//
// 防穿透：回源确认不存在时缓存空值哨兵（短 TTL），
// 后续对同一不存在 key 的查询直接命中哨兵，不再打到 DB。
// 防雪崩：写回 TTL 带随机抖动。
//
// fallback 确认数据不存在时返回 kv.ErrNotFound。
func Get[T any](ctx context.Context, c *Client, key string, ttl time.Duration,
	fallback func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	val, err := c.store.Get(ctx, key)
	if err == nil {
		if val == "" {
			// 命中空值哨兵：数据确认不存在，不回源
			return zero, kv.ErrNotFound
		}
		var result T
		if uerr := json.Unmarshal([]byte(val), &result); uerr != nil {
			// 缓存内容损坏，当未命中处理
			logx.WithContext(ctx).Errorf("[cache] 反序列化失败: key=%s, err=%v", key, uerr)
		} else {
			return result, nil
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		// 存储故障不回源，避免打垮 DB
		return zero, err
	}

	// 未命中，合并并发回源
	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		data, err := fallback(ctx)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				// 缓存空值哨兵，防穿透
				if serr := c.store.Set(ctx, key, "", constants.CacheNullTTL); serr != nil {
					logx.WithContext(ctx).Errorf("[cache] 写入空值失败: key=%s, err=%v", key, serr)
				}
			}
			return nil, err
		}

		buf, merr := json.Marshal(data)
		if merr != nil {
			return nil, errors.WithMessage(merr, "cacheclient: marshal")
		}
		if serr := c.store.Set(ctx, key, string(buf), cache.RandomTTL(ttl)); serr != nil {
			// 写回失败只记录，数据本身是有效的
			logx.WithContext(ctx).Errorf("[cache] 写回失败: key=%s, err=%v", key, serr)
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// ==================== 逻辑过期防击穿 ====================

// GetWithLogicalExpire 逻辑过期读取，适用于预热的热点数据
//
// 数据物理上不过期，信封携带逻辑过期时间：
//   - 未过期：直接返回
//   - 已过期：尝试获取重建锁，拿到锁的协程异步重建，
//     所有请求（含重建者）立即返回旧值
//
// 缓存未命中视为数据不存在（热点数据需预热写入）。
func GetWithLogicalExpire[T any](ctx context.Context, c *Client, key, lockName string,
	ttl time.Duration, fallback func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	val, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return zero, kv.ErrNotFound
		}
		return zero, err
	}

	var envelope redisData
	if err := json.Unmarshal([]byte(val), &envelope); err != nil {
		return zero, errors.WithMessage(err, "cacheclient: unmarshal envelope")
	}
	var result T
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		return zero, errors.WithMessage(err, "cacheclient: unmarshal data")
	}

	if c.now().Before(envelope.ExpireTime) {
		return result, nil
	}

	// 已逻辑过期，尝试获取重建锁
	mutex := lock.NewRedisLock(c.store, lockName, rebuildLockTTL)
	acquired, lerr := mutex.TryLock(ctx)
	if lerr != nil {
		logx.WithContext(ctx).Errorf("[cache] 获取重建锁失败: key=%s, err=%v", key, lerr)
	}
	if acquired {
		// 双重检查：拿到锁时可能已被其他协程重建完成
		if fresh, ok := reloadIfFresh[T](ctx, c, key); ok {
			if uerr := mutex.Unlock(ctx); uerr != nil {
				logx.WithContext(ctx).Errorf("[cache] 释放重建锁失败: key=%s, err=%v", key, uerr)
			}
			return fresh, nil
		}

		c.rebuildPool.Schedule(func() {
			// 与请求生命周期解耦
			rebuildCtx, cancel := context.WithTimeout(context.Background(), rebuildLockTTL)
			defer cancel()
			defer func() {
				if uerr := mutex.Unlock(rebuildCtx); uerr != nil {
					logx.Errorf("[cache] 释放重建锁失败: key=%s, err=%v", key, uerr)
				}
			}()

			data, ferr := fallback(rebuildCtx)
			if ferr != nil {
				logx.Errorf("[cache] 异步重建失败: key=%s, err=%v", key, ferr)
				return
			}
			if serr := SetWithLogicalExpire(rebuildCtx, c, key, data, ttl); serr != nil {
				logx.Errorf("[cache] 异步重建写回失败: key=%s, err=%v", key, serr)
			}
		})
	}

	// 返回旧值，可用性优先于强一致
	return result, nil
}

// reloadIfFresh 重读缓存，已被重建为未过期则返回新值
func reloadIfFresh[T any](ctx context.Context, c *Client, key string) (T, bool) {
	var zero T
	val, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, false
	}
	var envelope redisData
	if err := json.Unmarshal([]byte(val), &envelope); err != nil {
		return zero, false
	}
	if !c.now().Before(envelope.ExpireTime) {
		return zero, false
	}
	var result T
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		return zero, false
	}
	return result, true
}

// SetWithLogicalExpire 写入带逻辑过期时间的数据（物理不过期）
//
// 用于热点数据预热和异步重建写回。
func SetWithLogicalExpire[T any](ctx context.Context, c *Client, key string, data T, ttl time.Duration) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return errors.WithMessage(err, "cacheclient: marshal")
	}
	envelope := redisData{
		ExpireTime: c.now().Add(ttl),
		Data:       buf,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return errors.WithMessage(err, "cacheclient: marshal envelope")
	}
	return c.store.Set(ctx, key, string(payload), 0)
}

// Evict 删除缓存（先更新库、再删缓存的写策略）
func (c *Client) Evict(ctx context.Context, key string) error {
	return c.store.Del(ctx, key)
}
