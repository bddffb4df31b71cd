// Package kv 提供对外部缓存/存储的能力接口封装
//
// 设计原则：
//   - 调用方只依赖 Store 接口，不感知具体客户端
//   - 基础设施故障（网络/超时）统一映射为 ErrStoreUnavailable
//   - "键不存在" 是正常业务结果，用 ErrNotFound 区分
package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ==================== 错误定义 ====================

var (
	// ErrNotFound 键不存在（正常业务结果，非故障）
	ErrNotFound = errors.New("kv: key not found")

	// ErrStoreUnavailable 存储不可用（网络、超时等基础设施故障）
	ErrStoreUnavailable = errors.New("kv: store unavailable")
)

// ==================== 数据结构 ====================

// Z 有序集合成员
type Z struct {
	Member string
	Score  float64
}

// GeoLocation 地理位置检索结果
type GeoLocation struct {
	Member string
	// Dist 距离查询点的距离（米）
	Dist float64
}

// StreamMessage 消息流中的一条消息
type StreamMessage struct {
	// ID 流内消息 ID（投递凭证，ACK 时使用）
	ID     string
	Values map[string]interface{}
}

// ==================== Store 能力接口 ====================

// Store 外部 KV 存储的能力面
//
// 实现要求：
//   - Eval 的脚本执行必须整体原子，对其他调用方不可见中间状态
//   - XReadGroup 配合消费者组实现 at-least-once 投递
type Store interface {
	// ---------- 字符串 ----------

	// Get 读取字符串值，键不存在返回 ErrNotFound
	Get(ctx context.Context, key string) (string, error)
	// Set 写入字符串值，ttl 为 0 表示不过期
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX 键不存在时写入（原子），返回本次调用是否创建了该键
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Del 删除键
	Del(ctx context.Context, keys ...string) error
	// Incr 自增并返回自增后的值
	Incr(ctx context.Context, key string) (int64, error)

	// ---------- 脚本 ----------

	// Eval 原子执行脚本
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)

	// ---------- 集合 ----------

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	// SInter 多个集合的交集
	SInter(ctx context.Context, keys ...string) ([]string, error)

	// ---------- 有序集合 ----------

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key, member string) error
	// ZScore 成员不存在返回 ErrNotFound
	ZScore(ctx context.Context, key, member string) (float64, error)
	// ZRange 按排名升序返回 [start, stop] 区间成员
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// ZRevRangeByScore 按分数降序返回 (max 起、分数 >= min)，带偏移分页
	ZRevRangeByScore(ctx context.Context, key string, max, min float64, offset, count int64) ([]Z, error)

	// ---------- 位图 ----------

	SetBit(ctx context.Context, key string, offset int64, value int) error
	// BitFieldGet 读取 key 上从 offset 位开始的 bits 位无符号整数
	BitFieldGet(ctx context.Context, key string, bits int, offset int64) (int64, error)

	// ---------- HyperLogLog ----------

	PFAdd(ctx context.Context, key string, members ...string) error
	PFCount(ctx context.Context, key string) (int64, error)

	// ---------- 地理位置 ----------

	GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error
	// GeoSearch 按坐标半径检索（米），结果按距离升序
	GeoSearch(ctx context.Context, key string, longitude, latitude, radius float64, count int64) ([]GeoLocation, error)

	// ---------- 消息流 ----------

	// XAdd 追加消息到流，返回流内消息 ID
	XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error)
	// XGroupCreateMkStream 创建消费者组（流不存在时一并创建），组已存在不视为错误
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) error
	// XReadGroup 以消费者组身份读取消息
	//
	// offset 为 ">" 时读取未投递的新消息，阻塞最多 block；
	// offset 为 "0" 时读取本消费者 pending 列表中未 ACK 的历史消息，不阻塞。
	// 无消息返回 ErrNotFound。
	XReadGroup(ctx context.Context, group, consumer, stream, offset string, count int64, block time.Duration) ([]StreamMessage, error)
	// XAck 确认消息处理完成
	XAck(ctx context.Context, stream, group string, ids ...string) error
}
