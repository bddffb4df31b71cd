// Package idgen 提供全局唯一ID生成器
//
// ID 结构（int64）：
//   - 高 32 位：相对纪元的秒级时间戳
//   - 低 32 位：当日自增序列号
//
// 特点：
//   - 趋势递增，适合做数据库主键
//   - 序列号按天分 key，便于统计每天的业务量
//   - 多实例共享同一个计数器，天然无冲突
package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/levi04206/hmdp/common/constants"
	"github.com/levi04206/hmdp/common/kv"
)

const (
	// epochSecond 纪元起点 2025-01-01 00:00:00 UTC
	epochSecond int64 = 1735689600

	// sequenceBits 序列号占用位数
	sequenceBits = 32
)

// Generator 全局ID生成器
type Generator struct {
	store kv.Store
	// now 可注入的时钟，便于测试
	now func() time.Time
}

// NewGenerator 创建ID生成器
func NewGenerator(store kv.Store) *Generator {
	return &Generator{
		store: store,
		now:   time.Now,
	}
}

// NextID 生成指定业务的下一个全局唯一ID
//
// keyPrefix 为业务标识，如 "order"。
// 计数器 key 格式: icr:{业务}:{yyyy:MM:dd}
func (g *Generator) NextID(ctx context.Context, keyPrefix string) (int64, error) {
	now := g.now().UTC()
	timestamp := now.Unix() - epochSecond

	// 按天分 key，序列号每天从 1 开始
	date := now.Format("2006:01:02")
	counterKey := fmt.Sprintf("%s%s:%s", constants.IDCounterPrefix, keyPrefix, date)

	count, err := g.store.Incr(ctx, counterKey)
	if err != nil {
		return 0, errors.WithMessage(err, "idgen: incr counter")
	}

	return timestamp<<sequenceBits | count, nil
}

// Timestamp 解析ID中的时间戳部分，返回生成时刻（UTC，秒精度）
func Timestamp(id int64) time.Time {
	seconds := id>>sequenceBits + epochSecond
	return time.Unix(seconds, 0).UTC()
}

// Sequence 解析ID中的序列号部分
func Sequence(id int64) int64 {
	return id & (1<<sequenceBits - 1)
}
