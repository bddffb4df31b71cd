// Package cache 提供通用缓存工具
//
// 设计原则：
//   - Key 命名规范：{业务}:{模块}:{标识}，如 cache:shop:123
//   - 随机 TTL 防止缓存雪崩
package cache

import (
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/mathx"

	"github.com/levi04206/hmdp/common/constants"
)

// ==================== 默认配置 ====================

const (
	// DefaultJitter 默认 TTL 抖动系数（±10%）
	// 30min ± 10% = 27min ~ 33min
	DefaultJitter = 0.1
)

// unstable 随机数生成器，用于 TTL 抖动
var unstable = mathx.NewUnstable(DefaultJitter)

// ==================== TTL 工具函数 ====================

// RandomTTL 生成带抖动的 TTL，防止缓存雪崩
//
// 原理：
//   - 如果大量缓存同时设置相同 TTL，会在同一时间过期
//   - 大量请求同时穿透到 DB，造成缓存雪崩
//   - 添加 ±10% 随机抖动，使过期时间分散
//
// 示例：
//
//	RandomTTL(30 * time.Minute) => 27min ~ 33min
func RandomTTL(base time.Duration) time.Duration {
	return time.Duration(unstable.AroundDuration(base))
}

// RandomTTLSeconds 返回带抖动的 TTL（秒数）
func RandomTTLSeconds(base time.Duration) int {
	return int(RandomTTL(base).Seconds())
}

// ==================== Key 生成函数 ====================

// 商铺相关 Key

// ShopKey 商铺详情缓存 Key
//
// 格式：cache:shop:{id}
// TTL：30min ± 10%，空值 2min
func ShopKey(id int64) string {
	return fmt.Sprintf("%s%d", constants.CacheShopPrefix, id)
}

// ShopTypeKey 商铺分类列表缓存 Key
//
// 格式：cache:shop-type
// TTL：24h（分类数据变化少）
func ShopTypeKey() string {
	return constants.CacheShopTypeKey
}

// ShopGeoKey 按分类的商铺地理位置 Key
//
// 格式：shop:geo:{typeId}
func ShopGeoKey(typeID int64) string {
	return fmt.Sprintf("%s%d", constants.ShopGeoPrefix, typeID)
}

// 秒杀相关 Key

// SeckillStockKey 秒杀库存 Key
//
// 格式：seckill:stock:{voucherId}
func SeckillStockKey(voucherID int64) string {
	return fmt.Sprintf("%s%d", constants.SeckillStockPrefix, voucherID)
}

// SeckillOrderKey 秒杀下单用户集合 Key
//
// 格式：seckill:order:{voucherId}
func SeckillOrderKey(voucherID int64) string {
	return fmt.Sprintf("%s%d", constants.SeckillOrderPrefix, voucherID)
}

// 锁相关 Key

// LockKey 分布式锁 Key
//
// 格式：lock:{业务}:{标识}，如 lock:order:5
func LockKey(biz string, id int64) string {
	return fmt.Sprintf("%s%s:%d", constants.LockPrefix, biz, id)
}

// 社交相关 Key

// BlogLikedKey 笔记点赞排行 Key
//
// 格式：blog:liked:{blogId}
func BlogLikedKey(blogID int64) string {
	return fmt.Sprintf("%s%d", constants.BlogLikedPrefix, blogID)
}

// FollowKey 用户关注列表 Key
//
// 格式：follows:{userId}
func FollowKey(userID int64) string {
	return fmt.Sprintf("%s%d", constants.FollowPrefix, userID)
}

// FeedKey 粉丝收件箱 Key
//
// 格式：feed:{userId}
func FeedKey(userID int64) string {
	return fmt.Sprintf("%s%d", constants.FeedPrefix, userID)
}

// 统计相关 Key

// SignKey 用户签到位图 Key
//
// 格式：sign:{userId}:{yyyyMM}
func SignKey(userID int64, t time.Time) string {
	return fmt.Sprintf("%s%d:%s", constants.SignPrefix, userID, t.Format("200601"))
}

// UVKey 独立访客统计 Key
//
// 格式：uv:{业务}:{yyyyMMdd}
func UVKey(biz string, t time.Time) string {
	return fmt.Sprintf("%s%s:%s", constants.UVPrefix, biz, t.Format("20060102"))
}
