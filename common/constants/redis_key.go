package constants

import "time"

// Redis Key 前缀规范
// 格式: {业务}:{模块}:{具体标识}
// 示例: cache:shop:1, seckill:stock:10, lock:order:5

const (
	// ============ 商铺缓存 Key ============

	// CacheShopPrefix 商铺详情缓存前缀
	CacheShopPrefix = "cache:shop:"
	// CacheShopTypeKey 商铺分类列表缓存
	CacheShopTypeKey = "cache:shop-type"
	// ShopGeoPrefix 按分类的商铺地理位置前缀
	ShopGeoPrefix = "shop:geo:"

	// ============ 秒杀 Redis Key ============

	// SeckillStockPrefix 秒杀库存前缀
	SeckillStockPrefix = "seckill:stock:"
	// SeckillOrderPrefix 秒杀下单用户集合前缀（一人一单去重）
	SeckillOrderPrefix = "seckill:order:"
	// SeckillOrderStream 秒杀订单消息流
	SeckillOrderStream = "stream.orders"
	// SeckillOrderDLQStream 处理失败订单的死信流
	SeckillOrderDLQStream = "stream.orders.dlq"
	// SeckillOrderGroup 订单流消费者组
	SeckillOrderGroup = "g1"
	// SeckillOrderConsumer 订单流消费者名
	SeckillOrderConsumer = "c1"

	// ============ 分布式锁 / ID 生成 Key ============

	// LockPrefix 分布式锁前缀
	LockPrefix = "lock:"
	// IDCounterPrefix 全局 ID 自增序列前缀
	// 格式: icr:{业务}:{yyyy:MM:dd}
	IDCounterPrefix = "icr:"

	// ============ 社交 Redis Key ============

	// BlogLikedPrefix 笔记点赞排行前缀（zset）
	BlogLikedPrefix = "blog:liked:"
	// FollowPrefix 用户关注列表前缀（set）
	FollowPrefix = "follows:"
	// FeedPrefix 粉丝收件箱前缀（zset）
	FeedPrefix = "feed:"

	// ============ 统计 Redis Key ============

	// SignPrefix 用户签到位图前缀
	// 格式: sign:{userId}:{yyyyMM}
	SignPrefix = "sign:"
	// UVPrefix 独立访客统计前缀（HyperLogLog）
	UVPrefix = "uv:"
)

// ============ 缓存过期时间 ============

const (
	// CacheShopTTL 商铺缓存过期时间
	CacheShopTTL = 30 * time.Minute
	// CacheShopTypeTTL 商铺分类缓存过期时间（变化少）
	CacheShopTypeTTL = 24 * time.Hour
	// CacheNullTTL 空值缓存过期时间（防穿透，必须远短于正常 TTL）
	CacheNullTTL = 2 * time.Minute
	// LockExpireDefault 分布式锁默认过期时间
	LockExpireDefault = 10 * time.Second
	// SeckillOrderSetTTL 秒杀去重集合过期时间（活动结束后可回收）
	SeckillOrderSetTTL = 48 * time.Hour
)
