package config

import (
	"github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/core/stores/redis"

	"github.com/levi04206/hmdp/common/kv"
)

type Config struct {
	service.ServiceConf // go-zero 服务配置（含 Log、Telemetry 等）

	// 数据存储
	MySQL MySQLConfig     // MySQL 配置
	Redis redis.RedisConf // Redis 配置（限流器用，go-zero 内置结构）
	Store kv.Config       // KV 存储配置（缓存、锁、消息流）

	// 秒杀相关配置
	Seckill SeckillConf

	// 预热配置
	Warmup WarmupConf
}

// MySQLConfig 数据库配置
type MySQLConfig struct {
	Host            string `json:",default=127.0.0.1"`
	Port            int    `json:",default=3306"`
	Username        string
	Password        string
	Database        string
	MaxOpenConns    int `json:",default=100"`  // 最大打开连接数
	MaxIdleConns    int `json:",default=10"`   // 最大空闲连接数
	ConnMaxLifetime int `json:",default=3600"` // 连接生命周期（秒）
}

// ==================== 高并发、熔断限流配置 ====================

// SeckillConf 秒杀配置
type SeckillConf struct {
	// 提交限流
	LimitRate  int `json:",default=1000"` // 每秒允许的请求数
	LimitBurst int `json:",default=2000"` // 突发容量

	// 熔断器名称
	BreakerName string `json:",default=market-seckill"`
	// 熔断阈值：窗口内样本数达到 BreakerRequests 且错误率
	// 超过 BreakerErrorRate 时打开，BreakerTimeout 秒后放量
	BreakerRequests  int     `json:",default=100"`
	BreakerErrorRate float64 `json:",default=0.5"`
	BreakerTimeout   int     `json:",default=60"`
}

// WarmupConf 启动预热配置
type WarmupConf struct {
	// HotShopIDs 需要逻辑过期预热的热点商铺
	HotShopIDs []uint64 `json:",optional"`
	// PreloadGeo 是否预热商铺地理位置索引
	PreloadGeo bool `json:",default=true"`
}
