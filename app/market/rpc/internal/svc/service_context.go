package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeromicro/go-zero/core/breaker"
	"github.com/zeromicro/go-zero/core/limit"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/threading"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/app/market/rpc/internal/cache"
	"github.com/levi04206/hmdp/app/market/rpc/internal/config"
	"github.com/levi04206/hmdp/app/market/rpc/internal/seckill"
	"github.com/levi04206/hmdp/app/market/rpc/internal/social"
	"github.com/levi04206/hmdp/common/breakerx"
	commoncache "github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/cacheclient"
	"github.com/levi04206/hmdp/common/constants"
	"github.com/levi04206/hmdp/common/idgen"
	"github.com/levi04206/hmdp/common/kv"
)

type ServiceContext struct {
	Config config.Config

	// 数据存储
	DB    *gorm.DB     // MySQL 连接
	Redis *redis.Redis // Redis 客户端（限流器用）
	Store kv.Store     // KV 存储（缓存、锁、消息流）

	// 通用组件
	CacheClient *cacheclient.Client
	IDGen       *idgen.Generator

	// 高并发、熔断限流组件
	SeckillLimiter *limit.TokenLimiter
	SeckillBreaker breaker.Breaker

	// 秒杀管线
	Pipeline *seckill.Pipeline

	// Model 层
	ShopModel           *model.ShopModel
	ShopTypeModel       *model.ShopTypeModel
	VoucherModel        *model.VoucherModel
	SeckillVoucherModel *model.SeckillVoucherModel
	VoucherOrderModel   *model.VoucherOrderModel
	BlogModel           *model.BlogModel
	FollowModel         *model.FollowModel
	UserModel           *model.UserModel

	// 缓存层
	ShopCache     *cache.ShopCache
	ShopTypeCache *cache.ShopTypeCache

	// 社交能力
	LikeService   *social.LikeService
	FeedService   *social.FeedService
	FollowService *social.FollowService
}

func NewServiceContext(c config.Config) *ServiceContext {
	// 1. 初始化数据库连接
	db := initDB(c.MySQL)

	// 2. 初始化 Redis（限流器用）与 KV 存储
	rds := redis.MustNewRedis(c.Redis)
	store := kv.NewRedisStore(c.Store)

	// 3. 初始化限流/熔断
	seckillLimiter := limit.NewTokenLimiter(
		c.Seckill.LimitRate,
		c.Seckill.LimitBurst,
		rds,
		"market:seckill:limiter",
	)
	seckillBreaker := breakerx.NewSREBreaker(breakerx.SREConfig{
		Name:      c.Seckill.BreakerName,
		Requests:  c.Seckill.BreakerRequests,
		ErrorRate: c.Seckill.BreakerErrorRate,
		Timeout:   time.Duration(c.Seckill.BreakerTimeout) * time.Second,
	})

	// 4. Model 层
	shopModel := model.NewShopModel(db)
	shopTypeModel := model.NewShopTypeModel(db)
	voucherModel := model.NewVoucherModel(db)
	seckillVoucherModel := model.NewSeckillVoucherModel(db)
	voucherOrderModel := model.NewVoucherOrderModel(db)
	blogModel := model.NewBlogModel(db)
	followModel := model.NewFollowModel(db)
	userModel := model.NewUserModel(db)

	// 5. 通用组件与秒杀管线
	cacheClient := cacheclient.New(store)
	idGen := idgen.NewGenerator(store)
	pipeline := seckill.NewPipeline(
		store,
		idGen,
		seckillVoucherModel,
		seckill.NewDBPersister(voucherOrderModel, seckillVoucherModel),
		seckill.NewMetrics(prometheus.DefaultRegisterer),
	)

	return &ServiceContext{
		Config: c,

		DB:    db,
		Redis: rds,
		Store: store,

		CacheClient: cacheClient,
		IDGen:       idGen,

		SeckillLimiter: seckillLimiter,
		SeckillBreaker: seckillBreaker,

		Pipeline: pipeline,

		ShopModel:           shopModel,
		ShopTypeModel:       shopTypeModel,
		VoucherModel:        voucherModel,
		SeckillVoucherModel: seckillVoucherModel,
		VoucherOrderModel:   voucherOrderModel,
		BlogModel:           blogModel,
		FollowModel:         followModel,
		UserModel:           userModel,

		ShopCache:     cache.NewShopCache(cacheClient, shopModel, shopModel),
		ShopTypeCache: cache.NewShopTypeCache(cacheClient, shopTypeModel),

		LikeService:   social.NewLikeService(store, blogModel, userModel),
		FeedService:   social.NewFeedService(store, blogModel, followModel),
		FollowService: social.NewFollowService(store, followModel, userModel),
	}
}

// ==================== 缓存预热 ====================

// WarmupCacheAsync 异步预热缓存，不阻塞启动
//
// 预热内容：
//   - 秒杀券库存
//   - 热点商铺（逻辑过期）
//   - 商铺地理位置索引
func (s *ServiceContext) WarmupCacheAsync() {
	threading.GoSafe(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		s.warmupSeckillStock(ctx)
		s.warmupHotShops(ctx)
		if s.Config.Warmup.PreloadGeo {
			s.warmupShopGeo(ctx)
		}
	})
}

// warmupSeckillStock 预热秒杀券库存
func (s *ServiceContext) warmupSeckillStock(ctx context.Context) {
	seckills, err := s.SeckillVoucherModel.ListAll(ctx)
	if err != nil {
		logx.Errorf("[warmup] 查询秒杀券失败: %v", err)
		return
	}
	for _, sv := range seckills {
		if err := s.Pipeline.PreloadStock(ctx, sv.VoucherID, sv.Stock); err != nil {
			logx.Errorf("[warmup] 预热库存失败: voucherId=%d, err=%v", sv.VoucherID, err)
		}
	}
	logx.Infof("[warmup] 秒杀库存预热完成: %d 张券", len(seckills))
}

// warmupHotShops 预热配置的热点商铺
func (s *ServiceContext) warmupHotShops(ctx context.Context) {
	for _, id := range s.Config.Warmup.HotShopIDs {
		if err := s.ShopCache.PreloadHotShop(ctx, id, constants.CacheShopTTL); err != nil {
			logx.Errorf("[warmup] 预热热点商铺失败: shopId=%d, err=%v", id, err)
		}
	}
	if len(s.Config.Warmup.HotShopIDs) > 0 {
		logx.Infof("[warmup] 热点商铺预热完成: %d 家", len(s.Config.Warmup.HotShopIDs))
	}
}

// warmupShopGeo 按类型预热商铺地理位置索引
func (s *ServiceContext) warmupShopGeo(ctx context.Context) {
	shops, err := s.ShopModel.ListAll(ctx)
	if err != nil {
		logx.Errorf("[warmup] 查询商铺失败: %v", err)
		return
	}
	for _, shop := range shops {
		key := commoncache.ShopGeoKey(int64(shop.TypeID))
		member := fmt.Sprintf("%d", shop.ID)
		if err := s.Store.GeoAdd(ctx, key, shop.X, shop.Y, member); err != nil {
			logx.Errorf("[warmup] 写入地理位置失败: shopId=%d, err=%v", shop.ID, err)
		}
	}
	logx.Infof("[warmup] 商铺地理位置预热完成: %d 家", len(shops))
}

// ==================== 初始化函数 ====================

// initDB 初始化数据库连接
func initDB(mysqlConf config.MySQLConfig) *gorm.DB {
	dsn := buildMySQLDSN(mysqlConf)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true, // 唯一键冲突翻译为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		logx.Errorf("连接数据库失败: %v", err)
		panic(err)
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	maxOpenConns := mysqlConf.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 100
	}
	maxIdleConns := mysqlConf.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 10
	}
	connMaxLifetime := mysqlConf.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 3600
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	logx.Info("数据库连接成功")
	return db
}

func buildMySQLDSN(c config.MySQLConfig) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}
