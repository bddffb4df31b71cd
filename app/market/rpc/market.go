package main

import (
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/service"

	"github.com/levi04206/hmdp/app/market/rpc/internal/config"
	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
)

var configFile = flag.String("f", "etc/market.yaml", "配置文件路径")

func main() {
	flag.Parse()

	// 1. 加载配置
	var c config.Config
	conf.MustLoad(*configFile, &c)
	c.MustSetUp()

	// 2. 初始化 ServiceContext
	ctx := svc.NewServiceContext(c)

	// 3. 缓存预热（异步执行，不阻塞启动）
	ctx.WarmupCacheAsync()

	// 4. 秒杀订单消费者随服务生命周期启停
	group := service.NewServiceGroup()
	defer group.Stop()
	group.Add(ctx.Pipeline)

	fmt.Printf("Starting market service (%s)...\n", c.Name)
	logx.Infof("本地生活服务启动: %s", c.Name)
	group.Start()
}

// 本地生活服务入口
// 说明：
//   market 服务承载核心交易与内容能力：
//   - 商铺/分类查询（缓存空值防穿透 + 逻辑过期防击穿）
//   - 优惠券秒杀（缓存准入 + 消息流异步落库）
//   - 探店笔记、点赞榜、关注流
//   - 签到、UV 统计
//
// 启动命令：
//   go run market.go -f etc/market.yaml
