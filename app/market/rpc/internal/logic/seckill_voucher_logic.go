package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
	"github.com/levi04206/hmdp/common/ctxdata"
	"github.com/levi04206/hmdp/common/errorx"
)

type SeckillVoucherLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewSeckillVoucherLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SeckillVoucherLogic {
	return &SeckillVoucherLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

// Seckill 秒杀下单
//
// 流程：限流 -> 熔断保护 -> 管线准入（库存/一人一单/入流）
// 返回订单ID，订单由消费者异步落库。
func (l *SeckillVoucherLogic) Seckill(voucherID uint64) (uint64, error) {
	userID := ctxdata.GetUserIDFromCtx(l.ctx)
	if userID <= 0 {
		return 0, errorx.ErrInvalidParams("未登录")
	}

	// 限流
	if !l.svcCtx.SeckillLimiter.Allow() {
		l.Infof("[seckill] 触发限流: userId=%d, voucherId=%d", userID, voucherID)
		return 0, errorx.ErrTooManyRequests()
	}

	// 熔断保护：业务错误（库存不足/重复下单）不计入熔断失败
	var orderID uint64
	err := l.svcCtx.SeckillBreaker.DoWithAcceptable(func() error {
		var err error
		orderID, err = l.svcCtx.Pipeline.Submit(l.ctx, uint64(userID), voucherID)
		return err
	}, func(err error) bool {
		if err == nil {
			return true
		}
		return errorx.Is(err, errorx.CodeStockExhausted) ||
			errorx.Is(err, errorx.CodeDuplicateOrder) ||
			errorx.Is(err, errorx.CodeVoucherNotFound) ||
			errorx.Is(err, errorx.CodeInvalidParams)
	})
	if err != nil {
		return 0, err
	}

	l.Infof("[seckill] 下单成功: userId=%d, voucherId=%d, orderId=%d", userID, voucherID, orderID)
	return orderID, nil
}
