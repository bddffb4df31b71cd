package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
	"github.com/levi04206/hmdp/common/errorx"
)

type VoucherLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewVoucherLogic(ctx context.Context, svcCtx *svc.ServiceContext) *VoucherLogic {
	return &VoucherLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

// AddVoucher 新增普通券
func (l *VoucherLogic) AddVoucher(voucher *model.Voucher) error {
	if voucher == nil || voucher.ShopID == 0 {
		return errorx.ErrInvalidParams("商铺ID不能为空")
	}
	if err := l.svcCtx.VoucherModel.Create(l.ctx, voucher); err != nil {
		l.Errorf("[voucher] 新增优惠券失败: shopId=%d, err=%v", voucher.ShopID, err)
		return errorx.ErrDBError(err)
	}
	return nil
}

// AddSeckillVoucher 新增秒杀券
//
// 落库后同步把库存写入缓存，秒杀准入脚本只看缓存库存。
func (l *VoucherLogic) AddSeckillVoucher(voucher *model.Voucher, seckill *model.SeckillVoucher) error {
	if voucher == nil || seckill == nil {
		return errorx.ErrInvalidParams("参数不能为空")
	}
	if voucher.ShopID == 0 {
		return errorx.ErrInvalidParams("商铺ID不能为空")
	}
	if seckill.Stock < 0 {
		return errorx.ErrInvalidParams("库存不能为负")
	}
	if !seckill.EndTime.After(seckill.BeginTime) {
		return errorx.ErrInvalidParams("失效时间必须晚于生效时间")
	}

	if err := l.svcCtx.VoucherModel.CreateSeckill(l.ctx, voucher, seckill); err != nil {
		l.Errorf("[voucher] 新增秒杀券失败: shopId=%d, err=%v", voucher.ShopID, err)
		return errorx.ErrDBError(err)
	}

	if err := l.svcCtx.Pipeline.PreloadStock(l.ctx, seckill.VoucherID, seckill.Stock); err != nil {
		// 库存写缓存失败时券已落库，依赖启动预热兜底
		l.Errorf("[voucher] 预载库存失败: voucherId=%d, err=%v", seckill.VoucherID, err)
		return errorx.ErrStoreError(err)
	}

	l.Infof("[voucher] 新增秒杀券: voucherId=%d, stock=%d", seckill.VoucherID, seckill.Stock)
	return nil
}

// ListByShop 查询商铺在售优惠券
func (l *VoucherLogic) ListByShop(shopID uint64) ([]model.Voucher, error) {
	if shopID == 0 {
		return nil, errorx.ErrInvalidParams("商铺ID不能为空")
	}
	vouchers, err := l.svcCtx.VoucherModel.ListByShopID(l.ctx, shopID)
	if err != nil {
		l.Errorf("[voucher] 查询商铺优惠券失败: shopId=%d, err=%v", shopID, err)
		return nil, errorx.ErrDBError(err)
	}
	return vouchers, nil
}
