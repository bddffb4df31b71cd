package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
	"github.com/levi04206/hmdp/common/errorx"
)

type ShopTypeLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewShopTypeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ShopTypeLogic {
	return &ShopTypeLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

// ListTypes 查询商铺分类列表，按 sort 升序
func (l *ShopTypeLogic) ListTypes() ([]model.ShopType, error) {
	types, err := l.svcCtx.ShopTypeCache.ListTypes(l.ctx)
	if err != nil {
		l.Errorf("[shop-type] 查询分类列表失败: %v", err)
		return nil, errorx.ErrStoreError(err)
	}
	return types, nil
}
