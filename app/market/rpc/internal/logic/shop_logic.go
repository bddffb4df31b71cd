package logic

import (
	"context"
	"strconv"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
	commoncache "github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/errorx"
)

const (
	// 分页默认值
	defaultPageSize = 5
	maxPageSize     = 10
)

type ShopLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewShopLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ShopLogic {
	return &ShopLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

// QueryShopByID 查询商铺详情（缓存空值防穿透）
func (l *ShopLogic) QueryShopByID(id uint64) (*model.Shop, error) {
	if id == 0 {
		return nil, errorx.ErrInvalidParams("商铺ID不能为空")
	}
	shop, err := l.svcCtx.ShopCache.GetShopByID(l.ctx, id)
	if err != nil {
		if err == model.ErrShopNotFound {
			return nil, errorx.ErrShopNotFound()
		}
		l.Errorf("[shop] 查询商铺失败: id=%d, err=%v", id, err)
		return nil, errorx.ErrStoreError(err)
	}
	return shop, nil
}

// QueryHotShopByID 查询热点商铺详情（逻辑过期防击穿）
//
// 热点商铺需要提前预热，未预热视为不存在。
func (l *ShopLogic) QueryHotShopByID(id uint64) (*model.Shop, error) {
	if id == 0 {
		return nil, errorx.ErrInvalidParams("商铺ID不能为空")
	}
	shop, err := l.svcCtx.ShopCache.GetHotShopByID(l.ctx, id)
	if err != nil {
		if err == model.ErrShopNotFound {
			return nil, errorx.ErrShopNotFound()
		}
		l.Errorf("[shop] 查询热点商铺失败: id=%d, err=%v", id, err)
		return nil, errorx.ErrStoreError(err)
	}
	return shop, nil
}

// UpdateShop 更新商铺（先更新数据库，再删除缓存）
func (l *ShopLogic) UpdateShop(shop *model.Shop) error {
	if shop == nil || shop.ID == 0 {
		return errorx.ErrInvalidParams("商铺ID不能为空")
	}
	if err := l.svcCtx.ShopCache.UpdateShop(l.ctx, shop); err != nil {
		if err == model.ErrShopNotFound {
			return errorx.ErrShopNotFound()
		}
		l.Errorf("[shop] 更新商铺失败: id=%d, err=%v", shop.ID, err)
		return errorx.ErrDBError(err)
	}
	return nil
}

// QueryShopByType 按类型分页查询商铺
func (l *ShopLogic) QueryShopByType(typeID uint64, page int) ([]model.Shop, error) {
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * defaultPageSize
	shops, err := l.svcCtx.ShopModel.ListByTypeID(l.ctx, typeID, offset, defaultPageSize)
	if err != nil {
		l.Errorf("[shop] 按类型查询商铺失败: typeId=%d, err=%v", typeID, err)
		return nil, errorx.ErrDBError(err)
	}
	return shops, nil
}

// NearbyShop 附近商铺查询结果，带距离
type NearbyShop struct {
	model.Shop
	// Distance 距查询点的距离（米）
	Distance float64 `json:"distance"`
}

// QueryShopNearby 按坐标查询附近商铺，结果按距离升序
//
// 地理位置索引在启动时预热（见 svc.WarmupCacheAsync），
// 索引内只存商铺ID，详情回数据库批量查询。
func (l *ShopLogic) QueryShopNearby(typeID uint64, x, y float64, radius float64, page int) ([]NearbyShop, error) {
	if page <= 0 {
		page = 1
	}
	count := int64(page * defaultPageSize)

	key := commoncache.ShopGeoKey(int64(typeID))
	locations, err := l.svcCtx.Store.GeoSearch(l.ctx, key, x, y, radius, count)
	if err != nil {
		l.Errorf("[shop] 地理位置检索失败: typeId=%d, err=%v", typeID, err)
		return nil, errorx.ErrStoreError(err)
	}

	// 跳过前面页的成员
	from := (page - 1) * defaultPageSize
	if from >= len(locations) {
		return nil, nil
	}
	locations = locations[from:]

	ids := make([]uint64, 0, len(locations))
	distByID := make(map[uint64]float64, len(locations))
	for _, loc := range locations {
		id, err := strconv.ParseUint(loc.Member, 10, 64)
		if err != nil {
			l.Errorf("[shop] 地理位置成员非法: member=%q", loc.Member)
			continue
		}
		ids = append(ids, id)
		distByID[id] = loc.Dist
	}

	shops, err := l.svcCtx.ShopModel.FindByIDs(l.ctx, ids)
	if err != nil {
		l.Errorf("[shop] 批量查询商铺失败: err=%v", err)
		return nil, errorx.ErrDBError(err)
	}

	result := make([]NearbyShop, 0, len(shops))
	for _, shop := range shops {
		result = append(result, NearbyShop{
			Shop:     shop,
			Distance: distByID[shop.ID],
		})
	}
	return result, nil
}
