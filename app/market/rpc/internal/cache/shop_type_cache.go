package cache

import (
	"context"

	"github.com/levi04206/hmdp/app/market/model"
	commoncache "github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/cacheclient"
	"github.com/levi04206/hmdp/common/constants"
	"github.com/levi04206/hmdp/common/kv"

	"github.com/pkg/errors"
)

// ShopTypeReader 商铺类型数据读取
type ShopTypeReader interface {
	ListAll(ctx context.Context) ([]model.ShopType, error)
}

// ShopTypeCache 商铺类型列表缓存
//
// 类型列表变化极少，整表缓存，长 TTL
type ShopTypeCache struct {
	client *cacheclient.Client
	reader ShopTypeReader
}

// NewShopTypeCache 创建商铺类型缓存
func NewShopTypeCache(client *cacheclient.Client, reader ShopTypeReader) *ShopTypeCache {
	return &ShopTypeCache{client: client, reader: reader}
}

// ListTypes 查询全部商铺类型，按 sort 升序
func (c *ShopTypeCache) ListTypes(ctx context.Context) ([]model.ShopType, error) {
	types, err := cacheclient.Get(ctx, c.client, commoncache.ShopTypeKey(), constants.CacheShopTypeTTL,
		func(ctx context.Context) ([]model.ShopType, error) {
			types, err := c.reader.ListAll(ctx)
			if err != nil {
				return nil, err
			}
			if len(types) == 0 {
				// 空表也走空值哨兵，防止反复回源
				return nil, kv.ErrNotFound
			}
			return types, nil
		})
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return types, nil
}
