// Package cache 商铺域缓存层
//
// 读策略：
//   - 普通商铺：缓存空值防穿透（Get）
//   - 热点商铺：逻辑过期防击穿（GetWithLogicalExpire），需预热
//
// 写策略：先更新数据库，再删除缓存
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/levi04206/hmdp/app/market/model"
	commoncache "github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/cacheclient"
	"github.com/levi04206/hmdp/common/constants"
	"github.com/levi04206/hmdp/common/kv"
)

// ShopReader 商铺数据读取
type ShopReader interface {
	FindByID(ctx context.Context, id uint64) (*model.Shop, error)
}

// ShopWriter 商铺数据写入
type ShopWriter interface {
	Update(ctx context.Context, shop *model.Shop) error
}

// ShopCache 商铺缓存
type ShopCache struct {
	client *cacheclient.Client
	reader ShopReader
	writer ShopWriter
}

// NewShopCache 创建商铺缓存
func NewShopCache(client *cacheclient.Client, reader ShopReader, writer ShopWriter) *ShopCache {
	return &ShopCache{
		client: client,
		reader: reader,
		writer: writer,
	}
}

// GetShopByID 查询商铺（缓存空值防穿透）
//
// 商铺不存在返回 model.ErrShopNotFound
func (c *ShopCache) GetShopByID(ctx context.Context, id uint64) (*model.Shop, error) {
	shop, err := cacheclient.Get(ctx, c.client, commoncache.ShopKey(int64(id)), constants.CacheShopTTL,
		func(ctx context.Context) (*model.Shop, error) {
			shop, err := c.reader.FindByID(ctx, id)
			if err != nil {
				if errors.Is(err, model.ErrShopNotFound) {
					return nil, kv.ErrNotFound
				}
				return nil, err
			}
			return shop, nil
		})
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, model.ErrShopNotFound
		}
		return nil, err
	}
	return shop, nil
}

// GetHotShopByID 查询热点商铺（逻辑过期防击穿）
//
// 数据需先通过 PreloadHotShop 预热，未预热返回 model.ErrShopNotFound
func (c *ShopCache) GetHotShopByID(ctx context.Context, id uint64) (*model.Shop, error) {
	shop, err := cacheclient.GetWithLogicalExpire(ctx, c.client,
		commoncache.ShopKey(int64(id)), shopLockName(id), constants.CacheShopTTL,
		func(ctx context.Context) (*model.Shop, error) {
			return c.reader.FindByID(ctx, id)
		})
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, model.ErrShopNotFound
		}
		return nil, err
	}
	return shop, nil
}

// PreloadHotShop 预热热点商铺到缓存
func (c *ShopCache) PreloadHotShop(ctx context.Context, id uint64, ttl time.Duration) error {
	shop, err := c.reader.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return cacheclient.SetWithLogicalExpire(ctx, c.client, commoncache.ShopKey(int64(id)), shop, ttl)
}

// UpdateShop 更新商铺：先更新数据库，再删除缓存
func (c *ShopCache) UpdateShop(ctx context.Context, shop *model.Shop) error {
	if shop.ID == 0 {
		return model.ErrShopNotFound
	}
	if err := c.writer.Update(ctx, shop); err != nil {
		return err
	}
	return c.client.Evict(ctx, commoncache.ShopKey(int64(shop.ID)))
}

// shopLockName 商铺重建锁名（最终 key 为 lock:shop:{id}）
func shopLockName(id uint64) string {
	return fmt.Sprintf("shop:%d", id)
}
