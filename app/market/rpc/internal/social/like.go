// Package social 实现点赞、关注、关注流等社交能力
//
// 数据分工：
//   - 关系与内容以 MySQL 为准
//   - 点赞排行、关注集合、收件箱放在 KV 存储，承接高频读写
package social

import (
	"context"
	"strconv"
	"time"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/kv"
)

// likersLimit 点赞排行榜展示人数
const likersLimit = 5

// ==================== 依赖接口 ====================

// BlogStore 笔记数据访问能力
type BlogStore interface {
	Create(ctx context.Context, blog *model.Blog) error
	FindByID(ctx context.Context, id uint64) (*model.Blog, error)
	IncrLiked(ctx context.Context, id uint64, delta int) error
	FindByIDs(ctx context.Context, ids []uint64) ([]model.Blog, error)
}

// UserStore 用户数据访问能力
type UserStore interface {
	FindByIDs(ctx context.Context, ids []uint64) ([]model.User, error)
}

// ==================== LikeService 点赞 ====================

// LikeService 笔记点赞
//
// 点赞成员放在有序集合，score 为点赞时刻毫秒时间戳，
// 既能 O(1) 判断是否点过赞，又天然支持"最早点赞前 N 人"排行。
type LikeService struct {
	store kv.Store
	blogs BlogStore
	users UserStore
	now   func() time.Time
}

func NewLikeService(store kv.Store, blogs BlogStore, users UserStore) *LikeService {
	return &LikeService{
		store: store,
		blogs: blogs,
		users: users,
		now:   time.Now,
	}
}

// LikeBlog 点赞/取消点赞（再次点击取消）
func (s *LikeService) LikeBlog(ctx context.Context, userID, blogID uint64) error {
	key := cache.BlogLikedKey(int64(blogID))
	member := strconv.FormatUint(userID, 10)

	_, err := s.store.ZScore(ctx, key, member)
	switch err {
	case nil:
		// 已点过赞，取消
		if err := s.blogs.IncrLiked(ctx, blogID, -1); err != nil {
			return err
		}
		return s.store.ZRem(ctx, key, member)
	case kv.ErrNotFound:
		// 未点过赞，点赞
		if err := s.blogs.IncrLiked(ctx, blogID, 1); err != nil {
			return err
		}
		return s.store.ZAdd(ctx, key, member, float64(s.now().UnixMilli()))
	default:
		return err
	}
}

// IsBlogLiked 判断用户是否点赞过该笔记
func (s *LikeService) IsBlogLiked(ctx context.Context, userID, blogID uint64) (bool, error) {
	key := cache.BlogLikedKey(int64(blogID))
	_, err := s.store.ZScore(ctx, key, strconv.FormatUint(userID, 10))
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// QueryBlogLikers 查询最早点赞的前 5 位用户，按点赞时间升序
func (s *LikeService) QueryBlogLikers(ctx context.Context, blogID uint64) ([]model.User, error) {
	key := cache.BlogLikedKey(int64(blogID))
	members, err := s.store.ZRange(ctx, key, 0, likersLimit-1)
	if err != nil {
		if err == kv.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return s.users.FindByIDs(ctx, ids)
}
