package social

import (
	"context"
	"strconv"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/kv"
)

// feedPageSize 关注流单页条数
const feedPageSize = 3

// ==================== FeedService 关注流 ====================

// FeedService 推模式关注流
//
// 发布笔记时把笔记ID推进每个粉丝的收件箱（有序集合），
// score 为发布时刻毫秒时间戳，读取时按分数滚动分页。
type FeedService struct {
	store   kv.Store
	blogs   BlogStore
	follows FollowStore
	now     func() time.Time
}

func NewFeedService(store kv.Store, blogs BlogStore, follows FollowStore) *FeedService {
	return &FeedService{
		store:   store,
		blogs:   blogs,
		follows: follows,
		now:     time.Now,
	}
}

// PublishBlog 发布笔记并推送给所有粉丝
//
// 推送失败只记日志不回滚，粉丝侧少一条推送可以接受，
// 笔记本体始终可以从数据库查到。
func (s *FeedService) PublishBlog(ctx context.Context, blog *model.Blog) error {
	if err := s.blogs.Create(ctx, blog); err != nil {
		return err
	}

	fanIDs, err := s.follows.ListFanIDs(ctx, blog.UserID)
	if err != nil {
		logx.WithContext(ctx).Errorf("[feed] 查询粉丝失败: userId=%d, err=%v", blog.UserID, err)
		return nil
	}

	member := strconv.FormatUint(blog.ID, 10)
	score := float64(s.now().UnixMilli())
	for _, fanID := range fanIDs {
		key := cache.FeedKey(int64(fanID))
		if err := s.store.ZAdd(ctx, key, member, score); err != nil {
			logx.WithContext(ctx).Errorf("[feed] 推送失败: fanId=%d, blogId=%d, err=%v", fanID, blog.ID, err)
		}
	}
	return nil
}

// ScrollResult 关注流滚动分页结果
type ScrollResult struct {
	Blogs []model.Blog `json:"blogs"`
	// MinTime 本页最小时间戳，作为下一页的 max 入参
	MinTime int64 `json:"min_time"`
	// Offset 下一页需要跳过的条数（与 MinTime 同分的条数）
	Offset int64 `json:"offset"`
}

// QueryBlogOfFollow 滚动查询关注流
//
// max 为上一页返回的 MinTime（首页传当前时间戳），offset 为
// 上一页返回的 Offset（首页传 0）。滚动分页不受新插入影响，
// 不会像角标分页那样出现重复或跳过。
func (s *FeedService) QueryBlogOfFollow(ctx context.Context, userID uint64, max int64, offset int64) (*ScrollResult, error) {
	key := cache.FeedKey(int64(userID))
	entries, err := s.store.ZRevRangeByScore(ctx, key, float64(max), 0, offset, feedPageSize)
	if err != nil {
		if err == kv.ErrNotFound {
			return &ScrollResult{}, nil
		}
		return nil, err
	}
	if len(entries) == 0 {
		return &ScrollResult{}, nil
	}

	ids := make([]uint64, 0, len(entries))
	var minTime int64
	var sameCount int64
	for _, e := range entries {
		id, err := strconv.ParseUint(e.Member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)

		score := int64(e.Score)
		if score == minTime {
			sameCount++
		} else {
			minTime = score
			sameCount = 1
		}
	}

	blogs, err := s.blogs.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &ScrollResult{
		Blogs:   blogs,
		MinTime: minTime,
		Offset:  sameCount,
	}, nil
}
