package social

import (
	"context"
	"strconv"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/kv"
)

// FollowStore 关注关系数据访问能力
type FollowStore interface {
	Create(ctx context.Context, follow *model.Follow) error
	Delete(ctx context.Context, userID, followUserID uint64) error
	Exists(ctx context.Context, userID, followUserID uint64) (bool, error)
	ListFanIDs(ctx context.Context, followUserID uint64) ([]uint64, error)
}

// ==================== FollowService 关注 ====================

// FollowService 关注关系维护
//
// 关系落库，同时在 KV 存储维护每个用户的关注集合，
// 共同关注用集合交集算，不回数据库。
type FollowService struct {
	store   kv.Store
	follows FollowStore
	users   UserStore
}

func NewFollowService(store kv.Store, follows FollowStore, users UserStore) *FollowService {
	return &FollowService{
		store:   store,
		follows: follows,
		users:   users,
	}
}

// Follow 关注或取关
func (s *FollowService) Follow(ctx context.Context, userID, followUserID uint64, isFollow bool) error {
	if userID == followUserID {
		return model.ErrUserNotFound
	}
	key := cache.FollowKey(int64(userID))
	member := strconv.FormatUint(followUserID, 10)

	if isFollow {
		if err := s.follows.Create(ctx, &model.Follow{
			UserID:       userID,
			FollowUserID: followUserID,
		}); err != nil {
			return err
		}
		return s.store.SAdd(ctx, key, member)
	}

	if err := s.follows.Delete(ctx, userID, followUserID); err != nil {
		return err
	}
	return s.store.SRem(ctx, key, member)
}

// IsFollow 判断是否已关注
func (s *FollowService) IsFollow(ctx context.Context, userID, followUserID uint64) (bool, error) {
	return s.follows.Exists(ctx, userID, followUserID)
}

// CommonFollows 查询两个用户的共同关注
func (s *FollowService) CommonFollows(ctx context.Context, userID, otherUserID uint64) ([]model.User, error) {
	members, err := s.store.SInter(ctx,
		cache.FollowKey(int64(userID)),
		cache.FollowKey(int64(otherUserID)),
	)
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
