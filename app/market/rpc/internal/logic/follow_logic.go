package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
	"github.com/levi04206/hmdp/common/ctxdata"
	"github.com/levi04206/hmdp/common/errorx"
)

type FollowLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewFollowLogic(ctx context.Context, svcCtx *svc.ServiceContext) *FollowLogic {
	return &FollowLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

// Follow 关注或取关
func (l *FollowLogic) Follow(followUserID uint64, isFollow bool) error {
	userID := ctxdata.GetUserIDFromCtx(l.ctx)
	if userID <= 0 {
		return errorx.ErrInvalidParams("未登录")
	}
	if followUserID == 0 {
		return errorx.ErrInvalidParams("被关注用户ID不能为空")
	}
	if uint64(userID) == followUserID {
		return errorx.ErrInvalidParams("不能关注自己")
	}
	if err := l.svcCtx.FollowService.Follow(l.ctx, uint64(userID), followUserID, isFollow); err != nil {
		l.Errorf("[follow] 关注操作失败: userId=%d, followUserId=%d, err=%v", userID, followUserID, err)
		return errorx.ErrDBError(err)
	}
	return nil
}

// IsFollow 查询是否已关注
func (l *FollowLogic) IsFollow(followUserID uint64) (bool, error) {
	userID := ctxdata.GetUserIDFromCtx(l.ctx)
	if userID <= 0 {
		return false, errorx.ErrInvalidParams("未登录")
	}
	ok, err := l.svcCtx.FollowService.IsFollow(l.ctx, uint64(userID), followUserID)
	if err != nil {
		return false, errorx.ErrDBError(err)
	}
	return ok, nil
}

// CommonFollows 查询与目标用户的共同关注
func (l *FollowLogic) CommonFollows(otherUserID uint64) ([]model.User, error) {
	userID := ctxdata.GetUserIDFromCtx(l.ctx)
	if userID <= 0 {
		return nil, errorx.ErrInvalidParams("未登录")
	}
	users, err := l.svcCtx.FollowService.CommonFollows(l.ctx, uint64(userID), otherUserID)
	if err != nil {
		l.Errorf("[follow] 查询共同关注失败: userId=%d, otherId=%d, err=%v", userID, otherUserID, err)
		return nil, errorx.ErrStoreError(err)
	}
	return users, nil
}
