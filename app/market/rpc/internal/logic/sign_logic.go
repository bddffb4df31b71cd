package logic

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
	commoncache "github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/errorx"
)

type SignLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	now    func() time.Time
	logx.Logger
}

func NewSignLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SignLogic {
	return &SignLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		now:    time.Now,
		Logger: logx.WithContext(ctx),
	}
}

// Sign 当日签到
//
// 每个用户每月一个位图，偏移量为当月第几天减一。
// 位图 31 位足够覆盖任意月份，重复签到幂等。
func (l *SignLogic) Sign(userID uint64) error {
	if userID == 0 {
		return errorx.ErrInvalidParams("用户ID不能为空")
	}
	now := l.now()
	key := commoncache.SignKey(int64(userID), now)
	offset := int64(now.Day() - 1)
	if err := l.svcCtx.Store.SetBit(l.ctx, key, offset, 1); err != nil {
		l.Errorf("[sign] 签到失败: userId=%d, err=%v", userID, err)
		return errorx.ErrStoreError(err)
	}
	return nil
}

// SignCount 统计本月连续签到天数
//
// 取位图从月初到今天的所有位，从今天往前数连续的 1。
// 今天未签到时连续天数为 0。
func (l *SignLogic) SignCount(userID uint64) (int, error) {
	if userID == 0 {
		return 0, errorx.ErrInvalidParams("用户ID不能为空")
	}
	now := l.now()
	key := commoncache.SignKey(int64(userID), now)
	day := now.Day()

	num, err := l.svcCtx.Store.BitFieldGet(l.ctx, key, day, 0)
	if err != nil {
		l.Errorf("[sign] 查询签到记录失败: userId=%d, err=%v", userID, err)
		return 0, errorx.ErrStoreError(err)
	}

	// 最低位是今天，逐位往前数连续的 1
	count := 0
	for num != 0 {
		if num&1 == 0 {
			break
		}
		count++
		num >>= 1
	}
	return count, nil
}
