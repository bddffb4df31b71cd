package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/app/market/rpc/internal/social"
	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
	"github.com/levi04206/hmdp/common/ctxdata"
	"github.com/levi04206/hmdp/common/errorx"
)

type BlogLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
	logx.Logger
}

func NewBlogLogic(ctx context.Context, svcCtx *svc.ServiceContext) *BlogLogic {
	return &BlogLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
		Logger: logx.WithContext(ctx),
	}
}

// PublishBlog 发布探店笔记并推送到粉丝收件箱
func (l *BlogLogic) PublishBlog(blog *model.Blog) (uint64, error) {
	userID := ctxdata.GetUserIDFromCtx(l.ctx)
	if userID <= 0 {
		return 0, errorx.ErrInvalidParams("未登录")
	}
	if blog == nil || blog.Title == "" {
		return 0, errorx.ErrInvalidParams("标题不能为空")
	}
	blog.UserID = uint64(userID)

	if err := l.svcCtx.FeedService.PublishBlog(l.ctx, blog); err != nil {
		l.Errorf("[blog] 发布笔记失败: userId=%d, err=%v", userID, err)
		return 0, errorx.ErrDBError(err)
	}
	return blog.ID, nil
}

// QueryBlogByID 查询笔记详情，附带当前用户是否点赞
func (l *BlogLogic) QueryBlogByID(id uint64) (*model.Blog, bool, error) {
	blog, err := l.svcCtx.BlogModel.FindByID(l.ctx, id)
	if err != nil {
		if err == model.ErrBlogNotFound {
			return nil, false, errorx.ErrBlogNotFound()
		}
		return nil, false, errorx.ErrDBError(err)
	}

	userID := ctxdata.GetUserIDFromCtx(l.ctx)
	if userID <= 0 {
		return blog, false, nil
	}
	liked, err := l.svcCtx.LikeService.IsBlogLiked(l.ctx, uint64(userID), id)
	if err != nil {
		// 点赞态查询失败按未点赞展示
		l.Errorf("[blog] 查询点赞状态失败: blogId=%d, err=%v", id, err)
		return blog, false, nil
	}
	return blog, liked, nil
}

// LikeBlog 点赞/取消点赞
func (l *BlogLogic) LikeBlog(blogID uint64) error {
	userID := ctxdata.GetUserIDFromCtx(l.ctx)
	if userID <= 0 {
		return errorx.ErrInvalidParams("未登录")
	}
	if err := l.svcCtx.LikeService.LikeBlog(l.ctx, uint64(userID), blogID); err != nil {
		if err == model.ErrBlogNotFound {
			return errorx.ErrBlogNotFound()
		}
		l.Errorf("[blog] 点赞失败: userId=%d, blogId=%d, err=%v", userID, blogID, err)
		return errorx.ErrStoreError(err)
	}
	return nil
}

// QueryBlogLikers 查询最早点赞的前 5 位用户
func (l *BlogLogic) QueryBlogLikers(blogID uint64) ([]model.User, error) {
	users, err := l.svcCtx.LikeService.QueryBlogLikers(l.ctx, blogID)
	if err != nil {
		l.Errorf("[blog] 查询点赞榜失败: blogId=%d, err=%v", blogID, err)
		return nil, errorx.ErrStoreError(err)
	}
	return users, nil
}

// QueryHotBlogs 查询热门笔记
func (l *BlogLogic) QueryHotBlogs(page int) ([]model.Blog, error) {
	if page <= 0 {
		page = 1
	}
	blogs, err := l.svcCtx.BlogModel.ListHot(l.ctx, (page-1)*defaultPageSize, defaultPageSize)
	if err != nil {
		return nil, errorx.ErrDBError(err)
	}
	return blogs, nil
}

// QueryBlogOfFollow 滚动查询关注流
func (l *BlogLogic) QueryBlogOfFollow(max int64, offset int64) (*social.ScrollResult, error) {
	userID := ctxdata.GetUserIDFromCtx(l.ctx)
	if userID <= 0 {
		return nil, errorx.ErrInvalidParams("未登录")
	}
	result, err := l.svcCtx.FeedService.QueryBlogOfFollow(l.ctx, uint64(userID), max, offset)
	if err != nil {
		l.Errorf("[blog] 查询关注流失败: userId=%d, err=%v", userID, err)
		return nil, errorx.ErrStoreError(err)
	}
	return result, nil
}
