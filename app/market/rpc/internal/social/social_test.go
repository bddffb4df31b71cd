package social

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/common/kv/kvtest"
)

// ==================== 测试替身 ====================

type fakeBlogStore struct {
	mu     sync.Mutex
	nextID uint64
	blogs  map[uint64]*model.Blog
}

func newFakeBlogStore() *fakeBlogStore {
	return &fakeBlogStore{nextID: 1, blogs: map[uint64]*model.Blog{}}
}

func (f *fakeBlogStore) Create(ctx context.Context, blog *model.Blog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	blog.ID = f.nextID
	f.nextID++
	clone := *blog
	f.blogs[blog.ID] = &clone
	return nil
}

func (f *fakeBlogStore) FindByID(ctx context.Context, id uint64) (*model.Blog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blog, ok := f.blogs[id]
	if !ok {
		return nil, model.ErrBlogNotFound
	}
	clone := *blog
	return &clone, nil
}

func (f *fakeBlogStore) IncrLiked(ctx context.Context, id uint64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	blog, ok := f.blogs[id]
	if !ok {
		return model.ErrBlogNotFound
	}
	blog.Liked = uint32(int(blog.Liked) + delta)
	return nil
}

func (f *fakeBlogStore) FindByIDs(ctx context.Context, ids []uint64) ([]model.Blog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blogs := make([]model.Blog, 0, len(ids))
	for _, id := range ids {
		if blog, ok := f.blogs[id]; ok {
			blogs = append(blogs, *blog)
		}
	}
	return blogs, nil
}

func (f *fakeBlogStore) liked(id uint64) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blogs[id].Liked
}

type fakeUserStore struct{}

func (fakeUserStore) FindByIDs(ctx context.Context, ids []uint64) ([]model.User, error) {
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, model.User{ID: id, NickName: fmt.Sprintf("用户%d", id)})
	}
	return users, nil
}

type followPair struct {
	userID       uint64
	followUserID uint64
}

type fakeFollowStore struct {
	mu    sync.Mutex
	pairs map[followPair]bool
}

func newFakeFollowStore() *fakeFollowStore {
	return &fakeFollowStore{pairs: map[followPair]bool{}}
}

func (f *fakeFollowStore) Create(ctx context.Context, follow *model.Follow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[followPair{follow.UserID, follow.FollowUserID}] = true
	return nil
}

func (f *fakeFollowStore) Delete(ctx context.Context, userID, followUserID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pairs, followPair{userID, followUserID})
	return nil
}

func (f *fakeFollowStore) Exists(ctx context.Context, userID, followUserID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pairs[followPair{userID, followUserID}], nil
}

func (f *fakeFollowStore) ListFanIDs(ctx context.Context, followUserID uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for p := range f.pairs {
		if p.followUserID == followUserID {
			ids = append(ids, p.userID)
		}
	}
	return ids, nil
}

// ==================== 点赞测试 ====================

func TestLikeBlogToggle(t *testing.T) {
	store := kvtest.New()
	blogs := newFakeBlogStore()
	_ = blogs.Create(context.Background(), &model.Blog{Title: "探店"})
	svc := NewLikeService(store, blogs, fakeUserStore{})
	ctx := context.Background()

	// 第一次点赞
	if err := svc.LikeBlog(ctx, 100, 1); err != nil {
		t.Fatalf("LikeBlog: %v", err)
	}
	if n := blogs.liked(1); n != 1 {
		t.Errorf("liked = %d, want 1", n)
	}
	liked, err := svc.IsBlogLiked(ctx, 100, 1)
	if err != nil || !liked {
		t.Errorf("IsBlogLiked = %v, %v, want true", liked, err)
	}

	// 再次点击取消
	if err := svc.LikeBlog(ctx, 100, 1); err != nil {
		t.Fatalf("LikeBlog(cancel): %v", err)
	}
	if n := blogs.liked(1); n != 0 {
		t.Errorf("liked = %d, want 0", n)
	}
	liked, err = svc.IsBlogLiked(ctx, 100, 1)
	if err != nil || liked {
		t.Errorf("IsBlogLiked = %v, %v, want false", liked, err)
	}
}

func TestQueryBlogLikersTopFiveByTime(t *testing.T) {
	store := kvtest.New()
	blogs := newFakeBlogStore()
	_ = blogs.Create(context.Background(), &model.Blog{Title: "探店"})
	svc := NewLikeService(store, blogs, fakeUserStore{})
	ctx := context.Background()

	// 6 个用户按时间先后点赞
	base := time.Now()
	for i := 0; i < 6; i++ {
		i := i
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		if err := svc.LikeBlog(ctx, uint64(200+i), 1); err != nil {
			t.Fatalf("LikeBlog: %v", err)
		}
	}

	users, err := svc.QueryBlogLikers(ctx, 1)
	if err != nil {
		t.Fatalf("QueryBlogLikers: %v", err)
	}
	if len(users) != 5 {
		t.Fatalf("likers = %d, want 5", len(users))
	}
	// 最早点赞的在前，第 6 个不上榜
	for i, u := range users {
		if u.ID != uint64(200+i) {
			t.Errorf("likers[%d] = %d, want %d", i, u.ID, 200+i)
		}
	}
}

func TestQueryBlogLikersEmpty(t *testing.T) {
	svc := NewLikeService(kvtest.New(), newFakeBlogStore(), fakeUserStore{})

	users, err := svc.QueryBlogLikers(context.Background(), 999)
	if err != nil {
		t.Fatalf("QueryBlogLikers: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("likers = %v, want empty", users)
	}
}

// ==================== 关注测试 ====================

func TestFollowAndUnfollow(t *testing.T) {
	store := kvtest.New()
	follows := newFakeFollowStore()
	svc := NewFollowService(store, follows, fakeUserStore{})
	ctx := context.Background()

	if err := svc.Follow(ctx, 1, 2, true); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	ok, err := svc.IsFollow(ctx, 1, 2)
	if err != nil || !ok {
		t.Errorf("IsFollow = %v, %v, want true", ok, err)
	}

	if err := svc.Follow(ctx, 1, 2, false); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	ok, err = svc.IsFollow(ctx, 1, 2)
	if err != nil || ok {
		t.Errorf("IsFollow = %v, %v, want false", ok, err)
	}
}

func TestFollowSelfRejected(t *testing.T) {
	svc := NewFollowService(kvtest.New(), newFakeFollowStore(), fakeUserStore{})

	if err := svc.Follow(context.Background(), 1, 1, true); err == nil {
		t.Fatal("expected error on self follow")
	}
}

func TestCommonFollows(t *testing.T) {
	store := kvtest.New()
	svc := NewFollowService(store, newFakeFollowStore(), fakeUserStore{})
	ctx := context.Background()

	// 用户 1 关注 10、11、12；用户 2 关注 11、12、13
	for _, id := range []uint64{10, 11, 12} {
		if err := svc.Follow(ctx, 1, id, true); err != nil {
			t.Fatalf("Follow: %v", err)
		}
	}
	for _, id := range []uint64{11, 12, 13} {
		if err := svc.Follow(ctx, 2, id, true); err != nil {
			t.Fatalf("Follow: %v", err)
		}
	}

	users, err := svc.CommonFollows(ctx, 1, 2)
	if err != nil {
		t.Fatalf("CommonFollows: %v", err)
	}
	got := map[uint64]bool{}
	for _, u := range users {
		got[u.ID] = true
	}
	if len(got) != 2 || !got[11] || !got[12] {
		t.Errorf("common follows = %v, want {11, 12}", got)
	}
}

// ==================== 关注流测试 ====================

func TestPublishBlogPushesToFans(t *testing.T) {
	store := kvtest.New()
	blogs := newFakeBlogStore()
	follows := newFakeFollowStore()
	_ = follows.Create(context.Background(), &model.Follow{UserID: 100, FollowUserID: 1})
	_ = follows.Create(context.Background(), &model.Follow{UserID: 101, FollowUserID: 1})
	svc := NewFeedService(store, blogs, follows)
	ctx := context.Background()

	blog := &model.Blog{UserID: 1, Title: "新店开业"}
	if err := svc.PublishBlog(ctx, blog); err != nil {
		t.Fatalf("PublishBlog: %v", err)
	}
	if blog.ID == 0 {
		t.Fatal("blog not persisted")
	}

	for _, fanID := range []uint64{100, 101} {
		result, err := svc.QueryBlogOfFollow(ctx, fanID, time.Now().UnixMilli()+1000, 0)
		if err != nil {
			t.Fatalf("QueryBlogOfFollow(fan=%d): %v", fanID, err)
		}
		if len(result.Blogs) != 1 || result.Blogs[0].ID != blog.ID {
			t.Errorf("fan %d inbox = %+v, want blog %d", fanID, result.Blogs, blog.ID)
		}
	}
}

func TestQueryBlogOfFollowScrollPaging(t *testing.T) {
	store := kvtest.New()
	blogs := newFakeBlogStore()
	follows := newFakeFollowStore()
	_ = follows.Create(context.Background(), &model.Follow{UserID: 100, FollowUserID: 1})
	svc := NewFeedService(store, blogs, follows)
	ctx := context.Background()

	// 5 条笔记，第 3、4 条同一毫秒发布
	base := time.UnixMilli(1_700_000_000_000)
	stamps := []int64{0, 1000, 2000, 2000, 3000}
	for i, offset := range stamps {
		offset := offset
		svc.now = func() time.Time { return base.Add(time.Duration(offset) * time.Millisecond) }
		if err := svc.PublishBlog(ctx, &model.Blog{UserID: 1, Title: fmt.Sprintf("笔记%d", i+1)}); err != nil {
			t.Fatalf("PublishBlog: %v", err)
		}
	}

	// 第一页：按时间倒序取 3 条（笔记 5、4、3），最小分数出现 2 次
	page1, err := svc.QueryBlogOfFollow(ctx, 100, base.UnixMilli()+10_000, 0)
	if err != nil {
		t.Fatalf("QueryBlogOfFollow: %v", err)
	}
	if len(page1.Blogs) != 3 {
		t.Fatalf("page1 = %d blogs, want 3", len(page1.Blogs))
	}
	if page1.Blogs[0].ID != 5 {
		t.Errorf("page1[0] = %d, want 5", page1.Blogs[0].ID)
	}
	if page1.MinTime != base.UnixMilli()+2000 {
		t.Errorf("page1.MinTime = %d, want %d", page1.MinTime, base.UnixMilli()+2000)
	}
	if page1.Offset != 2 {
		t.Errorf("page1.Offset = %d, want 2", page1.Offset)
	}

	// 第二页：跳过同分的 2 条，不重复不遗漏
	page2, err := svc.QueryBlogOfFollow(ctx, 100, page1.MinTime, page1.Offset)
	if err != nil {
		t.Fatalf("QueryBlogOfFollow: %v", err)
	}
	if len(page2.Blogs) != 2 {
		t.Fatalf("page2 = %d blogs, want 2", len(page2.Blogs))
	}
	if page2.Blogs[0].ID != 2 || page2.Blogs[1].ID != 1 {
		t.Errorf("page2 ids = %d, %d, want 2, 1", page2.Blogs[0].ID, page2.Blogs[1].ID)
	}
}

func TestQueryBlogOfFollowEmptyInbox(t *testing.T) {
	svc := NewFeedService(kvtest.New(), newFakeBlogStore(), newFakeFollowStore())

	result, err := svc.QueryBlogOfFollow(context.Background(), 42, time.Now().UnixMilli(), 0)
	if err != nil {
		t.Fatalf("QueryBlogOfFollow: %v", err)
	}
	if len(result.Blogs) != 0 || result.MinTime != 0 || result.Offset != 0 {
		t.Errorf("result = %+v, want zero value", result)
	}
}
