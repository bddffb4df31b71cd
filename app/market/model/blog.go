package model

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ==================== 错误定义 ====================

var (
	ErrBlogNotFound = errors.New("笔记不存在")
)

// ==================== Blog 探店笔记模型 ====================

type Blog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ShopID uint64 `gorm:"index:idx_shop_id;comment:商铺ID" json:"shop_id"`
	UserID uint64 `gorm:"index:idx_user_id;not null;comment:发布用户ID" json:"user_id"`

	Title   string `gorm:"size:255;not null;comment:标题" json:"title"`
	Images  string `gorm:"size:2048;comment:探店照片,多个以,隔开" json:"images"`
	Content string `gorm:"size:2048;not null;comment:正文" json:"content"`

	Liked    uint32 `gorm:"default:0;comment:点赞数" json:"liked"`
	Comments uint32 `gorm:"default:0;comment:评论数" json:"comments"`

	CreatedAt int64 `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Blog) TableName() string {
	return "tb_blog"
}

// ==================== BlogModel 数据访问层 ====================

type BlogModel struct {
	db *gorm.DB
}

func NewBlogModel(db *gorm.DB) *BlogModel {
	return &BlogModel{db: db}
}

// Create 发布笔记
func (m *BlogModel) Create(ctx context.Context, blog *Blog) error {
	return m.db.WithContext(ctx).Create(blog).Error
}

// FindByID 根据ID查询
func (m *BlogModel) FindByID(ctx context.Context, id uint64) (*Blog, error) {
	var blog Blog
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&blog).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlogNotFound
		}
		return nil, err
	}
	return &blog, nil
}

// IncrLiked 点赞数增减（delta 为 +1/-1）
func (m *BlogModel) IncrLiked(ctx context.Context, id uint64, delta int) error {
	result := m.db.WithContext(ctx).
		Model(&Blog{}).
		Where("id = ?", id).
		UpdateColumn("liked", gorm.Expr("liked + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBlogNotFound
	}
	return nil
}

// ListByUserID 查询用户发布的笔记
func (m *BlogModel) ListByUserID(ctx context.Context, userID uint64, offset, limit int) ([]Blog, error) {
	var blogs []Blog
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&blogs).Error
	return blogs, err
}

// ListHot 按点赞数查询热门笔记
func (m *BlogModel) ListHot(ctx context.Context, offset, limit int) ([]Blog, error) {
	var blogs []Blog
	err := m.db.WithContext(ctx).
		Order("liked DESC").
		Offset(offset).
		Limit(limit).
		Find(&blogs).Error
	return blogs, err
}

// FindByIDs 批量查询，结果按入参ID顺序返回
func (m *BlogModel) FindByIDs(ctx context.Context, ids []uint64) ([]Blog, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var blogs []Blog
	err := m.db.WithContext(ctx).Where("id IN ?", ids).Find(&blogs).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]Blog, len(blogs))
	for _, b := range blogs {
		byID[b.ID] = b
	}
	ordered := make([]Blog, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			ordered = append(ordered, b)
		}
	}
	return ordered, nil
}
