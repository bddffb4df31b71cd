package model

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ==================== Follow 关注关系模型 ====================

type Follow struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	UserID       uint64 `gorm:"uniqueIndex:uk_user_follow,priority:1;not null;comment:粉丝用户ID" json:"user_id"`
	FollowUserID uint64 `gorm:"uniqueIndex:uk_user_follow,priority:2;index:idx_follow_user_id;not null;comment:被关注用户ID" json:"follow_user_id"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
}

func (Follow) TableName() string {
	return "tb_follow"
}

// ==================== FollowModel 数据访问层 ====================

type FollowModel struct {
	db *gorm.DB
}

func NewFollowModel(db *gorm.DB) *FollowModel {
	return &FollowModel{db: db}
}

// Create 建立关注关系
func (m *FollowModel) Create(ctx context.Context, follow *Follow) error {
	return m.db.WithContext(ctx).Create(follow).Error
}

// Delete 解除关注关系
func (m *FollowModel) Delete(ctx context.Context, userID, followUserID uint64) error {
	return m.db.WithContext(ctx).
		Where("user_id = ? AND follow_user_id = ?", userID, followUserID).
		Delete(&Follow{}).Error
}

// Exists 判断是否已关注
func (m *FollowModel) Exists(ctx context.Context, userID, followUserID uint64) (bool, error) {
	var count int64
	err := m.db.WithContext(ctx).
		Model(&Follow{}).
		Where("user_id = ? AND follow_user_id = ?", userID, followUserID).
		Count(&count).Error
	return count > 0, err
}

// ListFollowUserIDs 查询用户关注的所有用户ID
func (m *FollowModel) ListFollowUserIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := m.db.WithContext(ctx).
		Model(&Follow{}).
		Where("user_id = ?", userID).
		Pluck("follow_user_id", &ids).Error
	return ids, err
}

// ListFanIDs 查询用户的所有粉丝ID（笔记推送用）
func (m *FollowModel) ListFanIDs(ctx context.Context, followUserID uint64) ([]uint64, error) {
	var ids []uint64
	err := m.db.WithContext(ctx).
		Model(&Follow{}).
		Where("follow_user_id = ?", followUserID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// ==================== 错误定义 ====================

var (
	ErrFollowNotFound = errors.New("关注关系不存在")
)
