package model

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ==================== 错误定义 ====================

var (
	ErrUserNotFound = errors.New("用户不存在")
)

// ==================== User 用户模型 ====================

type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Phone    string `gorm:"size:16;uniqueIndex:uk_phone;not null;comment:手机号" json:"phone"`
	Password string `gorm:"size:128;comment:密码,加密存储" json:"-"`
	NickName string `gorm:"size:32;comment:昵称" json:"nick_name"`
	Icon     string `gorm:"size:255;comment:头像" json:"icon"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "tb_user"
}

// ==================== UserModel 数据访问层 ====================

type UserModel struct {
	db *gorm.DB
}

func NewUserModel(db *gorm.DB) *UserModel {
	return &UserModel{db: db}
}

// FindByID 根据ID查询
func (m *UserModel) FindByID(ctx context.Context, id uint64) (*User, error) {
	var user User
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByPhone 根据手机号查询
func (m *UserModel) FindByPhone(ctx context.Context, phone string) (*User, error) {
	var user User
	err := m.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create 创建用户
func (m *UserModel) Create(ctx context.Context, user *User) error {
	return m.db.WithContext(ctx).Create(user).Error
}

// FindByIDs 批量查询，结果按入参ID顺序返回（点赞排行榜用）
func (m *UserModel) FindByIDs(ctx context.Context, ids []uint64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []User
	err := m.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	ordered := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			ordered = append(ordered, u)
		}
	}
	return ordered, nil
}
