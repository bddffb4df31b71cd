package model

import (
	"context"

	"gorm.io/gorm"
)

// ==================== ShopType 商铺类型模型 ====================

type ShopType struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Name string `gorm:"size:32;comment:类型名称" json:"name"`
	Icon string `gorm:"size:255;comment:图标" json:"icon"`
	Sort uint32 `gorm:"default:0;comment:顺序" json:"sort"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ShopType) TableName() string {
	return "tb_shop_type"
}

// ==================== ShopTypeModel 数据访问层 ====================

type ShopTypeModel struct {
	db *gorm.DB
}

func NewShopTypeModel(db *gorm.DB) *ShopTypeModel {
	return &ShopTypeModel{db: db}
}

// ListAll 查询全部类型，按 sort 升序
func (m *ShopTypeModel) ListAll(ctx context.Context) ([]ShopType, error) {
	var types []ShopType
	err := m.db.WithContext(ctx).Order("sort ASC").Find(&types).Error
	return types, err
}
