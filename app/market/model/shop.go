package model

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ==================== 错误定义 ====================

var (
	ErrShopNotFound = errors.New("商铺不存在")
)

// ==================== Shop 商铺模型 ====================

type Shop struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Name   string `gorm:"size:128;not null;comment:商铺名称" json:"name"`
	TypeID uint64 `gorm:"index:idx_type_id;not null;comment:商铺类型ID" json:"type_id"`
	Images string `gorm:"size:1024;comment:商铺图片,多个以,隔开" json:"images"`
	Area   string `gorm:"size:128;comment:商圈" json:"area"`

	Address string  `gorm:"size:255;comment:地址" json:"address"`
	X       float64 `gorm:"comment:经度" json:"x"`
	Y       float64 `gorm:"comment:纬度" json:"y"`

	AvgPrice uint64 `gorm:"default:0;comment:均价,单位分" json:"avg_price"`
	Sold     uint32 `gorm:"default:0;comment:销量" json:"sold"`
	Comments uint32 `gorm:"default:0;comment:评论数量" json:"comments"`
	Score    uint32 `gorm:"default:0;comment:评分,1~50" json:"score"`

	OpenHours string `gorm:"size:32;comment:营业时间" json:"open_hours"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Shop) TableName() string {
	return "tb_shop"
}

// ==================== ShopModel 数据访问层 ====================

type ShopModel struct {
	db *gorm.DB
}

func NewShopModel(db *gorm.DB) *ShopModel {
	return &ShopModel{db: db}
}

// Create 创建商铺
func (m *ShopModel) Create(ctx context.Context, shop *Shop) error {
	return m.db.WithContext(ctx).Create(shop).Error
}

// FindByID 根据ID查询
func (m *ShopModel) FindByID(ctx context.Context, id uint64) (*Shop, error) {
	var shop Shop
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	return &shop, nil
}

// FindByIDs 批量查询，结果按入参ID顺序返回
func (m *ShopModel) FindByIDs(ctx context.Context, ids []uint64) ([]Shop, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var shops []Shop
	err := m.db.WithContext(ctx).Where("id IN ?", ids).Find(&shops).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]Shop, len(shops))
	for _, s := range shops {
		byID[s.ID] = s
	}
	ordered := make([]Shop, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

// ListByTypeID 按类型分页查询
func (m *ShopModel) ListByTypeID(ctx context.Context, typeID uint64, offset, limit int) ([]Shop, error) {
	var shops []Shop
	err := m.db.WithContext(ctx).
		Where("type_id = ?", typeID).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&shops).Error
	return shops, err
}

// ListAll 查询所有商铺（地理位置预热用）
func (m *ShopModel) ListAll(ctx context.Context) ([]Shop, error) {
	var shops []Shop
	err := m.db.WithContext(ctx).Find(&shops).Error
	return shops, err
}

// Update 更新商铺信息
func (m *ShopModel) Update(ctx context.Context, shop *Shop) error {
	result := m.db.WithContext(ctx).
		Model(&Shop{}).
		Where("id = ?", shop.ID).
		Updates(shop)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShopNotFound
	}
	return nil
}
