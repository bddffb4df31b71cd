package model

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== 优惠券类型 ====================

const (
	VoucherTypeNormal  int8 = 0 // 普通券
	VoucherTypeSeckill int8 = 1 // 秒杀券
)

// ==================== 优惠券状态 ====================

const (
	VoucherStatusOnSale   int8 = 1 // 上架
	VoucherStatusSoldOut  int8 = 2 // 下架
	VoucherStatusExpired  int8 = 3 // 过期
)

// ==================== 错误定义 ====================

var (
	ErrVoucherNotFound = errors.New("优惠券不存在")
	ErrStockNotEnough  = errors.New("库存不足")
)

// ==================== Voucher 优惠券模型 ====================

type Voucher struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ShopID   uint64 `gorm:"index:idx_shop_id;comment:商铺ID" json:"shop_id"`
	Title    string `gorm:"size:255;not null;comment:代金券标题" json:"title"`
	SubTitle string `gorm:"size:255;comment:副标题" json:"sub_title"`
	Rules    string `gorm:"size:1024;comment:使用规则" json:"rules"`

	PayValue    uint64 `gorm:"default:0;comment:支付金额,单位分" json:"pay_value"`
	ActualValue uint64 `gorm:"default:0;comment:抵扣金额,单位分" json:"actual_value"`

	Type   int8 `gorm:"default:0;comment:类型: 0普通券 1秒杀券" json:"type"`
	Status int8 `gorm:"default:1;comment:状态: 1上架 2下架 3过期" json:"status"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Voucher) TableName() string {
	return "tb_voucher"
}

// ==================== SeckillVoucher 秒杀券库存模型 ====================

// SeckillVoucher 秒杀券附加信息，与优惠券一对一
type SeckillVoucher struct {
	VoucherID uint64 `gorm:"primaryKey;comment:关联的优惠券ID" json:"voucher_id"`

	Stock     int32     `gorm:"not null;comment:库存" json:"stock"`
	BeginTime time.Time `gorm:"not null;comment:生效时间" json:"begin_time"`
	EndTime   time.Time `gorm:"not null;comment:失效时间" json:"end_time"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SeckillVoucher) TableName() string {
	return "tb_seckill_voucher"
}

// ==================== VoucherModel 数据访问层 ====================

type VoucherModel struct {
	db *gorm.DB
}

func NewVoucherModel(db *gorm.DB) *VoucherModel {
	return &VoucherModel{db: db}
}

// Create 创建普通券
func (m *VoucherModel) Create(ctx context.Context, voucher *Voucher) error {
	return m.db.WithContext(ctx).Create(voucher).Error
}

// CreateSeckill 创建秒杀券（券 + 库存，同一事务）
func (m *VoucherModel) CreateSeckill(ctx context.Context, voucher *Voucher, seckill *SeckillVoucher) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		voucher.Type = VoucherTypeSeckill
		if err := tx.Create(voucher).Error; err != nil {
			return err
		}
		seckill.VoucherID = voucher.ID
		return tx.Create(seckill).Error
	})
}

// FindByID 根据ID查询
func (m *VoucherModel) FindByID(ctx context.Context, id uint64) (*Voucher, error) {
	var voucher Voucher
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

// ListByShopID 查询商铺可用优惠券
func (m *VoucherModel) ListByShopID(ctx context.Context, shopID uint64) ([]Voucher, error) {
	var vouchers []Voucher
	err := m.db.WithContext(ctx).
		Where("shop_id = ? AND status = ?", shopID, VoucherStatusOnSale).
		Find(&vouchers).Error
	return vouchers, err
}

// ==================== SeckillVoucherModel 数据访问层 ====================

type SeckillVoucherModel struct {
	db *gorm.DB
}

func NewSeckillVoucherModel(db *gorm.DB) *SeckillVoucherModel {
	return &SeckillVoucherModel{db: db}
}

// FindByVoucherID 根据优惠券ID查询秒杀信息
func (m *SeckillVoucherModel) FindByVoucherID(ctx context.Context, voucherID uint64) (*SeckillVoucher, error) {
	var seckill SeckillVoucher
	err := m.db.WithContext(ctx).Where("voucher_id = ?", voucherID).First(&seckill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &seckill, nil
}

// ListAll 查询全部秒杀券（库存预热用）
func (m *SeckillVoucherModel) ListAll(ctx context.Context) ([]SeckillVoucher, error) {
	var seckills []SeckillVoucher
	err := m.db.WithContext(ctx).Find(&seckills).Error
	return seckills, err
}

// DecrStock 扣减库存（乐观保护：stock > 0 才扣）
//
// WHERE 条件带 stock > 0，并发超卖时 RowsAffected 为 0
func (m *SeckillVoucherModel) DecrStock(ctx context.Context, voucherID uint64) error {
	return decrStock(m.db.WithContext(ctx), voucherID)
}

// DecrStockTx 在给定事务中扣减库存
func (m *SeckillVoucherModel) DecrStockTx(tx *gorm.DB, voucherID uint64) error {
	return decrStock(tx, voucherID)
}

func decrStock(db *gorm.DB, voucherID uint64) error {
	result := db.Model(&SeckillVoucher{}).
		Where("voucher_id = ? AND stock > 0", voucherID).
		UpdateColumn("stock", gorm.Expr("stock - ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockNotEnough
	}
	return nil
}
