package model

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ==================== 订单支付类型 ====================

const (
	PayTypeBalance int8 = 1 // 余额支付
	PayTypeAlipay  int8 = 2 // 支付宝
	PayTypeWechat  int8 = 3 // 微信
)

// ==================== 订单状态 ====================

const (
	OrderStatusUnpaid   int8 = 1 // 未支付
	OrderStatusPaid     int8 = 2 // 已支付
	OrderStatusUsed     int8 = 3 // 已核销
	OrderStatusCanceled int8 = 4 // 已取消
	OrderStatusRefunded int8 = 5 // 已退款
)

// ==================== 错误定义 ====================

var (
	ErrOrderNotFound = errors.New("订单不存在")
	ErrOrderExists   = errors.New("订单已存在")
)

// mysqlDuplicateEntry MySQL 唯一键冲突错误码
const mysqlDuplicateEntry = 1062

// ==================== VoucherOrder 优惠券订单模型 ====================

// VoucherOrder 订单主键由全局ID生成器显式赋值，不自增
type VoucherOrder struct {
	ID uint64 `gorm:"primaryKey;autoIncrement:false" json:"id"`

	UserID    uint64 `gorm:"uniqueIndex:uk_user_voucher,priority:1;not null;comment:下单用户ID" json:"user_id"`
	VoucherID uint64 `gorm:"uniqueIndex:uk_user_voucher,priority:2;index:idx_voucher_id;not null;comment:优惠券ID" json:"voucher_id"`

	PayType int8 `gorm:"default:1;comment:支付方式: 1余额 2支付宝 3微信" json:"pay_type"`
	Status  int8 `gorm:"default:1;comment:订单状态: 1未支付 2已支付 3已核销 4已取消 5已退款" json:"status"`

	CreatedAt int64 `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"updated_at"`
}

func (VoucherOrder) TableName() string {
	return "tb_voucher_order"
}

// ==================== VoucherOrderModel 数据访问层 ====================

type VoucherOrderModel struct {
	db *gorm.DB
}

func NewVoucherOrderModel(db *gorm.DB) *VoucherOrderModel {
	return &VoucherOrderModel{db: db}
}

// DB 返回底层连接（跨模型事务用）
func (m *VoucherOrderModel) DB() *gorm.DB {
	return m.db
}

// Create 创建订单，唯一键冲突返回 ErrOrderExists
func (m *VoucherOrderModel) Create(ctx context.Context, order *VoucherOrder) error {
	return translateDuplicate(m.db.WithContext(ctx).Create(order).Error)
}

// CreateTx 在给定事务中创建订单
func (m *VoucherOrderModel) CreateTx(tx *gorm.DB, order *VoucherOrder) error {
	return translateDuplicate(tx.Create(order).Error)
}

// translateDuplicate 把唯一键冲突翻译为 ErrOrderExists
func translateDuplicate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrOrderExists
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return ErrOrderExists
	}
	return err
}

// FindByID 根据订单ID查询
func (m *VoucherOrderModel) FindByID(ctx context.Context, id uint64) (*VoucherOrder, error) {
	var order VoucherOrder
	err := m.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByUserVoucher 根据用户和优惠券查询订单
func (m *VoucherOrderModel) FindByUserVoucher(ctx context.Context, userID, voucherID uint64) (*VoucherOrder, error) {
	var order VoucherOrder
	err := m.db.WithContext(ctx).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CountByUserVoucher 统计用户在某优惠券下的订单数（一人一单校验）
func (m *VoucherOrderModel) CountByUserVoucher(ctx context.Context, userID, voucherID uint64) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).
		Model(&VoucherOrder{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		Count(&count).Error
	return count, err
}

// ListByUserID 查询用户订单列表
func (m *VoucherOrderModel) ListByUserID(ctx context.Context, userID uint64, offset, limit int) ([]VoucherOrder, error) {
	var orders []VoucherOrder
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
