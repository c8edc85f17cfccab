package repository

import (
	"errors"
	"strings"

	"github.com/subgift/subgift/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 支付仓储接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByIDForUpdate(id uint) (*models.Payment, error)
	GetByGiftID(giftID uint) (*models.Payment, error)
	GetByProviderRef(providerRef string) (*models.Payment, error)
	Update(payment *models.Payment) error
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 支付仓储实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓储
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	if payment == nil {
		return errors.New("invalid payment")
	}
	return r.db.Create(payment).Error
}

// GetByID 根据 ID 查询支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	if id == 0 {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByIDForUpdate 根据 ID 加锁查询支付记录
func (r *GormPaymentRepository) GetByIDForUpdate(id uint) (*models.Payment, error) {
	if id == 0 {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByGiftID 根据礼物 ID 查询支付记录
func (r *GormPaymentRepository) GetByGiftID(giftID uint) (*models.Payment, error) {
	if giftID == 0 {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Where("gift_id = ?", giftID).Order("id desc").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByProviderRef 根据第三方流水号查询支付记录
func (r *GormPaymentRepository) GetByProviderRef(providerRef string) (*models.Payment, error) {
	providerRef = strings.TrimSpace(providerRef)
	if providerRef == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.Where("provider_ref = ?", providerRef).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// Update 更新支付记录
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	if payment == nil {
		return errors.New("invalid payment")
	}
	return r.db.Save(payment).Error
}
