package repository

import (
	"errors"
	"time"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"

	"gorm.io/gorm"
)

// SubscriptionRepository 订阅仓储接口
type SubscriptionRepository interface {
	Create(subscription *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetActiveByUserID(userID uint, now time.Time) (*models.Subscription, error)
	ListByUser(userID uint) ([]models.Subscription, error)
	Update(subscription *models.Subscription) error
	WithTx(tx *gorm.DB) *GormSubscriptionRepository
}

// GormSubscriptionRepository GORM 订阅仓储实现
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository 创建订阅仓储
func NewSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSubscriptionRepository) WithTx(tx *gorm.DB) *GormSubscriptionRepository {
	if tx == nil {
		return r
	}
	return &GormSubscriptionRepository{db: tx}
}

// Create 创建订阅
func (r *GormSubscriptionRepository) Create(subscription *models.Subscription) error {
	if subscription == nil {
		return errors.New("invalid subscription")
	}
	return r.db.Create(subscription).Error
}

// GetByID 根据 ID 查询订阅
func (r *GormSubscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	if id == 0 {
		return nil, nil
	}
	var subscription models.Subscription
	if err := r.db.Preload("Tariff").First(&subscription, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

// GetActiveByUserID 查询用户当前生效的订阅
func (r *GormSubscriptionRepository) GetActiveByUserID(userID uint, now time.Time) (*models.Subscription, error) {
	if userID == 0 {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var subscription models.Subscription
	err := r.db.Preload("Tariff").
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, constants.SubscriptionStatusActive, now).
		Order("expires_at desc").
		First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

// ListByUser 查询用户全部订阅
func (r *GormSubscriptionRepository) ListByUser(userID uint) ([]models.Subscription, error) {
	if userID == 0 {
		return []models.Subscription{}, nil
	}
	var subscriptions []models.Subscription
	if err := r.db.Preload("Tariff").
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// Update 更新订阅
func (r *GormSubscriptionRepository) Update(subscription *models.Subscription) error {
	if subscription == nil {
		return errors.New("invalid subscription")
	}
	return r.db.Save(subscription).Error
}
