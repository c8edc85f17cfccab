package repository

import (
	"errors"

	"github.com/subgift/subgift/internal/models"

	"gorm.io/gorm"
)

// TariffRepository 订阅套餐仓储接口
type TariffRepository interface {
	Create(tariff *models.Tariff) error
	GetByID(id uint) (*models.Tariff, error)
	List(activeOnly bool) ([]models.Tariff, error)
	Update(tariff *models.Tariff) error
	Delete(id uint) error
	WithTx(tx *gorm.DB) *GormTariffRepository
}

// GormTariffRepository GORM 订阅套餐仓储实现
type GormTariffRepository struct {
	db *gorm.DB
}

// NewTariffRepository 创建订阅套餐仓储
func NewTariffRepository(db *gorm.DB) *GormTariffRepository {
	return &GormTariffRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTariffRepository) WithTx(tx *gorm.DB) *GormTariffRepository {
	if tx == nil {
		return r
	}
	return &GormTariffRepository{db: tx}
}

// Create 创建套餐
func (r *GormTariffRepository) Create(tariff *models.Tariff) error {
	if tariff == nil {
		return errors.New("invalid tariff")
	}
	return r.db.Create(tariff).Error
}

// GetByID 根据 ID 查询套餐
func (r *GormTariffRepository) GetByID(id uint) (*models.Tariff, error) {
	if id == 0 {
		return nil, nil
	}
	var tariff models.Tariff
	if err := r.db.First(&tariff, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tariff, nil
}

// List 查询套餐列表
func (r *GormTariffRepository) List(activeOnly bool) ([]models.Tariff, error) {
	query := r.db.Model(&models.Tariff{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var tariffs []models.Tariff
	if err := query.Order("sort_order asc, id asc").Find(&tariffs).Error; err != nil {
		return nil, err
	}
	return tariffs, nil
}

// Update 更新套餐
func (r *GormTariffRepository) Update(tariff *models.Tariff) error {
	if tariff == nil {
		return errors.New("invalid tariff")
	}
	return r.db.Save(tariff).Error
}

// Delete 删除套餐
func (r *GormTariffRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.Tariff{}, id).Error
}
