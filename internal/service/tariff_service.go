package service

import (
	"context"
	"strings"
	"time"

	"github.com/subgift/subgift/internal/cache"
	"github.com/subgift/subgift/internal/logger"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	activeTariffCacheKey = "tariff:active"
	activeTariffCacheTTL = time.Minute
)

// TariffService 订阅套餐服务
type TariffService struct {
	repo repository.TariffRepository
}

// NewTariffService 创建订阅套餐服务
func NewTariffService(repo repository.TariffRepository) *TariffService {
	return &TariffService{repo: repo}
}

// CreateTariffInput 创建/更新套餐入参
type CreateTariffInput struct {
	Name         string
	DurationDays int
	Price        decimal.Decimal
	Currency     string
	IsActive     *bool
	SortOrder    int
}

// List 套餐列表；activeOnly 为 true 时仅返回上架套餐，走短 TTL 缓存
func (s *TariffService) List(activeOnly bool) ([]models.Tariff, error) {
	if !activeOnly {
		return s.repo.List(false)
	}

	ctx := context.Background()
	var cached []models.Tariff
	if hit, err := cache.GetJSON(ctx, activeTariffCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	tariffs, err := s.repo.List(true)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, activeTariffCacheKey, tariffs, activeTariffCacheTTL); err != nil {
		logger.Warnw("tariff_cache_set_failed", "error", err)
	}
	return tariffs, nil
}

// Get 查询套餐详情
func (s *TariffService) Get(id uint) (*models.Tariff, error) {
	tariff, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if tariff == nil {
		return nil, ErrTariffNotFound
	}
	return tariff, nil
}

// Create 创建套餐
func (s *TariffService) Create(input CreateTariffInput) (*models.Tariff, error) {
	if strings.TrimSpace(input.Name) == "" || input.DurationDays <= 0 || input.Price.IsNegative() {
		return nil, ErrTariffInvalid
	}
	tariff := &models.Tariff{
		Name:         strings.TrimSpace(input.Name),
		DurationDays: input.DurationDays,
		Price:        models.NewMoneyFromDecimal(input.Price),
		Currency:     strings.ToUpper(strings.TrimSpace(input.Currency)),
		IsActive:     true,
		SortOrder:    input.SortOrder,
	}
	if input.IsActive != nil {
		tariff.IsActive = *input.IsActive
	}
	if tariff.Currency == "" {
		tariff.Currency = "RUB"
	}
	if err := s.repo.Create(tariff); err != nil {
		return nil, err
	}
	s.invalidateCache()
	return tariff, nil
}

// Update 更新套餐
func (s *TariffService) Update(id uint, input CreateTariffInput) (*models.Tariff, error) {
	tariff, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" || input.DurationDays <= 0 || input.Price.IsNegative() {
		return nil, ErrTariffInvalid
	}
	tariff.Name = strings.TrimSpace(input.Name)
	tariff.DurationDays = input.DurationDays
	tariff.Price = models.NewMoneyFromDecimal(input.Price)
	if currency := strings.ToUpper(strings.TrimSpace(input.Currency)); currency != "" {
		tariff.Currency = currency
	}
	if input.IsActive != nil {
		tariff.IsActive = *input.IsActive
	}
	tariff.SortOrder = input.SortOrder
	if err := s.repo.Update(tariff); err != nil {
		return nil, err
	}
	s.invalidateCache()
	return tariff, nil
}

// Delete 删除套餐（软删除，已售礼物保留价格与时长快照不受影响）
func (s *TariffService) Delete(id uint) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.invalidateCache()
	return nil
}

func (s *TariffService) invalidateCache() {
	if err := cache.Del(context.Background(), activeTariffCacheKey); err != nil {
		logger.Warnw("tariff_cache_del_failed", "error", err)
	}
}
