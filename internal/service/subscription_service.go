package service

import (
	"strings"
	"time"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"

	"github.com/google/uuid"
)

// SubscriptionService 订阅服务
type SubscriptionService struct {
	repo       repository.SubscriptionRepository
	tariffRepo repository.TariffRepository
}

// NewSubscriptionService 创建订阅服务
func NewSubscriptionService(repo repository.SubscriptionRepository, tariffRepo repository.TariffRepository) *SubscriptionService {
	return &SubscriptionService{repo: repo, tariffRepo: tariffRepo}
}

// ActivateForGift 为已激活的礼物开通订阅
func (s *SubscriptionService) ActivateForGift(gift *models.Gift) (*models.Subscription, error) {
	if s == nil || s.repo == nil || gift == nil {
		return nil, ErrSubscriptionCreateFailed
	}
	if gift.RecipientUserID == nil || *gift.RecipientUserID == 0 {
		return nil, ErrSubscriptionCreateFailed
	}

	// 时长以礼物下单时的快照为准，套餐后续改动或下架不影响已售礼物
	durationDays := gift.DurationDays
	if durationDays <= 0 {
		tariff, err := s.tariffRepo.GetByID(gift.TariffID)
		if err != nil || tariff == nil {
			return nil, ErrSubscriptionCreateFailed
		}
		durationDays = tariff.DurationDays
	}
	if durationDays <= 0 {
		return nil, ErrSubscriptionCreateFailed
	}

	now := time.Now().UTC()
	subscription := &models.Subscription{
		UserID:      *gift.RecipientUserID,
		TariffID:    gift.TariffID,
		AccessToken: newAccessToken(),
		Source:      constants.SubscriptionSourceGift,
		GiftID:      &gift.ID,
		Status:      constants.SubscriptionStatusActive,
		StartsAt:    now,
		ExpiresAt:   now.AddDate(0, 0, durationDays),
	}
	if err := s.repo.Create(subscription); err != nil {
		return nil, ErrSubscriptionCreateFailed
	}
	return subscription, nil
}

// GetActiveForUser 查询用户当前生效的订阅
func (s *SubscriptionService) GetActiveForUser(userID uint) (*models.Subscription, error) {
	if s == nil || s.repo == nil || userID == 0 {
		return nil, nil
	}
	return s.repo.GetActiveByUserID(userID, time.Now().UTC())
}

// ListForUser 查询用户全部订阅
func (s *SubscriptionService) ListForUser(userID uint) ([]models.Subscription, error) {
	if s == nil || s.repo == nil {
		return []models.Subscription{}, nil
	}
	return s.repo.ListByUser(userID)
}

func newAccessToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
