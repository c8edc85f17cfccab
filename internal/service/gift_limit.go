package service

import (
	"time"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"

	"github.com/shopspring/decimal"
)

// GiftLimitService 礼物创建限额服务
// 所有判定基于已落库的礼物聚合查询，不维护内存计数。
type GiftLimitService struct {
	repo             repository.GiftRepository
	maxPerHour       int
	maxPerDay        int
	maxDailySpending decimal.Decimal
}

// GiftLimitDecision 限额判定结果
type GiftLimitDecision struct {
	HourlyCount     int64        `json:"hourly_count"`
	DailyCount      int64        `json:"daily_count"`
	SpentToday      models.Money `json:"spent_today"`
	RemainingBudget models.Money `json:"remaining_budget"`
}

// NewGiftLimitService 创建限额服务
func NewGiftLimitService(repo repository.GiftRepository, maxPerHour, maxPerDay, maxDailySpending int) *GiftLimitService {
	if maxPerHour <= 0 {
		maxPerHour = constants.GiftMaxPerHour
	}
	if maxPerDay <= 0 {
		maxPerDay = constants.GiftMaxPerDay
	}
	if maxDailySpending <= 0 {
		maxDailySpending = constants.GiftMaxDailySpending
	}
	return &GiftLimitService{
		repo:             repo,
		maxPerHour:       maxPerHour,
		maxPerDay:        maxPerDay,
		maxDailySpending: decimal.NewFromInt(int64(maxDailySpending)),
	}
}

// CheckCreate 判定赠送人是否可再创建一笔指定价格的礼物
// 检查顺序：小时频次 → 当日频次 → 当日消费额。
func (s *GiftLimitService) CheckCreate(donorUserID uint, candidatePrice decimal.Decimal) (*GiftLimitDecision, error) {
	if s == nil || s.repo == nil || donorUserID == 0 {
		return nil, ErrGiftInvalid
	}

	now := time.Now().UTC()
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	hourlyCount, err := s.repo.CountByDonorSince(donorUserID, hourAgo)
	if err != nil {
		return nil, ErrGiftFetchFailed
	}
	dailyCount, err := s.repo.CountByDonorSince(donorUserID, dayAgo)
	if err != nil {
		return nil, ErrGiftFetchFailed
	}
	spentToday, err := s.repo.SumSpendingByDonorSince(donorUserID, midnight)
	if err != nil {
		return nil, ErrGiftFetchFailed
	}

	remaining := s.maxDailySpending.Sub(spentToday)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	decision := &GiftLimitDecision{
		HourlyCount:     hourlyCount,
		DailyCount:      dailyCount,
		SpentToday:      models.NewMoneyFromDecimal(spentToday),
		RemainingBudget: models.NewMoneyFromDecimal(remaining),
	}

	if hourlyCount >= int64(s.maxPerHour) {
		return decision, ErrGiftHourlyLimited
	}
	if dailyCount >= int64(s.maxPerDay) {
		return decision, ErrGiftDailyLimited
	}
	if spentToday.Add(candidatePrice).GreaterThan(s.maxDailySpending) {
		return decision, ErrGiftSpendLimited
	}
	return decision, nil
}

// CheckBudget 判定已出的限额决策是否容得下候选价格
func (s *GiftLimitService) CheckBudget(decision *GiftLimitDecision, candidatePrice decimal.Decimal) error {
	if s == nil || decision == nil {
		return ErrGiftInvalid
	}
	if candidatePrice.GreaterThan(decision.RemainingBudget.Decimal) {
		return ErrGiftSpendLimited
	}
	return nil
}
