package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupGiftLimitTest(t *testing.T) (*GiftLimitService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:gift_limit_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Gift{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	svc := NewGiftLimitService(repository.NewGiftRepository(db), 3, 10, 10000)
	return svc, db
}

var limitGiftSeq int

func seedLimitGift(t *testing.T, db *gorm.DB, donorID uint, status string, createdAt time.Time, price int64) {
	t.Helper()
	limitGiftSeq++
	gift := models.Gift{
		Code:          fmt.Sprintf("LIMIT%011d", limitGiftSeq),
		DonorUserID:   donorID,
		RecipientType: constants.GiftRecipientTypeRandom,
		TariffID:      1,
		Price:         models.NewMoneyFromInt(price),
		Currency:      "RUB",
		Status:        status,
		CreatedAt:     createdAt,
	}
	if err := db.Create(&gift).Error; err != nil {
		t.Fatalf("create gift failed: %v", err)
	}
}

func TestGiftLimitAllowsUnderLimits(t *testing.T) {
	svc, db := setupGiftLimitTest(t)
	now := time.Now().UTC()
	seedLimitGift(t, db, 1, constants.GiftStatusReady, now.Add(-10*time.Minute), 500)

	decision, err := svc.CheckCreate(1, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("check create failed: %v", err)
	}
	if decision.HourlyCount != 1 {
		t.Fatalf("expected hourly count 1, got: %d", decision.HourlyCount)
	}
	if !decision.RemainingBudget.Decimal.Equal(decimal.NewFromInt(9500)) {
		t.Fatalf("expected remaining budget 9500, got: %s", decision.RemainingBudget.Decimal)
	}
}

func TestGiftLimitHourly(t *testing.T) {
	svc, db := setupGiftLimitTest(t)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedLimitGift(t, db, 1, constants.GiftStatusReady, now.Add(-time.Duration(i+1)*time.Minute), 100)
	}

	decision, err := svc.CheckCreate(1, decimal.NewFromInt(100))
	if !errors.Is(err, ErrGiftHourlyLimited) {
		t.Fatalf("expected ErrGiftHourlyLimited, got: %v", err)
	}
	if decision == nil || decision.HourlyCount != 3 {
		t.Fatalf("invalid decision: %+v", decision)
	}
}

func TestGiftLimitDaily(t *testing.T) {
	svc, db := setupGiftLimitTest(t)
	now := time.Now().UTC()
	// 小时窗口外、24 小时窗口内的 10 笔
	for i := 0; i < 10; i++ {
		seedLimitGift(t, db, 1, constants.GiftStatusActivated, now.Add(-2*time.Hour), 100)
	}

	_, err := svc.CheckCreate(1, decimal.NewFromInt(100))
	if !errors.Is(err, ErrGiftDailyLimited) {
		t.Fatalf("expected ErrGiftDailyLimited, got: %v", err)
	}
}

func TestGiftLimitDailySpending(t *testing.T) {
	svc, db := setupGiftLimitTest(t)
	now := time.Now().UTC()
	seedLimitGift(t, db, 1, constants.GiftStatusReady, now.Add(-30*time.Minute), 9800)

	decision, err := svc.CheckCreate(1, decimal.NewFromInt(500))
	if !errors.Is(err, ErrGiftSpendLimited) {
		t.Fatalf("expected ErrGiftSpendLimited, got: %v", err)
	}
	if decision == nil || !decision.RemainingBudget.Decimal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("invalid decision: %+v", decision)
	}

	// 余额内的小额仍可创建
	if _, err := svc.CheckCreate(1, decimal.NewFromInt(200)); err != nil {
		t.Fatalf("expected small gift within budget to pass, got: %v", err)
	}
}

func TestGiftLimitIgnoresCancelledAndFailed(t *testing.T) {
	svc, db := setupGiftLimitTest(t)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedLimitGift(t, db, 1, constants.GiftStatusCancelled, now.Add(-5*time.Minute), 5000)
		seedLimitGift(t, db, 1, constants.GiftStatusPaymentFailed, now.Add(-5*time.Minute), 5000)
	}

	decision, err := svc.CheckCreate(1, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("expected cancelled/failed gifts to be ignored, got: %v", err)
	}
	if decision.HourlyCount != 0 || !decision.SpentToday.Decimal.IsZero() {
		t.Fatalf("invalid decision: %+v", decision)
	}
}

func TestGiftLimitIsolatedPerDonor(t *testing.T) {
	svc, db := setupGiftLimitTest(t)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		seedLimitGift(t, db, 1, constants.GiftStatusReady, now.Add(-10*time.Minute), 100)
	}

	if _, err := svc.CheckCreate(2, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("expected donor 2 unaffected by donor 1 limits, got: %v", err)
	}
}
