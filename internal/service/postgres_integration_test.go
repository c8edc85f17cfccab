//go:build integration
// +build integration

package service

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/subgift/subgift/internal/config"
	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresGiftService 初始化 PostgreSQL 集成测试环境。
// 并发兑换依赖行锁语义，sqlite 串行执行无法覆盖，需在真实 PostgreSQL 上验证。
func setupPostgresGiftService(t *testing.T) (*GiftService, *gorm.DB) {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.Subscription{},
		&models.Payment{},
		&models.Gift{},
		&models.Tariff{},
		&models.User{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Tariff{},
		&models.Gift{},
		&models.Payment{},
		&models.Subscription{},
	); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	models.DB = db

	giftRepo := repository.NewGiftRepository(db)
	tariffRepo := repository.NewTariffRepository(db)
	subscriptionSvc := NewSubscriptionService(repository.NewSubscriptionRepository(db), tariffRepo)
	limitSvc := NewGiftLimitService(giftRepo, 3, 10, 10000)
	notifySvc := NewNotificationService(nil, &config.NotifyConfig{Enabled: false})
	svc := NewGiftService(
		giftRepo,
		repository.NewUserRepository(db),
		tariffRepo,
		repository.NewPaymentRepository(db),
		subscriptionSvc,
		limitSvc,
		notifySvc,
		90,
	)
	return svc, db
}

func TestActivateGiftConcurrentExclusive(t *testing.T) {
	svc, db := setupPostgresGiftService(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "friend")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:     1,
		TariffID:        1,
		RecipientType:   constants.GiftRecipientTypeDirect,
		RecipientUserID: 2,
	})
	mustMarkPaid(t, svc, db, gift)

	const attempts = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []error
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, _, err := svc.ActivateGift(gift.Code, 2)
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrGiftAlreadyActivated):
			conflicted++
		default:
			t.Fatalf("unexpected activation error: %v", err)
		}
	}
	if succeeded != 1 || conflicted != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d success / %d conflict", succeeded, conflicted)
	}

	var subscriptionCount int64
	if err := db.Model(&models.Subscription{}).Where("gift_id = ?", gift.ID).Count(&subscriptionCount).Error; err != nil {
		t.Fatalf("count subscriptions failed: %v", err)
	}
	if subscriptionCount != 1 {
		t.Fatalf("expected a single subscription, got: %d", subscriptionCount)
	}
}

func TestActivateGiftConcurrentRandomAssignsOnce(t *testing.T) {
	svc, db := setupPostgresGiftService(t)
	seedGiftUser(t, db, 1, "donor")
	for id := uint(2); id <= 6; id++ {
		seedGiftUser(t, db, id, "user_"+strings.Repeat("x", int(id)))
	}
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	mustMarkPaid(t, svc, db, gift)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []uint
	)
	for id := uint(2); id <= 6; id++ {
		wg.Add(1)
		go func(redeemerID uint) {
			defer wg.Done()
			if _, _, err := svc.ActivateGift(gift.Code, redeemerID); err == nil {
				mu.Lock()
				winners = append(winners, redeemerID)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected a single winning redeemer, got: %v", winners)
	}
	var stored models.Gift
	if err := db.First(&stored, gift.ID).Error; err != nil {
		t.Fatalf("load gift failed: %v", err)
	}
	if stored.RecipientUserID == nil || *stored.RecipientUserID != winners[0] {
		t.Fatalf("recipient binding mismatch: winner %d, stored %+v", winners[0], stored.RecipientUserID)
	}
}
