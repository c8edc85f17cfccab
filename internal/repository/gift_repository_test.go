package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupGiftRepositoryTest(t *testing.T) (*GormGiftRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:gift_repository_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Gift{}, &models.Tariff{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewGiftRepository(db), db
}

var repoGiftSeq int

func seedRepoGift(t *testing.T, db *gorm.DB, donorID uint, status string, price int64, mutate func(*models.Gift)) *models.Gift {
	t.Helper()
	repoGiftSeq++
	gift := &models.Gift{
		Code:          fmt.Sprintf("REPO%012d", repoGiftSeq),
		DonorUserID:   donorID,
		RecipientType: constants.GiftRecipientTypeRandom,
		TariffID:      1,
		Price:         models.NewMoneyFromInt(price),
		Currency:      "RUB",
		Status:        status,
	}
	if mutate != nil {
		mutate(gift)
	}
	if err := db.Create(gift).Error; err != nil {
		t.Fatalf("create gift failed: %v", err)
	}
	return gift
}

func TestGiftRepositoryCodeLookup(t *testing.T) {
	repo, db := setupGiftRepositoryTest(t)
	gift := seedRepoGift(t, db, 1, constants.GiftStatusReady, 100, nil)

	found, err := repo.GetByCode(gift.Code)
	if err != nil {
		t.Fatalf("get by code failed: %v", err)
	}
	if found == nil || found.ID != gift.ID {
		t.Fatalf("code lookup mismatch: %+v", found)
	}

	// 大小写与空白归一化
	found, err = repo.GetByCode("  " + gift.Code + "  ")
	if err != nil || found == nil {
		t.Fatalf("expected trimmed lookup to succeed: %v", err)
	}

	exists, err := repo.CodeExists(gift.Code)
	if err != nil || !exists {
		t.Fatalf("expected code to exist: %v", err)
	}
	exists, err = repo.CodeExists("MISSING000000000")
	if err != nil || exists {
		t.Fatalf("expected missing code: %v", err)
	}

	missing, err := repo.GetByCode("MISSING000000000")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing code, got: %+v (%v)", missing, err)
	}
}

func TestGiftRepositoryIdempotencyKeyLookup(t *testing.T) {
	repo, db := setupGiftRepositoryTest(t)
	key := "order-abc"
	gift := seedRepoGift(t, db, 1, constants.GiftStatusPendingPayment, 100, func(g *models.Gift) {
		g.IdempotencyKey = &key
	})

	found, err := repo.GetByIdempotencyKey("order-abc")
	if err != nil {
		t.Fatalf("get by idempotency key failed: %v", err)
	}
	if found == nil || found.ID != gift.ID {
		t.Fatalf("idempotency lookup mismatch: %+v", found)
	}
	if found, err := repo.GetByIdempotencyKey(""); err != nil || found != nil {
		t.Fatalf("empty key must return nil: %+v (%v)", found, err)
	}
}

func TestGiftRepositoryDonorAggregates(t *testing.T) {
	repo, db := setupGiftRepositoryTest(t)
	now := time.Now().UTC()

	seedRepoGift(t, db, 1, constants.GiftStatusReady, 300, nil)
	seedRepoGift(t, db, 1, constants.GiftStatusActivated, 200, nil)
	seedRepoGift(t, db, 1, constants.GiftStatusPendingPayment, 100, nil)
	// 已取消与支付失败不占额度
	seedRepoGift(t, db, 1, constants.GiftStatusCancelled, 5000, nil)
	seedRepoGift(t, db, 1, constants.GiftStatusPaymentFailed, 5000, nil)
	// 其他用户不计入
	seedRepoGift(t, db, 2, constants.GiftStatusReady, 9999, nil)

	count, err := repo.CountByDonorSince(1, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 counted gifts, got: %d", count)
	}

	spent, err := repo.SumSpendingByDonorSince(1, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if !spent.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected spent 600, got: %s", spent)
	}

	spent, err = repo.SumSpendingByDonorSince(3, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if !spent.IsZero() {
		t.Fatalf("expected zero for donor without gifts, got: %s", spent)
	}
}

func TestGiftRepositoryList(t *testing.T) {
	repo, db := setupGiftRepositoryTest(t)
	recipientID := uint(7)
	seedRepoGift(t, db, 1, constants.GiftStatusReady, 100, nil)
	seedRepoGift(t, db, 1, constants.GiftStatusActivated, 100, func(g *models.Gift) {
		g.RecipientType = constants.GiftRecipientTypeDirect
		g.RecipientUserID = &recipientID
	})
	seedRepoGift(t, db, 2, constants.GiftStatusReady, 100, nil)

	gifts, total, err := repo.List(GiftListFilter{DonorUserID: 1, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(gifts) != 2 {
		t.Fatalf("expected 2 gifts for donor 1, got: total=%d len=%d", total, len(gifts))
	}

	gifts, total, err = repo.List(GiftListFilter{Status: constants.GiftStatusActivated, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || gifts[0].Status != constants.GiftStatusActivated {
		t.Fatalf("status filter mismatch: total=%d", total)
	}

	gifts, total, err = repo.List(GiftListFilter{RecipientUserID: recipientID, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("recipient filter mismatch: total=%d", total)
	}

	// 分页
	gifts, total, err = repo.List(GiftListFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 3 || len(gifts) != 2 {
		t.Fatalf("pagination mismatch: total=%d len=%d", total, len(gifts))
	}
}

func TestGiftRepositoryExpireDue(t *testing.T) {
	repo, db := setupGiftRepositoryTest(t)
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := seedRepoGift(t, db, 1, constants.GiftStatusReady, 100, func(g *models.Gift) {
		g.ExpiresAt = &past
	})
	fresh := seedRepoGift(t, db, 1, constants.GiftStatusReady, 100, func(g *models.Gift) {
		g.ExpiresAt = &future
	})
	// 已兑换礼物不受清扫影响
	activatedDue := seedRepoGift(t, db, 1, constants.GiftStatusActivated, 100, func(g *models.Gift) {
		g.ExpiresAt = &past
	})

	count, err := repo.ExpireDue(now)
	if err != nil {
		t.Fatalf("expire due failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row affected, got: %d", count)
	}

	assertStatus := func(id uint, want string) {
		t.Helper()
		var gift models.Gift
		if err := db.First(&gift, id).Error; err != nil {
			t.Fatalf("load gift failed: %v", err)
		}
		if gift.Status != want {
			t.Fatalf("gift %d: expected %s, got: %s", id, want, gift.Status)
		}
	}
	assertStatus(due.ID, constants.GiftStatusExpired)
	assertStatus(fresh.ID, constants.GiftStatusReady)
	assertStatus(activatedDue.ID, constants.GiftStatusActivated)
}

func TestGiftRepositoryStats(t *testing.T) {
	repo, db := setupGiftRepositoryTest(t)
	recipientID := uint(9)
	now := time.Now().UTC()
	seedRepoGift(t, db, 1, constants.GiftStatusActivated, 300, func(g *models.Gift) {
		g.RecipientUserID = &recipientID
		g.ActivatedAt = &now
	})
	seedRepoGift(t, db, 1, constants.GiftStatusReady, 200, nil)
	seedRepoGift(t, db, 2, constants.GiftStatusCancelled, 100, nil)

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.StatusCounts[constants.GiftStatusActivated] != 1 ||
		stats.StatusCounts[constants.GiftStatusReady] != 1 ||
		stats.StatusCounts[constants.GiftStatusCancelled] != 1 {
		t.Fatalf("status counts mismatch: %+v", stats.StatusCounts)
	}
	if !stats.ActivatedTotal.Decimal.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("activated total mismatch: %s", stats.ActivatedTotal.Decimal)
	}
	if stats.UniqueDonors != 2 || stats.UniqueRecipients != 1 {
		t.Fatalf("unique counts mismatch: %+v", stats)
	}
	if stats.CreatedLast24h != 3 || stats.ActivatedLast24h != 1 {
		t.Fatalf("24h counts mismatch: %+v", stats)
	}
}

func TestGiftRepositoryUserStats(t *testing.T) {
	repo, db := setupGiftRepositoryTest(t)
	userID := uint(1)
	seedRepoGift(t, db, 1, constants.GiftStatusActivated, 300, nil)
	seedRepoGift(t, db, 1, constants.GiftStatusReady, 200, nil)
	seedRepoGift(t, db, 1, constants.GiftStatusCancelled, 999, nil)
	seedRepoGift(t, db, 2, constants.GiftStatusActivated, 400, func(g *models.Gift) {
		g.RecipientUserID = &userID
	})

	stats, err := repo.UserStats(userID)
	if err != nil {
		t.Fatalf("user stats failed: %v", err)
	}
	if stats.SentCount != 3 {
		t.Fatalf("expected 3 sent, got: %d", stats.SentCount)
	}
	if stats.ReceivedCount != 1 {
		t.Fatalf("expected 1 received, got: %d", stats.ReceivedCount)
	}
	// 已取消不计入消费总额
	if !stats.TotalSpent.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected spent 500, got: %s", stats.TotalSpent.Decimal)
	}
	if stats.SentByStatus[constants.GiftStatusCancelled] != 1 {
		t.Fatalf("sent by status mismatch: %+v", stats.SentByStatus)
	}
}
