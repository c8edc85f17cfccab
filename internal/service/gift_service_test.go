package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/subgift/subgift/internal/config"
	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupGiftServiceTest(t *testing.T) (*GiftService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:gift_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Tariff{},
		&models.Gift{},
		&models.Payment{},
		&models.Subscription{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	giftRepo := repository.NewGiftRepository(db)
	userRepo := repository.NewUserRepository(db)
	tariffRepo := repository.NewTariffRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subscriptionSvc := NewSubscriptionService(repository.NewSubscriptionRepository(db), tariffRepo)
	limitSvc := NewGiftLimitService(giftRepo, 3, 10, 10000)
	notifySvc := NewNotificationService(nil, &config.NotifyConfig{Enabled: false})
	svc := NewGiftService(giftRepo, userRepo, tariffRepo, paymentRepo, subscriptionSvc, limitSvc, notifySvc, 90)
	return svc, db
}

func seedGiftUser(t *testing.T, db *gorm.DB, id uint, username string) {
	t.Helper()
	user := models.User{
		ID:          id,
		ChatUserID:  int64(1000000 + id),
		Username:    username,
		DisplayName: username,
		Status:      constants.UserStatusActive,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
}

func seedGiftTariff(t *testing.T, db *gorm.DB, id uint, price int64, active bool) {
	t.Helper()
	tariff := models.Tariff{
		ID:           id,
		Name:         fmt.Sprintf("套餐 %d", id),
		DurationDays: 30,
		Price:        models.NewMoneyFromInt(price),
		Currency:     "RUB",
		IsActive:     active,
	}
	if err := db.Create(&tariff).Error; err != nil {
		t.Fatalf("create tariff failed: %v", err)
	}
}

func mustCreateGift(t *testing.T, svc *GiftService, input CreateGiftInput) *models.Gift {
	t.Helper()
	gift, _, err := svc.CreateGift(input)
	if err != nil {
		t.Fatalf("create gift failed: %v", err)
	}
	return gift
}

func mustMarkPaid(t *testing.T, svc *GiftService, db *gorm.DB, gift *models.Gift) *models.Gift {
	t.Helper()
	var payment models.Payment
	if err := db.Where("gift_id = ?", gift.ID).First(&payment).Error; err != nil {
		t.Fatalf("load payment intent failed: %v", err)
	}
	paid, err := svc.MarkGiftPaid(payment.ID, "prov-ref", nil)
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	return paid
}

func TestCreateGiftDirect(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "friend")
	seedGiftTariff(t, db, 1, 499, true)

	gift, decision, err := svc.CreateGift(CreateGiftInput{
		DonorUserID:     1,
		TariffID:        1,
		RecipientType:   constants.GiftRecipientTypeDirect,
		RecipientUserID: 2,
		Message:         "生日快乐",
	})
	if err != nil {
		t.Fatalf("create gift failed: %v", err)
	}
	if gift.Status != constants.GiftStatusPendingPayment {
		t.Fatalf("expected pending_payment, got: %s", gift.Status)
	}
	if len(gift.Code) != constants.GiftCodeLength {
		t.Fatalf("invalid code: %s", gift.Code)
	}
	if gift.RecipientUserID == nil || *gift.RecipientUserID != 2 {
		t.Fatalf("recipient not bound: %+v", gift)
	}
	if !gift.Price.Decimal.Equal(decimal.NewFromInt(499)) {
		t.Fatalf("price snapshot mismatch: %s", gift.Price.Decimal)
	}
	if decision == nil || !decision.RemainingBudget.Decimal.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("invalid limit decision: %+v", decision)
	}

	// 建单同时生成支付意向
	var payment models.Payment
	if err := db.Where("gift_id = ?", gift.ID).First(&payment).Error; err != nil {
		t.Fatalf("payment intent missing: %v", err)
	}
	if payment.Status != constants.PaymentStatusInitiated {
		t.Fatalf("expected initiated payment, got: %s", payment.Status)
	}
}

func TestCreateGiftByUsername(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "Friend_User")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:       1,
		TariffID:          1,
		RecipientType:     constants.GiftRecipientTypeDirect,
		RecipientUsername: "@friend_user",
	})
	if gift.RecipientUserID == nil || *gift.RecipientUserID != 2 {
		t.Fatalf("expected username lookup to resolve user 2: %+v", gift)
	}
}

func TestCreateGiftValidation(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "friend")
	seedGiftTariff(t, db, 1, 499, true)
	seedGiftTariff(t, db, 2, 999, false)

	cases := []struct {
		name  string
		input CreateGiftInput
		want  error
	}{
		{"missing recipient type", CreateGiftInput{DonorUserID: 1, TariffID: 1}, ErrGiftInvalid},
		{"unknown donor", CreateGiftInput{DonorUserID: 99, TariffID: 1, RecipientType: constants.GiftRecipientTypeRandom}, ErrUserNotFound},
		{"unknown tariff", CreateGiftInput{DonorUserID: 1, TariffID: 99, RecipientType: constants.GiftRecipientTypeRandom}, ErrTariffNotFound},
		{"inactive tariff", CreateGiftInput{DonorUserID: 1, TariffID: 2, RecipientType: constants.GiftRecipientTypeRandom}, ErrTariffUnavailable},
		{"self gift", CreateGiftInput{DonorUserID: 1, TariffID: 1, RecipientType: constants.GiftRecipientTypeDirect, RecipientUserID: 1}, ErrGiftSelfRedeem},
		{"unknown recipient", CreateGiftInput{DonorUserID: 1, TariffID: 1, RecipientType: constants.GiftRecipientTypeDirect, RecipientUserID: 42}, ErrUserNotFound},
	}
	for _, tc := range cases {
		if _, _, err := svc.CreateGift(tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got: %v", tc.name, tc.want, err)
		}
	}
}

func TestCreateGiftIdempotencyKey(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 499, true)

	first := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:    1,
		TariffID:       1,
		RecipientType:  constants.GiftRecipientTypeRandom,
		IdempotencyKey: "bot-msg-42",
	})
	second := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:    1,
		TariffID:       1,
		RecipientType:  constants.GiftRecipientTypeRandom,
		IdempotencyKey: "bot-msg-42",
	})
	if first.ID != second.ID || first.Code != second.Code {
		t.Fatalf("expected same gift for repeated idempotency key: %d vs %d", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&models.Gift{}).Count(&count).Error; err != nil {
		t.Fatalf("count gifts failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single gift row, got: %d", count)
	}
}

func TestCreateGiftHourlyLimit(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 100, true)

	for i := 0; i < 3; i++ {
		mustCreateGift(t, svc, CreateGiftInput{
			DonorUserID:   1,
			TariffID:      1,
			RecipientType: constants.GiftRecipientTypeRandom,
		})
	}
	_, decision, err := svc.CreateGift(CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	if !errors.Is(err, ErrGiftHourlyLimited) {
		t.Fatalf("expected ErrGiftHourlyLimited, got: %v", err)
	}
	if decision == nil || decision.HourlyCount != 3 {
		t.Fatalf("invalid decision: %+v", decision)
	}
}

func TestMarkGiftPaid(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	paid := mustMarkPaid(t, svc, db, gift)
	if paid.Status != constants.GiftStatusReady {
		t.Fatalf("expected ready, got: %s", paid.Status)
	}
	if paid.PaidAt == nil || paid.ExpiresAt == nil {
		t.Fatalf("expected paid_at and expires_at set: %+v", paid)
	}
	wantExpiry := paid.PaidAt.AddDate(0, 0, 90)
	if !paid.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected 90 day expiry, got: %s", paid.ExpiresAt)
	}

	var payment models.Payment
	if err := db.Where("gift_id = ?", gift.ID).First(&payment).Error; err != nil {
		t.Fatalf("load payment failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusSuccess || payment.ProviderRef != "prov-ref" {
		t.Fatalf("payment not updated: %+v", payment)
	}
}

func TestMarkGiftPaidIdempotent(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	first := mustMarkPaid(t, svc, db, gift)
	// webhook 重复投递：状态保持不变
	second := mustMarkPaid(t, svc, db, gift)
	if second.Status != constants.GiftStatusReady {
		t.Fatalf("expected ready after redelivery, got: %s", second.Status)
	}
	if !first.ExpiresAt.Equal(*second.ExpiresAt) {
		t.Fatalf("expiry changed on redelivery: %s vs %s", first.ExpiresAt, second.ExpiresAt)
	}
}

func TestMarkGiftPaidAfterCancelIsNoop(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	if _, err := svc.CancelGift(gift.ID, 1, false); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	paid := mustMarkPaid(t, svc, db, gift)
	if paid.Status != constants.GiftStatusCancelled {
		t.Fatalf("expected cancelled to stay terminal, got: %s", paid.Status)
	}
}

func TestMarkGiftPaymentFailed(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	var payment models.Payment
	if err := db.Where("gift_id = ?", gift.ID).First(&payment).Error; err != nil {
		t.Fatalf("load payment failed: %v", err)
	}
	failed, err := svc.MarkGiftPaymentFailed(payment.ID, "prov-ref")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if failed.Status != constants.GiftStatusPaymentFailed {
		t.Fatalf("expected payment_failed, got: %s", failed.Status)
	}
}

func TestActivateGiftDirect(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
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

	activated, subscription, err := svc.ActivateGift(gift.Code, 2)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if activated.Status != constants.GiftStatusActivated {
		t.Fatalf("expected activated, got: %s", activated.Status)
	}
	if subscription == nil || subscription.UserID != 2 {
		t.Fatalf("invalid subscription: %+v", subscription)
	}
	if subscription.Source != constants.SubscriptionSourceGift {
		t.Fatalf("expected gift source, got: %s", subscription.Source)
	}
	wantExpiry := subscription.StartsAt.AddDate(0, 0, 30)
	if !subscription.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected 30 day subscription, got: %s", subscription.ExpiresAt)
	}
	if activated.SubscriptionID == nil || *activated.SubscriptionID != subscription.ID {
		t.Fatalf("subscription not linked: %+v", activated)
	}
}

func TestActivateGiftRandomAssignsRecipient(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "redeemer")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	mustMarkPaid(t, svc, db, gift)

	// 赠送人不能兑换自己的随机礼物
	if _, _, err := svc.ActivateGift(gift.Code, 1); !errors.Is(err, ErrGiftSelfRedeem) {
		t.Fatalf("expected ErrGiftSelfRedeem, got: %v", err)
	}

	activated, _, err := svc.ActivateGift(gift.Code, 2)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if activated.RecipientUserID == nil || *activated.RecipientUserID != 2 {
		t.Fatalf("recipient not assigned: %+v", activated)
	}
}

func TestActivateGiftConflicts(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "friend")
	seedGiftUser(t, db, 3, "stranger")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:     1,
		TariffID:        1,
		RecipientType:   constants.GiftRecipientTypeDirect,
		RecipientUserID: 2,
	})

	// 未支付不可兑换
	if _, _, err := svc.ActivateGift(gift.Code, 2); !errors.Is(err, ErrGiftNotReady) {
		t.Fatalf("expected ErrGiftNotReady, got: %v", err)
	}

	mustMarkPaid(t, svc, db, gift)

	// 非指定接收人不可兑换
	if _, _, err := svc.ActivateGift(gift.Code, 3); !errors.Is(err, ErrGiftNotRecipient) {
		t.Fatalf("expected ErrGiftNotRecipient, got: %v", err)
	}

	if _, _, err := svc.ActivateGift(gift.Code, 2); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	// 二次兑换
	if _, _, err := svc.ActivateGift(gift.Code, 2); !errors.Is(err, ErrGiftAlreadyActivated) {
		t.Fatalf("expected ErrGiftAlreadyActivated, got: %v", err)
	}

	// 未知兑换码
	if _, _, err := svc.ActivateGift("NOPE000000000000", 2); !errors.Is(err, ErrGiftNotFound) {
		t.Fatalf("expected ErrGiftNotFound, got: %v", err)
	}
}

func TestActivateGiftLazyExpiry(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
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

	// 模拟兑换期已过但清扫任务尚未运行
	past := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&models.Gift{}).Where("id = ?", gift.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate expiry failed: %v", err)
	}

	if _, _, err := svc.ActivateGift(gift.Code, 2); !errors.Is(err, ErrGiftExpired) {
		t.Fatalf("expected ErrGiftExpired, got: %v", err)
	}

	// 惰性过期写入已提交
	var stored models.Gift
	if err := db.First(&stored, gift.ID).Error; err != nil {
		t.Fatalf("load gift failed: %v", err)
	}
	if stored.Status != constants.GiftStatusExpired {
		t.Fatalf("expected expired persisted, got: %s", stored.Status)
	}
}

func TestCancelGift(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "friend")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:     1,
		TariffID:        1,
		RecipientType:   constants.GiftRecipientTypeDirect,
		RecipientUserID: 2,
	})

	// 非赠送人不可取消
	if _, err := svc.CancelGift(gift.ID, 2, false); !errors.Is(err, ErrGiftAccessDenied) {
		t.Fatalf("expected ErrGiftAccessDenied, got: %v", err)
	}

	cancelled, err := svc.CancelGift(gift.ID, 1, false)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.GiftStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("invalid cancelled gift: %+v", cancelled)
	}

	// 已取消不可再取消
	if _, err := svc.CancelGift(gift.ID, 1, false); !errors.Is(err, ErrGiftNotCancellable) {
		t.Fatalf("expected ErrGiftNotCancellable, got: %v", err)
	}
}

func TestCancelGiftAfterActivation(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
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
	if _, _, err := svc.ActivateGift(gift.Code, 2); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if _, err := svc.CancelGift(gift.ID, 1, false); !errors.Is(err, ErrGiftAlreadyActivated) {
		t.Fatalf("expected ErrGiftAlreadyActivated, got: %v", err)
	}
	// 管理员同样不能取消已兑换礼物
	if _, err := svc.CancelGift(gift.ID, 0, true); !errors.Is(err, ErrGiftAlreadyActivated) {
		t.Fatalf("expected ErrGiftAlreadyActivated for admin, got: %v", err)
	}
}

func TestRefundGift(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})

	// 未支付不可退款
	if _, err := svc.RefundGift(gift.ID); !errors.Is(err, ErrGiftNotRefundable) {
		t.Fatalf("expected ErrGiftNotRefundable, got: %v", err)
	}

	mustMarkPaid(t, svc, db, gift)
	refunded, err := svc.RefundGift(gift.ID)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != constants.GiftStatusRefunded || refunded.RefundedAt == nil {
		t.Fatalf("invalid refunded gift: %+v", refunded)
	}

	// 退款后不可兑换
	if _, _, err := svc.ActivateGift(gift.Code, 1); !errors.Is(err, ErrGiftRefunded) {
		t.Fatalf("expected ErrGiftRefunded, got: %v", err)
	}
}

func TestValidateGiftCode(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "friend")
	seedGiftUser(t, db, 3, "stranger")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:     1,
		TariffID:        1,
		RecipientType:   constants.GiftRecipientTypeDirect,
		RecipientUserID: 2,
	})

	validation, err := svc.ValidateGiftCode(gift.Code, 2)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if validation.CanActivate || validation.Reason != "status_pending_payment" {
		t.Fatalf("expected pending reason, got: %+v", validation)
	}

	mustMarkPaid(t, svc, db, gift)

	validation, err = svc.ValidateGiftCode(gift.Code, 2)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !validation.CanActivate {
		t.Fatalf("expected activatable: %+v", validation)
	}
	if validation.DonorUsername != "donor" {
		t.Fatalf("expected donor username in preview, got: %q", validation.DonorUsername)
	}
	if validation.DurationDays != 30 || validation.TariffName != "套餐 1" {
		t.Fatalf("expected tariff preview fields, got: %+v", validation)
	}

	validation, err = svc.ValidateGiftCode(gift.Code, 3)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if validation.CanActivate || validation.Reason != "recipient_mismatch" {
		t.Fatalf("expected recipient_mismatch, got: %+v", validation)
	}

	// 过期礼物：只读校验不落库
	past := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&models.Gift{}).Where("id = ?", gift.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate expiry failed: %v", err)
	}
	validation, err = svc.ValidateGiftCode(gift.Code, 2)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if validation.CanActivate || validation.Reason != "expired" {
		t.Fatalf("expected expired reason, got: %+v", validation)
	}
	var stored models.Gift
	if err := db.First(&stored, gift.ID).Error; err != nil {
		t.Fatalf("load gift failed: %v", err)
	}
	if stored.Status != constants.GiftStatusReady {
		t.Fatalf("read-only validate must not mutate status, got: %s", stored.Status)
	}

	if _, err := svc.ValidateGiftCode("NOPE000000000000", 2); !errors.Is(err, ErrGiftNotFound) {
		t.Fatalf("expected ErrGiftNotFound, got: %v", err)
	}
}

func TestExpireDueGifts(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 100, true)

	var due, fresh *models.Gift
	for i := 0; i < 2; i++ {
		gift := mustCreateGift(t, svc, CreateGiftInput{
			DonorUserID:   1,
			TariffID:      1,
			RecipientType: constants.GiftRecipientTypeRandom,
		})
		gift = mustMarkPaid(t, svc, db, gift)
		if i == 0 {
			due = gift
		} else {
			fresh = gift
		}
	}
	past := time.Now().UTC().Add(-time.Hour)
	if err := db.Model(&models.Gift{}).Where("id = ?", due.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate expiry failed: %v", err)
	}

	count, err := svc.ExpireDueGifts(time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expired, got: %d", count)
	}

	var stored models.Gift
	if err := db.First(&stored, due.ID).Error; err != nil {
		t.Fatalf("load gift failed: %v", err)
	}
	if stored.Status != constants.GiftStatusExpired {
		t.Fatalf("expected expired, got: %s", stored.Status)
	}
	stored = models.Gift{}
	if err := db.First(&stored, fresh.ID).Error; err != nil {
		t.Fatalf("load gift failed: %v", err)
	}
	if stored.Status != constants.GiftStatusReady {
		t.Fatalf("fresh gift must stay ready, got: %s", stored.Status)
	}

	// 重复清扫无新增
	count, err = svc.ExpireDueGifts(time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 on second sweep, got: %d", count)
	}
}

func TestCreateGiftSnapshots(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftUser(t, db, 2, "friend")
	seedGiftTariff(t, db, 1, 499, true)

	gift := mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:     1,
		TariffID:        1,
		RecipientType:   constants.GiftRecipientTypeDirect,
		RecipientUserID: 2,
		Metadata:        models.JSON{"origin": "bot", "msg_id": "42"},
	})
	if gift.DonorUsername != "donor" {
		t.Fatalf("donor username not snapshotted: %q", gift.DonorUsername)
	}
	if gift.DurationDays != 30 {
		t.Fatalf("duration not snapshotted: %d", gift.DurationDays)
	}

	reloaded, err := repository.NewGiftRepository(db).GetByCode(gift.Code)
	if err != nil || reloaded == nil {
		t.Fatalf("reload gift failed: %v", err)
	}
	if reloaded.DonorUsername != "donor" || reloaded.DurationDays != 30 {
		t.Fatalf("snapshot not persisted: %+v", reloaded)
	}
	if reloaded.Metadata["origin"] != "bot" || reloaded.Metadata["msg_id"] != "42" {
		t.Fatalf("metadata not stored verbatim: %+v", reloaded.Metadata)
	}
}

func TestCreateGiftLimitCheckedBeforeTariff(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 100, true)

	for i := 0; i < 3; i++ {
		mustCreateGift(t, svc, CreateGiftInput{
			DonorUserID:   1,
			TariffID:      1,
			RecipientType: constants.GiftRecipientTypeRandom,
		})
	}

	// 小时限额已满时，未知套餐也应先反馈限额错误
	_, _, err := svc.CreateGift(CreateGiftInput{
		DonorUserID:   1,
		TariffID:      99,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	if !errors.Is(err, ErrGiftHourlyLimited) {
		t.Fatalf("expected ErrGiftHourlyLimited, got: %v", err)
	}
}

func TestActivateGiftKeepsDurationSnapshot(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
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

	// 售出后套餐缩短时长并下架，已付礼物仍按下单时的 30 天开通
	if err := db.Model(&models.Tariff{}).Where("id = ?", 1).Update("duration_days", 1).Error; err != nil {
		t.Fatalf("shorten tariff failed: %v", err)
	}
	if err := db.Delete(&models.Tariff{}, 1).Error; err != nil {
		t.Fatalf("delete tariff failed: %v", err)
	}

	_, subscription, err := svc.ActivateGift(gift.Code, 2)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	wantExpiry := subscription.StartsAt.AddDate(0, 0, 30)
	if !subscription.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("subscription duration must follow the purchase snapshot, got: %s", subscription.ExpiresAt)
	}
}

func TestCreateGiftSpendBudget(t *testing.T) {
	svc, db := setupGiftServiceTest(t)
	seedGiftUser(t, db, 1, "donor")
	seedGiftTariff(t, db, 1, 9800, true)
	seedGiftTariff(t, db, 2, 500, true)
	seedGiftTariff(t, db, 3, 200, true)

	mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      1,
		RecipientType: constants.GiftRecipientTypeRandom,
	})

	_, decision, err := svc.CreateGift(CreateGiftInput{
		DonorUserID:   1,
		TariffID:      2,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
	if !errors.Is(err, ErrGiftSpendLimited) {
		t.Fatalf("expected ErrGiftSpendLimited, got: %v", err)
	}
	if decision == nil || !decision.RemainingBudget.Decimal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("invalid remaining budget: %+v", decision)
	}

	// 余额内的套餐仍可购买
	mustCreateGift(t, svc, CreateGiftInput{
		DonorUserID:   1,
		TariffID:      3,
		RecipientType: constants.GiftRecipientTypeRandom,
	})
}
