package service

import (
	"errors"
	"strings"
	"time"

	"github.com/subgift/subgift/internal/constants"
	"github.com/subgift/subgift/internal/logger"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// createRetryAttempts 兑换码唯一索引冲突时的建单重试次数
const createRetryAttempts = 3

// GiftService 礼物服务
type GiftService struct {
	repo            repository.GiftRepository
	userRepo        repository.UserRepository
	tariffRepo      repository.TariffRepository
	paymentRepo     repository.PaymentRepository
	subscriptionSvc *SubscriptionService
	limitSvc        *GiftLimitService
	codeGen         *GiftCodeGenerator
	notifySvc       *NotificationService
	expirationDays  int
}

// NewGiftService 创建礼物服务
func NewGiftService(
	repo repository.GiftRepository,
	userRepo repository.UserRepository,
	tariffRepo repository.TariffRepository,
	paymentRepo repository.PaymentRepository,
	subscriptionSvc *SubscriptionService,
	limitSvc *GiftLimitService,
	notifySvc *NotificationService,
	expirationDays int,
) *GiftService {
	if expirationDays <= 0 {
		expirationDays = constants.GiftExpirationDays
	}
	return &GiftService{
		repo:            repo,
		userRepo:        userRepo,
		tariffRepo:      tariffRepo,
		paymentRepo:     paymentRepo,
		subscriptionSvc: subscriptionSvc,
		limitSvc:        limitSvc,
		codeGen:         NewGiftCodeGenerator(),
		notifySvc:       notifySvc,
		expirationDays:  expirationDays,
	}
}

// CreateGiftInput 礼物创建输入
type CreateGiftInput struct {
	DonorUserID       uint
	TariffID          uint
	RecipientType     string
	RecipientUserID   uint
	RecipientUsername string
	Message           string
	Metadata          models.JSON
	IdempotencyKey    string
}

// GiftValidation 兑换码校验结果
type GiftValidation struct {
	Gift          *models.Gift `json:"gift"`
	Status        string       `json:"status"`
	DonorUsername string       `json:"donor_username"`
	TariffName    string       `json:"tariff_name"`
	DurationDays  int          `json:"duration_days"`
	CanActivate   bool         `json:"can_activate"`
	Reason        string       `json:"reason,omitempty"`
}

// CreateGift 创建礼物（含限额校验与支付意向）
func (s *GiftService) CreateGift(input CreateGiftInput) (*models.Gift, *GiftLimitDecision, error) {
	if s == nil || s.repo == nil {
		return nil, nil, ErrGiftCreateFailed
	}
	if input.DonorUserID == 0 || input.TariffID == 0 {
		return nil, nil, ErrGiftInvalid
	}
	recipientType := strings.TrimSpace(strings.ToLower(input.RecipientType))
	switch recipientType {
	case constants.GiftRecipientTypeDirect, constants.GiftRecipientTypeRandom:
	default:
		return nil, nil, ErrGiftInvalid
	}

	// 幂等：同一幂等键直接返回已创建的礼物
	idempotencyKey := strings.TrimSpace(input.IdempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(idempotencyKey)
		if err != nil {
			return nil, nil, ErrGiftFetchFailed
		}
		if existing != nil {
			return existing, nil, nil
		}
	}

	donor, err := s.userRepo.GetByID(input.DonorUserID)
	if err != nil {
		return nil, nil, ErrGiftFetchFailed
	}
	if donor == nil {
		return nil, nil, ErrUserNotFound
	}
	if donor.Status != constants.UserStatusActive {
		return nil, nil, ErrUserDisabled
	}

	// 频次与已超支校验先于套餐解析，最早触发的限额优先反馈
	decision, err := s.limitSvc.CheckCreate(input.DonorUserID, decimal.Zero)
	if err != nil {
		return nil, decision, err
	}

	tariff, err := s.tariffRepo.GetByID(input.TariffID)
	if err != nil {
		return nil, decision, ErrGiftFetchFailed
	}
	if tariff == nil {
		return nil, decision, ErrTariffNotFound
	}
	if !tariff.IsActive {
		return nil, decision, ErrTariffUnavailable
	}

	var recipient *models.User
	if recipientType == constants.GiftRecipientTypeDirect {
		recipient, err = s.resolveRecipient(input)
		if err != nil {
			return nil, decision, err
		}
		if recipient.ID == donor.ID {
			return nil, decision, ErrGiftSelfRedeem
		}
	}

	if err := s.limitSvc.CheckBudget(decision, tariff.Price.Decimal); err != nil {
		return nil, decision, err
	}

	var gift *models.Gift
	for attempt := 0; attempt < createRetryAttempts; attempt++ {
		code, genErr := s.codeGen.Generate(s.repo.CodeExists)
		if genErr != nil {
			return nil, decision, genErr
		}

		gift = &models.Gift{
			Code:          code,
			DonorUserID:   donor.ID,
			DonorUsername: donor.Username,
			RecipientType: recipientType,
			TariffID:      tariff.ID,
			Price:         tariff.Price,
			Currency:      tariff.Currency,
			DurationDays:  tariff.DurationDays,
			Message:       strings.TrimSpace(input.Message),
			Metadata:      input.Metadata,
			Status:        constants.GiftStatusPendingPayment,
		}
		if idempotencyKey != "" {
			gift.IdempotencyKey = &idempotencyKey
		}
		if recipient != nil {
			gift.RecipientUserID = &recipient.ID
			gift.RecipientUsername = recipient.Username
		}

		txErr := models.DB.Transaction(func(tx *gorm.DB) error {
			if createErr := s.repo.WithTx(tx).Create(gift); createErr != nil {
				return createErr
			}
			payment := &models.Payment{
				GiftID:   gift.ID,
				Amount:   gift.Price,
				Currency: gift.Currency,
				Status:   constants.PaymentStatusInitiated,
			}
			return s.paymentRepo.WithTx(tx).Create(payment)
		})
		if txErr == nil {
			return gift, decision, nil
		}
		if !isDuplicateKeyErr(txErr) {
			return nil, decision, ErrGiftCreateFailed
		}
		// 幂等键撞库：并发创建已落库，读回已有记录
		if idempotencyKey != "" {
			existing, readErr := s.repo.GetByIdempotencyKey(idempotencyKey)
			if readErr == nil && existing != nil {
				return existing, decision, nil
			}
		}
		// 否则视为兑换码撞库，重新生成
	}
	return nil, decision, ErrGiftCreateFailed
}

// MarkGiftPaid 处理支付成功回调（幂等）
func (s *GiftService) MarkGiftPaid(paymentID uint, providerRef string, providerPayload models.JSON) (*models.Gift, error) {
	if s == nil || s.repo == nil || paymentID == 0 {
		return nil, ErrGiftInvalid
	}

	var (
		result       *models.Gift
		transitioned bool
	)
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		payment, err := paymentRepo.GetByIDForUpdate(paymentID)
		if err != nil {
			return ErrPaymentFetchFailed
		}
		if payment == nil {
			return ErrPaymentNotFound
		}

		giftRepo := s.repo.WithTx(tx)
		gift, err := giftRepo.GetByIDForUpdate(payment.GiftID)
		if err != nil {
			return ErrGiftFetchFailed
		}
		if gift == nil {
			return ErrGiftNotFound
		}

		now := time.Now().UTC()
		if gift.Status != constants.GiftStatusPendingPayment {
			// 重复回调或已取消礼物的迟到回调：记录后原样返回
			logger.Infow("gift_paid_callback_noop",
				"gift_id", gift.ID,
				"payment_id", payment.ID,
				"status", gift.Status,
			)
			result = gift
			return nil
		}

		payment.Status = constants.PaymentStatusSuccess
		payment.ProviderRef = strings.TrimSpace(providerRef)
		if providerPayload != nil {
			payment.ProviderPayload = providerPayload
		}
		payment.PaidAt = &now
		payment.CallbackAt = &now
		if err := paymentRepo.Update(payment); err != nil {
			return ErrGiftUpdateFailed
		}

		expiresAt := now.AddDate(0, 0, s.expirationDays)
		gift.Status = constants.GiftStatusReady
		gift.PaymentID = &payment.ID
		gift.PaidAt = &now
		gift.ExpiresAt = &expiresAt
		if err := giftRepo.Update(gift); err != nil {
			return ErrGiftUpdateFailed
		}
		result = gift
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transitioned {
		s.notifySvc.NotifyGiftEvent(result, constants.GiftEventReady)
	}
	return result, nil
}

// MarkGiftPaymentFailed 处理支付失败回调
func (s *GiftService) MarkGiftPaymentFailed(paymentID uint, providerRef string) (*models.Gift, error) {
	if s == nil || s.repo == nil || paymentID == 0 {
		return nil, ErrGiftInvalid
	}

	var (
		result       *models.Gift
		transitioned bool
	)
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		payment, err := paymentRepo.GetByIDForUpdate(paymentID)
		if err != nil {
			return ErrPaymentFetchFailed
		}
		if payment == nil {
			return ErrPaymentNotFound
		}

		giftRepo := s.repo.WithTx(tx)
		gift, err := giftRepo.GetByIDForUpdate(payment.GiftID)
		if err != nil {
			return ErrGiftFetchFailed
		}
		if gift == nil {
			return ErrGiftNotFound
		}
		if gift.Status != constants.GiftStatusPendingPayment {
			logger.Infow("gift_payment_failed_callback_noop",
				"gift_id", gift.ID,
				"payment_id", payment.ID,
				"status", gift.Status,
			)
			result = gift
			return nil
		}

		now := time.Now().UTC()
		payment.Status = constants.PaymentStatusFailed
		payment.ProviderRef = strings.TrimSpace(providerRef)
		payment.CallbackAt = &now
		if err := paymentRepo.Update(payment); err != nil {
			return ErrGiftUpdateFailed
		}

		gift.Status = constants.GiftStatusPaymentFailed
		if err := giftRepo.Update(gift); err != nil {
			return ErrGiftUpdateFailed
		}
		result = gift
		transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transitioned {
		s.notifySvc.NotifyGiftEvent(result, constants.GiftEventPayFailed)
	}
	return result, nil
}

// ActivateGift 兑换礼物
// 行锁内完成状态校验、惰性过期与接收人绑定；订阅开通在提交后执行。
func (s *GiftService) ActivateGift(code string, redeemerUserID uint) (*models.Gift, *models.Subscription, error) {
	if s == nil || s.repo == nil {
		return nil, nil, ErrGiftFetchFailed
	}
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" || redeemerUserID == 0 {
		return nil, nil, ErrGiftInvalid
	}

	redeemer, err := s.userRepo.GetByID(redeemerUserID)
	if err != nil {
		return nil, nil, ErrGiftFetchFailed
	}
	if redeemer == nil {
		return nil, nil, ErrUserNotFound
	}
	if redeemer.Status != constants.UserStatusActive {
		return nil, nil, ErrUserDisabled
	}

	var (
		activated   *models.Gift
		lazyExpired bool
	)
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		gift, err := repo.GetByCodeForUpdate(code)
		if err != nil {
			return ErrGiftFetchFailed
		}
		if gift == nil {
			return ErrGiftNotFound
		}

		switch gift.Status {
		case constants.GiftStatusActivated:
			return ErrGiftAlreadyActivated
		case constants.GiftStatusExpired:
			return ErrGiftExpired
		case constants.GiftStatusCancelled:
			return ErrGiftCancelled
		case constants.GiftStatusRefunded:
			return ErrGiftRefunded
		case constants.GiftStatusPendingPayment:
			return ErrGiftNotReady
		case constants.GiftStatusPaymentFailed:
			return ErrGiftPaymentFailed
		case constants.GiftStatusReady:
		default:
			return ErrGiftInvalid
		}

		now := time.Now().UTC()
		// 惰性过期：清扫任务之间到期的礼物在锁内落状态，该写入需要提交
		if gift.ExpiresAt != nil && gift.ExpiresAt.Before(now) {
			gift.Status = constants.GiftStatusExpired
			if err := repo.Update(gift); err != nil {
				return ErrGiftUpdateFailed
			}
			lazyExpired = true
			activated = gift
			return nil
		}

		switch gift.RecipientType {
		case constants.GiftRecipientTypeDirect:
			if gift.RecipientUserID == nil || *gift.RecipientUserID != redeemer.ID {
				return ErrGiftNotRecipient
			}
		case constants.GiftRecipientTypeRandom:
			if gift.DonorUserID == redeemer.ID {
				return ErrGiftSelfRedeem
			}
			gift.RecipientUserID = &redeemer.ID
			gift.RecipientUsername = redeemer.Username
		default:
			return ErrGiftInvalid
		}

		gift.Status = constants.GiftStatusActivated
		gift.ActivatedAt = &now
		if err := repo.Update(gift); err != nil {
			return ErrGiftUpdateFailed
		}
		activated = gift
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if lazyExpired {
		s.notifySvc.NotifyGiftEvent(activated, constants.GiftEventExpired)
		return nil, nil, ErrGiftExpired
	}

	// 礼物已提交为 activated；订阅开通失败不回滚兑换
	subscription, err := s.subscriptionSvc.ActivateForGift(activated)
	if err != nil {
		logger.Errorw("gift_fulfillment_failed",
			"gift_id", activated.ID,
			"user_id", redeemerUserID,
			"error", err,
		)
		return activated, nil, ErrGiftFulfillmentFailed
	}
	activated.SubscriptionID = &subscription.ID
	if err := s.repo.Update(activated); err != nil {
		logger.Warnw("gift_subscription_link_failed", "gift_id", activated.ID, "error", err)
	}

	logger.Infow("gift_activated",
		"gift_id", activated.ID,
		"donor_user_id", activated.DonorUserID,
		"recipient_user_id", redeemerUserID,
		"subscription_id", subscription.ID,
	)
	s.notifySvc.NotifyGiftEvent(activated, constants.GiftEventActivated)
	return activated, subscription, nil
}

// CancelGift 取消礼物（赠送人或管理员）
func (s *GiftService) CancelGift(giftID, actorUserID uint, isAdmin bool) (*models.Gift, error) {
	if s == nil || s.repo == nil || giftID == 0 {
		return nil, ErrGiftInvalid
	}

	var cancelled *models.Gift
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		gift, err := repo.GetByIDForUpdate(giftID)
		if err != nil {
			return ErrGiftFetchFailed
		}
		if gift == nil {
			return ErrGiftNotFound
		}
		if !isAdmin && gift.DonorUserID != actorUserID {
			return ErrGiftAccessDenied
		}

		switch gift.Status {
		case constants.GiftStatusPendingPayment, constants.GiftStatusReady:
		case constants.GiftStatusActivated:
			return ErrGiftAlreadyActivated
		default:
			return ErrGiftNotCancellable
		}

		now := time.Now().UTC()
		gift.Status = constants.GiftStatusCancelled
		gift.CancelledAt = &now
		if err := repo.Update(gift); err != nil {
			return ErrGiftUpdateFailed
		}
		cancelled = gift
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifySvc.NotifyGiftEvent(cancelled, constants.GiftEventCancelled)
	return cancelled, nil
}

// RefundGift 礼物退款标记（仅管理员，不做资金流）
func (s *GiftService) RefundGift(giftID uint) (*models.Gift, error) {
	if s == nil || s.repo == nil || giftID == 0 {
		return nil, ErrGiftInvalid
	}

	var refunded *models.Gift
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		gift, err := repo.GetByIDForUpdate(giftID)
		if err != nil {
			return ErrGiftFetchFailed
		}
		if gift == nil {
			return ErrGiftNotFound
		}
		if gift.Status != constants.GiftStatusReady {
			return ErrGiftNotRefundable
		}

		now := time.Now().UTC()
		gift.Status = constants.GiftStatusRefunded
		gift.RefundedAt = &now
		if err := repo.Update(gift); err != nil {
			return ErrGiftUpdateFailed
		}
		refunded = gift
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifySvc.NotifyGiftEvent(refunded, constants.GiftEventRefunded)
	return refunded, nil
}

// ValidateGiftCode 只读校验兑换码（不持锁、不落库）
func (s *GiftService) ValidateGiftCode(code string, userID uint) (*GiftValidation, error) {
	if s == nil || s.repo == nil {
		return nil, ErrGiftFetchFailed
	}
	gift, err := s.repo.GetByCode(code)
	if err != nil {
		return nil, ErrGiftFetchFailed
	}
	if gift == nil {
		return nil, ErrGiftNotFound
	}

	validation := &GiftValidation{
		Gift:          gift,
		Status:        gift.Status,
		DonorUsername: gift.DonorUsername,
		DurationDays:  gift.DurationDays,
	}
	if gift.Tariff != nil {
		validation.TariffName = gift.Tariff.Name
	}
	if gift.Status != constants.GiftStatusReady {
		validation.Reason = "status_" + gift.Status
		return validation, nil
	}
	now := time.Now().UTC()
	if gift.ExpiresAt != nil && gift.ExpiresAt.Before(now) {
		// 只读路径不落库，过期仅体现在返回值里
		validation.Status = constants.GiftStatusExpired
		validation.Reason = "expired"
		return validation, nil
	}
	switch gift.RecipientType {
	case constants.GiftRecipientTypeDirect:
		if gift.RecipientUserID == nil || *gift.RecipientUserID != userID {
			validation.Reason = "recipient_mismatch"
			return validation, nil
		}
	case constants.GiftRecipientTypeRandom:
		if gift.DonorUserID == userID {
			validation.Reason = "self_redeem"
			return validation, nil
		}
	}
	validation.CanActivate = true
	return validation, nil
}

// ExpireDueGifts 批量标记到期礼物
func (s *GiftService) ExpireDueGifts(now time.Time) (int64, error) {
	if s == nil || s.repo == nil {
		return 0, ErrGiftFetchFailed
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	count, err := s.repo.ExpireDue(now)
	if err != nil {
		return 0, ErrGiftUpdateFailed
	}
	if count > 0 {
		logger.Infow("gift_expire_sweep_done", "expired", count)
	}
	return count, nil
}

// ListGifts 礼物列表（管理端与用户端共用）
func (s *GiftService) ListGifts(filter repository.GiftListFilter) ([]models.Gift, int64, error) {
	if s == nil || s.repo == nil {
		return nil, 0, ErrGiftFetchFailed
	}
	gifts, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, ErrGiftFetchFailed
	}
	return gifts, total, nil
}

// GetGift 查询单个礼物
func (s *GiftService) GetGift(giftID uint) (*models.Gift, error) {
	if s == nil || s.repo == nil || giftID == 0 {
		return nil, ErrGiftInvalid
	}
	gift, err := s.repo.GetByID(giftID)
	if err != nil {
		return nil, ErrGiftFetchFailed
	}
	if gift == nil {
		return nil, ErrGiftNotFound
	}
	return gift, nil
}

// UserGiftStats 单用户礼物统计
func (s *GiftService) UserGiftStats(userID uint) (*repository.GiftUserStats, error) {
	if s == nil || s.repo == nil || userID == 0 {
		return nil, ErrGiftInvalid
	}
	stats, err := s.repo.UserStats(userID)
	if err != nil {
		return nil, ErrGiftFetchFailed
	}
	return stats, nil
}

// GlobalGiftStats 全局礼物统计
func (s *GiftService) GlobalGiftStats() (*repository.GiftStats, error) {
	if s == nil || s.repo == nil {
		return nil, ErrGiftFetchFailed
	}
	stats, err := s.repo.Stats()
	if err != nil {
		return nil, ErrGiftFetchFailed
	}
	return stats, nil
}

// PickRandomRecipient 随机挑选一名可接收礼物的活跃用户
func (s *GiftService) PickRandomRecipient(excludeUserIDs []uint) (*models.User, error) {
	if s == nil || s.userRepo == nil {
		return nil, ErrGiftFetchFailed
	}
	user, err := s.userRepo.GetRandomActiveExcluding(excludeUserIDs)
	if err != nil {
		return nil, ErrGiftFetchFailed
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *GiftService) resolveRecipient(input CreateGiftInput) (*models.User, error) {
	var (
		recipient *models.User
		err       error
	)
	if input.RecipientUserID > 0 {
		recipient, err = s.userRepo.GetByID(input.RecipientUserID)
	} else if username := strings.TrimSpace(input.RecipientUsername); username != "" {
		recipient, err = s.userRepo.GetByUsername(username)
	} else {
		return nil, ErrGiftInvalid
	}
	if err != nil {
		return nil, ErrGiftFetchFailed
	}
	if recipient == nil {
		return nil, ErrUserNotFound
	}
	if recipient.Status != constants.UserStatusActive {
		return nil, ErrUserDisabled
	}
	return recipient, nil
}

// isDuplicateKeyErr 判断是否唯一索引冲突（sqlite 与 postgres 两种驱动）
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := err.Error()
	return strings.Contains(message, "UNIQUE constraint failed") ||
		strings.Contains(message, "duplicate key value")
}
