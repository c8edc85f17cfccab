package public

import (
	"errors"
	"strconv"
	"strings"

	handlershared "github.com/subgift/subgift/internal/http/handlers/shared"
	"github.com/subgift/subgift/internal/http/response"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/repository"
	"github.com/subgift/subgift/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateGiftRequest 创建礼物请求
type CreateGiftRequest struct {
	Donor               ChatUserRequest `json:"donor" binding:"required"`
	TariffID            uint            `json:"tariff_id" binding:"required"`
	RecipientType       string          `json:"recipient_type" binding:"required"`
	RecipientChatUserID int64           `json:"recipient_chat_user_id"`
	RecipientUsername   string          `json:"recipient_username"`
	Message             string          `json:"message"`
	Metadata            models.JSON     `json:"metadata"`
	IdempotencyKey      string          `json:"idempotency_key"`
}

// ActivateGiftRequest 兑换礼物请求
type ActivateGiftRequest struct {
	Redeemer ChatUserRequest `json:"redeemer" binding:"required"`
	Code     string          `json:"code" binding:"required"`
}

// CancelGiftRequest 取消礼物请求
type CancelGiftRequest struct {
	Actor ChatUserRequest `json:"actor" binding:"required"`
}

// CreateGift 创建礼物
func (h *Handler) CreateGift(c *gin.Context) {
	var req CreateGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	donor, err := h.UserService.EnsureUser(req.Donor.ChatUserID, req.Donor.Username, req.Donor.DisplayName)
	if err != nil {
		respondError(c, response.CodeInternal, "error.user_resolve_failed", err)
		return
	}

	input := service.CreateGiftInput{
		DonorUserID:       donor.ID,
		TariffID:          req.TariffID,
		RecipientType:     strings.TrimSpace(req.RecipientType),
		RecipientUsername: strings.TrimSpace(req.RecipientUsername),
		Message:           req.Message,
		Metadata:          req.Metadata,
		IdempotencyKey:    strings.TrimSpace(req.IdempotencyKey),
	}
	if idempotencyKey := strings.TrimSpace(c.GetHeader("X-Idempotency-Key")); idempotencyKey != "" && input.IdempotencyKey == "" {
		input.IdempotencyKey = idempotencyKey
	}
	if req.RecipientChatUserID != 0 {
		recipient, err := h.UserService.GetByChatUserID(req.RecipientChatUserID)
		if err != nil {
			respondError(c, response.CodeNotFound, "error.recipient_not_found", nil)
			return
		}
		input.RecipientUserID = recipient.ID
	}

	gift, decision, err := h.GiftService.CreateGift(input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGiftInvalid):
			respondError(c, response.CodeBadRequest, "error.gift_invalid", nil)
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, response.CodeNotFound, "error.recipient_not_found", nil)
		case errors.Is(err, service.ErrUserDisabled):
			respondError(c, response.CodeForbidden, "error.user_disabled", nil)
		case errors.Is(err, service.ErrTariffNotFound):
			respondError(c, response.CodeNotFound, "error.tariff_not_found", nil)
		case errors.Is(err, service.ErrTariffUnavailable):
			respondError(c, response.CodeBadRequest, "error.tariff_unavailable", nil)
		case errors.Is(err, service.ErrGiftSelfRedeem):
			respondError(c, response.CodeBadRequest, "error.gift_self_gift", nil)
		case errors.Is(err, service.ErrGiftHourlyLimited):
			respondLimitError(c, "error.gift_hourly_limited", decision)
		case errors.Is(err, service.ErrGiftDailyLimited):
			respondLimitError(c, "error.gift_daily_limited", decision)
		case errors.Is(err, service.ErrGiftSpendLimited):
			respondLimitError(c, "error.gift_spend_limited", decision)
		case errors.Is(err, service.ErrGiftCodeSpaceExhausted):
			respondError(c, response.CodeInternal, "error.gift_code_space_exhausted", err)
		default:
			respondError(c, response.CodeInternal, "error.gift_create_failed", err)
		}
		return
	}

	requestLog(c).Infow("gift_created",
		"gift_id", gift.ID,
		"donor_user_id", gift.DonorUserID,
		"recipient_type", gift.RecipientType,
	)
	response.Success(c, gin.H{
		"gift":  gift,
		"limit": decision,
	})
}

// ValidateGiftCode 只读校验兑换码
func (h *Handler) ValidateGiftCode(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	chatUserID, _ := strconv.ParseInt(strings.TrimSpace(c.Query("chat_user_id")), 10, 64)
	var userID uint
	if chatUserID != 0 {
		if user, err := h.UserService.GetByChatUserID(chatUserID); err == nil {
			userID = user.ID
		}
	}

	validation, err := h.GiftService.ValidateGiftCode(code, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGiftNotFound):
			respondError(c, response.CodeNotFound, "error.gift_not_found", nil)
		default:
			respondError(c, response.CodeInternal, "error.gift_fetch_failed", err)
		}
		return
	}
	response.Success(c, validation)
}

// ActivateGift 兑换礼物
func (h *Handler) ActivateGift(c *gin.Context) {
	var req ActivateGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	redeemer, err := h.UserService.EnsureUser(req.Redeemer.ChatUserID, req.Redeemer.Username, req.Redeemer.DisplayName)
	if err != nil {
		respondError(c, response.CodeInternal, "error.user_resolve_failed", err)
		return
	}

	gift, subscription, err := h.GiftService.ActivateGift(req.Code, redeemer.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGiftInvalid):
			respondError(c, response.CodeBadRequest, "error.gift_invalid", nil)
		case errors.Is(err, service.ErrGiftNotFound):
			respondError(c, response.CodeNotFound, "error.gift_not_found", nil)
		case errors.Is(err, service.ErrGiftNotReady):
			respondError(c, response.CodeConflict, "error.gift_not_paid", nil)
		case errors.Is(err, service.ErrGiftPaymentFailed):
			respondError(c, response.CodeConflict, "error.gift_payment_failed", nil)
		case errors.Is(err, service.ErrGiftAlreadyActivated):
			respondError(c, response.CodeConflict, "error.gift_already_activated", nil)
		case errors.Is(err, service.ErrGiftExpired):
			respondError(c, response.CodeConflict, "error.gift_expired", nil)
		case errors.Is(err, service.ErrGiftCancelled):
			respondError(c, response.CodeConflict, "error.gift_cancelled", nil)
		case errors.Is(err, service.ErrGiftRefunded):
			respondError(c, response.CodeConflict, "error.gift_refunded", nil)
		case errors.Is(err, service.ErrGiftNotRecipient):
			respondError(c, response.CodeForbidden, "error.gift_recipient_mismatch", nil)
		case errors.Is(err, service.ErrGiftSelfRedeem):
			respondError(c, response.CodeForbidden, "error.gift_self_redeem", nil)
		case errors.Is(err, service.ErrUserDisabled):
			respondError(c, response.CodeForbidden, "error.user_disabled", nil)
		case errors.Is(err, service.ErrGiftFulfillmentFailed):
			// 礼物已兑换但订阅开通失败，提示网关转人工处理
			respondError(c, response.CodeInternal, "error.gift_fulfillment_failed", err)
		default:
			respondError(c, response.CodeInternal, "error.gift_activate_failed", err)
		}
		return
	}

	response.Success(c, gin.H{
		"gift":         gift,
		"subscription": subscription,
	})
}

// CancelGift 赠送人取消礼物
func (h *Handler) CancelGift(c *gin.Context) {
	giftID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || giftID == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req CancelGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	actor, err := h.UserService.GetByChatUserID(req.Actor.ChatUserID)
	if err != nil {
		respondError(c, response.CodeNotFound, "error.user_not_found", nil)
		return
	}

	gift, err := h.GiftService.CancelGift(uint(giftID), actor.ID, false)
	if err != nil {
		respondCancelError(c, err)
		return
	}
	response.Success(c, gin.H{"gift": gift})
}

// ListSentGifts 赠送人礼物列表
func (h *Handler) ListSentGifts(c *gin.Context) {
	user, ok := h.resolveQueryUser(c)
	if !ok {
		return
	}
	filter, page, pageSize := h.buildListFilter(c)
	filter.DonorUserID = user.ID

	gifts, total, err := h.GiftService.ListGifts(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.gift_fetch_failed", err)
		return
	}
	respondGiftPage(c, gifts, total, page, pageSize)
}

// ListReceivedGifts 接收人礼物列表
func (h *Handler) ListReceivedGifts(c *gin.Context) {
	user, ok := h.resolveQueryUser(c)
	if !ok {
		return
	}
	filter, page, pageSize := h.buildListFilter(c)
	filter.RecipientUserID = user.ID

	gifts, total, err := h.GiftService.ListGifts(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.gift_fetch_failed", err)
		return
	}
	respondGiftPage(c, gifts, total, page, pageSize)
}

// UserGiftStats 用户礼物统计
func (h *Handler) UserGiftStats(c *gin.Context) {
	user, ok := h.resolveQueryUser(c)
	if !ok {
		return
	}
	stats, err := h.GiftService.UserGiftStats(user.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.gift_fetch_failed", err)
		return
	}
	response.Success(c, stats)
}

// RandomRecipient 随机挑选一名可接收礼物的活跃用户（随机赠礼的候选人）
func (h *Handler) RandomRecipient(c *gin.Context) {
	exclude := make([]uint, 0, 4)
	if chatUserID, err := strconv.ParseInt(strings.TrimSpace(c.Query("chat_user_id")), 10, 64); err == nil && chatUserID != 0 {
		if user, err := h.UserService.GetByChatUserID(chatUserID); err == nil {
			exclude = append(exclude, user.ID)
		}
	}
	for _, raw := range strings.Split(c.Query("exclude"), ",") {
		if id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err == nil && id > 0 {
			exclude = append(exclude, uint(id))
		}
	}

	user, err := h.GiftService.PickRandomRecipient(exclude)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, response.CodeNotFound, "error.no_eligible_recipient", nil)
		default:
			respondError(c, response.CodeInternal, "error.user_resolve_failed", err)
		}
		return
	}
	response.Success(c, gin.H{"user": user})
}

func (h *Handler) resolveQueryUser(c *gin.Context) (*models.User, bool) {
	chatUserID, err := strconv.ParseInt(strings.TrimSpace(c.Query("chat_user_id")), 10, 64)
	if err != nil || chatUserID == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return nil, false
	}
	user, err := h.UserService.GetByChatUserID(chatUserID)
	if err != nil {
		respondError(c, response.CodeNotFound, "error.user_not_found", nil)
		return nil, false
	}
	return user, true
}

func (h *Handler) buildListFilter(c *gin.Context) (repository.GiftListFilter, int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)
	return repository.GiftListFilter{
		Status:   strings.TrimSpace(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	}, page, pageSize
}

func respondGiftPage(c *gin.Context, gifts interface{}, total int64, page, pageSize int) {
	totalPage := int64(0)
	if pageSize > 0 {
		totalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	response.SuccessWithPage(c, gifts, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

func respondLimitError(c *gin.Context, msg string, decision *service.GiftLimitDecision) {
	if decision == nil {
		respondError(c, response.CodeTooManyRequests, msg, nil)
		return
	}
	response.ErrorWithData(c, response.CodeTooManyRequests, msg, gin.H{
		"limit": decision,
	})
}

func respondCancelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGiftNotFound):
		respondError(c, response.CodeNotFound, "error.gift_not_found", nil)
	case errors.Is(err, service.ErrGiftAccessDenied):
		respondError(c, response.CodeForbidden, "error.gift_access_denied", nil)
	case errors.Is(err, service.ErrGiftAlreadyActivated):
		respondError(c, response.CodeConflict, "error.gift_already_activated", nil)
	case errors.Is(err, service.ErrGiftNotCancellable):
		respondError(c, response.CodeConflict, "error.gift_not_cancellable", nil)
	default:
		respondError(c, response.CodeInternal, "error.gift_cancel_failed", err)
	}
}
