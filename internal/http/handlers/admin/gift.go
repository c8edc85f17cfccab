package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	handlershared "github.com/subgift/subgift/internal/http/handlers/shared"
	"github.com/subgift/subgift/internal/http/response"
	"github.com/subgift/subgift/internal/repository"
	"github.com/subgift/subgift/internal/service"

	"github.com/gin-gonic/gin"
)

// ListGifts 礼物列表 (Admin)
func (h *Handler) ListGifts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	filter := repository.GiftListFilter{
		Code:          strings.TrimSpace(c.Query("code")),
		Status:        strings.TrimSpace(c.Query("status")),
		RecipientType: strings.TrimSpace(c.Query("recipient_type")),
		Page:          page,
		PageSize:      pageSize,
	}
	if v, err := strconv.ParseUint(c.Query("donor_user_id"), 10, 64); err == nil {
		filter.DonorUserID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("recipient_user_id"), 10, 64); err == nil {
		filter.RecipientUserID = uint(v)
	}
	if from, err := time.Parse(time.RFC3339, c.Query("created_from")); err == nil {
		filter.CreatedFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("created_to")); err == nil {
		filter.CreatedTo = &to
	}

	gifts, total, err := h.GiftService.ListGifts(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.gift_fetch_failed", err)
		return
	}

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

// GetGift 礼物详情 (Admin)
func (h *Handler) GetGift(c *gin.Context) {
	giftID, ok := parseGiftID(c)
	if !ok {
		return
	}

	gift, err := h.GiftService.GetGift(giftID)
	if err != nil {
		if errors.Is(err, service.ErrGiftNotFound) {
			respondError(c, response.CodeNotFound, "error.gift_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.gift_fetch_failed", err)
		return
	}
	response.Success(c, gift)
}

// GiftStats 全局礼物统计 (Admin)
func (h *Handler) GiftStats(c *gin.Context) {
	stats, err := h.GiftService.GlobalGiftStats()
	if err != nil {
		respondError(c, response.CodeInternal, "error.gift_fetch_failed", err)
		return
	}
	response.Success(c, stats)
}

// CancelGift 管理员取消礼物
func (h *Handler) CancelGift(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	giftID, ok := parseGiftID(c)
	if !ok {
		return
	}

	gift, err := h.GiftService.CancelGift(giftID, 0, true)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGiftNotFound):
			respondError(c, response.CodeNotFound, "error.gift_not_found", nil)
		case errors.Is(err, service.ErrGiftAlreadyActivated):
			respondError(c, response.CodeConflict, "error.gift_already_activated", nil)
		case errors.Is(err, service.ErrGiftNotCancellable):
			respondError(c, response.CodeConflict, "error.gift_not_cancellable", nil)
		default:
			respondError(c, response.CodeInternal, "error.gift_cancel_failed", err)
		}
		return
	}

	requestLog(c).Infow("admin_gift_cancelled", "admin_id", adminID, "gift_id", gift.ID)
	response.Success(c, gift)
}

// RefundGift 管理员标记礼物已退款（仅限未兑换的礼物）
func (h *Handler) RefundGift(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	giftID, ok := parseGiftID(c)
	if !ok {
		return
	}

	gift, err := h.GiftService.RefundGift(giftID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGiftNotFound):
			respondError(c, response.CodeNotFound, "error.gift_not_found", nil)
		case errors.Is(err, service.ErrGiftNotRefundable):
			respondError(c, response.CodeConflict, "error.gift_not_refundable", nil)
		default:
			respondError(c, response.CodeInternal, "error.gift_refund_failed", err)
		}
		return
	}

	requestLog(c).Infow("admin_gift_refunded", "admin_id", adminID, "gift_id", gift.ID)
	response.Success(c, gift)
}

// SweepExpiredGifts 手动触发过期清扫
func (h *Handler) SweepExpiredGifts(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}

	expired, err := h.GiftService.ExpireDueGifts(time.Now().UTC())
	if err != nil {
		respondError(c, response.CodeInternal, "error.gift_sweep_failed", err)
		return
	}

	requestLog(c).Infow("admin_gift_sweep", "admin_id", adminID, "expired", expired)
	response.Success(c, gin.H{"expired": expired})
}

func parseGiftID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, false
	}
	return uint(id), true
}
