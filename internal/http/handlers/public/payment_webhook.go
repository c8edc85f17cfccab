package public

import (
	"errors"
	"strings"

	"github.com/subgift/subgift/internal/http/response"
	"github.com/subgift/subgift/internal/models"
	"github.com/subgift/subgift/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentWebhookRequest 支付结果回调请求
type PaymentWebhookRequest struct {
	PaymentID   uint        `json:"payment_id" binding:"required"`
	Status      string      `json:"status" binding:"required"`
	ProviderRef string      `json:"provider_ref"`
	Payload     models.JSON `json:"payload"`
}

// PaymentWebhook 支付结果回调（幂等，重复投递安全）
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	var (
		gift *models.Gift
		err  error
	)
	switch strings.TrimSpace(strings.ToLower(req.Status)) {
	case "success", "paid":
		gift, err = h.GiftService.MarkGiftPaid(req.PaymentID, req.ProviderRef, req.Payload)
	case "failed":
		gift, err = h.GiftService.MarkGiftPaymentFailed(req.PaymentID, req.ProviderRef)
	default:
		respondError(c, response.CodeBadRequest, "error.payment_status_invalid", nil)
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			respondError(c, response.CodeNotFound, "error.payment_not_found", nil)
		case errors.Is(err, service.ErrGiftNotFound):
			respondError(c, response.CodeNotFound, "error.gift_not_found", nil)
		default:
			respondError(c, response.CodeInternal, "error.payment_callback_failed", err)
		}
		return
	}

	requestLog(c).Infow("payment_webhook_handled",
		"payment_id", req.PaymentID,
		"gift_id", gift.ID,
		"gift_status", gift.Status,
	)
	response.Success(c, gin.H{"gift": gift})
}
