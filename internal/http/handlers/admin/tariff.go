package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/subgift/subgift/internal/http/response"
	"github.com/subgift/subgift/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TariffRequest 创建/更新套餐请求
type TariffRequest struct {
	Name         string  `json:"name" binding:"required"`
	DurationDays int     `json:"duration_days" binding:"required"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	IsActive     *bool   `json:"is_active"`
	SortOrder    int     `json:"sort_order"`
}

func (r TariffRequest) toInput() service.CreateTariffInput {
	return service.CreateTariffInput{
		Name:         r.Name,
		DurationDays: r.DurationDays,
		Price:        decimal.NewFromFloat(r.Price),
		Currency:     r.Currency,
		IsActive:     r.IsActive,
		SortOrder:    r.SortOrder,
	}
}

// ListTariffs 套餐列表 (Admin，含下架套餐)
func (h *Handler) ListTariffs(c *gin.Context) {
	tariffs, err := h.TariffService.List(false)
	if err != nil {
		respondError(c, response.CodeInternal, "error.tariff_fetch_failed", err)
		return
	}
	response.Success(c, tariffs)
}

// CreateTariff 创建套餐
func (h *Handler) CreateTariff(c *gin.Context) {
	var req TariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	tariff, err := h.TariffService.Create(req.toInput())
	if err != nil {
		if errors.Is(err, service.ErrTariffInvalid) {
			respondError(c, response.CodeBadRequest, "error.tariff_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.tariff_create_failed", err)
		return
	}
	response.Success(c, tariff)
}

// UpdateTariff 更新套餐
func (h *Handler) UpdateTariff(c *gin.Context) {
	id, ok := parseTariffID(c)
	if !ok {
		return
	}

	var req TariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	tariff, err := h.TariffService.Update(id, req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTariffNotFound):
			respondError(c, response.CodeNotFound, "error.tariff_not_found", nil)
		case errors.Is(err, service.ErrTariffInvalid):
			respondError(c, response.CodeBadRequest, "error.tariff_invalid", nil)
		default:
			respondError(c, response.CodeInternal, "error.tariff_update_failed", err)
		}
		return
	}
	response.Success(c, tariff)
}

// DeleteTariff 删除套餐（软删除）
func (h *Handler) DeleteTariff(c *gin.Context) {
	id, ok := parseTariffID(c)
	if !ok {
		return
	}

	if err := h.TariffService.Delete(id); err != nil {
		if errors.Is(err, service.ErrTariffNotFound) {
			respondError(c, response.CodeNotFound, "error.tariff_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.tariff_delete_failed", err)
		return
	}
	response.Success(c, nil)
}

func parseTariffID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, false
	}
	return uint(id), true
}
