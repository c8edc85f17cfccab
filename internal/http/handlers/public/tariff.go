package public

import (
	"github.com/subgift/subgift/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListTariffs 上架套餐列表
func (h *Handler) ListTariffs(c *gin.Context) {
	tariffs, err := h.TariffService.List(true)
	if err != nil {
		respondError(c, response.CodeInternal, "error.tariff_fetch_failed", err)
		return
	}
	response.Success(c, tariffs)
}
