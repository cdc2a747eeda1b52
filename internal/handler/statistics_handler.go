package handler

import (
	"net/http"

	"electricity-billing/internal/service"
	"electricity-billing/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService}
}

// RegisterRoutes exposes the same summary under each role's route prefix.
func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/admin/providers/:id/statistics", h.GetStatistics)
	router.GET("/api/audit/statistics", h.GetStatistics)
	router.GET("/api/invoices/provider/statistics", h.GetStatistics)
}

// @Summary      Billing statistics
// @Description  Invoice count, consumption, billed, paid and outstanding totals for a provider, grouped by payment status
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      string  false  "Provider ID (admin route only)"
// @Param        from  query     string  false  "Start of the issue date range (YYYY-MM-DD), defaults to the first day of the month"
// @Param        to    query     string  false  "End of the issue date range (YYYY-MM-DD), defaults to today"
// @Success      200   {object}  response.Response{data=service.BillingStatisticsResponse}
// @Failure      400   {object}  response.Response
// @Failure      403   {object}  response.Response
// @Router       /api/admin/providers/{id}/statistics [get]
// @Router       /api/audit/statistics [get]
// @Router       /api/invoices/provider/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	stats, err := h.statisticsService.ProviderStatistics(c.Request.Context(), p, service.StatisticsFilter{
		ProviderID: c.Param("id"),
		From:       c.Query("from"),
		To:         c.Query("to"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
