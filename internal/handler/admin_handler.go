package handler

import (
	"net/http"

	"electricity-billing/internal/service"
	"electricity-billing/pkg/pagination"
	"electricity-billing/pkg/response"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminService service.AdminService
}

func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// RegisterRoutes expects a group that already authenticates and checks
// route permissions.
func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	providers := router.Group("/api/admin/providers")
	{
		providers.POST("", h.CreateProvider)
		providers.GET("", h.ListProviders)
		providers.GET("/:id", h.GetProvider)
		providers.PUT("/:id/price", h.UpdateProviderPrice)
		providers.GET("/:id/pricing-history", h.ProviderPricingHistory)
	}
}

// CreateProvider registers a provider and opens its first price
// @Summary      Create provider
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProviderRequest  true  "Provider"
// @Success      201      {object}  response.Response{data=service.ProviderResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/providers [post]
func (h *AdminHandler) CreateProvider(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	provider, err := h.adminService.CreateProvider(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, provider))
}

// ListProviders
// @Summary      List providers
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/admin/providers [get]
func (h *AdminHandler) ListProviders(c *gin.Context) {
	params := pagination.Parse(c)
	providers, total, err := h.adminService.ListProviders(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, providers, total, params.Page, params.Limit))
}

// GetProvider
// @Summary      Get provider
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Provider ID"
// @Success      200  {object}  response.Response{data=service.ProviderResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/admin/providers/{id} [get]
func (h *AdminHandler) GetProvider(c *gin.Context) {
	provider, err := h.adminService.GetProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, provider))
}

// UpdateProviderPrice closes the current price and opens a new one
// @Summary      Change provider price
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Provider ID"
// @Param        payload  body      service.UpdatePriceRequest  true  "New kWh price"
// @Success      200      {object}  response.Response{data=service.PricingEntryResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/admin/providers/{id}/price [put]
func (h *AdminHandler) UpdateProviderPrice(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req service.UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	entry, err := h.adminService.UpdateProviderPrice(c.Request.Context(), p, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

// ProviderPricingHistory
// @Summary      Provider pricing history
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Provider ID"
// @Success      200  {object}  response.Response{data=[]service.PricingEntryResponse}
// @Router       /api/admin/providers/{id}/pricing-history [get]
func (h *AdminHandler) ProviderPricingHistory(c *gin.Context) {
	history, err := h.adminService.ProviderPricingHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}
