package handler

import (
	"net/http"
	"strings"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/service"
	"electricity-billing/pkg/pagination"
	"electricity-billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditHandler serves the read-only auditor views. Every endpoint is scoped
// to the auditor's provider.
type AuditHandler struct {
	auditorService service.AuditorService
}

func NewAuditHandler(auditorService service.AuditorService) *AuditHandler {
	return &AuditHandler{auditorService: auditorService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit")
	{
		group.GET("/invoices", h.ListInvoices)
		group.GET("/invoices/search", h.SearchInvoice)
		group.GET("/invoices/:id/history", h.InvoiceHistory)
		group.GET("/logs", h.ListAuditLogs)
		group.GET("/logs/search", h.SearchAuditLogs)
		group.GET("/pricing-history", h.PricingHistory)
	}
}

// ListInvoices
// @Summary      Provider invoices
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/audit/invoices [get]
func (h *AuditHandler) ListInvoices(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	invoices, total, err := h.auditorService.ListInvoices(c.Request.Context(), p, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, invoices, total, params.Page, params.Limit))
}

// SearchInvoice finds an invoice by its number
// @Summary      Search invoice by number
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        number  query     string  true  "Invoice number"
// @Success      200     {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404     {object}  response.Response
// @Router       /api/audit/invoices/search [get]
func (h *AuditHandler) SearchInvoice(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	number := strings.TrimSpace(c.Query("number"))
	if number == "" {
		respondError(c, apperror.BadRequest("number is required"))
		return
	}
	invoice, err := h.auditorService.SearchInvoiceByNumber(c.Request.Context(), p, number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// InvoiceHistory returns an invoice with its full audit trail
// @Summary      Invoice history
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceHistoryResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/audit/invoices/{id}/history [get]
func (h *AuditHandler) InvoiceHistory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	history, err := h.auditorService.InvoiceHistory(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// ListAuditLogs
// @Summary      Provider audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/audit/logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	logs, total, err := h.auditorService.ListAuditLogs(c.Request.Context(), p, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, total, params.Page, params.Limit))
}

// SearchAuditLogs
// @Summary      Audit logs by invoice number
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        invoice_number  query     string  true  "Invoice number"
// @Success      200             {object}  response.Response{data=[]service.AuditLogResponse}
// @Router       /api/audit/logs/search [get]
func (h *AuditHandler) SearchAuditLogs(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	number := strings.TrimSpace(c.Query("invoice_number"))
	if number == "" {
		respondError(c, apperror.BadRequest("invoice_number is required"))
		return
	}
	logs, err := h.auditorService.SearchAuditLogsByInvoiceNumber(c.Request.Context(), p, number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, logs))
}

// PricingHistory
// @Summary      Provider pricing history
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.PricingEntryResponse}
// @Router       /api/audit/pricing-history [get]
func (h *AuditHandler) PricingHistory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	history, err := h.auditorService.PricingHistory(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}
