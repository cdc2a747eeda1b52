package service

import (
	"context"
	"errors"
	"fmt"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/model"
	"electricity-billing/internal/policy"
	"electricity-billing/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type InvoiceHistoryResponse struct {
	Invoice InvoiceResponse    `json:"invoice"`
	Logs    []AuditLogResponse `json:"logs"`
}

// --- Interface ---

// AuditorService is the read-only view of a provider's invoices and audit
// trail. Every call is scoped to the auditor's own provider.
type AuditorService interface {
	ListInvoices(ctx context.Context, principal model.Principal, page, limit int) ([]InvoiceResponse, int64, error)
	SearchInvoiceByNumber(ctx context.Context, principal model.Principal, number string) (InvoiceResponse, error)
	ListAuditLogs(ctx context.Context, principal model.Principal, page, limit int) ([]AuditLogResponse, int64, error)
	InvoiceHistory(ctx context.Context, principal model.Principal, invoiceID string) (InvoiceHistoryResponse, error)
	SearchAuditLogsByInvoiceNumber(ctx context.Context, principal model.Principal, number string) ([]AuditLogResponse, error)
	PricingHistory(ctx context.Context, principal model.Principal) ([]PricingEntryResponse, error)
}

type auditorService struct {
	userRepo    repository.UserRepository
	invoiceRepo repository.InvoiceRepository
	roles       RoleService
	pricing     PricingService
	audit       AuditService
	log         *zap.Logger
}

func NewAuditorService(
	userRepo repository.UserRepository,
	invoiceRepo repository.InvoiceRepository,
	roles RoleService,
	pricing PricingService,
	audit AuditService,
	log *zap.Logger,
) AuditorService {
	return &auditorService{
		userRepo:    userRepo,
		invoiceRepo: invoiceRepo,
		roles:       roles,
		pricing:     pricing,
		audit:       audit,
		log:         log.Named("auditor.service"),
	}
}

// --- Implementation ---

func (s *auditorService) ListInvoices(ctx context.Context, principal model.Principal, page, limit int) ([]InvoiceResponse, int64, error) {
	actor, err := s.auditor(ctx, principal)
	if err != nil {
		return nil, 0, err
	}
	invoices, total, err := s.invoiceRepo.ListByProvider(ctx, *actor.ProviderID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return toInvoiceResponses(invoices), total, nil
}

func (s *auditorService) SearchInvoiceByNumber(ctx context.Context, principal model.Principal, number string) (InvoiceResponse, error) {
	actor, err := s.auditor(ctx, principal)
	if err != nil {
		return InvoiceResponse{}, err
	}
	invoice, err := s.invoiceRepo.FindByNumber(ctx, number)
	if err != nil {
		return InvoiceResponse{}, notFoundOr(err, "invoice not found")
	}
	// other providers' invoices are reported as missing
	if !policy.Authorize(actor, policy.ActionViewInvoice, policy.Resource{Invoice: invoice}).Allowed() {
		return InvoiceResponse{}, apperror.NotFound("invoice not found")
	}
	return toInvoiceResponse(invoice), nil
}

func (s *auditorService) ListAuditLogs(ctx context.Context, principal model.Principal, page, limit int) ([]AuditLogResponse, int64, error) {
	actor, err := s.auditor(ctx, principal)
	if err != nil {
		return nil, 0, err
	}
	return s.audit.FindByProvider(ctx, *actor.ProviderID, page, limit)
}

func (s *auditorService) InvoiceHistory(ctx context.Context, principal model.Principal, invoiceID string) (InvoiceHistoryResponse, error) {
	id, err := uuid.Parse(invoiceID)
	if err != nil {
		return InvoiceHistoryResponse{}, apperror.BadRequest("invalid invoice id")
	}
	actor, err := s.auditor(ctx, principal)
	if err != nil {
		return InvoiceHistoryResponse{}, err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return InvoiceHistoryResponse{}, notFoundOr(err, "invoice not found")
	}
	if err := decisionError(policy.Authorize(actor, policy.ActionViewInvoice, policy.Resource{Invoice: invoice})); err != nil {
		return InvoiceHistoryResponse{}, err
	}
	logs, err := s.audit.FindByInvoice(ctx, invoice.ID)
	if err != nil {
		return InvoiceHistoryResponse{}, err
	}
	return InvoiceHistoryResponse{Invoice: toInvoiceResponse(invoice), Logs: logs}, nil
}

func (s *auditorService) SearchAuditLogsByInvoiceNumber(ctx context.Context, principal model.Principal, number string) ([]AuditLogResponse, error) {
	actor, err := s.auditor(ctx, principal)
	if err != nil {
		return nil, err
	}
	return s.audit.FindByInvoiceNumber(ctx, number, *actor.ProviderID)
}

func (s *auditorService) PricingHistory(ctx context.Context, principal model.Principal) ([]PricingEntryResponse, error) {
	actor, err := s.auditor(ctx, principal)
	if err != nil {
		return nil, err
	}
	entries, err := s.pricing.History(ctx, *actor.ProviderID)
	if err != nil {
		return nil, err
	}
	return toPricingEntryResponses(entries), nil
}

// --- Helpers ---

// auditor resolves the principal into an actor acting as Auditor with a
// provider attached.
func (s *auditorService) auditor(ctx context.Context, principal model.Principal) (policy.Actor, error) {
	if principal.Role != model.RoleAuditor {
		return policy.Actor{}, apperror.Unauthorized("auditor role required")
	}
	user, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Actor{}, apperror.NotFound("user not found")
		}
		return policy.Actor{}, fmt.Errorf("failed to load auditor: %w", err)
	}
	actor, err := resolveActor(ctx, s.roles, principal, user)
	if err != nil {
		return policy.Actor{}, err
	}
	if actor.ProviderID == nil {
		return policy.Actor{}, apperror.BadRequest("auditor must be assigned to a provider")
	}
	return actor, nil
}
