package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/clock"
	"electricity-billing/internal/events"
	"electricity-billing/internal/metrics"
	"electricity-billing/internal/model"
	"electricity-billing/internal/policy"
	"electricity-billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// --- DTOs ---

type CreateInvoiceRequest struct {
	CustomerID  string `json:"customer_id" binding:"required,uuid"`
	KwhConsumed string `json:"kwh_consumed" binding:"required,decimal"`
	IssueDate   string `json:"issue_date" binding:"required"` // YYYY-MM-DD
	DueDate     string `json:"due_date" binding:"required"`   // YYYY-MM-DD
}

// UpdateInvoiceRequest carries the mutable fields. Nil fields are left as
// they are; an empty payment_date clears it.
type UpdateInvoiceRequest struct {
	KwhConsumed   *string `json:"kwh_consumed" binding:"omitempty,decimal"`
	DueDate       *string `json:"due_date"`
	PaymentStatus *string `json:"payment_status" binding:"omitempty,oneof=Pending Paid Overdue Cancelled"`
	PaymentDate   *string `json:"payment_date"`
}

type InvoiceResponse struct {
	ID              string  `json:"id"`
	InvoiceNumber   string  `json:"invoice_number"`
	CustomerID      string  `json:"customer_id"`
	ProviderID      string  `json:"provider_id"`
	CreatedByUserID string  `json:"created_by_user_id"`
	PricingID       string  `json:"pricing_id"`
	KwhPrice        string  `json:"kwh_price"`
	KwhConsumed     string  `json:"kwh_consumed"`
	TotalAmount     string  `json:"total_amount"`
	IssueDate       string  `json:"issue_date"`
	DueDate         string  `json:"due_date"`
	PaymentStatus   string  `json:"payment_status"`
	PaymentDate     *string `json:"payment_date"`
	CreatedAt       string  `json:"created_at"`
}

// --- Interface ---

// InvoiceService is the invoice lifecycle. Every call takes the acting
// principal explicitly.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, principal model.Principal, req CreateInvoiceRequest) (InvoiceResponse, error)
	UpdateInvoice(ctx context.Context, principal model.Principal, id string, req UpdateInvoiceRequest) (InvoiceResponse, error)
	GetInvoice(ctx context.Context, principal model.Principal, id string) (InvoiceResponse, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]InvoiceResponse, int64, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]InvoiceResponse, int64, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]InvoiceResponse, int64, error)
	ListProviderInvoices(ctx context.Context, principal model.Principal, page, limit int) ([]InvoiceResponse, int64, error)
}

type invoiceService struct {
	userRepo    repository.UserRepository
	invoiceRepo repository.InvoiceRepository
	pricingRepo repository.PricingRepository
	roles       RoleService
	pricing     PricingService
	audit       AuditService
	txManager   repository.TransactionManager
	publisher   events.Publisher
	clock       clock.Clock
	metrics     *metrics.Metrics
	log         *zap.Logger
}

type InvoiceServiceDeps struct {
	UserRepo    repository.UserRepository
	InvoiceRepo repository.InvoiceRepository
	PricingRepo repository.PricingRepository
	Roles       RoleService
	Pricing     PricingService
	Audit       AuditService
	TxManager   repository.TransactionManager
	Publisher   events.Publisher
	Clock       clock.Clock
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

func NewInvoiceService(d InvoiceServiceDeps) InvoiceService {
	return &invoiceService{
		userRepo:    d.UserRepo,
		invoiceRepo: d.InvoiceRepo,
		pricingRepo: d.PricingRepo,
		roles:       d.Roles,
		pricing:     d.Pricing,
		audit:       d.Audit,
		txManager:   d.TxManager,
		publisher:   d.Publisher,
		clock:       d.Clock,
		metrics:     d.Metrics,
		log:         d.Log.Named("invoice.service"),
	}
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, principal model.Principal, req CreateInvoiceRequest) (InvoiceResponse, error) {
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return InvoiceResponse{}, apperror.BadRequest("invalid customer_id")
	}
	kwh, err := parseKwh(req.KwhConsumed)
	if err != nil {
		return InvoiceResponse{}, err
	}
	issueDate, err := parseDate("issue_date", req.IssueDate)
	if err != nil {
		return InvoiceResponse{}, err
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return InvoiceResponse{}, err
	}

	creator, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		return InvoiceResponse{}, notFoundOr(err, "creator user not found")
	}
	customer, err := s.userRepo.FindByID(ctx, customerID)
	if err != nil {
		return InvoiceResponse{}, notFoundOr(err, "customer not found")
	}

	actor, err := s.actorFor(ctx, principal, creator)
	if err != nil {
		return InvoiceResponse{}, err
	}
	customerRoles, err := s.roles.RolesOf(ctx, customer.ID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if err := s.check(actor, policy.ActionCreateInvoice, policy.Resource{Customer: customer, CustomerRoles: customerRoles}); err != nil {
		return InvoiceResponse{}, err
	}
	providerID := *creator.ProviderID

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.pricing.GetCurrentPrice(txCtx, providerID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.BadRequest("no active pricing found for provider")
			}
			return err
		}

		invoice = &model.Invoice{
			InvoiceNumber:   generateInvoiceNumber(providerID, s.clock.Now()),
			CustomerID:      customer.ID,
			ProviderID:      providerID,
			CreatedByUserID: creator.ID,
			PricingID:       current.ID,
			KwhConsumed:     kwh,
			TotalAmount:     kwh.Mul(current.KwhPrice),
			IssueDate:       issueDate,
			DueDate:         dueDate,
			PaymentStatus:   model.PaymentPending,
		}
		if err := s.invoiceRepo.Create(txCtx, invoice); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.Conflict("invoice number %s already exists, retry", invoice.InvoiceNumber)
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		invoice.Pricing = current
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.audit.Record(ctx, invoice.ID, creator.ID, model.AuditActionCreate, nil, model.NewInvoiceSnapshot(invoice))
	s.metrics.InvoiceMutations.WithLabelValues(string(model.AuditActionCreate)).Inc()
	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("created_by", creator.ID.String()))

	resp := toInvoiceResponse(invoice)
	s.publisher.Publish(events.InvoiceCreated, invoice.ProviderID, resp)
	return resp, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, principal model.Principal, id string, req UpdateInvoiceRequest) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, apperror.BadRequest("invalid invoice id")
	}

	updater, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		return InvoiceResponse{}, notFoundOr(err, "user not found")
	}
	actor, err := s.actorFor(ctx, principal, updater)
	if err != nil {
		return InvoiceResponse{}, err
	}

	var invoice *model.Invoice
	var before *model.InvoiceSnapshot
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err = s.invoiceRepo.FindByIDForUpdate(txCtx, invoiceID)
		if err != nil {
			return notFoundOr(err, "invoice not found")
		}
		if err := s.check(actor, policy.ActionUpdateInvoice, policy.Resource{Invoice: invoice}); err != nil {
			return err
		}

		snapshot, err := s.pricingRepo.FindByID(txCtx, invoice.PricingID)
		if err != nil {
			return fmt.Errorf("failed to load pricing snapshot for invoice %s: %w", invoice.ID, err)
		}
		invoice.Pricing = snapshot
		before = model.NewInvoiceSnapshot(invoice)

		if err := applyInvoiceUpdate(invoice, req); err != nil {
			return err
		}
		// always priced at the snapshot, never the provider's current price
		invoice.TotalAmount = invoice.KwhConsumed.Mul(snapshot.KwhPrice)

		if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.audit.Record(ctx, invoice.ID, updater.ID, model.AuditActionUpdate, before, model.NewInvoiceSnapshot(invoice))
	s.metrics.InvoiceMutations.WithLabelValues(string(model.AuditActionUpdate)).Inc()
	s.log.Info("invoice updated",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("updated_by", updater.ID.String()))

	resp := toInvoiceResponse(invoice)
	s.publisher.Publish(events.InvoiceUpdated, invoice.ProviderID, resp)
	return resp, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, principal model.Principal, id string) (InvoiceResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceResponse{}, apperror.BadRequest("invalid invoice id")
	}

	viewer, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		return InvoiceResponse{}, notFoundOr(err, "user not found")
	}
	actor, err := s.actorFor(ctx, principal, viewer)
	if err != nil {
		return InvoiceResponse{}, err
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return InvoiceResponse{}, notFoundOr(err, "invoice not found")
	}
	if err := s.check(actor, policy.ActionViewInvoice, policy.Resource{Invoice: invoice}); err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(invoice), nil
}

// The three list calls trust the identity handed in; route permissions decide
// who may reach them.

func (s *invoiceService) ListByCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]InvoiceResponse, int64, error) {
	invoices, total, err := s.invoiceRepo.ListByCustomer(ctx, customerID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return toInvoiceResponses(invoices), total, nil
}

func (s *invoiceService) ListByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]InvoiceResponse, int64, error) {
	invoices, total, err := s.invoiceRepo.ListByCreator(ctx, creatorID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return toInvoiceResponses(invoices), total, nil
}

func (s *invoiceService) ListByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]InvoiceResponse, int64, error) {
	invoices, total, err := s.invoiceRepo.ListByProvider(ctx, providerID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}
	return toInvoiceResponses(invoices), total, nil
}

// ListProviderInvoices lists every invoice of the caller's own provider.
func (s *invoiceService) ListProviderInvoices(ctx context.Context, principal model.Principal, page, limit int) ([]InvoiceResponse, int64, error) {
	user, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		return nil, 0, notFoundOr(err, "user not found")
	}
	actor, err := s.actorFor(ctx, principal, user)
	if err != nil {
		return nil, 0, err
	}
	if actor.ProviderID == nil {
		return nil, 0, apperror.BadRequest("user is not assigned to a provider")
	}
	return s.ListByProvider(ctx, *actor.ProviderID, page, limit)
}

// --- Helpers ---

// actorFor verifies that the user really holds the principal's active role
// and builds the actor the guard evaluates.
func (s *invoiceService) actorFor(ctx context.Context, principal model.Principal, user *model.User) (policy.Actor, error) {
	return resolveActor(ctx, s.roles, principal, user)
}

func (s *invoiceService) check(actor policy.Actor, action policy.Action, res policy.Resource) error {
	err := decisionError(policy.Authorize(actor, action, res))
	if err != nil {
		s.metrics.AuthorizationDenials.WithLabelValues(string(action)).Inc()
		s.log.Info("invoice action denied",
			zap.String("action", string(action)),
			zap.String("user_id", actor.UserID.String()),
			zap.String("role", string(actor.Role)),
			zap.String("reason", err.Error()))
	}
	return err
}

func resolveActor(ctx context.Context, roles RoleService, principal model.Principal, user *model.User) (policy.Actor, error) {
	if !user.IsActive {
		return policy.Actor{}, apperror.Unauthorized("account is disabled")
	}
	held, err := roles.RolesOf(ctx, user.ID)
	if err != nil {
		return policy.Actor{}, err
	}
	if !held.Has(principal.Role) {
		return policy.Actor{}, apperror.Unauthorized("you don't hold the %s role", principal.Role)
	}
	return policy.Actor{UserID: user.ID, ProviderID: user.ProviderID, Role: principal.Role}, nil
}

func decisionError(d policy.Decision) error {
	switch d.Effect {
	case policy.Allow:
		return nil
	case policy.Reject:
		return apperror.BadRequest("%s", d.Reason)
	}
	return apperror.Unauthorized("%s", d.Reason)
}

func applyInvoiceUpdate(invoice *model.Invoice, req UpdateInvoiceRequest) error {
	if req.KwhConsumed != nil {
		kwh, err := parseKwh(*req.KwhConsumed)
		if err != nil {
			return err
		}
		invoice.KwhConsumed = kwh
	}
	if req.DueDate != nil {
		due, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			return err
		}
		invoice.DueDate = due
	}
	if req.PaymentStatus != nil {
		status := model.PaymentStatus(*req.PaymentStatus)
		if !status.Valid() {
			return apperror.BadRequest("invalid payment_status %q", *req.PaymentStatus)
		}
		// any status may follow any other
		invoice.PaymentStatus = status
	}
	if req.PaymentDate != nil {
		if *req.PaymentDate == "" {
			invoice.PaymentDate = nil
		} else {
			paid, err := parseDate("payment_date", *req.PaymentDate)
			if err != nil {
				return err
			}
			invoice.PaymentDate = &paid
		}
	}
	return nil
}

func parseKwh(raw string) (decimal.Decimal, error) {
	kwh, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.BadRequest("invalid kwh_consumed value")
	}
	if kwh.IsNegative() {
		return decimal.Zero, apperror.BadRequest("kwh_consumed cannot be negative")
	}
	if !model.FitsQuantityScale(kwh) {
		return decimal.Zero, apperror.BadRequest("kwh_consumed allows at most %d decimal places", model.QuantityScale)
	}
	return kwh, nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperror.BadRequest("invalid %s date format (expected YYYY-MM-DD)", field)
	}
	return t, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("%s", msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// generateInvoiceNumber returns INV-<providerId>-<yyyyMMddHHmmss> in UTC.
func generateInvoiceNumber(providerID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", providerID, now.UTC().Format("20060102150405"))
}

// --- Mapping ---

func toInvoiceResponse(inv *model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:              inv.ID.String(),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID.String(),
		ProviderID:      inv.ProviderID.String(),
		CreatedByUserID: inv.CreatedByUserID.String(),
		PricingID:       inv.PricingID.String(),
		KwhConsumed:     inv.KwhConsumed.String(),
		TotalAmount:     inv.TotalAmount.String(),
		IssueDate:       inv.IssueDate.Format(dateLayout),
		DueDate:         inv.DueDate.Format(dateLayout),
		PaymentStatus:   string(inv.PaymentStatus),
		CreatedAt:       inv.CreatedAt.UTC().Format(time.RFC3339),
	}
	if inv.Pricing != nil {
		resp.KwhPrice = inv.Pricing.KwhPrice.StringFixed(4)
	}
	if inv.PaymentDate != nil {
		d := inv.PaymentDate.Format(dateLayout)
		resp.PaymentDate = &d
	}
	return resp
}

func toInvoiceResponses(invoices []model.Invoice) []InvoiceResponse {
	res := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		res = append(res, toInvoiceResponse(&invoices[i]))
	}
	return res
}
