package service

import (
	"context"
	"fmt"
	"time"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/clock"
	"electricity-billing/internal/model"
	"electricity-billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type StatisticsFilter struct {
	ProviderID string // required for admins, ignored otherwise
	From       string // YYYY-MM-DD, defaults to the first day of the month
	To         string // YYYY-MM-DD, defaults to today
}

type StatusTotals struct {
	PaymentStatus string `json:"payment_status"`
	InvoiceCount  int64  `json:"invoice_count"`
	TotalKwh      string `json:"total_kwh"`
	TotalAmount   string `json:"total_amount"`
}

type BillingStatisticsResponse struct {
	ProviderID       string         `json:"provider_id"`
	From             string         `json:"from"`
	To               string         `json:"to"`
	InvoiceCount     int64          `json:"invoice_count"`
	TotalKwh         string         `json:"total_kwh"`
	TotalBilled      string         `json:"total_billed"`
	TotalPaid        string         `json:"total_paid"`
	TotalOutstanding string         `json:"total_outstanding"`
	ByStatus         []StatusTotals `json:"by_status"`
}

// --- Interface ---

// StatisticsService summarizes a provider's billing over a date range.
type StatisticsService interface {
	ProviderStatistics(ctx context.Context, principal model.Principal, filter StatisticsFilter) (BillingStatisticsResponse, error)
}

type statisticsService struct {
	statsRepo repository.StatisticsRepository
	userRepo  repository.UserRepository
	roles     RoleService
	clock     clock.Clock
	log       *zap.Logger
}

func NewStatisticsService(
	statsRepo repository.StatisticsRepository,
	userRepo repository.UserRepository,
	roles RoleService,
	clk clock.Clock,
	log *zap.Logger,
) StatisticsService {
	return &statisticsService{
		statsRepo: statsRepo,
		userRepo:  userRepo,
		roles:     roles,
		clock:     clk,
		log:       log.Named("statistics.service"),
	}
}

// --- Implementation ---

func (s *statisticsService) ProviderStatistics(ctx context.Context, principal model.Principal, filter StatisticsFilter) (BillingStatisticsResponse, error) {
	providerID, err := s.scope(ctx, principal, filter.ProviderID)
	if err != nil {
		return BillingStatisticsResponse{}, err
	}

	now := s.clock.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if filter.From != "" {
		if from, err = parseDate("from", filter.From); err != nil {
			return BillingStatisticsResponse{}, err
		}
	}
	if filter.To != "" {
		if to, err = parseDate("to", filter.To); err != nil {
			return BillingStatisticsResponse{}, err
		}
	}
	if to.Before(from) {
		return BillingStatisticsResponse{}, apperror.BadRequest("from must not be after to")
	}

	rows, err := s.statsRepo.InvoiceTotalsByStatus(ctx, providerID, from, to)
	if err != nil {
		return BillingStatisticsResponse{}, err
	}

	resp := BillingStatisticsResponse{
		ProviderID: providerID.String(),
		From:       from.Format(dateLayout),
		To:         to.Format(dateLayout),
		ByStatus:   make([]StatusTotals, 0, len(rows)),
	}
	kwh, billed, paid, outstanding := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, row := range rows {
		rowKwh, err := decimal.NewFromString(row.TotalKwh)
		if err != nil {
			return BillingStatisticsResponse{}, fmt.Errorf("bad kwh total %q: %w", row.TotalKwh, err)
		}
		rowAmount, err := decimal.NewFromString(row.TotalAmount)
		if err != nil {
			return BillingStatisticsResponse{}, fmt.Errorf("bad amount total %q: %w", row.TotalAmount, err)
		}

		resp.InvoiceCount += row.InvoiceCount
		kwh = kwh.Add(rowKwh)
		switch row.PaymentStatus {
		case model.PaymentCancelled:
			// cancelled invoices are neither billed nor owed
		case model.PaymentPaid:
			billed = billed.Add(rowAmount)
			paid = paid.Add(rowAmount)
		default:
			billed = billed.Add(rowAmount)
			outstanding = outstanding.Add(rowAmount)
		}
		resp.ByStatus = append(resp.ByStatus, StatusTotals{
			PaymentStatus: string(row.PaymentStatus),
			InvoiceCount:  row.InvoiceCount,
			TotalKwh:      rowKwh.StringFixed(4),
			TotalAmount:   rowAmount.StringFixed(2),
		})
	}
	resp.TotalKwh = kwh.StringFixed(4)
	resp.TotalBilled = billed.StringFixed(2)
	resp.TotalPaid = paid.StringFixed(2)
	resp.TotalOutstanding = outstanding.StringFixed(2)
	return resp, nil
}

// --- Helpers ---

// scope picks the provider the caller may summarize: any provider for an
// admin, the caller's own provider for auditors and super creators.
func (s *statisticsService) scope(ctx context.Context, principal model.Principal, requested string) (uuid.UUID, error) {
	user, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		return uuid.Nil, notFoundOr(err, "user not found")
	}
	actor, err := resolveActor(ctx, s.roles, principal, user)
	if err != nil {
		return uuid.Nil, err
	}

	switch actor.Role {
	case model.RoleAdmin:
		if requested == "" {
			return uuid.Nil, apperror.BadRequest("provider id is required")
		}
		return parseID(requested, "provider")
	case model.RoleAuditor, model.RoleSuperCreator:
		if actor.ProviderID == nil {
			return uuid.Nil, apperror.BadRequest("user is not assigned to a provider")
		}
		return *actor.ProviderID, nil
	}
	return uuid.Nil, apperror.Unauthorized("role %s cannot view billing statistics", actor.Role)
}
