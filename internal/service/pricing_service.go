package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/clock"
	"electricity-billing/internal/events"
	"electricity-billing/internal/lock"
	"electricity-billing/internal/metrics"
	"electricity-billing/internal/model"
	"electricity-billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type PricingEntryResponse struct {
	ID              string  `json:"id"`
	ProviderID      string  `json:"provider_id"`
	ChangedByUserID *string `json:"changed_by_user_id"`
	KwhPrice        string  `json:"kwh_price"`
	ValidFrom       string  `json:"valid_from"`
	ValidTo         *string `json:"valid_to"`
	Current         bool    `json:"current"`
}

// --- Interface ---

// PricingService is the pricing ledger: the time-interval history of each
// provider's kWh price.
type PricingService interface {
	GetCurrentPrice(ctx context.Context, providerID uuid.UUID) (*model.PricingHistory, error)
	GetPriceAt(ctx context.Context, providerID uuid.UUID, at time.Time) (*model.PricingHistory, error)
	ChangePrice(ctx context.Context, providerID uuid.UUID, newPrice decimal.Decimal, changedBy uuid.UUID) (*model.PricingHistory, error)
	OpenInitial(ctx context.Context, providerID uuid.UUID, price decimal.Decimal, changedBy uuid.UUID) (*model.PricingHistory, error)
	History(ctx context.Context, providerID uuid.UUID) ([]model.PricingHistory, error)
}

type pricingService struct {
	providerRepo repository.ProviderRepository
	pricingRepo  repository.PricingRepository
	txManager    repository.TransactionManager
	locker       lock.Locker
	publisher    events.Publisher
	clock        clock.Clock
	metrics      *metrics.Metrics
	log          *zap.Logger
}

func NewPricingService(
	providerRepo repository.ProviderRepository,
	pricingRepo repository.PricingRepository,
	txManager repository.TransactionManager,
	locker lock.Locker,
	publisher events.Publisher,
	clk clock.Clock,
	m *metrics.Metrics,
	log *zap.Logger,
) PricingService {
	return &pricingService{
		providerRepo: providerRepo,
		pricingRepo:  pricingRepo,
		txManager:    txManager,
		locker:       locker,
		publisher:    publisher,
		clock:        clk,
		metrics:      m,
		log:          log.Named("pricing.service"),
	}
}

// --- Implementation ---

func (s *pricingService) GetCurrentPrice(ctx context.Context, providerID uuid.UUID) (*model.PricingHistory, error) {
	entry, err := s.pricingRepo.FindOpen(ctx, providerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("no active pricing found for provider %s", providerID)
		}
		return nil, fmt.Errorf("failed to fetch current price: %w", err)
	}
	return entry, nil
}

func (s *pricingService) GetPriceAt(ctx context.Context, providerID uuid.UUID, at time.Time) (*model.PricingHistory, error) {
	entry, err := s.pricingRepo.FindAt(ctx, providerID, at.UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("no pricing for provider %s at %s", providerID, at.UTC().Format(time.RFC3339))
		}
		return nil, fmt.Errorf("failed to fetch price: %w", err)
	}
	return entry, nil
}

func (s *pricingService) OpenInitial(ctx context.Context, providerID uuid.UUID, price decimal.Decimal, changedBy uuid.UUID) (*model.PricingHistory, error) {
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	var entry *model.PricingHistory
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.providerRepo.FindByIDForUpdate(txCtx, providerID); err != nil {
			return apperror.From(err, "provider")
		}

		open, err := s.pricingRepo.CountOpen(txCtx, providerID)
		if err != nil {
			return fmt.Errorf("failed to check open pricing: %w", err)
		}
		if open > 0 {
			return apperror.Conflict("provider %s already has an active price", providerID)
		}

		entry = &model.PricingHistory{
			ProviderID:      providerID,
			ChangedByUserID: &changedBy,
			KwhPrice:        price,
			ValidFrom:       s.clock.Now(),
		}
		if err := s.pricingRepo.Create(txCtx, entry); err != nil {
			return apperror.From(err, "pricing entry")
		}
		return s.providerRepo.UpdateCurrentPrice(txCtx, providerID, price)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("opened initial price",
		zap.String("provider_id", providerID.String()),
		zap.String("kwh_price", price.String()))
	return entry, nil
}

// ChangePrice closes the open entry and opens a new one at the same instant,
// so the provider's intervals stay contiguous.
func (s *pricingService) ChangePrice(ctx context.Context, providerID uuid.UUID, newPrice decimal.Decimal, changedBy uuid.UUID) (*model.PricingHistory, error) {
	if err := validatePrice(newPrice); err != nil {
		return nil, err
	}

	lease, err := s.locker.Obtain(ctx, "pricing:provider:"+providerID.String())
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, apperror.Conflict("a price change for this provider is already in progress")
		}
		return nil, fmt.Errorf("failed to obtain pricing lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release pricing lock", zap.String("provider_id", providerID.String()), zap.Error(err))
		}
	}()

	var previous, entry *model.PricingHistory
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.providerRepo.FindByIDForUpdate(txCtx, providerID); err != nil {
			return apperror.From(err, "provider")
		}

		current, err := s.GetCurrentPrice(txCtx, providerID)
		if err != nil {
			return err
		}
		previous = current

		now := s.clock.Now()
		if now.Before(current.ValidFrom) {
			now = current.ValidFrom
		}

		if err := s.pricingRepo.Close(txCtx, current.ID, now); err != nil {
			if errors.Is(err, repository.ErrEntryAlreadyClosed) {
				return apperror.Conflict("the current price was changed concurrently, retry")
			}
			return fmt.Errorf("failed to close pricing entry: %w", err)
		}

		entry = &model.PricingHistory{
			ProviderID:      providerID,
			ChangedByUserID: &changedBy,
			KwhPrice:        newPrice,
			ValidFrom:       now,
		}
		if err := s.pricingRepo.Create(txCtx, entry); err != nil {
			return apperror.From(err, "pricing entry")
		}
		return s.providerRepo.UpdateCurrentPrice(txCtx, providerID, newPrice)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PriceChanges.Inc()
	s.log.Info("price changed",
		zap.String("provider_id", providerID.String()),
		zap.String("old_price", previous.KwhPrice.String()),
		zap.String("new_price", newPrice.String()),
		zap.String("changed_by", changedBy.String()))
	s.publisher.Publish(events.PricingChanged, providerID, ToPricingEntryResponse(*entry))
	return entry, nil
}

func (s *pricingService) History(ctx context.Context, providerID uuid.UUID) ([]model.PricingHistory, error) {
	entries, err := s.pricingRepo.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pricing history: %w", err)
	}
	return entries, nil
}

// --- Helpers ---

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return apperror.BadRequest("kWh price must be positive")
	}
	if !model.FitsQuantityScale(price) {
		return apperror.BadRequest("kWh price allows at most %d decimal places", model.QuantityScale)
	}
	return nil
}

// --- Mapping ---

func ToPricingEntryResponse(e model.PricingHistory) PricingEntryResponse {
	resp := PricingEntryResponse{
		ID:         e.ID.String(),
		ProviderID: e.ProviderID.String(),
		KwhPrice:   e.KwhPrice.StringFixed(4),
		ValidFrom:  e.ValidFrom.UTC().Format(time.RFC3339),
		Current:    e.IsOpen(),
	}
	if e.ChangedByUserID != nil {
		id := e.ChangedByUserID.String()
		resp.ChangedByUserID = &id
	}
	if e.ValidTo != nil {
		to := e.ValidTo.UTC().Format(time.RFC3339)
		resp.ValidTo = &to
	}
	return resp
}

func toPricingEntryResponses(entries []model.PricingHistory) []PricingEntryResponse {
	res := make([]PricingEntryResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, ToPricingEntryResponse(e))
	}
	return res
}
