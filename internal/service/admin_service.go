package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"electricity-billing/internal/apperror"
	"electricity-billing/internal/model"
	"electricity-billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateProviderRequest struct {
	Name         string `json:"name" binding:"required"`
	City         string `json:"city"`
	Email        string `json:"email" binding:"omitempty,email"`
	PhoneNumber  string `json:"phone_number"`
	InitialPrice string `json:"initial_kwh_price" binding:"required,decimal"`
}

type UpdatePriceRequest struct {
	KwhPrice string `json:"kwh_price" binding:"required,decimal"`
}

type ProviderResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	City            string `json:"city"`
	Email           string `json:"email"`
	PhoneNumber     string `json:"phone_number"`
	CurrentKwhPrice string `json:"current_kwh_price"`
	IsActive        bool   `json:"is_active"`
	CreatedAt       string `json:"created_at"`
}

// --- Interface ---

// AdminService manages providers and their pricing.
type AdminService interface {
	CreateProvider(ctx context.Context, admin model.Principal, req CreateProviderRequest) (ProviderResponse, error)
	GetProvider(ctx context.Context, id string) (ProviderResponse, error)
	ListProviders(ctx context.Context, page, limit int) ([]ProviderResponse, int64, error)
	UpdateProviderPrice(ctx context.Context, admin model.Principal, id string, req UpdatePriceRequest) (PricingEntryResponse, error)
	ProviderPricingHistory(ctx context.Context, id string) ([]PricingEntryResponse, error)
}

type adminService struct {
	providerRepo repository.ProviderRepository
	pricing      PricingService
	txManager    repository.TransactionManager
	log          *zap.Logger
}

func NewAdminService(
	providerRepo repository.ProviderRepository,
	pricing PricingService,
	txManager repository.TransactionManager,
	log *zap.Logger,
) AdminService {
	return &adminService{
		providerRepo: providerRepo,
		pricing:      pricing,
		txManager:    txManager,
		log:          log.Named("admin.service"),
	}
}

// --- Implementation ---

func (s *adminService) CreateProvider(ctx context.Context, admin model.Principal, req CreateProviderRequest) (ProviderResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ProviderResponse{}, apperror.BadRequest("provider name is required")
	}
	price, err := decimal.NewFromString(req.InitialPrice)
	if err != nil {
		return ProviderResponse{}, apperror.BadRequest("invalid initial_kwh_price value")
	}

	provider := &model.Provider{
		Name:        name,
		City:        req.City,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		IsActive:    true,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.providerRepo.FindByName(txCtx, name); err == nil {
			return apperror.Conflict("provider %q already exists", name)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check provider name: %w", err)
		}

		if err := s.providerRepo.Create(txCtx, provider); err != nil {
			return apperror.From(err, "provider")
		}
		if _, err := s.pricing.OpenInitial(txCtx, provider.ID, price, admin.UserID); err != nil {
			return err
		}
		provider.CurrentKwhPrice = price
		return nil
	})
	if err != nil {
		return ProviderResponse{}, err
	}

	s.log.Info("provider created",
		zap.String("provider_id", provider.ID.String()),
		zap.String("name", provider.Name),
		zap.String("created_by", admin.UserID.String()))
	return toProviderResponse(provider), nil
}

func (s *adminService) GetProvider(ctx context.Context, id string) (ProviderResponse, error) {
	providerID, err := parseID(id, "provider")
	if err != nil {
		return ProviderResponse{}, err
	}
	provider, err := s.providerRepo.FindByID(ctx, providerID)
	if err != nil {
		return ProviderResponse{}, apperror.From(err, "provider")
	}
	return toProviderResponse(provider), nil
}

func (s *adminService) ListProviders(ctx context.Context, page, limit int) ([]ProviderResponse, int64, error) {
	providers, total, err := s.providerRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch providers: %w", err)
	}
	res := make([]ProviderResponse, 0, len(providers))
	for i := range providers {
		res = append(res, toProviderResponse(&providers[i]))
	}
	return res, total, nil
}

func (s *adminService) UpdateProviderPrice(ctx context.Context, admin model.Principal, id string, req UpdatePriceRequest) (PricingEntryResponse, error) {
	providerID, err := parseID(id, "provider")
	if err != nil {
		return PricingEntryResponse{}, err
	}
	price, err := decimal.NewFromString(req.KwhPrice)
	if err != nil {
		return PricingEntryResponse{}, apperror.BadRequest("invalid kwh_price value")
	}
	entry, err := s.pricing.ChangePrice(ctx, providerID, price, admin.UserID)
	if err != nil {
		return PricingEntryResponse{}, err
	}
	return ToPricingEntryResponse(*entry), nil
}

func (s *adminService) ProviderPricingHistory(ctx context.Context, id string) ([]PricingEntryResponse, error) {
	providerID, err := parseID(id, "provider")
	if err != nil {
		return nil, err
	}
	if _, err := s.providerRepo.FindByID(ctx, providerID); err != nil {
		return nil, apperror.From(err, "provider")
	}
	entries, err := s.pricing.History(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return toPricingEntryResponses(entries), nil
}

// --- Helpers ---

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.BadRequest("invalid %s id", what)
	}
	return id, nil
}

// --- Mapping ---

func toProviderResponse(p *model.Provider) ProviderResponse {
	return ProviderResponse{
		ID:              p.ID.String(),
		Name:            p.Name,
		City:            p.City,
		Email:           p.Email,
		PhoneNumber:     p.PhoneNumber,
		CurrentKwhPrice: p.CurrentKwhPrice.StringFixed(4),
		IsActive:        p.IsActive,
		CreatedAt:       p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
