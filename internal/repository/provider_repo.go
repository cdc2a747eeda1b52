package repository

import (
	"context"

	"electricity-billing/internal/model"
	"electricity-billing/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProviderRepository interface {
	Create(ctx context.Context, provider *model.Provider) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	FindByName(ctx context.Context, name string) (*model.Provider, error)
	List(ctx context.Context, page, limit int) ([]model.Provider, int64, error)
	UpdateCurrentPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error
}

type providerRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) Create(ctx context.Context, provider *model.Provider) error {
	return GetDB(ctx, r.db).Create(provider).Error
}

func (r *providerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var provider model.Provider
	if err := GetDB(ctx, r.db).First(&provider, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *providerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var provider model.Provider
	if err := forUpdate(GetDB(ctx, r.db)).First(&provider, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *providerRepository) FindByName(ctx context.Context, name string) (*model.Provider, error) {
	var provider model.Provider
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&provider).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *providerRepository) List(ctx context.Context, page, limit int) ([]model.Provider, int64, error) {
	var providers []model.Provider
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Provider{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := pagination.New(page, limit)
	if err := db.Order("name asc").Offset(p.Offset).Limit(p.Limit).Find(&providers).Error; err != nil {
		return nil, 0, err
	}
	return providers, total, nil
}

func (r *providerRepository) UpdateCurrentPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) error {
	res := GetDB(ctx, r.db).Model(&model.Provider{}).Where("id = ?", id).Update("current_kwh_price", price)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
