package repository

import (
	"context"
	"errors"
	"time"

	"electricity-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrEntryAlreadyClosed is returned by Close when the entry was closed by
// someone else first.
var ErrEntryAlreadyClosed = errors.New("pricing entry already closed")

type PricingRepository interface {
	Create(ctx context.Context, entry *model.PricingHistory) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PricingHistory, error)
	FindOpen(ctx context.Context, providerID uuid.UUID) (*model.PricingHistory, error)
	FindAt(ctx context.Context, providerID uuid.UUID, at time.Time) (*model.PricingHistory, error)
	Close(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.PricingHistory, error)
	CountOpen(ctx context.Context, providerID uuid.UUID) (int64, error)
}

type pricingRepository struct {
	db *gorm.DB
}

func NewPricingRepository(db *gorm.DB) PricingRepository {
	return &pricingRepository{db: db}
}

func (r *pricingRepository) Create(ctx context.Context, entry *model.PricingHistory) error {
	return GetDB(ctx, r.db).Omit("Provider").Create(entry).Error
}

func (r *pricingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PricingHistory, error) {
	var entry model.PricingHistory
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *pricingRepository) FindOpen(ctx context.Context, providerID uuid.UUID) (*model.PricingHistory, error) {
	var entry model.PricingHistory
	err := GetDB(ctx, r.db).
		Where("provider_id = ? AND valid_to IS NULL", providerID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindAt returns the entry whose [valid_from, valid_to) interval contains at.
func (r *pricingRepository) FindAt(ctx context.Context, providerID uuid.UUID, at time.Time) (*model.PricingHistory, error) {
	var entry model.PricingHistory
	err := GetDB(ctx, r.db).
		Where("provider_id = ? AND valid_from <= ? AND (valid_to IS NULL OR valid_to > ?)", providerID, at, at).
		Order("valid_from desc").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Close stamps valid_to on an open entry. It is the only mutation a ledger
// entry ever receives.
func (r *pricingRepository) Close(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := GetDB(ctx, r.db).
		Model(&model.PricingHistory{}).
		Where("id = ? AND valid_to IS NULL", id).
		Update("valid_to", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrEntryAlreadyClosed
	}
	return nil
}

func (r *pricingRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.PricingHistory, error) {
	var entries []model.PricingHistory
	err := GetDB(ctx, r.db).
		Where("provider_id = ?", providerID).
		Order("valid_from desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *pricingRepository) CountOpen(ctx context.Context, providerID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.PricingHistory{}).
		Where("provider_id = ? AND valid_to IS NULL", providerID).
		Count(&count).Error
	return count, err
}
