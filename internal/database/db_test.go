package database_test

import (
	"testing"
	"time"

	"electricity-billing/internal/database/dbtest"
	"electricity-billing/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPricingIndexAllowsOneOpenEntryPerProvider(t *testing.T) {
	db := dbtest.New(t)

	provider := model.Provider{Name: "Volta", CurrentKwhPrice: decimal.NewFromInt(10), IsActive: true}
	require.NoError(t, db.Create(&provider).Error)

	now := time.Now().UTC()
	first := model.PricingHistory{ProviderID: provider.ID, KwhPrice: decimal.NewFromInt(10), ValidFrom: now}
	require.NoError(t, db.Create(&first).Error)

	second := model.PricingHistory{ProviderID: provider.ID, KwhPrice: decimal.NewFromInt(12), ValidFrom: now}
	assert.Error(t, db.Create(&second).Error)

	closed := now.Add(-time.Hour)
	old := model.PricingHistory{ProviderID: provider.ID, KwhPrice: decimal.NewFromInt(8), ValidFrom: now.Add(-2 * time.Hour), ValidTo: &closed}
	assert.NoError(t, db.Create(&old).Error)

	other := model.Provider{Name: "Ampere", CurrentKwhPrice: decimal.NewFromInt(9), IsActive: true}
	require.NoError(t, db.Create(&other).Error)
	assert.NoError(t, db.Create(&model.PricingHistory{ProviderID: other.ID, KwhPrice: decimal.NewFromInt(9), ValidFrom: now}).Error)
}

func TestAuditLogRowsRejectUpdateAndDelete(t *testing.T) {
	db := dbtest.New(t)

	entry := model.AuditLog{
		InvoiceID:         uuid.New(),
		PerformedByUserID: uuid.New(),
		Action:            model.AuditActionCreate,
		PerformedAt:       time.Now().UTC(),
	}
	require.NoError(t, db.Create(&entry).Error)

	entry.Action = model.AuditActionDelete
	assert.ErrorIs(t, db.Save(&entry).Error, model.ErrAuditLogImmutable)
	assert.ErrorIs(t, db.Delete(&entry).Error, model.ErrAuditLogImmutable)
}
