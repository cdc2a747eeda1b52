package repository

import (
	"context"
	"fmt"
	"time"

	"electricity-billing/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusTotalsRow aggregates a provider's invoices sharing one payment status.
// Sums come back as text so no precision is lost on the way out of SQL.
type StatusTotalsRow struct {
	PaymentStatus model.PaymentStatus `gorm:"column:payment_status"`
	InvoiceCount  int64               `gorm:"column:invoice_count"`
	TotalKwh      string              `gorm:"column:total_kwh"`
	TotalAmount   string              `gorm:"column:total_amount"`
}

type StatisticsRepository interface {
	InvoiceTotalsByStatus(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]StatusTotalsRow, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

// InvoiceTotalsByStatus groups invoices issued within [from, to].
func (r *statisticsRepository) InvoiceTotalsByStatus(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]StatusTotalsRow, error) {
	var rows []StatusTotalsRow
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("payment_status, COUNT(*) AS invoice_count, "+
			"COALESCE(CAST(SUM(kwh_consumed) AS TEXT), '0') AS total_kwh, "+
			"COALESCE(CAST(SUM(total_amount) AS TEXT), '0') AS total_amount").
		Where("provider_id = ? AND issue_date >= ? AND issue_date <= ?", providerID, from, to).
		Group("payment_status").
		Order("payment_status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query invoice totals: %w", err)
	}
	return rows, nil
}
