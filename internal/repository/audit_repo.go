package repository

import (
	"context"

	"electricity-billing/internal/model"
	"electricity-billing/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRepository is append-only: there is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *model.AuditLog) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.AuditLog, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]model.AuditLog, int64, error)
	ListByInvoiceNumber(ctx context.Context, number string, providerID uuid.UUID) ([]model.AuditLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Omit("Invoice", "PerformedBy").Create(entry).Error
}

func (r *auditRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := GetDB(ctx, r.db).
		Preload("PerformedBy").
		Where("invoice_id = ?", invoiceID).
		Order("performed_at asc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *auditRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	db := GetDB(ctx, r.db)
	byProvider := func(q *gorm.DB) *gorm.DB {
		return q.Joins("JOIN invoices ON invoices.id = audit_logs.invoice_id").
			Where("invoices.provider_id = ?", providerID)
	}

	if err := byProvider(db.Model(&model.AuditLog{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := pagination.New(page, limit)
	err := byProvider(db.Preload("PerformedBy")).
		Order("audit_logs.performed_at desc").
		Offset(p.Offset).Limit(p.Limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *auditRepository) ListByInvoiceNumber(ctx context.Context, number string, providerID uuid.UUID) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := GetDB(ctx, r.db).
		Preload("PerformedBy").
		Joins("JOIN invoices ON invoices.id = audit_logs.invoice_id").
		Where("invoices.invoice_number = ? AND invoices.provider_id = ?", number, providerID).
		Order("audit_logs.performed_at asc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
