package repository

import (
	"context"

	"electricity-billing/internal/model"
	"electricity-billing/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByNumber(ctx context.Context, number string) (*model.Invoice, error)
	Update(ctx context.Context, invoice *model.Invoice) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]model.Invoice, int64, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]model.Invoice, int64, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]model.Invoice, int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Preload("Pricing").First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIDForUpdate locks the invoice row. The pricing snapshot is not
// preloaded; load it separately.
func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := forUpdate(GetDB(ctx, r.db)).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Preload("Pricing").Where("invoice_number = ?", number).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Update writes the mutable columns only. Identity, ownership and the
// pricing snapshot are never touched.
func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).
		Model(invoice).
		Select("kwh_consumed", "total_amount", "due_date", "payment_status", "payment_date", "updated_at").
		Updates(invoice).Error
}

func (r *invoiceRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]model.Invoice, int64, error) {
	return r.list(ctx, "customer_id = ?", customerID, page, limit)
}

func (r *invoiceRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, page, limit int) ([]model.Invoice, int64, error) {
	return r.list(ctx, "created_by_user_id = ?", creatorID, page, limit)
}

func (r *invoiceRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]model.Invoice, int64, error) {
	return r.list(ctx, "provider_id = ?", providerID, page, limit)
}

func (r *invoiceRepository) list(ctx context.Context, cond string, arg uuid.UUID, page, limit int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Invoice{}).Where(cond, arg).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	p := pagination.New(page, limit)
	err := db.Preload("Pricing").
		Where(cond, arg).
		Order("created_at desc").
		Offset(p.Offset).Limit(p.Limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}
