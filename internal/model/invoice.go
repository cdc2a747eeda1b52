package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentPaid      PaymentStatus = "Paid"
	PaymentOverdue   PaymentStatus = "Overdue"
	PaymentCancelled PaymentStatus = "Cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue, PaymentCancelled:
		return true
	}
	return false
}

// Invoice bills a customer for consumed energy. PricingID points at the ledger
// entry that was open when the invoice was created and never changes.
type Invoice struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber   string          `gorm:"type:varchar(80);uniqueIndex;not null" json:"invoice_number"`
	CustomerID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer        *User           `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	ProviderID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"provider_id"`
	Provider        *Provider       `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	CreatedByUserID uuid.UUID       `gorm:"type:uuid;not null;index" json:"created_by_user_id"`
	CreatedBy       *User           `gorm:"foreignKey:CreatedByUserID" json:"created_by,omitempty"`
	PricingID       uuid.UUID       `gorm:"type:uuid;not null" json:"pricing_id"`
	Pricing         *PricingHistory `gorm:"foreignKey:PricingID" json:"pricing,omitempty"`
	KwhConsumed     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"kwh_consumed"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(28,8);not null" json:"total_amount"`
	IssueDate       time.Time       `gorm:"type:date;not null" json:"issue_date"`
	DueDate         time.Time       `gorm:"type:date;not null" json:"due_date"`
	PaymentStatus   PaymentStatus   `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	PaymentDate     *time.Time      `gorm:"type:date" json:"payment_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
