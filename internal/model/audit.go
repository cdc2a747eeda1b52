package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

const dateLayout = "2006-01-02"

var ErrAuditLogImmutable = errors.New("audit log entries are append-only")

// AuditLog is an append-only record of one invoice mutation.
type AuditLog struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Invoice           *Invoice       `gorm:"foreignKey:InvoiceID" json:"-"`
	PerformedByUserID uuid.UUID      `gorm:"type:uuid;not null;index" json:"performed_by_user_id"`
	PerformedBy       *User          `gorm:"foreignKey:PerformedByUserID" json:"performed_by,omitempty"`
	Action            AuditAction    `gorm:"type:varchar(10);not null;index" json:"action"`
	OldValue          datatypes.JSON `json:"old_value"`
	NewValue          datatypes.JSON `json:"new_value"`
	PerformedAt       time.Time      `gorm:"not null;index" json:"performed_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditLogImmutable
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditLogImmutable
}

// DecodeOld returns the pre-image snapshot, or nil when there is none.
func (a *AuditLog) DecodeOld() (*InvoiceSnapshot, error) {
	return decodeSnapshot(a.OldValue)
}

// DecodeNew returns the post-image snapshot, or nil when there is none.
func (a *AuditLog) DecodeNew() (*InvoiceSnapshot, error) {
	return decodeSnapshot(a.NewValue)
}

func decodeSnapshot(raw datatypes.JSON) (*InvoiceSnapshot, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var snap InvoiceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// InvoiceSnapshot holds the business fields of an invoice as recorded in the
// audit trail.
type InvoiceSnapshot struct {
	InvoiceID     string          `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    string          `json:"customer_id"`
	KwhConsumed   decimal.Decimal `json:"kwh_consumed"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	IssueDate     string          `json:"issue_date"`
	DueDate       string          `json:"due_date"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentDate   *string         `json:"payment_date"`
}

func NewInvoiceSnapshot(inv *Invoice) *InvoiceSnapshot {
	if inv == nil {
		return nil
	}
	snap := &InvoiceSnapshot{
		InvoiceID:     inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID.String(),
		KwhConsumed:   inv.KwhConsumed,
		TotalAmount:   inv.TotalAmount,
		IssueDate:     inv.IssueDate.Format(dateLayout),
		DueDate:       inv.DueDate.Format(dateLayout),
		PaymentStatus: inv.PaymentStatus,
	}
	if inv.PaymentDate != nil {
		d := inv.PaymentDate.Format(dateLayout)
		snap.PaymentDate = &d
	}
	return snap
}
