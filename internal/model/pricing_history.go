package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuantityScale is the number of fractional digits stored for kWh readings
// and kWh prices.
const QuantityScale = 4

// FitsQuantityScale reports whether d is stored without rounding in a
// decimal(18,4) column.
func FitsQuantityScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(QuantityScale))
}

// PricingHistory is one ledger entry of a provider's kWh price, valid on
// [ValidFrom, ValidTo). A nil ValidTo marks the open (current) entry.
type PricingHistory struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProviderID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"provider_id"`
	Provider        *Provider       `gorm:"foreignKey:ProviderID" json:"-"`
	ChangedByUserID *uuid.UUID      `gorm:"type:uuid" json:"changed_by_user_id"`
	KwhPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"kwh_price"`
	ValidFrom       time.Time       `gorm:"not null;index" json:"valid_from"`
	ValidTo         *time.Time      `gorm:"index" json:"valid_to"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (PricingHistory) TableName() string {
	return "pricing_histories"
}

func (p *PricingHistory) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p PricingHistory) IsOpen() bool {
	return p.ValidTo == nil
}

// Contains reports whether t falls inside the entry's validity interval.
func (p PricingHistory) Contains(t time.Time) bool {
	if t.Before(p.ValidFrom) {
		return false
	}
	return p.ValidTo == nil || t.Before(*p.ValidTo)
}
