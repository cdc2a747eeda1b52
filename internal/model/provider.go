package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Provider is an electricity provider (tenant). CurrentKwhPrice mirrors the
// open pricing history entry and is only written by the pricing ledger.
type Provider struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	City            string          `gorm:"type:varchar(255)" json:"city"`
	Email           string          `gorm:"type:varchar(255)" json:"email"`
	PhoneNumber     string          `gorm:"type:varchar(30)" json:"phone_number"`
	CurrentKwhPrice decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"current_kwh_price"`
	IsActive        bool            `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p *Provider) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
