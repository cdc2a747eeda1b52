package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is any account of the platform. ProviderID is nil only for
// platform-level admins.
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProviderID  *uuid.UUID     `gorm:"type:uuid;index" json:"provider_id"`
	Provider    *Provider      `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	Name        string         `gorm:"type:varchar(255);not null" json:"name"`
	Email       string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password    string         `gorm:"type:varchar(255);not null" json:"-"`
	PhoneNumber string         `gorm:"type:varchar(30)" json:"phone_number"`
	Address     string         `gorm:"type:text" json:"address"`
	IsActive    bool           `gorm:"not null" json:"is_active"`
	Roles       []UserRole     `gorm:"foreignKey:UserID" json:"roles,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// SameProvider reports whether both users belong to the same, non-nil provider.
func (u *User) SameProvider(providerID *uuid.UUID) bool {
	return u.ProviderID != nil && providerID != nil && *u.ProviderID == *providerID
}
