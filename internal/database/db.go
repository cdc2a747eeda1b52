package database

import (
	"fmt"

	"electricity-billing/internal/config"
	"electricity-billing/internal/model"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the configured database and migrates the schema.
func NewConnection(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.PostgresDSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Path + "?_pragma=foreign_keys(1)")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("driver", cfg.Driver))
	return db, nil
}

// Migrate creates the schema plus the constraints AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Provider{},
		&model.User{},
		&model.UserRole{},
		&model.PricingHistory{},
		&model.Invoice{},
		&model.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	// at most one open pricing entry per provider
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_pricing_histories_open
		ON pricing_histories (provider_id) WHERE valid_to IS NULL`).Error; err != nil {
		return fmt.Errorf("failed to create open pricing index: %w", err)
	}
	return nil
}
