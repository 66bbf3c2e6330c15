package db

import (
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/pkg/logger"
	"gorm.io/gorm"
)

func migrateModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Tag{},
		&model.EntityTag{},
		&model.QRCode{},
		&model.Customer{},
		&model.ProductInteraction{},
		&model.CustomerSegment{},
		&model.Touchpoint{},
		&model.CustomerJourney{},
		&model.ThreadEvent{},
		&model.Vendor{},
		&model.Product{},
	)
}

// Migrate runs auto-migrations for every model
func Migrate() error {
	logger.Info("Running database migrations", nil)

	if err := migrateModels(DB); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", nil)
	return nil
}
