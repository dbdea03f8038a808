package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/AICC2024/video-review/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Comment{},
		&types.UnitText{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
