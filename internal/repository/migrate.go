package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docchat/internal/model"
)

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Document{}, &model.ChatTurn{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}
