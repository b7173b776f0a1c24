package db

import (
	"fmt"

	"gorm.io/gorm"
)

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	if err := gdb.AutoMigrate(
		&Thread{},
		&Block{},
		&Ping{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
