// Package gorm provides the GORM-backed rule repository for decody.
package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: rule files and rules
		{
			ID: "001_rule_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&RuleFile{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Rule{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("rules", "rule_files")
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}
