package database

import (
	"context"
	"fmt"

	"slipsync/models"

	"gorm.io/gorm"
)

// Provision creates the slip tables and their unique indexes. It is safe to
// run repeatedly and is not required for serving tables that already exist.
func Provision(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (g *Gateway) Provision(ctx context.Context) error {
	db, err := g.DB()
	if err != nil {
		return err
	}
	g.logger.Info("provisioning storage schema")
	if err := Provision(ctx, db); err != nil {
		return g.Observe(err)
	}
	g.logger.Info("storage schema provisioned")
	return nil
}
