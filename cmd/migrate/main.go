package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/codehaven/codehaven/pkg/catalog"
	"github.com/codehaven/codehaven/pkg/config"
	"github.com/codehaven/codehaven/pkg/model"
	"github.com/codehaven/codehaven/pkg/store/postgres"
)

// Runs schema migration and seeds the tier/addon catalogs from
// configuration. Reference data only changes through this binary; the
// admission path treats it as immutable.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
	logger.Info("Schema migrated")

	tiers := make([]model.ResourceTier, 0, len(cfg.Catalog.Tiers))
	for _, seed := range cfg.Catalog.Tiers {
		tiers = append(tiers, model.ResourceTier{
			ID:           seed.ID,
			Name:         seed.Name,
			CPUCores:     seed.CPUCores,
			MemoryGB:     seed.MemoryGB,
			StorageGB:    seed.StorageGB,
			PriceMonthly: seed.PriceMonthly,
			IsDefault:    seed.IsDefault,
			SortOrder:    seed.SortOrder,
		})
	}

	addons := make([]model.Addon, 0, len(cfg.Catalog.Addons))
	for _, seed := range cfg.Catalog.Addons {
		addon := model.Addon{
			ID:           seed.ID,
			Name:         seed.Name,
			Category:     model.AddonCategory(seed.Category),
			RequiresGPU:  seed.RequiresGPU,
			PriceMonthly: seed.PriceMonthly,
		}
		if seed.RequiresFlavor != "" {
			flavor := seed.RequiresFlavor
			addon.RequiresFlavor = &flavor
		}
		if seed.Port != 0 {
			port := seed.Port
			addon.Port = &port
		}
		addons = append(addons, addon)
	}

	if err := catalog.Seed(context.Background(), db.DB(), tiers, addons); err != nil {
		logger.Fatal("Catalog seed failed", zap.Error(err))
	}
	logger.Info("Catalog seeded",
		zap.Int("tiers", len(tiers)),
		zap.Int("addons", len(addons)),
	)
}
