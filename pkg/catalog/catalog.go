package catalog

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codehaven/codehaven/pkg/model"
)

var (
	ErrTierNotFound  = errors.New("resource tier not found")
	ErrAddonNotFound = errors.New("addon not found")
)

// Catalog is a read-only snapshot of the tier and addon reference tables.
// Reference rows change only through cmd/migrate, so the snapshot is loaded
// once at startup and never refreshed.
type Catalog struct {
	tiers      map[string]model.ResourceTier
	addons     map[string]model.Addon
	tierOrder  []string
	addonOrder []string
}

// New builds a catalog directly from reference rows.
func New(tiers []model.ResourceTier, addons []model.Addon) *Catalog {
	sorted := make([]model.ResourceTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	c := &Catalog{
		tiers:  make(map[string]model.ResourceTier, len(tiers)),
		addons: make(map[string]model.Addon, len(addons)),
	}
	for _, tier := range sorted {
		c.tiers[tier.ID] = tier
		c.tierOrder = append(c.tierOrder, tier.ID)
	}
	for _, addon := range addons {
		c.addons[addon.ID] = addon
		c.addonOrder = append(c.addonOrder, addon.ID)
	}
	return c
}

// Load reads the reference tables and returns a catalog snapshot.
func Load(ctx context.Context, db *gorm.DB) (*Catalog, error) {
	var tiers []model.ResourceTier
	if err := db.WithContext(ctx).Order("sort_order ASC").Find(&tiers).Error; err != nil {
		return nil, err
	}
	var addons []model.Addon
	if err := db.WithContext(ctx).Order("id ASC").Find(&addons).Error; err != nil {
		return nil, err
	}
	return New(tiers, addons), nil
}

// Seed upserts reference rows. Existing rows are updated in place so that
// re-running a migration converges on the configured catalog.
func Seed(ctx context.Context, db *gorm.DB, tiers []model.ResourceTier, addons []model.Addon) error {
	for i := range tiers {
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&tiers[i]).Error; err != nil {
			return err
		}
	}
	for i := range addons {
		if err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&addons[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) Tier(id string) (*model.ResourceTier, error) {
	tier, ok := c.tiers[id]
	if !ok {
		return nil, ErrTierNotFound
	}
	return &tier, nil
}

// Tiers returns all tiers ordered by sort order.
func (c *Catalog) Tiers() []model.ResourceTier {
	tiers := make([]model.ResourceTier, 0, len(c.tierOrder))
	for _, id := range c.tierOrder {
		tiers = append(tiers, c.tiers[id])
	}
	return tiers
}

func (c *Catalog) DefaultTier() (*model.ResourceTier, error) {
	for _, id := range c.tierOrder {
		tier := c.tiers[id]
		if tier.IsDefault {
			return &tier, nil
		}
	}
	return nil, ErrTierNotFound
}

func (c *Catalog) Addon(id string) (*model.Addon, error) {
	addon, ok := c.addons[id]
	if !ok {
		return nil, ErrAddonNotFound
	}
	return &addon, nil
}

func (c *Catalog) Addons() []model.Addon {
	addons := make([]model.Addon, 0, len(c.addonOrder))
	for _, id := range c.addonOrder {
		addons = append(addons, c.addons[id])
	}
	return addons
}
