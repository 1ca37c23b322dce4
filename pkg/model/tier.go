package model

import "time"

// ResourceTier is immutable reference data describing a sandbox size class.
// Rows are written only by cmd/migrate, never by the admission path.
type ResourceTier struct {
	ID           string  `gorm:"type:varchar(64);primary_key"`
	Name         string  `gorm:"not null"`
	CPUCores     int     `gorm:"not null"`
	MemoryGB     int     `gorm:"not null"`
	StorageGB    int     `gorm:"not null"`
	PriceMonthly float64 `gorm:"type:decimal(10,2);not null;default:0"`
	IsDefault    bool    `gorm:"default:false"`
	SortOrder    int     `gorm:"default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AddonCategory string

const (
	AddonInterface AddonCategory = "interface"
	AddonCompute   AddonCategory = "compute"
	AddonStorage   AddonCategory = "storage"
	AddonDevOps    AddonCategory = "devops"
)

// Addon is an optional capability attachable to a sandbox.
type Addon struct {
	ID             string        `gorm:"type:varchar(64);primary_key"`
	Name           string        `gorm:"not null"`
	Category       AddonCategory `gorm:"type:varchar(32);not null"`
	RequiresGPU    bool          `gorm:"default:false"`
	RequiresFlavor *string
	Port           *int
	PriceMonthly   float64 `gorm:"type:decimal(10,2);not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
