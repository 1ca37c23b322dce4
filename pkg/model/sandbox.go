package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type SandboxStatus string

const (
	SandboxCreated  SandboxStatus = "created"
	SandboxStarting SandboxStatus = "starting"
	SandboxRunning  SandboxStatus = "running"
	SandboxStopping SandboxStatus = "stopping"
	SandboxStopped  SandboxStatus = "stopped"
	SandboxError    SandboxStatus = "error"
)

// Sandbox is a user's isolated development environment instance. Slug
// uniqueness is scoped to the owning user, not global.
type Sandbox struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_slug"`
	Slug         string         `gorm:"not null;uniqueIndex:idx_user_slug"`
	Name         string         `gorm:"not null"`
	TierID       string         `gorm:"type:varchar(64);not null"`
	Tier         *ResourceTier  `gorm:"foreignKey:TierID"`
	AddonIDs     pq.StringArray `gorm:"type:text[]"`
	Status       SandboxStatus  `gorm:"type:varchar(32);default:'created';index"`
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ResourceUsage is the derived aggregate footprint of a user's running
// sandboxes; it is computed from tier rows, never stored.
type ResourceUsage struct {
	CPUCores int `json:"cpu_cores"`
	MemoryGB int `json:"memory_gb"`
}
