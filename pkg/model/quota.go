package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// QuotaPolicy is the per-user admission ceiling. At most one row exists per
// user; the row is materialized lazily with system defaults on first access.
type QuotaPolicy struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID               uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex"`
	MaxSandboxes         int            `gorm:"not null;default:3"`
	MaxConcurrentRunning int            `gorm:"not null;default:1"`
	AllowedTierIDs       pq.StringArray `gorm:"type:text[]"`
	// MaxTierID is an informational ceiling reference. Admission checks
	// AllowedTierIDs membership only; no tier ordering is enforced.
	MaxTierID         string         `gorm:"type:varchar(64)"`
	MaxTotalStorageGB int            `gorm:"not null;default:20"`
	MaxTotalCPUCores  int            `gorm:"not null;default:2"`
	MaxTotalMemoryGB  int            `gorm:"not null;default:4"`
	AllowedAddonIDs   pq.StringArray `gorm:"type:text[]"` // nil = unrestricted
	Notes             *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TierAllowed reports membership of tierID in the policy allow-list.
func (p *QuotaPolicy) TierAllowed(tierID string) bool {
	for _, id := range p.AllowedTierIDs {
		if id == tierID {
			return true
		}
	}
	return false
}

// DisallowedAddons returns every requested addon missing from the allow-list,
// preserving request order. A nil allow-list permits everything.
func (p *QuotaPolicy) DisallowedAddons(addonIDs []string) []string {
	if p.AllowedAddonIDs == nil {
		return nil
	}
	allowed := make(map[string]struct{}, len(p.AllowedAddonIDs))
	for _, id := range p.AllowedAddonIDs {
		allowed[id] = struct{}{}
	}
	var disallowed []string
	for _, id := range addonIDs {
		if _, ok := allowed[id]; !ok {
			disallowed = append(disallowed, id)
		}
	}
	return disallowed
}
