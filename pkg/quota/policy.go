package quota

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codehaven/codehaven/pkg/config"
	"github.com/codehaven/codehaven/pkg/model"
)

// PolicyStore owns per-user quota policy rows. Get never reports absence:
// a missing row is created from the configured defaults, idempotently under
// concurrent first access (insert-on-conflict-do-nothing, then re-read —
// never check-absence-then-insert).
type PolicyStore struct {
	db       *gorm.DB
	defaults config.QuotaDefaults
}

func NewPolicyStore(db *gorm.DB, defaults config.QuotaDefaults) *PolicyStore {
	return &PolicyStore{db: db, defaults: defaults}
}

func (s *PolicyStore) Get(ctx context.Context, userID uuid.UUID) (*model.QuotaPolicy, error) {
	seed := s.defaultPolicy(userID)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(seed).Error; err != nil {
		return nil, err
	}

	var policy model.QuotaPolicy
	if err := s.db.WithContext(ctx).First(&policy, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &policy, nil
}

// PolicyUpdate is a partial change set; nil fields are left untouched.
type PolicyUpdate struct {
	MaxSandboxes         *int
	MaxConcurrentRunning *int
	AllowedTierIDs       []string
	MaxTierID            *string
	MaxTotalStorageGB    *int
	MaxTotalCPUCores     *int
	MaxTotalMemoryGB     *int
	AllowedAddonIDs      []string
	ClearAllowedAddonIDs bool
	Notes                *string
}

func (s *PolicyStore) Update(ctx context.Context, userID uuid.UUID, changes PolicyUpdate) (*model.QuotaPolicy, error) {
	policy, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	applyUpdate(policy, changes)

	if err := s.db.WithContext(ctx).Save(policy).Error; err != nil {
		return nil, err
	}
	return policy, nil
}

func (s *PolicyStore) Delete(ctx context.Context, userID uuid.UUID) (bool, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.QuotaPolicy{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *PolicyStore) defaultPolicy(userID uuid.UUID) *model.QuotaPolicy {
	var allowedAddons pq.StringArray
	if s.defaults.AllowedAddonIDs != nil {
		allowedAddons = pq.StringArray(s.defaults.AllowedAddonIDs)
	}
	return &model.QuotaPolicy{
		ID:                   uuid.New(),
		UserID:               userID,
		MaxSandboxes:         s.defaults.MaxSandboxes,
		MaxConcurrentRunning: s.defaults.MaxConcurrentRunning,
		AllowedTierIDs:       pq.StringArray(s.defaults.AllowedTierIDs),
		MaxTierID:            s.defaults.MaxTierID,
		MaxTotalStorageGB:    s.defaults.MaxTotalStorageGB,
		MaxTotalCPUCores:     s.defaults.MaxTotalCPUCores,
		MaxTotalMemoryGB:     s.defaults.MaxTotalMemoryGB,
		AllowedAddonIDs:      allowedAddons,
	}
}

func applyUpdate(policy *model.QuotaPolicy, changes PolicyUpdate) {
	if changes.MaxSandboxes != nil {
		policy.MaxSandboxes = *changes.MaxSandboxes
	}
	if changes.MaxConcurrentRunning != nil {
		policy.MaxConcurrentRunning = *changes.MaxConcurrentRunning
	}
	if changes.AllowedTierIDs != nil {
		policy.AllowedTierIDs = pq.StringArray(changes.AllowedTierIDs)
	}
	if changes.MaxTierID != nil {
		policy.MaxTierID = *changes.MaxTierID
	}
	if changes.MaxTotalStorageGB != nil {
		policy.MaxTotalStorageGB = *changes.MaxTotalStorageGB
	}
	if changes.MaxTotalCPUCores != nil {
		policy.MaxTotalCPUCores = *changes.MaxTotalCPUCores
	}
	if changes.MaxTotalMemoryGB != nil {
		policy.MaxTotalMemoryGB = *changes.MaxTotalMemoryGB
	}
	if changes.ClearAllowedAddonIDs {
		policy.AllowedAddonIDs = nil
	} else if changes.AllowedAddonIDs != nil {
		policy.AllowedAddonIDs = pq.StringArray(changes.AllowedAddonIDs)
	}
	if changes.Notes != nil {
		policy.Notes = changes.Notes
	}
}
