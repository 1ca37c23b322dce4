package sandbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codehaven/codehaven/pkg/metrics"
	"github.com/codehaven/codehaven/pkg/model"
)

var ErrNotFound = errors.New("sandbox not found")

// Registry owns sandbox records and enforces the lifecycle state machine.
// Transitions are requested by the external orchestrator and only validated
// and recorded here; the registry never starts containers itself.
type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// WithTx returns a registry view bound to tx, so mutations participate in a
// caller-managed transaction (e.g. the store's per-user lock).
func (r *Registry) WithTx(tx *gorm.DB) *Registry {
	return &Registry{db: tx}
}

type CreateInput struct {
	UserID   uuid.UUID
	Slug     string
	Name     string
	TierID   string
	AddonIDs []string
}

func (r *Registry) Create(ctx context.Context, input CreateInput) (*model.Sandbox, error) {
	sandbox := &model.Sandbox{
		ID:       uuid.New(),
		UserID:   input.UserID,
		Slug:     input.Slug,
		Name:     input.Name,
		TierID:   input.TierID,
		AddonIDs: pq.StringArray(input.AddonIDs),
		Status:   model.SandboxCreated,
	}
	if err := r.db.WithContext(ctx).Create(sandbox).Error; err != nil {
		return nil, err
	}
	return sandbox, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*model.Sandbox, error) {
	var sandbox model.Sandbox
	err := r.db.WithContext(ctx).First(&sandbox, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sandbox, nil
}

// ListByUser returns the user's sandboxes newest first, optionally filtered
// by status.
func (r *Registry) ListByUser(ctx context.Context, userID uuid.UUID, status *model.SandboxStatus) ([]model.Sandbox, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var sandboxes []model.Sandbox
	err := query.Order("created_at DESC").Find(&sandboxes).Error
	return sandboxes, err
}

func (r *Registry) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Sandbox{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *Registry) CountRunningByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Sandbox{}).
		Where("user_id = ? AND status = ?", userID, model.SandboxRunning).
		Count(&count).Error
	return count, err
}

// SumRunningResources joins the user's running sandboxes to their tiers and
// sums the footprint. The aggregate is always derived, never stored.
func (r *Registry) SumRunningResources(ctx context.Context, userID uuid.UUID) (model.ResourceUsage, error) {
	var usage model.ResourceUsage
	err := r.db.WithContext(ctx).Model(&model.Sandbox{}).
		Select("COALESCE(SUM(resource_tiers.cpu_cores), 0) AS cpu_cores, COALESCE(SUM(resource_tiers.memory_gb), 0) AS memory_gb").
		Joins("JOIN resource_tiers ON resource_tiers.id = sandboxes.tier_id").
		Where("sandboxes.user_id = ? AND sandboxes.status = ?", userID, model.SandboxRunning).
		Scan(&usage).Error
	return usage, err
}

// Transition validates and records a lifecycle move under a row lock.
// Entering error stores the message; leaving error via the retry edge
// clears it.
func (r *Registry) Transition(ctx context.Context, id uuid.UUID, status model.SandboxStatus, errorMessage string) (*model.Sandbox, error) {
	var sandbox model.Sandbox
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sandbox, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !CanTransition(sandbox.Status, status) {
			return &InvalidTransitionError{From: sandbox.Status, To: status}
		}

		from := sandbox.Status
		sandbox.Status = status
		switch status {
		case model.SandboxError:
			if errorMessage == "" {
				errorMessage = "unknown error"
			}
			sandbox.ErrorMessage = errorMessage
		default:
			sandbox.ErrorMessage = ""
		}

		if err := tx.Model(&model.Sandbox{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":        sandbox.Status,
			"error_message": sandbox.ErrorMessage,
		}).Error; err != nil {
			return err
		}

		metrics.SandboxTransitions.WithLabelValues(string(from), string(status)).Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sandbox, nil
}

func (r *Registry) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&model.Sandbox{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IsSlugAvailable reports whether slug is free within the user's namespace.
func (r *Registry) IsSlugAvailable(ctx context.Context, userID uuid.UUID, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Sandbox{}).
		Where("user_id = ? AND slug = ?", userID, slug).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
