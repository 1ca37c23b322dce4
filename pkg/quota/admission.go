package quota

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codehaven/codehaven/pkg/metrics"
	"github.com/codehaven/codehaven/pkg/model"
)

// Reason identifies which admission check denied a request.
type Reason string

const (
	ReasonSandboxLimit     Reason = "sandbox_limit_exceeded"
	ReasonTierNotAllowed   Reason = "tier_not_allowed"
	ReasonAddonsNotAllowed Reason = "addons_not_allowed"
	ReasonConcurrencyLimit Reason = "concurrency_limit_exceeded"
	ReasonCPULimit         Reason = "cpu_limit_exceeded"
	ReasonMemoryLimit      Reason = "memory_limit_exceeded"
)

// Result is an admission decision. A denial is a normal outcome, not an
// error: Current/Limit carry the diagnostic counters of the failing check
// and Disallowed lists the offending addons for addon denials.
type Result struct {
	Allowed    bool     `json:"allowed"`
	Reason     Reason   `json:"reason,omitempty"`
	Current    int      `json:"current,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Disallowed []string `json:"disallowed,omitempty"`
}

func allowed() Result {
	return Result{Allowed: true}
}

func denied(reason Reason, current, limit int) Result {
	return Result{Reason: reason, Current: current, Limit: limit}
}

// PolicySource yields the requesting user's quota policy, materializing
// defaults on first access.
type PolicySource interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.QuotaPolicy, error)
}

// UsageSource reports the user's current sandbox footprint. Counts are
// re-read on every decision; nothing is cached between calls.
type UsageSource interface {
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	CountRunningByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	SumRunningResources(ctx context.Context, userID uuid.UUID) (model.ResourceUsage, error)
}

// TierSource resolves tier reference data.
type TierSource interface {
	Tier(id string) (*model.ResourceTier, error)
}

// AddonSource resolves addon reference data.
type AddonSource interface {
	Addon(id string) (*model.Addon, error)
}

// AdmissionController decides whether a user may create or start a sandbox.
// Both entry points are read-only short-circuiting check pipelines computed
// from a fresh snapshot; the caller must perform the admitted mutation under
// the store's per-user lock to close the check-then-act window.
type AdmissionController struct {
	policies PolicySource
	usage    UsageSource
	tiers    TierSource
	addons   AddonSource
}

func NewAdmissionController(policies PolicySource, usage UsageSource, tiers TierSource, addons AddonSource) *AdmissionController {
	return &AdmissionController{policies: policies, usage: usage, tiers: tiers, addons: addons}
}

// CheckCreate gates sandbox creation: count limit, tier allow-list, addon
// allow-list, in that order, stopping at the first failing check. Unknown
// tier or addon ids are caller misuse and surface as errors, not denials.
func (a *AdmissionController) CheckCreate(ctx context.Context, userID uuid.UUID, tierID string, addonIDs []string) (Result, error) {
	if _, err := a.tiers.Tier(tierID); err != nil {
		return Result{}, fmt.Errorf("tier %q: %w", tierID, err)
	}
	for _, addonID := range addonIDs {
		if _, err := a.addons.Addon(addonID); err != nil {
			return Result{}, fmt.Errorf("addon %q: %w", addonID, err)
		}
	}

	policy, err := a.policies.Get(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	current, err := a.usage.CountByUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if int(current) >= policy.MaxSandboxes {
		return a.record("create", denied(ReasonSandboxLimit, int(current), policy.MaxSandboxes)), nil
	}

	if !policy.TierAllowed(tierID) {
		return a.record("create", Result{Reason: ReasonTierNotAllowed}), nil
	}

	if disallowed := policy.DisallowedAddons(addonIDs); len(disallowed) > 0 {
		return a.record("create", Result{Reason: ReasonAddonsNotAllowed, Disallowed: disallowed}), nil
	}

	return a.record("create", allowed()), nil
}

// CheckStart gates a sandbox start: concurrency limit first, then the
// aggregate resource budget, CPU before memory.
func (a *AdmissionController) CheckStart(ctx context.Context, userID uuid.UUID, tierID string) (Result, error) {
	tier, err := a.tiers.Tier(tierID)
	if err != nil {
		return Result{}, fmt.Errorf("tier %q: %w", tierID, err)
	}

	policy, err := a.policies.Get(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	running, err := a.usage.CountRunningByUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if int(running) >= policy.MaxConcurrentRunning {
		return a.record("start", denied(ReasonConcurrencyLimit, int(running), policy.MaxConcurrentRunning)), nil
	}

	usage, err := a.usage.SumRunningResources(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if usage.CPUCores+tier.CPUCores > policy.MaxTotalCPUCores {
		return a.record("start", denied(ReasonCPULimit, usage.CPUCores, policy.MaxTotalCPUCores)), nil
	}
	if usage.MemoryGB+tier.MemoryGB > policy.MaxTotalMemoryGB {
		return a.record("start", denied(ReasonMemoryLimit, usage.MemoryGB, policy.MaxTotalMemoryGB)), nil
	}

	return a.record("start", allowed()), nil
}

func (a *AdmissionController) record(check string, result Result) Result {
	outcome := "allowed"
	reason := ""
	if !result.Allowed {
		outcome = "denied"
		reason = string(result.Reason)
	}
	metrics.AdmissionDecisions.WithLabelValues(check, outcome, reason).Inc()
	return result
}
