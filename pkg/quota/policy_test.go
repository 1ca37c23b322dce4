package quota

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/codehaven/codehaven/pkg/config"
	"github.com/codehaven/codehaven/pkg/model"
)

func testDefaults() config.QuotaDefaults {
	return config.QuotaDefaults{
		MaxSandboxes:         3,
		MaxConcurrentRunning: 1,
		AllowedTierIDs:       []string{"starter"},
		MaxTierID:            "starter",
		MaxTotalStorageGB:    20,
		MaxTotalCPUCores:     2,
		MaxTotalMemoryGB:     4,
		AllowedAddonIDs:      []string{"code-server"},
	}
}

func TestDefaultPolicy(t *testing.T) {
	store := NewPolicyStore(nil, testDefaults())
	userID := uuid.New()

	policy := store.defaultPolicy(userID)
	if policy.UserID != userID {
		t.Fatalf("expected policy for %s, got %s", userID, policy.UserID)
	}
	if policy.MaxSandboxes != 3 || policy.MaxConcurrentRunning != 1 {
		t.Fatalf("unexpected limits: %+v", policy)
	}
	if !reflect.DeepEqual([]string(policy.AllowedTierIDs), []string{"starter"}) {
		t.Fatalf("unexpected allowed tiers: %v", policy.AllowedTierIDs)
	}
	if !reflect.DeepEqual([]string(policy.AllowedAddonIDs), []string{"code-server"}) {
		t.Fatalf("unexpected allowed addons: %v", policy.AllowedAddonIDs)
	}
}

func TestDefaultPolicyUnrestrictedAddons(t *testing.T) {
	defaults := testDefaults()
	defaults.AllowedAddonIDs = nil
	store := NewPolicyStore(nil, defaults)

	policy := store.defaultPolicy(uuid.New())
	if policy.AllowedAddonIDs != nil {
		t.Fatalf("expected nil allow-list, got %v", policy.AllowedAddonIDs)
	}
}

func TestApplyUpdatePartial(t *testing.T) {
	policy := &model.QuotaPolicy{
		MaxSandboxes:         3,
		MaxConcurrentRunning: 1,
		AllowedTierIDs:       pq.StringArray{"starter"},
		MaxTotalCPUCores:     2,
		MaxTotalMemoryGB:     4,
		AllowedAddonIDs:      pq.StringArray{"code-server"},
	}

	five := 5
	applyUpdate(policy, PolicyUpdate{
		MaxSandboxes:   &five,
		AllowedTierIDs: []string{"starter", "pro"},
	})

	if policy.MaxSandboxes != 5 {
		t.Fatalf("expected max sandboxes 5, got %d", policy.MaxSandboxes)
	}
	if policy.MaxConcurrentRunning != 1 {
		t.Fatalf("expected untouched concurrency limit, got %d", policy.MaxConcurrentRunning)
	}
	if len(policy.AllowedTierIDs) != 2 {
		t.Fatalf("expected 2 allowed tiers, got %v", policy.AllowedTierIDs)
	}
	if len(policy.AllowedAddonIDs) != 1 {
		t.Fatalf("expected untouched addon allow-list, got %v", policy.AllowedAddonIDs)
	}
}

func TestApplyUpdateClearAddonAllowList(t *testing.T) {
	policy := &model.QuotaPolicy{AllowedAddonIDs: pq.StringArray{"code-server"}}

	applyUpdate(policy, PolicyUpdate{ClearAllowedAddonIDs: true})
	if policy.AllowedAddonIDs != nil {
		t.Fatalf("expected cleared allow-list, got %v", policy.AllowedAddonIDs)
	}
}

func TestTierAllowedAndDisallowedAddons(t *testing.T) {
	policy := &model.QuotaPolicy{
		AllowedTierIDs:  pq.StringArray{"starter", "pro"},
		AllowedAddonIDs: pq.StringArray{"code-server"},
	}

	if !policy.TierAllowed("pro") {
		t.Fatalf("expected pro to be allowed")
	}
	if policy.TierAllowed("power") {
		t.Fatalf("expected power to be disallowed")
	}

	disallowed := policy.DisallowedAddons([]string{"gpu", "code-server", "db"})
	if !reflect.DeepEqual(disallowed, []string{"gpu", "db"}) {
		t.Fatalf("expected [gpu db], got %v", disallowed)
	}
}
