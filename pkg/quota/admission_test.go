package quota

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/codehaven/codehaven/pkg/catalog"
	"github.com/codehaven/codehaven/pkg/model"
)

type fakePolicySource struct {
	policy *model.QuotaPolicy
}

func (f *fakePolicySource) Get(_ context.Context, _ uuid.UUID) (*model.QuotaPolicy, error) {
	return f.policy, nil
}

type fakeUsageSource struct {
	count   int64
	running int64
	usage   model.ResourceUsage
}

func (f *fakeUsageSource) CountByUser(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.count, nil
}

func (f *fakeUsageSource) CountRunningByUser(_ context.Context, _ uuid.UUID) (int64, error) {
	return f.running, nil
}

func (f *fakeUsageSource) SumRunningResources(_ context.Context, _ uuid.UUID) (model.ResourceUsage, error) {
	return f.usage, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]model.ResourceTier{
			{ID: "starter", CPUCores: 2, MemoryGB: 4, StorageGB: 20, IsDefault: true, SortOrder: 1},
			{ID: "pro", CPUCores: 4, MemoryGB: 8, StorageGB: 50, SortOrder: 2},
		},
		[]model.Addon{
			{ID: "code-server", Category: model.AddonInterface},
			{ID: "gpu", Category: model.AddonCompute, RequiresGPU: true},
			{ID: "db", Category: model.AddonStorage},
		},
	)
}

func testPolicy() *model.QuotaPolicy {
	return &model.QuotaPolicy{
		UserID:               uuid.New(),
		MaxSandboxes:         3,
		MaxConcurrentRunning: 1,
		AllowedTierIDs:       pq.StringArray{"starter", "pro"},
		MaxTierID:            "pro",
		MaxTotalCPUCores:     4,
		MaxTotalMemoryGB:     8,
		AllowedAddonIDs:      pq.StringArray{"code-server"},
	}
}

func newController(policy *model.QuotaPolicy, usage *fakeUsageSource) *AdmissionController {
	cat := testCatalog()
	return NewAdmissionController(&fakePolicySource{policy: policy}, usage, cat, cat)
}

func TestCheckCreateAllowed(t *testing.T) {
	ctrl := newController(testPolicy(), &fakeUsageSource{count: 0})

	result, err := ctrl.CheckCreate(context.Background(), uuid.New(), "starter", []string{"code-server"})
	if err != nil {
		t.Fatalf("CheckCreate error: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected allowed, got denial %+v", result)
	}
}

func TestCheckCreateSandboxLimit(t *testing.T) {
	policy := testPolicy()
	policy.MaxSandboxes = 1
	ctrl := newController(policy, &fakeUsageSource{count: 1})

	result, err := ctrl.CheckCreate(context.Background(), uuid.New(), "starter", nil)
	if err != nil {
		t.Fatalf("CheckCreate error: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected denial")
	}
	if result.Reason != ReasonSandboxLimit {
		t.Fatalf("expected %s, got %s", ReasonSandboxLimit, result.Reason)
	}
	if result.Current != 1 || result.Limit != 1 {
		t.Fatalf("expected current=1 limit=1, got current=%d limit=%d", result.Current, result.Limit)
	}
}

func TestCheckCreateTierNotAllowed(t *testing.T) {
	policy := testPolicy()
	policy.AllowedTierIDs = pq.StringArray{"starter"}
	ctrl := newController(policy, &fakeUsageSource{})

	result, err := ctrl.CheckCreate(context.Background(), uuid.New(), "pro", nil)
	if err != nil {
		t.Fatalf("CheckCreate error: %v", err)
	}
	if result.Allowed || result.Reason != ReasonTierNotAllowed {
		t.Fatalf("expected tier_not_allowed denial, got %+v", result)
	}
}

func TestCheckCreateListsEveryDisallowedAddon(t *testing.T) {
	ctrl := newController(testPolicy(), &fakeUsageSource{})

	result, err := ctrl.CheckCreate(context.Background(), uuid.New(), "starter", []string{"gpu", "db"})
	if err != nil {
		t.Fatalf("CheckCreate error: %v", err)
	}
	if result.Allowed || result.Reason != ReasonAddonsNotAllowed {
		t.Fatalf("expected addons_not_allowed denial, got %+v", result)
	}
	if !reflect.DeepEqual(result.Disallowed, []string{"gpu", "db"}) {
		t.Fatalf("expected disallowed [gpu db], got %v", result.Disallowed)
	}
}

func TestCheckCreateNilAllowListIsUnrestricted(t *testing.T) {
	policy := testPolicy()
	policy.AllowedAddonIDs = nil
	ctrl := newController(policy, &fakeUsageSource{})

	result, err := ctrl.CheckCreate(context.Background(), uuid.New(), "starter", []string{"gpu", "db"})
	if err != nil {
		t.Fatalf("CheckCreate error: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected allowed with nil allow-list, got %+v", result)
	}
}

func TestCheckCreateUnknownTierIsError(t *testing.T) {
	ctrl := newController(testPolicy(), &fakeUsageSource{})

	_, err := ctrl.CheckCreate(context.Background(), uuid.New(), "mega", nil)
	if !errors.Is(err, catalog.ErrTierNotFound) {
		t.Fatalf("expected ErrTierNotFound, got %v", err)
	}
}

func TestCheckCreateUnknownAddonIsError(t *testing.T) {
	ctrl := newController(testPolicy(), &fakeUsageSource{})

	_, err := ctrl.CheckCreate(context.Background(), uuid.New(), "starter", []string{"warp-drive"})
	if !errors.Is(err, catalog.ErrAddonNotFound) {
		t.Fatalf("expected ErrAddonNotFound, got %v", err)
	}
}

func TestCheckStartConcurrencyLimit(t *testing.T) {
	ctrl := newController(testPolicy(), &fakeUsageSource{running: 1})

	result, err := ctrl.CheckStart(context.Background(), uuid.New(), "starter")
	if err != nil {
		t.Fatalf("CheckStart error: %v", err)
	}
	if result.Allowed || result.Reason != ReasonConcurrencyLimit {
		t.Fatalf("expected concurrency denial, got %+v", result)
	}
	if result.Current != 1 || result.Limit != 1 {
		t.Fatalf("expected current=1 limit=1, got current=%d limit=%d", result.Current, result.Limit)
	}
}

func TestCheckStartAggregateCPULimit(t *testing.T) {
	policy := testPolicy()
	policy.MaxConcurrentRunning = 5
	usage := &fakeUsageSource{running: 1, usage: model.ResourceUsage{CPUCores: 2, MemoryGB: 4}}
	ctrl := newController(policy, usage)

	// 2 + 4 > 4 denies the pro tier.
	result, err := ctrl.CheckStart(context.Background(), uuid.New(), "pro")
	if err != nil {
		t.Fatalf("CheckStart error: %v", err)
	}
	if result.Allowed || result.Reason != ReasonCPULimit {
		t.Fatalf("expected cpu denial, got %+v", result)
	}
	if result.Current != 2 || result.Limit != 4 {
		t.Fatalf("expected current=2 limit=4, got current=%d limit=%d", result.Current, result.Limit)
	}

	// 2 + 2 <= 4 admits the starter tier.
	result, err = ctrl.CheckStart(context.Background(), uuid.New(), "starter")
	if err != nil {
		t.Fatalf("CheckStart error: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected starter start to be allowed, got %+v", result)
	}
}

func TestCheckStartMemoryLimit(t *testing.T) {
	policy := testPolicy()
	policy.MaxConcurrentRunning = 5
	policy.MaxTotalCPUCores = 16
	usage := &fakeUsageSource{running: 1, usage: model.ResourceUsage{CPUCores: 2, MemoryGB: 6}}
	ctrl := newController(policy, usage)

	result, err := ctrl.CheckStart(context.Background(), uuid.New(), "pro")
	if err != nil {
		t.Fatalf("CheckStart error: %v", err)
	}
	if result.Allowed || result.Reason != ReasonMemoryLimit {
		t.Fatalf("expected memory denial, got %+v", result)
	}
	if result.Current != 6 || result.Limit != 8 {
		t.Fatalf("expected current=6 limit=8, got current=%d limit=%d", result.Current, result.Limit)
	}
}

func TestCheckStartCPUCheckedBeforeMemory(t *testing.T) {
	policy := testPolicy()
	policy.MaxConcurrentRunning = 5
	policy.MaxTotalCPUCores = 4
	policy.MaxTotalMemoryGB = 4
	usage := &fakeUsageSource{running: 1, usage: model.ResourceUsage{CPUCores: 4, MemoryGB: 4}}
	ctrl := newController(policy, usage)

	result, err := ctrl.CheckStart(context.Background(), uuid.New(), "pro")
	if err != nil {
		t.Fatalf("CheckStart error: %v", err)
	}
	if result.Reason != ReasonCPULimit {
		t.Fatalf("expected cpu checked first, got %s", result.Reason)
	}
}

func TestCheckStartUnknownTierIsError(t *testing.T) {
	ctrl := newController(testPolicy(), &fakeUsageSource{})

	_, err := ctrl.CheckStart(context.Background(), uuid.New(), "mega")
	if !errors.Is(err, catalog.ErrTierNotFound) {
		t.Fatalf("expected ErrTierNotFound, got %v", err)
	}
}
