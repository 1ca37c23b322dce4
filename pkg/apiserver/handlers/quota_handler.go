package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codehaven/codehaven/pkg/apiserver/middleware"
	"github.com/codehaven/codehaven/pkg/model"
	"github.com/codehaven/codehaven/pkg/quota"
	"github.com/codehaven/codehaven/pkg/sandbox"
)

type QuotaHandler struct {
	policies *quota.PolicyStore
	registry *sandbox.Registry
	logger   *zap.Logger
}

func NewQuotaHandler(policies *quota.PolicyStore, registry *sandbox.Registry, logger *zap.Logger) *QuotaHandler {
	return &QuotaHandler{policies: policies, registry: registry, logger: logger}
}

type policyResponse struct {
	UserID               string   `json:"user_id"`
	MaxSandboxes         int      `json:"max_sandboxes"`
	MaxConcurrentRunning int      `json:"max_concurrent_running"`
	AllowedTierIDs       []string `json:"allowed_tier_ids"`
	MaxTierID            string   `json:"max_tier_id"`
	MaxTotalStorageGB    int      `json:"max_total_storage_gb"`
	MaxTotalCPUCores     int      `json:"max_total_cpu_cores"`
	MaxTotalMemoryGB     int      `json:"max_total_memory_gb"`
	AllowedAddonIDs      []string `json:"allowed_addon_ids"`
	Notes                *string  `json:"notes,omitempty"`
}

type usageResponse struct {
	Sandboxes int `json:"sandboxes"`
	Running   int `json:"running"`
	CPUCores  int `json:"cpu_cores"`
	MemoryGB  int `json:"memory_gb"`
}

type policyUpdateRequest struct {
	MaxSandboxes         *int     `json:"max_sandboxes"`
	MaxConcurrentRunning *int     `json:"max_concurrent_running"`
	AllowedTierIDs       []string `json:"allowed_tier_ids"`
	MaxTierID            *string  `json:"max_tier_id"`
	MaxTotalStorageGB    *int     `json:"max_total_storage_gb"`
	MaxTotalCPUCores     *int     `json:"max_total_cpu_cores"`
	MaxTotalMemoryGB     *int     `json:"max_total_memory_gb"`
	AllowedAddonIDs      []string `json:"allowed_addon_ids"`
	ClearAllowedAddonIDs bool     `json:"clear_allowed_addon_ids"`
	Notes                *string  `json:"notes"`
}

// Get returns the caller's policy (materializing defaults when absent)
// together with a live usage snapshot.
func (h *QuotaHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ctx := c.Request.Context()

	policy, err := h.policies.Get(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load quota policy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load quota policy"})
		return
	}

	total, err := h.registry.CountByUser(ctx, userID)
	if err != nil {
		h.logger.Error("failed to count sandboxes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}
	running, err := h.registry.CountRunningByUser(ctx, userID)
	if err != nil {
		h.logger.Error("failed to count running sandboxes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}
	resources, err := h.registry.SumRunningResources(ctx, userID)
	if err != nil {
		h.logger.Error("failed to sum running resources", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load usage"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"policy": mapPolicy(policy),
		"usage": usageResponse{
			Sandboxes: int(total),
			Running:   int(running),
			CPUCores:  resources.CPUCores,
			MemoryGB:  resources.MemoryGB,
		},
	})
}

// Update applies an administrative partial change to a user's policy.
func (h *QuotaHandler) Update(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req policyUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	policy, err := h.policies.Update(c.Request.Context(), userID, quota.PolicyUpdate{
		MaxSandboxes:         req.MaxSandboxes,
		MaxConcurrentRunning: req.MaxConcurrentRunning,
		AllowedTierIDs:       req.AllowedTierIDs,
		MaxTierID:            req.MaxTierID,
		MaxTotalStorageGB:    req.MaxTotalStorageGB,
		MaxTotalCPUCores:     req.MaxTotalCPUCores,
		MaxTotalMemoryGB:     req.MaxTotalMemoryGB,
		AllowedAddonIDs:      req.AllowedAddonIDs,
		ClearAllowedAddonIDs: req.ClearAllowedAddonIDs,
		Notes:                req.Notes,
	})
	if err != nil {
		h.logger.Error("failed to update quota policy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update quota policy"})
		return
	}

	c.JSON(http.StatusOK, mapPolicy(policy))
}

// Delete removes a user's policy row, typically on account deletion. The
// next quota check re-creates defaults.
func (h *QuotaHandler) Delete(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	deleted, err := h.policies.Delete(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to delete quota policy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete quota policy"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "quota policy not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func mapPolicy(policy *model.QuotaPolicy) policyResponse {
	return policyResponse{
		UserID:               policy.UserID.String(),
		MaxSandboxes:         policy.MaxSandboxes,
		MaxConcurrentRunning: policy.MaxConcurrentRunning,
		AllowedTierIDs:       policy.AllowedTierIDs,
		MaxTierID:            policy.MaxTierID,
		MaxTotalStorageGB:    policy.MaxTotalStorageGB,
		MaxTotalCPUCores:     policy.MaxTotalCPUCores,
		MaxTotalMemoryGB:     policy.MaxTotalMemoryGB,
		AllowedAddonIDs:      policy.AllowedAddonIDs,
		Notes:                policy.Notes,
	}
}
