package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codehaven/codehaven/pkg/apiserver/middleware"
	"github.com/codehaven/codehaven/pkg/catalog"
	"github.com/codehaven/codehaven/pkg/eventbus"
	"github.com/codehaven/codehaven/pkg/model"
	"github.com/codehaven/codehaven/pkg/quota"
	"github.com/codehaven/codehaven/pkg/sandbox"
	"github.com/codehaven/codehaven/pkg/store/postgres"
)

type SandboxHandler struct {
	db        *postgres.Store
	registry  *sandbox.Registry
	admission *quota.AdmissionController
	logger    *zap.Logger
	bus       *eventbus.Bus
}

func NewSandboxHandler(db *postgres.Store, registry *sandbox.Registry, admission *quota.AdmissionController, logger *zap.Logger, bus *eventbus.Bus) *SandboxHandler {
	return &SandboxHandler{db: db, registry: registry, admission: admission, logger: logger, bus: bus}
}

type sandboxCreateRequest struct {
	Name     string   `json:"name" binding:"required"`
	TierID   string   `json:"tier_id" binding:"required"`
	AddonIDs []string `json:"addon_ids"`
}

type sandboxResponse struct {
	ID           string   `json:"id"`
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	TierID       string   `json:"tier_id"`
	AddonIDs     []string `json:"addon_ids"`
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type statusUpdateRequest struct {
	Status       string `json:"status" binding:"required"`
	ErrorMessage string `json:"error_message"`
}

// Create runs admission, slug allocation and the insert as one unit under
// the per-user lock, so concurrent creates cannot overshoot MaxSandboxes or
// race the slug probe.
func (h *SandboxHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req sandboxCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()

	var (
		decision quota.Result
		created  *model.Sandbox
	)
	err := h.db.WithUserLock(ctx, userID, func(tx *gorm.DB) error {
		registry := h.registry.WithTx(tx)

		result, err := h.admission.CheckCreate(ctx, userID, req.TierID, req.AddonIDs)
		if err != nil {
			return err
		}
		decision = result
		if !result.Allowed {
			return nil
		}

		allocator := sandbox.NewSlugAllocator(registry)
		slug, err := allocator.Generate(ctx, userID, req.Name)
		if err != nil {
			return err
		}

		created, err = registry.Create(ctx, sandbox.CreateInput{
			UserID:   userID,
			Slug:     slug,
			Name:     req.Name,
			TierID:   req.TierID,
			AddonIDs: req.AddonIDs,
		})
		if err != nil {
			return err
		}

		activity := postgres.NewActivityRepository(tx)
		return activity.Record(ctx, &model.ActivityEntry{
			UserID:    userID,
			SandboxID: &created.ID,
			Action:    "sandbox.created",
			Detail:    slug,
		})
	})
	if err != nil {
		h.renderError(c, err, "failed to create sandbox")
		return
	}

	if !decision.Allowed {
		h.publishQuotaDenial(ctx, userID, "create", decision)
		c.JSON(http.StatusForbidden, gin.H{"error": "quota exceeded", "decision": decision})
		return
	}

	h.publishSandboxEvent(ctx, eventbus.EventSandboxCreated, created)
	c.JSON(http.StatusCreated, mapSandbox(created))
}

func (h *SandboxHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var status *model.SandboxStatus
	if statusValue := c.Query("status"); statusValue != "" {
		parsed := model.SandboxStatus(statusValue)
		if !sandbox.ValidStatus(parsed) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = &parsed
	}

	sandboxes, err := h.registry.ListByUser(c.Request.Context(), userID, status)
	if err != nil {
		h.logger.Error("failed to list sandboxes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sandboxes"})
		return
	}

	response := make([]sandboxResponse, 0, len(sandboxes))
	for i := range sandboxes {
		response = append(response, mapSandbox(&sandboxes[i]))
	}
	c.JSON(http.StatusOK, gin.H{"sandboxes": response})
}

func (h *SandboxHandler) Get(c *gin.Context) {
	box, ok := h.ownedSandbox(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, mapSandbox(box))
}

// Start gates the request with CheckStart and records the created/stopped/
// error -> starting move; the actual container start happens in the external
// orchestrator, which hears about it on the event bus.
func (h *SandboxHandler) Start(c *gin.Context) {
	box, ok := h.ownedSandbox(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		decision quota.Result
		updated  *model.Sandbox
	)
	err := h.db.WithUserLock(ctx, box.UserID, func(tx *gorm.DB) error {
		result, err := h.admission.CheckStart(ctx, box.UserID, box.TierID)
		if err != nil {
			return err
		}
		decision = result
		if !result.Allowed {
			return nil
		}

		updated, err = h.registry.WithTx(tx).Transition(ctx, box.ID, model.SandboxStarting, "")
		if err != nil {
			return err
		}

		activity := postgres.NewActivityRepository(tx)
		return activity.Record(ctx, &model.ActivityEntry{
			UserID:    box.UserID,
			SandboxID: &box.ID,
			Action:    "sandbox.start_requested",
			Detail:    box.Slug,
		})
	})
	if err != nil {
		h.renderError(c, err, "failed to start sandbox")
		return
	}

	if !decision.Allowed {
		h.publishQuotaDenial(ctx, box.UserID, "start", decision)
		c.JSON(http.StatusForbidden, gin.H{"error": "quota exceeded", "decision": decision})
		return
	}

	h.publishSandboxEvent(ctx, eventbus.EventSandboxStartRequest, updated)
	c.JSON(http.StatusOK, mapSandbox(updated))
}

func (h *SandboxHandler) Stop(c *gin.Context) {
	box, ok := h.ownedSandbox(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	updated, err := h.registry.Transition(ctx, box.ID, model.SandboxStopping, "")
	if err != nil {
		h.renderError(c, err, "failed to stop sandbox")
		return
	}

	h.publishSandboxEvent(ctx, eventbus.EventSandboxStopRequest, updated)
	c.JSON(http.StatusOK, mapSandbox(updated))
}

// UpdateStatus is the orchestrator callback reporting an observed lifecycle
// change (starting -> running, stopping -> stopped, failures).
func (h *SandboxHandler) UpdateStatus(c *gin.Context) {
	box, ok := h.ownedSandbox(c)
	if !ok {
		return
	}

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	status := model.SandboxStatus(req.Status)
	if !sandbox.ValidStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	updated, err := h.registry.Transition(c.Request.Context(), box.ID, status, req.ErrorMessage)
	if err != nil {
		h.renderError(c, err, "failed to update sandbox status")
		return
	}

	h.publishSandboxEvent(c.Request.Context(), eventbus.EventSandboxStatusChanged, updated)
	c.JSON(http.StatusOK, mapSandbox(updated))
}

func (h *SandboxHandler) Delete(c *gin.Context) {
	box, ok := h.ownedSandbox(c)
	if !ok {
		return
	}

	deleted, err := h.registry.Delete(c.Request.Context(), box.ID)
	if err != nil {
		h.logger.Error("failed to delete sandbox", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete sandbox"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "sandbox not found"})
		return
	}

	h.publishSandboxEvent(c.Request.Context(), eventbus.EventSandboxDeleted, box)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ownedSandbox loads the path sandbox and enforces ownership; foreign
// sandboxes read as not found.
func (h *SandboxHandler) ownedSandbox(c *gin.Context) (*model.Sandbox, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sandbox id"})
		return nil, false
	}

	box, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sandbox.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sandbox not found"})
			return nil, false
		}
		h.logger.Error("failed to load sandbox", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sandbox"})
		return nil, false
	}
	if box.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "sandbox not found"})
		return nil, false
	}
	return box, true
}

func (h *SandboxHandler) renderError(c *gin.Context, err error, fallback string) {
	var invalid *sandbox.InvalidTransitionError
	switch {
	case errors.Is(err, catalog.ErrTierNotFound), errors.Is(err, catalog.ErrAddonNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sandbox.ErrSlugExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Error()})
	case errors.Is(err, sandbox.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "sandbox not found"})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func (h *SandboxHandler) publishSandboxEvent(ctx context.Context, eventType string, box *model.Sandbox) {
	if h.bus == nil || box == nil {
		return
	}
	payload := eventbus.SandboxEvent{
		SandboxID: box.ID.String(),
		UserID:    box.UserID.String(),
		Slug:      box.Slug,
		TierID:    box.TierID,
		Status:    string(box.Status),
		Message:   box.ErrorMessage,
	}
	if event, err := eventbus.NewEvent(eventType, payload); err == nil {
		if err := h.bus.Publish(ctx, eventbus.ChannelSandbox, event); err != nil {
			h.logger.Warn("failed to publish sandbox event", zap.Error(err))
		}
	}
}

func (h *SandboxHandler) publishQuotaDenial(ctx context.Context, userID uuid.UUID, check string, decision quota.Result) {
	if h.bus == nil {
		return
	}
	payload := eventbus.QuotaEvent{
		UserID: userID.String(),
		Check:  check,
		Reason: string(decision.Reason),
	}
	if event, err := eventbus.NewEvent(eventbus.EventAdmissionDenied, payload); err == nil {
		_ = h.bus.Publish(ctx, eventbus.ChannelQuota, event)
	}
}

func mapSandbox(box *model.Sandbox) sandboxResponse {
	return sandboxResponse{
		ID:           box.ID.String(),
		Slug:         box.Slug,
		Name:         box.Name,
		TierID:       box.TierID,
		AddonIDs:     box.AddonIDs,
		Status:       string(box.Status),
		ErrorMessage: box.ErrorMessage,
		CreatedAt:    formatTime(box.CreatedAt),
		UpdatedAt:    formatTime(box.UpdatedAt),
	}
}
