package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codehaven/codehaven/pkg/apiserver/middleware"
	"github.com/codehaven/codehaven/pkg/store/postgres"
)

type ActivityHandler struct {
	activity *postgres.ActivityRepository
	logger   *zap.Logger
}

func NewActivityHandler(activity *postgres.ActivityRepository, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{activity: activity, logger: logger}
}

type activityResponse struct {
	ID        string `json:"id"`
	SandboxID string `json:"sandbox_id,omitempty"`
	Action    string `json:"action"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (h *ActivityHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	entries, total, err := h.activity.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list activity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list activity"})
		return
	}

	response := make([]activityResponse, 0, len(entries))
	for _, entry := range entries {
		item := activityResponse{
			ID:        entry.ID.String(),
			Action:    entry.Action,
			Detail:    entry.Detail,
			CreatedAt: formatTime(entry.CreatedAt),
		}
		if entry.SandboxID != nil {
			item.SandboxID = entry.SandboxID.String()
		}
		response = append(response, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"activity": response,
		"total":    total,
	})
}
