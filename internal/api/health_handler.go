package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studvik/companion/internal/store"
	syncsvc "github.com/studvik/companion/internal/sync"
)

// HealthHandler serves the integration health log and recovery state.
type HealthHandler struct {
	store    store.Store
	registry *syncsvc.Registry
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(s store.Store, r *syncsvc.Registry) *HealthHandler {
	return &HealthHandler{store: s, registry: r}
}

// Summary handles GET /api/v1/health/summary: per-integration counts over
// the last hours (default 24).
func (h *HealthHandler) Summary(c *gin.Context) {
	hours := queryInt(c, "hours", 24)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	summaries, err := h.store.GetSyncSummary(c.Request.Context(), userIDFrom(c), since)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"since":        since,
		"integrations": summaries,
	})
}

// Attempts handles GET /api/v1/health/attempts: raw health-log rows,
// newest first.
func (h *HealthHandler) Attempts(c *gin.Context) {
	userID := userIDFrom(c)
	filter := store.SyncAttemptFilter{
		UserID: &userID,
		Limit:  queryInt(c, "limit", 50),
	}
	if v := c.Query("integration"); v != "" {
		filter.Integration = &v
	}
	if v, ok := c.GetQuery("success"); ok {
		success := v == "true"
		filter.Success = &success
	}
	if hours := queryInt(c, "hours", 0); hours > 0 {
		since := time.Now().Add(-time.Duration(hours) * time.Hour)
		filter.Since = &since
	}

	attempts, err := h.store.GetSyncAttempts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// Recovery handles GET /api/v1/health/recovery: consecutive-failure
// counters behind the recovery prompts.
func (h *HealthHandler) Recovery(c *gin.Context) {
	b, err := h.registry.Bundle(userIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": b.Tracker.Snapshot()})
}
