package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studvik/companion/internal/healing"
	"github.com/studvik/companion/internal/model"
	syncsvc "github.com/studvik/companion/internal/sync"
)

// SyncHandler exposes manual sync triggers and the auto-healing state.
type SyncHandler struct {
	registry *syncsvc.Registry
}

// NewSyncHandler creates the sync handler.
func NewSyncHandler(r *syncsvc.Registry) *SyncHandler {
	return &SyncHandler{registry: r}
}

type triggerOutcome struct {
	Integration model.Integration   `json:"integration"`
	Result      *syncsvc.SyncResult `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Trigger handles POST /api/v1/sync: run every integration now. Failures
// of one integration do not abort the rest.
func (h *SyncHandler) Trigger(c *gin.Context) {
	b, err := h.registry.Bundle(userIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	services := b.Services()
	outcomes := make([]triggerOutcome, 0, len(services))
	for _, svc := range services {
		res, err := svc.TriggerSync(c.Request.Context())
		if err != nil {
			outcomes = append(outcomes, triggerOutcome{Integration: svc.Integration(), Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, triggerOutcome{Integration: svc.Integration(), Result: res})
	}
	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}

// TriggerOne handles POST /api/v1/sync/:integration. Manual triggers go
// through the same healing gate as scheduled syncs; a gated pass returns
// a result with skipped set rather than hitting the remote API.
func (h *SyncHandler) TriggerOne(c *gin.Context) {
	b, err := h.registry.Bundle(userIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	svc, ok := b.Service(model.Integration(c.Param("integration")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown integration"})
		return
	}

	res, err := svc.TriggerSync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

type integrationStatus struct {
	Integration model.Integration `json:"integration"`
	AutoHealing healing.Status    `json:"auto_healing"`
}

// Status handles GET /api/v1/sync/status.
func (h *SyncHandler) Status(c *gin.Context) {
	b, err := h.registry.Bundle(userIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	services := b.Services()
	statuses := make([]integrationStatus, 0, len(services))
	for _, svc := range services {
		statuses = append(statuses, integrationStatus{
			Integration: svc.Integration(),
			AutoHealing: svc.AutoHealingStatus(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"integrations": statuses})
}
