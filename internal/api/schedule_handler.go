package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studvik/companion/internal/store"
)

// ScheduleHandler serves the merged schedule view.
type ScheduleHandler struct {
	store store.Store
}

// NewScheduleHandler creates the schedule handler.
func NewScheduleHandler(s store.Store) *ScheduleHandler {
	return &ScheduleHandler{store: s}
}

// List handles GET /api/v1/schedule.
func (h *ScheduleHandler) List(c *gin.Context) {
	userID := userIDFrom(c)
	filter := store.ScheduleFilter{
		UserID: &userID,
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}

	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from value"})
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to value"})
		return
	}

	events, err := h.store.GetScheduleEvents(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
