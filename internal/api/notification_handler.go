package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studvik/companion/internal/store"
)

// NotificationHandler serves the in-app notification inbox.
type NotificationHandler struct {
	store store.Store
}

// NewNotificationHandler creates the notification handler.
func NewNotificationHandler(s store.Store) *NotificationHandler {
	return &NotificationHandler{store: s}
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := userIDFrom(c)
	filter := store.NotificationFilter{
		UserID: &userID,
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if v, ok := c.GetQuery("unread"); ok {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unread value"})
			return
		}
		filter.Unread = &unread
	}

	notifications, err := h.store.GetNotifications(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkRead handles POST /api/v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.store.MarkNotificationRead(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
