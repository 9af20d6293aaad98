package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/store"
)

// DeadlineHandler serves deadline CRUD: manual entries plus user edits
// to imported ones.
type DeadlineHandler struct {
	store store.Store
}

// NewDeadlineHandler creates the deadline handler.
func NewDeadlineHandler(s store.Store) *DeadlineHandler {
	return &DeadlineHandler{store: s}
}

// List handles GET /api/v1/deadlines.
func (h *DeadlineHandler) List(c *gin.Context) {
	userID := userIDFrom(c)
	filter := store.DeadlineFilter{
		UserID: &userID,
		SortBy: c.DefaultQuery("sort", "due_date"),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	filter.SortDesc = c.Query("order") == "desc"

	if v := c.Query("course"); v != "" {
		filter.Course = &v
	}
	if v, ok := c.GetQuery("source"); ok {
		// "manual" selects deadlines with no owning integration.
		if v == "manual" {
			v = ""
		}
		filter.Source = &v
	}
	if v := c.Query("q"); v != "" {
		filter.Query = &v
	}
	if v, ok := c.GetQuery("completed"); ok {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid completed value"})
			return
		}
		filter.Completed = &completed
	}

	var err error
	if filter.DueAfter, err = queryTime(c, "due_after"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_after value"})
		return
	}
	if filter.DueBefore, err = queryTime(c, "due_before"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_before value"})
		return
	}

	deadlines, err := h.store.GetDeadlines(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deadlines": deadlines})
}

type createDeadlineRequest struct {
	Course   string         `json:"course"`
	Task     string         `json:"task" binding:"required"`
	DueDate  time.Time      `json:"due_date" binding:"required"`
	Priority model.Priority `json:"priority"`
	URL      string         `json:"url"`
}

// Create handles POST /api/v1/deadlines. Created deadlines carry no
// source tag, so syncs never touch them.
func (h *DeadlineHandler) Create(c *gin.Context) {
	var req createDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d := &model.Deadline{
		UserID:   userIDFrom(c),
		Course:   req.Course,
		Task:     req.Task,
		DueDate:  req.DueDate,
		Priority: req.Priority,
		URL:      req.URL,
	}
	if err := h.store.CreateDeadline(c.Request.Context(), d); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// Get handles GET /api/v1/deadlines/:id.
func (h *DeadlineHandler) Get(c *gin.Context) {
	d, ok := h.ownedDeadline(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

type updateDeadlineRequest struct {
	Course    *string         `json:"course"`
	Task      *string         `json:"task"`
	DueDate   *time.Time      `json:"due_date"`
	Priority  *model.Priority `json:"priority"`
	Completed *bool           `json:"completed"`
	URL       *string         `json:"url"`
}

// Update handles PATCH /api/v1/deadlines/:id. Only fields present in the
// body change. Setting due_date on an imported deadline leaves
// SourceDueDate in place, so later syncs keep the user's date.
func (h *DeadlineHandler) Update(c *gin.Context) {
	d, ok := h.ownedDeadline(c)
	if !ok {
		return
	}

	var req updateDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Course != nil {
		d.Course = *req.Course
	}
	if req.Task != nil {
		d.Task = *req.Task
	}
	if req.DueDate != nil {
		d.DueDate = *req.DueDate
	}
	if req.Priority != nil {
		d.Priority = *req.Priority
	}
	if req.Completed != nil {
		d.Completed = *req.Completed
	}
	if req.URL != nil {
		d.URL = *req.URL
	}

	if err := h.store.UpdateDeadline(c.Request.Context(), d); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Delete handles DELETE /api/v1/deadlines/:id.
func (h *DeadlineHandler) Delete(c *gin.Context) {
	d, ok := h.ownedDeadline(c)
	if !ok {
		return
	}
	if err := h.store.DeleteDeadline(c.Request.Context(), d.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ownedDeadline loads the deadline from the path and checks it belongs
// to the acting user. Writes the error response itself on failure.
func (h *DeadlineHandler) ownedDeadline(c *gin.Context) (*model.Deadline, bool) {
	d, err := h.store.GetDeadlineByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if d.UserID != userIDFrom(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return d, true
}
