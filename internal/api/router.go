// Package api exposes deadlines, schedule, sync control, and the health
// log over REST. Route wiring is thin; all decisions live in the core
// packages.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studvik/companion/internal/store"
	syncsvc "github.com/studvik/companion/internal/sync"
)

// RouterConfig wires the REST surface.
type RouterConfig struct {
	Store    store.Store
	Registry *syncsvc.Registry
	Log      *zap.Logger

	// DefaultUserID is the acting user when no X-User-ID header is sent.
	DefaultUserID string

	// AllowOrigins configures CORS. Empty allows any origin.
	AllowOrigins []string
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = "local"
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-User-ID"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	deadlines := NewDeadlineHandler(cfg.Store)
	schedule := NewScheduleHandler(cfg.Store)
	sync := NewSyncHandler(cfg.Registry)
	health := NewHealthHandler(cfg.Store, cfg.Registry)
	notifications := NewNotificationHandler(cfg.Store)

	v1 := r.Group("/api/v1")
	v1.Use(ResolveUser(cfg.DefaultUserID))
	{
		v1.GET("/deadlines", deadlines.List)
		v1.POST("/deadlines", deadlines.Create)
		v1.GET("/deadlines/:id", deadlines.Get)
		v1.PATCH("/deadlines/:id", deadlines.Update)
		v1.DELETE("/deadlines/:id", deadlines.Delete)

		v1.GET("/schedule", schedule.List)

		v1.POST("/sync", sync.Trigger)
		v1.POST("/sync/:integration", sync.TriggerOne)
		v1.GET("/sync/status", sync.Status)

		v1.GET("/health/summary", health.Summary)
		v1.GET("/health/attempts", health.Attempts)
		v1.GET("/health/recovery", health.Recovery)

		v1.GET("/notifications", notifications.List)
		v1.POST("/notifications/:id/read", notifications.MarkRead)
	}

	return r
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return fallback
}

// queryTime parses an RFC 3339 query parameter. Absent is not an error.
func queryTime(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
