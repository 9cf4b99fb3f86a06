package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/collab"
	"github.com/persistorai/canvas/internal/ws"
)

const readinessTimeout = 3 * time.Second

// BackendChecker reports whether the graph backend is reachable.
type BackendChecker interface {
	Health(ctx context.Context) (*collab.HealthResponse, error)
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	backend   BackendChecker
	hub       *ws.Hub
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. backend and hub may be nil.
func NewHealthHandler(backend BackendChecker, hub *ws.Hub, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		backend:   backend,
		hub:       hub,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Sessions      int     `json:"sessions"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type readinessResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Backend string            `json:"backend_version,omitempty"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		resp.Sessions = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. The daemon is ready when the graph
// backend answers its health probe.
func (h *HealthHandler) Readiness(c *gin.Context) {
	resp := readinessResponse{Status: "ready", Checks: map[string]string{"backend": "ok"}}
	statusCode := http.StatusOK

	if h.backend == nil {
		resp.Checks["backend"] = "not_configured"
		c.JSON(statusCode, resp)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	hr, err := h.backend.Health(ctx)
	if err != nil {
		h.log.WithError(err).Error("readiness: backend health check failed")
		resp.Checks["backend"] = "error"
		resp.Status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else {
		resp.Backend = hr.Version
	}

	c.JSON(statusCode, resp)
}
