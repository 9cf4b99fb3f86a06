// Package api serves the canvas daemon's HTTP surface: health probes and
// the websocket endpoint that hosts canvas sessions.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/middleware"
	"github.com/persistorai/canvas/internal/session"
	"github.com/persistorai/canvas/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Hub         *ws.Hub
	Sessions    session.Config
	Backend     BackendChecker
	AccessKeys  []string
	CORSOrigins []string
	Version     string
}

// Router-level limits.
const (
	maxBodySize = 1 << 20
	rateLimit   = 5  // websocket upgrades per second per IP
	rateBurst   = 20 // token bucket burst size
	wsRoute     = "/api/v1/ws"
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID())
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.PrometheusMiddleware(wsRoute))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	health := NewHealthHandler(deps.Backend, deps.Hub, deps.Log, deps.Version)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	limiter := middleware.NewRateLimiter(ctx, rateLimit, rateBurst)
	guard := middleware.NewLockoutGuard(ctx, deps.Log)
	keys := middleware.NewKeySet(deps.AccessKeys...)

	api.GET("/ws",
		limiter.Handler(),
		middleware.Auth(keys, guard, deps.Log),
		wsHandler(ctx, deps),
	)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}

// NewMetricsHandler serves Prometheus metrics. It is mounted on its own
// listener so it is never exposed alongside the session endpoint.
func NewMetricsHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
