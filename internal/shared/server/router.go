package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"cvbuilder-backend/internal/shared/config"
	"cvbuilder-backend/internal/shared/metrics"
	"cvbuilder-backend/internal/shared/server/middleware"
	"cvbuilder-backend/internal/shared/server/respond"
	"cvbuilder-backend/internal/shared/tracing"
)

// RouteRegistrar is implemented by every feature handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// HealthReporter reports readiness for GET /health.
type HealthReporter interface {
	Ready(c *gin.Context) (ok bool, body any)
}

// HealthFunc adapts a function to HealthReporter.
type HealthFunc func(c *gin.Context) (bool, any)

// Ready calls f.
func (f HealthFunc) Ready(c *gin.Context) (bool, any) { return f(c) }

// RouterDeps carries the handlers mounted under /api/v1.
type RouterDeps struct {
	Config   config.Config
	Health   HealthReporter
	Handlers []RouteRegistrar
	// Limiter is shared across requests; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

const (
	apiPrefix = "/api/v1"

	groupDefault  = "DEFAULT"
	groupPolling  = "POLLING"
	groupGenerate = "GENERATE"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		otelgin.Middleware(tracing.ServiceName),
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(middleware.AuthConfig{
			LoginURL: deps.Config.LoginURL,
			PublicPrefix: []string{
				apiPrefix + "/health",
				apiPrefix + "/metrics",
				apiPrefix + "/auth/google/",
				apiPrefix + "/objects/",
			},
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: groupDefault,
			GroupFor:     rateLimitGroup,
			Limiter:      deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				groupDefault:  {Rate: 10, Burst: 30},
				groupPolling:  {Rate: 5, Burst: 20},
				groupGenerate: {Rate: 0.2, Burst: 3},
			},
		}),
	)

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		ok, body := deps.Health.Ready(c)
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, body)
	})
	api.GET("/metrics", metrics.Handler())

	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}
	return r
}

// rateLimitGroup puts remote generation calls in a tight bucket and session
// polling in a loose one. Event streams are long-lived and not limited.
func rateLimitGroup(c *gin.Context) string {
	switch c.FullPath() {
	case apiPrefix + "/cvs/:id/generate", apiPrefix + "/profile/generate":
		return groupGenerate
	case apiPrefix + "/generation/sessions/:id", apiPrefix + "/cvs/:id/artifact":
		return groupPolling
	case apiPrefix + "/generation/sessions/:id/events", apiPrefix + "/notifications/stream", apiPrefix + "/objects/*key":
		return "UNLIMITED"
	}
	return groupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
