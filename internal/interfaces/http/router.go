package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/handlers"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	HealthHandler       *handlers.HealthHandler
	CalculatorHandler   *handlers.CalculatorHandler
	JurisdictionHandler *handlers.JurisdictionHandler
	PropertyHandler     *handlers.PropertyHandler
	CaseHandler         *handlers.CaseHandler
	DocumentHandler     *handlers.DocumentHandler

	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.FixedWindowLimiter
	CORS           middleware.CORSConfig
	Logging        middleware.LoggingConfig

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	// Mode is a gin mode: "debug", "release" or "test".
	Mode string
}

// NewRouter builds the engine: global middleware, probes and metrics, the
// public calculator and jurisdiction routes, then the authenticated API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(logger), middleware.RequestID(logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.RequestLogging(logger, cfg.Logging), middleware.CORS(cfg.CORS))
	if cfg.RateLimiter != nil {
		// Probes and scrapes are exempt, as they are from request logging.
		r.Use(middleware.RateLimit(cfg.RateLimiter, cfg.Metrics, cfg.Logging.SkipPaths...))
	}

	r.NoRoute(func(c *gin.Context) {
		middleware.RespondError(c, errors.NotFound("no such route"))
	})
	r.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, middleware.ErrorResponse{Error: middleware.ErrorBody{
			Code:    string(errors.ErrCodeBadRequest),
			Message: "method not allowed",
			Detail:  c.Request.Method,
		}})
	})

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	v1 := r.Group("/api/v1")
	registerPublicRoutes(v1, cfg)

	authed := v1.Group("")
	if cfg.AuthMiddleware != nil {
		authed.Use(cfg.AuthMiddleware.Authenticate())
	}
	registerPropertyRoutes(authed, cfg.PropertyHandler)
	registerCaseRoutes(authed, cfg.CaseHandler, cfg.DocumentHandler)
	return r
}

func registerPublicRoutes(g *gin.RouterGroup, cfg RouterConfig) {
	if h := cfg.CalculatorHandler; h != nil {
		calc := g.Group("/calculator")
		calc.POST("/deadline", h.Deadline)
		calc.POST("/penalty", h.Penalty)
		calc.POST("/interest", h.Interest)
		calc.POST("/refund", h.Refund)
		calc.POST("/proration", h.Proration)
	}
	if h := cfg.JurisdictionHandler; h != nil {
		g.GET("/jurisdictions", h.List)
		g.GET("/jurisdictions/resolve", h.Resolve)
	}
}

func registerPropertyRoutes(g *gin.RouterGroup, h *handlers.PropertyHandler) {
	if h == nil {
		return
	}
	g.POST("/properties", h.Create)
	g.GET("/properties", h.List)
}

func registerCaseRoutes(g *gin.RouterGroup, h *handlers.CaseHandler, docs *handlers.DocumentHandler) {
	if h != nil {
		g.POST("/cases", h.Create)
		g.GET("/cases", h.List)
		g.GET("/cases/:id", h.Get)
		g.PATCH("/cases/:id", h.Update)
		g.POST("/cases/:id/deductions", h.AddDeduction)
		g.DELETE("/cases/:id/deductions/:deductionId", h.RemoveDeduction)
		g.PUT("/cases/:id/checklist/:itemId", h.SetChecklistItem)
		g.POST("/cases/:id/transitions", h.Transition)
		g.GET("/cases/:id/readiness", h.Readiness)
		g.GET("/cases/:id/exposure", h.Exposure)
		g.GET("/cases/:id/audit", h.Audit)
	}
	if docs != nil {
		g.POST("/cases/:id/documents", docs.Generate)
		g.POST("/cases/:id/proof-packet", docs.ProofPacket)
		g.GET("/cases/:id/documents/:docId/url", docs.URL)
		g.POST("/cases/:id/documents/:docId/email", docs.Email)
	}
}
