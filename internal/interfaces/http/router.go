package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/internal/interfaces/http/handlers"
	"github.com/turtacn/EduLoan-Engine/internal/interfaces/http/middleware"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree. Nil handlers are skipped.
type RouterConfig struct {
	// Handlers
	LoanHandler         *handlers.LoanHandler
	DisbursementHandler *handlers.DisbursementHandler
	RepaymentHandler    *handlers.RepaymentHandler
	ReferenceHandler    *handlers.ReferenceHandler
	HealthHandler       *handlers.HealthHandler

	// Middleware
	RateLimiter     *middleware.ClientLimiter
	RateLimitConfig middleware.RateLimitConfig
	LoggingConfig   middleware.LoggingConfig

	// Infrastructure
	Logger         logging.Logger
	HTTPMetrics    middleware.HTTPObserver
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter constructs the complete gin route tree from the given configuration.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	// --- Global middleware ---
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogging(log, cfg.LoggingConfig))
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{
			Code:      string(errors.ErrCodeNotFound),
			Message:   "route not found",
			RequestID: middleware.GetRequestID(c),
		})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ErrorResponse{
			Code:      string(errors.ErrCodeBadRequest),
			Message:   "method not allowed",
			RequestID: middleware.GetRequestID(c),
		})
	})

	// --- Probes ---
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}

	// --- Metrics ---
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	// --- API v1 ---
	api := r.Group("/api/v1")
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimitConfig))
	}
	if cfg.LoanHandler != nil {
		cfg.LoanHandler.RegisterRoutes(api)
	}
	if cfg.DisbursementHandler != nil {
		cfg.DisbursementHandler.RegisterRoutes(api)
	}
	if cfg.RepaymentHandler != nil {
		cfg.RepaymentHandler.RegisterRoutes(api)
	}
	if cfg.ReferenceHandler != nil {
		cfg.ReferenceHandler.RegisterRoutes(api)
	}

	return r
}

//Personal.AI order the ending
