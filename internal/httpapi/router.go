package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"verdict/internal/config"
	"verdict/internal/logger"
	"verdict/pkg/health"
	"verdict/pkg/middleware"
	"verdict/pkg/ratelimit"
	"verdict/pkg/tracing"
)

// RouterOptions are the pieces NewRouter wires around the handler.
type RouterOptions struct {
	ServiceName string
	Health      *health.CheckerRegistry
	// RateLimit is nil when rate limiting is disabled.
	RateLimit *ratelimit.Store
}

func NewRouter(cfg *config.Config, h *Handler, log logger.Logger, opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(opts.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		if opts.Health == nil {
			c.JSON(http.StatusOK, health.Health{Status: health.StatusHealthy, Timestamp: time.Now()})
			return
		}
		report := opts.Health.Check(c.Request.Context())
		statusCode := http.StatusOK
		if report.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, report)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Server.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := router.Group("")
	api.Use(middleware.BodyLimitMiddleware(cfg.Server.MaxBodyBytes))
	if opts.RateLimit != nil {
		api.Use(ratelimit.Middleware(opts.RateLimit))
	}
	h.RegisterRoutes(api)

	return router
}

// RateLimitConfig converts the configured limits; intervals are seconds.
func RateLimitConfig(cfg config.RateLimitConfig) ratelimit.RateLimitConfig {
	return ratelimit.RateLimitConfig{
		RPS:             cfg.RPS,
		Burst:           cfg.Burst,
		CleanupInterval: time.Duration(cfg.CleanupInterval) * time.Second,
		MaxAge:          time.Duration(cfg.MaxAge) * time.Second,
	}
}
