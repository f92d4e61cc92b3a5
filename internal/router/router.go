package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pageza/kitchen-assistant/backend/config"
	"github.com/pageza/kitchen-assistant/backend/internal/api"
	"github.com/pageza/kitchen-assistant/backend/internal/middleware"
)

// SetupRouter configures the application routes. rateLimiter may be nil.
func SetupRouter(
	cfg *config.Config,
	analyzeHandler *api.AnalyzeHandler,
	rateLimiter *middleware.RateLimiter,
	logger *slog.Logger,
) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxContentLength

	router.Use(
		middleware.RequestID(),
		middleware.Metrics(),
		middleware.Logging(logger),
		middleware.Recovery(logger, api.MsgUnexpected),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	// Operational routes are never rate limited
	router.GET("/health", api.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	app := router.Group("")
	if rateLimiter != nil {
		app.Use(rateLimiter.RateLimitMiddleware())
	}
	{
		app.GET("/", api.Index)
		app.POST("/analyze", analyzeHandler.Analyze)
	}

	return router
}
