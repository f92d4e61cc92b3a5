package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/pageza/kitchen-assistant/backend/config"
	"github.com/pageza/kitchen-assistant/backend/internal/api"
	"github.com/pageza/kitchen-assistant/backend/internal/database"
	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/metrics"
	"github.com/pageza/kitchen-assistant/backend/internal/middleware"
	"github.com/pageza/kitchen-assistant/backend/internal/provider"
	"github.com/pageza/kitchen-assistant/backend/internal/recipe"
	"github.com/pageza/kitchen-assistant/backend/internal/retry"
	"github.com/pageza/kitchen-assistant/backend/internal/router"
	"github.com/pageza/kitchen-assistant/backend/internal/service"
	"github.com/pageza/kitchen-assistant/backend/internal/storage"
)

const rateLimitKeyPrefix = "rate_limit:client"

// Dependencies are the collaborators the HTTP server is built from.
type Dependencies struct {
	Service service.IKitchenService
	Store   storage.Store
	// Limiter may be nil to disable rate limiting.
	Limiter middleware.Limiter
}

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *slog.Logger
	redis  *redis.Client
}

// New builds every dependency from cfg and returns a ready server
func New(ctx context.Context, cfg *config.Config, l *slog.Logger) (*Server, error) {
	l = logger.OrDefault(l)

	p, err := provider.New(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model provider: %w", err)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}

	caller := retry.New(cfg.MaxRetries, cfg.RetryInitialDelay, l)
	caller.Observer = metrics.ObserveAttempt

	svc := service.NewKitchenService(p, caller, recipe.NewFormatter(nil), service.Options{
		Parallel: cfg.ParallelRecipes,
		Timeout:  cfg.RequestTimeout,
	}, l)

	deps := Dependencies{Service: svc, Store: store}

	var redisClient *redis.Client
	windows := middleware.WindowsFromConfig(cfg.RateLimitPerMinute, cfg.RateLimitPerHour)
	switch {
	case len(windows) == 0:
		l.Warn("rate limiting disabled")
	case cfg.RedisURL != "":
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL, l)
		if err != nil {
			return nil, err
		}
		deps.Limiter = middleware.NewRedisLimiter(redisClient, rateLimitKeyPrefix, windows)
	default:
		deps.Limiter = middleware.NewMemoryLimiter(windows)
	}

	s := NewServer(cfg, deps, l)
	s.redis = redisClient
	return s, nil
}

// NewServer creates a new server instance from already built dependencies
func NewServer(cfg *config.Config, deps Dependencies, l *slog.Logger) *Server {
	l = logger.OrDefault(l)

	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	analyzeHandler := api.NewAnalyzeHandler(deps.Service, deps.Store, api.UploadPolicy{
		MaxContentLength: cfg.MaxContentLength,
		IsAllowed:        cfg.IsAllowedExtension,
	}, l)

	var rateLimiter *middleware.RateLimiter
	if deps.Limiter != nil {
		rateLimiter = middleware.NewRateLimiter(deps.Limiter, l)
	}

	r := router.SetupRouter(cfg, analyzeHandler, rateLimiter, l)

	return &Server{
		router: r,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: l,
	}
}

// Handler exposes the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and releases the Redis connection
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if s.redis != nil {
		if cerr := s.redis.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close Redis: %w", cerr))
		}
	}
	return err
}
