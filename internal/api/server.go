//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/slipstream/imagefetch/internal/api/handlers"
	apimw "github.com/slipstream/imagefetch/internal/api/middleware"
	"github.com/slipstream/imagefetch/internal/api/ratelimit"
	"github.com/slipstream/imagefetch/internal/config"
	"github.com/slipstream/imagefetch/internal/health"
	"github.com/slipstream/imagefetch/internal/metadata"
	"github.com/slipstream/imagefetch/internal/scheduler"
	"github.com/slipstream/imagefetch/internal/websocket"
)

const proxyPath = "/api/v1/images/proxy"

// ProxyRecorder records proxied image downloads.
type ProxyRecorder interface {
	ObserveProxy(statusCode int)
}

// Deps are the services the API server exposes.
type Deps struct {
	Provider  metadata.ImageProvider
	Store     *config.Store
	Hub       *websocket.Hub
	Logs      LogsProvider
	Health    *health.Service
	Scheduler *scheduler.Scheduler
	Limiter   *ratelimit.IPLimiter

	// Metrics and Gatherer are optional. /metrics is served only when
	// Gatherer is set.
	Metrics  ProxyRecorder
	Gatherer prometheus.Gatherer
}

// Server handles HTTP requests for the image API.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
	cfg    *config.Config
	deps   Deps
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewIPLimiter(cfg.RateLimit.ProxyPerMinute)
	}

	s := &Server{
		echo:   e,
		logger: logger.With().Str("component", "api").Logger(),
		cfg:    cfg,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	s.echo.Use(apimw.SecurityHeaders(proxyPath))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			// URIPath rather than URI: the proxy query string carries upstream URLs.
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("path", v.URIPath).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("path", v.URIPath).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Images are already compressed and websockets cannot be gzipped.
			return c.Request().Header.Get("Upgrade") == "websocket" ||
				c.Request().URL.Path == proxyPath
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if s.deps.Gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := s.echo.Group("/api/v1")

	api.GET("/status", s.getStatus)
	api.GET("/system/health", s.getHealth)

	if s.deps.Logs != nil {
		NewLogsHandlers(s.deps.Logs).RegisterRoutes(api.Group("/system/logs"))
	}

	if s.deps.Hub != nil {
		api.GET("/ws", s.deps.Hub.HandleWebSocket)
	}

	images := NewImageHandlers(s.deps.Provider, s.deps.Store, s.deps.Metrics, s.logger)
	imageGroup := api.Group("/images")
	imageGroup.GET("/proxy", images.Proxy, s.deps.Limiter.Middleware())
	imageGroup.GET("/types/:kind", images.GetSupportedTypes)
	imageGroup.GET("/:kind/:id", images.GetImages)

	if s.deps.Scheduler != nil {
		schedulerHandler := handlers.NewSchedulerHandler(s.deps.Scheduler)
		tasks := api.Group("/scheduler/tasks")
		tasks.GET("", schedulerHandler.ListTasks)
		tasks.GET("/:id", schedulerHandler.GetTask)
		tasks.POST("/:id/run", schedulerHandler.RunTask)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
