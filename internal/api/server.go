package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/agentchat/internal/chat"
	"github.com/agentchat/internal/logging"
	"github.com/agentchat/internal/observability"
	"github.com/agentchat/internal/personas"
)

const shutdownTimeout = 10 * time.Second

// ChatService is the coordinator behind the chat endpoints
type ChatService interface {
	Send(ctx context.Context, req chat.SendRequest) (chat.SendResult, error)
	History(ctx context.Context, threadID string) ([]chat.HistoryEntry, error)
}

// Options configures the gateway
type Options struct {
	Port        int
	FrontendURL string
	// RequestTimeout bounds each request, including the run poll loop. Zero disables it.
	RequestTimeout time.Duration

	Chat     ChatService
	Personas *personas.Catalog
	Metrics  *observability.Metrics
	// Gatherer backs /metrics. Nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
}

// Server represents the chat gateway
type Server struct {
	echo     *echo.Echo
	port     int
	chat     ChatService
	personas *personas.Catalog
	metrics  *observability.Metrics
}

// NewServer creates a new gateway
func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(logging.RequestLogger())
	e.Use(countRequests(opts.Metrics))
	if opts.FrontendURL != "" {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     []string{opts.FrontendURL},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			AllowCredentials: true,
		}))
	}
	if opts.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(opts.RequestTimeout))
	}

	server := &Server{
		echo:     e,
		port:     opts.Port,
		chat:     opts.Chat,
		personas: opts.Personas,
		metrics:  opts.Metrics,
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	server.setupRoutes(gatherer)

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	s.echo.GET("/swagger/v1/swagger.json", s.getOpenAPI)

	api := s.echo.Group("/api")

	api.GET("/chat/history", s.getHistory)
	api.POST("/chat/send", s.sendMessage)

	api.GET("/agent", s.getAgent)
	api.GET("/agents", s.listAgents)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("Starting chat gateway")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down chat gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.echo.Shutdown(shutdownCtx)
}

func countRequests(metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			metrics.HTTPRequest(c.Request().Method, path, fmt.Sprint(status))
			return err
		}
	}
}
