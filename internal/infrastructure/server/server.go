// Package server wires the bridge together: driver, credential store, tool
// registry, stream directory, dispatcher, and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apihttp "github.com/cartbridge/cartbridge/internal/api/http"
	"github.com/cartbridge/cartbridge/internal/api/middleware"
	"github.com/cartbridge/cartbridge/internal/credentials"
	"github.com/cartbridge/cartbridge/internal/dispatch"
	"github.com/cartbridge/cartbridge/internal/driver"
	"github.com/cartbridge/cartbridge/internal/driver/amazon"
	"github.com/cartbridge/cartbridge/internal/infrastructure/config"
	"github.com/cartbridge/cartbridge/internal/infrastructure/logging"
	"github.com/cartbridge/cartbridge/internal/infrastructure/monitoring"
	"github.com/cartbridge/cartbridge/internal/registry"
	"github.com/cartbridge/cartbridge/internal/stream"
)

const (
	serviceName    = "cartbridge"
	serviceVersion = "1.0.0"
)

// saveTimeout bounds the final cookie save during shutdown.
const saveTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies.
type Server struct {
	router  *gin.Engine
	streams *stream.Directory
	store   *credentials.Store
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	saveCancel context.CancelFunc
}

// New creates a fully wired server instance.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
	}

	logger.Info("Initializing bridge",
		zap.String("port", cfg.Server.Port),
		zap.String("base_url", cfg.Driver.BaseURL),
	)

	metrics := monitoring.NewMetrics()

	if cfg.Auth.Token == "" {
		logger.Warn("AUTH_TOKEN unset, endpoints are unauthenticated")
	}

	// The site driver is not safe for concurrent page loads against one
	// browsing context, so every caller goes through the serialized wrapper.
	site, err := amazon.New(amazon.Config{
		BaseURL: cfg.Driver.BaseURL,
		Timeout: cfg.Driver.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	drv := driver.Serialize(site)

	store := credentials.New(cfg.Credentials.File, cookieDomain(cfg.Driver.BaseURL), drv, logger)
	if applied := store.Restore(context.Background()); applied > 0 {
		logger.Info("Login session restored from disk", zap.Int("cookies", applied))
	}
	// Save immediately so a restore that dropped expired tokens is
	// reflected on disk before the first interval elapses.
	store.Save(context.Background())

	reg := registry.ForDriver(drv)
	streams := stream.NewDirectory(cfg.Stream.MessagePath, cfg.Stream.HeartbeatInterval, logger).
		WithMetrics(metrics)
	dispatcher := dispatch.New(reg, streams, dispatch.ServerInfo{
		Name:       serviceName,
		Version:    serviceVersion,
		InstanceID: uuid.NewString(),
	}, logger).WithMetrics(metrics).
		// Every tool call drives site pages and may rotate tokens.
		WithAfterToolCall(func(ctx context.Context) { store.Save(ctx) })

	handlers := apihttp.NewHandlers(streams, dispatcher, logger, serviceName, serviceVersion)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(middleware.Auth(cfg.Auth.Token))

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/sse", handlers.OpenStream)
	router.POST(cfg.Stream.MessagePath, handlers.SubmitMessage)

	logger.Info("Server initialized",
		zap.Strings("tools", toolNames(reg)),
	)

	return &Server{
		router:  router,
		streams: streams,
		store:   store,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Run starts the periodic cookie save loop and the HTTP server. It blocks
// until the listener fails.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.saveCancel = cancel
	go s.saveLoop(ctx)

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close tears down open streams and persists the login session one last
// time, bounded so shutdown cannot hang on a slow driver.
func (s *Server) Close() error {
	s.logger.Info("Shutting down...")

	if s.saveCancel != nil {
		s.saveCancel()
	}
	s.streams.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	s.store.Save(ctx)

	s.logger.Sync()
	return nil
}

// saveLoop persists cookies on a fixed interval so a crash loses at most
// one interval of session drift.
func (s *Server) saveLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Credentials.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.store.Save(ctx)
		}
	}
}

// cookieDomain derives the persistence domain filter from the driver base
// URL, e.g. https://www.amazon.com yields amazon.com.
func cookieDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func toolNames(reg *registry.Registry) []string {
	descriptors := reg.List()
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return names
}
