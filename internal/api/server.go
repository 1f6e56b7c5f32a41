package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smartgarage/garage-core/internal/accesslog"
	"github.com/smartgarage/garage-core/internal/auth"
	"github.com/smartgarage/garage-core/internal/garage"
	"github.com/smartgarage/garage-core/internal/infrastructure/config"
	"github.com/smartgarage/garage-core/internal/infrastructure/logging"
	"github.com/smartgarage/garage-core/internal/relay"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Registry    *relay.Registry
	Relay       *relay.Relay
	Broadcaster *relay.Broadcaster
	Garages     garage.Repository
	Users       auth.UserRepository
	AccessLog   accesslog.Repository
	Version     string
}

// Server is the HTTP API and WebSocket session gateway for Garage Core.
//
// It manages the HTTP listener, routes, middleware, and the upgrade path
// for device and observer sessions. The server is created with New() and
// started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	registry    *relay.Registry
	relay       *relay.Relay
	broadcaster *relay.Broadcaster
	garages     garage.Repository
	users       auth.UserRepository
	accessLog   accesslog.Repository
	version     string
	server      *http.Server
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Relay == nil {
		return nil, fmt.Errorf("command relay is required")
	}
	if deps.Broadcaster == nil {
		return nil, fmt.Errorf("state broadcaster is required")
	}
	if deps.Garages == nil {
		return nil, fmt.Errorf("garage repository is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	// AccessLog is optional; command attempts go unrecorded without it.

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		registry:    deps.Registry,
		relay:       deps.Relay,
		broadcaster: deps.Broadcaster,
		garages:     deps.Garages,
		users:       deps.Users,
		accessLog:   deps.AccessLog,
		version:     deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background work independently
	// of the parent context.
	_, s.cancel = context.WithCancel(ctx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections. Live WebSocket sessions are
// torn down via the registry and broadcaster, which the main process
// closes separately.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
