package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-pm/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Supervisor is the part of the supervisor the control surface drives.
type Supervisor interface {
	Ping() supervisor.PingInfo
	Create(ctx context.Context, def record.Definition, rewrite bool) supervisor.Outcome
	List(ctx context.Context, sel record.Selector) ([]supervisor.Entry, error)
	Status(ctx context.Context, sel record.Selector) ([]supervisor.StatusRow, error)
	Dispatch(ctx context.Context, op, token string) []supervisor.Outcome
}

// HealthChecker is implemented by the daemon's infrastructure components.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Supervisor Supervisor

	// Health lists the components reported by /health, keyed by name.
	// Only non-nil components should be added.
	Health map[string]HealthChecker

	// History is optional; GET /history answers 500 without it.
	History History

	// Metrics is optional; a fresh registry is created when nil.
	Metrics *Metrics
	Version string
}

// Server is the HTTP control surface of the daemon.
//
// It is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	supervisor Supervisor
	health     map[string]HealthChecker
	history    History
	metrics    *Metrics
	version    string
	startTime  time.Time
	server     *http.Server
	listener   net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, supervisor)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	metrics.watch(deps.Supervisor)

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		supervisor: deps.Supervisor,
		health:     deps.Health,
		history:    deps.History,
		metrics:    metrics,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Handler returns the fully wired router. Start serves it; tests may use it
// directly with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves requests in a background goroutine.
//
// Binding happens synchronously so a port already in use (usually another
// daemon) is reported to the caller.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
