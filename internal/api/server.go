package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/cashcard-core/internal/audit"
	"github.com/nerrad567/cashcard-core/internal/auth"
	"github.com/nerrad567/cashcard-core/internal/card"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/config"
	"github.com/nerrad567/cashcard-core/internal/infrastructure/logging"
	"github.com/nerrad567/cashcard-core/internal/metrics"
	"github.com/nerrad567/cashcard-core/internal/pagination"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a dependency reported by GET /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// UserCreator registers accounts for POST /createuser.
type UserCreator interface {
	Create(ctx context.Context, username, password string, role auth.Role) (*auth.Identity, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger

	Cards  *card.Service
	Paging *pagination.Resolver

	Verifier auth.Verifier
	Users    UserCreator
	Tokens   *auth.TokenService // optional; POST /token and Bearer auth are off without it

	Audit   audit.Repository // optional
	Metrics *metrics.Metrics // optional

	// Hub streams card events over WebSocket. It must also be registered
	// as a sink on Cards, so it is created by the caller.
	Hub *Hub

	// Health lists named checks for GET /health.
	Health map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for the cash card service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	cards    *card.Service
	paging   *pagination.Resolver
	verifier auth.Verifier
	users    UserCreator
	tokens   *auth.TokenService
	gate     auth.Gate
	audit    audit.Repository
	metrics  *metrics.Metrics
	hub      *Hub
	tickets  *ticketStore
	health   map[string]HealthChecker
	version  string
	server   *http.Server
	cancel   context.CancelFunc // stops the hub on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cards == nil {
		return nil, fmt.Errorf("card service is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("credential verifier is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user creator is required")
	}

	paging := deps.Paging
	if paging == nil {
		paging = pagination.NewResolver(pagination.DefaultOptions())
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}
	if deps.Config.Realm == "" {
		deps.Config.Realm = defaultRealm
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		cards:    deps.Cards,
		paging:   paging,
		verifier: deps.Verifier,
		users:    deps.Users,
		tokens:   deps.Tokens,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		hub:      hub,
		tickets:  newTicketStore(ticketTTL),
		health:   deps.Health,
		version:  deps.Version,
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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
