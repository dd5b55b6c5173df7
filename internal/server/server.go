package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/server/handler"
	"github.com/alanyoungcy/wagerbook/internal/server/middleware"
	"github.com/alanyoungcy/wagerbook/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	AdminAPIKey     string // admin routes refuse every request when empty
	RateLimit       int    // requests per client per window; 0 disables
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Events *handler.EventHandler
	Bets   *handler.BetHandler
	Admin  *handler.AdminHandler
}

// Server is the HTTP + WebSocket API of the book.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting, admin auth) and
// attaches the WebSocket hub. limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	registerRoutes(mux, cfg, handlers, wsHub)

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

func registerRoutes(mux *http.ServeMux, cfg Config, handlers Handlers, wsHub *ws.Hub) {
	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Events, markets and the board.
	mux.HandleFunc("GET /api/board", handlers.Events.Board)
	mux.HandleFunc("GET /api/events/{id}", handlers.Events.GetEvent)
	mux.HandleFunc("GET /api/events/{id}/markets", handlers.Events.ListMarkets)
	mux.HandleFunc("GET /api/events/{id}/markets/{name}", handlers.Events.GetMarket)

	// Bets.
	mux.HandleFunc("POST /api/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.GetBet)
	mux.HandleFunc("GET /api/users/{user}/bets", handlers.Bets.ListUserBets)

	// Operator endpoints.
	admin := middleware.Auth(cfg.AdminAPIKey)
	mux.Handle("POST /api/admin/events/{id}/settle", admin(http.HandlerFunc(handlers.Admin.Settle)))
	mux.Handle("POST /api/admin/events/{id}/void", admin(http.HandlerFunc(handlers.Admin.Void)))
	mux.Handle("POST /api/admin/events/{id}/overrides", admin(http.HandlerFunc(handlers.Admin.Override)))
	mux.Handle("GET /api/admin/audit", admin(http.HandlerFunc(handlers.Admin.ListAudit)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
