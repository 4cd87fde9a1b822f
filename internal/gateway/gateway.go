// ABOUTME: Gateway orchestrator that serves the progress HTTP API
// ABOUTME: Owns the SQLite store, auth verifier, listeners and health endpoints lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/folio-gateway/internal/auth"
	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/progress"
	"github.com/2389/folio-gateway/internal/store"
)

// maxLookupIDs caps the ids accepted by one lookup request.
const maxLookupIDs = 200

// Gateway serves reading progress for authenticated principals and article
// metadata for everyone.
type Gateway struct {
	config      *config.Config
	store       *store.SQLiteStore
	verifier    *auth.JWTVerifier
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	excluded map[progress.EntityID]bool
	now      func() time.Time
}

// initStore opens the SQLite store named by config or FOLIO_DB_PATH.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("FOLIO_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, s, logger), nil
}

// NewWithStore creates a Gateway over an already opened store. The gateway
// takes ownership of s and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s *store.SQLiteStore, logger *slog.Logger) *Gateway {
	gw := &Gateway{
		config:   cfg,
		store:    s,
		logger:   logger.With("component", "gateway"),
		excluded: make(map[progress.EntityID]bool),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, id := range cfg.Readings.ExcludedIDs {
		gw.excluded[progress.EntityID(id)] = true
	}

	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	mux.HandleFunc("/config", gw.handleConfig)
	mux.HandleFunc("/lookup", gw.handleLookup)

	gw.registerProgressRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return gw
}

// registerProgressRoutes adds the per-principal endpoints. Without a JWT
// secret there is no way to identify a principal, so they are not served.
func (g *Gateway) registerProgressRoutes(mux *http.ServeMux) {
	if g.config.Auth.JWTSecret == "" {
		g.logger.Warn("auth.jwt_secret not set: progress endpoints disabled, only lookup is served")
		return
	}

	g.verifier = auth.NewJWTVerifier([]byte(g.config.Auth.JWTSecret))
	authMiddleware := auth.HTTPAuthMiddleware(g.store, g.verifier, g.logger)

	mux.Handle("/progress", authMiddleware(http.HandlerFunc(g.handleProgress)))
	mux.Handle("/mark", authMiddleware(http.HandlerFunc(g.handleMark)))
	mux.Handle("/readings", authMiddleware(http.HandlerFunc(g.handleReadings)))
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Store returns the gateway's store.
func (g *Gateway) Store() *store.SQLiteStore {
	return g.store
}

// setupTCPListener creates the standard TCP listener for HTTP.
func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The original context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
