// ABOUTME: Server assembly: store, auth resolver, OTP registry, and HTTP surface
// ABOUTME: Run blocks until context cancellation, then shuts down gracefully

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/drawbridgehq/drawbridge/internal/api"
	"github.com/drawbridgehq/drawbridge/internal/auth"
	"github.com/drawbridgehq/drawbridge/internal/config"
	"github.com/drawbridgehq/drawbridge/internal/metrics"
	"github.com/drawbridgehq/drawbridge/internal/otp"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

// Server owns every long-lived component of a drawbridge instance.
type Server struct {
	config       *config.Config
	store        store.Store
	registry     *otp.Registry
	securityKeys *otp.SecurityKeyProvider // nil when the provider is disabled
	metrics      *metrics.Metrics
	httpServer   *http.Server
	logger       *slog.Logger
}

// New assembles a server from configuration. The store is opened here; call
// Shutdown (or Run to completion) to release it.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	srv := &Server{
		config:  cfg,
		store:   s,
		metrics: metrics.New(),
		logger:  logger.With("component", "server"),
	}

	srv.registry = otp.NewRegistry(cfg.OTP, srv.metrics)
	if cfg.OTP.TOTP.Enabled {
		srv.registry.Register(otp.NewTOTPProvider(cfg.OTP.TOTP, s, s))
	}
	if cfg.OTP.SecurityKey.Enabled {
		keys, err := otp.NewSecurityKeyProvider(cfg.OTP.SecurityKey, s, s)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("initializing security key provider: %w", err)
		}
		srv.securityKeys = keys
		srv.registry.Register(keys)
	}

	resolver := auth.NewResolver(
		auth.NewSessionVerifier(s, s),
		auth.NewBearerVerifier(s, s),
		srv.registry,
		srv.metrics,
	)

	var challenges *auth.ChallengeIssuer
	if cfg.Auth.JWTSecret != "" {
		challenges = auth.NewChallengeIssuer([]byte(cfg.Auth.JWTSecret))
	} else {
		logger.Warn("step-up login disabled - no jwt_secret configured")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", srv.handleHealth)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, srv.metrics.Handler())
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}

	api.New(s, cfg.API, resolver, srv.registry, challenges).RegisterRoutes(mux)

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		_ = s.close()
		return fmt.Errorf("listening on %s: %w", s.config.Server.HTTPAddr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown stops the HTTP server and releases every held resource.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := s.close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// close releases non-HTTP resources.
func (s *Server) close() error {
	if s.securityKeys != nil {
		s.securityKeys.Close()
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
