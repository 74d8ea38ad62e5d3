package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/ecoaudit/internal/adapters/http/api"
	"github.com/okian/ecoaudit/internal/adapters/http/site"
	"github.com/okian/ecoaudit/internal/adapters/http/swagger"
	app "github.com/okian/ecoaudit/internal/app"
	"github.com/okian/ecoaudit/pkg/logger"
)

// HTTP server timeout constants. Writes are bounded by write_timeout_seconds.
const (
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Addr = addr
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides addr)")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	svc := c.newService()
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	srv, err := c.newHTTPServer(svc)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		c.log.Info(ctx, "starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	c.log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.log.Error(ctx, "server shutdown failed", logger.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	c.log.Info(ctx, "server stopped")
	return nil
}

// newHTTPServer wires the API, docs and upload page onto one chi router.
func (c *cli) newHTTPServer(svc *app.Service) (*http.Server, error) {
	cfg := c.cfg
	apiServer, err := api.NewServer(svc, svc,
		api.WithAllowedOrigins(cfg.AllowedOrigins),
		api.WithRateLimit(cfg.RateLimitPerMinute),
		api.WithMaxUploadBytes(int64(cfg.MaxUploadMB)<<20),
		api.WithLogger(c.log.Named("http")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build API: %w", err)
	}
	router := apiServer.Router()
	swagger.Register(router)
	site.Register(router)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}, nil
}
