// Command server runs the notes REST API, with the same notes exposed as MCP
// tools at /mcp.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/notes-api/internal/api"
	"github.com/kuitang/notes-api/internal/config"
	"github.com/kuitang/notes-api/internal/mcp"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/kuitang/notes-api/internal/ratelimit"
)

func main() {
	noMCP, noRateLimit, addr := config.ParseFlags()
	cfg, err := config.LoadConfig(noMCP, noRateLimit, addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	obs.Init(obs.ParseLevel(cfg.LogLevel))
	cfg.PrintStartupSummary()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		obs.Pkg("main").Error("server_failed", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg *config.Config) error {
	logger := obs.Pkg("main")

	svc := notes.NewService(notes.NewMemStore(nil))
	handler, cleanup := newHandler(cfg, svc)
	defer cleanup()

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listening", "addr", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutting_down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server_stopped", "notes", svc.Count())
	return nil
}

// newHandler assembles routes and middleware. The returned cleanup stops
// background work owned by the handler chain.
func newHandler(cfg *config.Config, svc *notes.Service) (http.Handler, func()) {
	mux := http.NewServeMux()
	api.NewHandler(svc, cfg.MaxBodyBytes).RegisterRoutes(mux)

	if !cfg.NoMCP {
		mountMCPRoute(mux, "/mcp", mcp.NewServer(svc))
	}

	var handler http.Handler = api.Recover(mux)
	cleanup := func() {}
	if !cfg.NoRateLimit {
		keyFunc := ratelimit.ClientKey
		if cfg.TrustForwardedFor {
			keyFunc = ratelimit.ForwardedClientKey
		}
		limiter := ratelimit.NewRateLimiter(cfg.RateLimitConfig)
		handler = ratelimit.Middleware(limiter, keyFunc)(handler)
		cleanup = limiter.Stop
	}

	handler = obs.AccessLogMiddleware("http", handler)
	handler = obs.RequestContextMiddleware(handler)
	return handler, cleanup
}

// mountMCPRoute registers every Streamable HTTP method on path. The MCP
// server itself decides which methods it answers.
func mountMCPRoute(mux *http.ServeMux, path string, handler http.Handler) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions} {
		mux.Handle(method+" "+path, handler)
	}
}
