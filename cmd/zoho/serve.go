package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/zoho-client/pkg/client"
	"github.com/Sternrassler/zoho-client/pkg/metrics"
	"github.com/Sternrassler/zoho-client/pkg/zoho"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	proxyTimeout    = 30 * time.Second
	maxProxyBody    = 8 << 20
	shutdownTimeout = 10 * time.Second
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an authenticating HTTP proxy to the Zoho APIs",
		Long: `Serve /api/{product}/{path} and forward each call to the product API with a
valid access token and the shared rate limit gate.

Endpoints:
  /health    liveness
  /ready     readiness (pings Redis when configured)
  /metrics   Prometheus metrics
  /api/...   proxy, e.g. GET /api/crm/Leads?per_page=10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, err := a.connect()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = a.profile.Server.Addr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           newServeMux(suite, a.redis, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return runServer(cmd.Context(), srv, a.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func newServeMux(suite *zoho.Suite, rdb *redis.Client, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(rdb))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/api/{product}/{path...}", proxyHandler(suite, logger))
	return mux
}

func runServer(ctx context.Context, srv *http.Server, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting Zoho proxy server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down Zoho proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports ready when Redis, if configured, answers a ping.
func readyHandler(rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// proxyHandler forwards /api/{product}/{path...} to the product client.
func proxyHandler(suite *zoho.Suite, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := zoho.ParseProduct(r.PathValue("product"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		c := suite.Client(product)

		var body any
		if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodDelete {
			data, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			if len(data) > 0 {
				body = rawJSON(data)
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), proxyTimeout)
		defer cancel()

		resp, err := c.Do(ctx, r.Method, "/"+r.PathValue("path"), r.URL.Query(), body)
		if err != nil {
			writeProxyError(w, err)
			logger.Debug().Err(err).Str("product", string(product)).Str("path", r.URL.Path).Msg("Proxy request failed")
			return
		}

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(resp.Body); err != nil {
			logger.Warn().Err(err).Msg("Failed to write proxy response")
		}
	}
}

// rawJSON passes a request body through without re-encoding it.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return r, nil }

// writeProxyError maps a classified error onto the proxy response.
func writeProxyError(w http.ResponseWriter, err error) {
	var (
		rateErr  *client.RateLimitError
		authErr  *client.AuthError
		apiErr   *client.APIError
		validErr *client.ValidationError
	)

	switch {
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds()))
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.As(err, &authErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &validErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &apiErr) && apiErr.StatusCode > 0:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.StatusCode)
		_, _ = w.Write(apiErr.Body)
	case errors.As(err, &apiErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
