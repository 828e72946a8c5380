package web

import (
	"context"
	"log/slog"
	"net/http"
)

// AdminServer serves the operational plane: Prometheus metrics and the
// websocket tail endpoint.
type AdminServer struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewAdminServer creates the admin server. hub may be nil when tailing
// is not wanted.
func NewAdminServer(addr string, metricsHandler http.Handler, hub *TailHub, logger *slog.Logger) *AdminServer {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	if hub != nil {
		mux.HandleFunc("/tail/", hub.HandleWebSocket)
	}

	return &AdminServer{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// ListenAndServe blocks serving the admin endpoints.
func (a *AdminServer) ListenAndServe() error {
	a.logger.Info("admin server listening", "addr", a.srv.Addr)
	return a.srv.ListenAndServe()
}

// Shutdown gracefully stops the admin server.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}
