// Package web exposes the registered pseudo-files over HTTP: a
// fasthttp data plane for reads/appends and a net/http admin plane for
// metrics and websocket tailing.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/TomZ28/proc-module/pkg/bytestore"
	obs "github.com/TomZ28/proc-module/pkg/observability/prometheus"
	"github.com/TomZ28/proc-module/pkg/procfs"
	"github.com/TomZ28/proc-module/pkg/web/middleware/auth"
	"github.com/TomZ28/proc-module/pkg/worker"
)

// DefaultReadLen is the read size used when the caller does not pass
// an explicit len query parameter.
const DefaultReadLen = 4096

// MaxReadLen caps a single read request.
const MaxReadLen = 1 << 20

// ServerConfig configures the data-plane server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Workers bounds concurrent request handling; Queue bounds waiting
	// requests. Overflow is rejected with 503 (fail-fast backpressure).
	Workers int
	Queue   int

	// AuthSecret enables JWT bearer protection of appends when set.
	AuthSecret string
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig(addr string) *ServerConfig {
	return &ServerConfig{
		Addr:         addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Workers:      100,
		Queue:        1000,
	}
}

// Server serves pseudo-file reads and appends over fasthttp.
type Server struct {
	cfg      *ServerConfig
	registry *procfs.Registry
	server   *fasthttp.Server
	pool     *worker.Pool
	metrics  *obs.Metrics
	logger   *slog.Logger

	totalRequests    int64
	rejectedRequests int64
	errorRequests    int64
}

// NewServer creates the data-plane server over the given registry.
func NewServer(cfg *ServerConfig, registry *procfs.Registry, metrics *obs.Metrics, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig(":8080")
	}
	if metrics == nil {
		metrics = obs.GetMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		pool:     worker.NewPool(cfg.Workers, cfg.Queue),
		metrics:  metrics,
		logger:   logger,
	}
	s.server = &fasthttp.Server{
		Handler:               s.handleRequest,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		NoDefaultServerHeader: true,
	}
	return s
}

// ListenAndServe blocks serving requests on the configured address.
func (s *Server) ListenAndServe() error {
	s.logger.Info("data server listening", "addr", s.cfg.Addr)
	return s.server.ListenAndServe(s.cfg.Addr)
}

// Shutdown stops the server and the worker pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.ShutdownWithContext(ctx)
	s.pool.Stop()
	return err
}

// ServerMetrics is a snapshot of request counters.
type ServerMetrics struct {
	TotalRequests    int64
	RejectedRequests int64
	ErrorRequests    int64
}

// Metrics returns current request counters.
func (s *Server) Metrics() ServerMetrics {
	return ServerMetrics{
		TotalRequests:    atomic.LoadInt64(&s.totalRequests),
		RejectedRequests: atomic.LoadInt64(&s.rejectedRequests),
		ErrorRequests:    atomic.LoadInt64(&s.errorRequests),
	}
}

// handleRequest tags the request, pushes it through the bounded worker
// pool and records metrics. Overflow returns 503 immediately.
func (s *Server) handleRequest(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	atomic.AddInt64(&s.totalRequests, 1)

	requestID := string(ctx.Request.Header.Peek("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx.Response.Header.Set("X-Request-ID", requestID)

	err := s.pool.Submit(context.Background(), func(context.Context) error {
		s.route(ctx)
		return nil
	})
	if err != nil {
		atomic.AddInt64(&s.rejectedRequests, 1)
		writeJSONError(ctx, fasthttp.StatusServiceUnavailable, "server overloaded")
	}

	status := ctx.Response.StatusCode()
	if status >= 500 {
		atomic.AddInt64(&s.errorRequests, 1)
	}
	s.metrics.RecordHTTPRequest(
		string(ctx.Method()),
		routeLabel(string(ctx.Path())),
		strconv.Itoa(status),
		time.Since(start),
	)
}

// routeLabel collapses per-file paths into one metric label.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/files/") {
		return "/files/:name"
	}
	return path
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz":
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"status": "ok"})

	case path == "/files":
		if method != fasthttp.MethodGet {
			writeJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]any{"files": s.registry.Names()})

	case strings.HasPrefix(path, "/files/"):
		name := strings.TrimPrefix(path, "/files/")
		if name == "" || strings.Contains(name, "/") {
			writeJSONError(ctx, fasthttp.StatusNotFound, "not found")
			return
		}
		entry, ok := s.registry.Lookup(name)
		if !ok {
			writeJSONError(ctx, fasthttp.StatusNotFound, "no such file")
			return
		}
		switch method {
		case fasthttp.MethodGet:
			s.handleRead(ctx, entry)
		case fasthttp.MethodPost:
			s.handleWrite(ctx, entry)
		default:
			writeJSONError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		}

	default:
		writeJSONError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

// handleRead serves one read callback invocation: at most one
// segment's worth of bytes, with the advanced offset echoed back so
// the caller can follow up.
func (s *Server) handleRead(ctx *fasthttp.RequestCtx, entry *procfs.Entry) {
	args := ctx.QueryArgs()

	var off int64
	if v := args.Peek("offset"); len(v) > 0 {
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			writeJSONError(ctx, fasthttp.StatusBadRequest, "invalid offset")
			return
		}
		off = parsed
	}

	length := DefaultReadLen
	if v := args.Peek("len"); len(v) > 0 {
		parsed, err := strconv.Atoi(string(v))
		if err != nil || parsed < 0 {
			writeJSONError(ctx, fasthttp.StatusBadRequest, "invalid len")
			return
		}
		length = parsed
	}
	if length > MaxReadLen {
		length = MaxReadLen
	}

	buf := make([]byte, length)
	n, err := entry.ReadAt(buf, off)
	if err != nil {
		s.writeStoreError(ctx, err)
		return
	}

	ctx.SetContentType("application/octet-stream")
	ctx.Response.Header.Set("X-Next-Offset", strconv.FormatInt(off+int64(n), 10))
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(buf[:n])
}

func (s *Server) handleWrite(ctx *fasthttp.RequestCtx, entry *procfs.Entry) {
	if s.cfg.AuthSecret != "" {
		header := string(ctx.Request.Header.Peek("Authorization"))
		if err := auth.VerifyBearer(auth.Config{Secret: s.cfg.AuthSecret}, header); err != nil {
			writeJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
			return
		}
	}

	n, err := entry.WriteAt(ctx.PostBody(), 0)
	if err != nil {
		s.writeStoreError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"written": n})
}

func (s *Server) writeStoreError(ctx *fasthttp.RequestCtx, err error) {
	var status int
	switch {
	case errors.Is(err, bytestore.ErrInvalidArgument), errors.Is(err, bytestore.ErrCopyFault):
		status = fasthttp.StatusBadRequest
	case errors.Is(err, bytestore.ErrOutOfMemory):
		status = fasthttp.StatusInsufficientStorage
	case errors.Is(err, bytestore.ErrTornDown):
		status = fasthttp.StatusGone
	case errors.Is(err, procfs.ErrPermission):
		status = fasthttp.StatusForbidden
	default:
		status = fasthttp.StatusInternalServerError
	}
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	writeJSONError(ctx, status, err.Error())
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(body); err != nil {
		ctx.Error(fmt.Sprintf("encode: %v", err), fasthttp.StatusInternalServerError)
	}
}

func writeJSONError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]any{"error": msg})
}
