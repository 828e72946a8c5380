package web

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"github.com/TomZ28/proc-module/pkg/bytestore"
	obs "github.com/TomZ28/proc-module/pkg/observability/prometheus"
	"github.com/TomZ28/proc-module/pkg/procfs"
	"github.com/TomZ28/proc-module/pkg/web/middleware/auth"
)

func newTestServer(t *testing.T, cfg *ServerConfig, maxBytes int64) (*Server, bytestore.Store) {
	t.Helper()

	store := bytestore.NewMemStore(bytestore.MemStoreConfig{MaxStoreBytes: maxBytes})
	registry := procfs.NewRegistry()
	if _, err := registry.Register("proc_module_file", 0o666, procfs.StoreFileOps(store)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	metrics := obs.NewMetrics(prometheus.NewRegistry())
	s := NewServer(cfg, registry, metrics, nil)
	t.Cleanup(func() { s.pool.Stop() })
	return s, store
}

func doRequest(t *testing.T, s *Server, method, uri string, body []byte, headers map[string]string) *fasthttp.RequestCtx {
	t.Helper()

	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != nil {
		req.SetBody(body)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	s.handleRequest(ctx)
	return ctx
}

func TestServer_Healthz(t *testing.T) {
	s, _ := newTestServer(t, nil, 0)
	ctx := doRequest(t, s, "GET", "/healthz", nil, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("unexpected status: %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Header.Peek("X-Request-ID")) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestServer_ListFiles(t *testing.T) {
	s, _ := newTestServer(t, nil, 0)
	ctx := doRequest(t, s, "GET", "/files", nil, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("unexpected status: %d", ctx.Response.StatusCode())
	}
	var body struct {
		Files []string `json:"files"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Files) != 1 || body.Files[0] != "proc_module_file" {
		t.Fatalf("unexpected files: %v", body.Files)
	}
}

func TestServer_WriteReadRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, nil, 0)

	ctx := doRequest(t, s, "POST", "/files/proc_module_file", []byte("Hello"), nil)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("write status: %d body=%s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var wrote struct {
		Written int `json:"written"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &wrote); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wrote.Written != 5 {
		t.Fatalf("expected 5 written, got %d", wrote.Written)
	}

	ctx = doRequest(t, s, "GET", "/files/proc_module_file?offset=0&len=10", nil, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("read status: %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Body()) != "Hello" {
		t.Fatalf("unexpected body: %q", ctx.Response.Body())
	}
	if got := string(ctx.Response.Header.Peek("X-Next-Offset")); got != "5" {
		t.Fatalf("unexpected next offset: %q", got)
	}
}

func TestServer_ReadStopsAtSegmentBoundary(t *testing.T) {
	s, store := newTestServer(t, nil, 0)
	if _, err := store.Append(bytestore.BytesSource("abc"), 3); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.Append(bytestore.BytesSource("defg"), 4); err != nil {
		t.Fatalf("append: %v", err)
	}

	ctx := doRequest(t, s, "GET", "/files/proc_module_file?offset=2&len=5", nil, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("read status: %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Body()) != "c" {
		t.Fatalf("expected single byte %q, got %q", "c", ctx.Response.Body())
	}
	if got := string(ctx.Response.Header.Peek("X-Next-Offset")); got != "3" {
		t.Fatalf("unexpected next offset: %q", got)
	}
}

func TestServer_ReadPastEndIsEmptySuccess(t *testing.T) {
	s, _ := newTestServer(t, nil, 0)
	ctx := doRequest(t, s, "GET", "/files/proc_module_file?offset=100", nil, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("unexpected status: %d", ctx.Response.StatusCode())
	}
	if len(ctx.Response.Body()) != 0 {
		t.Fatalf("expected empty body, got %q", ctx.Response.Body())
	}
}

func TestServer_ReadRejectsBadArguments(t *testing.T) {
	s, _ := newTestServer(t, nil, 0)

	for _, uri := range []string{
		"/files/proc_module_file?offset=-1",
		"/files/proc_module_file?offset=abc",
		"/files/proc_module_file?len=-5",
	} {
		ctx := doRequest(t, s, "GET", uri, nil, nil)
		if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", uri, ctx.Response.StatusCode())
		}
	}
}

func TestServer_UnknownFile(t *testing.T) {
	s, _ := newTestServer(t, nil, 0)
	ctx := doRequest(t, s, "GET", "/files/nope", nil, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
	ctx = doRequest(t, s, "PUT", "/files/proc_module_file", nil, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", ctx.Response.StatusCode())
	}
}

func TestServer_WriteBeyondCapacity(t *testing.T) {
	s, _ := newTestServer(t, nil, 4)
	ctx := doRequest(t, s, "POST", "/files/proc_module_file", []byte("far too large"), nil)
	if ctx.Response.StatusCode() != fasthttp.StatusInsufficientStorage {
		t.Fatalf("expected 507, got %d", ctx.Response.StatusCode())
	}
}

func TestServer_WriteAuth(t *testing.T) {
	cfg := DefaultServerConfig(":0")
	cfg.AuthSecret = "secret"
	s, _ := newTestServer(t, cfg, 0)

	ctx := doRequest(t, s, "POST", "/files/proc_module_file", []byte("x"), nil)
	if ctx.Response.StatusCode() != fasthttp.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", ctx.Response.StatusCode())
	}

	tok, err := auth.GenerateToken("secret", "writer", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	ctx = doRequest(t, s, "POST", "/files/proc_module_file", []byte("x"),
		map[string]string{"Authorization": "Bearer " + tok})
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200 with token, got %d", ctx.Response.StatusCode())
	}

	// Reads stay open.
	ctx = doRequest(t, s, "GET", "/files/proc_module_file?offset=0", nil, nil)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected unauthenticated read to pass, got %d", ctx.Response.StatusCode())
	}
}

func TestServer_ModePermissions(t *testing.T) {
	store := bytestore.NewMemStore(bytestore.MemStoreConfig{})
	registry := procfs.NewRegistry()
	if _, err := registry.Register("readonly", 0o444, procfs.StoreFileOps(store)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	metrics := obs.NewMetrics(prometheus.NewRegistry())
	s := NewServer(nil, registry, metrics, nil)
	t.Cleanup(func() { s.pool.Stop() })

	ctx := doRequest(t, s, "POST", "/files/readonly", []byte("x"), nil)
	if ctx.Response.StatusCode() != fasthttp.StatusForbidden {
		t.Fatalf("expected 403, got %d", ctx.Response.StatusCode())
	}
}
