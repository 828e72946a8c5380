package web

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TomZ28/proc-module/pkg/bytestore"
)

const tailWriteTimeout = 5 * time.Second

// tailEvent is the JSON frame sent to tailing clients.
type tailEvent struct {
	File   string `json:"file"`
	Offset int64  `json:"offset"`
	Length int    `json:"length"`
	UnixMs int64  `json:"unix_ms"`
}

// TailHub streams append events for one pseudo-file to websocket
// clients. It plugs into the store as an observer.
type TailHub struct {
	file     string
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewTailHub creates a hub for the named file.
func NewTailHub(file string, logger *slog.Logger) *TailHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &TailHub{
		file: file,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// HandleWebSocket upgrades /tail/<name> requests and registers the
// client for append events.
func (h *TailHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/tail/")
	if name != h.file {
		http.NotFound(w, r)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	// Drain client frames so pings and close messages are processed;
	// drop the client on any read error.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.remove(conn)
				return
			}
		}
	}()
}

// ClientCount returns the number of connected clients.
func (h *TailHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *TailHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// broadcast writes the event to every client; writes are serialized
// under the hub lock since websocket connections permit one writer.
func (h *TailHub) broadcast(ev tailEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(tailWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			delete(h.conns, conn)
			_ = conn.Close()
		}
	}
}

func (h *TailHub) OnAppend(info bytestore.AppendInfo) {
	h.broadcast(tailEvent{
		File:   h.file,
		Offset: info.Offset,
		Length: info.Length,
		UnixMs: time.Now().UnixMilli(),
	})
}

func (h *TailHub) OnRead(bytestore.ReadInfo) {}

func (h *TailHub) OnReject(bytestore.RejectInfo) {}

// OnTeardown disconnects every client; the stream is gone.
func (h *TailHub) OnTeardown(bytestore.TeardownInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "torn down"),
			time.Now().Add(tailWriteTimeout))
		_ = conn.Close()
		delete(h.conns, conn)
	}
}

// Compile-time interface assertion.
var _ bytestore.Observer = (*TailHub)(nil)
