// Package notify publishes store append events to NATS so other
// services can follow the pseudo-file without polling it.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/TomZ28/proc-module/pkg/bytestore"
)

// Config configures the NATS notifier.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	URL string

	// Prefix is prepended to all subjects. Default: "procfile".
	Prefix string

	// Name is an optional NATS connection name.
	Name string
}

// Event is the published append notification.
type Event struct {
	File   string `json:"file"`
	Offset int64  `json:"offset"`
	Length int    `json:"length"`
	UnixMs int64  `json:"unix_ms"`
}

// Notifier publishes append events for one pseudo-file.
//
// Publishing is fire-and-forget: a failed publish is logged and counted
// but never fails the append that triggered it.
type Notifier struct {
	nc     *nats.Conn
	file   string
	prefix string
	logger *slog.Logger

	published int64
	failed    int64
}

// Subject mapping: <prefix>.append.<file> for appends,
// <prefix>.teardown.<file> at teardown.
func subject(prefix, kind, file string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, kind, file)
}

// New connects to NATS and creates a notifier for the named file.
func New(cfg Config, file string, logger *slog.Logger) (*Notifier, error) {
	if file == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "procfile"
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Notifier{
		nc:     nc,
		file:   file,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (n *Notifier) OnAppend(info bytestore.AppendInfo) {
	ev := Event{
		File:   n.file,
		Offset: info.Offset,
		Length: info.Length,
		UnixMs: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddInt64(&n.failed, 1)
		return
	}
	sub := subject(n.prefix, "append", n.file)
	if err := n.nc.Publish(sub, data); err != nil {
		atomic.AddInt64(&n.failed, 1)
		n.logger.Warn("append notification failed", "subject", sub, "error", err)
		return
	}
	atomic.AddInt64(&n.published, 1)
}

func (n *Notifier) OnRead(bytestore.ReadInfo) {}

func (n *Notifier) OnReject(bytestore.RejectInfo) {}

func (n *Notifier) OnTeardown(bytestore.TeardownInfo) {
	// Best-effort farewell so followers can reset their own offsets.
	sub := subject(n.prefix, "teardown", n.file)
	data, err := json.Marshal(Event{File: n.file, UnixMs: time.Now().UnixMilli()})
	if err != nil {
		return
	}
	if err := n.nc.Publish(sub, data); err != nil {
		n.logger.Warn("teardown notification failed", "subject", sub, "error", err)
	}
}

// Published returns the number of successfully published events.
func (n *Notifier) Published() int64 { return atomic.LoadInt64(&n.published) }

// Failed returns the number of failed publishes.
func (n *Notifier) Failed() int64 { return atomic.LoadInt64(&n.failed) }

// Close flushes and closes the NATS connection.
func (n *Notifier) Close() {
	_ = n.nc.Flush()
	n.nc.Close()
}

// Compile-time interface assertion.
var _ bytestore.Observer = (*Notifier)(nil)
