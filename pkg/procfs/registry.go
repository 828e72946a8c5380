// Package procfs is an in-process pseudo-filesystem: named entries are
// registered with read/write callbacks and served to callers through
// cursor-carrying file handles, the way a procfs node is served by its
// file ops.
package procfs

import (
	"errors"
	"io/fs"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// FileOps are the callbacks a registered entry is served by. dst and
// src are the external caller's buffers; implementations report how
// many bytes were actually transferred so the caller can advance its
// offset.
type FileOps struct {
	Read  func(dst []byte, off int64) (int, error)
	Write func(src []byte, off int64) (int, error)
}

// Errors.
var (
	ErrInvalidName  = errors.New("procfs: invalid entry name")
	ErrExists       = errors.New("procfs: entry already registered")
	ErrNotFound     = errors.New("procfs: entry not found")
	ErrPermission   = errors.New("procfs: operation not permitted by mode")
	ErrUnregistered = errors.New("procfs: entry has been unregistered")
)

// Entry is a registered pseudo-file.
type Entry struct {
	id   string
	name string
	mode fs.FileMode
	ops  FileOps
}

// ID returns the registration handle id.
func (e *Entry) ID() string { return e.id }

// Name returns the entry name.
func (e *Entry) Name() string { return e.name }

// Mode returns the entry's permission mode.
func (e *Entry) Mode() fs.FileMode { return e.mode }

// ReadAt serves one read callback invocation against the entry.
func (e *Entry) ReadAt(dst []byte, off int64) (int, error) {
	if e.mode.Perm()&0o444 == 0 {
		return 0, ErrPermission
	}
	if e.ops.Read == nil {
		return 0, ErrPermission
	}
	return e.ops.Read(dst, off)
}

// WriteAt serves one write callback invocation against the entry.
func (e *Entry) WriteAt(src []byte, off int64) (int, error) {
	if e.mode.Perm()&0o222 == 0 {
		return 0, ErrPermission
	}
	if e.ops.Write == nil {
		return 0, ErrPermission
	}
	return e.ops.Write(src, off)
}

// Registry holds the registered entries.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register creates and exposes a new entry under name.
func (r *Registry) Register(name string, mode fs.FileMode, ops FileOps) (*Entry, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	e := &Entry{
		id:   uuid.New().String(),
		name: name,
		mode: mode,
		ops:  ops,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return nil, ErrExists
	}
	r.entries[name] = e
	return e, nil
}

// Unregister removes the entry. Open handles fail afterwards.
func (r *Registry) Unregister(e *Entry) error {
	if e == nil {
		return ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries[e.name]
	if !ok || cur.id != e.id {
		return ErrNotFound
	}
	delete(r.entries, e.name)
	return nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Names returns all registered entry names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Open returns a cursor-carrying handle on the named entry.
func (r *Registry) Open(name string) (*File, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &File{reg: r, entry: e}, nil
}
