package procfs

import (
	"fmt"
	"io"
	"sync"
)

// File is an open handle on a registered entry. It owns the caller-side
// offset: each Read or Write invokes the entry's callback and advances
// the cursor by however many bytes the callback reports.
type File struct {
	reg   *Registry
	entry *Entry

	mu  sync.Mutex
	off int64
}

// Name returns the underlying entry name.
func (f *File) Name() string { return f.entry.name }

// Offset returns the current cursor position.
func (f *File) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.off
}

func (f *File) live() error {
	cur, ok := f.reg.Lookup(f.entry.name)
	if !ok || cur.id != f.entry.id {
		return ErrUnregistered
	}
	return nil
}

// Read implements io.Reader. A zero-byte transfer with no callback
// error means end of stream.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.live(); err != nil {
		return 0, err
	}
	n, err := f.entry.ReadAt(p, f.off)
	f.off += int64(n)
	if err != nil {
		return n, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer. Short writes are surfaced as such; the
// cursor advances only by what the callback stored.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.live(); err != nil {
		return 0, err
	}
	n, err := f.entry.WriteAt(p, f.off)
	f.off += int64(n)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek implements io.Seeker for SeekStart and SeekCurrent. SeekEnd is
// not supported: the registry has no notion of an entry's size.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.off + offset
	default:
		return 0, fmt.Errorf("procfs: unsupported whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("procfs: negative seek position %d", next)
	}
	f.off = next
	return next, nil
}
