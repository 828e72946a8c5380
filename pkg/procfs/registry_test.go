package procfs

import (
	"bytes"
	"io"
	"testing"

	"github.com/TomZ28/proc-module/pkg/bytestore"
)

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	r := NewRegistry()

	e, err := r.Register("proc_module_file", 0o666, FileOps{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if e.ID() == "" {
		t.Fatalf("expected non-empty handle id")
	}

	if _, err := r.Register("proc_module_file", 0o666, FileOps{}); err != ErrExists {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := r.Register("", 0o666, FileOps{}); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	if _, ok := r.Lookup("proc_module_file"); !ok {
		t.Fatalf("expected lookup to find entry")
	}
	if got := r.Names(); len(got) != 1 || got[0] != "proc_module_file" {
		t.Fatalf("unexpected names: %v", got)
	}

	if err := r.Unregister(e); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := r.Unregister(e); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second unregister, got %v", err)
	}
	if _, ok := r.Lookup("proc_module_file"); ok {
		t.Fatalf("entry still visible after unregister")
	}
}

func TestEntry_ModeEnforcement(t *testing.T) {
	r := NewRegistry()
	ops := StoreFileOps(bytestore.NewMemStore(bytestore.MemStoreConfig{}))

	ro, err := r.Register("readonly", 0o444, ops)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := ro.WriteAt([]byte("x"), 0); err != ErrPermission {
		t.Fatalf("expected ErrPermission on write, got %v", err)
	}

	wo, err := r.Register("writeonly", 0o222, ops)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := wo.ReadAt(make([]byte, 1), 0); err != ErrPermission {
		t.Fatalf("expected ErrPermission on read, got %v", err)
	}
}

func TestFile_CursorAdvancesAcrossSegments(t *testing.T) {
	r := NewRegistry()
	store := bytestore.NewMemStore(bytestore.MemStoreConfig{})
	if _, err := r.Register("proc_module_file", 0o666, StoreFileOps(store)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	f, err := r.Open("proc_module_file")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, chunk := range []string{"Hello", "World"} {
		n, err := f.Write([]byte(chunk))
		if err != nil {
			t.Fatalf("write %q: %v", chunk, err)
		}
		if n != len(chunk) {
			t.Fatalf("short write: %d", n)
		}
	}
	if f.Offset() != 10 {
		t.Fatalf("expected write cursor 10, got %d", f.Offset())
	}

	// A fresh handle reads the stream from the start; io.ReadAll keeps
	// issuing follow-up reads, so segment-bounded reads still drain
	// everything.
	g, err := r.Open("proc_module_file")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, err := io.ReadAll(g)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, []byte("HelloWorld")) {
		t.Fatalf("unexpected stream: %q", got)
	}
}

func TestFile_SeekAndReadAtOffset(t *testing.T) {
	r := NewRegistry()
	store := bytestore.NewMemStore(bytestore.MemStoreConfig{})
	if _, err := r.Register("f", 0o666, StoreFileOps(store)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	f, err := r.Open("f")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write([]byte("abcdef")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Writes advance the same cursor, so rewind before reading.
	if _, err := f.Seek(2, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	buf := make([]byte, 3)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "cde" {
		t.Fatalf("unexpected read: %q", buf[:n])
	}
	if f.Offset() != 5 {
		t.Fatalf("expected cursor 5, got %d", f.Offset())
	}

	if _, err := f.Seek(-10, io.SeekCurrent); err == nil {
		t.Fatalf("expected error for negative seek")
	}
	if _, err := f.Seek(0, io.SeekEnd); err == nil {
		t.Fatalf("expected error for SeekEnd")
	}
}

func TestFile_FailsAfterUnregister(t *testing.T) {
	r := NewRegistry()
	store := bytestore.NewMemStore(bytestore.MemStoreConfig{})
	e, err := r.Register("f", 0o666, StoreFileOps(store))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	f, err := r.Open("f")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := r.Unregister(e); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	if _, err := f.Read(make([]byte, 1)); err != ErrUnregistered {
		t.Fatalf("expected ErrUnregistered on read, got %v", err)
	}
	if _, err := f.Write([]byte("x")); err != ErrUnregistered {
		t.Fatalf("expected ErrUnregistered on write, got %v", err)
	}
}

func TestStoreFileOps_ErrorPassThrough(t *testing.T) {
	store := bytestore.NewMemStore(bytestore.MemStoreConfig{MaxStoreBytes: 2})
	ops := StoreFileOps(store)

	if _, err := ops.Read(make([]byte, 4), -1); err != bytestore.ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := ops.Write([]byte("x"), -1); err != bytestore.ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for negative write offset, got %v", err)
	}
	if _, err := ops.Write([]byte("toolong"), 0); err != bytestore.ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}
