package bytestore

import (
	"sync"
	"sync/atomic"
)

// MemStoreConfig configures the in-memory segmented store.
type MemStoreConfig struct {
	// MaxStoreBytes caps resident bytes. An append that would exceed the
	// cap fails with ErrOutOfMemory. 0 means no cap.
	MaxStoreBytes int64

	// Observer receives store events. Optional.
	Observer Observer
}

// DefaultMemStoreConfig returns a conservative default config.
func DefaultMemStoreConfig() MemStoreConfig {
	return MemStoreConfig{
		MaxStoreBytes: 64 << 20, // 64MB
	}
}

// NewMemStore creates an in-memory segmented byte store.
func NewMemStore(cfg MemStoreConfig) Store {
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &memStore{cfg: cfg}
}

// segment is one immutable byte chunk produced by a single append.
type segment struct {
	data []byte
}

// memStore implements Store with:
// - a growable ordered segment slice plus a cached total length,
//   guarded as one unit by a single RWMutex
// - staged copy-in before the write lock, copy-out under the read lock
type memStore struct {
	cfg MemStoreConfig

	mu       sync.RWMutex
	torn     bool
	segments []segment
	total    int64

	// stats
	appendedBytes   int64
	readBytes       int64
	rejectedAppends int64
	copyFaults      int64
}

func (s *memStore) Append(src Source, length int) (int, error) {
	if length == 0 {
		// Empty append is a no-op: no allocation, no lock.
		return 0, nil
	}
	if length < 0 {
		return 0, ErrInvalidArgument
	}

	// Stage the external copy before taking the lock so a slow or
	// faulting source never holds up readers.
	stage := make([]byte, length)
	n := src.CopyIn(stage)
	if n == 0 {
		atomic.AddInt64(&s.copyFaults, 1)
		s.cfg.Observer.OnReject(RejectInfo{Length: length, Err: ErrCopyFault})
		return 0, ErrCopyFault
	}
	if n > length {
		n = length
	}

	// Exact-size immutable segment buffer; the stage buffer may be
	// oversized after a short copy and is discarded on return.
	data := make([]byte, n)
	copy(data, stage[:n])

	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return 0, ErrTornDown
	}
	if s.cfg.MaxStoreBytes > 0 && s.total+int64(n) > s.cfg.MaxStoreBytes {
		s.mu.Unlock()
		atomic.AddInt64(&s.rejectedAppends, 1)
		s.cfg.Observer.OnReject(RejectInfo{Length: length, Err: ErrOutOfMemory})
		return 0, ErrOutOfMemory
	}
	off := s.total
	s.segments = append(s.segments, segment{data: data})
	s.total += int64(n)
	s.mu.Unlock()

	atomic.AddInt64(&s.appendedBytes, int64(n))
	s.cfg.Observer.OnAppend(AppendInfo{Offset: off, Length: n})
	return n, nil
}

func (s *memStore) ReadAt(dst Sink, off int64, maxLen int) (int, error) {
	if off < 0 {
		return 0, ErrInvalidArgument
	}
	if maxLen <= 0 {
		return 0, nil
	}

	s.mu.RLock()
	if s.torn {
		s.mu.RUnlock()
		return 0, ErrTornDown
	}
	if off >= s.total {
		// End of stream, not an error.
		s.mu.RUnlock()
		return 0, nil
	}

	// Resolve the segment containing off: walk in stream order with a
	// running start position. Exactly one segment matches while the
	// length invariant holds.
	var pos int64
	for i := range s.segments {
		data := s.segments[i].data
		next := pos + int64(len(data))
		if off < next {
			readSize := next - off
			if int64(maxLen) < readSize {
				readSize = int64(maxLen)
			}
			// Copy-out happens under the shared lock: the segment is
			// immutable, but teardown must not race the copy.
			n := dst.CopyOut(data[off-pos : off-pos+readSize])
			s.mu.RUnlock()
			if n == 0 {
				atomic.AddInt64(&s.copyFaults, 1)
				return 0, ErrCopyFault
			}
			atomic.AddInt64(&s.readBytes, int64(n))
			s.cfg.Observer.OnRead(ReadInfo{Offset: off, Length: n})
			return n, nil
		}
		pos = next
	}
	s.mu.RUnlock()

	// Unreachable while total == sum(segment lengths); treat a failed
	// resolution as end of stream rather than crashing.
	return 0, nil
}

func (s *memStore) Len() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func (s *memStore) SegmentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

func (s *memStore) Stats() Stats {
	s.mu.RLock()
	stored := s.total
	segs := int64(len(s.segments))
	s.mu.RUnlock()
	return Stats{
		StoredBytes:     stored,
		Segments:        segs,
		AppendedBytes:   atomic.LoadInt64(&s.appendedBytes),
		ReadBytes:       atomic.LoadInt64(&s.readBytes),
		RejectedAppends: atomic.LoadInt64(&s.rejectedAppends),
		CopyFaults:      atomic.LoadInt64(&s.copyFaults),
	}
}

func (s *memStore) Teardown() {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	segs := len(s.segments)
	bytes := s.total
	s.segments = nil
	s.total = 0
	s.torn = true
	s.mu.Unlock()

	s.cfg.Observer.OnTeardown(TeardownInfo{Segments: segs, Bytes: bytes})
}

// Compile-time interface assertion.
var _ Store = (*memStore)(nil)
