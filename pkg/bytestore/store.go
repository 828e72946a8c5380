package bytestore

import "errors"

// Store is an in-memory append-only segmented byte store.
//
// Contract summary:
// - Append-only: segments are immutable once stored, never rewritten.
// - The logical stream is the concatenation of segments in append order.
// - ReadAt addresses the stream by offset; a single read never spans
//   two segments, callers follow up at the advanced offset.
// - Reads may run concurrently with each other; appends and teardown
//   are exclusive.
type Store interface {
	// Append stages up to length bytes from src into a new segment and
	// returns how many bytes were actually stored.
	Append(src Source, length int) (int, error)

	// ReadAt copies stream bytes starting at off into dst, at most
	// maxLen and never past the end of the segment containing off.
	// Returns how many bytes were delivered; 0 with a nil error means
	// end of stream.
	ReadAt(dst Sink, off int64, maxLen int) (int, error)

	// Len returns the logical stream length.
	Len() int64

	// SegmentCount returns the number of stored segments.
	SegmentCount() int

	Stats() Stats

	// Teardown releases every segment and resets the store. Idempotent.
	Teardown()
}

// Errors.
var (
	ErrInvalidArgument = errors.New("bytestore: invalid argument")
	ErrOutOfMemory     = errors.New("bytestore: store capacity exceeded")
	ErrCopyFault       = errors.New("bytestore: copy transferred zero bytes")
	ErrTornDown        = errors.New("bytestore: store has been torn down")
)

// Stats exposes basic operational counters.
type Stats struct {
	// Current logical stream length.
	StoredBytes int64
	// Current number of segments.
	Segments int64
	// Total bytes ever appended.
	AppendedBytes int64
	// Total bytes ever delivered to readers.
	ReadBytes int64
	// Total appends rejected by the capacity cap.
	RejectedAppends int64
	// Total zero-byte copy failures (both directions).
	CopyFaults int64
}
