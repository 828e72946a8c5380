package bytestore

import "io"

// Source supplies bytes from a transient external buffer. CopyIn copies
// up to len(dst) bytes into dst and reports how many were transferred.
// A count below len(dst) signals a partial transfer; 0 signals a failed
// one. The store never retains a reference to the external buffer.
type Source interface {
	CopyIn(dst []byte) int
}

// Sink receives bytes into an external buffer. Same short-transfer
// convention as Source.
type Sink interface {
	CopyOut(src []byte) int
}

// BytesSource adapts an in-memory byte slice to Source.
type BytesSource []byte

func (b BytesSource) CopyIn(dst []byte) int { return copy(dst, b) }

// BytesSink adapts a caller-owned byte slice to Sink.
type BytesSink []byte

func (b BytesSink) CopyOut(src []byte) int { return copy(b, src) }

// WriterSink adapts an io.Writer to Sink. A write error surfaces as a
// short transfer.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) CopyOut(src []byte) int {
	n, _ := s.W.Write(src)
	return n
}
