package procfs

import (
	"github.com/TomZ28/proc-module/pkg/bytestore"
)

// StoreFileOps adapts a segmented byte store to pseudo-file callbacks:
// reads resolve the stream at the caller's offset, writes append and
// ignore the offset, matching append-only log semantics.
func StoreFileOps(s bytestore.Store) FileOps {
	return FileOps{
		Read: func(dst []byte, off int64) (int, error) {
			return s.ReadAt(bytestore.BytesSink(dst), off, len(dst))
		},
		Write: func(src []byte, off int64) (int, error) {
			// The write offset is not used for placement, but a negative
			// one is still rejected.
			if off < 0 {
				return 0, bytestore.ErrInvalidArgument
			}
			return s.Append(bytestore.BytesSource(src), len(src))
		},
	}
}
