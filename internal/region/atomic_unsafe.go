package region

import "unsafe"

// ptr reinterprets the first 8 bytes of b as a *uint64 so sync/atomic can
// operate on it directly. Callers have already bounds- and
// alignment-checked b before calling this.
func ptr(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}
