package hostbridge

import (
	"time"

	"github.com/cavern-os/cavern/internal/vm"
)

// MetadataSource supplies the seed for a freshly created VM instance;
// the kernel's real implementation would read this off the current
// interrupt frame, a simulated one (used by ihvmctl and tests) can hand
// back fixed or scripted values.
type MetadataSource interface {
	ReadInterruptMetadata(vector uint32) vm.InterruptMetadata
}

// ClockMetadataSource is a MetadataSource that stamps every read with
// the current wall-clock time, for use outside a real kernel frame.
type ClockMetadataSource struct {
	SourceID   uint64
	HandlerTag uint64
	clock      func() time.Time
}

// NewClockMetadataSource builds a source using the real wall clock.
func NewClockMetadataSource(sourceID, handlerTag uint64) *ClockMetadataSource {
	return &ClockMetadataSource{SourceID: sourceID, HandlerTag: handlerTag, clock: time.Now}
}

// ReadInterruptMetadata implements MetadataSource.
func (c *ClockMetadataSource) ReadInterruptMetadata(vector uint32) vm.InterruptMetadata {
	now := time.Now()
	if c.clock != nil {
		now = c.clock()
	}
	return vm.InterruptMetadata{
		InterruptNumber: uint64(vector),
		SourceID:        c.SourceID,
		TimestampNanos:  uint64(now.UnixNano()),
		HandlerTag:      c.HandlerTag,
	}
}
