package exec

import (
	"errors"

	"github.com/cavern-os/cavern/internal/region"
)

// PanicCode is the 64-bit fault code spec.md §6/§7 requires the owning
// driver to receive: the high 16 bits identify the fault kind, the low
// 48 bits carry a kind-specific detail — the offending offset for
// PanicOutOfBounds, the region index for PanicAccessViolation and
// PanicAbsentRegion, the user-supplied 23-bit code for PanicUser, and
// zero for the remaining kinds.
type PanicCode uint64

const panicDetailMask = 0x0000_ffff_ffff_ffff

// Fault kinds, one per §7 table entry. halt never produces one of these.
const (
	PanicDivByZero       PanicCode = 0x0001 << 48
	PanicOutOfBounds     PanicCode = 0x0002 << 48
	PanicAccessViolation PanicCode = 0x0003 << 48
	PanicAbsentRegion    PanicCode = 0x0004 << 48
	PanicLoopDepth       PanicCode = 0x0005 << 48
	PanicCycleExhausted  PanicCode = 0x0006 << 48
	PanicUser            PanicCode = 0x0007 << 48
)

func withDetail(kind PanicCode, detail uint64) PanicCode {
	return kind | PanicCode(detail&panicDetailMask)
}

// classifyFault maps a runtime fault returned from a region access or
// arithmetic operation to its §7 wire-format panic code. The `panic`
// instruction builds its own PanicUser code directly from the decoded
// immediate rather than going through here.
func classifyFault(err error) PanicCode {
	var f *region.Fault
	switch {
	case errors.As(err, &f):
		switch {
		case errors.Is(f, region.ErrAccessViolation):
			return withDetail(PanicAccessViolation, f.Detail)
		case errors.Is(f, region.ErrAbsentRegion):
			return withDetail(PanicAbsentRegion, f.Detail)
		default:
			return withDetail(PanicOutOfBounds, f.Detail)
		}
	case errors.Is(err, ErrDivideByZero):
		return PanicDivByZero
	case errors.Is(err, ErrCycleBudgetExceeded):
		return PanicCycleExhausted
	case errors.Is(err, ErrLoopDepthExceeded):
		return PanicLoopDepth
	default:
		return 0
	}
}
