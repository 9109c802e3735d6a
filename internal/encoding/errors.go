package encoding

import (
	"errors"
	"fmt"
)

// The following sentinel errors mirror the teacher's style of one
// package-level error per failure class, wrapped with context via %w at
// the call site rather than carrying their own fields.
var (
	// ErrUnknownOpcode indicates the 7-bit opcode field does not match
	// any instruction this VM understands.
	ErrUnknownOpcode = errors.New("encoding: unknown opcode")

	// ErrReservedBitSet indicates a bit documented as reserved-must-be-zero
	// was set.
	ErrReservedBitSet = errors.New("encoding: reserved bit set")

	// ErrRegisterRange indicates a decoded register index is >= NumRegisters.
	ErrRegisterRange = errors.New("encoding: register index out of range")

	// ErrRegionRange indicates a decoded region index is >= NumRegions.
	ErrRegionRange = errors.New("encoding: region index out of range")

	// ErrBadArithVariant indicates an arith instruction's variant field
	// does not name a known operation.
	ErrBadArithVariant = errors.New("encoding: unknown arith variant")

	// ErrBadBranchKind indicates a branch instruction's test-kind field
	// does not name a known test.
	ErrBadBranchKind = errors.New("encoding: unknown branch test kind")

	// ErrTruncatedImmediate indicates a load_imm instruction's trailing
	// bytes run past the end of the program blob.
	ErrTruncatedImmediate = errors.New("encoding: truncated immediate")

	// ErrTruncatedWord indicates fewer than WordSize bytes remain where
	// a full instruction word was expected.
	ErrTruncatedWord = errors.New("encoding: truncated instruction word")

	// ErrImmediateRange indicates an immediate field value (e.g. panic's
	// 23-bit code) exceeds the width its encoding has room for.
	ErrImmediateRange = errors.New("encoding: immediate value out of range")
)

// DecodeError reports the instruction offset at which a decode failure
// happened, wrapping one of the sentinels above.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("encoding: at offset %d: %s", e.Offset, e.Err.Error())
}

func (e *DecodeError) Unwrap() error { return e.Err }
