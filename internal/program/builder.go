// Package program builds valid IHVM program blobs without hand-packing
// bitfields inline, adapted from the teacher's assembler package: where
// bassosimone-risc32/pkg/asm/instruction.go defines one struct per
// opcode with an Encode(labels, pc) method, this package exposes one
// builder method per opcode on a single Builder, appending to an
// internal buffer via internal/encoding.Encode. There is no textual
// assembly syntax here (the teacher's lexer/parser was not available to
// carry forward, and spec.md has no text-format requirement), only the
// binary-blob construction the teacher's Encode step performed last.
package program

import (
	"github.com/cavern-os/cavern/internal/encoding"
)

// Builder accumulates instructions into a program blob.
type Builder struct {
	buf []byte
	err error
	ops []encoding.Op
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) emit(op encoding.Op) *Builder {
	if b.err != nil {
		return b
	}
	buf, err := encoding.Encode(b.buf, op)
	if err != nil {
		b.err = err
		return b
	}
	b.buf = buf
	b.ops = append(b.ops, op)
	return b
}

// Nop appends a nop instruction.
func (b *Builder) Nop() *Builder { return b.emit(encoding.Op{Kind: encoding.OpNop}) }

// Halt appends a halt instruction.
func (b *Builder) Halt() *Builder { return b.emit(encoding.Op{Kind: encoding.OpHalt}) }

// Move appends move dst, src.
func (b *Builder) Move(dst, src uint8) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpMove, Rd: dst, Rs1: src})
}

// LoadImm appends a load_imm of the narrowest width that can hold value,
// zero-extending into dst.
func (b *Builder) LoadImm(dst uint8, value uint64) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpLoadImm, Rd: dst, ImmWidth: narrowestWidth(value), Imm: value})
}

// LoadImmRetain appends a load_imm of the narrowest width that can hold
// value, preserving dst's bits above that width instead of clearing them.
func (b *Builder) LoadImmRetain(dst uint8, value uint64) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpLoadImm, Rd: dst, ImmWidth: narrowestWidth(value), Imm: value, Retain: true})
}

func narrowestWidth(v uint64) encoding.ImmWidth {
	switch {
	case v <= 0xFFFF:
		return encoding.ImmWidth16
	case v <= 0xFFFFFFFF:
		return encoding.ImmWidth32
	case v <= 0xFFFFFFFFFFFF:
		return encoding.ImmWidth48
	default:
		return encoding.ImmWidth64
	}
}

// Load appends load dst, region[offsetReg].
func (b *Builder) Load(dst, region, offsetReg uint8, atomic bool) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpLoad, Rd: dst, Region: region, OffsetReg: offsetReg, Atomic: atomic})
}

// Store appends store region[offsetReg], valueReg.
func (b *Builder) Store(region, offsetReg, valueReg uint8, atomic bool) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpStore, Region: region, OffsetReg: offsetReg, ValueReg: valueReg, Atomic: atomic})
}

// Arith appends dst = rs1 <variant> rs2.
func (b *Builder) Arith(dst, rs1, rs2 uint8, variant encoding.ArithVariant) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpArith, Rd: dst, Rs1: rs1, Rs2: rs2, Arith: variant})
}

// Branch appends a forward branch of offset instructions, conditioned
// on kind applied to testReg.
func (b *Builder) Branch(kind encoding.BranchKind, testReg uint8, offset int32) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpBranch, BranchTest: kind, TestReg: testReg, BranchOffset: offset})
}

// LoopBegin appends a loop marker whose iteration count is held in
// countReg; callers must close it with a matching LoopEnd.
func (b *Builder) LoopBegin(countReg uint8) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpLoopBegin, LoopCountReg: countReg})
}

// LoopEnd closes the nearest open LoopBegin.
func (b *Builder) LoopEnd() *Builder { return b.emit(encoding.Op{Kind: encoding.OpLoopEnd}) }

// Send appends send region, len=lengthReg -> outReg.
func (b *Builder) Send(region, lengthReg, outReg uint8) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpSend, Region: region, LengthReg: lengthReg, OutReg: outReg})
}

// Copy appends copy dstRegion[dstOffReg], srcRegion[srcOffReg], len=lengthReg.
func (b *Builder) Copy(dstRegion, dstOffReg, srcRegion, srcOffReg, lengthReg uint8) *Builder {
	return b.emit(encoding.Op{
		Kind: encoding.OpCopy, DstRegion: dstRegion, DstOffReg: dstOffReg,
		SrcRegion: srcRegion, SrcOffReg: srcOffReg, LengthReg: lengthReg,
	})
}

// LengthOf appends dst = length_of(region).
func (b *Builder) LengthOf(dst, region uint8) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpLengthOf, Rd: dst, Region: region})
}

// DebugLog appends debug_log region, len=lengthReg.
func (b *Builder) DebugLog(region, lengthReg uint8) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpDebugLog, Region: region, LengthReg: lengthReg})
}

// Panic appends panic code, a 23-bit immediate surfaced to the host as
// the low bits of the USER_PANIC code.
func (b *Builder) Panic(code uint32) *Builder {
	return b.emit(encoding.Op{Kind: encoding.OpPanic, PanicCode: code})
}

// Build returns the assembled program blob, or the first error any
// emit call encountered.
func (b *Builder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out, nil
}

// Ops returns the instructions emitted so far, for callers (such as
// tests) that want the decoded form without re-decoding the blob.
func (b *Builder) Ops() []encoding.Op {
	return append([]encoding.Op(nil), b.ops...)
}
