// Package encoding decodes and encodes IHVM instruction words.
//
// Every instruction starts with one little-endian 32-bit word (load_imm
// is followed by its immediate bytes) in bits [6:0] of which is a 7-bit
// opcode (the source spec for this ISA repeats opcode
// 0000000 for several instructions — a transcription defect; the table
// below assigns one frozen value per instruction instead, per the ABI note
// spec.md §9 asks implementers to publish).
package encoding

// Opcode identifies an instruction family. Values are frozen ABI constants:
// changing one changes the on-disk program format for every registered
// handler.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpMove
	OpLoad
	OpStore
	OpLoadImm
	OpArith
	OpBranch
	OpLoopBegin
	OpLoopEnd
	OpSend
	OpCopy
	OpLengthOf
	OpHalt
	OpDebugLog
	OpPanic

	opcodeCount
)

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "unknown"
}

var opcodeNames = [opcodeCount]string{
	OpNop:       "nop",
	OpMove:      "move",
	OpLoad:      "load",
	OpStore:     "store",
	OpLoadImm:   "load_imm",
	OpArith:     "arith",
	OpBranch:    "branch",
	OpLoopBegin: "loop",
	OpLoopEnd:   "loop_end",
	OpSend:      "send",
	OpCopy:      "copy",
	OpLengthOf:  "length_of",
	OpHalt:      "halt",
	OpDebugLog:  "debug_log",
	OpPanic:     "panic",
}

// ArithVariant is the sub-operation carried in an arith/compare instruction.
type ArithVariant uint16

const (
	ArithAdd ArithVariant = iota
	ArithSub
	ArithMul
	ArithDiv
	ArithMod
	ArithAnd
	ArithOr
	ArithXor
	ArithInvert
	ArithShiftLeft
	ArithShiftRight
	ArithArithShiftRight
	ArithCmpEq
	ArithCmpNe
	ArithCmpLt
	ArithCmpGt
	ArithCmpLe
	ArithCmpGe

	arithVariantCount
)

func (v ArithVariant) Valid() bool { return v < arithVariantCount }

func (v ArithVariant) IsCompare() bool { return v >= ArithCmpEq }

// BranchKind is the test applied to the branch's test register.
type BranchKind uint8

const (
	BranchAlways BranchKind = iota
	BranchEqualZero
	BranchNotEqualZero
	BranchLessZero
	BranchGreaterZero
	BranchLessEqualZero
	BranchGreaterEqualZero

	branchKindCount
)

func (k BranchKind) Valid() bool { return k < branchKindCount }

// ImmWidth is the bit width of a load_imm operand.
type ImmWidth uint8

const (
	ImmWidth16 ImmWidth = iota
	ImmWidth32
	ImmWidth48
	ImmWidth64
)

// NumRegisters is the number of general-purpose registers, A0..A15.
const NumRegisters = 16

// NumRegions is the number of memory regions: S (0) and R1..R7 (1..7).
const NumRegions = 8

// ScratchRegion is the index of the kernel-owned scratch region S.
const ScratchRegion = 0

// MaxLoopDepth bounds nested loop markers the verifier will accept.
const MaxLoopDepth = 8

// WordSize is the size in bytes of one instruction word before any
// trailing immediate bytes.
const WordSize = 4
