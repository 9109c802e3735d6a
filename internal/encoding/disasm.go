package encoding

import "fmt"

// Disassemble renders op as a single line of human-readable assembly,
// in the same spirit as the teacher's own Disassemble function: one
// switch over the opcode, one fmt.Sprintf per case.
func Disassemble(op Op) string {
	switch op.Kind {
	case OpNop:
		return "nop"
	case OpHalt:
		return "halt"
	case OpMove:
		return fmt.Sprintf("move a%d a%d", op.Rd, op.Rs1)
	case OpLoad:
		suffix := ""
		if op.Atomic {
			suffix = ".atomic"
		}
		return fmt.Sprintf("load%s a%d r%d[a%d]", suffix, op.Rd, op.Region, op.OffsetReg)
	case OpStore:
		suffix := ""
		if op.Atomic {
			suffix = ".atomic"
		}
		return fmt.Sprintf("store%s r%d[a%d] a%d", suffix, op.Region, op.OffsetReg, op.ValueReg)
	case OpLoadImm:
		suffix := ""
		if op.Retain {
			suffix = ".retain"
		}
		return fmt.Sprintf("load_imm.%d%s a%d %#x", ImmWidthBits(op.ImmWidth), suffix, op.Rd, op.Imm)
	case OpArith:
		return fmt.Sprintf("%s a%d a%d a%d", arithMnemonic(op.Arith), op.Rd, op.Rs1, op.Rs2)
	case OpBranch:
		return fmt.Sprintf("branch.%s a%d %+d", branchMnemonic(op.BranchTest), op.TestReg, op.BranchOffset)
	case OpLoopBegin:
		return fmt.Sprintf("loop a%d", op.LoopCountReg)
	case OpLoopEnd:
		return "loop_end"
	case OpSend:
		return fmt.Sprintf("send r%d len=a%d -> a%d", op.Region, op.LengthReg, op.OutReg)
	case OpCopy:
		return fmt.Sprintf("copy r%d[a%d] r%d[a%d] len=a%d",
			op.DstRegion, op.DstOffReg, op.SrcRegion, op.SrcOffReg, op.LengthReg)
	case OpLengthOf:
		return fmt.Sprintf("length_of a%d r%d", op.Rd, op.Region)
	case OpDebugLog:
		return fmt.Sprintf("debug_log r%d len=a%d", op.Region, op.LengthReg)
	case OpPanic:
		return fmt.Sprintf("panic %#x", op.PanicCode)
	default:
		return fmt.Sprintf("<unknown opcode %d>", op.Kind)
	}
}

// ImmWidthBits returns the bit width w decodes to, for disassembly and
// for the exec package's load_imm.retain mask.
func ImmWidthBits(w ImmWidth) int {
	switch w {
	case ImmWidth16:
		return 16
	case ImmWidth32:
		return 32
	case ImmWidth48:
		return 48
	case ImmWidth64:
		return 64
	default:
		return 0
	}
}

var arithMnemonics = map[ArithVariant]string{
	ArithAdd: "add", ArithSub: "sub", ArithMul: "mul", ArithDiv: "div", ArithMod: "mod",
	ArithAnd: "and", ArithOr: "or", ArithXor: "xor", ArithInvert: "not",
	ArithShiftLeft: "shl", ArithShiftRight: "shr", ArithArithShiftRight: "sar",
	ArithCmpEq: "cmp_eq", ArithCmpNe: "cmp_ne", ArithCmpLt: "cmp_lt",
	ArithCmpGt: "cmp_gt", ArithCmpLe: "cmp_le", ArithCmpGe: "cmp_ge",
}

func arithMnemonic(v ArithVariant) string {
	if m, ok := arithMnemonics[v]; ok {
		return m
	}
	return "arith?"
}

var branchMnemonics = map[BranchKind]string{
	BranchAlways: "always", BranchEqualZero: "eqz", BranchNotEqualZero: "nez",
	BranchLessZero: "ltz", BranchGreaterZero: "gtz",
	BranchLessEqualZero: "lez", BranchGreaterEqualZero: "gez",
}

func branchMnemonic(k BranchKind) string {
	if m, ok := branchMnemonics[k]; ok {
		return m
	}
	return "branch?"
}

// DisassembleProgram disassembles every instruction in p, prefixing each
// line with its byte offset the way the teacher's cmd/interp prints a
// running trace.
func DisassembleProgram(p *Program) []string {
	lines := make([]string, len(p.Ops))
	for i, op := range p.Ops {
		lines[i] = fmt.Sprintf("%04x  %s", p.Offsets[i], Disassemble(op))
	}
	return lines
}
