package encoding

import (
	"encoding/binary"
)

// Program is a decoded instruction stream together with the byte offset
// each Op started at, so the verifier and execution engine can report
// faults in terms of the original program-counter space.
type Program struct {
	Ops     []Op
	Offsets []int // Offsets[i] is the byte offset of Ops[i]
}

// Decode decodes every instruction in buf, front to back. It never
// panics: malformed input produces a *DecodeError naming the offset and
// sentinel reason. Decode does not validate control-flow invariants
// (branch direction, loop pairing, cycle budgets) — that is verify's job.
func Decode(buf []byte) (*Program, error) {
	prog := &Program{}
	off := 0
	for off < len(buf) {
		if len(buf)-off < WordSize {
			return nil, &DecodeError{Offset: off, Err: ErrTruncatedWord}
		}
		word := binary.LittleEndian.Uint32(buf[off:])
		op, consumed, err := decodeOne(word, buf[off+WordSize:])
		if err != nil {
			return nil, &DecodeError{Offset: off, Err: err}
		}
		prog.Ops = append(prog.Ops, op)
		prog.Offsets = append(prog.Offsets, off)
		off += WordSize + consumed
	}
	return prog, nil
}

// decodeOne decodes the leading word plus any trailing immediate bytes
// tail makes available, returning the Op and the number of trailing
// bytes consumed (0 unless the opcode is load_imm).
func decodeOne(word uint32, tail []byte) (Op, int, error) {
	opcode := Opcode(field(word, opcodeShift, opcodeMask))
	if opcode >= opcodeCount {
		return Op{}, 0, ErrUnknownOpcode
	}

	switch opcode {
	case OpNop, OpHalt, OpLoopEnd:
		if word>>7 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode}, 0, nil

	case OpMove:
		dst, src := field(word, moveDstShift, reg5Mask), field(word, moveSrcShift, reg5Mask)
		if err := checkReg(dst, src); err != nil {
			return Op{}, 0, err
		}
		if word>>17 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode, Rd: uint8(dst), Rs1: uint8(src)}, 0, nil

	case OpLoad:
		dst := field(word, loadDstShift, reg5Mask)
		region := field(word, loadRegionShift, reg3Mask)
		offReg := field(word, loadOffRegShift, reg5Mask)
		atomic := (word>>loadAtomicBit)&1 != 0
		if err := checkReg(dst, offReg); err != nil {
			return Op{}, 0, err
		}
		if err := checkRegion(region); err != nil {
			return Op{}, 0, err
		}
		if word>>21 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode, Rd: uint8(dst), Region: uint8(region), OffsetReg: uint8(offReg), Atomic: atomic}, 0, nil

	case OpStore:
		region := field(word, storeRegionShift, reg3Mask)
		offReg := field(word, storeOffRegShift, reg5Mask)
		valueReg := field(word, storeValueShift, reg5Mask)
		atomic := (word>>storeAtomicBit)&1 != 0
		if err := checkReg(offReg, valueReg); err != nil {
			return Op{}, 0, err
		}
		if err := checkRegion(region); err != nil {
			return Op{}, 0, err
		}
		if word>>21 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode, Region: uint8(region), OffsetReg: uint8(offReg), ValueReg: uint8(valueReg), Atomic: atomic}, 0, nil

	case OpLoadImm:
		dst := field(word, loadImmDstShift, reg5Mask)
		width := ImmWidth(field(word, loadImmWidthShift, loadImmWidthMask))
		retain := (word>>loadImmRetainBit)&1 != 0
		if err := checkReg(dst); err != nil {
			return Op{}, 0, err
		}
		if word>>15 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		nbytes := immWidthBytes(width)
		if len(tail) < nbytes {
			return Op{}, 0, ErrTruncatedImmediate
		}
		imm := decodeImmBytes(tail[:nbytes])
		return Op{Kind: opcode, Rd: uint8(dst), ImmWidth: width, Imm: imm, Retain: retain}, nbytes, nil

	case OpArith:
		dst := field(word, arithDstShift, reg5Mask)
		s1 := field(word, arithSrc1Shift, reg5Mask)
		s2 := field(word, arithSrc2Shift, reg5Mask)
		variant := ArithVariant(field(word, arithVariantShift, arithVariantMask))
		if err := checkReg(dst, s1, s2); err != nil {
			return Op{}, 0, err
		}
		if !variant.Valid() {
			return Op{}, 0, ErrBadArithVariant
		}
		if word>>27 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode, Rd: uint8(dst), Rs1: uint8(s1), Rs2: uint8(s2), Arith: variant}, 0, nil

	case OpBranch:
		if field(word, 7, reg5Mask) != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		kind := BranchKind(field(word, branchTestKindShift, branchTestKindMask))
		testReg := field(word, branchTestRegShift, reg5Mask)
		if !kind.Valid() {
			return Op{}, 0, ErrBadBranchKind
		}
		if err := checkReg(testReg); err != nil {
			return Op{}, 0, err
		}
		offset := signExtend(word>>branchOffsetShift, branchOffsetBits)
		return Op{Kind: opcode, BranchTest: kind, TestReg: uint8(testReg), BranchOffset: offset}, 0, nil

	case OpLoopBegin:
		countReg := field(word, loopCountRegShift, reg5Mask)
		if err := checkReg(countReg); err != nil {
			return Op{}, 0, err
		}
		if word>>12 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode, LoopCountReg: uint8(countReg)}, 0, nil

	case OpSend:
		region := field(word, sendRegionShift, reg3Mask)
		lenReg := field(word, sendLenRegShift, reg5Mask)
		outReg := field(word, sendOutRegShift, reg5Mask)
		if err := checkReg(lenReg, outReg); err != nil {
			return Op{}, 0, err
		}
		if err := checkRegion(region); err != nil {
			return Op{}, 0, err
		}
		if word>>20 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode, Region: uint8(region), LengthReg: uint8(lenReg), OutReg: uint8(outReg)}, 0, nil

	case OpCopy:
		srcRegion := field(word, copySrcRegionShift, reg3Mask)
		dstRegion := field(word, copyDstRegionShift, reg3Mask)
		srcOff := field(word, copySrcOffShift, reg5Mask)
		dstOff := field(word, copyDstOffShift, reg5Mask)
		lenReg := field(word, copyLenRegShift, reg5Mask)
		if err := checkReg(srcOff, dstOff, lenReg); err != nil {
			return Op{}, 0, err
		}
		if err := checkRegion(srcRegion, dstRegion); err != nil {
			return Op{}, 0, err
		}
		if word>>28 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{
			Kind: opcode, SrcRegion: uint8(srcRegion), DstRegion: uint8(dstRegion),
			SrcOffReg: uint8(srcOff), DstOffReg: uint8(dstOff), LengthReg: uint8(lenReg),
		}, 0, nil

	case OpLengthOf:
		region := field(word, lengthOfRegionShift, reg3Mask)
		dst := field(word, lengthOfDstShift, reg5Mask)
		if err := checkReg(dst); err != nil {
			return Op{}, 0, err
		}
		if err := checkRegion(region); err != nil {
			return Op{}, 0, err
		}
		if word>>15 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode, Region: uint8(region), Rd: uint8(dst)}, 0, nil

	case OpDebugLog:
		region := field(word, debugLogRegionShift, reg3Mask)
		lenReg := field(word, debugLogLenRegShift, reg5Mask)
		if err := checkReg(lenReg); err != nil {
			return Op{}, 0, err
		}
		if err := checkRegion(region); err != nil {
			return Op{}, 0, err
		}
		if word>>15 != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		return Op{Kind: opcode, Region: uint8(region), LengthReg: uint8(lenReg)}, 0, nil

	case OpPanic:
		if field(word, 7, 0x3) != 0 {
			return Op{}, 0, ErrReservedBitSet
		}
		code := field(word, panicCodeShift, panicCodeMask)
		return Op{Kind: opcode, PanicCode: code}, 0, nil
	}

	return Op{}, 0, ErrUnknownOpcode
}

func checkReg(regs ...uint32) error {
	for _, r := range regs {
		if r >= NumRegisters {
			return ErrRegisterRange
		}
	}
	return nil
}

func checkRegion(regions ...uint32) error {
	for _, r := range regions {
		if r >= NumRegions {
			return ErrRegionRange
		}
	}
	return nil
}

func immWidthBytes(w ImmWidth) int {
	switch w {
	case ImmWidth16:
		return 2
	case ImmWidth32:
		return 4
	case ImmWidth48:
		return 6
	case ImmWidth64:
		return 8
	default:
		return 0
	}
}

func decodeImmBytes(b []byte) uint64 {
	var v uint64
	for i, by := range b {
		v |= uint64(by) << (8 * uint(i))
	}
	return v
}

func encodeImmBytes(v uint64, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(v >> (8 * uint(i)))
	}
	return out
}

// signExtend sign-extends the low `bits` bits of v, treated as an
// already-shifted-into-place field (bit 0 of the result is bit 0 of v).
func signExtend(v uint32, bits uint) int32 {
	v &= (1 << bits) - 1
	if v&(1<<(bits-1)) != 0 {
		v |= ^uint32(0) << bits
	}
	return int32(v)
}
