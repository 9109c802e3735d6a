package encoding

import (
	"encoding/binary"
	"fmt"
)

// Encode appends op's wire encoding to buf and returns the extended
// slice. It returns an error if op carries a register, region, or
// variant value outside the legal range rather than silently masking it
// — the same defensive posture Decode takes on the read path.
func Encode(buf []byte, op Op) ([]byte, error) {
	word, tail, err := encodeOne(op)
	if err != nil {
		return nil, err
	}
	var head [WordSize]byte
	binary.LittleEndian.PutUint32(head[:], word)
	buf = append(buf, head[:]...)
	buf = append(buf, tail...)
	return buf, nil
}

func encodeOne(op Op) (uint32, []byte, error) {
	if err := validateOp(op); err != nil {
		return 0, nil, err
	}
	word := uint32(op.Kind) & opcodeMask
	switch op.Kind {
	case OpNop, OpHalt, OpLoopEnd:
		return word, nil, nil

	case OpMove:
		putField(&word, moveDstShift, reg5Mask, uint32(op.Rd))
		putField(&word, moveSrcShift, reg5Mask, uint32(op.Rs1))
		return word, nil, nil

	case OpLoad:
		putField(&word, loadDstShift, reg5Mask, uint32(op.Rd))
		putField(&word, loadRegionShift, reg3Mask, uint32(op.Region))
		putField(&word, loadOffRegShift, reg5Mask, uint32(op.OffsetReg))
		if op.Atomic {
			word |= 1 << loadAtomicBit
		}
		return word, nil, nil

	case OpStore:
		putField(&word, storeRegionShift, reg3Mask, uint32(op.Region))
		putField(&word, storeOffRegShift, reg5Mask, uint32(op.OffsetReg))
		putField(&word, storeValueShift, reg5Mask, uint32(op.ValueReg))
		if op.Atomic {
			word |= 1 << storeAtomicBit
		}
		return word, nil, nil

	case OpLoadImm:
		putField(&word, loadImmDstShift, reg5Mask, uint32(op.Rd))
		putField(&word, loadImmWidthShift, loadImmWidthMask, uint32(op.ImmWidth))
		if op.Retain {
			word |= 1 << loadImmRetainBit
		}
		nbytes := immWidthBytes(op.ImmWidth)
		return word, encodeImmBytes(op.Imm, nbytes), nil

	case OpArith:
		putField(&word, arithDstShift, reg5Mask, uint32(op.Rd))
		putField(&word, arithSrc1Shift, reg5Mask, uint32(op.Rs1))
		putField(&word, arithSrc2Shift, reg5Mask, uint32(op.Rs2))
		putField(&word, arithVariantShift, arithVariantMask, uint32(op.Arith))
		return word, nil, nil

	case OpBranch:
		putField(&word, branchTestKindShift, branchTestKindMask, uint32(op.BranchTest))
		putField(&word, branchTestRegShift, reg5Mask, uint32(op.TestReg))
		mask := uint32(1)<<branchOffsetBits - 1
		putField(&word, branchOffsetShift, mask, uint32(op.BranchOffset)&mask)
		return word, nil, nil

	case OpLoopBegin:
		putField(&word, loopCountRegShift, reg5Mask, uint32(op.LoopCountReg))
		return word, nil, nil

	case OpSend:
		putField(&word, sendRegionShift, reg3Mask, uint32(op.Region))
		putField(&word, sendLenRegShift, reg5Mask, uint32(op.LengthReg))
		putField(&word, sendOutRegShift, reg5Mask, uint32(op.OutReg))
		return word, nil, nil

	case OpCopy:
		putField(&word, copySrcRegionShift, reg3Mask, uint32(op.SrcRegion))
		putField(&word, copyDstRegionShift, reg3Mask, uint32(op.DstRegion))
		putField(&word, copySrcOffShift, reg5Mask, uint32(op.SrcOffReg))
		putField(&word, copyDstOffShift, reg5Mask, uint32(op.DstOffReg))
		putField(&word, copyLenRegShift, reg5Mask, uint32(op.LengthReg))
		return word, nil, nil

	case OpLengthOf:
		putField(&word, lengthOfRegionShift, reg3Mask, uint32(op.Region))
		putField(&word, lengthOfDstShift, reg5Mask, uint32(op.Rd))
		return word, nil, nil

	case OpDebugLog:
		putField(&word, debugLogRegionShift, reg3Mask, uint32(op.Region))
		putField(&word, debugLogLenRegShift, reg5Mask, uint32(op.LengthReg))
		return word, nil, nil

	case OpPanic:
		putField(&word, panicCodeShift, panicCodeMask, op.PanicCode)
		return word, nil, nil
	}
	return 0, nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, op.Kind)
}

func validateOp(op Op) error {
	regs := []uint8{op.Rd, op.Rs1, op.Rs2, op.OffsetReg, op.SrcOffReg, op.DstOffReg,
		op.LengthReg, op.ValueReg, op.OutReg, op.TestReg, op.LoopCountReg}
	for _, r := range regs {
		if r >= NumRegisters {
			return ErrRegisterRange
		}
	}
	regions := []uint8{op.Region, op.SrcRegion, op.DstRegion}
	for _, r := range regions {
		if r >= NumRegions {
			return ErrRegionRange
		}
	}
	if op.Kind == OpArith && !op.Arith.Valid() {
		return ErrBadArithVariant
	}
	if op.Kind == OpBranch && !op.BranchTest.Valid() {
		return ErrBadBranchKind
	}
	if op.Kind == OpPanic && op.PanicCode > panicCodeMask {
		return ErrImmediateRange
	}
	return nil
}
