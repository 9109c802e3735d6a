package encoding

// Bit layout of the leading 32-bit instruction word. Every instruction
// starts with the 7-bit opcode in bits [6:0]; the remaining 25 bits are
// carved up differently per opcode family below. Field widths are chosen
// generously (5 bits for register operands, 3 for region operands) and
// always re-validated against the true legal range at decode time instead
// of being trusted just because they fit the field — register fields are
// 5 bits wide even though only 4 are strictly needed for 16 registers, and
// a decoded value in [16, 32) is rejected rather than silently masked.
const (
	opcodeShift = 0
	opcodeMask  = 0x7f // 7 bits

	reg5Mask = 0x1f // 5-bit register/variant sub-field
	reg3Mask = 0x07 // 3-bit region sub-field
)

func field(word uint32, shift uint, mask uint32) uint32 {
	return (word >> shift) & mask
}

func putField(word *uint32, shift uint, mask, value uint32) {
	*word |= (value & mask) << shift
}

// move: opcode[6:0] dst[11:7] src[16:12]
const (
	moveDstShift = 7
	moveSrcShift = 12
)

// load: opcode[6:0] dst[11:7] region[14:12] offsetReg[19:15] atomic[20]
const (
	loadDstShift    = 7
	loadRegionShift = 12
	loadOffRegShift = 15
	loadAtomicBit   = 20
)

// store: opcode[6:0] region[9:7] offsetReg[14:10] valueReg[19:15] atomic[20]
const (
	storeRegionShift = 7
	storeOffRegShift = 10
	storeValueShift  = 15
	storeAtomicBit   = 20
)

// load_imm: opcode[6:0] dst[11:7] width[13:12] retain[14]
// the immediate itself trails the word as ImmWidth/8 little-endian bytes.
// retain=0 zero-extends into dst; retain=1 preserves dst's bits above
// the loaded width instead of clearing them.
const (
	loadImmDstShift   = 7
	loadImmWidthShift = 12
	loadImmWidthMask  = 0x3
	loadImmRetainBit  = 14
)

// arith: opcode[6:0] dst[11:7] src1[16:12] src2[21:17] variant[26:22]
const (
	arithDstShift     = 7
	arithSrc1Shift    = 12
	arithSrc2Shift    = 17
	arithVariantShift = 22
	arithVariantMask  = 0x1f
)

// branch: opcode[6:0] reserved[11:7]=0 testKind[14:12] testReg[19:15]
//
//	offset[31:20] (signed, 12 bits, counted in decoded instructions; a
//	load_imm and its trailing immediate bytes count as one)
const (
	branchTestKindShift = 12
	branchTestKindMask  = 0x7
	branchTestRegShift  = 15
	branchOffsetShift   = 20
	branchOffsetBits    = 12
)

// loop_begin: opcode[6:0] countReg[11:7]
// loop_end: opcode[6:0] only
const loopCountRegShift = 7

// send: opcode[6:0] region[9:7] lengthReg[14:10] outReg[19:15]
const (
	sendRegionShift = 7
	sendLenRegShift = 10
	sendOutRegShift = 15
)

// copy: opcode[6:0] srcRegion[9:7] dstRegion[12:10] srcOffReg[17:13]
//
//	dstOffReg[22:18] lengthReg[27:23]
const (
	copySrcRegionShift = 7
	copyDstRegionShift = 10
	copySrcOffShift    = 13
	copyDstOffShift    = 18
	copyLenRegShift    = 23
)

// length_of: opcode[6:0] region[9:7] dst[14:10]
const (
	lengthOfRegionShift = 7
	lengthOfDstShift    = 10
)

// debug_log: opcode[6:0] region[9:7] lengthReg[14:10]
const (
	debugLogRegionShift = 7
	debugLogLenRegShift = 10
)

// panic: opcode[6:0] reserved[8:7]=0 code[31:9] (23-bit immediate, spec.md
// §4.1 `{code:u23[31:9]}`)
const (
	panicCodeShift = 9
	panicCodeMask  = 0x7fffff // 23 bits
)
