package encoding

// Op is the decoded form of one instruction word. Every instruction kind
// populates a subset of these fields; unused fields are zero. This mirrors
// the flat-struct-plus-tag shape used throughout the pack's VMs (risc32's
// Decode returns every field regardless of opcode; KTStephano-GVM's
// Bytecode struct does the same) rather than a Go sum type, since none of
// the teacher or example VMs model instructions as interfaces per-opcode
// once past the assembler layer.
type Op struct {
	Kind Opcode

	// General-purpose register operands, valid range [0, NumRegisters).
	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Region operands, valid range [0, NumRegions).
	Region    uint8
	SrcRegion uint8
	DstRegion uint8

	// Offset/length/value registers used by region-access instructions.
	OffsetReg uint8
	SrcOffReg uint8
	DstOffReg uint8
	LengthReg uint8
	ValueReg  uint8
	OutReg    uint8

	Atomic bool

	Arith ArithVariant

	BranchTest BranchKind
	TestReg    uint8
	// BranchOffset is a signed displacement counted in decoded
	// instructions (a load_imm with its trailing immediate counts as one),
	// relative to the instruction immediately following the branch.
	BranchOffset int32

	// LoopCountReg holds the iteration-count register for loop_begin.
	LoopCountReg uint8

	ImmWidth ImmWidth
	// Imm is the decoded immediate value for load_imm.
	Imm uint64
	// Retain, when true, preserves dst's bits above ImmWidth instead of
	// zero-extending Imm into the full 64-bit register.
	Retain bool

	// PanicCode is the 23-bit immediate a panic instruction reports to
	// the host, packed into the low bits of the §7 USER_PANIC code.
	PanicCode uint32
}
