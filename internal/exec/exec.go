// Package exec is the IHVM fetch/decode/execute loop: it walks a
// verified program one instruction at a time against a register file and
// region table, enforcing the per-instance cycle budget and reporting
// faults the same way the teacher's VM.Execute does — as a returned
// error distinct from a normal halt.
package exec

import (
	"errors"
	"fmt"

	"github.com/cavern-os/cavern/internal/encoding"
	"github.com/cavern-os/cavern/internal/region"
	"github.com/cavern-os/cavern/internal/verify"
)

// State is the terminal state of a Run call.
type State uint8

const (
	Running State = iota
	Halted
	Panicked
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Panicked:
		return "panicked"
	default:
		return "unknown"
	}
}

// The following sentinel errors name each runtime fault class from the
// interrupt handler's error surface, wrapped with %w at the point of
// failure exactly like the teacher's ErrSIGSEGV/ErrNotPermitted.
var (
	// ErrDivideByZero indicates an arith.div or arith.mod by zero.
	ErrDivideByZero = errors.New("exec: divide by zero")

	// ErrCycleBudgetExceeded indicates the program ran past its
	// verified or configured cycle ceiling at runtime.
	ErrCycleBudgetExceeded = errors.New("exec: cycle budget exceeded")

	// ErrLoopDepthExceeded indicates more loop_begin markers were
	// entered at runtime than the verifier's static nesting check
	// allows — unreachable unless LoopEnds is inconsistent with Ops.
	ErrLoopDepthExceeded = errors.New("exec: loop nesting depth exceeded")

	// ErrProgramPanic indicates the program itself executed a `panic`
	// instruction.
	ErrProgramPanic = errors.New("exec: program panic")
)

// Sender is the narrow surface the execution engine needs from the host
// bridge to carry out a `send` instruction; internal/hostbridge
// implements it.
type Sender interface {
	Send(payload []byte) (messageID uint64, ok bool)
}

// Logger is the narrow surface needed to carry out `debug_log`.
type Logger interface {
	DebugLog(tag string, payload []byte)
}

// Machine is one interrupt handler's VM instance: 16 registers, an
// instruction pointer, a region table, and the cycle counter for the
// current run.
type Machine struct {
	Registers [encoding.NumRegisters]uint64
	Regions   *region.Table
	Sender    Sender
	Logger    Logger

	ip     int
	cycles uint64
}

// NewMachine seeds a fresh machine. Registers start at zero; callers
// seed the interrupt-metadata registers (A0..A3) themselves before
// calling Run, per the pinned mapping internal/vm documents.
func NewMachine(regions *region.Table, sender Sender, logger Logger) *Machine {
	return &Machine{Regions: regions, Sender: sender, Logger: logger}
}

type loopFrame struct {
	beginIP   int
	endIP     int
	remaining uint64
}

// Run executes prog to completion: Halted on a `halt` instruction or
// on running past the last instruction, Panicked (with the causing
// error and its wire-format PanicCode) on any runtime fault, including
// exhausting the cycle budget before either.
func (m *Machine) Run(prog *verify.VerifiedProgram, maxCycles uint64) (State, PanicCode, error) {
	m.ip = 0
	m.cycles = 0
	var loopStack []loopFrame

	for m.ip < len(prog.Ops) {
		if m.cycles >= maxCycles {
			err := fmt.Errorf("%w: after %d cycles", ErrCycleBudgetExceeded, m.cycles)
			return Panicked, classifyFault(err), err
		}
		op := prog.Ops[m.ip]
		m.cycles++

		switch op.Kind {
		case encoding.OpNop:
			m.ip++

		case encoding.OpHalt:
			return Halted, 0, nil

		case encoding.OpMove:
			m.Registers[op.Rd] = m.Registers[op.Rs1]
			m.ip++

		case encoding.OpLoadImm:
			if op.Retain {
				mask := retainMask(op.ImmWidth)
				m.Registers[op.Rd] = (m.Registers[op.Rd] &^ mask) | (op.Imm & mask)
			} else {
				m.Registers[op.Rd] = op.Imm
			}
			m.ip++

		case encoding.OpLoad:
			if err := m.execLoad(op); err != nil {
				return Panicked, classifyFault(err), err
			}
			m.ip++

		case encoding.OpStore:
			if err := m.execStore(op); err != nil {
				return Panicked, classifyFault(err), err
			}
			m.ip++

		case encoding.OpArith:
			if err := m.execArith(op); err != nil {
				return Panicked, classifyFault(err), err
			}
			m.ip++

		case encoding.OpBranch:
			if m.evalBranch(op) {
				m.ip += 1 + int(op.BranchOffset)
			} else {
				m.ip++
			}

		case encoding.OpLoopBegin:
			end, ok := prog.LoopEnds[m.ip]
			if !ok {
				err := fmt.Errorf("%w: no matching loop_end for ip %d", ErrLoopDepthExceeded, m.ip)
				return Panicked, classifyFault(err), err
			}
			count := m.Registers[op.LoopCountReg]
			if len(loopStack) >= encoding.MaxLoopDepth {
				err := fmt.Errorf("%w: depth %d", ErrLoopDepthExceeded, len(loopStack))
				return Panicked, classifyFault(err), err
			}
			if count == 0 {
				m.ip = end + 1
				continue
			}
			loopStack = append(loopStack, loopFrame{beginIP: m.ip, endIP: end, remaining: count - 1})
			m.ip++

		case encoding.OpLoopEnd:
			if len(loopStack) == 0 {
				err := fmt.Errorf("%w: loop_end with no open frame at ip %d", ErrLoopDepthExceeded, m.ip)
				return Panicked, classifyFault(err), err
			}
			top := &loopStack[len(loopStack)-1]
			if top.remaining > 0 {
				top.remaining--
				m.ip = top.beginIP + 1
			} else {
				loopStack = loopStack[:len(loopStack)-1]
				m.ip++
			}

		case encoding.OpSend:
			if err := m.execSend(op); err != nil {
				return Panicked, classifyFault(err), err
			}
			m.ip++

		case encoding.OpCopy:
			length := int(m.Registers[op.LengthReg])
			srcOff := int(m.Registers[op.SrcOffReg])
			dstOff := int(m.Registers[op.DstOffReg])
			if err := m.Regions.Copy(op.DstRegion, dstOff, op.SrcRegion, srcOff, length); err != nil {
				return Panicked, classifyFault(err), err
			}
			m.ip++

		case encoding.OpLengthOf:
			n, err := m.Regions.Length(op.Region)
			if err != nil {
				return Panicked, classifyFault(err), err
			}
			m.Registers[op.Rd] = uint64(n)
			m.ip++

		case encoding.OpDebugLog:
			length := int(m.Registers[op.LengthReg])
			data, err := m.Regions.Read(op.Region, 0, length)
			if err != nil {
				return Panicked, classifyFault(err), err
			}
			if m.Logger != nil {
				m.Logger.DebugLog("debug_log", data)
			}
			m.ip++

		case encoding.OpPanic:
			code := withDetail(PanicUser, uint64(op.PanicCode))
			return Panicked, code, fmt.Errorf("%w: code %#x", ErrProgramPanic, op.PanicCode)

		default:
			err := fmt.Errorf("exec: unhandled opcode %s", op.Kind)
			return Panicked, 0, err
		}
	}
	return Halted, 0, nil
}

// retainMask returns the bitmask covering the low ImmWidthBits(w) bits of a
// register, for load_imm's retain variant.
func retainMask(w encoding.ImmWidth) uint64 {
	bits := encoding.ImmWidthBits(w)
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

func (m *Machine) execLoad(op encoding.Op) error {
	offset := int(m.Registers[op.OffsetReg])
	if op.Atomic {
		v, err := m.Regions.ReadWord64Atomic(op.Region, offset)
		if err != nil {
			return err
		}
		m.Registers[op.Rd] = v
		return nil
	}
	data, err := m.Regions.Read(op.Region, offset, 8)
	if err != nil {
		return err
	}
	m.Registers[op.Rd] = decodeLE64(data)
	return nil
}

func (m *Machine) execStore(op encoding.Op) error {
	offset := int(m.Registers[op.OffsetReg])
	value := m.Registers[op.ValueReg]
	if op.Atomic {
		return m.Regions.WriteWord64Atomic(op.Region, offset, value)
	}
	return m.Regions.Write(op.Region, offset, encodeLE64(value))
}

// execSend posts a message via m.Sender and writes the assigned id into
// OutReg, or zero if the host rejects the send — a full queue is not a
// panic, per spec.md §4.1/§6: the host validates capacity and reports
// that failure in-band. Reading the payload out of the named region is
// still bounds-checked like any other region access and panics on
// failure.
func (m *Machine) execSend(op encoding.Op) error {
	length := int(m.Registers[op.LengthReg])
	payload, err := m.Regions.Read(op.Region, 0, length)
	if err != nil {
		return err
	}
	if m.Sender == nil {
		m.Registers[op.OutReg] = 0
		return nil
	}
	id, ok := m.Sender.Send(payload)
	if !ok {
		m.Registers[op.OutReg] = 0
		return nil
	}
	m.Registers[op.OutReg] = id
	return nil
}

func (m *Machine) evalBranch(op encoding.Op) bool {
	v := int64(m.Registers[op.TestReg])
	switch op.BranchTest {
	case encoding.BranchAlways:
		return true
	case encoding.BranchEqualZero:
		return v == 0
	case encoding.BranchNotEqualZero:
		return v != 0
	case encoding.BranchLessZero:
		return v < 0
	case encoding.BranchGreaterZero:
		return v > 0
	case encoding.BranchLessEqualZero:
		return v <= 0
	case encoding.BranchGreaterEqualZero:
		return v >= 0
	default:
		return false
	}
}

func decodeLE64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}

func encodeLE64(v uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * uint(i)))
	}
	return out
}
