// Package verify statically checks a decoded instruction stream before
// the execution engine ever runs it: branch direction, loop-marker
// balance and nesting depth, region bindings, and a conservative upper
// bound on cycles so a handler can never run longer than the configured
// budget regardless of which path it takes at runtime. This mirrors the
// teacher's habit of keeping fault classes (Decode vs Execute) disjoint,
// generalized into its own pre-execution pass — the same role
// oisee-z80-optimizer's search/verifier.go plays ahead of its own
// emulation loop, and calico's Block.Assemble() fixup pass plays ahead
// of program load.
package verify

import (
	"errors"
	"fmt"

	"github.com/cavern-os/cavern/internal/encoding"
)

var (
	// ErrEmptyProgram indicates a program with no instructions at all.
	ErrEmptyProgram = errors.New("verify: empty program")

	// ErrBackwardBranch indicates a branch instruction whose offset is
	// zero or negative, so its target is the next instruction, the branch
	// itself, or an earlier one — the ISA has no loops except the bounded
	// loop/loop_end primitive.
	ErrBackwardBranch = errors.New("verify: backward branch")

	// ErrBranchOutOfBounds indicates a branch target outside the
	// program.
	ErrBranchOutOfBounds = errors.New("verify: branch target out of bounds")

	// ErrUnmatchedLoop indicates a loop_begin with no corresponding
	// loop_end, or a loop_end with no open loop_begin.
	ErrUnmatchedLoop = errors.New("verify: unmatched loop marker")

	// ErrLoopNestingTooDeep indicates more than encoding.MaxLoopDepth
	// loop_begin markers open at once.
	ErrLoopNestingTooDeep = errors.New("verify: loop nesting too deep")

	// ErrRegionNotBound indicates an instruction referencing a region
	// index this handler never registered a binding for.
	ErrRegionNotBound = errors.New("verify: region not bound")

	// ErrCycleBudgetExceeded indicates the conservative upper bound on
	// cycles this program could execute exceeds the configured ceiling.
	ErrCycleBudgetExceeded = errors.New("verify: cycle budget exceeded")
)

// VerifiedProgram is a decoded program that has passed every static
// check; the execution engine accepts only this type, never a raw
// *encoding.Program.
type VerifiedProgram struct {
	Ops     []encoding.Op
	Offsets []int

	// LoopEnds maps the instruction index of each loop_begin to the
	// instruction index of its matching loop_end, so the execution
	// engine never has to re-scan for the pair at runtime.
	LoopEnds map[int]int

	// MaxCycles is a conservative upper bound on how many instructions
	// this program can execute, counting every instruction as executed
	// (no branch skips any) and every loop as running maxLoopIterations
	// times; a program containing a loop whose count exceeds the
	// configured ceiling is budgeted at exactly that ceiling.
	MaxCycles uint64
}

// BoundRegions reports, per region index, whether this handler's
// registration bound that slot — used only to catch a program that
// references a region no binding could ever make legal, not to check
// runtime offsets (those are only known once registers hold values).
type BoundRegions [encoding.NumRegions]bool

// Verify runs every static check over prog and, on success, returns a
// VerifiedProgram ready for internal/exec. maxCyclesCeiling is the
// configured budget (internal/config); a program whose conservative
// upper bound exceeds it is rejected before it ever runs once.
func Verify(prog *encoding.Program, bound BoundRegions, maxCyclesCeiling uint64) (*VerifiedProgram, error) {
	if len(prog.Ops) == 0 {
		return nil, ErrEmptyProgram
	}
	if err := checkRegions(prog.Ops, bound); err != nil {
		return nil, err
	}
	loopEnds, err := checkLoops(prog.Ops)
	if err != nil {
		return nil, err
	}
	if err := checkBranches(prog.Ops); err != nil {
		return nil, err
	}
	maxCycles := conservativeCycleBound(prog.Ops, loopEnds, maxCyclesCeiling)
	if maxCycles > maxCyclesCeiling {
		return nil, fmt.Errorf("%w: upper bound %d exceeds ceiling %d", ErrCycleBudgetExceeded, maxCycles, maxCyclesCeiling)
	}
	return &VerifiedProgram{
		Ops:       prog.Ops,
		Offsets:   prog.Offsets,
		LoopEnds:  loopEnds,
		MaxCycles: maxCycles,
	}, nil
}

func checkRegions(ops []encoding.Op, bound BoundRegions) error {
	check := func(idx int, region uint8) error {
		if !bound[region] {
			return fmt.Errorf("%w: instruction %d references region %d", ErrRegionNotBound, idx, region)
		}
		return nil
	}
	for i, op := range ops {
		switch op.Kind {
		case encoding.OpLoad, encoding.OpStore, encoding.OpSend, encoding.OpLengthOf, encoding.OpDebugLog:
			if err := check(i, op.Region); err != nil {
				return err
			}
		case encoding.OpCopy:
			if err := check(i, op.SrcRegion); err != nil {
				return err
			}
			if err := check(i, op.DstRegion); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkLoops pairs every loop_begin with the nearest following loop_end
// at the same nesting depth, rejecting unmatched markers and nesting
// beyond encoding.MaxLoopDepth.
func checkLoops(ops []encoding.Op) (map[int]int, error) {
	ends := make(map[int]int)
	var stack []int
	for i, op := range ops {
		switch op.Kind {
		case encoding.OpLoopBegin:
			stack = append(stack, i)
			if len(stack) > encoding.MaxLoopDepth {
				return nil, fmt.Errorf("%w: depth %d at instruction %d", ErrLoopNestingTooDeep, len(stack), i)
			}
		case encoding.OpLoopEnd:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: loop_end with no open loop at instruction %d", ErrUnmatchedLoop, i)
			}
			begin := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			ends[begin] = i
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: %d unclosed loop(s)", ErrUnmatchedLoop, len(stack))
	}
	return ends, nil
}

// checkBranches rejects any branch whose offset is not at least 1 (the
// offset is relative to the instruction after the branch, so an accepted
// branch always skips at least one instruction), and any target outside
// the program.
func checkBranches(ops []encoding.Op) error {
	for i, op := range ops {
		if op.Kind != encoding.OpBranch {
			continue
		}
		target := i + 1 + int(op.BranchOffset)
		if op.BranchOffset <= 0 {
			return fmt.Errorf("%w: instruction %d targets offset %d", ErrBackwardBranch, i, op.BranchOffset)
		}
		if target < 0 || target > len(ops) {
			return fmt.Errorf("%w: instruction %d targets %d", ErrBranchOutOfBounds, i, target)
		}
	}
	return nil
}

// maxLoopIterations is the conservative per-loop iteration ceiling used
// for the static cycle bound when a loop's count register is not a
// compile-time constant: the count register is 64-bit, but no single
// handler invocation can plausibly need more than this many trips
// through one loop body, so the verifier would otherwise charge this
// amount per loop — capped at maxCyclesCeiling below, since a
// data-dependent loop is budgeted at the ceiling rather than rejected
// outright, and internal/exec enforces the real per-instance cycle
// budget at runtime regardless.
const maxLoopIterations = 1 << 20

func conservativeCycleBound(ops []encoding.Op, loopEnds map[int]int, ceiling uint64) uint64 {
	return boundRange(ops, loopEnds, 0, len(ops), ceiling)
}

// boundRange computes the conservative cycle bound for ops[start:end],
// recursing into a loop's own body so nested loops multiply their
// iteration ceilings instead of each contributing only once. Each
// loop's body*maxLoopIterations share is capped at ceiling, and a range
// that contains a loop and whose total still exceeds ceiling is charged
// exactly ceiling: a data-dependent loop is budgeted at the ceiling,
// not rejected for exceeding it, matching
// internal/config.DefaultMaxCycles being the same order of magnitude
// as maxLoopIterations.
func boundRange(ops []encoding.Op, loopEnds map[int]int, start, end int, ceiling uint64) uint64 {
	var total uint64
	hasLoop := false
	i := start
	for i < end {
		if ops[i].Kind == encoding.OpLoopBegin {
			hasLoop = true
			loopEnd := loopEnds[i]
			bodyBound := boundRange(ops, loopEnds, i+1, loopEnd, ceiling)
			perLoop := bodyBound * maxLoopIterations
			if bodyBound != 0 && perLoop/bodyBound != maxLoopIterations {
				perLoop = ceiling // overflow: definitely exceeds the ceiling
			}
			if perLoop > ceiling {
				perLoop = ceiling
			}
			total += perLoop + 2
			i = loopEnd + 1
			continue
		}
		total++
		i++
	}
	if hasLoop && total > ceiling {
		total = ceiling
	}
	return total
}
