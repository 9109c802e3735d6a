package verify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cavern-os/cavern/internal/config"
	"github.com/cavern-os/cavern/internal/encoding"
)

func prog(ops ...encoding.Op) *encoding.Program {
	p := &encoding.Program{Ops: ops}
	for i := range ops {
		p.Offsets = append(p.Offsets, i*encoding.WordSize)
	}
	return p
}

func allBound() BoundRegions {
	var b BoundRegions
	for i := range b {
		b[i] = true
	}
	return b
}

func TestVerifyAcceptsSimpleProgram(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpLoadImm, Rd: 0, ImmWidth: encoding.ImmWidth16, Imm: 1},
		encoding.Op{Kind: encoding.OpHalt},
	)
	vp, err := Verify(p, allBound(), 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(2), vp.MaxCycles)
}

func TestVerifyRejectsEmptyProgram(t *testing.T) {
	_, err := Verify(&encoding.Program{}, allBound(), 1000)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrEmptyProgram))
}

func TestVerifyRejectsBackwardBranch(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpBranch, BranchTest: encoding.BranchAlways, BranchOffset: -1},
		encoding.Op{Kind: encoding.OpHalt},
	)
	_, err := Verify(p, allBound(), 1000)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBackwardBranch))
}

func TestVerifyRejectsBranchOutOfBounds(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpBranch, BranchTest: encoding.BranchAlways, BranchOffset: 99},
		encoding.Op{Kind: encoding.OpHalt},
	)
	_, err := Verify(p, allBound(), 1000)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBranchOutOfBounds))
}

func TestVerifyAcceptsForwardBranch(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpBranch, BranchTest: encoding.BranchAlways, BranchOffset: 1},
		encoding.Op{Kind: encoding.OpNop},
		encoding.Op{Kind: encoding.OpHalt},
	)
	_, err := Verify(p, allBound(), 1000)
	require.NoError(t, err)
}

func TestVerifyRejectsUnmatchedLoopBegin(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpLoopBegin, LoopCountReg: 0},
		encoding.Op{Kind: encoding.OpHalt},
	)
	_, err := Verify(p, allBound(), 1000)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnmatchedLoop))
}

func TestVerifyRejectsUnmatchedLoopEnd(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpLoopEnd},
		encoding.Op{Kind: encoding.OpHalt},
	)
	_, err := Verify(p, allBound(), 1000)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnmatchedLoop))
}

func TestVerifyRejectsExcessiveLoopNesting(t *testing.T) {
	var ops []encoding.Op
	depth := encoding.MaxLoopDepth + 1
	for i := 0; i < depth; i++ {
		ops = append(ops, encoding.Op{Kind: encoding.OpLoopBegin})
	}
	for i := 0; i < depth; i++ {
		ops = append(ops, encoding.Op{Kind: encoding.OpLoopEnd})
	}
	_, err := Verify(prog(ops...), allBound(), 1<<40)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrLoopNestingTooDeep))
}

func TestVerifyRejectsUnboundRegion(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpLoad, Rd: 0, Region: 3, OffsetReg: 1},
		encoding.Op{Kind: encoding.OpHalt},
	)
	var bound BoundRegions
	bound[encoding.ScratchRegion] = true
	_, err := Verify(p, bound, 1000)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRegionNotBound))
}

func TestVerifyRejectsCycleBudgetOverrun(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpNop},
		encoding.Op{Kind: encoding.OpNop},
		encoding.Op{Kind: encoding.OpNop},
		encoding.Op{Kind: encoding.OpHalt},
	)
	_, err := Verify(p, allBound(), 3)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCycleBudgetExceeded))
}

func TestVerifyAcceptsDataDependentLoopAtDefaultCeiling(t *testing.T) {
	// loop count comes from a register, not a compile-time constant —
	// the verifier must budget it at the ceiling rather than reject it
	// outright, per spec.md's data-dependent-loop handling.
	p := prog(
		encoding.Op{Kind: encoding.OpLoopBegin, LoopCountReg: 0},
		encoding.Op{Kind: encoding.OpNop},
		encoding.Op{Kind: encoding.OpLoopEnd},
		encoding.Op{Kind: encoding.OpHalt},
	)
	vp, err := Verify(p, allBound(), config.DefaultMaxCycles)
	require.NoError(t, err)
	require.Equal(t, uint64(config.DefaultMaxCycles), vp.MaxCycles)
}

func TestVerifyBoundsNestedLoopsMultiplicatively(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpLoopBegin, LoopCountReg: 0},
		encoding.Op{Kind: encoding.OpLoopBegin, LoopCountReg: 1},
		encoding.Op{Kind: encoding.OpNop},
		encoding.Op{Kind: encoding.OpLoopEnd},
		encoding.Op{Kind: encoding.OpLoopEnd},
		encoding.Op{Kind: encoding.OpHalt},
	)
	// inner loop: 1<<20 cycles; outer loop multiplies that past 1<<30, so
	// the program is budgeted at the ceiling (a flat count would stay
	// near 3<<20).
	vp, err := Verify(p, allBound(), 1<<30)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<30), vp.MaxCycles)
}

func TestLoopEndsMapping(t *testing.T) {
	p := prog(
		encoding.Op{Kind: encoding.OpLoopBegin},
		encoding.Op{Kind: encoding.OpNop},
		encoding.Op{Kind: encoding.OpLoopEnd},
		encoding.Op{Kind: encoding.OpHalt},
	)
	vp, err := Verify(p, allBound(), 1<<30)
	require.NoError(t, err)
	require.Equal(t, 2, vp.LoopEnds[0])
}
