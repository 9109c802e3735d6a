package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cavern-os/cavern/internal/encoding"
)

func TestBuilderProducesDecodableProgram(t *testing.T) {
	b := NewBuilder()
	blob, err := b.
		LoadImm(0, 10).
		LoadImm(1, 3).
		Arith(2, 0, 1, encoding.ArithSub).
		Halt().
		Build()
	require.NoError(t, err)

	prog, err := encoding.Decode(blob)
	require.NoError(t, err)
	require.Equal(t, b.Ops(), prog.Ops)
}

func TestBuilderPropagatesFirstError(t *testing.T) {
	b := NewBuilder()
	_, err := b.Move(31, 0).Halt().Build()
	require.Error(t, err)
}

func TestLoadImmChoosesNarrowestWidth(t *testing.T) {
	b := NewBuilder()
	b.LoadImm(0, 5)
	require.Equal(t, encoding.ImmWidth16, b.Ops()[0].ImmWidth)

	b2 := NewBuilder()
	b2.LoadImm(0, 1<<40)
	require.Equal(t, encoding.ImmWidth48, b2.Ops()[0].ImmWidth)
}
