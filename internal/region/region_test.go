package region

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cavern-os/cavern/internal/encoding"
)

func newTestTable() *Table {
	var driver [encoding.NumRegions - 1]*Binding
	driver[0] = &Binding{Bytes: make([]byte, 16), Mode: ReadWrite, Bound: true}
	driver[1] = &Binding{Bytes: make([]byte, 8), Mode: ReadOnly, Bound: true}
	return NewTable(make([]byte, 32), driver)
}

func TestReadWriteRoundTrip(t *testing.T) {
	tbl := newTestTable()
	require.NoError(t, tbl.Write(1, 0, []byte{1, 2, 3, 4}))
	got, err := tbl.Read(1, 0, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestWriteReadOnlyFails(t *testing.T) {
	tbl := newTestTable()
	err := tbl.Write(2, 0, []byte{1})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAccessViolation))
}

func TestAbsentRegionFails(t *testing.T) {
	tbl := newTestTable()
	_, err := tbl.Read(3, 0, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAbsentRegion))
}

func TestOutOfBoundsFails(t *testing.T) {
	tbl := newTestTable()
	_, err := tbl.Read(1, 10, 10)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestCopyBetweenRegions(t *testing.T) {
	tbl := newTestTable()
	require.NoError(t, tbl.Write(0, 0, []byte{9, 9, 9}))
	require.NoError(t, tbl.Copy(1, 0, 0, 0, 3))
	got, err := tbl.Read(1, 0, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 9}, got)
}

func TestCopyIntoReadOnlyDestinationFails(t *testing.T) {
	tbl := newTestTable()
	err := tbl.Copy(2, 0, 0, 0, 3)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAccessViolation))
}

func TestAtomicRoundTrip(t *testing.T) {
	tbl := newTestTable()
	require.NoError(t, tbl.WriteWord64Atomic(1, 0, 0xdeadbeef))
	v, err := tbl.ReadWord64Atomic(1, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0xdeadbeef), v)
}

func TestAtomicUnalignedFails(t *testing.T) {
	tbl := newTestTable()
	err := tbl.WriteWord64Atomic(1, 1, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestLength(t *testing.T) {
	tbl := newTestTable()
	n, err := tbl.Length(encoding.ScratchRegion)
	require.NoError(t, err)
	require.Equal(t, 32, n)
}
