package hostbridge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendEnqueuesAndAssignsID(t *testing.T) {
	b := New(2, nil)
	id1, ok := b.Send([]byte("a"))
	require.True(t, ok)
	require.Equal(t, uint64(1), id1)
	id2, ok := b.Send([]byte("b"))
	require.True(t, ok)
	require.Equal(t, uint64(2), id2)
}

func TestSendRejectsWhenFull(t *testing.T) {
	b := New(1, nil)
	_, ok := b.Send([]byte("a"))
	require.True(t, ok)
	_, ok = b.Send([]byte("b"))
	require.False(t, ok)
}

func TestDrainReturnsFIFOAndClears(t *testing.T) {
	b := New(4, nil)
	b.Send([]byte("a"))
	b.Send([]byte("b"))
	msgs := b.Drain()
	require.Len(t, msgs, 2)
	require.Equal(t, []byte("a"), msgs[0].Payload)
	require.Equal(t, []byte("b"), msgs[1].Payload)
	require.Equal(t, 0, b.Len())
}

func TestDebugLogDoesNotPanic(t *testing.T) {
	b := New(1, nil)
	require.NotPanics(t, func() {
		b.DebugLog("tag", []byte("payload"))
	})
}

func TestClockMetadataSourceStampsVector(t *testing.T) {
	src := NewClockMetadataSource(9, 3)
	meta := src.ReadInterruptMetadata(42)
	require.Equal(t, uint64(42), meta.InterruptNumber)
	require.Equal(t, uint64(9), meta.SourceID)
	require.Equal(t, uint64(3), meta.HandlerTag)
	require.NotZero(t, meta.TimestampNanos)
}
