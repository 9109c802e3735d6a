package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cavern-os/cavern/internal/encoding"
	"github.com/cavern-os/cavern/internal/region"
	"github.com/cavern-os/cavern/internal/verify"
)

func verifyOK(t *testing.T, ops []encoding.Op) *verify.VerifiedProgram {
	t.Helper()
	var bound verify.BoundRegions
	for i := range bound {
		bound[i] = true
	}
	p := &encoding.Program{Ops: ops}
	for i := range ops {
		p.Offsets = append(p.Offsets, i*encoding.WordSize)
	}
	vp, err := verify.Verify(p, bound, 1<<20)
	require.NoError(t, err)
	return vp
}

func emptyRegions() region.Table {
	return *region.NewTable(make([]byte, 8), [encoding.NumRegions - 1]*region.Binding{})
}

func TestRegisterAndFireRunsHandler(t *testing.T) {
	prog := verifyOK(t, []encoding.Op{
		{Kind: encoding.OpMove, Rd: 4, Rs1: 0},
		{Kind: encoding.OpHalt},
	})
	reg := NewRegistry(4)
	reg.Register(7, prog, emptyRegions(), 1000)

	meta := InterruptMetadata{InterruptNumber: 7, SourceID: 2, TimestampNanos: 99, HandlerTag: 5}
	results, err := reg.Fire(context.Background(), 7, meta, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	prog := verifyOK(t, []encoding.Op{{Kind: encoding.OpHalt}})
	reg := NewRegistry(4)
	h1 := reg.Register(1, prog, emptyRegions(), 1000)
	h2 := reg.Register(1, prog, emptyRegions(), 1000)

	results, err := reg.Fire(context.Background(), 1, InterruptMetadata{}, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, h1.ID, results[0].HandlerID)
	require.Equal(t, h2.ID, results[1].HandlerID)
}

func TestUnregisterRemovesHandler(t *testing.T) {
	prog := verifyOK(t, []encoding.Op{{Kind: encoding.OpHalt}})
	reg := NewRegistry(4)
	h := reg.Register(1, prog, emptyRegions(), 1000)
	reg.Unregister(h.ID)
	require.Empty(t, reg.Handlers(1))
}

type fakeReporter struct {
	slot uint32
	code uint64
	n    int
}

func (f *fakeReporter) ReportPanic(handlerSlot uint32, code uint64) {
	f.slot = handlerSlot
	f.code = code
	f.n++
}

func TestOnePanickingHandlerDoesNotStopOthers(t *testing.T) {
	bad := verifyOK(t, []encoding.Op{{Kind: encoding.OpPanic, PanicCode: 0}})
	good := verifyOK(t, []encoding.Op{{Kind: encoding.OpHalt}})
	reg := NewRegistry(4)
	badHandler := reg.Register(1, bad, emptyRegions(), 1000)
	reg.Register(1, good, emptyRegions(), 1000)

	reporter := &fakeReporter{}
	results, err := reg.Fire(context.Background(), 1, InterruptMetadata{}, nil, nil, reporter)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)

	require.Equal(t, 1, reporter.n)
	require.Equal(t, badHandler.Slot, reporter.slot)
	require.Equal(t, uint64(results[0].PanicCode), reporter.code)
}
