// Package vm manages IHVM instance lifecycle: creating one machine per
// interrupt frame, seeding its interrupt-metadata registers, running the
// registered handlers for that interrupt vector in sequence, and
// propagating a handler panic back to its owning driver without
// affecting the other handlers queued behind it.
package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cavern-os/cavern/internal/exec"
	"github.com/cavern-os/cavern/internal/region"
	"github.com/cavern-os/cavern/internal/verify"
)

// InterruptMetadata seeds the handler's interrupt-number/source/time
// view. The pinned register mapping (see seed) puts these into
// A0..A3; A4..A15 always start at zero.
type InterruptMetadata struct {
	InterruptNumber uint64
	SourceID        uint64
	TimestampNanos  uint64
	HandlerTag      uint64
}

// Handler is one driver-registered program bound to an interrupt vector.
type Handler struct {
	ID     uuid.UUID
	Vector uint32
	// Slot is the handler_id the §6 panic-message wire format carries;
	// uuid.UUID is this package's own opaque identifier but the wire
	// format only has room for a u32, so each registration is also
	// assigned a small monotonic slot.
	Slot    uint32
	Program *verify.VerifiedProgram
	Bound   region.Table // per-handler region bindings, copied per run

	MaxCycles uint64
}

// PanicReporter is the narrow surface Fire uses to deliver the §6 panic
// message — `{handler_id:u32, panic_code:u64}` — to a panicked handler's
// owning driver; internal/hostbridge implements it.
type PanicReporter interface {
	ReportPanic(handlerSlot uint32, code uint64)
}

// Registry holds the handlers bound to each interrupt vector, guarded by
// one registry-wide lock: Register/Unregister take it exclusively, and
// Handlers (and so Fire) take it shared only to snapshot a vector's
// handler list — running handlers never hold it.
type Registry struct {
	mu       sync.RWMutex
	byVector map[uint32][]*Handler
	nextSlot uint32

	// slots bounds how many VM instances may be mid-flight at once for
	// this CPU, independent of how many handlers are registered.
	slots *semaphore.Weighted
}

// NewRegistry builds a registry whose concurrent-instance cap is
// maxConcurrentInstances.
func NewRegistry(maxConcurrentInstances int64) *Registry {
	return &Registry{
		byVector: make(map[uint32][]*Handler),
		slots:    semaphore.NewWeighted(maxConcurrentInstances),
	}
}

// Register binds prog to vector and returns the handler record, tagged
// with a fresh opaque ID the way google/uuid is used elsewhere in this
// pack for boot-scoped identifiers.
func (r *Registry) Register(vector uint32, prog *verify.VerifiedProgram, bound region.Table, maxCycles uint64) *Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot := r.nextSlot
	r.nextSlot++
	h := &Handler{ID: uuid.New(), Vector: vector, Slot: slot, Program: prog, Bound: bound, MaxCycles: maxCycles}
	r.byVector[vector] = append(r.byVector[vector], h)
	return h
}

// Unregister removes a previously registered handler by ID.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for vector, handlers := range r.byVector {
		for i, h := range handlers {
			if h.ID == id {
				r.byVector[vector] = append(handlers[:i], handlers[i+1:]...)
				return
			}
		}
	}
}

// Handlers returns the handlers currently bound to vector, in
// registration order — spec.md's "sequential execution of multiple
// registered handlers per interrupt".
func (r *Registry) Handlers(vector uint32) []*Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handler, len(r.byVector[vector]))
	copy(out, r.byVector[vector])
	return out
}

// HandlerResult reports the outcome of running one handler.
type HandlerResult struct {
	HandlerID uuid.UUID
	State     exec.State
	PanicCode exec.PanicCode
	Err       error
}

// Fire runs every handler registered for vector, in order, acquiring one
// concurrency slot per handler run and seeding each machine's registers
// from meta before calling internal/exec. A handler panic is recorded in
// its own HandlerResult, reported to reporter per spec.md §6, and does
// not stop later handlers from running. reporter may be nil.
func (r *Registry) Fire(ctx context.Context, vector uint32, meta InterruptMetadata, sender exec.Sender, logger exec.Logger, reporter PanicReporter) ([]HandlerResult, error) {
	handlers := r.Handlers(vector)
	results := make([]HandlerResult, 0, len(handlers))
	for _, h := range handlers {
		if err := r.slots.Acquire(ctx, 1); err != nil {
			return results, fmt.Errorf("vm: acquiring instance slot: %w", err)
		}
		state, code, err := runOne(h, meta, sender, logger)
		r.slots.Release(1)
		if state == exec.Panicked && reporter != nil {
			reporter.ReportPanic(h.Slot, uint64(code))
		}
		results = append(results, HandlerResult{HandlerID: h.ID, State: state, PanicCode: code, Err: err})
	}
	return results, nil
}

func runOne(h *Handler, meta InterruptMetadata, sender exec.Sender, logger exec.Logger) (exec.State, exec.PanicCode, error) {
	regions := h.Bound
	m := exec.NewMachine(&regions, sender, logger)
	seed(m, meta)
	return m.Run(h.Program, h.MaxCycles)
}

// seed pins the interrupt-metadata-to-register mapping: A0 = interrupt
// number, A1 = source identifier, A2 = timestamp (monotonic ns at VM
// creation; the program cannot refresh it), A3 = handler-identity tag,
// A4..A15 = 0.
func seed(m *exec.Machine, meta InterruptMetadata) {
	for i := range m.Registers {
		m.Registers[i] = 0
	}
	m.Registers[0] = meta.InterruptNumber
	m.Registers[1] = meta.SourceID
	m.Registers[2] = meta.TimestampNanos
	m.Registers[3] = meta.HandlerTag
}
