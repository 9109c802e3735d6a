// Package hostbridge is the narrow surface between an IHVM instance and
// the surrounding kernel: posting messages to a driver's mailbox,
// emitting debug/panic diagnostics, and supplying the interrupt metadata
// a fresh VM instance is seeded from. This package's Bridge is an
// in-memory simulation suitable for tests and the ihvmctl CLI; a real
// kernel build would replace it with one backed by actual IPC, keeping
// the same interface.
package hostbridge

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// panicMessageSize is the §6 wire-format block size a panicked handler's
// report occupies in the driver's mailbox: a u32 handler_id, a u64
// panic_code, zero-padded to a fixed 64-byte block.
const panicMessageSize = 64

// Message is one payload a handler asked to deliver to its owning
// driver via `send`.
type Message struct {
	ID      uint64
	Payload []byte
}

// Bridge is a capacity-bounded, in-memory simulated host bridge. Its
// message queue has the same reject-when-full shape as
// KTStephano-GVM's nonBlockingChan[T]: a Send past capacity fails
// instead of blocking the handler.
type Bridge struct {
	mu       sync.Mutex
	queue    []Message
	capacity int
	nextID   uint64

	log *logrus.Logger
}

// New builds a Bridge whose message queue holds at most capacity
// messages at once.
func New(capacity int, log *logrus.Logger) *Bridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bridge{capacity: capacity, log: log}
}

// Send implements exec.Sender: it enqueues payload and returns a
// monotonically increasing message ID, or ok=false if the queue is at
// capacity.
func (b *Bridge) Send(payload []byte) (messageID uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) >= b.capacity {
		b.log.WithField("capacity", b.capacity).Warn("hostbridge: message queue full, dropping send")
		return 0, false
	}
	b.nextID++
	cp := make([]byte, len(payload))
	copy(cp, payload)
	b.queue = append(b.queue, Message{ID: b.nextID, Payload: cp})
	if b.log.IsLevelEnabled(logrus.DebugLevel) {
		b.log.WithFields(logrus.Fields{"message_id": b.nextID, "bytes": len(payload)}).Debug("hostbridge: message queued")
	}
	return b.nextID, true
}

// DebugLog implements exec.Logger: it records a handler's debug_log
// payload at debug level, gated the way calico's bpf/asm assembler gates
// its own instruction-emission tracing behind IsLevelEnabled.
func (b *Bridge) DebugLog(tag string, payload []byte) {
	if !b.log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	b.log.WithFields(logrus.Fields{"tag": tag, "bytes": len(payload)}).Debug("hostbridge: debug_log")
}

// ReportPanic implements vm.PanicReporter: it packs the §6 panic message
// — {handler_id:u32, panic_code:u64} — into a fixed-size block and posts
// it through the same queue `send` uses, so the owning driver's mailbox
// poll picks it up like any other message. It also always logs the
// panic at warn level, since a full queue would otherwise drop the
// report silently.
func (b *Bridge) ReportPanic(handlerSlot uint32, code uint64) {
	b.log.WithFields(logrus.Fields{"handler_slot": handlerSlot, "panic_code": formatPanicCode(code)}).Warn("hostbridge: handler panicked")

	block := make([]byte, panicMessageSize)
	binary.LittleEndian.PutUint32(block[0:4], handlerSlot)
	binary.LittleEndian.PutUint64(block[4:12], code)
	if _, ok := b.Send(block); !ok {
		b.log.WithField("handler_slot", handlerSlot).Warn("hostbridge: panic report dropped, queue full")
	}
}

func formatPanicCode(code uint64) string {
	return fmt.Sprintf("%#016x", code)
}

// Drain removes and returns every message currently queued, in FIFO
// order — the shape a driver's mailbox poll uses to collect pending
// sends.
func (b *Bridge) Drain() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.queue
	b.queue = nil
	return out
}

// Len reports how many messages are currently queued.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}
