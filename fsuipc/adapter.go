package fsuipc

import (
	"encoding/binary"
	"slices"
	"sync"

	"github.com/flightvars/flightvars/config"
)

// ValuedOffset pairs an offset declaration with its raw on-wire bytes, in
// host-native byte order, matching the width implied by Offset.Length.
type ValuedOffset struct {
	Offset config.Offset
	Bytes  []byte
}

// Adapter is the abstract interface the sampler depends on to read and
// write simulator memory. schedule_read/schedule_write queue work;
// commit performs it all in one batch against the backing memory region
// and clears the queues. The core never depends on anything more
// concrete than this.
type Adapter interface {
	ScheduleRead(vo *ValuedOffset) error
	ScheduleWrite(vo ValuedOffset) error
	Commit() error
}

// NullAdapter stands in for the real simulator-memory adapter, which is
// out of scope for this core: every operation fails with
// ErrAdapterUnavailable.
type NullAdapter struct{}

func (NullAdapter) ScheduleRead(vo *ValuedOffset) error  { return ErrAdapterUnavailable }
func (NullAdapter) ScheduleWrite(vo ValuedOffset) error  { return ErrAdapterUnavailable }
func (NullAdapter) Commit() error                        { return ErrAdapterUnavailable }

// DummyAdapter is a pure in-memory stand-in backed by a 64 KiB byte array,
// used by tests and demo binaries. Multi-byte values are kept
// little-endian in the array whatever the host: ValuedOffset bytes come
// and go in host-native order (binary.NativeEndian, in value.go), and
// Commit reverses them on a big-endian host. Seed writes raw bytes into
// the array with no conversion.
type DummyAdapter struct {
	mu   sync.Mutex
	mem  [65536]byte
	rq   []*ValuedOffset
	wq   []ValuedOffset
}

// NewDummyAdapter constructs an empty dummy adapter.
func NewDummyAdapter() *DummyAdapter {
	return &DummyAdapter{}
}

// Seed writes initial bytes at addr, used by tests to set up a starting
// value before the sampler's first tick.
func (a *DummyAdapter) Seed(addr uint16, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	copy(a.mem[addr:], data)
}

func (a *DummyAdapter) ScheduleRead(vo *ValuedOffset) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rq = append(a.rq, vo)
	return nil
}

func (a *DummyAdapter) ScheduleWrite(vo ValuedOffset) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := ValuedOffset{Offset: vo.Offset, Bytes: append([]byte(nil), vo.Bytes...)}
	a.wq = append(a.wq, cp)
	return nil
}

func (a *DummyAdapter) Commit() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	bigEndianHost := binary.NativeEndian.Uint16([]byte{0x00, 0x01}) == 0x0001

	for _, w := range a.wq {
		addr := int(w.Offset.Address)
		dst := a.mem[addr : addr+int(w.Offset.Length)]
		copy(dst, w.Bytes)
		if bigEndianHost {
			slices.Reverse(dst)
		}
	}
	a.wq = a.wq[:0]

	for _, r := range a.rq {
		addr := int(r.Offset.Address)
		length := int(r.Offset.Length)
		r.Bytes = append(r.Bytes[:0], a.mem[addr:addr+length]...)
		if bigEndianHost {
			slices.Reverse(r.Bytes)
		}
	}
	a.rq = a.rq[:0]

	return nil
}
