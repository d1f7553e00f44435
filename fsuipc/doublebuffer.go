package fsuipc

import "sync"

// DoubleBuffer holds two equal-capacity byte buffers and a current side
// index, giving the sampler a stable "previous tick" snapshot to diff
// against while it refills the "current" side with fresh reads.
type DoubleBuffer struct {
	mu      sync.Mutex
	sides   [2][]byte
	current int
}

// NewDoubleBuffer allocates a double buffer with the given per-side
// capacity.
func NewDoubleBuffer(size int) *DoubleBuffer {
	return &DoubleBuffer{sides: [2][]byte{make([]byte, size), make([]byte, size)}}
}

// Swap flips which side is current.
func (d *DoubleBuffer) Swap() {
	d.mu.Lock()
	d.current ^= 1
	d.mu.Unlock()
}

// Read copies length bytes at off from the current side.
func (d *DoubleBuffer) Read(off, length int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, length)
	copy(out, d.sides[d.current][off:off+length])
	return out
}

// Write copies data into the current side at off.
func (d *DoubleBuffer) Write(off int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.sides[d.current][off:], data)
}

// CopyIn writes length bytes from src (starting at srcOff) into the
// current side at dstOff — the shape the sampler uses to refill "current"
// from the adapter's latest reads each tick.
func (d *DoubleBuffer) CopyIn(src []byte, srcOff, dstOff, length int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.sides[d.current][dstOff:dstOff+length], src[srcOff:srcOff+length])
}

// IsModified reports whether any of the width bytes at off differ between
// the current side and the other side.
func (d *DoubleBuffer) IsModified(off, width int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	other := d.current ^ 1
	cur := d.sides[d.current][off : off+width]
	prev := d.sides[other][off : off+width]
	for i := range cur {
		if cur[i] != prev[i] {
			return true
		}
	}
	return false
}
