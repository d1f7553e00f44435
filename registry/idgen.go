package registry

import "sync/atomic"

// IDGenerator mints monotonically increasing SubsID values, skipping 0
// (reserved to mean "no subscription"). Safe for concurrent use: the
// server's process-wide router mints across sessions running on
// different goroutines, unlike the per-session Registry above.
type IDGenerator struct {
	next atomic.Uint32
}

// NewIDGenerator constructs a generator whose first Next() call returns 1.
func NewIDGenerator() *IDGenerator {
	g := &IDGenerator{}
	g.next.Store(1)
	return g
}

// Next returns the next subscription id.
func (g *IDGenerator) Next() SubsID {
	return SubsID(g.next.Add(1) - 1)
}
