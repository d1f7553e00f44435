// Package bus implements the duplex pub/sub channel the core depends on
// as a pluggable transport: an in-process implementation (Memory) and a
// Redis-backed one (Redis) satisfy the same interface, so nothing
// upstream changes when the transport does.
package bus

// Handler receives a published payload for a topic matching one of the
// subscriber's filters.
type Handler func(topic string, payload []byte)

// Bus is a duplex pub/sub channel with topics and wildcard filter
// patterns ('+' single level, '#' trailing catch-all). Quality of
// service is a hint; level 0 (at-most-once, no ack) is sufficient for
// every core consumer. Per-topic FIFO within a single publisher is
// required; ordering across topics or publishers is not promised.
type Bus interface {
	// Publish delivers payload to every subscriber whose filter matches
	// topic. When retain is true, payload is remembered as topic's
	// retained value: a subscription made after this call whose filter
	// matches topic receives it immediately, once, before any further
	// live publishes. A zero-length retained payload clears any
	// previously retained value for topic; it is still delivered to the
	// current matching subscribers like any other publish.
	Publish(topic string, payload []byte, retain bool) error

	// Subscribe registers handler against filter, returning an
	// opaque subscription id for later Unsubscribe.
	Subscribe(filter string, handler Handler) (string, error)

	// Unsubscribe removes a subscription previously returned by
	// Subscribe.
	Unsubscribe(id string) error

	// Disconnect releases all of the bus's resources. On a disconnected
	// bus, Publish and Subscribe return ErrClosed; a repeated Disconnect
	// returns nil.
	Disconnect() error
}
