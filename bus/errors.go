package bus

import "errors"

var (
	// ErrClosed is returned by Publish and Subscribe on a bus that has
	// already been disconnected.
	ErrClosed = errors.New("bus: disconnected")

	// ErrSubscriberBacklog is returned when a subscriber's inbound queue
	// is full; the publish that triggered it is dropped for that
	// subscriber only, not for the others.
	ErrSubscriberBacklog = errors.New("bus: subscriber backlog full")
)
