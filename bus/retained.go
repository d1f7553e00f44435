package bus

import (
	"context"

	"github.com/flightvars/flightvars/store"
	"github.com/flightvars/flightvars/topic"
)

// RetainedValue is one topic's last retained publish.
type RetainedValue struct {
	Topic   string
	Payload []byte
}

// RetainedCache remembers the last retained payload per concrete topic,
// backed by a generic store.Store so the in-memory, Pebble, or Redis
// implementation can be swapped without touching bus code. A publish
// with an empty payload clears the topic's retained value rather than
// storing an empty one, mirroring MQTT's own retained-message semantics.
type RetainedCache struct {
	backing store.Store[[]byte]
}

// NewRetainedCache wraps backing as a retained-value cache.
func NewRetainedCache(backing store.Store[[]byte]) *RetainedCache {
	return &RetainedCache{backing: backing}
}

// NewMemoryRetainedCache constructs a RetainedCache over the in-process
// store, the default for bus.Memory.
func NewMemoryRetainedCache() *RetainedCache {
	return NewRetainedCache(store.NewMemoryStore[[]byte]())
}

// NewPebbleRetainedCache constructs a RetainedCache backed by an
// on-disk Pebble store, for deployments that want the last retained
// value per topic to survive a broker restart.
func NewPebbleRetainedCache(path string) (*RetainedCache, error) {
	backing, err := store.NewPebbleStore[[]byte](store.PebbleStoreConfig{
		Path:   path,
		Prefix: "retained:",
	})
	if err != nil {
		return nil, err
	}
	return NewRetainedCache(backing), nil
}

// Set stores payload as topicName's retained value, or clears it when
// payload is empty.
func (c *RetainedCache) Set(topicName string, payload []byte) {
	ctx := context.Background()
	if len(payload) == 0 {
		_ = c.backing.Delete(ctx, topicName)
		return
	}
	_ = c.backing.Save(ctx, topicName, payload)
}

// Matching returns every retained value whose topic matches filter, for
// immediate delivery to a subscriber that just subscribed.
func (c *RetainedCache) Matching(filter string) []RetainedValue {
	ctx := context.Background()
	keys, err := c.backing.List(ctx)
	if err != nil {
		return nil
	}

	var out []RetainedValue
	for _, key := range keys {
		if !topic.Match(filter, key) {
			continue
		}
		payload, err := c.backing.Load(ctx, key)
		if err != nil {
			continue
		}
		out = append(out, RetainedValue{Topic: key, Payload: payload})
	}
	return out
}
