package bus

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/flightvars/flightvars/topic"
)

// inboundCapacity bounds each subscriber's delivery queue; a slow
// subscriber drops further publishes (ErrSubscriberBacklog at the
// publisher, logged by the caller) rather than blocking every other
// subscriber on the same topic.
const inboundCapacity = 256

type subscription struct {
	id      string
	handler Handler
	inbox   chan message
}

type message struct {
	topic   string
	payload []byte
}

// Memory is an in-process Bus: publish dispatches are fanned out via the
// generic topic trie, and per-subscriber FIFO is kept by handing each
// match to a bounded channel drained by that subscriber's own worker
// goroutine, so one slow handler cannot stall delivery to the rest.
type Memory struct {
	router   *topic.Router[*subscription]
	retained *RetainedCache

	mu     sync.Mutex
	subs   map[string]*subscription
	nextID atomic.Uint64

	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewMemory constructs an empty in-process bus. retained may be nil to
// disable the retained-value cache.
func NewMemory(retained *RetainedCache) *Memory {
	return &Memory{
		router:   topic.NewRouter[*subscription](),
		retained: retained,
		subs:     make(map[string]*subscription),
	}
}

func (m *Memory) Publish(topicName string, payload []byte, retain bool) error {
	if m.closed.Load() {
		return ErrClosed
	}

	if retain && m.retained != nil {
		m.retained.Set(topicName, payload)
	}

	dropped := false
	for _, sub := range m.router.Match(topicName) {
		select {
		case sub.inbox <- message{topic: topicName, payload: payload}:
		default:
			// Backlog full: this subscriber misses this one publish.
			// Other subscribers on the same topic are unaffected.
			dropped = true
		}
	}

	if dropped {
		return ErrSubscriberBacklog
	}
	return nil
}

func (m *Memory) Subscribe(filter string, handler Handler) (string, error) {
	if m.closed.Load() {
		return "", ErrClosed
	}

	id := subscriptionID(m.nextID.Add(1))
	sub := &subscription{id: id, handler: handler, inbox: make(chan message, inboundCapacity)}

	if err := m.router.Subscribe(filter, id, sub); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.subs[id] = sub
	m.mu.Unlock()

	m.wg.Add(1)
	go m.drain(sub)

	if m.retained != nil {
		for _, rv := range m.retained.Matching(filter) {
			sub.inbox <- message{topic: rv.Topic, payload: rv.Payload}
		}
	}

	return id, nil
}

func (m *Memory) Unsubscribe(id string) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	delete(m.subs, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	m.router.UnsubscribeAll(id)
	close(sub.inbox)
	return nil
}

func (m *Memory) Disconnect() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subs = make(map[string]*subscription)
	m.mu.Unlock()

	m.router.Clear()
	for _, sub := range subs {
		close(sub.inbox)
	}
	m.wg.Wait()

	return nil
}

func (m *Memory) drain(sub *subscription) {
	defer m.wg.Done()
	for msg := range sub.inbox {
		sub.handler(msg.topic, msg.payload)
	}
}

func subscriptionID(n uint64) string {
	return strconv.FormatUint(n, 16)
}
