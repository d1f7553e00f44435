package fsuipc

import (
	"sync"
	"testing"
	"time"

	"github.com/flightvars/flightvars/bus"
	"github.com/flightvars/flightvars/config"
	"github.com/flightvars/flightvars/hook"
	"github.com/flightvars/flightvars/varmodel"
)

// fakeBus is a minimal in-process Bus double: publish fans out
// synchronously to every filter-matching subscriber, good enough to
// exercise loopback suppression without a real bus.Memory.
type fakeBus struct {
	mu   sync.Mutex
	subs []bus.Handler
}

func (b *fakeBus) Publish(topic string, payload []byte, retain bool) error {
	b.mu.Lock()
	subs := append([]bus.Handler{}, b.subs...)
	b.mu.Unlock()
	for _, s := range subs {
		s(topic, payload)
	}
	return nil
}

func (b *fakeBus) Subscribe(filter string, handler bus.Handler) (string, error) {
	b.mu.Lock()
	b.subs = append(b.subs, handler)
	b.mu.Unlock()
	return "sub", nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSamplerSubscribeReceivesInitialAndChangedValues(t *testing.T) {
	adapter := NewDummyAdapter()
	adapter.Seed(0x1000, []byte{42})

	bus := &fakeBus{}
	hooks := hook.NewManager()
	s := NewSampler(adapter, bus, hooks, nil, nil)
	s.Start()
	defer s.Stop()

	varID := varmodel.ID{Group: GroupName, Name: "0x1000:1"}

	received := make(chan varmodel.Value, 4)
	_, err := s.Subscribe(varID, func(_ varmodel.ID, v varmodel.Value) {
		received <- v
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(received) > 0 })
	v := <-received
	b, ok := v.Byte()
	if !ok || b != 42 {
		t.Fatalf("expected initial byte 42, got %v (ok=%v)", b, ok)
	}

	adapter.Seed(0x1000, []byte{99})
	waitFor(t, time.Second, func() bool { return len(received) > 0 })
	v = <-received
	b, ok = v.Byte()
	if !ok || b != 99 {
		t.Fatalf("expected changed byte 99, got %v (ok=%v)", b, ok)
	}
}

func TestSamplerUnsubscribeStopsDelivery(t *testing.T) {
	adapter := NewDummyAdapter()
	adapter.Seed(0x2000, []byte{1})

	s := NewSampler(adapter, nil, nil, nil, nil)
	s.Start()
	defer s.Stop()

	varID := varmodel.ID{Group: GroupName, Name: "0x2000:1"}
	var calls int
	var mu sync.Mutex

	id, err := s.Subscribe(varID, func(_ varmodel.ID, _ varmodel.Value) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	adapter.Seed(0x2000, []byte{2})
	time.Sleep(3 * TickInterval)

	mu.Lock()
	defer mu.Unlock()
	if calls > 1 {
		t.Fatalf("expected at most the initial delivery before unsubscribe, got %d calls", calls)
	}
}

func TestSamplerUpdateWritesThroughAdapterDirectly(t *testing.T) {
	adapter := NewDummyAdapter()
	adapter.Seed(0x3000, []byte{0})

	s := NewSampler(adapter, nil, nil, nil, nil)
	s.Start()
	defer s.Stop()

	varID := varmodel.ID{Group: GroupName, Name: "0x3000:1"}
	id, err := s.Subscribe(varID, func(_ varmodel.ID, _ varmodel.Value) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Update(id, varmodel.NewByte(7)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	vo := &ValuedOffset{Offset: config.Offset{Address: 0x3000, Length: 1}}
	if err := adapter.ScheduleRead(vo); err != nil {
		t.Fatalf("ScheduleRead: %v", err)
	}
	if err := adapter.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if vo.Bytes[0] != 7 {
		t.Fatalf("expected adapter memory to hold 7, got %d", vo.Bytes[0])
	}
}

func TestSamplerIgnoresSelfOriginatedBusEcho(t *testing.T) {
	adapter := NewDummyAdapter()
	adapter.Seed(0x4000, []byte{5})

	bus := &fakeBus{}
	s := NewSampler(adapter, bus, nil, nil, []config.Offset{{Address: 0x4000, Length: 1}})
	s.Start()
	defer s.Stop()

	// Let one tick publish the seeded value (sender=0), which the bus
	// echoes straight back to the sampler's own subscription; if
	// loopback suppression were broken this would show up as a second,
	// spurious adapter write rather than being silently ignored.
	time.Sleep(2 * TickInterval)

	vo := &ValuedOffset{Offset: config.Offset{Address: 0x4000, Length: 1}}
	if err := adapter.ScheduleRead(vo); err != nil {
		t.Fatalf("ScheduleRead: %v", err)
	}
	if err := adapter.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if vo.Bytes[0] != 5 {
		t.Fatalf("expected value unchanged at 5, got %d", vo.Bytes[0])
	}
}

func TestSamplerAppliesExternalBusWrite(t *testing.T) {
	adapter := NewDummyAdapter()
	adapter.Seed(0x5000, []byte{1})

	bus := &fakeBus{}
	s := NewSampler(adapter, bus, nil, nil, []config.Offset{{Address: 0x5000, Length: 1}})
	s.Start()
	defer s.Stop()

	off := config.Offset{Address: 0x5000, Length: 1}
	payload := encodeBusPayload(9, []byte{77})
	if err := bus.Publish(topicFor(off), payload, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		vo := &ValuedOffset{Offset: off}
		_ = adapter.ScheduleRead(vo)
		_ = adapter.Commit()
		return vo.Bytes[0] == 77
	})
}
