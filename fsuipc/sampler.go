package fsuipc

import (
	"sync"
	"time"

	"github.com/flightvars/flightvars/bus"
	"github.com/flightvars/flightvars/config"
	"github.com/flightvars/flightvars/hook"
	"github.com/flightvars/flightvars/registry"
	"github.com/flightvars/flightvars/router"
	"github.com/flightvars/flightvars/varmodel"
)

// TickInterval is the period of the sampler's read/diff/publish loop.
const TickInterval = 250 * time.Millisecond

// GroupName is the variable group this sampler registers as the master
// of: variable names in this group take the "0x1000:1" form parsed by
// parseVariableName.
const GroupName varmodel.Group = "fsuipc/offset"

// Bus is the narrow slice of bus.Bus the sampler depends on: publish and
// subscribe to its own offsets/# namespace, not the full interface
// (Unsubscribe, Disconnect) a session or server would also need.
type Bus interface {
	Publish(topic string, payload []byte, retain bool) error
	Subscribe(filter string, handler bus.Handler) (string, error)
}

type watchedOffset struct {
	offset    config.Offset
	lastValue varmodel.Value
	hasValue  bool
	watchers  map[registry.SubsID]router.FanoutHandler
}

// Sampler is a router.Master for the fsuipc/offset group: a
// single-threaded executor that owns both the access adapter and the bus
// inbox for this group's offsets, so reads and writes of the same offset
// never race each other.
type Sampler struct {
	adapter Adapter
	bus     Bus
	hooks   *hook.Manager
	idGen   *registry.IDGenerator
	logger  Logger

	offsets map[uint16]*watchedOffset // keyed by address
	byID    map[registry.SubsID]uint16
	buf     *DoubleBuffer // edge detector: current tick's reads vs. previous tick's

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	actions chan func()
}

// Logger is the minimal logging surface the sampler needs; *logger.SlogLogger
// satisfies it.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// NewSampler constructs a sampler over adapter, seeded to watch the given
// offsets. bus and logger may be nil (nil bus disables publish/subscribe;
// nil logger discards log calls).
func NewSampler(adapter Adapter, bus Bus, hooks *hook.Manager, logger Logger, seeds []config.Offset) *Sampler {
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Sampler{
		adapter: adapter,
		bus:     bus,
		hooks:   hooks,
		idGen:   registry.NewIDGenerator(),
		logger:  logger,
		offsets: make(map[uint16]*watchedOffset),
		byID:    make(map[registry.SubsID]uint16),
		buf:     NewDoubleBuffer(1 << 16),
		ticker:  time.NewTicker(TickInterval),
		stopCh:  make(chan struct{}),
		actions: make(chan func()),
	}

	for _, off := range seeds {
		if err := validateOffset(off); err != nil {
			logger.Warn("fsuipc: rejecting seed offset", "address", off.Address, "length", off.Length, "error", err)
			continue
		}
		s.offsets[off.Address] = &watchedOffset{offset: off, watchers: make(map[registry.SubsID]router.FanoutHandler)}
	}

	return s
}

// Start launches the executor goroutine. It must be called before
// Subscribe/Unsubscribe/Update are used.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go s.run()

	if s.bus != nil {
		if _, err := s.bus.Subscribe(topicPrefix+"#", s.onBusMessage); err != nil {
			s.logger.Error("fsuipc: failed to subscribe to bus offsets namespace", "error", err)
		}
	}
}

// Stop halts the ticker and executor goroutine, waiting for the
// in-flight tick (if any) to finish.
func (s *Sampler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.ticker.Stop()
}

func (s *Sampler) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.doTick()
		case fn := <-s.actions:
			fn()
		case <-s.stopCh:
			return
		}
	}
}

// Subscribe registers handler against varID, reading the offset it names
// out of the variable name ("0x1000:1"), watching it if not already
// watched. It blocks until the executor goroutine has processed the
// request.
func (s *Sampler) Subscribe(varID varmodel.ID, handler router.FanoutHandler) (registry.SubsID, error) {
	off, err := parseVariableName(varID.Name)
	if err != nil {
		return 0, err
	}

	type result struct {
		id  registry.SubsID
		err error
	}
	resCh := make(chan result, 1)

	s.actions <- func() {
		wo, ok := s.offsets[off.Address]
		if !ok {
			wo = &watchedOffset{offset: off, watchers: make(map[registry.SubsID]router.FanoutHandler)}
			s.offsets[off.Address] = wo
		}

		id := s.idGen.Next()
		wo.watchers[id] = handler
		s.byID[id] = off.Address

		if wo.hasValue {
			handler(varID, wo.lastValue)
		}

		resCh <- result{id: id, err: nil}
	}

	r := <-resCh
	return r.id, r.err
}

// Unsubscribe drops a previously registered watcher.
func (s *Sampler) Unsubscribe(subsID registry.SubsID) error {
	errCh := make(chan error, 1)

	s.actions <- func() {
		addr, ok := s.byID[subsID]
		if !ok {
			errCh <- registry.ErrNoSuchSubscription
			return
		}
		delete(s.byID, subsID)
		if wo, ok := s.offsets[addr]; ok {
			delete(wo.watchers, subsID)
		}
		errCh <- nil
	}

	return <-errCh
}

// Update writes value directly through the adapter, bypassing the bus:
// this is the path driven by a FlightVars client's var_update message,
// distinct from a bus-originated write picked up by onBusMessage.
func (s *Sampler) Update(subsID registry.SubsID, value varmodel.Value) error {
	errCh := make(chan error, 1)

	s.actions <- func() {
		addr, ok := s.byID[subsID]
		if !ok {
			errCh <- registry.ErrNoSuchSubscription
			return
		}
		wo := s.offsets[addr]

		raw := valueToBytes(value)
		if raw == nil {
			errCh <- ErrInvalidOffsetLength
			return
		}

		if err := s.adapter.ScheduleWrite(ValuedOffset{Offset: wo.offset, Bytes: raw}); err != nil {
			errCh <- err
			return
		}
		if err := s.adapter.Commit(); err != nil {
			errCh <- err
			return
		}

		// lastValue/hasValue are not updated here: this write bypasses the
		// double buffer doTick uses for edge detection, so the next tick
		// sees the memory change against its stale previous-side snapshot
		// and republishes it exactly once, the same as any other write.
		errCh <- nil
	}

	return <-errCh
}

// doTick schedules a read of every watched offset, commits the batch,
// and publishes+fans-out any that changed since the previous tick. It
// runs only on the executor goroutine.
func (s *Sampler) doTick() {
	if len(s.offsets) == 0 {
		return
	}

	s.buf.Swap()

	vos := make([]*ValuedOffset, 0, len(s.offsets))
	for _, wo := range s.offsets {
		vo := &ValuedOffset{Offset: wo.offset}
		if err := s.adapter.ScheduleRead(vo); err != nil {
			s.logger.Warn("fsuipc: schedule read failed", "address", wo.offset.Address, "error", err)
			continue
		}
		vos = append(vos, vo)
	}

	if err := s.adapter.Commit(); err != nil {
		s.logger.Error("fsuipc: commit failed", "error", err)
		return
	}

	changes := 0
	for _, vo := range vos {
		wo := s.offsets[vo.Offset.Address]
		kind, err := kindForLength(vo.Offset.Length)
		if err != nil {
			continue
		}
		s.buf.Write(int(vo.Offset.Address), vo.Bytes)
		if wo.hasValue && !s.buf.IsModified(int(vo.Offset.Address), int(vo.Offset.Length)) {
			continue
		}

		value := bytesToValue(kind, vo.Bytes)
		wo.lastValue = value
		wo.hasValue = true
		changes++

		varID := varmodel.ID{Group: GroupName, Name: nameFor(wo.offset)}
		for _, handler := range wo.watchers {
			handler(varID, value)
		}

		if s.bus != nil {
			if err := s.bus.Publish(topicFor(wo.offset), encodeBusPayload(0, vo.Bytes), false); err != nil {
				s.logger.Warn("fsuipc: bus publish failed", "topic", topicFor(wo.offset), "error", err)
			}
		}
	}

	if changes > 0 && s.hooks != nil {
		s.hooks.FireSamplerTick(hook.SamplerTickInfo{OffsetsRead: len(vos), Changes: changes})
	}
}

// onBusMessage handles a bus-delivered write to one of this sampler's
// offsets. A zero sender byte marks the message as self-originated (this
// process's own doTick publish echoed back by the bus) and is ignored to
// avoid a write-back loop; any other sender is an external write and is
// applied through the adapter.
func (s *Sampler) onBusMessage(topic string, payload []byte) {
	off, err := parseTopic(topic)
	if err != nil {
		return
	}

	sender, value, err := decodeBusPayload(off, payload)
	if err != nil {
		if s.hooks != nil {
			s.hooks.FireOffsetWriteRejected(hook.OffsetRejectInfo{
				Address: off.Address,
				Length:  off.Length,
				Reason:  err.Error(),
			})
		}
		return
	}

	if sender == 0 {
		return
	}

	s.actions <- func() {
		wo, ok := s.offsets[off.Address]
		if !ok {
			wo = &watchedOffset{offset: off, watchers: make(map[registry.SubsID]router.FanoutHandler)}
			s.offsets[off.Address] = wo
		}

		raw := valueToBytes(value)
		if err := s.adapter.ScheduleWrite(ValuedOffset{Offset: off, Bytes: raw}); err != nil {
			s.logger.Warn("fsuipc: bus-originated write failed", "address", off.Address, "error", err)
			return
		}
		if err := s.adapter.Commit(); err != nil {
			s.logger.Warn("fsuipc: bus-originated write commit failed", "address", off.Address, "error", err)
			return
		}

		// lastValue/hasValue are deliberately left untouched: doTick's
		// double buffer still holds the pre-write snapshot, so the next
		// tick detects this write as a genuine edge and republishes it
		// with sender=0, exactly once.
	}
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}
