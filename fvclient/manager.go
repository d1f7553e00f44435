// Package fvclient implements the client side of the Variable Pub/Sub
// Protocol: a subscription database that presents an N-virtual-
// subscriptions-per-variable API while holding at most one master
// subscription per variable on the wire, and a single-reactor connection
// manager that owns the socket and a request pool keyed the way the
// server-side registry is.
package fvclient

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/flightvars/flightvars/network"
	"github.com/flightvars/flightvars/registry"
	"github.com/flightvars/flightvars/varmodel"
	"github.com/flightvars/flightvars/wire"
)

// ProtocolVersion is the protocol version this client speaks, mirroring
// fvserver.ProtocolVersion (u16 big-endian on the wire: high byte 0x01,
// low byte 0x00). The two packages do not import one another, so the
// constant is declared once on each side, the way the wire protocol's
// version number is a fixed point both peers independently agree on.
const ProtocolVersion uint16 = 0x0100

// ClientPeerName is the name this client announces in its begin_session
// unless Config.PeerName overrides it.
const ClientPeerName = "FlightVars Client"

const defaultRequestTimeout = 60 * time.Second
const defaultDialTimeout = 10 * time.Second

// Logger is the minimal logging surface a connection manager needs;
// *logger.SlogLogger satisfies it.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}

// Config configures a ConnectionManager.
type Config struct {
	// Address is the server's "host:port".
	Address string

	// PeerName is announced in this client's begin_session. Defaults to
	// ClientPeerName.
	PeerName string

	// DialTimeout bounds the initial TCP connect and handshake. Defaults
	// to 10s.
	DialTimeout time.Duration

	// RequestTimeout bounds every public call's wait_for. Defaults to
	// 60s per the protocol's default.
	RequestTimeout time.Duration

	// Backoff, if non-nil, opts into automatic reconnect-with-backoff
	// after an unexpected socket close. Off by default: a nil Backoff
	// means a dropped connection fails every in-flight request and
	// leaves the manager closed, matching the base protocol's silence on
	// reconnection.
	Backoff *network.BackoffConfig

	// ErrorHandler receives errors that have no caller to report to:
	// var_update for an unknown subscription, a write failure on a
	// best-effort update, a reconnect attempt failing. May be nil.
	ErrorHandler func(error)

	Logger Logger
}

type pendingSubscribe struct {
	varID   varmodel.ID
	handler Handler
	comp    *completion[VirtualSubsID]
}

// ConnectionManager owns one duplex TCP connection to a FlightVars
// server, a single-threaded reactor goroutine, a request pool, and the
// client subscription DB (DB). Every public method submits a task onto
// the reactor and blocks on a completion slot; the reactor is the only
// goroutine that ever touches the DB or the socket, per the protocol's
// single-writer requirement.
type ConnectionManager struct {
	cfg    Config
	logger Logger
	db     *DB

	connMu sync.Mutex
	conn   *network.Connection
	reader *wire.MessageReader

	reconnector *network.Reconnector

	tasks  chan func()
	stopCh chan struct{}
	done   chan struct{}
	closeOnce sync.Once

	subPending   map[string][]*pendingSubscribe // varmodel.ID.Key()
	unsubPending map[registry.SubsID]*completion[struct{}]
}

// Connect dials cfg.Address, performs the begin_session handshake, and
// starts the reactor. The returned manager is ready for Subscribe /
// Unsubscribe / Update calls.
func Connect(cfg Config) (*ConnectionManager, error) {
	if cfg.PeerName == "" {
		cfg.PeerName = ClientPeerName
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	m := &ConnectionManager{
		cfg:          cfg,
		logger:       logger,
		db:           NewDB(),
		tasks:        make(chan func(), 64),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
		subPending:   make(map[string][]*pendingSubscribe),
		unsubPending: make(map[registry.SubsID]*completion[struct{}]),
	}

	if cfg.Backoff != nil {
		recovery := &network.RecoveryConfig{BackoffConfig: cfg.Backoff, EnableRecovery: true}
		reconnector, err := network.NewReconnector(context.Background(), recovery, func() (*network.Connection, error) {
			return dial(cfg)
		})
		if err != nil {
			return nil, err
		}
		m.reconnector = reconnector
	}

	conn, reader, err := dialAndHandshake(cfg)
	if err != nil {
		return nil, err
	}
	m.setConn(conn, reader)

	go m.run()
	return m, nil
}

func dial(cfg Config) (*network.Connection, error) {
	raw, err := net.DialTimeout("tcp", cfg.Address, cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	return network.NewConnection(raw, cfg.Address, nil), nil
}

func dialAndHandshake(cfg Config) (*network.Connection, *wire.MessageReader, error) {
	conn, err := dial(cfg)
	if err != nil {
		return nil, nil, err
	}

	if err := wire.WriteMessage(conn, wire.BeginSession{PeerName: cfg.PeerName, ProtocolVersion: ProtocolVersion}); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	reader := wire.NewMessageReader(conn)
	msg, err := reader.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	reply, ok := msg.(wire.BeginSession)
	if !ok {
		_ = conn.Close()
		return nil, nil, ErrCommunicationError
	}
	if reply.ProtocolVersion>>8 != ProtocolVersion>>8 {
		_ = conn.Close()
		return nil, nil, ErrCommunicationError
	}

	return conn, reader, nil
}

func (m *ConnectionManager) setConn(conn *network.Connection, reader *wire.MessageReader) {
	m.connMu.Lock()
	m.conn = conn
	m.reader = reader
	m.connMu.Unlock()
}

func (m *ConnectionManager) currentConn() *network.Connection {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	return m.conn
}

func (m *ConnectionManager) writeMessage(msg wire.Message) error {
	conn := m.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	return wire.WriteMessage(conn, msg)
}

// submit hands a task to the reactor, or completes nothing and returns
// silently if the manager has already closed.
func (m *ConnectionManager) submit(task func()) {
	select {
	case m.tasks <- task:
	case <-m.done:
	}
}

// run is the reactor: it owns the socket's reads and writes and the DB,
// processing inbound messages and submitted tasks from a single select
// loop so neither ever races the other.
func (m *ConnectionManager) run() {
	conn := m.currentConn()
	reader := m.reader

	inbound := make(chan wire.Message)
	readErr := make(chan error, 1)

	go func() {
		for {
			msg, err := reader.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- msg:
			case <-m.stopCh:
				return
			}
		}
	}()

	for {
		select {
		case task := <-m.tasks:
			task()

		case msg := <-inbound:
			m.dispatch(msg)

		case err := <-readErr:
			_ = conn.Close()
			m.onDisconnect(err)
			return

		case <-m.stopCh:
			_ = conn.Close()
			m.failAllPending(ErrManagerClosed)
			m.closeOnce.Do(func() { close(m.done) })
			return
		}
	}
}

func (m *ConnectionManager) onDisconnect(err error) {
	m.logger.Warn("fvclient: connection lost", "error", err)
	m.failAllPending(ErrCommunicationError)
	m.db.Clear()

	if m.reconnector == nil {
		m.closeOnce.Do(func() { close(m.done) })
		return
	}

	conn, rerr := m.reconnector.Connect()
	if rerr != nil {
		m.logger.Error("fvclient: reconnect failed", "error", rerr)
		if m.cfg.ErrorHandler != nil {
			m.cfg.ErrorHandler(rerr)
		}
		m.closeOnce.Do(func() { close(m.done) })
		return
	}

	m.setConn(conn, wire.NewMessageReader(conn))
	go m.run()
}

func (m *ConnectionManager) failAllPending(err error) {
	for key, pending := range m.subPending {
		for _, p := range pending {
			p.comp.complete(0, err)
		}
		delete(m.subPending, key)
	}
	for masterID, comp := range m.unsubPending {
		comp.complete(struct{}{}, err)
		delete(m.unsubPending, masterID)
	}
}

func (m *ConnectionManager) dispatch(msg wire.Message) {
	switch mm := msg.(type) {
	case wire.SubscriptionReply:
		m.onSubscriptionReply(mm)
	case wire.UnsubscriptionReply:
		m.onUnsubscriptionReply(mm)
	case wire.VarUpdate:
		m.onVarUpdate(mm)
	default:
		m.logger.Warn("fvclient: unexpected message", "type", msg.Type())
	}
}

// Subscribe returns a virtual subscription id for varID. If the DB
// already holds an entry for varID, it is synthesized locally with no
// wire traffic; otherwise a subscription_request is sent and this call
// blocks for the reply (or RequestTimeout).
func (m *ConnectionManager) Subscribe(varID varmodel.ID, handler Handler) (VirtualSubsID, error) {
	comp := newCompletion[VirtualSubsID]()
	m.submit(func() { m.handleSubscribe(varID, handler, comp) })
	return comp.wait(m.cfg.RequestTimeout)
}

func (m *ConnectionManager) handleSubscribe(varID varmodel.ID, handler Handler, comp *completion[VirtualSubsID]) {
	if _, err := m.db.GetMasterByVar(varID); err == nil {
		vid, err := m.db.AddVirtualSubscription(varID, handler)
		comp.complete(vid, err)
		return
	}

	key := varID.Key()
	m.subPending[key] = append(m.subPending[key], &pendingSubscribe{varID: varID, handler: handler, comp: comp})
	if len(m.subPending[key]) > 1 {
		return // a request for this variable is already in flight
	}

	req := wire.SubscriptionRequest{Group: string(varID.Group), Name: varID.Name}
	if err := m.writeMessage(req); err != nil {
		pending := m.subPending[key]
		delete(m.subPending, key)
		for _, p := range pending {
			p.comp.complete(0, ErrCommunicationError)
		}
	}
}

func (m *ConnectionManager) onSubscriptionReply(reply wire.SubscriptionReply) {
	varID := varmodel.ID{Group: varmodel.Group(reply.Group), Name: reply.Name}
	key := varID.Key()

	pending := m.subPending[key]
	delete(m.subPending, key)
	if len(pending) == 0 {
		return
	}

	if reply.Status != wire.StatusSubscribed {
		for _, p := range pending {
			p.comp.complete(0, ErrNoSuchVariable)
		}
		return
	}

	masterID := registry.SubsID(reply.SubsID)
	first := pending[0]
	vid, err := m.db.CreateEntry(varID, masterID, first.handler)
	first.comp.complete(vid, err)

	for _, p := range pending[1:] {
		vid, err := m.db.AddVirtualSubscription(varID, p.handler)
		p.comp.complete(vid, err)
	}
}

// Unsubscribe removes a virtual subscription. If it was the variable's
// last virtual, an unsubscription_request is sent and this call blocks
// for the reply; otherwise it completes immediately with no wire
// traffic.
func (m *ConnectionManager) Unsubscribe(virtualID VirtualSubsID) error {
	comp := newCompletion[struct{}]()
	m.submit(func() { m.handleUnsubscribe(virtualID, comp) })
	_, err := comp.wait(m.cfg.RequestTimeout)
	return err
}

func (m *ConnectionManager) handleUnsubscribe(virtualID VirtualSubsID, comp *completion[struct{}]) {
	masterID, err := m.db.GetMasterByVirtual(virtualID)
	if err != nil {
		comp.complete(struct{}{}, ErrNoSuchSubscription)
		return
	}

	emptied, err := m.db.RemoveVirtualSubscription(virtualID)
	if err != nil {
		comp.complete(struct{}{}, ErrNoSuchSubscription)
		return
	}
	if !emptied {
		comp.complete(struct{}{}, nil)
		return
	}

	m.unsubPending[masterID] = comp
	req := wire.UnsubscriptionRequest{SubsID: uint32(masterID)}
	if err := m.writeMessage(req); err != nil {
		delete(m.unsubPending, masterID)
		comp.complete(struct{}{}, ErrCommunicationError)
	}
}

func (m *ConnectionManager) onUnsubscriptionReply(reply wire.UnsubscriptionReply) {
	masterID := registry.SubsID(reply.SubsID)
	comp, ok := m.unsubPending[masterID]
	if !ok {
		return
	}
	delete(m.unsubPending, masterID)

	if reply.Status == wire.StatusUnsubscribed {
		comp.complete(struct{}{}, nil)
	} else {
		comp.complete(struct{}{}, ErrNoSuchSubscription)
	}
}

// Update sends a new value for the variable backing virtualID. Delivery
// is best-effort: the server never replies to a var_update, so this
// completes as soon as the write (or DB lookup failure) happens on the
// reactor, without waiting on the wire.
func (m *ConnectionManager) Update(virtualID VirtualSubsID, value varmodel.Value) error {
	done := make(chan error, 1)
	m.submit(func() {
		masterID, err := m.db.GetMasterByVirtual(virtualID)
		if err != nil {
			done <- ErrNoSuchSubscription
			return
		}
		err = m.writeMessage(wire.VarUpdate{SubsID: uint32(masterID), Value: value})
		if err != nil {
			err = ErrCommunicationError
		}
		done <- err
	})

	select {
	case err := <-done:
		return err
	case <-m.done:
		return ErrManagerClosed
	}
}

func (m *ConnectionManager) onVarUpdate(msg wire.VarUpdate) {
	if err := m.db.InvokeHandlers(registry.SubsID(msg.SubsID), msg.Value); err != nil {
		if m.cfg.ErrorHandler != nil {
			m.cfg.ErrorHandler(err)
		}
	}
}

// Close sends end_session, stops the reactor, and joins it. Any request
// still in flight completes with ErrManagerClosed.
func (m *ConnectionManager) Close() error {
	select {
	case <-m.done:
		return nil
	default:
	}

	wrote := make(chan struct{})
	m.submit(func() {
		_ = m.writeMessage(wire.EndSession{Cause: "Client disconnected"})
		close(wrote)
	})
	select {
	case <-wrote:
	case <-m.done:
	}

	close(m.stopCh)
	<-m.done
	return nil
}
