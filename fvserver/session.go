package fvserver

import (
	"sync"
	"sync/atomic"

	"github.com/flightvars/flightvars/hook"
	"github.com/flightvars/flightvars/network"
	"github.com/flightvars/flightvars/registry"
	"github.com/flightvars/flightvars/router"
	"github.com/flightvars/flightvars/varmodel"
	"github.com/flightvars/flightvars/wire"
)

// State is one of the three session lifecycle states.
type State int32

const (
	StateAwaitingHandshake State = iota
	StateActive
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateActive:
		return "active"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// ProtocolVersion is the server's protocol version, u16 big-endian on the
// wire: high byte 0x01, low byte 0x00.
const ProtocolVersion uint16 = 0x0100

// ServerPeerName is the name this server announces in its begin_session
// reply.
const ServerPeerName = "FlightVars Server"

// outboundCapacity bounds how many fan-out var_updates can queue for a
// session before new ones are dropped; a session that cannot keep up with
// its own subscriptions should not stall the masters publishing to it.
const outboundCapacity = 256

// Logger is the minimal logging surface a session needs; *logger.SlogLogger
// satisfies it.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// Session is one connected peer's state machine: AwaitingHandshake ->
// Active -> Terminating, per the corpus's mutex-guarded-struct-with-
// accessors idiom (session.Session), generalized to FlightVars's much
// simpler session model (no Will messages, no QoS-pending tracking, no
// packet ids).
type Session struct {
	id     string
	conn   *network.Connection
	server *Server
	router *router.Router
	hooks  *hook.Manager
	logger Logger

	reg   *registry.Registry
	state atomic.Int32

	mu              sync.RWMutex
	peerName        string
	protocolVersion uint16

	outbound chan wire.Message
	stopCh   chan struct{}
}

func newSession(id string, conn *network.Connection, server *Server, rtr *router.Router, hooks *hook.Manager, logger Logger) *Session {
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Session{
		id:       id,
		conn:     conn,
		server:   server,
		router:   rtr,
		hooks:    hooks,
		logger:   logger,
		reg:      registry.New(),
		outbound: make(chan wire.Message, outboundCapacity),
		stopCh:   make(chan struct{}),
	}
	s.state.Store(int32(StateAwaitingHandshake))
	return s
}

// ID returns the session's server-assigned identifier.
func (s *Session) ID() string { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// PeerName returns the name the peer announced in its begin_session, or
// "" before the handshake completes.
func (s *Session) PeerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerName
}

// Serve runs the session's reactor to completion: handshake, then the
// active read/dispatch/fan-out loop, then teardown. It blocks until the
// connection closes or the server shuts the session down, and it always
// removes the session from the server table before returning.
func (s *Session) Serve() {
	defer s.terminate()

	inbound := make(chan wire.Message)
	readErr := make(chan error, 1)
	reader := wire.NewMessageReader(s.conn)

	go func() {
		for {
			msg, err := reader.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- msg:
			case <-s.stopCh:
				return
			}
		}
	}()

	if !s.awaitHandshake(inbound, readErr) {
		return
	}

	s.runActive(inbound, readErr)
}

// awaitHandshake reads exactly one message and requires it to be
// begin_session with a compatible protocol version. Any other message, a
// version mismatch, or a read failure terminates the session without a
// reply.
func (s *Session) awaitHandshake(inbound <-chan wire.Message, readErr <-chan error) bool {
	select {
	case msg := <-inbound:
		bs, ok := msg.(wire.BeginSession)
		if !ok {
			s.logger.Error("fvserver: expected begin_session as first message", "session", s.id, "got", msg.Type(), "error", ErrProtocolViolation)
			return false
		}
		if bs.ProtocolVersion>>8 != ProtocolVersion>>8 {
			s.logger.Error("fvserver: protocol version mismatch", "session", s.id, "peer_version", bs.ProtocolVersion, "server_version", ProtocolVersion, "error", ErrVersionMismatch)
			return false
		}

		s.mu.Lock()
		s.peerName = bs.PeerName
		s.protocolVersion = bs.ProtocolVersion
		s.mu.Unlock()

		reply := wire.BeginSession{PeerName: ServerPeerName, ProtocolVersion: ProtocolVersion}
		if err := wire.WriteMessage(s.conn, reply); err != nil {
			s.logger.Warn("fvserver: failed to write begin_session reply", "session", s.id, "error", err)
			return false
		}

		s.setState(StateActive)
		if s.hooks != nil {
			s.hooks.FireSessionEstablished(hook.SessionInfo{SessionID: s.id, PeerName: bs.PeerName})
		}
		return true

	case err := <-readErr:
		s.logger.Debug("fvserver: connection closed before handshake", "session", s.id, "error", err)
		return false

	case <-s.stopCh:
		return false
	}
}

// runActive loops reading one message, dispatching it, and keeps reading,
// interleaved with posting any fan-out var_updates queued on the session's
// own outbound channel; both reads and writes of the socket happen only
// on this goroutine.
func (s *Session) runActive(inbound <-chan wire.Message, readErr <-chan error) {
	for {
		select {
		case msg := <-inbound:
			if !s.dispatch(msg) {
				return
			}

		case out := <-s.outbound:
			if err := wire.WriteMessage(s.conn, out); err != nil {
				s.logger.Warn("fvserver: write failed", "session", s.id, "error", err)
				return
			}

		case err := <-readErr:
			s.logger.Debug("fvserver: connection closed", "session", s.id, "error", err)
			return

		case <-s.stopCh:
			return
		}
	}
}

// dispatch applies the active-state dispatch table to one inbound
// message. It returns false when the session should move on to teardown
// (end_session, or a read/write failure already handled by the caller).
func (s *Session) dispatch(msg wire.Message) bool {
	switch m := msg.(type) {
	case wire.EndSession:
		s.logger.Info("fvserver: session ending", "session", s.id, "peer", s.PeerName(), "cause", m.Cause)
		return false

	case wire.SubscriptionRequest:
		s.handleSubscribe(m)
		return true

	case wire.UnsubscriptionRequest:
		s.handleUnsubscribe(m)
		return true

	case wire.VarUpdate:
		s.handleVarUpdate(m)
		return true

	default:
		s.logger.Warn("fvserver: unexpected message in active state", "session", s.id, "type", msg.Type(), "error", ErrProtocolViolation)
		return true
	}
}

func (s *Session) handleSubscribe(req wire.SubscriptionRequest) {
	varID := varmodel.ID{Group: varmodel.Group(req.Group), Name: req.Name}

	subsID, err := s.router.Subscribe(s.id, varID, s.fanoutHandler())
	if err != nil {
		s.sendDirect(wire.SubscriptionReply{Status: wire.StatusNoSuchVar, Group: req.Group, Name: req.Name, Cause: err.Error()})
		return
	}

	if err := s.reg.Register(varID, subsID); err != nil {
		_ = s.router.Unsubscribe(s.id, subsID)
		s.sendDirect(wire.SubscriptionReply{Status: wire.StatusNoSuchVar, Group: req.Group, Name: req.Name, Cause: err.Error()})
		return
	}

	s.sendDirect(wire.SubscriptionReply{Status: wire.StatusSubscribed, Group: req.Group, Name: req.Name, SubsID: uint32(subsID)})
}

func (s *Session) handleUnsubscribe(req wire.UnsubscriptionRequest) {
	subsID := registry.SubsID(req.SubsID)

	if _, err := s.reg.LookupBySubs(subsID); err != nil {
		s.sendDirect(wire.UnsubscriptionReply{Status: wire.StatusNoSuchSubscription, SubsID: req.SubsID, Cause: err.Error()})
		return
	}

	if err := s.router.Unsubscribe(s.id, subsID); err != nil {
		s.sendDirect(wire.UnsubscriptionReply{Status: wire.StatusNoSuchSubscription, SubsID: req.SubsID, Cause: err.Error()})
		return
	}

	_ = s.reg.UnregisterBySubs(subsID)
	s.sendDirect(wire.UnsubscriptionReply{Status: wire.StatusUnsubscribed, SubsID: req.SubsID})
}

func (s *Session) handleVarUpdate(m wire.VarUpdate) {
	subsID := registry.SubsID(m.SubsID)

	if _, err := s.reg.LookupBySubs(subsID); err != nil {
		s.logger.Warn("fvserver: var_update for unknown subscription", "session", s.id, "subs_id", m.SubsID, "error", err)
		return
	}

	if err := s.router.Update(subsID, m.Value); err != nil {
		s.logger.Warn("fvserver: var_update failed", "session", s.id, "subs_id", m.SubsID, "error", err)
	}
}

// sendDirect writes msg to the socket. It is only ever called from within
// dispatch, i.e. on the reactor goroutine, so it never races runActive's
// other writer (the outbound-channel case).
func (s *Session) sendDirect(msg wire.Message) {
	if err := wire.WriteMessage(s.conn, msg); err != nil {
		s.logger.Warn("fvserver: write failed", "session", s.id, "error", err)
	}
}

// fanoutHandler returns the callback registered with the router for every
// subscription this session makes. It captures the server and this
// session's id rather than the session itself, so that a session closed
// and dropped from the server's table is simply ignored by stale
// fan-outs instead of needing explicit unregistration races resolved.
func (s *Session) fanoutHandler() router.FanoutHandler {
	srv := s.server
	sessionID := s.id

	return func(varID varmodel.ID, value varmodel.Value) {
		sess, ok := srv.session(sessionID)
		if !ok {
			return
		}

		subsID, err := sess.reg.LookupByVar(varID)
		if err != nil {
			sess.logger.Debug("fvserver: fan-out for unregistered variable", "session", sessionID, "var", varID.String())
			return
		}

		sess.postUpdate(subsID, value)
	}
}

// postUpdate enqueues a var_update for delivery on the session's own
// reactor goroutine; it never writes the socket directly, matching the
// requirement that fan-out never bypass the session's single writer.
func (s *Session) postUpdate(subsID registry.SubsID, value varmodel.Value) {
	msg := wire.VarUpdate{SubsID: uint32(subsID), Value: value}
	select {
	case s.outbound <- msg:
	default:
		s.logger.Warn("fvserver: outbound backlog full, dropping var_update", "session", s.id, "subs_id", subsID)
	}
}

// Close forces the session's socket shut. The reactor's next read fails,
// unwinding runActive (or awaitHandshake) and running terminate via
// Serve's defer; Close does not itself wait for that unwind to finish.
// It is the hook GracefulShutdown's per-connection disconnect handler
// uses to nudge a session towards teardown.
func (s *Session) Close() {
	_ = s.conn.Close()
}

// terminate unsubscribes every entry still in this session's registry,
// closes the socket, removes the session from the server table, and
// fires SessionClosed. It is always run exactly once, via Serve's defer.
func (s *Session) terminate() {
	s.setState(StateTerminating)
	close(s.stopCh)

	s.reg.ForEach(func(varID varmodel.ID, subsID registry.SubsID) {
		_ = s.router.Unsubscribe(s.id, subsID)
	})
	s.reg.Clear()

	_ = s.conn.Close()
	s.server.removeSession(s.id)

	if s.hooks != nil {
		s.hooks.FireSessionClosed(hook.SessionInfo{SessionID: s.id, PeerName: s.PeerName()})
	}
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}
