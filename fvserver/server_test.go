package fvserver

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/flightvars/flightvars/hook"
	"github.com/flightvars/flightvars/network"
	"github.com/flightvars/flightvars/registry"
	"github.com/flightvars/flightvars/router"
	"github.com/flightvars/flightvars/varmodel"
	"github.com/flightvars/flightvars/wire"
)

// fakeMaster is a minimal router.Master double: it remembers the last
// handler registered per variable and lets the test trigger a fan-out by
// calling push directly, without a real FSUIPC sampler. router.Router
// does not serialize calls into a master, so this double guards its own
// state the way a real master (e.g. fsuipc.Sampler's executor) would.
type fakeMaster struct {
	idGen *registry.IDGenerator

	mu       sync.Mutex
	handlers map[registry.SubsID]router.FanoutHandler
	vars     map[registry.SubsID]varmodel.ID
	fail     bool
}

func newFakeMaster() *fakeMaster {
	return &fakeMaster{
		idGen:    registry.NewIDGenerator(),
		handlers: make(map[registry.SubsID]router.FanoutHandler),
		vars:     make(map[registry.SubsID]varmodel.ID),
	}
}

func (m *fakeMaster) Subscribe(varID varmodel.ID, handler router.FanoutHandler) (registry.SubsID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, varmodel.ErrEmptyName
	}
	id := m.idGen.Next()
	m.handlers[id] = handler
	m.vars[id] = varID
	return id, nil
}

func (m *fakeMaster) Unsubscribe(subsID registry.SubsID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, subsID)
	delete(m.vars, subsID)
	return nil
}

func (m *fakeMaster) Update(subsID registry.SubsID, value varmodel.Value) error {
	return nil
}

func (m *fakeMaster) push(subsID registry.SubsID, value varmodel.Value) {
	m.mu.Lock()
	handler, vID := m.handlers[subsID], m.vars[subsID]
	m.mu.Unlock()
	handler(vID, value)
}

func (m *fakeMaster) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

func startTestServer(t *testing.T, rtr *router.Router) (*Server, net.Addr) {
	t.Helper()

	cfg := Config{
		ListenConfig: &network.ListenerConfig{Address: "127.0.0.1:0", TCPKeepAlive: 5 * time.Second},
		Router:       rtr,
		Hooks:        hook.NewManager(),
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(time.Second) })

	return srv, srv.Addr()
}

func dialAndHandshake(t *testing.T, addr net.Addr, peerName string) (net.Conn, *wire.MessageReader) {
	t.Helper()

	conn, err := net.Dial(addr.Network(), addr.String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := wire.WriteMessage(conn, wire.BeginSession{PeerName: peerName, ProtocolVersion: ProtocolVersion}); err != nil {
		t.Fatalf("write begin_session: %v", err)
	}

	reader := wire.NewMessageReader(conn)
	msg, err := reader.ReadMessage()
	if err != nil {
		t.Fatalf("read begin_session reply: %v", err)
	}
	reply, ok := msg.(wire.BeginSession)
	if !ok {
		t.Fatalf("expected BeginSession reply, got %T", msg)
	}
	if reply.PeerName != ServerPeerName || reply.ProtocolVersion != ProtocolVersion {
		t.Fatalf("unexpected handshake reply %+v", reply)
	}

	return conn, reader
}

func TestServerHandshakeThenEndSession(t *testing.T) {
	rtr := router.New(nil)
	_, addr := startTestServer(t, rtr)

	conn, _ := dialAndHandshake(t, addr, "Client A")
	defer conn.Close()

	if err := wire.WriteMessage(conn, wire.EndSession{Cause: "Client disconnected"}); err != nil {
		t.Fatalf("write end_session: %v", err)
	}
}

func TestServerSubscribeAndFanout(t *testing.T) {
	rtr := router.New(nil)
	master := newFakeMaster()
	if err := rtr.RegisterMaster("fsuipc/offset", master); err != nil {
		t.Fatalf("RegisterMaster: %v", err)
	}

	_, addr := startTestServer(t, rtr)
	conn, reader := dialAndHandshake(t, addr, "Client A")
	defer conn.Close()

	req := wire.SubscriptionRequest{Group: "fsuipc/offset", Name: "0x1000:1"}
	if err := wire.WriteMessage(conn, req); err != nil {
		t.Fatalf("write subscription_request: %v", err)
	}

	msg, err := reader.ReadMessage()
	if err != nil {
		t.Fatalf("read subscription_reply: %v", err)
	}
	reply, ok := msg.(wire.SubscriptionReply)
	if !ok || reply.Status != wire.StatusSubscribed {
		t.Fatalf("unexpected subscription reply %+v (ok=%v)", msg, ok)
	}

	master.push(registry.SubsID(reply.SubsID), varmodel.NewByte(0x42))

	msg, err = reader.ReadMessage()
	if err != nil {
		t.Fatalf("read var_update: %v", err)
	}
	update, ok := msg.(wire.VarUpdate)
	if !ok || update.SubsID != reply.SubsID {
		t.Fatalf("unexpected var_update %+v (ok=%v)", msg, ok)
	}
	b, _ := update.Value.Byte()
	if b != 0x42 {
		t.Fatalf("expected value 0x42, got %d", b)
	}
}

func TestServerSubscribeNoSuchVariable(t *testing.T) {
	rtr := router.New(nil)
	_, addr := startTestServer(t, rtr)
	conn, reader := dialAndHandshake(t, addr, "Client A")
	defer conn.Close()

	req := wire.SubscriptionRequest{Group: "no/such/group", Name: "x"}
	if err := wire.WriteMessage(conn, req); err != nil {
		t.Fatalf("write subscription_request: %v", err)
	}

	msg, err := reader.ReadMessage()
	if err != nil {
		t.Fatalf("read subscription_reply: %v", err)
	}
	reply, ok := msg.(wire.SubscriptionReply)
	if !ok || reply.Status != wire.StatusNoSuchVar {
		t.Fatalf("expected no_such_var, got %+v (ok=%v)", msg, ok)
	}
}

func TestServerUnsubscribe(t *testing.T) {
	rtr := router.New(nil)
	master := newFakeMaster()
	if err := rtr.RegisterMaster("fsuipc/offset", master); err != nil {
		t.Fatalf("RegisterMaster: %v", err)
	}

	_, addr := startTestServer(t, rtr)
	conn, reader := dialAndHandshake(t, addr, "Client A")
	defer conn.Close()

	if err := wire.WriteMessage(conn, wire.SubscriptionRequest{Group: "fsuipc/offset", Name: "0x1000:1"}); err != nil {
		t.Fatalf("write subscription_request: %v", err)
	}
	msg, err := reader.ReadMessage()
	if err != nil {
		t.Fatalf("read subscription_reply: %v", err)
	}
	subID := msg.(wire.SubscriptionReply).SubsID

	if err := wire.WriteMessage(conn, wire.UnsubscriptionRequest{SubsID: subID}); err != nil {
		t.Fatalf("write unsubscription_request: %v", err)
	}
	msg, err = reader.ReadMessage()
	if err != nil {
		t.Fatalf("read unsubscription_reply: %v", err)
	}
	reply, ok := msg.(wire.UnsubscriptionReply)
	if !ok || reply.Status != wire.StatusUnsubscribed || reply.SubsID != subID {
		t.Fatalf("unexpected unsubscription reply %+v (ok=%v)", msg, ok)
	}

	if err := wire.WriteMessage(conn, wire.UnsubscriptionRequest{SubsID: subID}); err != nil {
		t.Fatalf("write second unsubscription_request: %v", err)
	}
	msg, err = reader.ReadMessage()
	if err != nil {
		t.Fatalf("read second unsubscription_reply: %v", err)
	}
	reply, ok = msg.(wire.UnsubscriptionReply)
	if !ok || reply.Status != wire.StatusNoSuchSubscription {
		t.Fatalf("expected no_such_subscription on repeat unsubscribe, got %+v (ok=%v)", msg, ok)
	}
}

func TestServerEndSessionUnsubscribesAtMaster(t *testing.T) {
	rtr := router.New(nil)
	master := newFakeMaster()
	if err := rtr.RegisterMaster("fsuipc/offset", master); err != nil {
		t.Fatalf("RegisterMaster: %v", err)
	}

	_, addr := startTestServer(t, rtr)
	conn, reader := dialAndHandshake(t, addr, "Client A")

	if err := wire.WriteMessage(conn, wire.SubscriptionRequest{Group: "fsuipc/offset", Name: "0x1000:1"}); err != nil {
		t.Fatalf("write subscription_request: %v", err)
	}
	if _, err := reader.ReadMessage(); err != nil {
		t.Fatalf("read subscription_reply: %v", err)
	}
	if master.count() != 1 {
		t.Fatalf("expected 1 subscription at master, got %d", master.count())
	}

	if err := wire.WriteMessage(conn, wire.EndSession{Cause: "Client disconnected"}); err != nil {
		t.Fatalf("write end_session: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && master.count() != 0 {
		time.Sleep(time.Millisecond)
	}
	if master.count() != 0 {
		t.Fatalf("expected subscription to be dropped at master after end_session, got %d", master.count())
	}
}

func TestServerRejectsVersionMismatch(t *testing.T) {
	rtr := router.New(nil)
	_, addr := startTestServer(t, rtr)

	conn, err := net.Dial(addr.Network(), addr.String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := wire.WriteMessage(conn, wire.BeginSession{PeerName: "Old Client", ProtocolVersion: 0x0200}); err != nil {
		t.Fatalf("write begin_session: %v", err)
	}

	reader := wire.NewMessageReader(conn)
	if _, err := reader.ReadMessage(); err == nil {
		t.Fatal("expected connection to close without a handshake reply on version mismatch")
	}
}
