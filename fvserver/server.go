// Package fvserver implements the server side of the Variable Pub/Sub
// Protocol: a session state machine per connection (AwaitingHandshake ->
// Active -> Terminating) multiplexed over the corpus's connection-pool
// and listener machinery, dispatching subscribe/unsubscribe/update
// requests to the process-wide group-master router.
package fvserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/flightvars/flightvars/hook"
	"github.com/flightvars/flightvars/network"
	"github.com/flightvars/flightvars/router"
)

// Config configures a Server.
type Config struct {
	// ListenConfig is passed through to network.NewListener; if nil,
	// network.DefaultListenerConfig(":8642") is used.
	ListenConfig *network.ListenerConfig
	Router       *router.Router
	Hooks        *hook.Manager
	Logger       Logger
}

// Server accepts connections, hands each one off to its own Session
// reactor, and keeps a table of live sessions by id so fan-out handlers
// can resolve a (session id, var id) pair back to a live session (or
// silently no-op if the session has already closed). Session ids are
// the same ids the listener's connection pool uses, so the two tables
// stay trivially in sync.
type Server struct {
	listener *network.Listener
	pool     *network.Pool
	dm       *network.DisconnectManager
	gs       *network.GracefulShutdown

	router *router.Router
	hooks  *hook.Manager
	logger Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewServer constructs a server bound to the address in cfg.ListenConfig
// but does not start accepting connections; call Start for that.
func NewServer(cfg Config) (*Server, error) {
	listenCfg := cfg.ListenConfig
	if listenCfg == nil {
		listenCfg = network.DefaultListenerConfig(":8642")
	}

	rtr := cfg.Router
	if rtr == nil {
		rtr = router.New(cfg.Hooks)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	listener, err := network.NewListener(listenCfg, nil)
	if err != nil {
		return nil, err
	}

	pool := listener.Pool()
	dm := network.NewDisconnectManager(5 * time.Second)

	s := &Server{
		listener: listener,
		pool:     pool,
		dm:       dm,
		gs:       network.NewGracefulShutdown(pool, dm, 30*time.Second),
		router:   rtr,
		hooks:    cfg.Hooks,
		logger:   logger,
		sessions: make(map[string]*Session),
	}

	dm.OnDisconnect(s.onDisconnectNotice)
	listener.OnConnection(s.onConnection)
	return s, nil
}

// Start begins accepting connections. Each accepted connection gets its
// own Session, run on its own goroutine.
func (s *Server) Start() error {
	return s.listener.Start()
}

// Addr returns the listener's bound network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Router returns the group-master router this server dispatches
// subscribe/unsubscribe/update requests through.
func (s *Server) Router() *router.Router { return s.router }

// onDisconnectNotice is the handler registered with the disconnect
// manager: it nudges the session owning conn towards teardown. The
// session's own reactor does the actual unsubscribing once its read
// loop observes the resulting socket close.
func (s *Server) onDisconnectNotice(conn *network.Connection, _ *network.DisconnectPacket) error {
	if sess, ok := s.session(conn.ID()); ok {
		sess.Close()
	}
	return nil
}

// Shutdown stops accepting new connections, then drives a graceful
// disconnect across every pooled connection (one goroutine per
// connection, per network.GracefulShutdown), and finally waits up to
// timeout for each session's reactor to finish unsubscribing at the
// router before forcing anything still open closed.
func (s *Server) Shutdown(timeout time.Duration) error {
	if err := s.listener.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.gs.Shutdown(ctx); err != nil && !errors.Is(err, network.ErrGracefulShutdownTimeout) {
		s.logger.Warn("fvserver: graceful shutdown reported an error", "error", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.sessionCount() == 0 {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.Close()
	}
	return nil
}

func (s *Server) onConnection(conn *network.Connection) error {
	id := conn.ID()
	sess := newSession(id, conn, s, s.router, s.hooks, s.logger)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	go sess.Serve()
	return nil
}

func (s *Server) session(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// removeSession drops the session from both the server's lookup table
// and the listener's connection pool, so a long-running server's pool
// does not accumulate entries for sessions that have already torn down.
func (s *Server) removeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	_ = s.pool.Remove(id)
}

func (s *Server) sessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
