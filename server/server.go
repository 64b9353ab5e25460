// Package server implements ServerCore from spec.md §4.5: the connection
// table, state machine, transport event routing, admission control,
// broken-connection suppression, and spawn/unspawn fan-out, built on top
// of the dispatch and batch packages.
package server

import (
	"context"
	"fmt"
	"sync"

	"bitwire/server/batch"
	"bitwire/server/config"
	"bitwire/server/dispatch"
	"bitwire/server/entitystore"
	"bitwire/server/logging"
	"bitwire/server/proto"
	"bitwire/server/telemetry"
	"bitwire/server/transport"
)

// State is the two-valued ServerState variant from spec.md §3.
type State int

const (
	StateInactive State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "inactive"
}

// InterestManager is the external collaborator spec.md §4.5 hands
// observer-set maintenance to after a disconnect. A deployment with no
// interest management can use NopInterestManager.
type InterestManager interface {
	Rebuild()
}

type nopInterestManager struct{}

func (nopInterestManager) Rebuild() {}

// NopInterestManager is a no-op InterestManager for deployments that spawn
// everything to everyone.
func NopInterestManager() InterestManager { return nopInterestManager{} }

// Callbacks lets an embedding application observe connection lifecycle
// without registering dispatch handlers for it.
type Callbacks struct {
	OnConnected    func(id transport.ConnectionID)
	OnDisconnected func(id transport.ConnectionID)
}

// Server is ServerCore: it owns the connection table and drives the
// transport/dispatch/batch pipeline described in spec.md §2.
type Server struct {
	mu    sync.Mutex
	state State

	cfg       config.ServerConfig
	transport transport.Transport
	dispatch  *dispatch.Dispatcher
	batcher   *batch.Batcher
	store     entitystore.Store
	interest  InterestManager
	logger    *logging.Router
	metrics   *telemetry.Metrics
	callbacks Callbacks

	connections map[transport.ConnectionID]*Connection
	spawned     map[uint64]entitystore.Entity
	nextNetID   uint64
}

// New constructs a Server bound to tr, its own Batcher and Dispatcher
// (both created here so they can be wired to this Server's ConnectionAuth
// / Disconnector / BrokenNotifier implementations), and store.
func New(cfg config.ServerConfig, tr transport.Transport, store entitystore.Store, interest InterestManager, logger *logging.Router, metrics *telemetry.Metrics, callbacks Callbacks) *Server {
	if interest == nil {
		interest = NopInterestManager()
	}
	if logger == nil {
		logger = logging.NewRouter(nil, logging.Config{}, nil, metrics)
	}
	s := &Server{
		cfg:         cfg,
		transport:   tr,
		store:       store,
		interest:    interest,
		logger:      logger,
		metrics:     metrics,
		callbacks:   callbacks,
		connections: make(map[transport.ConnectionID]*Connection),
		spawned:     make(map[uint64]entitystore.Entity),
	}
	// The batcher is wired to send through s (not tr directly) so a
	// transport constructed after this Server (e.g. one that needs s as
	// its transport.Events) can still be bound later via BindTransport.
	s.batcher = batch.New(cfg.MTU, cfg.BatchInterval, s, s, nil, metrics)
	s.dispatch = dispatch.New(s, s, s.batcher, cfg.SendBufferSize, metrics, nil)
	return s
}

// BindTransport attaches (or replaces) the transport this Server drives.
// It exists because the reference transports (transport/ws, transport/vsock)
// need the Server itself as their transport.Events at their own construction
// time, while Server.New needs a Sender for its Batcher before any transport
// necessarily exists yet; New wires the Batcher through s.Send instead of a
// transport captured at construction, so binding the real transport here
// takes effect immediately for already-buffered sends.
func (s *Server) BindTransport(tr transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = tr
}

// Send implements batch.Sender by forwarding to whatever transport is
// currently bound. It returns false, rather than panicking, if no
// transport has been bound yet.
func (s *Server) Send(id transport.ConnectionID, payload []byte, channel transport.Channel) bool {
	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr == nil {
		return false
	}
	return tr.Send(id, payload, channel)
}

// Dispatcher exposes the Server's Dispatcher so callers can register
// message handlers before or after Start.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatch }

// Batcher exposes the Server's Batcher, mostly so tests can force a Tick.
func (s *Server) Batcher() *batch.Batcher { return s.batcher }

// State reports whether the server is currently active.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions INACTIVE->ACTIVE. It starts the transport first and
// only then flips state, so no observer can see an active Server backed
// by an inactive transport.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive {
		return nil
	}
	if s.transport == nil {
		return fmt.Errorf("server: no transport bound, call BindTransport before Start")
	}
	s.connections = make(map[transport.ConnectionID]*Connection)
	s.spawned = make(map[uint64]entitystore.Entity)
	if err := s.transport.Start(); err != nil {
		return err
	}
	s.state = StateActive
	return nil
}

// Stop tears everything down: destroys all spawned entities, clears the
// connection table, stops the transport, and transitions to INACTIVE.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInactive {
		return nil
	}
	for netID, entity := range s.spawned {
		s.store.Destroy(entity)
		delete(s.spawned, netID)
	}
	for id := range s.connections {
		s.batcher.Remove(id)
		delete(s.connections, id)
	}
	var err error
	if s.transport != nil {
		err = s.transport.Stop()
	}
	s.state = StateInactive
	return err
}

// Tick drives the batcher's interval-based flush policy; call this once
// per server tick alongside transport.Tick().
func (s *Server) Tick(ctx context.Context) {
	s.batcher.Tick(ctx)
}

// connectionLocked returns the connection for id, or nil. Callers must
// hold s.mu.
func (s *Server) connectionLocked(id transport.ConnectionID) *Connection {
	return s.connections[id]
}

// Authenticated implements dispatch.ConnectionAuth.
func (s *Server) Authenticated(id transport.ConnectionID) (authenticated, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.connectionLocked(id)
	if c == nil {
		return false, false
	}
	return c.Authenticated, true
}

// Broken implements dispatch.ConnectionAuth and batch.BrokenNotifier's
// read side.
func (s *Server) Broken(id transport.ConnectionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.connectionLocked(id)
	return c == nil || c.broken
}

// MarkBroken implements batch.BrokenNotifier: a transport send failure
// flags the connection and requests its disconnect. Broken is monotonic.
func (s *Server) MarkBroken(id transport.ConnectionID) {
	s.mu.Lock()
	c := s.connectionLocked(id)
	if c != nil {
		c.broken = true
	}
	s.mu.Unlock()
	s.logger.Publish(context.Background(), logging.Event{
		Type: logging.EventBroken, Severity: logging.SeverityWarn, Connection: uint64(id),
	})
	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr != nil {
		tr.Disconnect(id)
	}
}

// Disconnect implements dispatch.Disconnector: it unilaterally asks the
// transport to drop id. The actual bookkeeping teardown happens when the
// transport reports OnDisconnected, matching spec.md §7's "no error
// surfaced beyond logging" for protocol violations.
func (s *Server) Disconnect(id transport.ConnectionID) {
	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr != nil {
		tr.Disconnect(id)
	}
}

// SetAuthenticated lets an authentication module flip a connection's
// authenticated bit, typically from within its own id-0x01 Connect
// handler, per spec.md §4.5.
func (s *Server) SetAuthenticated(id transport.ConnectionID, authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.connectionLocked(id); c != nil {
		c.Authenticated = authenticated
	}
}

// OnConnected implements transport.Events: admission control per
// spec.md §4.5.
func (s *Server) OnConnected(id transport.ConnectionID) {
	s.mu.Lock()
	if len(s.connections) >= s.cfg.ConnectionLimit || s.connections[id] != nil {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.AdmissionRejects.Inc()
		}
		s.logger.Publish(context.Background(), logging.Event{
			Type: logging.EventReject, Severity: logging.SeverityWarn, Connection: uint64(id),
			Reason: "duplicate_or_over_capacity",
		})
		s.mu.Lock()
		tr := s.transport
		s.mu.Unlock()
		if tr != nil {
			tr.Disconnect(id)
		}
		return
	}
	conn := newConnection(id)
	s.connections[id] = conn
	if s.metrics != nil {
		s.metrics.Connections.Set(float64(len(s.connections)))
	}
	s.mu.Unlock()

	s.logger.Publish(context.Background(), logging.Event{Type: logging.EventConnect, Severity: logging.SeverityInfo, Connection: uint64(id)})
	if s.callbacks.OnConnected != nil {
		s.callbacks.OnConnected(id)
	}
	s.dispatch.Dispatch(id, &proto.Connect{})
}

// OnData implements transport.Events.
func (s *Server) OnData(id transport.ConnectionID, payload []byte) {
	s.dispatch.OnTransportData(context.Background(), id, payload)
}

// OnDisconnected implements transport.Events: teardown ordering per
// spec.md §4.5 is load-bearing. The Disconnect message dispatches while
// the connection (and its owned-entity set) is still in the table, then
// owned entities are destroyed, then the connection is finally removed.
func (s *Server) OnDisconnected(id transport.ConnectionID) {
	s.dispatch.Dispatch(id, &proto.Disconnect{})

	if s.callbacks.OnDisconnected != nil {
		s.callbacks.OnDisconnected(id)
	}

	s.mu.Lock()
	conn := s.connectionLocked(id)
	var owned []entitystore.Entity
	if conn != nil {
		for _, entity := range conn.owned {
			owned = append(owned, entity)
		}
	}
	s.mu.Unlock()

	for _, entity := range owned {
		s.Destroy(entity)
	}

	s.mu.Lock()
	delete(s.connections, id)
	if s.metrics != nil {
		s.metrics.Connections.Set(float64(len(s.connections)))
	}
	s.mu.Unlock()
	s.batcher.Remove(id)

	s.logger.Publish(context.Background(), logging.Event{Type: logging.EventDisconnect, Severity: logging.SeverityInfo, Connection: uint64(id)})
	s.interest.Rebuild()
}
