package server

// ConnectionSnapshot is a read-only view of one connection's state, for
// diagnostics endpoints and tests. It never exposes the owned-entity map
// itself, only its size.
type ConnectionSnapshot struct {
	ID            uint64
	Authenticated bool
	JoinedWorld   bool
	Broken        bool
	OwnedCount    int
}

// Snapshot returns a point-in-time view of every live connection.
func (s *Server) Snapshot() []ConnectionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConnectionSnapshot, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, ConnectionSnapshot{
			ID:            uint64(c.ID),
			Authenticated: c.Authenticated,
			JoinedWorld:   c.JoinedWorld,
			Broken:        c.broken,
			OwnedCount:    len(c.owned),
		})
	}
	return out
}

// ConnectionCount reports how many connections are currently live.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// SpawnedCount reports how many entities currently hold a netId.
func (s *Server) SpawnedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spawned)
}
