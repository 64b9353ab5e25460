package server

import (
	"context"

	"bitwire/server/entitystore"
	"bitwire/server/proto"
	"bitwire/server/transport"
)

// Spawn assigns entity a netId, records it in the spawned table, and (if
// owner is non-nil) adds it to that connection's owned-entity set, per
// spec.md §4.5. It does not itself notify anyone; sending the Spawn
// message to the relevant observers is the caller's job, since only the
// caller knows the entity's position/rotation/prefab.
func (s *Server) Spawn(entity entitystore.Entity, owner *transport.ConnectionID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextNetID++
	netID := s.nextNetID

	comp := entitystore.NetworkComponent{NetID: netID, Observers: make(map[transport.ConnectionID]struct{})}
	if owner != nil {
		comp.Owner = *owner
		comp.HasOwner = true
	}
	s.store.SetComponent(entity, comp)
	s.spawned[netID] = entity

	if owner != nil {
		if conn := s.connectionLocked(*owner); conn != nil {
			conn.owned[netID] = entity
		}
	}
	return netID
}

// Unspawn clears entity's netId, removes it from its owner's owned set,
// and emits an Unspawn message to every observer connection that still
// exists, per spec.md §4.5.
func (s *Server) Unspawn(entity entitystore.Entity) {
	s.mu.Lock()
	comp, ok := s.store.GetComponent(entity)
	if !ok {
		s.mu.Unlock()
		return
	}
	netID := comp.NetID
	delete(s.spawned, netID)
	if comp.HasOwner {
		if conn := s.connectionLocked(comp.Owner); conn != nil {
			delete(conn.owned, netID)
		}
	}
	observers := make([]transport.ConnectionID, 0, len(comp.Observers))
	for id := range comp.Observers {
		observers = append(observers, id)
	}
	s.mu.Unlock()

	for _, id := range observers {
		s.dispatch.Send(context.Background(), id, &proto.Unspawn{NetID: netID}, transport.Reliable)
	}
}

func (s *Server) unspawnByNetID(netID uint64) {
	s.mu.Lock()
	entity, ok := s.spawned[netID]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.Unspawn(entity)
}

// Destroy is Unspawn followed by the entity store's own Destroy, per
// spec.md §4.5.
func (s *Server) Destroy(entity entitystore.Entity) {
	s.Unspawn(entity)
	s.store.Destroy(entity)
}

// JoinWorld spawns entity owned by connectionID and marks that
// connection's JoinedWorld flag, per spec.md §4.5.
func (s *Server) JoinWorld(connectionID transport.ConnectionID, entity entitystore.Entity) uint64 {
	netID := s.Spawn(entity, &connectionID)
	s.mu.Lock()
	if conn := s.connectionLocked(connectionID); conn != nil {
		conn.JoinedWorld = true
	}
	s.mu.Unlock()
	return netID
}

// AddObserver registers connectionID as an observer of entity, so future
// Unspawn calls notify it. Callers typically pair this with sending the
// initial Spawn message themselves.
func (s *Server) AddObserver(entity entitystore.Entity, connectionID transport.ConnectionID) {
	s.store.AddObserver(entity, connectionID)
}

// RemoveObserver stops notifying connectionID about entity.
func (s *Server) RemoveObserver(entity entitystore.Entity, connectionID transport.ConnectionID) {
	s.store.RemoveObserver(entity, connectionID)
}
