package server

import (
	"bitwire/server/entitystore"
	"bitwire/server/transport"
)

// Connection is the server's bookkeeping for one live transport peer, per
// spec.md §3. Exactly one Connection exists per admitted transport id;
// Broken is monotonic once set.
type Connection struct {
	ID            transport.ConnectionID
	Authenticated bool
	JoinedWorld   bool
	broken        bool
	// owned maps a netId this connection is the owner of to the entity it
	// backs, so Disconnect can unspawn everything the peer brought into
	// the world without a separate reverse index.
	owned map[uint64]entitystore.Entity
}

func newConnection(id transport.ConnectionID) *Connection {
	return &Connection{
		ID:            id,
		Authenticated: true, // spec.md §4.5: default true; auth modules flip it false in their own Connect handler.
		owned:         make(map[uint64]entitystore.Entity),
	}
}

// OwnedNetIDs returns a snapshot of every netId this connection owns.
func (c *Connection) OwnedNetIDs() []uint64 {
	out := make([]uint64, 0, len(c.owned))
	for netID := range c.owned {
		out = append(out, netID)
	}
	return out
}
