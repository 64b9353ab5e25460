package proto

import (
	"github.com/google/uuid"

	"bitwire/server/bitcodec"
)

// prefabIDSize is the raw byte width of a prefab identifier on the wire
// (see proto.PrefabID).
const prefabIDSize = 16

// PrefabID is a 16-byte inline identifier, written verbatim with no
// framing. The wire representation only cares that it is 16 raw bytes.
type PrefabID [prefabIDSize]byte

// NewPrefabID mints a random v4 UUID and returns it as a PrefabID.
func NewPrefabID() (PrefabID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return PrefabID{}, err
	}
	var out PrefabID
	copy(out[:], id[:])
	return out, nil
}

// Connect is synthesized by ServerCore on transport_connected; it is never
// actually sent over the wire.
type Connect struct{}

func (Connect) ID() byte                             { return IDConnect }
func (Connect) Serialize(w *bitcodec.Writer) bool     { return true }
func (*Connect) Deserialize(r *bitcodec.Reader) bool  { return true }

// Disconnect is synthesized by ServerCore on transport_disconnected; it is
// never actually sent over the wire.
type Disconnect struct{}

func (Disconnect) ID() byte                            { return IDDisconnect }
func (Disconnect) Serialize(w *bitcodec.Writer) bool    { return true }
func (*Disconnect) Deserialize(r *bitcodec.Reader) bool { return true }

// Spawn tells a client to instantiate a prefab-backed entity.
type Spawn struct {
	Prefab PrefabID
	NetID  uint64
	Owned  bool
	X, Y, Z float32
	QX, QY, QZ, QW float32
}

func (Spawn) ID() byte { return IDSpawn }

func (s *Spawn) Serialize(w *bitcodec.Writer) bool {
	if !w.WriteBytesFixed(s.Prefab[:]) {
		return false
	}
	if !w.WriteUlongBits(s.NetID, 64) {
		return false
	}
	if !w.WriteBool(s.Owned) {
		return false
	}
	if !w.WriteFloat(s.X) || !w.WriteFloat(s.Y) || !w.WriteFloat(s.Z) {
		return false
	}
	return w.WriteQuaternionSmallestThree(s.QX, s.QY, s.QZ, s.QW)
}

func (s *Spawn) Deserialize(r *bitcodec.Reader) bool {
	prefab, ok := r.ReadBytesFixed(prefabIDSize)
	if !ok {
		return false
	}
	copy(s.Prefab[:], prefab)
	netID, ok := r.ReadUlongBits(64)
	if !ok {
		return false
	}
	owned, ok := r.ReadBool()
	if !ok {
		return false
	}
	x, ok := r.ReadFloat()
	if !ok {
		return false
	}
	y, ok := r.ReadFloat()
	if !ok {
		return false
	}
	z, ok := r.ReadFloat()
	if !ok {
		return false
	}
	qx, qy, qz, qw, ok := r.ReadQuaternionSmallestThree()
	if !ok {
		return false
	}
	s.NetID, s.Owned, s.X, s.Y, s.Z = netID, owned, x, y, z
	s.QX, s.QY, s.QZ, s.QW = qx, qy, qz, qw
	return true
}

// Unspawn tells a client to remove a previously spawned entity.
type Unspawn struct {
	NetID uint64
}

func (Unspawn) ID() byte { return IDUnspawn }

func (u *Unspawn) Serialize(w *bitcodec.Writer) bool {
	return w.WriteUlongBits(u.NetID, 64)
}

func (u *Unspawn) Deserialize(r *bitcodec.Reader) bool {
	netID, ok := r.ReadUlongBits(64)
	if !ok {
		return false
	}
	u.NetID = netID
	return true
}

// Transform carries a position/rotation update for an already-spawned
// entity.
type Transform struct {
	NetID          uint64
	X, Y, Z        float32
	QX, QY, QZ, QW float32
}

func (Transform) ID() byte { return IDTransform }

func (t *Transform) Serialize(w *bitcodec.Writer) bool {
	if !w.WriteUlongBits(t.NetID, 64) {
		return false
	}
	if !w.WriteFloat(t.X) || !w.WriteFloat(t.Y) || !w.WriteFloat(t.Z) {
		return false
	}
	return w.WriteQuaternionSmallestThree(t.QX, t.QY, t.QZ, t.QW)
}

func (t *Transform) Deserialize(r *bitcodec.Reader) bool {
	netID, ok := r.ReadUlongBits(64)
	if !ok {
		return false
	}
	x, ok := r.ReadFloat()
	if !ok {
		return false
	}
	y, ok := r.ReadFloat()
	if !ok {
		return false
	}
	z, ok := r.ReadFloat()
	if !ok {
		return false
	}
	qx, qy, qz, qw, ok := r.ReadQuaternionSmallestThree()
	if !ok {
		return false
	}
	t.NetID, t.X, t.Y, t.Z = netID, x, y, z
	t.QX, t.QY, t.QZ, t.QW = qx, qy, qz, qw
	return true
}

// JoinWorld requests that the sending connection's avatar be spawned into
// the world, identified by prefab id. This is the generic-game variant of
// id 0x31; see JoinWorldChat for the fixed-string variant used by
// chat-only deployments. Only one of the two may be registered on a given
// Dispatcher, since both claim the same id.
type JoinWorld struct {
	Prefab PrefabID
}

func (JoinWorld) ID() byte { return IDJoinWorld }

func (j *JoinWorld) Serialize(w *bitcodec.Writer) bool {
	return w.WriteBytesFixed(j.Prefab[:])
}

func (j *JoinWorld) Deserialize(r *bitcodec.Reader) bool {
	prefab, ok := r.ReadBytesFixed(prefabIDSize)
	if !ok {
		return false
	}
	copy(j.Prefab[:], prefab)
	return true
}

// JoinWorldChat is the fixed-string variant of id 0x31 used by chat-only
// deployments that have no prefab catalog, only a display name.
type JoinWorldChat struct {
	DisplayName string
}

func (JoinWorldChat) ID() byte { return IDJoinWorld }

func (j *JoinWorldChat) Serialize(w *bitcodec.Writer) bool {
	return w.WriteFixedString(j.DisplayName, bitcodec.StringCapacity32)
}

func (j *JoinWorldChat) Deserialize(r *bitcodec.Reader) bool {
	name, ok := r.ReadFixedString(bitcodec.StringCapacity32)
	if !ok {
		return false
	}
	j.DisplayName = name
	return true
}

// Joined acknowledges a JoinWorld/JoinWorldChat request; it carries no
// payload.
type Joined struct{}

func (Joined) ID() byte                            { return IDJoined }
func (Joined) Serialize(w *bitcodec.Writer) bool   { return true }
func (*Joined) Deserialize(r *bitcodec.Reader) bool { return true }

// Chat carries a sender display name and message text, both fixed-length
// inline strings.
type Chat struct {
	Sender string
	Text   string
}

func (Chat) ID() byte { return IDChat }

func (c *Chat) Serialize(w *bitcodec.Writer) bool {
	if !w.WriteFixedString(c.Sender, bitcodec.StringCapacity32) {
		return false
	}
	return w.WriteFixedString(c.Text, bitcodec.StringCapacity128)
}

func (c *Chat) Deserialize(r *bitcodec.Reader) bool {
	sender, ok := r.ReadFixedString(bitcodec.StringCapacity32)
	if !ok {
		return false
	}
	text, ok := r.ReadFixedString(bitcodec.StringCapacity128)
	if !ok {
		return false
	}
	c.Sender, c.Text = sender, text
	return true
}
