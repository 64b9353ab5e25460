package proto

import (
	"testing"

	"bitwire/server/bitcodec"
)

func roundTrip(t *testing.T, m Message, fresh func() Message) Message {
	t.Helper()
	buf := make([]byte, 256)
	w := bitcodec.NewWriter(buf)
	if !WriteFrame(w, m) {
		t.Fatalf("WriteFrame failed for id %#x", m.ID())
	}

	r := bitcodec.NewReader(w.Segment())
	id, ok := r.ReadByteBits(8)
	if !ok {
		t.Fatalf("failed to read id")
	}
	if id != m.ID() {
		t.Fatalf("id = %#x, want %#x", id, m.ID())
	}

	out := fresh()
	if !out.Deserialize(r) {
		t.Fatalf("Deserialize failed for id %#x", m.ID())
	}
	return out
}

func TestSpawnRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Spawn{
		Prefab: PrefabID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		NetID:  123456789,
		Owned:  true,
		X:      1.5, Y: -2.25, Z: 3.75,
		QX: 0, QY: 0, QZ: 0, QW: 1,
	}
	out := roundTrip(t, in, func() Message { return &Spawn{} }).(*Spawn)

	if out.Prefab != in.Prefab {
		t.Fatalf("Prefab = %v, want %v", out.Prefab, in.Prefab)
	}
	if out.NetID != in.NetID || out.Owned != in.Owned {
		t.Fatalf("NetID/Owned = %d/%v, want %d/%v", out.NetID, out.Owned, in.NetID, in.Owned)
	}
	if out.X != in.X || out.Y != in.Y || out.Z != in.Z {
		t.Fatalf("position = (%v,%v,%v), want (%v,%v,%v)", out.X, out.Y, out.Z, in.X, in.Y, in.Z)
	}
}

func TestUnspawnRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Unspawn{NetID: 42}
	out := roundTrip(t, in, func() Message { return &Unspawn{} }).(*Unspawn)
	if out.NetID != in.NetID {
		t.Fatalf("NetID = %d, want %d", out.NetID, in.NetID)
	}
}

func TestTransformRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Transform{NetID: 7, X: 1, Y: 2, Z: 3, QX: 0, QY: 0, QZ: 0, QW: 1}
	out := roundTrip(t, in, func() Message { return &Transform{} }).(*Transform)
	if out.NetID != in.NetID || out.X != in.X || out.Y != in.Y || out.Z != in.Z {
		t.Fatalf("Transform round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestChatRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Chat{Sender: "alice", Text: "hello world"}
	out := roundTrip(t, in, func() Message { return &Chat{} }).(*Chat)
	if out.Sender != in.Sender || out.Text != in.Text {
		t.Fatalf("Chat round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestJoinWorldChatRoundTrip(t *testing.T) {
	t.Parallel()

	in := &JoinWorldChat{DisplayName: "bob"}
	out := roundTrip(t, in, func() Message { return &JoinWorldChat{} }).(*JoinWorldChat)
	if out.DisplayName != in.DisplayName {
		t.Fatalf("DisplayName = %q, want %q", out.DisplayName, in.DisplayName)
	}
}

func TestNewPrefabIDIsNonZeroAndUnique(t *testing.T) {
	t.Parallel()

	a, err := NewPrefabID()
	if err != nil {
		t.Fatalf("NewPrefabID: %v", err)
	}
	b, err := NewPrefabID()
	if err != nil {
		t.Fatalf("NewPrefabID: %v", err)
	}

	var zero PrefabID
	if a == zero {
		t.Fatalf("NewPrefabID returned the zero value")
	}
	if a == b {
		t.Fatalf("two calls to NewPrefabID returned the same id")
	}
}

func TestConnectDisconnectAreEmptyFrames(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 16)
	w := bitcodec.NewWriter(buf)
	if !WriteFrame(w, &Connect{}) {
		t.Fatalf("WriteFrame(Connect) failed")
	}
	if got := w.BitPosition(); got != 8 {
		t.Fatalf("BitPosition() = %d, want 8 (id byte only)", got)
	}

	w = bitcodec.NewWriter(buf)
	if !WriteFrame(w, &Disconnect{}) {
		t.Fatalf("WriteFrame(Disconnect) failed")
	}
	if got := w.BitPosition(); got != 8 {
		t.Fatalf("Disconnect BitPosition() = %d, want 8 (id byte only)", got)
	}
}
