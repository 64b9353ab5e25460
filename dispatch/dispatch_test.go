package dispatch

import (
	"context"
	"testing"
	"time"

	"bitwire/server/batch"
	"bitwire/server/bitcodec"
	"bitwire/server/proto"
	"bitwire/server/transport"
)

type fakeConns struct {
	authenticated map[transport.ConnectionID]bool
	known         map[transport.ConnectionID]bool
	broken        map[transport.ConnectionID]bool
}

func newFakeConns() *fakeConns {
	return &fakeConns{
		authenticated: make(map[transport.ConnectionID]bool),
		known:         make(map[transport.ConnectionID]bool),
		broken:        make(map[transport.ConnectionID]bool),
	}
}

func (f *fakeConns) allow(id transport.ConnectionID, authenticated bool) {
	f.known[id] = true
	f.authenticated[id] = authenticated
}

func (f *fakeConns) Authenticated(id transport.ConnectionID) (bool, bool) {
	return f.authenticated[id], f.known[id]
}

func (f *fakeConns) Broken(id transport.ConnectionID) bool {
	return f.broken[id]
}

type fakeDisconnector struct {
	disconnected []transport.ConnectionID
}

func (f *fakeDisconnector) Disconnect(id transport.ConnectionID) {
	f.disconnected = append(f.disconnected, id)
}

type recordingSender struct {
	sent [][]byte
}

func (r *recordingSender) Send(id transport.ConnectionID, payload []byte, channel transport.Channel) bool {
	r.sent = append(r.sent, append([]byte(nil), payload...))
	return true
}

func newTestDispatcher(conns *fakeConns, disc *fakeDisconnector) (*Dispatcher, *batch.Batcher, *recordingSender) {
	sender := &recordingSender{}
	b := batch.New(64, time.Hour, sender, nopBroken{}, nil, nil)
	d := New(conns, disc, b, 128, nil, nil)
	return d, b, sender
}

type nopBroken struct{}

func (nopBroken) MarkBroken(transport.ConnectionID) {}

func TestRegisterDuplicateIDErrors(t *testing.T) {
	conns := newFakeConns()
	d, _, _ := newTestDispatcher(conns, &fakeDisconnector{})

	if err := d.Register(proto.IDChat, func() proto.Message { return &proto.Chat{} }, func(transport.ConnectionID, proto.Message) {}, false); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := d.Register(proto.IDChat, func() proto.Message { return &proto.Chat{} }, func(transport.ConnectionID, proto.Message) {}, false); err == nil {
		t.Fatalf("expected an error registering a duplicate id")
	}
}

func TestSendRejectsUnknownConnection(t *testing.T) {
	conns := newFakeConns()
	d, _, sender := newTestDispatcher(conns, &fakeDisconnector{})

	if d.Send(context.Background(), 1, &proto.Chat{Sender: "a", Text: "hi"}, transport.Reliable) {
		t.Fatalf("Send for an unknown connection returned true")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no send for an unknown connection")
	}
}

func TestSendRejectsBrokenConnection(t *testing.T) {
	conns := newFakeConns()
	conns.allow(1, true)
	conns.broken[1] = true
	d, _, _ := newTestDispatcher(conns, &fakeDisconnector{})

	if d.Send(context.Background(), 1, &proto.Chat{Sender: "a", Text: "hi"}, transport.Reliable) {
		t.Fatalf("Send for a broken connection returned true")
	}
}

func TestSendFramesAndAppends(t *testing.T) {
	conns := newFakeConns()
	conns.allow(1, true)
	d, b, sender := newTestDispatcher(conns, &fakeDisconnector{})

	if !d.Send(context.Background(), 1, &proto.Joined{}, transport.Reliable) {
		t.Fatalf("Send returned false")
	}
	b.Flush(1, transport.Reliable)

	if len(sender.sent) != 1 {
		t.Fatalf("got %d sends, want 1", len(sender.sent))
	}
	if sender.sent[0][0] != proto.IDJoined {
		t.Fatalf("frame id = 0x%02x, want 0x%02x", sender.sent[0][0], proto.IDJoined)
	}
}

func TestOnTransportDataDisconnectsOnUnknownID(t *testing.T) {
	conns := newFakeConns()
	conns.allow(1, true)
	disc := &fakeDisconnector{}
	d, _, _ := newTestDispatcher(conns, disc)

	d.OnTransportData(context.Background(), 1, []byte{0x99})

	if len(disc.disconnected) != 1 {
		t.Fatalf("expected a disconnect for an unregistered message id")
	}
}

func TestOnTransportDataDisconnectsWhenUnauthenticated(t *testing.T) {
	conns := newFakeConns()
	conns.allow(1, false)
	disc := &fakeDisconnector{}
	d, _, _ := newTestDispatcher(conns, disc)

	var called bool
	d.Register(proto.IDChat, func() proto.Message { return &proto.Chat{} }, func(transport.ConnectionID, proto.Message) { called = true }, true)

	buf := make([]byte, 64)
	w := bitcodec.NewWriter(buf)
	proto.WriteFrame(w, &proto.Chat{Sender: "a", Text: "hi"})

	d.OnTransportData(context.Background(), 1, w.Segment())

	if called {
		t.Fatalf("handler ran for an unauthenticated connection")
	}
	if len(disc.disconnected) != 1 {
		t.Fatalf("expected a disconnect for an unauthenticated protected message")
	}
}

func TestOnTransportDataDeserializesAndDispatches(t *testing.T) {
	conns := newFakeConns()
	conns.allow(1, true)
	disc := &fakeDisconnector{}
	d, _, _ := newTestDispatcher(conns, disc)

	var got *proto.Chat
	d.Register(proto.IDChat, func() proto.Message { return &proto.Chat{} }, func(_ transport.ConnectionID, msg proto.Message) {
		got = msg.(*proto.Chat)
	}, true)

	buf := make([]byte, 64)
	w := bitcodec.NewWriter(buf)
	proto.WriteFrame(w, &proto.Chat{Sender: "alice", Text: "hello"})

	d.OnTransportData(context.Background(), 1, w.Segment())

	if len(disc.disconnected) != 0 {
		t.Fatalf("expected no disconnect for a valid frame")
	}
	if got == nil {
		t.Fatalf("expected the handler to run")
	}
	if got.Sender != "alice" || got.Text != "hello" {
		t.Fatalf("got Chat{%q,%q}, want Chat{alice,hello}", got.Sender, got.Text)
	}
}

func TestDispatchRoutesSyntheticMessages(t *testing.T) {
	conns := newFakeConns()
	conns.allow(1, true)
	d, _, _ := newTestDispatcher(conns, &fakeDisconnector{})

	var called bool
	d.Register(proto.IDConnect, func() proto.Message { return &proto.Connect{} }, func(transport.ConnectionID, proto.Message) { called = true }, false)

	d.Dispatch(1, &proto.Connect{})

	if !called {
		t.Fatalf("expected Dispatch to invoke the registered Connect handler")
	}
}

func TestDispatchIsNoopWithoutHandler(t *testing.T) {
	conns := newFakeConns()
	conns.allow(1, true)
	d, _, _ := newTestDispatcher(conns, &fakeDisconnector{})

	d.Dispatch(1, &proto.Disconnect{})
}
