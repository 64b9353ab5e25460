package ws

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bitwire/server/transport"
)

type recordingEvents struct {
	connected    []transport.ConnectionID
	data         []transport.ConnectionID
	payloads     [][]byte
	disconnected []transport.ConnectionID
}

func (r *recordingEvents) OnConnected(id transport.ConnectionID) { r.connected = append(r.connected, id) }
func (r *recordingEvents) OnData(id transport.ConnectionID, payload []byte) {
	r.data = append(r.data, id)
	r.payloads = append(r.payloads, append([]byte(nil), payload...))
}
func (r *recordingEvents) OnDisconnected(id transport.ConnectionID) {
	r.disconnected = append(r.disconnected, id)
}

func waitFor(t *testing.T, tr *Transport, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tr.Tick()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for condition")
}

func TestWebSocketRoundTrip(t *testing.T) {
	ev := &recordingEvents{}
	tr := New("127.0.0.1:18773", 1200, ev)
	if err := tr.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	time.Sleep(20 * time.Millisecond) // let the listener come up

	conn, _, err := websocket.DefaultDialer.Dial("ws://127.0.0.1:18773/", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, tr, func() bool { return len(ev.connected) == 1 })

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xAB, 0xCD}); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	waitFor(t, tr, func() bool { return len(ev.data) == 1 })
	if len(ev.payloads[0]) != 2 || ev.payloads[0][0] != 0xAB || ev.payloads[0][1] != 0xCD {
		t.Fatalf("payload = %v, want [0xAB 0xCD]", ev.payloads[0])
	}

	if !tr.Send(ev.connected[0], []byte{0x01}, transport.Reliable) {
		t.Fatalf("Send returned false")
	}

	conn.Close()
	waitFor(t, tr, func() bool { return len(ev.disconnected) == 1 })
}

func TestSendUnknownConnectionFails(t *testing.T) {
	tr := New("127.0.0.1:0", 1200, &recordingEvents{})
	if tr.Send(999, []byte{0x01}, transport.Reliable) {
		t.Fatalf("Send for an unregistered connection returned true")
	}
}

func TestMaxPacketSizeReflectsMTU(t *testing.T) {
	tr := New("127.0.0.1:0", 777, &recordingEvents{})
	if tr.MaxPacketSize() != 777 {
		t.Fatalf("MaxPacketSize() = %d, want 777", tr.MaxPacketSize())
	}
}

func TestGetAddressUnknownConnection(t *testing.T) {
	tr := New("127.0.0.1:0", 1200, &recordingEvents{})
	if _, ok := tr.GetAddress(1); ok {
		t.Fatalf("GetAddress for an unregistered connection returned ok=true")
	}
}
