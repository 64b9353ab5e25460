// Package ws implements transport.Transport over WebSocket connections,
// carrying each flushed batch as a single binary message. It is grounded
// on the teacher's hub.go broadcaster and internal/net/ws/session.go read
// loop, adapted from a JSON-per-message protocol to bitwire's bit-packed
// batched framing.
package ws

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"bitwire/server/transport"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type eventKind int

const (
	evConnected eventKind = iota
	evData
	evDisconnected
)

type queuedEvent struct {
	kind    eventKind
	id      transport.ConnectionID
	payload []byte
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex // guards writes; gorilla forbids concurrent writers
}

func (c *wsConn) writeBinary(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.BinaryMessage, payload) == nil
}

// Transport is a reference transport.Transport backed by net/http and
// gorilla/websocket. Every connect/data/disconnect event observed on a
// per-connection read goroutine is queued and only handed to the
// registered transport.Events on the caller's own Tick call, preserving
// the single-threaded cooperative model spec.md §5 requires.
type Transport struct {
	events   transport.Events
	mtu      int
	addr     string
	upgrader websocket.Upgrader

	httpServer *http.Server
	active     atomic.Bool

	mu     sync.Mutex
	conns  map[transport.ConnectionID]*wsConn
	nextID atomic.Uint64

	queue chan queuedEvent
}

// New builds a Transport listening on addr, capping payloads at mtu
// bytes, and delivering events (once queued) to ev on Tick.
func New(addr string, mtu int, ev transport.Events) *Transport {
	t := &Transport{
		events: ev,
		mtu:    mtu,
		addr:   addr,
		conns:  make(map[transport.ConnectionID]*wsConn),
		queue:  make(chan queuedEvent, 4096),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  mtu,
			WriteBufferSize: mtu,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	return t
}

// Start begins listening for WebSocket upgrades. It returns once the
// listener is bound; the accept loop runs in the background.
func (t *Transport) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleUpgrade)
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	t.httpServer = &http.Server{Handler: mux}
	t.active.Store(true)
	go t.httpServer.Serve(listener)
	return nil
}

func (t *Transport) Stop() error {
	if !t.active.CompareAndSwap(true, false) {
		return nil
	}
	t.mu.Lock()
	for id, c := range t.conns {
		c.conn.Close()
		delete(t.conns, id)
	}
	t.mu.Unlock()
	if t.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.httpServer.Shutdown(ctx)
}

func (t *Transport) IsActive() bool { return t.active.Load() }

func (t *Transport) MaxPacketSize() int { return t.mtu }

func (t *Transport) GetAddress(id transport.ConnectionID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[id]
	if !ok {
		return "", false
	}
	return c.conn.RemoteAddr().String(), true
}

// Send writes payload as a single binary WebSocket message. Channel is
// not distinguished at the socket level: a WebSocket connection over TCP
// is already reliable and ordered, so both Reliable and Unreliable map
// onto the same stream.
func (t *Transport) Send(id transport.ConnectionID, payload []byte, _ transport.Channel) bool {
	t.mu.Lock()
	c, ok := t.conns[id]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return c.writeBinary(payload)
}

func (t *Transport) Disconnect(id transport.ConnectionID) {
	t.mu.Lock()
	c, ok := t.conns[id]
	t.mu.Unlock()
	if !ok {
		return
	}
	c.conn.Close()
}

// Tick drains every event queued since the last call and delivers it to
// the registered transport.Events, on the caller's goroutine.
func (t *Transport) Tick() {
	for {
		select {
		case e := <-t.queue:
			switch e.kind {
			case evConnected:
				t.events.OnConnected(e.id)
			case evData:
				t.events.OnData(e.id, e.payload)
			case evDisconnected:
				t.events.OnDisconnected(e.id)
			}
		default:
			return
		}
	}
}

func (t *Transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	id := transport.ConnectionID(t.nextID.Add(1))
	c := &wsConn{conn: conn}

	t.mu.Lock()
	t.conns[id] = c
	t.mu.Unlock()

	t.enqueue(queuedEvent{kind: evConnected, id: id})
	go t.readLoop(id, c)
}

func (t *Transport) readLoop(id transport.ConnectionID, c *wsConn) {
	c.conn.SetReadLimit(int64(t.mtu))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		t.enqueue(queuedEvent{kind: evData, id: id, payload: payload})
	}

	t.mu.Lock()
	delete(t.conns, id)
	t.mu.Unlock()
	t.enqueue(queuedEvent{kind: evDisconnected, id: id})
}

func (t *Transport) enqueue(e queuedEvent) {
	select {
	case t.queue <- e:
	default:
		// Backlog full: drop rather than block a socket's read goroutine.
		// A dropped event is not redelivered: a dropped data frame looks
		// like packet loss to the dispatcher above, and a dropped
		// disconnect event never reaches the registered Events.
	}
}
