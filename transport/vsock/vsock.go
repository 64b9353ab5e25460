// Package vsock implements transport.Transport over AF_VSOCK, for
// deployments where a game server and its matchmaker/host process share a
// hypervisor and want to skip a loopback TCP hop. Grounded on
// brodyxchen-vsock-sdk's server.ListenAndServe/vsock.Dial wrapper around
// github.com/mdlayher/vsock; unlike that SDK's fixed-header RPC framing,
// each vsock stream here carries the same length-prefixed batch frames a
// stream-oriented carrier needs, since (unlike WebSocket) AF_VSOCK gives
// no built-in message boundaries.
package vsock

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mdlayher/vsock"

	"bitwire/server/transport"
)

const lengthPrefixSize = 4

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

type vsockConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *vsockConn) writeFramed(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	var lenBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := c.conn.Write(lenBuf[:]); err != nil {
		return false
	}
	_, err := c.conn.Write(payload)
	return err == nil
}

// Transport is a reference transport.Transport over AF_VSOCK. As with
// transport/ws, events observed on per-connection read goroutines are
// queued and only delivered to transport.Events from Tick, preserving the
// single-threaded cooperative model.
type Transport struct {
	contextID uint32
	port      uint32
	mtu       int
	events    transport.Events

	listener net.Listener
	active   atomic.Bool

	mu     sync.Mutex
	conns  map[transport.ConnectionID]*vsockConn
	nextID atomic.Uint64

	queue chan queuedEvent
}

// New builds a Transport that listens on the given vsock context id and
// port. contextID is typically vsock.Host's context id from the guest's
// point of view, or vsock.CIDAny to accept from any peer.
func New(contextID, port uint32, mtu int, ev transport.Events) *Transport {
	return &Transport{
		contextID: contextID,
		port:      port,
		mtu:       mtu,
		events:    ev,
		conns:     make(map[transport.ConnectionID]*vsockConn),
		queue:     make(chan queuedEvent, 4096),
	}
}

func (t *Transport) Start() error {
	ln, err := vsock.ListenContextID(t.contextID, t.port, nil)
	if err != nil {
		return err
	}
	t.listener = ln
	t.active.Store(true)
	go t.acceptLoop()
	return nil
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		id := transport.ConnectionID(t.nextID.Add(1))
		c := &vsockConn{conn: conn}
		t.mu.Lock()
		t.conns[id] = c
		t.mu.Unlock()
		t.enqueue(queuedEvent{kind: evConnected, id: id})
		go t.readLoop(id, c)
	}
}

func (t *Transport) readLoop(id transport.ConnectionID, c *vsockConn) {
	reader := bufio.NewReader(c.conn)
	for {
		var lenBuf [lengthPrefixSize]byte
		if _, err := io.ReadFull(reader, lenBuf[:]); err != nil {
			break
		}
		size := binary.BigEndian.Uint32(lenBuf[:])
		if int(size) > t.mtu {
			break
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			break
		}
		t.enqueue(queuedEvent{kind: evData, id: id, payload: payload})
	}

	t.mu.Lock()
	delete(t.conns, id)
	t.mu.Unlock()
	c.conn.Close()
	t.enqueue(queuedEvent{kind: evDisconnected, id: id})
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
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
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

// Send writes a length-prefixed frame. Channel is not distinguished: an
// AF_VSOCK stream is reliable and ordered like TCP, so both map to it.
func (t *Transport) Send(id transport.ConnectionID, payload []byte, _ transport.Channel) bool {
	t.mu.Lock()
	c, ok := t.conns[id]
	t.mu.Unlock()
	if !ok {
		return false
	}
	return c.writeFramed(payload)
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

func (t *Transport) enqueue(e queuedEvent) {
	select {
	case t.queue <- e:
	default:
	}
}

// Dial connects to a vsock listener at (contextID, port), for use by a
// counterpart client that isn't itself a full Transport (e.g. a
// matchmaker pushing admin commands). It is a thin convenience wrapper,
// grounded on brodyxchen-vsock-sdk's client.transport dial path.
func Dial(ctx context.Context, contextID, port uint32) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := vsock.Dial(contextID, port, nil)
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
