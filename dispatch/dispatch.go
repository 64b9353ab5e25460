// Package dispatch implements the message-id-to-handler table described in
// spec.md §4.4: registration with authentication gating, outbound framing
// through a reusable send buffer, and inbound frame decoding that
// disconnects on any protocol violation.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"bitwire/server/batch"
	"bitwire/server/bitcodec"
	"bitwire/server/proto"
	"bitwire/server/telemetry"
	"bitwire/server/transport"
)

// ConnectionAuth answers the one question the dispatcher's auth gate
// needs, without pulling in the rest of server.Connection.
type ConnectionAuth interface {
	// Authenticated reports whether id is known and, if so, whether it has
	// completed authentication. ok is false if id is not a live connection.
	Authenticated(id transport.ConnectionID) (authenticated, ok bool)
	// Broken reports whether id has been marked broken and should be
	// treated as unsendable.
	Broken(id transport.ConnectionID) bool
}

// Disconnector is called to unilaterally tear down a connection on a
// protocol violation (spec.md §7 class 3).
type Disconnector interface {
	Disconnect(id transport.ConnectionID)
}

// Handler receives a fully deserialized, authenticated (if required)
// message for one connection.
type Handler func(id transport.ConnectionID, msg proto.Message)

type handlerEntry struct {
	newMessage   func() proto.Message
	handler      Handler
	requiresAuth bool
}

// Dispatcher owns the id->handler table and the reusable send buffer used
// to frame outbound messages before they reach the Batcher.
type Dispatcher struct {
	handlers map[byte]*handlerEntry
	conns    ConnectionAuth
	disc     Disconnector
	batcher  *batch.Batcher
	sendBuf  []byte
	metrics  *telemetry.Metrics
	logger   *log.Logger
}

// New constructs a Dispatcher. sendBufferSize must be at least 1 byte plus
// the largest message payload any registered kind can produce.
func New(conns ConnectionAuth, disc Disconnector, batcher *batch.Batcher, sendBufferSize int, metrics *telemetry.Metrics, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		handlers: make(map[byte]*handlerEntry),
		conns:    conns,
		disc:     disc,
		batcher:  batcher,
		sendBuf:  make([]byte, sendBufferSize),
		metrics:  metrics,
		logger:   logger,
	}
}

// Register wires id to handler. newMessage must return a freshly
// zero-valued instance of the message kind registered at id; it is called
// once per inbound frame to give Deserialize somewhere to write into.
// Registering the same id twice returns an error and leaves the existing
// entry untouched.
func (d *Dispatcher) Register(id byte, newMessage func() proto.Message, handler Handler, requiresAuth bool) error {
	if _, exists := d.handlers[id]; exists {
		return fmt.Errorf("dispatch: handler already registered for id 0x%02x", id)
	}
	d.handlers[id] = &handlerEntry{newMessage: newMessage, handler: handler, requiresAuth: requiresAuth}
	return nil
}

// Unregister removes the handler for id, if any.
func (d *Dispatcher) Unregister(id byte) {
	delete(d.handlers, id)
}

func (d *Dispatcher) violation(reason string) {
	if d.metrics != nil {
		d.metrics.DispatchViolations.WithLabelValues(reason).Inc()
	}
}

// Send frames message onto a fresh Writer over the shared send buffer and
// appends the bit-exact result to the connection's batch on channel.
// Unknown or broken connections are rejected outright. A serialization
// failure (payload too large for the send buffer) is logged and the
// message is dropped without disconnecting: it is a developer error, not
// a protocol violation.
func (d *Dispatcher) Send(ctx context.Context, id transport.ConnectionID, message proto.Message, channel transport.Channel) bool {
	_, span := d.metrics.StartSpan(ctx, "dispatch.send")
	defer span.End()

	if d.conns.Broken(id) {
		return false
	}
	if _, ok := d.conns.Authenticated(id); !ok {
		return false
	}
	w := bitcodec.NewWriter(d.sendBuf)
	if !proto.WriteFrame(w, message) {
		d.logger.Printf("dispatch: dropping message id=0x%02x for connection %d: send buffer too small", message.ID(), id)
		return false
	}
	return d.batcher.Append(id, w, channel)
}

// SendAll frames and appends each message in order, stopping at the first
// message Send rejects: a broken or unknown connection, a frame that does
// not fit the send buffer, or a failed batch append.
func (d *Dispatcher) SendAll(ctx context.Context, id transport.ConnectionID, messages []proto.Message, channel transport.Channel) {
	for _, m := range messages {
		if !d.Send(ctx, id, m, channel) {
			return
		}
	}
}

// Dispatch invokes the handler registered for msg.ID() directly, without
// going through wire decoding. ServerCore uses this to route synthesized
// Connect/Disconnect messages through the same auth-gated handler path as
// real wire traffic (spec.md §4.5). It is a no-op if nothing is
// registered for msg.ID().
func (d *Dispatcher) Dispatch(id transport.ConnectionID, msg proto.Message) {
	entry, ok := d.handlers[msg.ID()]
	if !ok {
		return
	}
	if entry.requiresAuth {
		authenticated, known := d.conns.Authenticated(id)
		if !known || !authenticated {
			d.violation("unauthenticated")
			d.disc.Disconnect(id)
			return
		}
	}
	entry.handler(id, msg)
}

// OnTransportData decodes one inbound frame: an 8-bit id followed by a
// kind-specific payload. A truncated id, an unknown id, a failed
// deserialize, or an auth-gate failure all unilaterally disconnect the
// connection per spec.md §7 class 3; none of them ever reach the
// registered handler.
func (d *Dispatcher) OnTransportData(ctx context.Context, id transport.ConnectionID, data []byte) {
	_, span := d.metrics.StartSpan(ctx, "dispatch.receive")
	defer span.End()

	r := bitcodec.NewReader(data)
	idByte, ok := r.ReadByteBits(8)
	if !ok {
		d.violation("truncated_frame")
		d.disc.Disconnect(id)
		return
	}

	entry, ok := d.handlers[idByte]
	if !ok {
		d.violation("unknown_id")
		d.disc.Disconnect(id)
		return
	}

	if entry.requiresAuth {
		authenticated, known := d.conns.Authenticated(id)
		if !known || !authenticated {
			d.violation("unauthenticated")
			d.disc.Disconnect(id)
			return
		}
	}

	msg := entry.newMessage()
	if !msg.Deserialize(r) {
		d.violation("deserialize_failed")
		d.disc.Disconnect(id)
		return
	}

	entry.handler(id, msg)
}
