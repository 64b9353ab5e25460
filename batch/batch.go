// Package batch implements the per-(connection, channel) outgoing buffer
// described in spec.md §4.3: messages accumulate bit-packed and
// unpadded until the buffer is full or the flush interval elapses, then
// go out in a single transport send.
package batch

import (
	"context"
	"sync"
	"time"

	"bitwire/server/bitcodec"
	"bitwire/server/telemetry"
	"bitwire/server/transport"
)

// Clock abstracts time.Now so tests can drive the flush-interval policy
// deterministically, mirroring the teacher's logging.Clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Sender is the subset of transport.Transport the batcher needs to emit a
// flushed buffer. It is satisfied by transport.Transport directly.
type Sender interface {
	Send(id transport.ConnectionID, payload []byte, channel transport.Channel) bool
}

// BrokenNotifier lets the batcher report a hard send failure back to
// whatever owns connection lifecycle (server.Server), without importing
// it and creating a cycle.
type BrokenNotifier interface {
	MarkBroken(id transport.ConnectionID)
}

// batchState is one pending outgoing buffer for a single (connection,
// channel) pair.
type batchState struct {
	buf      []byte
	writer   *bitcodec.Writer
	lastSend time.Time
}

func newBatchState(mtu int, now time.Time) *batchState {
	buf := make([]byte, mtu)
	return &batchState{
		buf:      buf,
		writer:   bitcodec.NewWriter(buf),
		lastSend: now,
	}
}

func (b *batchState) reset(now time.Time) {
	b.writer.Reset(b.buf)
	b.lastSend = now
}

// Batcher owns every connection's per-channel batches and the flush
// policy that drains them. MTU must be at least 5 bytes per spec.md §5
// (4-byte word-flush slack plus at least one payload byte); callers
// should size it to the transport's actual MaxPacketSize.
type Batcher struct {
	mtu      int
	interval time.Duration
	sender   Sender
	broken   BrokenNotifier
	clock    Clock
	metrics  *telemetry.Metrics

	mu    sync.Mutex
	conns map[transport.ConnectionID]map[transport.Channel]*batchState
}

// New constructs a Batcher. metrics may be nil, in which case flush/append
// counters are simply not recorded.
func New(mtu int, interval time.Duration, sender Sender, broken BrokenNotifier, clock Clock, metrics *telemetry.Metrics) *Batcher {
	if mtu < 5 {
		panic("batch: mtu must be at least 5 bytes")
	}
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	return &Batcher{
		mtu:      mtu,
		interval: interval,
		sender:   sender,
		broken:   broken,
		clock:    clock,
		metrics:  metrics,
		conns:    make(map[transport.ConnectionID]map[transport.Channel]*batchState),
	}
}

func (b *Batcher) batchLocked(id transport.ConnectionID, channel transport.Channel) *batchState {
	byChannel, ok := b.conns[id]
	if !ok {
		byChannel = make(map[transport.Channel]*batchState)
		b.conns[id] = byChannel
	}
	bs, ok := byChannel[channel]
	if !ok {
		bs = newBatchState(b.mtu, b.clock.Now())
		byChannel[channel] = bs
	}
	return bs
}

// Append copies msg's bit-exact content into the connection's batch for
// channel, flushing first if it wouldn't fit. Per spec.md §4.3, it reports
// false on any hard failure — a failed pre-flush send, or a message that
// still doesn't fit a freshly-flushed empty batch — and in both cases the
// connection has already been reported broken via BrokenNotifier before
// Append returns.
func (b *Batcher) Append(id transport.ConnectionID, msg *bitcodec.Writer, channel transport.Channel) bool {
	bits := msg.BitPosition()
	b.mu.Lock()
	defer b.mu.Unlock()

	bs := b.batchLocked(id, channel)
	if bs.writer.SpaceBits() < bits {
		if !b.flushLocked(id, channel, bs) {
			return false
		}
	}
	segment := msg.Segment()
	ok := bs.writer.WriteBytesBitSize(segment, 0, bits)
	if !ok {
		// The message alone doesn't fit in an empty batch: this connection
		// can never carry it, so it is broken the same as a failed send.
		if b.broken != nil {
			b.broken.MarkBroken(id)
		}
		return false
	}
	if b.metrics != nil {
		b.metrics.BatchAppends.Inc()
	}
	return true
}

// Flush emits the connection's current batch for channel if it holds any
// bits, resets it, and stamps lastSend. It is a no-op (returns true) for
// an empty or nonexistent batch.
func (b *Batcher) Flush(id transport.ConnectionID, channel transport.Channel) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	byChannel, ok := b.conns[id]
	if !ok {
		return true
	}
	bs, ok := byChannel[channel]
	if !ok {
		return true
	}
	return b.flushLocked(id, channel, bs)
}

func (b *Batcher) flushLocked(id transport.ConnectionID, channel transport.Channel, bs *batchState) bool {
	if bs.writer.BitPosition() == 0 {
		return true
	}
	payload := append([]byte(nil), bs.writer.Segment()...)
	now := b.clock.Now()
	if !b.sender.Send(id, payload, channel) {
		if b.broken != nil {
			b.broken.MarkBroken(id)
		}
		if b.metrics != nil {
			b.metrics.BrokenSends.Inc()
		}
		return false
	}
	if b.metrics != nil {
		b.metrics.BatchFlushes.Inc()
		b.metrics.BytesSent.Add(float64(len(payload)))
	}
	bs.reset(now)
	return true
}

// Tick flushes every non-empty connection/channel batch whose age has
// reached the configured interval. Call this once per server tick. Each flush it
// triggers opens its own "batch.flush" span under ctx.
func (b *Batcher) Tick(ctx context.Context) {
	now := b.clock.Now()
	b.mu.Lock()
	type pending struct {
		id transport.ConnectionID
		ch transport.Channel
		bs *batchState
	}
	var due []pending
	for id, byChannel := range b.conns {
		for ch, bs := range byChannel {
			if bs.writer.BitPosition() > 0 && now.Sub(bs.lastSend) >= b.interval {
				due = append(due, pending{id, ch, bs})
			}
		}
	}
	for _, p := range due {
		_, span := b.metrics.StartSpan(ctx, "batch.flush")
		b.flushLocked(p.id, p.ch, p.bs)
		span.End()
	}
	b.mu.Unlock()
}

// Remove drops every batch belonging to id, e.g. when a connection is torn
// down. Any unflushed content is discarded, matching spec.md's "broken
// connection suppresses all further sends" semantics.
func (b *Batcher) Remove(id transport.ConnectionID) {
	b.mu.Lock()
	delete(b.conns, id)
	b.mu.Unlock()
}
