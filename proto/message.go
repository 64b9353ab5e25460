// Package proto defines the wire message contract shared by the
// dispatcher and batcher: a 1-byte id plus a bit-packed payload, and the
// concrete message shapes the rest of the server already knows about.
package proto

import "bitwire/server/bitcodec"

// Message is implemented by every wire message kind. Id is stable per
// kind; Serialize and Deserialize must be exact inverses of one another.
type Message interface {
	ID() byte
	Serialize(w *bitcodec.Writer) bool
	Deserialize(r *bitcodec.Reader) bool
}

// Reserved message ids (spec.md §6 "Message id registry"). 0x00 and
// 0x40-0xFF belong to applications; 0x03-0x21, 0x24, 0x26-0x30, 0x34-0x3F
// are reserved for future core use and must not be registered here.
const (
	IDConnect    byte = 0x01
	IDDisconnect byte = 0x02
	IDSpawn      byte = 0x22
	IDUnspawn    byte = 0x23
	IDTransform  byte = 0x25
	IDJoinWorld  byte = 0x31
	IDJoined     byte = 0x32
	IDChat       byte = 0x33
)

// WriteFrame writes a single <id:8 bits><payload> frame. It returns false
// if either the id or the payload does not fit in w; when only the payload
// fails, the id has already been written. Dispatcher.Send drops the
// message whenever this returns false.
func WriteFrame(w *bitcodec.Writer, m Message) bool {
	if !w.WriteByteBits(uint16(m.ID()), 8) {
		return false
	}
	return m.Serialize(w)
}
