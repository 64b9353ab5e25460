package bitcodec

import "math"

// writeUnsignedRange packs v-min in bitsRequired(max-min) bits. min>max or
// v outside [min,max] are programming errors: they indicate a caller bug,
// not a transient capacity problem, so they panic rather than return false.
func (w *Writer) writeUnsignedRange(v, min, max uint64) bool {
	if min > max || v < min || v > max {
		panic("bitcodec: value out of declared range")
	}
	n := bitsRequired(max - min)
	if n == 0 {
		return true
	}
	return w.WriteUlongBits(v-min, n)
}

func (r *Reader) readUnsignedRange(min, max uint64) (uint64, bool) {
	if min > max {
		panic("bitcodec: invalid range: min > max")
	}
	n := bitsRequired(max - min)
	if n == 0 {
		return min, true
	}
	raw, ok := r.ReadUlongBits(n)
	if !ok {
		return 0, false
	}
	return min + raw, true
}

func (w *Writer) writeSignedRange(v, min, max int64) bool {
	if min > max || v < min || v > max {
		panic("bitcodec: value out of declared range")
	}
	n := bitsRequired(normalizeSigned(max, min))
	if n == 0 {
		return true
	}
	return w.WriteUlongBits(normalizeSigned(v, min), n)
}

func (r *Reader) readSignedRange(min, max int64) (int64, bool) {
	if min > max {
		panic("bitcodec: invalid range: min > max")
	}
	n := bitsRequired(normalizeSigned(max, min))
	if n == 0 {
		return min, true
	}
	raw, ok := r.ReadUlongBits(n)
	if !ok {
		return 0, false
	}
	return denormalizeSigned(raw, min), true
}

// WriteUint8/16/32/64 and WriteInt8/16/32/64 write v-min in
// bits_required(min,max) bits. See GLOSSARY "Range coding".
func (w *Writer) WriteUint8(v, min, max uint8) bool   { return w.writeUnsignedRange(uint64(v), uint64(min), uint64(max)) }
func (w *Writer) WriteUint16(v, min, max uint16) bool { return w.writeUnsignedRange(uint64(v), uint64(min), uint64(max)) }
func (w *Writer) WriteUint32(v, min, max uint32) bool { return w.writeUnsignedRange(uint64(v), uint64(min), uint64(max)) }
func (w *Writer) WriteUint64(v, min, max uint64) bool { return w.writeUnsignedRange(v, min, max) }

func (w *Writer) WriteInt8(v, min, max int8) bool   { return w.writeSignedRange(int64(v), int64(min), int64(max)) }
func (w *Writer) WriteInt16(v, min, max int16) bool { return w.writeSignedRange(int64(v), int64(min), int64(max)) }
func (w *Writer) WriteInt32(v, min, max int32) bool { return w.writeSignedRange(int64(v), int64(min), int64(max)) }
func (w *Writer) WriteInt64(v, min, max int64) bool { return w.writeSignedRange(v, min, max) }

func (r *Reader) ReadUint8(min, max uint8) (uint8, bool) {
	v, ok := r.readUnsignedRange(uint64(min), uint64(max))
	return uint8(v), ok
}
func (r *Reader) ReadUint16(min, max uint16) (uint16, bool) {
	v, ok := r.readUnsignedRange(uint64(min), uint64(max))
	return uint16(v), ok
}
func (r *Reader) ReadUint32(min, max uint32) (uint32, bool) {
	v, ok := r.readUnsignedRange(uint64(min), uint64(max))
	return uint32(v), ok
}
func (r *Reader) ReadUint64(min, max uint64) (uint64, bool) {
	return r.readUnsignedRange(min, max)
}

func (r *Reader) ReadInt8(min, max int8) (int8, bool) {
	v, ok := r.readSignedRange(int64(min), int64(max))
	return int8(v), ok
}
func (r *Reader) ReadInt16(min, max int16) (int16, bool) {
	v, ok := r.readSignedRange(int64(min), int64(max))
	return int16(v), ok
}
func (r *Reader) ReadInt32(min, max int32) (int32, bool) {
	v, ok := r.readSignedRange(int64(min), int64(max))
	return int32(v), ok
}
func (r *Reader) ReadInt64(min, max int64) (int64, bool) {
	return r.readSignedRange(min, max)
}

// WriteFloat/WriteDouble write the bitwise-reinterpreted 32/64 raw bits of
// v; word-level endianness normalization happens below, in the writer.
func (w *Writer) WriteFloat(v float32) bool {
	return w.WriteUintBits(math.Float32bits(v), 32)
}

func (r *Reader) ReadFloat() (float32, bool) {
	v, ok := r.ReadUintBits(32)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

func (w *Writer) WriteDouble(v float64) bool {
	return w.WriteUlongBits(math.Float64bits(v), 64)
}

func (r *Reader) ReadDouble() (float64, bool) {
	v, ok := r.ReadUlongBits(64)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

// WriteFloatRange quantizes v to the nearest multiple of precision and
// range-encodes it as a signed integer. Unlike the plain range writers,
// an out-of-range value here is a recoverable failure, not a panic: the
// spec calls this out explicitly because precision rounding, not caller
// intent, is what can push v/precision outside the encodable span.
func (w *Writer) WriteFloatRange(v, min, max, precision float32) bool {
	if precision <= 0 || min > max {
		panic("bitcodec: invalid float range")
	}
	minSteps := int64(math.Round(float64(min) / float64(precision)))
	maxSteps := int64(math.Round(float64(max) / float64(precision)))
	vSteps := int64(math.Round(float64(v) / float64(precision)))
	if vSteps < minSteps || vSteps > maxSteps {
		return false
	}
	return w.writeSignedRange(vSteps, minSteps, maxSteps)
}

func (r *Reader) ReadFloatRange(min, max, precision float32) (float32, bool) {
	if precision <= 0 || min > max {
		panic("bitcodec: invalid float range")
	}
	minSteps := int64(math.Round(float64(min) / float64(precision)))
	maxSteps := int64(math.Round(float64(max) / float64(precision)))
	steps, ok := r.readSignedRange(minSteps, maxSteps)
	if !ok {
		return 0, false
	}
	return float32(float64(steps) * float64(precision)), true
}

func (w *Writer) WriteDoubleRange(v, min, max, precision float64) bool {
	if precision <= 0 || min > max {
		panic("bitcodec: invalid double range")
	}
	minSteps := int64(math.Round(min / precision))
	maxSteps := int64(math.Round(max / precision))
	vSteps := int64(math.Round(v / precision))
	if vSteps < minSteps || vSteps > maxSteps {
		return false
	}
	return w.writeSignedRange(vSteps, minSteps, maxSteps)
}

func (r *Reader) ReadDoubleRange(min, max, precision float64) (float64, bool) {
	if precision <= 0 || min > max {
		panic("bitcodec: invalid double range")
	}
	minSteps := int64(math.Round(min / precision))
	maxSteps := int64(math.Round(max / precision))
	steps, ok := r.readSignedRange(minSteps, maxSteps)
	if !ok {
		return 0, false
	}
	return float64(steps) * precision, true
}
