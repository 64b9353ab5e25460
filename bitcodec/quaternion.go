package bitcodec

import "math"

// smallestThreeBound is 1/sqrt(2), the magnitude any single quaternion
// component can reach once the largest-magnitude one is dropped (each
// remaining component is no larger in magnitude than the dropped one, and
// the two squared together are at most 1, so each square is at most 1/2).
const smallestThreeBound = float32(0.7071067811865476)

const smallestThreeComponentBits = 10
const smallestThreeSteps = (1 << smallestThreeComponentBits) - 1

// WriteQuaternion writes an uncompressed quaternion as four raw floats in
// x,y,z,w order: 128 bits.
func (w *Writer) WriteQuaternion(x, y, z, qw float32) bool {
	if w.SpaceBits() < 128 {
		return false
	}
	w.WriteFloat(x)
	w.WriteFloat(y)
	w.WriteFloat(z)
	w.WriteFloat(qw)
	return true
}

// ReadQuaternion reads an uncompressed quaternion written by WriteQuaternion.
func (r *Reader) ReadQuaternion() (x, y, z, qw float32, ok bool) {
	if r.RemainingBits() < 128 {
		return 0, 0, 0, 0, false
	}
	x, _ = r.ReadFloat()
	y, _ = r.ReadFloat()
	z, _ = r.ReadFloat()
	qw, _ = r.ReadFloat()
	return x, y, z, qw, true
}

func quantizeSmallestThree(v float32) uint32 {
	if v < -smallestThreeBound {
		v = -smallestThreeBound
	}
	if v > smallestThreeBound {
		v = smallestThreeBound
	}
	normalized := (v + smallestThreeBound) / (2 * smallestThreeBound)
	q := int32(math.Round(float64(normalized) * smallestThreeSteps))
	if q < 0 {
		q = 0
	}
	if q > smallestThreeSteps {
		q = smallestThreeSteps
	}
	return uint32(q)
}

func dequantizeSmallestThree(q uint32) float32 {
	normalized := float32(q) / float32(smallestThreeSteps)
	return normalized*(2*smallestThreeBound) - smallestThreeBound
}

// WriteQuaternionSmallestThree packs a unit quaternion into 32 bits: the
// 2-bit index of the largest-magnitude component, then the other three
// components quantized to 10 bits each, scaled to [-1/sqrt2, 1/sqrt2]. The
// dropped component's sign is always reconstructed as positive, so the
// whole quaternion is negated first if that component was negative (q and
// -q represent the same rotation).
func (w *Writer) WriteQuaternionSmallestThree(x, y, z, qw float32) bool {
	if w.SpaceBits() < 32 {
		return false
	}
	components := [4]float32{x, y, z, qw}
	largest := 0
	for i := 1; i < 4; i++ {
		if absf32(components[i]) > absf32(components[largest]) {
			largest = i
		}
	}
	if components[largest] < 0 {
		components[0], components[1], components[2], components[3] =
			-components[0], -components[1], -components[2], -components[3]
	}

	w.WriteUintBits(uint32(largest), 2)
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		w.WriteUintBits(quantizeSmallestThree(components[i]), smallestThreeComponentBits)
	}
	return true
}

// ReadQuaternionSmallestThree reverses WriteQuaternionSmallestThree and
// renormalizes the reconstructed quaternion to unit length, since the
// quantized three-component reconstruction of the dropped axis is only
// approximately unit length.
func (r *Reader) ReadQuaternionSmallestThree() (x, y, z, qw float32, ok bool) {
	if r.RemainingBits() < 32 {
		return 0, 0, 0, 0, false
	}
	largestRaw, _ := r.ReadUintBits(2)
	largest := int(largestRaw)

	var components [4]float32
	sumSq := float64(0)
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		q, _ := r.ReadUintBits(smallestThreeComponentBits)
		v := dequantizeSmallestThree(q)
		components[i] = v
		sumSq += float64(v) * float64(v)
	}

	dropped := float32(math.Sqrt(math.Max(0, 1-sumSq)))
	components[largest] = dropped

	norm := float32(math.Sqrt(float64(components[0])*float64(components[0]) +
		float64(components[1])*float64(components[1]) +
		float64(components[2])*float64(components[2]) +
		float64(components[3])*float64(components[3])))
	if norm > 0 {
		components[0] /= norm
		components[1] /= norm
		components[2] /= norm
		components[3] /= norm
	}

	return components[0], components[1], components[2], components[3], true
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
