// Package deform implements per-frame CPU-side vertex deformation: the VertexElementRange
// typed accessor/converter, the process-wide deform-operation factory registry, and the
// built-in "skin" operation. Deform execution here is explicitly host-side (CPU) work, not
// GPU compute dispatch.
package deform

import (
	"math"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// VertexElementRange is an iterator adapter over one vertex attribute stored with a given
// stride inside a byte buffer, converting on the fly between its storage format and
// float32 components. Supported formats on both read and write: F32, F16, UNorm8/16,
// SNorm8/16, in 1-4 components (§4.5).
type VertexElementRange struct {
	Data   []byte
	Offset int // byte offset of this element within each vertex record
	Stride int // bytes between successive vertex records
	Format common.ElementFormat
	Count  int // number of vertices covered
}

func (r *VertexElementRange) recordOffset(v int) (int, error) {
	off := r.Offset + v*r.Stride
	if v < 0 || v >= r.Count {
		return 0, common.NewError(common.KindInvalid, "vertex element range: index %d out of [0,%d)", v, r.Count)
	}
	width := r.Format.ByteSize()
	if off+width > len(r.Data) {
		return 0, common.NewError(common.KindInvalid, "vertex element range: index %d overruns backing buffer", v)
	}
	return off, nil
}

// Get decodes vertex v's components.
func (r *VertexElementRange) Get(v int) ([4]float32, error) {
	var out [4]float32
	off, err := r.recordOffset(v)
	if err != nil {
		return out, err
	}

	n := r.Format.Components()
	compWidth := r.Format.ByteSize() / n
	for c := 0; c < n; c++ {
		out[c] = decodeComponent(r.Format, r.Data[off+c*compWidth:off+(c+1)*compWidth])
	}
	return out, nil
}

// Set encodes val into vertex v, converting to this range's storage format.
func (r *VertexElementRange) Set(v int, val [4]float32) error {
	off, err := r.recordOffset(v)
	if err != nil {
		return err
	}

	n := r.Format.Components()
	compWidth := r.Format.ByteSize() / n
	for c := 0; c < n; c++ {
		encodeComponent(r.Format, val[c], r.Data[off+c*compWidth:off+(c+1)*compWidth])
	}
	return nil
}

func isSignedFormat(f common.ElementFormat) bool {
	switch f {
	case common.FormatR8Snorm, common.FormatR16Snorm,
		common.FormatR8G8Snorm, common.FormatR16G16Snorm,
		common.FormatR8G8B8Snorm, common.FormatR16G16B16Snorm,
		common.FormatR8G8B8A8Snorm, common.FormatR16G16B16A16Snorm:
		return true
	default:
		return false
	}
}

func clampNorm(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func decodeComponent(format common.ElementFormat, raw []byte) float32 {
	switch len(raw) {
	case 1:
		if isSignedFormat(format) {
			return clampNorm(float32(int8(raw[0])) / 127.0)
		}
		return float32(raw[0]) / 255.0
	case 2:
		bits := uint16(raw[0]) | uint16(raw[1])<<8
		if format.IsFloat() {
			return decodeFloat16(bits)
		}
		if isSignedFormat(format) {
			return clampNorm(float32(int16(bits)) / 32767.0)
		}
		return float32(bits) / 65535.0
	case 4:
		bits := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
		return math.Float32frombits(bits)
	default:
		return 0
	}
}

func encodeComponent(format common.ElementFormat, v float32, dst []byte) {
	switch len(dst) {
	case 1:
		if isSignedFormat(format) {
			q := int8(clampNorm(v) * 127.0)
			dst[0] = byte(q)
			return
		}
		dst[0] = byte(clampUnit(v)*255.0 + 0.5)
	case 2:
		if format.IsFloat() {
			bits := encodeFloat16(v)
			dst[0] = byte(bits)
			dst[1] = byte(bits >> 8)
			return
		}
		if isSignedFormat(format) {
			q := int16(clampNorm(v) * 32767.0)
			dst[0] = byte(q)
			dst[1] = byte(uint16(q) >> 8)
			return
		}
		q := uint16(clampUnit(v)*65535.0 + 0.5)
		dst[0] = byte(q)
		dst[1] = byte(q >> 8)
	case 4:
		bits := math.Float32bits(v)
		dst[0] = byte(bits)
		dst[1] = byte(bits >> 8)
		dst[2] = byte(bits >> 16)
		dst[3] = byte(bits >> 24)
	}
}

func decodeFloat16(bits uint16) float32 {
	sign := uint32(bits>>15) & 0x1
	exp := uint32(bits>>10) & 0x1F
	mant := uint32(bits) & 0x3FF

	var f32 uint32
	switch {
	case exp == 0 && mant == 0:
		f32 = sign << 31
	case exp == 0x1F:
		f32 = sign<<31 | 0xFF<<23 | mant<<13
	case exp == 0:
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x3FF
		f32 = sign<<31 | (exp+112)<<23 | mant<<13
	default:
		f32 = sign<<31 | (exp+112)<<23 | mant<<13
	}
	return math.Float32frombits(f32)
}

func encodeFloat16(v float32) uint16 {
	bits := math.Float32bits(v)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF

	switch {
	case exp <= 0:
		return sign // flush to zero/subnormal, underflow
	case exp >= 0x1F:
		return sign | 0x7C00 // overflow to infinity
	default:
		return sign | uint16(exp)<<10 | uint16(mant>>13)
	}
}
