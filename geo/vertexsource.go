// Package geo implements geometry ingestion and unification: turning source meshes
// described as per-corner attribute-index tuples into a dense, index-buffer-addressable
// vertex representation (a MeshDatabase), plus the derived-attribute utilities
// (bounding box, normal/tangent generation, duplicate removal) that operate on it.
package geo

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// VertexSourceData is the read-only adapter over one raw attribute stream: it knows how
// to fetch element i as a slice of float32 components, applying its format conversion and
// processing flags on the fly. This is the core's IVertexSourceData polymorphism point
// (SPEC_FULL.md §9); a closed tagged-variant struct is sufficient since the format set is
// fixed (common.ElementFormat).
type VertexSourceData struct {
	Format  common.ElementFormat
	Stride  int // bytes between successive elements; 0 means "tightly packed" (== Format.ByteSize())
	Count   int
	Storage []byte
	Flags   common.ProcessingFlags
	Hint    common.FormatHint
}

// effectiveStride returns the stride to use for element i, defaulting to the format's
// natural byte size when Stride is unset.
func (v *VertexSourceData) effectiveStride() int {
	if v.Stride != 0 {
		return v.Stride
	}
	return v.Format.ByteSize()
}

// Validate checks the §3 VertexSource invariant: stride * count <= storage length, and
// the format has a supported component count.
func (v *VertexSourceData) Validate() error {
	if !v.Format.Valid() {
		return common.NewError(common.KindFormat, "vertex source: invalid element format %v", v.Format)
	}
	need := v.effectiveStride() * v.Count
	if need > len(v.Storage) {
		return common.NewError(common.KindFormat,
			"vertex source: stride*count=%d exceeds storage length %d", need, len(v.Storage))
	}
	return nil
}

// At decodes element i into up to 4 float32 components, applying FlipV (texcoord Y
// flip) when set. At does not apply Renormalize, and no code in this module reads that
// flag.
func (v *VertexSourceData) At(i int) ([4]float32, error) {
	var out [4]float32
	n := v.Format.Components()
	stride := v.effectiveStride()
	offset := i * stride
	compWidth := v.Format.ByteSize() / n
	if offset+n*compWidth > len(v.Storage) {
		return out, fmt.Errorf("vertex source: element %d out of range", i)
	}

	for c := 0; c < n; c++ {
		out[c] = decodeComponent(v.Format, v.Storage[offset+c*compWidth:offset+(c+1)*compWidth])
	}

	if v.Flags&common.FlipV != 0 && n >= 2 {
		out[1] = 1 - out[1]
	}

	return out, nil
}

func decodeComponent(format common.ElementFormat, raw []byte) float32 {
	switch len(raw) {
	case 1:
		if format.IsFloat() {
			return float32(raw[0]) // unused combination; defensive fallback
		}
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
		// subnormal half -> normal float
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
