package geo

import "math"

// BoundingBox is an axis-aligned min/max pair over a position stream.
type BoundingBox struct {
	Min [3]float32
	Max [3]float32
}

// ComputeBoundingBox scans a position stream over vertices [0, count) and returns the
// axis-aligned bounds. Mirrors the teacher's gltfCalculateBoundingBox accumulation, adapted
// to read through a Stream instead of a flattened position slice.
func ComputeBoundingBox(positions *Stream, count int) (BoundingBox, error) {
	bb := BoundingBox{
		Min: [3]float32{float32(math.MaxFloat32), float32(math.MaxFloat32), float32(math.MaxFloat32)},
		Max: [3]float32{-float32(math.MaxFloat32), -float32(math.MaxFloat32), -float32(math.MaxFloat32)},
	}
	if count == 0 {
		return BoundingBox{}, nil
	}

	for i := 0; i < count; i++ {
		p, err := positions.At(i)
		if err != nil {
			return BoundingBox{}, err
		}
		for j := 0; j < 3; j++ {
			if p[j] < bb.Min[j] {
				bb.Min[j] = p[j]
			}
			if p[j] > bb.Max[j] {
				bb.Max[j] = p[j]
			}
		}
	}

	return bb, nil
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) * 0.5,
		(b.Min[1] + b.Max[1]) * 0.5,
		(b.Min[2] + b.Max[2]) * 0.5,
	}
}

// Radius returns the distance from Center to the farthest corner, i.e. the radius of the
// box's bounding sphere.
func (b BoundingBox) Radius() float32 {
	c := b.Center()
	dx := b.Max[0] - c[0]
	dy := b.Max[1] - c[1]
	dz := b.Max[2] - c[2]
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}
