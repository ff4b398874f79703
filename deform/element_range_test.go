package deform

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// TestVertexElementRangeRoundTrip checks the §4.5 format set (F32/F16/UNorm/SNorm, 1-4
// components) round-trips a representative value through Set then Get within each format's
// quantisation tolerance.
func TestVertexElementRangeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		fmt  common.ElementFormat
		in   [4]float32
		tol  float64
	}{
		{"R32Float", common.FormatR32Float, [4]float32{0.5}, 1e-6},
		{"R32G32B32A32Float", common.FormatR32G32B32A32Float, [4]float32{1, -2, 3.5, -4.5}, 1e-6},
		{"R16Float", common.FormatR16Float, [4]float32{0.25}, 1e-3},
		{"R16G16Float", common.FormatR16G16Float, [4]float32{1, -1}, 1e-3},
		{"R8Unorm", common.FormatR8Unorm, [4]float32{0.75}, 1.0 / 255.0},
		{"R8Snorm", common.FormatR8Snorm, [4]float32{-0.5}, 1.0 / 127.0},
		{"R16Unorm", common.FormatR16Unorm, [4]float32{0.33}, 1.0 / 65535.0},
		{"R16Snorm", common.FormatR16Snorm, [4]float32{-0.9}, 1.0 / 32767.0},
		{"R8G8B8A8Unorm", common.FormatR8G8B8A8Unorm, [4]float32{0, 0.5, 1, 0.25}, 1.0 / 255.0},
		{"R8G8B8Snorm", common.FormatR8G8B8Snorm, [4]float32{-1, 0, 1}, 1.0 / 127.0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := &VertexElementRange{
				Data:   make([]byte, c.fmt.ByteSize()),
				Stride: c.fmt.ByteSize(),
				Format: c.fmt,
				Count:  1,
			}
			if err := r.Set(0, c.in); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, err := r.Get(0)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			for i := 0; i < c.fmt.Components(); i++ {
				if math.Abs(float64(got[i]-c.in[i])) > c.tol {
					t.Fatalf("component %d: got %v, want %v (tol %v)", i, got[i], c.in[i], c.tol)
				}
			}
		})
	}
}

func TestVertexElementRangeGetOutOfRangeErrors(t *testing.T) {
	r := &VertexElementRange{
		Data:   make([]byte, 4),
		Stride: 4,
		Format: common.FormatR32Float,
		Count:  1,
	}
	if _, err := r.Get(1); err == nil {
		t.Fatalf("expected an error for an out-of-range index")
	}
	if _, err := r.Get(-1); err == nil {
		t.Fatalf("expected an error for a negative index")
	}
}
