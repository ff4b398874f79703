package skeleton

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// TestSampleScalarIntoVector is the §8 end-to-end scenario 4: a scalar curve bound to
// parameter slot P (a Vec3/translation param) with samplerOffset=1; at t=0.5 the curve
// yields 0.7, so P.y becomes 0.7 and x/z stay at their defaults.
func TestSampleScalarIntoVector(t *testing.T) {
	set := &AnimationSet{
		OutputNames: []string{"root.translate"},
		Curves: []RawAnimationCurve{
			{
				Type:  SamplerScalar,
				Mode:  InterpolationLinear,
				Times: []float32{0, 1},
				// At t=0.5, linear interpolation between 0.4 and 1.0 yields 0.7.
				Values: [][4]float32{{0.4}, {1.0}},
			},
		},
		Drivers: []Driver{
			{ParamIndex: 0, Sampler: SamplerScalar, DestOffset: 1, CurveID: 0},
		},
		Entries: []AnimationEntry{
			{NameHash: 1, DriverBegin: 0, DriverEnd: 1, BeginTime: 0, EndTime: 1},
		},
	}

	skeletonInput := []Parameter{{Name: "root.translate", Kind: ParamTranslation}}
	binding := BindAnimationSet(set, skeletonInput)

	params := &ParameterSet{Values: []ParameterValue{{Vec3: [3]float32{10, 20, 30}}}}

	if err := set.Sample(AnimationState{Time: 0.5, AnimationHash: 1}, binding, skeletonInput, params); err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	got := params.Values[0].Vec3
	if math.Abs(float64(got[1]-0.7)) > 1e-5 {
		t.Fatalf("expected y == 0.7, got %v", got[1])
	}
	if got[0] != 10 || got[2] != 30 {
		t.Fatalf("expected x/z to stay at defaults (10, 30), got (%v, %v)", got[0], got[2])
	}
}

func TestSampleSkipsUnboundDriver(t *testing.T) {
	set := &AnimationSet{
		OutputNames: []string{"nonexistent.translate"},
		Curves: []RawAnimationCurve{
			{Type: SamplerScalar, Times: []float32{0}, Values: [][4]float32{{1}}},
		},
		Drivers: []Driver{
			{ParamIndex: 0, Sampler: SamplerScalar, DestOffset: 0, CurveID: 0},
		},
		Entries: []AnimationEntry{
			{NameHash: 7, DriverBegin: 0, DriverEnd: 1},
		},
	}

	skeletonInput := []Parameter{{Name: "root.translate", Kind: ParamTranslation}}
	binding := BindAnimationSet(set, skeletonInput)
	params := &ParameterSet{Values: []ParameterValue{{Vec3: [3]float32{1, 2, 3}}}}

	if err := set.Sample(AnimationState{Time: 0, AnimationHash: 7}, binding, skeletonInput, params); err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if params.Values[0].Vec3 != [3]float32{1, 2, 3} {
		t.Fatalf("expected unbound driver to leave the parameter untouched, got %v", params.Values[0].Vec3)
	}
}

func TestSampleConstantDriverDecompressesPackedQuat(t *testing.T) {
	// Identity quaternion packed in 10-10-10-10 is (0,0,0,1) -> component values all at
	// the format's zero/max encoding; round trip through the real pack function instead
	// of hand-deriving bit patterns.
	packed := common.PackQuat10_10_10_10(common.Quat{0, 0, 0, 1})

	set := &AnimationSet{
		OutputNames: []string{"root.rotate"},
		ConstantDrivers: []ConstantDriver{
			{ParamIndex: 0, Sampler: SamplerQuat, IsPackedQuat: true, PackedQuat: packed},
		},
		Entries: []AnimationEntry{
			{NameHash: 3, ConstantBegin: 0, ConstantEnd: 1},
		},
	}

	skeletonInput := []Parameter{{Name: "root.rotate", Kind: ParamRotation}}
	binding := BindAnimationSet(set, skeletonInput)
	params := &ParameterSet{Values: []ParameterValue{{}}}

	if err := set.Sample(AnimationState{Time: 0, AnimationHash: 3}, binding, skeletonInput, params); err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	q := params.Values[0].Quat
	mag := math.Sqrt(float64(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]))
	if math.Abs(mag-1) > 1e-2 {
		t.Fatalf("expected a near-unit quaternion after decompression, got magnitude %v", mag)
	}
}
