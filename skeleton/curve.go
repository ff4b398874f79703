package skeleton

import "github.com/Carmen-Shannon/skingeo-core/common"

// InterpolationMode discriminates how a RawAnimationCurve interpolates between keys.
// CubicSpline is reserved: Evaluate interpolates such curves exactly as Linear, uses no
// tangents, and emits no warning.
type InterpolationMode int

const (
	InterpolationLinear InterpolationMode = iota
	InterpolationStep
	InterpolationCubicSpline
)

// SamplerType discriminates a driver/curve's native value shape.
type SamplerType int

const (
	SamplerScalar SamplerType = iota
	SamplerVec3
	SamplerVec4
	SamplerQuat
)

// Arity returns the number of meaningful components for a sampler type.
func (s SamplerType) Arity() int {
	switch s {
	case SamplerScalar:
		return 1
	case SamplerVec3:
		return 3
	case SamplerVec4, SamplerQuat:
		return 4
	default:
		return 0
	}
}

// RawAnimationCurve is a key/value curve with a type discriminator and an
// InterpolationMode. Step mode holds the lower key for every Type; in the other modes,
// quaternion curves interpolate as unit quaternions (slerp) and all other types
// interpolate component-wise.
type RawAnimationCurve struct {
	Type   SamplerType
	Mode   InterpolationMode
	Times  []float32
	Values [][4]float32
}

// Evaluate samples the curve at t, returning up to 4 meaningful components per Type.Arity().
func (c *RawAnimationCurve) Evaluate(t float32) [4]float32 {
	n := len(c.Times)
	if n == 0 {
		return [4]float32{}
	}
	if n == 1 || t <= c.Times[0] {
		return c.Values[0]
	}
	if t >= c.Times[n-1] {
		return c.Values[n-1]
	}

	hi := 1
	for hi < n && c.Times[hi] < t {
		hi++
	}
	lo := hi - 1

	if c.Mode == InterpolationStep {
		return c.Values[lo]
	}

	span := c.Times[hi] - c.Times[lo]
	var frac float32
	if span > 0 {
		frac = (t - c.Times[lo]) / span
	}

	if c.Type == SamplerQuat {
		a := common.Quat{c.Values[lo][0], c.Values[lo][1], c.Values[lo][2], c.Values[lo][3]}
		b := common.Quat{c.Values[hi][0], c.Values[hi][1], c.Values[hi][2], c.Values[hi][3]}
		r := common.Slerp(a, b, frac)
		return [4]float32{r[0], r[1], r[2], r[3]}
	}

	var out [4]float32
	for i := 0; i < 4; i++ {
		a, b := c.Values[lo][i], c.Values[hi][i]
		out[i] = a + (b-a)*frac
	}
	return out
}
