package skeleton

import (
	"sort"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// Driver binds one animation curve to a parameter slot on the animation set's own named
// output interface (translated to a skeleton input slot via AnimationSetBinding at sample
// time).
type Driver struct {
	ParamIndex int32
	Sampler    SamplerType
	DestOffset int // component offset for scalar-into-vector writes
	CurveID    int32
}

// ConstantDriver copies a constant POD value into a parameter slot every sample. Quaternion
// constants are stored packed (§4.3 step 3) and decompressed on write.
type ConstantDriver struct {
	ParamIndex   int32
	Sampler      SamplerType
	DestOffset   int
	PackedQuat   uint32
	IsPackedQuat bool
	Value        [4]float32
}

// AnimationEntry names one animation clip's driver/constant-driver ranges and time window.
type AnimationEntry struct {
	NameHash      uint64
	DriverBegin   int32
	DriverEnd     int32
	ConstantBegin int32
	ConstantEnd   int32
	BeginTime     float32
	EndTime       float32
}

// AnimationSet holds every driver, constant driver, and curve for a model, plus a name-hash
// indexed directory of animation clips. OutputNames is the set's own named output
// interface; Driver.ParamIndex and ConstantDriver.ParamIndex index into it, and are
// translated to skeleton parameter slots via an AnimationSetBinding at sample time.
type AnimationSet struct {
	OutputNames     []string
	Drivers         []Driver
	ConstantDrivers []ConstantDriver
	Curves          []RawAnimationCurve
	Entries         []AnimationEntry // must be kept sorted by NameHash
}

// Find locates an animation entry by name hash via binary search over Entries.
func (s *AnimationSet) Find(hash uint64) (*AnimationEntry, bool) {
	i := sort.Search(len(s.Entries), func(i int) bool { return s.Entries[i].NameHash >= hash })
	if i < len(s.Entries) && s.Entries[i].NameHash == hash {
		return &s.Entries[i], true
	}
	return nil, false
}

// AnimationState is the sampling request: a time (already within the clip's local
// timeline; the caller is responsible for wrapping/clamping) and the clip to sample.
type AnimationState struct {
	Time          float32
	AnimationHash uint64
}

// Sample implements §4.3's animation-sampling algorithm: locate the clip, add its
// begin_time, evaluate every bound driver and constant driver into params. skeletonInput
// supplies each bound slot's ParamKind so vector/scalar writes can be shaped correctly.
func (s *AnimationSet) Sample(state AnimationState, binding *AnimationSetBinding, skeletonInput []Parameter, params *ParameterSet) error {
	entry, ok := s.Find(state.AnimationHash)
	if !ok {
		return common.NewError(common.KindBinding, "animation set: no clip with hash %#x", state.AnimationHash)
	}

	t := state.Time + entry.BeginTime

	for i := entry.DriverBegin; i < entry.DriverEnd; i++ {
		d := s.Drivers[i]
		slot := binding.Slot(d.ParamIndex)
		if slot == UnboundSlot {
			continue
		}
		if int(d.CurveID) >= len(s.Curves) {
			return common.NewError(common.KindInvalid, "animation set: driver references out-of-range curve %d", d.CurveID)
		}
		val := s.Curves[d.CurveID].Evaluate(t)
		if err := writeParam(&params.Values[slot], skeletonInput[slot].Kind, d.Sampler, d.DestOffset, val); err != nil {
			return err
		}
	}

	for i := entry.ConstantBegin; i < entry.ConstantEnd; i++ {
		cd := s.ConstantDrivers[i]
		slot := binding.Slot(cd.ParamIndex)
		if slot == UnboundSlot {
			continue
		}
		val := cd.Value
		if cd.IsPackedQuat {
			q := common.UnpackQuat10_10_10_10(cd.PackedQuat)
			val = [4]float32{q[0], q[1], q[2], q[3]}
		}
		if err := writeParam(&params.Values[slot], skeletonInput[slot].Kind, cd.Sampler, cd.DestOffset, val); err != nil {
			return err
		}
	}

	return nil
}

// writeParam applies one sampled value to a destination parameter, honoring scalar-into-
// vector offsets and truncating over-wide vector writes (§4.3 step 2/4).
func writeParam(pv *ParameterValue, kind ParamKind, sampler SamplerType, destOffset int, val [4]float32) error {
	switch kind {
	case ParamTranslation, ParamScale:
		if sampler == SamplerScalar {
			if destOffset < 0 || destOffset >= 3 {
				return common.NewError(common.KindInvalid,
					"animation sample: scalar destOffset %d out of range for a 3-vector parameter", destOffset)
			}
			pv.Vec3[destOffset] = val[0]
			return nil
		}
		n := sampler.Arity()
		if n > 3 {
			n = 3
		}
		for i := 0; i < n; i++ {
			pv.Vec3[i] = val[i]
		}
		return nil

	case ParamRotation:
		pv.Quat = common.Quat{val[0], val[1], val[2], val[3]}
		return nil

	default:
		return common.NewError(common.KindInvalid, "animation sample: driver cannot target a matrix parameter")
	}
}
