// Package skin implements skin binding: turning a position-indexed table of raw joint
// influences into a GPU-ready, bucketed-by-influence-count layout, and binding that layout
// to a unified geometry to produce a preskinning draw-call plan.
package skin

import (
	"github.com/Carmen-Shannon/skingeo-core/common"
)

// maxInfluences is the absolute cap on raw influences read per source position (§4.2 step 1).
const maxInfluences = 256

// minWeightThreshold is the minimum-weight threshold below which an influence is dropped
// (§4.2 step 3): 8/255, i.e. eight steps of an 8-bit unorm weight.
const minWeightThreshold = 8.0 / 255.0

// bucketCounts lists the influence-count buckets in the fixed emission order used
// throughout this package: highest influence count first.
var bucketCounts = [4]int{4, 2, 1, 0}

// RawInfluence is one (joint, weight) pair as read from a DCC tool's skin export, before
// any thresholding, renormalisation, or quantisation.
type RawInfluence struct {
	JointIndex int32
	Weight     float32
}

// Record is one bucketed, quantised influence set: up to 4 joint indices and their
// 8-bit-unorm weights. Only the first N entries are meaningful, where N is the bucket's
// influence count (4, 2, 1, or 0).
type Record struct {
	JointIndices [4]uint32
	Weights      [4]uint8
}

// Bucket holds every source position assigned to one influence-count class, in the order
// positions were appended.
type Bucket struct {
	InfluenceCount int
	Positions      []int // positions[i] is the source position index backing Records[i]
	Records        []Record
}

// UnboundSkinController is the per-position influence table before geometry unification
// (§3 UnboundSkinController). Exactly one bucket contains each position index.
type UnboundSkinController struct {
	Buckets               [4]*Bucket // indexed in bucketCounts order: 4,2,1,0
	PositionIndexToBucket map[int]uint32
	InverseBindMatrices   []common.Mat4
	BindShapeMatrix       common.Mat4
	JointNames            []string
}

// bucketSlot returns the Buckets index for a given influence count, or -1 if count isn't
// one of 4/2/1/0.
func bucketSlot(count int) int {
	for i, c := range bucketCounts {
		if c == count {
			return i
		}
	}
	return -1
}

// BuildUnboundSkinController runs the §4.2 influence-preprocessing pass over every source
// position in [0, positionCount), fetching that position's raw influences via rawFor.
func BuildUnboundSkinController(
	positionCount int,
	rawFor func(positionIndex int) ([]RawInfluence, error),
	jointNames []string,
	inverseBind []common.Mat4,
	bindShape common.Mat4,
) (*UnboundSkinController, error) {
	if positionCount > 65535 {
		return nil, common.NewError(common.KindCapacity,
			"skin controller: position count %d exceeds the 16-bit bucket index limit", positionCount)
	}

	ctrl := &UnboundSkinController{
		PositionIndexToBucket: make(map[int]uint32, positionCount),
		InverseBindMatrices:   inverseBind,
		BindShapeMatrix:       bindShape,
		JointNames:            jointNames,
	}
	for i := range ctrl.Buckets {
		ctrl.Buckets[i] = &Bucket{InfluenceCount: bucketCounts[i]}
	}

	for p := 0; p < positionCount; p++ {
		raw, err := rawFor(p)
		if err != nil {
			return nil, err
		}
		if len(raw) > maxInfluences {
			return nil, common.NewError(common.KindCapacity,
				"skin controller: position %d has %d influences, exceeds cap %d", p, len(raw), maxInfluences)
		}

		kept := make([]RawInfluence, 0, len(raw))
		for _, inf := range raw {
			if inf.Weight < minWeightThreshold {
				continue
			}
			kept = append(kept, inf)
		}

		if len(kept) > 4 {
			common.Default.Warn("skin controller: position %d has %d influences after cull, "+
				"keeping the first 4 in stored order and discarding joints %v",
				p, len(kept), discardedJoints(kept[4:]))
			kept = kept[:4]
		}

		count := len(kept)
		var bucketID int
		switch {
		case count >= 3:
			bucketID = 4
		case count == 2:
			bucketID = 2
		case count == 1:
			bucketID = 1
		default:
			bucketID = 0
		}

		var sum float32
		for _, inf := range kept {
			sum += inf.Weight
		}

		var rec Record
		seen := map[int32]bool{}
		for i, inf := range kept {
			if seen[inf.JointIndex] {
				common.Default.Warn("skin controller: position %d references joint %d more than once",
					p, inf.JointIndex)
			}
			seen[inf.JointIndex] = true

			w := inf.Weight
			if sum > 0 {
				w /= sum
			}
			rec.JointIndices[i] = uint32(inf.JointIndex)
			rec.Weights[i] = uint8(w*255.0 + 0.5)
		}

		slot := bucketSlot(bucketID)
		b := ctrl.Buckets[slot]
		indexInBucket := len(b.Records)
		b.Positions = append(b.Positions, p)
		b.Records = append(b.Records, rec)

		ctrl.PositionIndexToBucket[p] = uint32(bucketID)<<16 | uint32(indexInBucket)
	}

	return ctrl, nil
}

// discardedJoints extracts the joint indices of the culled tail, for the §7 overflow
// warning's diagnostic listing.
func discardedJoints(tail []RawInfluence) []int32 {
	out := make([]int32, len(tail))
	for i, inf := range tail {
		out[i] = inf.JointIndex
	}
	return out
}
