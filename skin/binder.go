package skin

import (
	"math"
	"sort"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/geo"
)

// PositionSemantic is the semantic binder looks up on the mesh database to recover each
// unified vertex's originating position index (via that stream's vertex map) and to
// classify it as "animated" data.
var PositionSemantic = geo.Semantic{Name: "POSITION", Index: 0}

// NormalSemantic is optionally treated as animated data alongside position, per §4.2 step 3.
var NormalSemantic = geo.Semantic{Name: "NORMAL", Index: 0}

// PreskinningDrawCall is one point-list draw call over a contiguous run of unified vertices
// all belonging to the same influence-count bucket.
type PreskinningDrawCall struct {
	SubMaterialIndex int // influence count: 4, 2, 1, or 0
	FirstVertex      uint32
	IndexCount       uint32
}

// NascentBoundSkinnedGeometry is the §3 output of binding an UnboundSkinController to a
// unified geometry.
type NascentBoundSkinnedGeometry struct {
	UnanimatedBytes      []byte
	AnimatedBytes        []byte
	SkeletonBindingBytes []byte
	SkeletonRecordStride int
	Indices              []uint32
	PreskinningDrawCalls []PreskinningDrawCall
	JointMatrices        []common.Mat4 // bind-shape * inverse-bind, ordered by remapped joint index
	JointRemap           map[int32]int32
	LocalBounds          geo.BoundingBox
}

// recordByteSize is the fixed serialised size of a skin.Record: 4 joint indices (uint32)
// plus 4 weights (uint8). Buckets with fewer than 4 live influences are zero-padded into
// the unused trailing slots, satisfying §4.2 step 5's "stride equal to the largest bucket's
// record size" without needing a variable layout.
const recordByteSize = 4*4 + 4

// Bind implements §4.2's binding pass: reorders unified vertices by influence-count bucket,
// splits vertex data into unanimated/animated byte streams, builds the skeleton-binding
// buffer, remaps joint usage, and emits the preskinning draw-call plan.
//
// includeNormalInAnimated controls whether NORMAL is treated as animated data alongside
// POSITION (§4.2 step 3's "(configurable) NORMAL").
func Bind(db *geo.MeshDatabase, indices []uint32, ctrl *UnboundSkinController, includeNormalInAnimated bool) (*NascentBoundSkinnedGeometry, error) {
	posStream := db.Stream(PositionSemantic)
	if posStream == nil {
		return nil, common.NewError(common.KindMissingAttribute, "skin binder: mesh database has no POSITION stream")
	}

	n := db.VertexCount
	bucketOf := make([]int, n) // bucket slot (0..3, per bucketCounts order) for each original unified index
	indexInBucketOf := make([]int, n)

	for u := 0; u < n; u++ {
		p := u
		if len(posStream.VertexMap) > 0 {
			p = int(posStream.VertexMap[u])
		}
		key, ok := ctrl.PositionIndexToBucket[p]
		if !ok {
			return nil, common.NewError(common.KindBinding, "skin binder: position %d has no bucket assignment", p)
		}
		bucketID := int(key >> 16)
		indexInBucket := int(key & 0xFFFF)
		bucketOf[u] = bucketSlot(bucketID)
		indexInBucketOf[u] = indexInBucket
	}

	// Stable-sort unified indices by bucket slot (§4.2 step 2): bucketCounts order, so
	// emission groups 4-influence vertices first, then 2, 1, 0.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return bucketOf[order[i]] < bucketOf[order[j]] })

	oldToNew := make([]uint32, n)
	for newIdx, oldIdx := range order {
		oldToNew[oldIdx] = uint32(newIdx)
	}

	reindexed := make([]uint32, len(indices))
	for i, idx := range indices {
		reindexed[i] = oldToNew[idx]
	}

	// Split vertex data into unanimated/animated byte streams in reordered vertex order.
	animated := map[geo.Semantic]bool{PositionSemantic: true}
	if includeNormalInAnimated {
		animated[NormalSemantic] = true
	}

	streamOrder := append([]*geo.Stream(nil), db.Streams...)
	sort.Slice(streamOrder, func(i, j int) bool {
		a, b := streamOrder[i].Semantic, streamOrder[j].Semantic
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Index < b.Index
	})

	var unanimatedBuf, animatedBuf []byte
	for _, oldIdx := range order {
		for _, s := range streamOrder {
			comps, err := s.At(oldIdx)
			if err != nil {
				return nil, err
			}
			numComps := s.Data.Format.Components()
			var dst *[]byte
			if animated[s.Semantic] {
				dst = &animatedBuf
			} else {
				dst = &unanimatedBuf
			}
			for c := 0; c < numComps; c++ {
				*dst = appendFloat32(*dst, comps[c])
			}
		}
	}

	bounds, err := computeReorderedBounds(posStream, order)
	if err != nil {
		return nil, err
	}

	// Skeleton-binding VB: one fixed-size Record per reordered vertex.
	skeletonBuf := make([]byte, 0, n*recordByteSize)
	for _, oldIdx := range order {
		slot := bucketOf[oldIdx]
		idxInBucket := indexInBucketOf[oldIdx]
		rec := ctrl.Buckets[slot].Records[idxInBucket]
		skeletonBuf = appendRecord(skeletonBuf, rec)
	}

	// Joint-usage remap (§4.2 step 6): collect referenced joints across live influence
	// slots only (padding slots carry weight 0 and are never counted).
	referenced := map[int32]bool{}
	for _, b := range ctrl.Buckets {
		for _, rec := range b.Records {
			for i := 0; i < b.InfluenceCount; i++ {
				referenced[int32(rec.JointIndices[i])] = true
			}
		}
	}
	var liveJoints []int32
	for j := range referenced {
		liveJoints = append(liveJoints, j)
	}
	sort.Slice(liveJoints, func(i, j int) bool { return liveJoints[i] < liveJoints[j] })

	remap := make(map[int32]int32, len(liveJoints))
	for newIdx, oldIdx := range liveJoints {
		remap[oldIdx] = int32(newIdx)
	}

	jointMatrices := make([]common.Mat4, len(liveJoints))
	for oldIdx, newIdx := range remap {
		if int(oldIdx) >= len(ctrl.InverseBindMatrices) {
			return nil, common.NewError(common.KindBinding,
				"skin binder: joint index %d out of range (have %d inverse-bind matrices)", oldIdx, len(ctrl.InverseBindMatrices))
		}
		jointMatrices[newIdx] = ctrl.BindShapeMatrix.Mul(ctrl.InverseBindMatrices[oldIdx])
	}

	// Rewrite skeleton-binding joint indices through the remap in place.
	rewriteJointIndices(skeletonBuf, n, remap)

	// Preskinning draw calls, one per non-empty bucket, in bucketCounts order.
	slotSizes := make([]uint32, len(bucketCounts))
	for _, slot := range bucketOf {
		slotSizes[slot]++
	}
	var draws []PreskinningDrawCall
	var first uint32
	for slot, count := range bucketCounts {
		size := slotSizes[slot]
		if size == 0 {
			continue
		}
		draws = append(draws, PreskinningDrawCall{
			SubMaterialIndex: count,
			FirstVertex:      first,
			IndexCount:       size,
		})
		first += size
	}

	return &NascentBoundSkinnedGeometry{
		UnanimatedBytes:      unanimatedBuf,
		AnimatedBytes:        animatedBuf,
		SkeletonBindingBytes: skeletonBuf,
		SkeletonRecordStride: recordByteSize,
		Indices:              reindexed,
		PreskinningDrawCalls: draws,
		JointMatrices:        jointMatrices,
		JointRemap:           remap,
		LocalBounds:          bounds,
	}, nil
}

func appendFloat32(dst []byte, v float32) []byte {
	bits := math.Float32bits(v)
	return append(dst, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
}

func appendRecord(dst []byte, rec Record) []byte {
	for _, j := range rec.JointIndices {
		dst = append(dst, byte(j), byte(j>>8), byte(j>>16), byte(j>>24))
	}
	return append(dst, rec.Weights[0], rec.Weights[1], rec.Weights[2], rec.Weights[3])
}

// rewriteJointIndices rewrites the first 16 bytes (4 x uint32 joint indices) of every
// recordByteSize-strided record through remap.
func rewriteJointIndices(buf []byte, count int, remap map[int32]int32) {
	for v := 0; v < count; v++ {
		base := v * recordByteSize
		for slot := 0; slot < 4; slot++ {
			off := base + slot*4
			old := int32(uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24)
			if nw, ok := remap[old]; ok {
				buf[off] = byte(nw)
				buf[off+1] = byte(nw >> 8)
				buf[off+2] = byte(nw >> 16)
				buf[off+3] = byte(nw >> 24)
			}
		}
	}
}

func computeReorderedBounds(positions *geo.Stream, order []int) (geo.BoundingBox, error) {
	var bb geo.BoundingBox
	if len(order) == 0 {
		return bb, nil
	}
	bb.Min = [3]float32{3.4e38, 3.4e38, 3.4e38}
	bb.Max = [3]float32{-3.4e38, -3.4e38, -3.4e38}
	for _, idx := range order {
		p, err := positions.At(idx)
		if err != nil {
			return geo.BoundingBox{}, err
		}
		for c := 0; c < 3; c++ {
			if p[c] < bb.Min[c] {
				bb.Min[c] = p[c]
			}
			if p[c] > bb.Max[c] {
				bb.Max[c] = p[c]
			}
		}
	}
	return bb, nil
}
