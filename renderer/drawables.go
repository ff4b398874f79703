package renderer

import (
	"hash/fnv"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/deform"
	"github.com/Carmen-Shannon/skingeo-core/scaffold"
)

// hashElement is the stable §6 "suppressed source elements (by hash)" key for one
// (semantic, index) pair. Grounded on geo/unifier.go's maphash-keyed attribute-tuple
// dedup, generalised from a composite-key hash over indices to one over a semantic name
// string, using stdlib FNV-1a rather than maphash since these hashes are compared across
// process runs (scaffold metadata persisted to disk), where maphash's per-process seed
// would not round-trip.
func hashElement(semanticName string, semanticIndex int32) uint64 {
	h := fnv.New64a()
	h.Write([]byte(semanticName))
	h.Write([]byte{byte(semanticIndex), byte(semanticIndex >> 8), byte(semanticIndex >> 16), byte(semanticIndex >> 24)})
	return h.Sum64()
}

// DeformOperationInstantiation is one entry of the §6 deform-operation factory's output: a
// runtime operator bound to a specific geo, the output elements it generates, and the
// source elements it suppresses from the static vertex-buffer binding.
type DeformOperationInstantiation struct {
	GeoIndex           int
	OutputElements     []scaffold.ElementDesc
	SuppressedElements []uint64
	Operator           deform.Operation
}

// BuildSkinDeformInstantiations is the built-in "skin" factory (§6): one instantiation per
// skinned geo, producing POSITION[0]: F32x3 and suppressing POSITION, WEIGHTS, and
// JOINTINDICES (the attributes the skin operation overwrites wholesale).
func BuildSkinDeformInstantiations(root *scaffold.Root) ([]DeformOperationInstantiation, error) {
	instantiations := make([]DeformOperationInstantiation, 0, len(root.SkinnedGeos))

	for i, sg := range root.SkinnedGeos {
		remap := make([]int32, len(sg.JointMatrices))
		for j := range remap {
			remap[j] = int32(j)
		}

		skeletonBytes, err := readScaffoldRange(root, sg.SkeletonDataRange)
		if err != nil {
			return nil, common.WrapError(common.KindInvalid, err, "renderer: reading geo %d skeleton-binding data", i)
		}

		op, err := deform.New("skin", map[string]any{
			"skeletonBindingBytes":   skeletonBytes,
			"recordStride":           sg.RecordStride,
			"drawCalls":              sg.Preskinning,
			"bindShapeByInverseBind": sg.JointMatrices,
			"jointToMachineOutput":   remap,
		})
		if err != nil {
			return nil, common.WrapError(common.KindMissingAttribute, err, "renderer: building skin deform for geo %d", i)
		}

		instantiations = append(instantiations, DeformOperationInstantiation{
			GeoIndex: len(root.Geos) + i,
			OutputElements: []scaffold.ElementDesc{
				{SemanticName: "POSITION", SemanticIndex: 0, Format: common.FormatR32G32B32Float},
			},
			SuppressedElements: []uint64{
				hashElement("POSITION", 0),
				hashElement("WEIGHTS", 0),
				hashElement("JOINTINDICES", 0),
			},
			Operator: op,
		})
	}

	return instantiations, nil
}

// Drawable is one emitted draw packet (§4.5 "Draw-packet emission"): a draw call bound to
// its pipeline/descriptor-set handles and the world transform to apply this frame.
type Drawable struct {
	Pipeline      PipelineAccelerator
	DescriptorSet DescriptorSetAccelerator
	Geo           *DrawableGeo
	DrawCall      scaffold.DrawCall
	ObjectToWorld common.Mat4
	MaterialGUID  string
	DrawCallIndex uint64
}

// PreDrawDelegate gets first refusal on each drawable before it is appended to a packet;
// returning false suppresses the draw.
type PreDrawDelegate func(d Drawable) bool

// DrawPacket accumulates drawables for one render pass ("general" being the only batch
// this core currently emits, per §4.5).
type DrawPacket struct {
	Drawables []Drawable
}

// BuildDrawables emits one drawable per underlying draw call of every geo-call in r,
// applying localToWorld and (optionally) a pre-draw delegate. Grounded on
// engine/scene/scene.go's per-frame drawable-batch construction loop, generalised from
// "one mesh per scene object" to "N geo-calls per renderer, each possibly multi-draw-call".
func (r *SimpleModelRenderer) BuildDrawables(packet *DrawPacket, localToWorld common.Mat4, delegate PreDrawDelegate) {
	for ci := range r.geoCalls {
		call := &r.geoCalls[ci]
		geo := call.Geo

		machineOutput := 0
		if geo.MachineOutputSlot >= 0 {
			machineOutput = geo.MachineOutputSlot
		}
		base := common.IdentityMat4()
		if machineOutput < len(r.baseTransforms) {
			base = r.baseTransforms[machineOutput]
		}
		objectToWorld := geo.GeoSpaceToNodeSpace.Mul(base).Mul(localToWorld)

		d := Drawable{
			Pipeline:      call.Pipeline,
			DescriptorSet: call.DescriptorSet,
			Geo:           geo,
			DrawCall:      call.DrawCall,
			ObjectToWorld: objectToWorld,
			MaterialGUID:  call.MaterialGUID,
			DrawCallIndex: r.nextDrawCallIndex,
		}
		r.nextDrawCallIndex++

		if delegate != nil && !delegate(d) {
			continue
		}
		packet.Drawables = append(packet.Drawables, d)
	}
}
