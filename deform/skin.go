package deform

import (
	"encoding/binary"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/skin"
)

// skinOperation is the built-in "skin" deform: per-vertex CPU skinning over a skeleton-
// binding buffer and a set of preskinning draw calls (§4.5 "Built-in skin deform"). This is
// explicitly host-side work; GPU compute skinning is out of scope.
type skinOperation struct {
	skeletonBindingBytes []byte
	recordStride         int
	drawCalls            []skin.PreskinningDrawCall

	// bindShapeByInverseBind[j] is the static bind_shape * inverse_bind matrix for
	// remapped joint j (NascentBoundSkinnedGeometry.JointMatrices).
	bindShapeByInverseBind []common.Mat4

	// jointToMachineOutput[j] is the skeleton machine output slot remapped joint j reads
	// its live pose from, or -1 if unbound.
	jointToMachineOutput []int32
}

// newSkinOperation builds a skin deform instance from its scaffold-declared parameters.
// Expected keys: "skeletonBindingBytes" ([]byte), "recordStride" (int), "drawCalls"
// ([]skin.PreskinningDrawCall), "bindShapeByInverseBind" ([]common.Mat4),
// "jointToMachineOutput" ([]int32).
func newSkinOperation(params map[string]any) (Operation, error) {
	bytesVal, _ := params["skeletonBindingBytes"].([]byte)
	stride, _ := params["recordStride"].(int)
	drawCalls, _ := params["drawCalls"].([]skin.PreskinningDrawCall)
	bindShape, _ := params["bindShapeByInverseBind"].([]common.Mat4)
	remap, _ := params["jointToMachineOutput"].([]int32)

	if stride <= 0 {
		return nil, common.NewError(common.KindInvalid, "skin deform: recordStride must be > 0")
	}

	return &skinOperation{
		skeletonBindingBytes:   bytesVal,
		recordStride:           stride,
		drawCalls:              drawCalls,
		bindShapeByInverseBind: bindShape,
		jointToMachineOutput:   remap,
	}, nil
}

// Execute implements §4.5's per-vertex CPU skinning: for each preskinning draw call, each
// covered vertex's output position is the weighted sum of its influencing joints'
// bind-shape*inverse-bind*live-pose matrices applied to the base position. A 0-influence
// bucket copies the base position unchanged.
func (op *skinOperation) Execute(inputs, outputs map[string]*VertexElementRange, ctx Context) error {
	posIn, ok := inputs["position"]
	if !ok {
		return common.NewError(common.KindMissingAttribute, "skin deform: missing input 'position'")
	}
	posOut, ok := outputs["position"]
	if !ok {
		return common.NewError(common.KindMissingAttribute, "skin deform: missing output 'position'")
	}

	jointMatrix := func(j uint32) common.Mat4 {
		if int(j) >= len(op.bindShapeByInverseBind) {
			return common.IdentityMat4()
		}
		live := common.IdentityMat4()
		if int(j) < len(op.jointToMachineOutput) {
			slot := op.jointToMachineOutput[j]
			if slot >= 0 && int(slot) < len(ctx.JointMatrices) {
				live = ctx.JointMatrices[slot]
			}
		}
		return op.bindShapeByInverseBind[j].Mul(live)
	}

	for _, dc := range op.drawCalls {
		n := dc.SubMaterialIndex
		for v := dc.FirstVertex; v < dc.FirstVertex+dc.IndexCount; v++ {
			p, err := posIn.Get(int(v))
			if err != nil {
				return err
			}

			if n == 0 {
				if err := posOut.Set(int(v), p); err != nil {
					return err
				}
				continue
			}

			base := int(v) * op.recordStride
			if base+16+n > len(op.skeletonBindingBytes) {
				return common.NewError(common.KindInvalid, "skin deform: vertex %d overruns skeleton-binding buffer", v)
			}

			var acc [3]float32
			for i := 0; i < n; i++ {
				jointIdx := binary.LittleEndian.Uint32(op.skeletonBindingBytes[base+i*4 : base+i*4+4])
				weight := float32(op.skeletonBindingBytes[base+16+i]) / 255.0

				transformed := jointMatrix(jointIdx).TransformPoint([3]float32{p[0], p[1], p[2]})
				acc[0] += weight * transformed[0]
				acc[1] += weight * transformed[1]
				acc[2] += weight * transformed[2]
			}

			if err := posOut.Set(int(v), [4]float32{acc[0], acc[1], acc[2], p[3]}); err != nil {
				return err
			}
		}
	}

	return nil
}
