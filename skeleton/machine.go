// Package skeleton implements the opaque command-stream skeleton evaluator and the
// animation-curve sampler that drives it (§4.3).
package skeleton

import "github.com/Carmen-Shannon/skingeo-core/common"

// Opcode is one instruction in a SkeletonMachine's command stream.
type Opcode uint32

const (
	// OpPushTransform composes the current stack top with the transform built from
	// parameter Operand, pushes the result, and advances the bone counter.
	OpPushTransform Opcode = iota
	// OpPop discards the stack top, returning to the parent transform.
	OpPop
	// OpWriteOutput copies the stack top into output slot Operand.
	OpWriteOutput
)

// Instruction is one 32-bit-operand command-stream entry.
type Instruction struct {
	Op      Opcode
	Operand int32
}

// ParamKind discriminates how a Parameter contributes to the composed transform.
type ParamKind int

const (
	ParamTranslation ParamKind = iota
	ParamRotation
	ParamScale
	ParamMatrix
)

// Parameter is one named, typed slot in an input interface.
type Parameter struct {
	Name string
	Kind ParamKind
}

// ParameterValue holds the value for one Parameter slot. Only the field matching the
// slot's ParamKind is meaningful.
type ParameterValue struct {
	Vec3 [3]float32
	Quat common.Quat
	Mat  common.Mat4
}

// ParameterSet is a flat array of ParameterValue indexed the same way as its
// SkeletonMachine's input interface.
type ParameterSet struct {
	Values []ParameterValue
}

// toMat4 builds the 4x4 contribution of one parameter value, per its kind.
func (v ParameterValue) toMat4(kind ParamKind) common.Mat4 {
	switch kind {
	case ParamTranslation:
		m := common.IdentityMat4()
		m[12], m[13], m[14] = v.Vec3[0], v.Vec3[1], v.Vec3[2]
		return m
	case ParamRotation:
		return v.Quat.ToMat4()
	case ParamScale:
		m := common.IdentityMat4()
		m[0], m[5], m[10] = v.Vec3[0], v.Vec3[1], v.Vec3[2]
		return m
	case ParamMatrix:
		return v.Mat
	default:
		return common.IdentityMat4()
	}
}

// EdgeVisitor is invoked once per parent/child edge during evaluation, for callers that
// want per-node debug information (§4.3).
type EdgeVisitor func(parentIndex, childIndex int32, parent, child common.Mat4)

// SkeletonMachine is an opaque command stream producing M output matrices from a typed
// parameter set. Executing the stream against any valid parameter set always yields
// exactly M matrices.
type SkeletonMachine struct {
	Instructions   []Instruction
	InputInterface []Parameter
	OutputNames    []string // output interface: named output matrices
	OutputCount    int
	Default        ParameterSet
}

// Evaluate runs the command stream against params, producing OutputCount matrices. visitor
// may be nil.
func (m *SkeletonMachine) Evaluate(params ParameterSet, visitor EdgeVisitor) ([]common.Mat4, error) {
	if len(params.Values) < len(m.InputInterface) {
		return nil, common.NewError(common.KindInvalid,
			"skeleton machine: parameter set has %d values, need %d", len(params.Values), len(m.InputInterface))
	}

	outputs := make([]common.Mat4, m.OutputCount)
	for i := range outputs {
		outputs[i] = common.IdentityMat4()
	}

	type frame struct {
		mat        common.Mat4
		boneIndex  int32
	}
	stack := []frame{{mat: common.IdentityMat4(), boneIndex: -1}}
	var nextBoneIndex int32

	for _, inst := range m.Instructions {
		switch inst.Op {
		case OpPushTransform:
			if int(inst.Operand) >= len(m.InputInterface) {
				return nil, common.NewError(common.KindInvalid,
					"skeleton machine: push references out-of-range parameter %d", inst.Operand)
			}
			parent := stack[len(stack)-1]
			kind := m.InputInterface[inst.Operand].Kind
			local := params.Values[inst.Operand].toMat4(kind)
			child := parent.mat.Mul(local)

			childIndex := nextBoneIndex
			nextBoneIndex++
			if visitor != nil {
				visitor(parent.boneIndex, childIndex, parent.mat, child)
			}
			stack = append(stack, frame{mat: child, boneIndex: childIndex})

		case OpPop:
			if len(stack) <= 1 {
				return nil, common.NewError(common.KindInvalid, "skeleton machine: pop with empty stack")
			}
			stack = stack[:len(stack)-1]

		case OpWriteOutput:
			if int(inst.Operand) >= m.OutputCount {
				return nil, common.NewError(common.KindInvalid,
					"skeleton machine: write references out-of-range output %d", inst.Operand)
			}
			outputs[inst.Operand] = stack[len(stack)-1].mat

		default:
			return nil, common.NewError(common.KindInvalid, "skeleton machine: unknown opcode %d", inst.Op)
		}
	}

	return outputs, nil
}
