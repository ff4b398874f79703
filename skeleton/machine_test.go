package skeleton

import (
	"testing"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// TestSkeletonMachineEvaluateProducesExactOutputCount is §3's SkeletonMachine invariant:
// executing the command stream against any valid parameter set yields exactly M matrices.
func TestSkeletonMachineEvaluateProducesExactOutputCount(t *testing.T) {
	m := &SkeletonMachine{
		Instructions: []Instruction{
			{Op: OpPushTransform, Operand: 0},
			{Op: OpWriteOutput, Operand: 0},
			{Op: OpPushTransform, Operand: 1},
			{Op: OpWriteOutput, Operand: 1},
			{Op: OpPop},
			{Op: OpPop},
		},
		InputInterface: []Parameter{
			{Name: "root", Kind: ParamTranslation},
			{Name: "child", Kind: ParamTranslation},
		},
		OutputCount: 2,
	}

	params := ParameterSet{Values: []ParameterValue{
		{Vec3: [3]float32{1, 0, 0}},
		{Vec3: [3]float32{0, 1, 0}},
	}}

	out, err := m.Evaluate(params, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected exactly 2 output matrices, got %d", len(out))
	}

	// Root output is a pure translation by (1,0,0).
	if out[0][12] != 1 || out[0][13] != 0 || out[0][14] != 0 {
		t.Fatalf("expected root translation (1,0,0), got (%v,%v,%v)", out[0][12], out[0][13], out[0][14])
	}
	// Child output composes root's translation with its own: (1,1,0).
	if out[1][12] != 1 || out[1][13] != 1 || out[1][14] != 0 {
		t.Fatalf("expected child translation (1,1,0), got (%v,%v,%v)", out[1][12], out[1][13], out[1][14])
	}
}

func TestSkeletonMachineEvaluateRejectsShortParameterSet(t *testing.T) {
	m := &SkeletonMachine{
		InputInterface: []Parameter{{Name: "root", Kind: ParamTranslation}},
		OutputCount:    1,
	}
	if _, err := m.Evaluate(ParameterSet{}, nil); err == nil {
		t.Fatalf("expected an error for a too-short parameter set")
	}
}

func TestSkeletonMachineEvaluateDefaultsToIdentityForUnwrittenOutputs(t *testing.T) {
	m := &SkeletonMachine{
		Instructions:   nil,
		InputInterface: nil,
		OutputCount:    1,
	}
	out, err := m.Evaluate(ParameterSet{}, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if out[0] != common.IdentityMat4() {
		t.Fatalf("expected unwritten output slot to default to identity")
	}
}
