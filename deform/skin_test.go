package deform

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/skin"
)

func positionRange(positions [][4]float32) *VertexElementRange {
	data := make([]byte, len(positions)*16)
	r := &VertexElementRange{
		Data:   data,
		Offset: 0,
		Stride: 16,
		Format: common.FormatR32G32B32A32Float,
		Count:  len(positions),
	}
	for i, p := range positions {
		if err := r.Set(i, p); err != nil {
			panic(err)
		}
	}
	return r
}

// skeletonBindingRecord packs n joint indices (4 bytes each, up to offset 16) and their
// unorm8 weights (at offset 16) into one stride-20 record, matching skinOperation.Execute's
// expected layout.
func skeletonBindingRecord(joints [4]uint32, weights [4]uint8) []byte {
	rec := make([]byte, 20)
	for i, j := range joints {
		binary.LittleEndian.PutUint32(rec[i*4:i*4+4], j)
	}
	copy(rec[16:20], weights[:])
	return rec
}

// TestSkinOperationExecuteIdentityFrame is the §8 end-to-end scenario 5: every joint matrix
// is identity and every vertex's weighted sum is 1, so the deform leaves every position
// unchanged (to within float rounding from the unorm8 weight requantisation).
func TestSkinOperationExecuteIdentityFrame(t *testing.T) {
	positions := [][4]float32{
		{1, 2, 3, 1},
		{-4, 5, -6, 1},
	}
	posIn := positionRange(positions)
	posOut := positionRange([][4]float32{{0, 0, 0, 0}, {0, 0, 0, 0}})

	var binding []byte
	binding = append(binding, skeletonBindingRecord([4]uint32{0, 1, 2, 3}, [4]uint8{64, 64, 64, 63})...)
	binding = append(binding, skeletonBindingRecord([4]uint32{0, 1, 2, 3}, [4]uint8{64, 64, 64, 63})...)

	joints := make([]common.Mat4, 4)
	remap := make([]int32, 4)
	for j := range joints {
		joints[j] = common.IdentityMat4()
		remap[j] = int32(j)
	}

	op, err := newSkinOperation(map[string]any{
		"skeletonBindingBytes":   binding,
		"recordStride":           20,
		"drawCalls":              []skin.PreskinningDrawCall{{SubMaterialIndex: 4, FirstVertex: 0, IndexCount: 2}},
		"bindShapeByInverseBind": joints,
		"jointToMachineOutput":   remap,
	})
	if err != nil {
		t.Fatalf("newSkinOperation failed: %v", err)
	}

	ctx := Context{JointMatrices: []common.Mat4{
		common.IdentityMat4(), common.IdentityMat4(), common.IdentityMat4(), common.IdentityMat4(),
	}}
	if err := op.Execute(
		map[string]*VertexElementRange{"position": posIn},
		map[string]*VertexElementRange{"position": posOut},
		ctx,
	); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for v, want := range positions {
		got, err := posOut.Get(v)
		if err != nil {
			t.Fatalf("Get(%d) failed: %v", v, err)
		}
		for c := 0; c < 3; c++ {
			if math.Abs(float64(got[c]-want[c])) > 1e-3 {
				t.Fatalf("vertex %d component %d: got %v, want %v", v, c, got[c], want[c])
			}
		}
	}
}

// TestSkinOperationExecuteZeroInfluenceCopiesThrough covers the 0-influence bucket's
// invariant: output_position(v) == input_position(v) bit-for-bit, with no weighted sum at
// all (the skeleton-binding buffer is never consulted for these vertices).
func TestSkinOperationExecuteZeroInfluenceCopiesThrough(t *testing.T) {
	positions := [][4]float32{{7, 8, 9, 1}}
	posIn := positionRange(positions)
	posOut := positionRange([][4]float32{{0, 0, 0, 0}})

	op, err := newSkinOperation(map[string]any{
		"skeletonBindingBytes":   []byte{},
		"recordStride":           20,
		"drawCalls":              []skin.PreskinningDrawCall{{SubMaterialIndex: 0, FirstVertex: 0, IndexCount: 1}},
		"bindShapeByInverseBind": []common.Mat4{},
		"jointToMachineOutput":   []int32{},
	})
	if err != nil {
		t.Fatalf("newSkinOperation failed: %v", err)
	}

	if err := op.Execute(
		map[string]*VertexElementRange{"position": posIn},
		map[string]*VertexElementRange{"position": posOut},
		Context{},
	); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	got, err := posOut.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != positions[0] {
		t.Fatalf("expected bit-for-bit passthrough, got %v want %v", got, positions[0])
	}
}

func TestNewSkinOperationRejectsNonPositiveStride(t *testing.T) {
	if _, err := newSkinOperation(map[string]any{"recordStride": 0}); err == nil {
		t.Fatalf("expected an error for recordStride <= 0")
	}
}
