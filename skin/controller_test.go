package skin

import (
	"testing"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// TestBuildUnboundSkinControllerThresholdCull is the §8 end-to-end scenario 3: a position
// with raw influences {(j=0,w=0.99),(j=1,w=0.01)} drops the sub-threshold influence and
// lands in bucket 1 with a single influence (j=0, w=1.0).
func TestBuildUnboundSkinControllerThresholdCull(t *testing.T) {
	raw := []RawInfluence{{JointIndex: 0, Weight: 0.99}, {JointIndex: 1, Weight: 0.01}}
	ctrl, err := BuildUnboundSkinController(1,
		func(int) ([]RawInfluence, error) { return raw, nil },
		[]string{"a", "b"}, []common.Mat4{common.IdentityMat4(), common.IdentityMat4()}, common.IdentityMat4())
	if err != nil {
		t.Fatalf("BuildUnboundSkinController failed: %v", err)
	}

	key := ctrl.PositionIndexToBucket[0]
	bucketID := int(key >> 16)
	indexInBucket := int(key & 0xFFFF)
	if bucketID != 1 {
		t.Fatalf("expected position 0 in bucket 1, got bucket %d", bucketID)
	}

	slot := bucketSlot(bucketID)
	rec := ctrl.Buckets[slot].Records[indexInBucket]
	if rec.JointIndices[0] != 0 {
		t.Fatalf("expected surviving influence to reference joint 0, got %d", rec.JointIndices[0])
	}
	if rec.Weights[0] != 255 {
		t.Fatalf("expected renormalised weight 1.0 (255 unorm), got %d", rec.Weights[0])
	}
}

func TestBuildUnboundSkinControllerBucketing(t *testing.T) {
	cases := []struct {
		name       string
		raw        []RawInfluence
		wantBucket int
	}{
		{"zero influences", nil, 0},
		{"one influence", []RawInfluence{{JointIndex: 2, Weight: 1}}, 1},
		{"two influences", []RawInfluence{{JointIndex: 0, Weight: 0.5}, {JointIndex: 1, Weight: 0.5}}, 2},
		{"three influences clamp to four", []RawInfluence{
			{JointIndex: 0, Weight: 0.4}, {JointIndex: 1, Weight: 0.3}, {JointIndex: 2, Weight: 0.3},
		}, 4},
	}

	joints := []string{"j0", "j1", "j2", "j3"}
	ibm := make([]common.Mat4, len(joints))
	for i := range ibm {
		ibm[i] = common.IdentityMat4()
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctrl, err := BuildUnboundSkinController(1,
				func(int) ([]RawInfluence, error) { return c.raw, nil },
				joints, ibm, common.IdentityMat4())
			if err != nil {
				t.Fatalf("BuildUnboundSkinController failed: %v", err)
			}
			bucketID := int(ctrl.PositionIndexToBucket[0] >> 16)
			if bucketID != c.wantBucket {
				t.Fatalf("expected bucket %d, got %d", c.wantBucket, bucketID)
			}
		})
	}
}

// TestBuildUnboundSkinControllerOverflowKeepsStoredOrder is the §7 "influence overflow"
// rule: with more than 4 surviving influences, the first 4 in stored order are kept (not
// re-sorted by weight) and the tail is discarded.
func TestBuildUnboundSkinControllerOverflowKeepsStoredOrder(t *testing.T) {
	raw := []RawInfluence{
		{JointIndex: 0, Weight: 0.1},
		{JointIndex: 1, Weight: 0.1},
		{JointIndex: 2, Weight: 0.1},
		{JointIndex: 3, Weight: 0.1},
		{JointIndex: 4, Weight: 0.6}, // largest weight, but stored fifth: must be discarded
	}
	joints := []string{"0", "1", "2", "3", "4"}
	ibm := make([]common.Mat4, len(joints))
	for i := range ibm {
		ibm[i] = common.IdentityMat4()
	}

	ctrl, err := BuildUnboundSkinController(1,
		func(int) ([]RawInfluence, error) { return raw, nil },
		joints, ibm, common.IdentityMat4())
	if err != nil {
		t.Fatalf("BuildUnboundSkinController failed: %v", err)
	}

	bucketID := int(ctrl.PositionIndexToBucket[0] >> 16)
	if bucketID != 4 {
		t.Fatalf("expected bucket 4, got %d", bucketID)
	}
	indexInBucket := int(ctrl.PositionIndexToBucket[0] & 0xFFFF)
	rec := ctrl.Buckets[bucketSlot(4)].Records[indexInBucket]
	want := [4]uint32{0, 1, 2, 3}
	if rec.JointIndices != want {
		t.Fatalf("expected stored-order joints %v, got %v", want, rec.JointIndices)
	}
}

func TestBuildUnboundSkinControllerRejectsExcessivePositionCount(t *testing.T) {
	_, err := BuildUnboundSkinController(65536,
		func(int) ([]RawInfluence, error) { return nil, nil },
		nil, nil, common.IdentityMat4())
	if err == nil {
		t.Fatalf("expected a capacity error for > 65535 positions")
	}
}

func TestBuildUnboundSkinControllerWeightsSumToOne(t *testing.T) {
	raw := []RawInfluence{
		{JointIndex: 0, Weight: 0.3},
		{JointIndex: 1, Weight: 0.3},
		{JointIndex: 2, Weight: 0.4},
	}
	joints := []string{"0", "1", "2"}
	ibm := make([]common.Mat4, len(joints))
	for i := range ibm {
		ibm[i] = common.IdentityMat4()
	}

	ctrl, err := BuildUnboundSkinController(1,
		func(int) ([]RawInfluence, error) { return raw, nil },
		joints, ibm, common.IdentityMat4())
	if err != nil {
		t.Fatalf("BuildUnboundSkinController failed: %v", err)
	}
	bucketID := int(ctrl.PositionIndexToBucket[0] >> 16)
	rec := ctrl.Buckets[bucketSlot(bucketID)].Records[0]
	var sum int
	for i := 0; i < 3; i++ {
		sum += int(rec.Weights[i])
	}
	// §8: sum of weights == 1.0 +/- 1/255 quantisation tolerance, i.e. sum of unorm8
	// bytes must land within 1 of 255.
	if sum < 254 || sum > 256 {
		t.Fatalf("expected quantised weights to sum to ~255, got %d", sum)
	}
}
