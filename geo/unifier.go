package geo

import (
	"hash/maphash"
	"sort"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// Topology identifies a source primitive's shape, per §4.1's input contract.
type Topology int

const (
	TopologyTriangles Topology = iota
	TopologyPolyList
	TopologyPolygons
)

// AttributeInput describes one raw attribute stream a primitive may reference, keyed by
// (SourceID, Semantic). IndexInPrimitive says which slot of each per-corner index tuple
// carries this attribute's index.
type AttributeInput struct {
	SourceID         int
	Semantic         Semantic
	Data             *VertexSourceData
	IndexInPrimitive int
}

// Primitive is one drawable group of corners sharing a topology. Indices is the flat,
// already-tokenised per-corner index array (stride ints per corner for Triangles;
// for PolyList, Indices is the concatenation of all polygons' corners and VCounts gives
// each polygon's corner count; Polygons is identical in shape to PolyList here since both
// reduce to "a vcount-bounded run of corners", per §1's scope boundary that upstream
// XML/Collada tokenisation already happened).
type Primitive struct {
	Topology Topology
	Indices  []int32 // flat per-corner index tuples, `stride` int32s per corner
	VCounts  []int   // only used for PolyList/Polygons: vertex count of each polygon
}

// SemanticRemap optionally renames or suppresses a semantic before aggregation.
type SemanticRemap struct {
	Rename    map[string]string
	Suppress  map[string]bool
}

// UnifyInput bundles the §4.1 input contract.
type UnifyInput struct {
	Attributes []AttributeInput
	Primitives []Primitive
	Remap      *SemanticRemap
}

// element is one aggregated attribute slot discovered during unification, in first-seen order.
type element struct {
	sourceID         int
	semantic         Semantic
	data             *VertexSourceData
	indexInPrimitive int
}

// Unify implements §4.1: attribute aggregation, semantic-index normalisation,
// triangulation, and unified-vertex construction via attribute-tuple hashing.
// Returns the unified index buffer and the resulting MeshDatabase.
func Unify(in UnifyInput) ([]uint32, *MeshDatabase, error) {
	elements, err := aggregateElements(in)
	if err != nil {
		return nil, nil, err
	}
	if len(elements) == 0 {
		common.Default.Warn("geo.Unify: primitive with zero successfully bound inputs; dropping geo")
		return nil, &MeshDatabase{}, nil
	}

	stride := 0
	for _, e := range elements {
		if e.indexInPrimitive+1 > stride {
			stride = e.indexInPrimitive + 1
		}
	}

	indexBuffer, unifiedTuples, err := triangulateAndUnify(in.Primitives, stride, elements)
	if err != nil {
		return nil, nil, err
	}

	db := &MeshDatabase{VertexCount: len(unifiedTuples)}
	for ei, e := range elements {
		vm := make([]uint32, len(unifiedTuples))
		for ui, tuple := range unifiedTuples {
			vm[ui] = uint32(tuple[ei])
		}
		db.Streams = append(db.Streams, &Stream{Semantic: e.semantic, Data: e.data, VertexMap: vm})
	}

	return indexBuffer, db, nil
}

// aggregateElements implements §4.1 steps 1-2: first-seen ordered element list plus
// per-semantic minimum-index normalisation (repairs exporters that start at 1).
func aggregateElements(in UnifyInput) ([]*element, error) {
	var elements []*element
	seen := map[[2]any]bool{}

	for _, attr := range in.Attributes {
		sem := attr.Semantic
		if in.Remap != nil {
			if in.Remap.Suppress[sem.Name] {
				continue
			}
			if renamed, ok := in.Remap.Rename[sem.Name]; ok {
				sem.Name = renamed
			}
		}
		key := [2]any{attr.SourceID, sem}
		if seen[key] {
			continue
		}
		seen[key] = true

		flags := common.ProcessingFlags(0)
		if sem.Name == "TEXCOORD" {
			flags |= common.FlipV
		}
		data := *attr.Data
		data.Flags |= flags

		elements = append(elements, &element{
			sourceID:         attr.SourceID,
			semantic:         sem,
			data:             &data,
			indexInPrimitive: attr.IndexInPrimitive,
		})
	}

	// Normalise semantic indices per distinct name: subtract the minimum observed index.
	minBySem := map[string]int{}
	for _, e := range elements {
		if cur, ok := minBySem[e.semantic.Name]; !ok || e.semantic.Index < cur {
			minBySem[e.semantic.Name] = e.semantic.Index
		}
	}
	for _, e := range elements {
		e.semantic.Index -= minBySem[e.semantic.Name]
	}

	return elements, nil
}

// corner is one triangle corner's raw per-attribute index tuple, sliced out of a
// primitive's flat index array.
type corner []int32

// tupleTable is the hash(A) -> unified_index map shared across an entire Unify call,
// implementing §4.1 step 4's dedup rule: a hit's stored tuple must match the lookup tuple
// byte-for-byte, so equivalent attribute tuples always produce the same unified index.
type tupleTable struct {
	h      maphash.Hash
	table  map[uint64][]tupleBucket
	tuples [][]int32
}

type tupleBucket struct {
	tuple []int32
	index uint32
}

func newTupleTable() *tupleTable {
	t := &tupleTable{table: map[uint64][]tupleBucket{}}
	t.h.SetSeed(unifySeed)
	return t
}

// buildUnifiedVertex looks up tuple in the shared table, appending a new unified vertex on
// a miss. tuple's contents are copied before storage since callers reuse the backing slice.
func (t *tupleTable) buildUnifiedVertex(tuple []int32) uint32 {
	t.h.Reset()
	for _, v := range tuple {
		var b [4]byte
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
		t.h.Write(b[:])
	}
	key := t.h.Sum64()

	for _, b := range t.table[key] {
		if tupleEqual(b.tuple, tuple) {
			return b.index
		}
	}

	owned := append([]int32(nil), tuple...)
	idx := uint32(len(t.tuples))
	t.tuples = append(t.tuples, owned)
	t.table[key] = append(t.table[key], tupleBucket{tuple: owned, index: idx})
	return idx
}

// triangulateAndUnify implements §4.1 steps 3-4 together, matching the original XLE
// ordering: for poly-list/polygons, every corner of a polygon is unified in natural
// per-corner order (0..v-1) *before* the fan pattern is applied, so unified-vertex
// assignment depends only on first-seen corner order, never on fan-traversal order. The
// fan pattern is then used purely as a remap table over the already-unified per-corner
// indices (see CreateTriangleWindingFromPolygon in the original source). Triangle
// primitives have no winding remap: each corner is unified and appended directly.
func triangulateAndUnify(prims []Primitive, stride int, elements []*element) ([]uint32, [][]int32, error) {
	table := newTupleTable()
	var indexBuffer []uint32
	tuple := make([]int32, len(elements))

	loadTuple := func(raw corner) []int32 {
		for ei, e := range elements {
			tuple[ei] = raw[e.indexInPrimitive]
		}
		return tuple
	}

	for _, p := range prims {
		switch p.Topology {
		case TopologyTriangles:
			count := len(p.Indices) / stride
			for c := 0; c < count; c++ {
				raw := corner(p.Indices[c*stride : (c+1)*stride])
				indexBuffer = append(indexBuffer, table.buildUnifiedVertex(loadTuple(raw)))
			}

		case TopologyPolyList, TopologyPolygons:
			offset := 0
			for _, v := range p.VCounts {
				if v < 3 {
					offset += v * stride
					continue
				}

				unifiedVertexIndices := make([]uint32, v)
				for q := 0; q < v; q++ {
					raw := corner(p.Indices[offset+q*stride : offset+(q+1)*stride])
					unifiedVertexIndices[q] = table.buildUnifiedVertex(loadTuple(raw))
				}
				offset += v * stride

				triCount := v - 2
				for k := 0; k < triCount; k++ {
					v0 := (k + 1) / 2
					var v1 int
					if k&1 == 1 {
						v1 = v - 2 - k/2
					} else {
						v1 = v0 + 1
					}
					v2 := v - 1 - k/2
					indexBuffer = append(indexBuffer,
						unifiedVertexIndices[v0], unifiedVertexIndices[v1], unifiedVertexIndices[v2])
				}
			}

		default:
			return nil, nil, common.NewError(common.KindFormat, "geo.Unify: unsupported topology %v", p.Topology)
		}
	}

	return indexBuffer, table.tuples, nil
}

// unifySeed is chosen at random once per process. It only selects hash buckets for tuple
// lookup; unified-vertex ids follow first-seen order, so Unify's output does not depend on
// the seed and stays identical run-to-run for identical input.
var unifySeed = maphash.MakeSeed()

func tupleEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sortUint32 sorts s into ascending order in place. Nothing in this module calls it.
func sortUint32(s []uint32) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
