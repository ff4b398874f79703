package geo

import "github.com/Carmen-Shannon/skingeo-core/common"

// Semantic identifies a vertex attribute's logical role by name and index
// (e.g. POSITION:0, TEXCOORD:1).
type Semantic struct {
	Name  string
	Index int
}

// Stream is one named attribute stream inside a MeshDatabase: the source data adapter
// plus the per-unified-vertex map into it. An empty VertexMap means "identity" (unified
// index i reads source element i directly).
type Stream struct {
	Semantic  Semantic
	Data      *VertexSourceData
	VertexMap []uint32
}

// MeshDatabase is the unifier's output: a unified-vertex count N plus one Stream per
// semantic, each carrying a vertex map of length N (or empty for identity). Built
// incrementally during unification; treated as immutable afterward (§3).
type MeshDatabase struct {
	VertexCount int
	Streams     []*Stream
}

// Stream looks up a stream by semantic, returning nil if absent.
func (m *MeshDatabase) Stream(sem Semantic) *Stream {
	for _, s := range m.Streams {
		if s.Semantic == sem {
			return s
		}
	}
	return nil
}

// Validate checks the §3 MeshDatabase invariant: every stream's vertex map is either
// empty or exactly VertexCount long.
func (m *MeshDatabase) Validate() error {
	for _, s := range m.Streams {
		if len(s.VertexMap) != 0 && len(s.VertexMap) != m.VertexCount {
			return common.NewError(common.KindFormat,
				"mesh database: stream %s vertex map length %d != vertex count %d",
				s.Semantic.Name, len(s.VertexMap), m.VertexCount)
		}
	}
	return nil
}

// mapIndex resolves a unified index through a stream's vertex map (identity if empty).
func (s *Stream) mapIndex(unified int) int {
	if len(s.VertexMap) == 0 {
		return unified
	}
	return int(s.VertexMap[unified])
}

// At fetches the decoded float32 components for unified vertex index i on this stream.
func (s *Stream) At(i int) ([4]float32, error) {
	return s.Data.At(s.mapIndex(i))
}
