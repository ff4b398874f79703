package scaffold

import (
	"bytes"
	"io"
	"os"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/geo"
	"github.com/Carmen-Shannon/skingeo-core/skin"
)

// GeoEntry describes one static geo inside a scaffold: its input-assembly descriptor and
// the large-block-relative byte ranges of its vertex/index data, resolved to absolute
// container offsets by FixupPointers.
type GeoEntry struct {
	InputAssembly   InputAssembly
	VertexDataRange ByteRange
	IndexDataRange  ByteRange
	IndexFormat     IndexFormat
	DrawCalls       []DrawCall
	NodeTransform   common.Mat4
}

// ByteRange is an offset/length pair. Pre-fixup, Offset is relative to the scaffold's
// large-blocks chunk; post-fixup it is absolute within the container.
type ByteRange struct {
	Offset int64
	Length int64
}

// SkinnedGeoEntry extends GeoEntry with the skeleton-binding data and preskinning draw
// calls produced by the skin binder (§4.2).
type SkinnedGeoEntry struct {
	GeoEntry
	AnimatedDataRange ByteRange
	SkeletonDataRange ByteRange
	RecordStride      int
	Preskinning       []skin.PreskinningDrawCall
	JointMatrices     []common.Mat4
}

// Root is the in-memory scaffold: the immutable data block plus a handle back to the
// container for opening large-blocks ranges.
type Root struct {
	Geos              []GeoEntry
	SkinnedGeos       []SkinnedGeoEntry
	Skeleton          *skeletonMachineRef
	DefaultTransforms []common.Mat4
	Bounds            geo.BoundingBox
	MaxLOD            int

	container       *Container
	largeBlocksBase int64
	file            *os.File // set by LoadRoot; nil for in-process-assembled Roots
}

// skeletonMachineRef breaks the scaffold<->skeleton import cycle: scaffold only needs to
// carry a reference, never to construct or evaluate one itself.
type skeletonMachineRef struct {
	OutputCount int
	OutputNames []string
}

var tagLargeBlocks = NewFourCC("LBlk")

// FixupPointers converts every geo entry's large-block-relative byte ranges to absolute
// container offsets, the in-place pass §6 requires before the scaffold is usable. It must
// run exactly once per load.
func FixupPointers(root *Root, container *Container) error {
	e, ok := container.Find(tagLargeBlocks)
	if !ok {
		return common.NewError(common.KindMissingAttribute, "scaffold: container has no large-blocks chunk")
	}
	root.container = container
	root.largeBlocksBase = e.Offset

	for i := range root.Geos {
		root.Geos[i].VertexDataRange.Offset += root.largeBlocksBase
		root.Geos[i].IndexDataRange.Offset += root.largeBlocksBase
	}
	for i := range root.SkinnedGeos {
		root.SkinnedGeos[i].VertexDataRange.Offset += root.largeBlocksBase
		root.SkinnedGeos[i].IndexDataRange.Offset += root.largeBlocksBase
		root.SkinnedGeos[i].AnimatedDataRange.Offset += root.largeBlocksBase
		root.SkinnedGeos[i].SkeletonDataRange.Offset += root.largeBlocksBase
	}
	return nil
}

// Open returns a seekable handle onto an absolute (post-fixup) byte range of the scaffold's
// large-blocks region, sharing the underlying file descriptor rather than copying (§9's
// "expose Open() -> a new handle sharing the same underlying file").
func (r *Root) Open(rng ByteRange) (*io.SectionReader, error) {
	if r.container == nil {
		return nil, common.NewError(common.KindInvalid, "scaffold: Open called before FixupPointers")
	}
	return r.container.OpenAt(rng.Offset, rng.Length), nil
}

// BuildStaticGeoEntry converts a serialised NascentRawGeometry plus its large-blocks byte
// offsets into a GeoEntry ready for a scaffold Root.
func BuildStaticGeoEntry(g *NascentRawGeometry, vertexOffset, indexOffset int64) GeoEntry {
	return GeoEntry{
		InputAssembly:   g.InputAssembly,
		VertexDataRange: ByteRange{Offset: vertexOffset, Length: int64(len(g.VertexBytes))},
		IndexDataRange:  ByteRange{Offset: indexOffset, Length: int64(len(g.IndexBytes))},
		IndexFormat:     g.IndexFormat,
		DrawCalls:       g.DrawCalls,
		NodeTransform:   g.NodeTransform,
	}
}

// WriteLargeBlocks assembles the "LBlk" chunk body from a set of raw geometries, appended
// in order, and returns each geometry's (vertexOffset, indexOffset) within that chunk so
// callers can build matching GeoEntry values.
func WriteLargeBlocks(w *bytes.Buffer, geos []*NascentRawGeometry) (offsets []struct{ VertexOffset, IndexOffset int64 }, err error) {
	var body bytes.Buffer
	for _, g := range geos {
		vOff := int64(body.Len())
		body.Write(g.VertexBytes)
		iOff := int64(body.Len())
		body.Write(g.IndexBytes)
		offsets = append(offsets, struct{ VertexOffset, IndexOffset int64 }{vOff, iOff})
	}
	if err := WriteChunk(w, tagLargeBlocks, 1, body.Bytes()); err != nil {
		return nil, err
	}
	return offsets, nil
}
