package scaffold

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/geo"
)

func sampleGeometry() *NascentRawGeometry {
	return &NascentRawGeometry{
		VertexBytes: []byte{
			0, 0, 128, 63, 0, 0, 0, 0, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 128, 63, 0, 0, 0, 0,
			0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 128, 63,
		},
		IndexBytes:  []byte{0, 0, 1, 0, 2, 0},
		IndexFormat: IndexFormat16,
		InputAssembly: InputAssembly{Elements: []ElementDesc{
			{SemanticName: "POSITION", SemanticIndex: 0, Format: common.FormatR32G32B32Float, Offset: 0, Stride: 12},
		}},
		DrawCalls: []DrawCall{
			{Topology: TopologyTriangleList, FirstIndex: 0, IndexCount: 3},
		},
		NodeTransform:    common.IdentityMat4(),
		PositionIndexMap: []uint32{0, 1, 2},
	}
}

func TestModelRootSerializeRoundTrip(t *testing.T) {
	g := sampleGeometry()

	var container bytes.Buffer
	offsets, err := WriteLargeBlocks(&container, []*NascentRawGeometry{g})
	if err != nil {
		t.Fatalf("WriteLargeBlocks: %v", err)
	}

	ge := BuildStaticGeoEntry(g, offsets[0].VertexOffset, offsets[0].IndexOffset)

	want := &Root{
		Geos:              []GeoEntry{ge},
		DefaultTransforms: []common.Mat4{common.IdentityMat4()},
		Bounds:            geo.BoundingBox{Min: [3]float32{0, 0, 0}, Max: [3]float32{1, 1, 1}},
		MaxLOD:            2,
	}

	var buf bytes.Buffer
	if err := SerializeModel(&buf, want); err != nil {
		t.Fatalf("SerializeModel: %v", err)
	}

	c, err := OpenContainer(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	body, err := c.ReadChunk(tagModel, modelChunkVersion)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}

	got, err := DeserializeModel(body)
	if err != nil {
		t.Fatalf("DeserializeModel: %v", err)
	}

	if len(got.Geos) != 1 {
		t.Fatalf("expected 1 geo, got %d", len(got.Geos))
	}
	if got.Geos[0].IndexFormat != ge.IndexFormat {
		t.Fatalf("index format mismatch: got %v want %v", got.Geos[0].IndexFormat, ge.IndexFormat)
	}
	if got.Geos[0].VertexDataRange != ge.VertexDataRange || got.Geos[0].IndexDataRange != ge.IndexDataRange {
		t.Fatalf("byte ranges mismatch: got %+v/%+v want %+v/%+v",
			got.Geos[0].VertexDataRange, got.Geos[0].IndexDataRange, ge.VertexDataRange, ge.IndexDataRange)
	}
	if len(got.Geos[0].InputAssembly.Elements) != 1 || got.Geos[0].InputAssembly.Elements[0].SemanticName != "POSITION" {
		t.Fatalf("input assembly mismatch: %+v", got.Geos[0].InputAssembly)
	}
	if len(got.Geos[0].DrawCalls) != 1 || got.Geos[0].DrawCalls[0].IndexCount != 3 {
		t.Fatalf("draw calls mismatch: %+v", got.Geos[0].DrawCalls)
	}
	if got.Bounds != want.Bounds || got.MaxLOD != want.MaxLOD {
		t.Fatalf("bounds/maxLOD mismatch: got %+v/%d want %+v/%d", got.Bounds, got.MaxLOD, want.Bounds, want.MaxLOD)
	}
	if len(got.DefaultTransforms) != 1 || got.DefaultTransforms[0] != common.IdentityMat4() {
		t.Fatalf("default transforms mismatch: %+v", got.DefaultTransforms)
	}
}

func TestLoadRootEndToEnd(t *testing.T) {
	g := sampleGeometry()

	var body bytes.Buffer
	offsets, err := WriteLargeBlocks(&body, []*NascentRawGeometry{g})
	if err != nil {
		t.Fatalf("WriteLargeBlocks: %v", err)
	}
	ge := BuildStaticGeoEntry(g, offsets[0].VertexOffset, offsets[0].IndexOffset)

	root := &Root{
		Geos:              []GeoEntry{ge},
		DefaultTransforms: []common.Mat4{common.IdentityMat4()},
		Bounds:            geo.BoundingBox{Min: [3]float32{0, 0, 0}, Max: [3]float32{1, 1, 1}},
		MaxLOD:            0,
	}

	var file bytes.Buffer
	if err := SerializeModel(&file, root); err != nil {
		t.Fatalf("SerializeModel: %v", err)
	}
	file.Write(body.Bytes()) // append the "LBlk" chunk after "Mode"

	path := filepath.Join(t.TempDir(), "model.scaffold")
	if err := os.WriteFile(path, file.Bytes(), 0o644); err != nil {
		t.Fatalf("writing scaffold file: %v", err)
	}

	loaded, err := LoadRoot(path)
	if err != nil {
		t.Fatalf("LoadRoot: %v", err)
	}
	defer loaded.Close()

	if len(loaded.Geos) != 1 {
		t.Fatalf("expected 1 geo, got %d", len(loaded.Geos))
	}

	sr, err := loaded.Open(loaded.Geos[0].VertexDataRange)
	if err != nil {
		t.Fatalf("Open(vertex range): %v", err)
	}
	gotVertexBytes := make([]byte, loaded.Geos[0].VertexDataRange.Length)
	if _, err := sr.ReadAt(gotVertexBytes, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(gotVertexBytes, g.VertexBytes) {
		t.Fatalf("vertex bytes round-trip mismatch")
	}

	isr, err := loaded.Open(loaded.Geos[0].IndexDataRange)
	if err != nil {
		t.Fatalf("Open(index range): %v", err)
	}
	gotIndexBytes := make([]byte, loaded.Geos[0].IndexDataRange.Length)
	if _, err := isr.ReadAt(gotIndexBytes, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(gotIndexBytes, g.IndexBytes) {
		t.Fatalf("index bytes round-trip mismatch")
	}
}
