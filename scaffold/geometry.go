package scaffold

import (
	"bytes"
	"encoding/binary"

	"github.com/Carmen-Shannon/skingeo-core/common"
)

// IndexFormat discriminates the width of a geo's index buffer.
type IndexFormat uint32

const (
	IndexFormat16 IndexFormat = iota
	IndexFormat32
)

// Size returns the byte width of one index.
func (f IndexFormat) Size() int {
	if f == IndexFormat16 {
		return 2
	}
	return 4
}

// ElementDesc is one entry of an input-assembly descriptor: a named attribute's format,
// byte offset, and stride within a vertex record.
type ElementDesc struct {
	SemanticName  string
	SemanticIndex int32
	Format        common.ElementFormat
	Offset        uint32
	Stride        uint32
}

// InputAssembly is the element list + stride describing how to read a vertex buffer.
type InputAssembly struct {
	Elements []ElementDesc
}

// Topology is the GPU primitive topology a draw call submits.
type Topology uint32

const (
	TopologyTriangleList Topology = iota
	TopologyPointList
)

// DrawCall is one sub-range of a geo's index buffer to submit with a given topology.
type DrawCall struct {
	Topology         Topology
	FirstIndex       uint32
	IndexCount       uint32
	FirstVertex      uint32
	SubMaterialIndex int32
}

// NascentRawGeometry is a static mesh ready for serialisation into the chunked binary form
// (§3). PositionIndexMap is the final-unified-index -> original-position-index map carried
// forward from geometry unification, needed downstream by the skin binder.
type NascentRawGeometry struct {
	VertexBytes      []byte
	IndexBytes       []byte
	IndexFormat      IndexFormat
	InputAssembly    InputAssembly
	DrawCalls        []DrawCall
	NodeTransform    common.Mat4
	PositionIndexMap []uint32
}

// Validate checks the §3 invariant: every draw call's (firstIndex + indexCount) is within
// the index buffer.
func (g *NascentRawGeometry) Validate() error {
	total := len(g.IndexBytes) / g.IndexFormat.Size()
	for i, dc := range g.DrawCalls {
		if int(dc.FirstIndex+dc.IndexCount) > total {
			return common.NewError(common.KindFormat,
				"nascent raw geometry: draw call %d range [%d,%d) exceeds index count %d",
				i, dc.FirstIndex, dc.FirstIndex+dc.IndexCount, total)
		}
	}
	return nil
}

const geometryChunkVersion = 1

var (
	tagGeom = NewFourCC("Geom")
)

// writeU32 is the shared little-endian uint32 writer every chunk body in this package uses.
func writeU32(body *bytes.Buffer, v uint32) { binary.Write(body, binary.LittleEndian, v) }

// writeLenPrefixedBytes writes a uint32 length prefix followed by the raw bytes, the
// variable-length-field convention every chunk body in this package shares.
func writeLenPrefixedBytes(body *bytes.Buffer, b []byte) {
	writeU32(body, uint32(len(b)))
	body.Write(b)
}

// writeInputAssembly writes an InputAssembly's element list in the shared chunk encoding.
func writeInputAssembly(body *bytes.Buffer, ia InputAssembly) {
	writeU32(body, uint32(len(ia.Elements)))
	for _, e := range ia.Elements {
		writeLenPrefixedBytes(body, []byte(e.SemanticName))
		writeU32(body, uint32(e.SemanticIndex))
		writeU32(body, uint32(e.Format))
		writeU32(body, e.Offset)
		writeU32(body, e.Stride)
	}
}

// writeDrawCalls writes a draw-call list in the shared chunk encoding.
func writeDrawCalls(body *bytes.Buffer, calls []DrawCall) {
	writeU32(body, uint32(len(calls)))
	for _, dc := range calls {
		writeU32(body, uint32(dc.Topology))
		writeU32(body, dc.FirstIndex)
		writeU32(body, dc.IndexCount)
		writeU32(body, dc.FirstVertex)
		writeU32(body, uint32(dc.SubMaterialIndex))
	}
}

// chunkReader wraps a byte reader with the same length-prefixed/u32 primitives writeU32 et
// al. produce, so every Deserialize in this package reads back symmetrically.
type chunkReader struct {
	r *bytes.Reader
}

func (cr *chunkReader) u32() (uint32, error) {
	var v uint32
	err := binary.Read(cr.r, binary.LittleEndian, &v)
	return v, err
}

func (cr *chunkReader) bytes() ([]byte, error) {
	n, err := cr.u32()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := cr.r.Read(buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func (cr *chunkReader) inputAssembly() (InputAssembly, error) {
	count, err := cr.u32()
	if err != nil {
		return InputAssembly{}, err
	}
	ia := InputAssembly{Elements: make([]ElementDesc, count)}
	for i := range ia.Elements {
		name, err := cr.bytes()
		if err != nil {
			return InputAssembly{}, err
		}
		semIdx, err := cr.u32()
		if err != nil {
			return InputAssembly{}, err
		}
		format, err := cr.u32()
		if err != nil {
			return InputAssembly{}, err
		}
		offset, err := cr.u32()
		if err != nil {
			return InputAssembly{}, err
		}
		stride, err := cr.u32()
		if err != nil {
			return InputAssembly{}, err
		}
		ia.Elements[i] = ElementDesc{
			SemanticName:  string(name),
			SemanticIndex: int32(semIdx),
			Format:        common.ElementFormat(format),
			Offset:        offset,
			Stride:        stride,
		}
	}
	return ia, nil
}

func (cr *chunkReader) drawCalls() ([]DrawCall, error) {
	count, err := cr.u32()
	if err != nil {
		return nil, err
	}
	calls := make([]DrawCall, count)
	for i := range calls {
		topology, err := cr.u32()
		if err != nil {
			return nil, err
		}
		firstIndex, err := cr.u32()
		if err != nil {
			return nil, err
		}
		indexCount, err := cr.u32()
		if err != nil {
			return nil, err
		}
		firstVertex, err := cr.u32()
		if err != nil {
			return nil, err
		}
		subMat, err := cr.u32()
		if err != nil {
			return nil, err
		}
		calls[i] = DrawCall{
			Topology:         Topology(topology),
			FirstIndex:       firstIndex,
			IndexCount:       indexCount,
			FirstVertex:      firstVertex,
			SubMaterialIndex: int32(subMat),
		}
	}
	return calls, nil
}

// Serialize writes g as a single "Geom" chunk.
func Serialize(w *bytes.Buffer, g *NascentRawGeometry) error {
	var body bytes.Buffer

	writeU32(&body, uint32(g.IndexFormat))
	binary.Write(&body, binary.LittleEndian, g.NodeTransform)

	writeInputAssembly(&body, g.InputAssembly)
	writeDrawCalls(&body, g.DrawCalls)

	writeLenPrefixedBytes(&body, g.VertexBytes)
	writeLenPrefixedBytes(&body, g.IndexBytes)

	writeU32(&body, uint32(len(g.PositionIndexMap)))
	for _, v := range g.PositionIndexMap {
		writeU32(&body, v)
	}

	return WriteChunk(w, tagGeom, geometryChunkVersion, body.Bytes())
}

// Deserialize reverses Serialize, reading a "Geom" chunk body back into a
// NascentRawGeometry.
func Deserialize(body []byte) (*NascentRawGeometry, error) {
	r := bytes.NewReader(body)
	cr := &chunkReader{r: r}
	g := &NascentRawGeometry{}

	indexFormat, err := cr.u32()
	if err != nil {
		return nil, err
	}
	g.IndexFormat = IndexFormat(indexFormat)

	if err := binary.Read(r, binary.LittleEndian, &g.NodeTransform); err != nil {
		return nil, err
	}

	if g.InputAssembly, err = cr.inputAssembly(); err != nil {
		return nil, err
	}
	if g.DrawCalls, err = cr.drawCalls(); err != nil {
		return nil, err
	}

	if g.VertexBytes, err = cr.bytes(); err != nil {
		return nil, err
	}
	if g.IndexBytes, err = cr.bytes(); err != nil {
		return nil, err
	}

	posMapCount, err := cr.u32()
	if err != nil {
		return nil, err
	}
	g.PositionIndexMap = make([]uint32, posMapCount)
	for i := range g.PositionIndexMap {
		if g.PositionIndexMap[i], err = cr.u32(); err != nil {
			return nil, err
		}
	}

	return g, nil
}
