package scaffold

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/skin"
)

const modelChunkVersion = 1

var tagModel = NewFourCC("Mode")

// writeByteRange/readByteRange encode a ByteRange as two little-endian int64s.
func writeByteRange(body *bytes.Buffer, rng ByteRange) {
	binary.Write(body, binary.LittleEndian, rng.Offset)
	binary.Write(body, binary.LittleEndian, rng.Length)
}

func (cr *chunkReader) byteRange() (ByteRange, error) {
	var rng ByteRange
	if err := binary.Read(cr.r, binary.LittleEndian, &rng.Offset); err != nil {
		return ByteRange{}, err
	}
	if err := binary.Read(cr.r, binary.LittleEndian, &rng.Length); err != nil {
		return ByteRange{}, err
	}
	return rng, nil
}

func writeGeoEntry(body *bytes.Buffer, g GeoEntry) {
	writeInputAssembly(body, g.InputAssembly)
	writeByteRange(body, g.VertexDataRange)
	writeByteRange(body, g.IndexDataRange)
	writeU32(body, uint32(g.IndexFormat))
	writeDrawCalls(body, g.DrawCalls)
	binary.Write(body, binary.LittleEndian, g.NodeTransform)
}

func (cr *chunkReader) geoEntry() (GeoEntry, error) {
	var g GeoEntry
	var err error
	if g.InputAssembly, err = cr.inputAssembly(); err != nil {
		return GeoEntry{}, err
	}
	if g.VertexDataRange, err = cr.byteRange(); err != nil {
		return GeoEntry{}, err
	}
	if g.IndexDataRange, err = cr.byteRange(); err != nil {
		return GeoEntry{}, err
	}
	indexFormat, err := cr.u32()
	if err != nil {
		return GeoEntry{}, err
	}
	g.IndexFormat = IndexFormat(indexFormat)
	if g.DrawCalls, err = cr.drawCalls(); err != nil {
		return GeoEntry{}, err
	}
	if err := binary.Read(cr.r, binary.LittleEndian, &g.NodeTransform); err != nil {
		return GeoEntry{}, err
	}
	return g, nil
}

func writeSkinnedGeoEntry(body *bytes.Buffer, sg SkinnedGeoEntry) {
	writeGeoEntry(body, sg.GeoEntry)
	writeByteRange(body, sg.AnimatedDataRange)
	writeByteRange(body, sg.SkeletonDataRange)
	writeU32(body, uint32(sg.RecordStride))

	writeU32(body, uint32(len(sg.Preskinning)))
	for _, pc := range sg.Preskinning {
		writeU32(body, uint32(pc.FirstVertex))
		writeU32(body, uint32(pc.IndexCount))
		writeU32(body, uint32(pc.SubMaterialIndex))
	}

	writeU32(body, uint32(len(sg.JointMatrices)))
	for _, m := range sg.JointMatrices {
		binary.Write(body, binary.LittleEndian, m)
	}
}

func (cr *chunkReader) skinnedGeoEntry() (SkinnedGeoEntry, error) {
	var sg SkinnedGeoEntry
	var err error
	if sg.GeoEntry, err = cr.geoEntry(); err != nil {
		return SkinnedGeoEntry{}, err
	}
	if sg.AnimatedDataRange, err = cr.byteRange(); err != nil {
		return SkinnedGeoEntry{}, err
	}
	if sg.SkeletonDataRange, err = cr.byteRange(); err != nil {
		return SkinnedGeoEntry{}, err
	}
	recordStride, err := cr.u32()
	if err != nil {
		return SkinnedGeoEntry{}, err
	}
	sg.RecordStride = int(recordStride)

	preskinCount, err := cr.u32()
	if err != nil {
		return SkinnedGeoEntry{}, err
	}
	sg.Preskinning = make([]skin.PreskinningDrawCall, preskinCount)
	for i := range sg.Preskinning {
		firstVertex, err := cr.u32()
		if err != nil {
			return SkinnedGeoEntry{}, err
		}
		indexCount, err := cr.u32()
		if err != nil {
			return SkinnedGeoEntry{}, err
		}
		subMat, err := cr.u32()
		if err != nil {
			return SkinnedGeoEntry{}, err
		}
		sg.Preskinning[i] = skin.PreskinningDrawCall{
			FirstVertex:      firstVertex,
			IndexCount:       indexCount,
			SubMaterialIndex: int(subMat),
		}
	}

	jointCount, err := cr.u32()
	if err != nil {
		return SkinnedGeoEntry{}, err
	}
	sg.JointMatrices = make([]common.Mat4, jointCount)
	for i := range sg.JointMatrices {
		if err := binary.Read(cr.r, binary.LittleEndian, &sg.JointMatrices[i]); err != nil {
			return SkinnedGeoEntry{}, err
		}
	}

	return sg, nil
}

// SerializeModel writes a fully-built Root as a single "Mode" chunk: the immutable data
// block (§6 "an immutable data block... geo entries carrying the input-assembly
// descriptor, large-block-relative offsets, sizes, draw calls, and (for skinned)
// preskinning sections"). Byte ranges must still be large-block-relative at this point --
// call this before FixupPointers, or on a Root built directly from BuildStaticGeoEntry/the
// skin binder's output.
func SerializeModel(w *bytes.Buffer, root *Root) error {
	var body bytes.Buffer

	writeU32(&body, uint32(len(root.Geos)))
	for _, g := range root.Geos {
		writeGeoEntry(&body, g)
	}

	writeU32(&body, uint32(len(root.SkinnedGeos)))
	for _, sg := range root.SkinnedGeos {
		writeSkinnedGeoEntry(&body, sg)
	}

	if root.Skeleton != nil {
		writeU32(&body, 1)
		writeU32(&body, uint32(root.Skeleton.OutputCount))
		writeU32(&body, uint32(len(root.Skeleton.OutputNames)))
		for _, n := range root.Skeleton.OutputNames {
			writeLenPrefixedBytes(&body, []byte(n))
		}
	} else {
		writeU32(&body, 0)
	}

	writeU32(&body, uint32(len(root.DefaultTransforms)))
	for _, m := range root.DefaultTransforms {
		binary.Write(&body, binary.LittleEndian, m)
	}

	binary.Write(&body, binary.LittleEndian, root.Bounds.Min)
	binary.Write(&body, binary.LittleEndian, root.Bounds.Max)
	writeU32(&body, uint32(root.MaxLOD))

	return WriteChunk(w, tagModel, modelChunkVersion, body.Bytes())
}

// DeserializeModel reverses SerializeModel, reading a "Mode" chunk body back into a Root.
// The returned Root's byte ranges are still large-block-relative; call FixupPointers (or
// LoadRoot, which does so automatically) before using it.
func DeserializeModel(body []byte) (*Root, error) {
	cr := &chunkReader{r: bytes.NewReader(body)}
	root := &Root{}

	geoCount, err := cr.u32()
	if err != nil {
		return nil, err
	}
	root.Geos = make([]GeoEntry, geoCount)
	for i := range root.Geos {
		if root.Geos[i], err = cr.geoEntry(); err != nil {
			return nil, err
		}
	}

	skinnedCount, err := cr.u32()
	if err != nil {
		return nil, err
	}
	root.SkinnedGeos = make([]SkinnedGeoEntry, skinnedCount)
	for i := range root.SkinnedGeos {
		if root.SkinnedGeos[i], err = cr.skinnedGeoEntry(); err != nil {
			return nil, err
		}
	}

	hasSkeleton, err := cr.u32()
	if err != nil {
		return nil, err
	}
	if hasSkeleton != 0 {
		outputCount, err := cr.u32()
		if err != nil {
			return nil, err
		}
		nameCount, err := cr.u32()
		if err != nil {
			return nil, err
		}
		names := make([]string, nameCount)
		for i := range names {
			raw, err := cr.bytes()
			if err != nil {
				return nil, err
			}
			names[i] = string(raw)
		}
		root.Skeleton = &skeletonMachineRef{OutputCount: int(outputCount), OutputNames: names}
	}

	transformCount, err := cr.u32()
	if err != nil {
		return nil, err
	}
	root.DefaultTransforms = make([]common.Mat4, transformCount)
	for i := range root.DefaultTransforms {
		if err := binary.Read(cr.r, binary.LittleEndian, &root.DefaultTransforms[i]); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(cr.r, binary.LittleEndian, &root.Bounds.Min); err != nil {
		return nil, err
	}
	if err := binary.Read(cr.r, binary.LittleEndian, &root.Bounds.Max); err != nil {
		return nil, err
	}
	maxLOD, err := cr.u32()
	if err != nil {
		return nil, err
	}
	root.MaxLOD = int(maxLOD)

	return root, nil
}

// NewSkeletonRef builds the scaffold-side skeleton reference a Root carries -- only the
// output shape, per skeletonMachineRef's own doc comment; the full SkeletonMachine is
// loaded and evaluated separately by the caller (§4.4 step 1).
func NewSkeletonRef(outputCount int, outputNames []string) *skeletonMachineRef {
	return &skeletonMachineRef{OutputCount: outputCount, OutputNames: outputNames}
}

// LoadRoot opens path fresh (§5 "Scaffold large-block file handle: opened fresh per load
// call; no shared mutable state"), parses its chunk directory, deserialises the "Mode"
// chunk, and runs FixupPointers so the returned Root is immediately usable. The underlying
// file descriptor is kept open for the Root's lifetime -- large-block ranges are read
// lazily through it -- and must be released via the returned Root's Close.
func LoadRoot(path string) (*Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	container, err := OpenContainer(f, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	body, err := container.ReadChunk(tagModel, modelChunkVersion)
	if err != nil {
		f.Close()
		return nil, err
	}

	root, err := DeserializeModel(body)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := FixupPointers(root, container); err != nil {
		f.Close()
		return nil, err
	}
	root.file = f

	return root, nil
}

// Close releases the scaffold's file handle, if LoadRoot opened one. Roots assembled
// in-process (e.g. directly from BuildStaticGeoEntry for tests) have no file to close.
func (r *Root) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

