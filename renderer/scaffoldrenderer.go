package renderer

import (
	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/scaffold"
	"github.com/Carmen-Shannon/skingeo-core/skeleton"
	"github.com/cogentcore/webgpu/wgpu"
)

// BufferID discriminates which of a deform plan's three byte regions an element binding
// lives in (§4.4 step 2/3): static-data loaded from the scaffold's large blocks, CPU-side
// temporaries produced by an earlier op in the chain, or the dynamic VB's post-deform
// region.
type BufferID int

const (
	BufferStatic BufferID = iota
	BufferTemporary
	BufferPostDeform
)

// ElementBinding is the resolved (format, offset, stride, buffer) tuple for one side
// (input or output) of a deform op, after cursor assignment.
type ElementBinding struct {
	SemanticName  string
	SemanticIndex int32
	Format        common.ElementFormat
	Offset        int
	Stride        int
	Buffer        BufferID
}

// PlannedDeformOp is one deform-operation instantiation with its inputs/outputs resolved
// to concrete byte regions for this renderer's geos.
type PlannedDeformOp struct {
	Instantiation DeformOperationInstantiation
	Inputs        []ElementBinding
	Outputs       []ElementBinding
	VertexCount   int
}

// DeformPlan is the §4.4 step 2/5 result: the ordered chain of deform ops plus the three
// cursor-assigned region sizes (static-data buffer, CPU temporary buffer, dynamic VB).
type DeformPlan struct {
	Ops            []PlannedDeformOp
	StaticSize     int
	TemporarySize  int
	PostDeformSize int
}

// DrawableGeo is one geo's GPU-side resource handles plus the node-space transform and
// skeleton-output slot needed to compute its world transform each frame (§3
// "SimpleModelRenderer... one drawable geo per raw geo and per skinned geo").
type DrawableGeo struct {
	VertexBuffer        GPUResource
	IndexBuffer         GPUResource
	AnimatedBuffer      GPUResource // nil for unskinned geos
	IndexFormat         scaffold.IndexFormat
	GeoSpaceToNodeSpace common.Mat4
	MachineOutputSlot   int // -1: unbound; BuildDrawables then uses base transform slot 0
}

// geoCall pairs one draw call with the pipeline/descriptor-set handles selected for its
// material, precomputed once at build time (§4.4 step 4 "geo-calls").
type geoCall struct {
	Geo           *DrawableGeo
	DrawCall      scaffold.DrawCall
	Pipeline      PipelineAccelerator
	DescriptorSet DescriptorSetAccelerator
	MaterialGUID  string
}

// Material is the renderer's view of a material: the shader patch collection it resolves
// to, its constant parameter box, its bound textures, and an optional custom
// descriptor-set layout (falling back to BuiltinDescriptorSetLayout when nil). Grounded on
// engine/renderer/material/material.go's surface-properties-plus-pipeline-key
// composition, generalised from fixed PBR fields to the patch-collection/selector model
// §4.4 describes.
type Material struct {
	GUID      string
	Patches   *PatchCollection
	Constants ParameterBox
	Textures  map[int]*common.ImportedTexture
	Layout    *DescriptorSetLayout
}

// SimpleModelRenderer is the runtime object built from a model scaffold and a material
// scaffold (§3). It owns its dynamic VB exclusively; BuildDrawables is its only per-frame
// entry point. It plans the deform regions and allocates the dynamic VB at build time, but
// has no method that maps that VB or executes the planned deform operations.
type SimpleModelRenderer struct {
	backend GPUBackend
	pool    *acceleratorPool

	baseTransforms  []common.Mat4
	skeletonBinding *skeleton.SkeletonBinding

	geos     []*DrawableGeo
	geoCalls []geoCall

	dynamicVB  GPUResource
	temporary  []byte
	staticData []byte
	deformPlan *DeformPlan

	nextDrawCallIndex uint64
	reloadID          uint64
}

// BuildOptions configures BuildSimpleModelRenderer beyond its required inputs.
type BuildOptions struct {
	// TopologyOf assigns each draw call's rasterisation topology; defaults to
	// TopologyTriangleList when nil.
	TopologyOf func(dc scaffold.DrawCall) Topology
	// StateOf assigns each material's fixed-function render state; defaults to a
	// back-face-culled, depth-tested/written state when nil.
	StateOf func(mat *Material) RenderStateSet
}

func defaultBuildOptions() BuildOptions {
	return BuildOptions{
		TopologyOf: func(dc scaffold.DrawCall) Topology {
			if dc.Topology == scaffold.TopologyPointList {
				return TopologyPointList
			}
			return TopologyTriangleList
		},
		StateOf: func(*Material) RenderStateSet {
			return RenderStateSet{CullMode: wgpu.CullModeBack, DepthTestEnabled: true, DepthWriteEnabled: true}
		},
	}
}

// BuildSimpleModelRenderer assembles a SimpleModelRenderer from a loaded scaffold, its
// per-geo material assignment, a deform-operation chain (e.g. BuildSkinDeformInstantiations'
// output), and the skeleton's input interface to bind against (§4.4 steps 1-5).
func BuildSimpleModelRenderer(
	backend GPUBackend,
	pool *acceleratorPool,
	root *scaffold.Root,
	machine *skeleton.SkeletonMachine,
	materialOf func(geoIndex int, skinned bool) *Material,
	deformInstantiations []DeformOperationInstantiation,
	opts *BuildOptions,
) (*SimpleModelRenderer, error) {
	options := defaultBuildOptions()
	if opts != nil {
		if opts.TopologyOf != nil {
			options.TopologyOf = opts.TopologyOf
		}
		if opts.StateOf != nil {
			options.StateOf = opts.StateOf
		}
	}

	r := &SimpleModelRenderer{backend: backend, pool: pool}

	// Step 1: skeleton defaults.
	if machine != nil {
		defaults, err := machine.Evaluate(machine.Default, nil)
		if err != nil {
			return nil, common.WrapError(common.KindInvalid, err, "renderer: evaluating skeleton defaults")
		}
		r.baseTransforms = defaults
		r.skeletonBinding = skeleton.BindSkeleton(machine.OutputNames, skeletonCommandStreamInput(root))
	} else {
		r.baseTransforms = []common.Mat4{common.IdentityMat4()}
	}

	instantiationsByGeo := make(map[int]DeformOperationInstantiation, len(deformInstantiations))
	for _, inst := range deformInstantiations {
		instantiationsByGeo[inst.GeoIndex] = inst
	}

	var staticCursor, temporaryCursor, postDeformCursor int
	var plan DeformPlan
	var staticData []byte

	totalGeos := len(root.Geos) + len(root.SkinnedGeos)
	for gi := 0; gi < totalGeos; gi++ {
		skinned := gi >= len(root.Geos)

		var ia scaffold.InputAssembly
		var drawCalls []scaffold.DrawCall
		var nodeTransform common.Mat4
		var vertexRange scaffold.ByteRange
		var vertexCount int

		if !skinned {
			ge := root.Geos[gi]
			ia, drawCalls, nodeTransform, vertexRange = ge.InputAssembly, ge.DrawCalls, ge.NodeTransform, ge.VertexDataRange
		} else {
			sg := root.SkinnedGeos[gi-len(root.Geos)]
			ia, drawCalls, nodeTransform, vertexRange = sg.InputAssembly, sg.GeoEntry.DrawCalls, sg.NodeTransform, sg.VertexDataRange
		}
		if len(ia.Elements) > 0 {
			vertexCount = int(vertexRange.Length) / int(ia.Elements[0].Stride)
		}

		inst, hasDeform := instantiationsByGeo[gi]

		suppressed := make(map[uint64]bool)
		for _, h := range inst.SuppressedElements {
			suppressed[h] = true
		}

		rawVertexData, err := readScaffoldRange(root, vertexRange)
		if err != nil {
			return nil, common.WrapError(common.KindInvalid, err, "renderer: reading geo %d vertex data", gi)
		}

		// Step 1 (of step 4): the primary VB stream binds directly to the scaffold's own
		// vertex buffer resource, minus suppressed elements (those are dropped from the
		// input-assembly the pipeline is built against, even though their bytes remain in
		// the uploaded buffer).
		var renderElements []scaffold.ElementDesc
		for _, e := range ia.Elements {
			if !suppressed[hashElement(e.SemanticName, e.SemanticIndex)] {
				renderElements = append(renderElements, e)
			}
		}
		renderIA := scaffold.InputAssembly{Elements: renderElements}

		vb, err := backend.CreateStaticVertexBuffer(rawVertexData)
		if err != nil {
			return nil, common.WrapError(common.KindInvalid, err, "renderer: uploading geo %d vertex buffer", gi)
		}
		indexRange := indexRangeOf(root, gi)
		rawIndexData, err := readScaffoldRange(root, indexRange)
		if err != nil {
			return nil, common.WrapError(common.KindInvalid, err, "renderer: reading geo %d index data", gi)
		}
		ib, err := backend.CreateStaticIndexBuffer(rawIndexData)
		if err != nil {
			return nil, common.WrapError(common.KindInvalid, err, "renderer: uploading geo %d index buffer", gi)
		}

		var plannedOp *PlannedDeformOp
		if hasDeform {
			outStride := elementDescStride(inst.OutputElements)
			outputs := make([]ElementBinding, len(inst.OutputElements))
			for i, e := range inst.OutputElements {
				outputs[i] = ElementBinding{
					SemanticName: e.SemanticName, SemanticIndex: e.SemanticIndex,
					Format: e.Format, Offset: postDeformCursor + int(e.Offset), Stride: outStride, Buffer: BufferPostDeform,
				}
			}
			postDeformCursor += outStride * vertexCount

			// Step 2.2: resolve each required upstream element. The built-in skin op's
			// only input is POSITION, which is itself one of the suppressed elements (it
			// is not an earlier op's published output, so case (b) applies: request a
			// static-data load from the source scaffold). A second built-in op kind
			// consuming a chain predecessor's output (case a) is not yet implemented —
			// this renderer only ever plans the single-stage built-in chain.
			var inputs []ElementBinding
			for _, e := range ia.Elements {
				if e.SemanticName != "POSITION" || e.SemanticIndex != 0 {
					continue
				}
				n := copyElementIntoStaticBuffer(&staticData, &staticCursor, rawVertexData, e, vertexCount)
				inputs = append(inputs, ElementBinding{
					SemanticName: e.SemanticName, SemanticIndex: e.SemanticIndex,
					Format: e.Format, Offset: staticCursor - n, Stride: e.Format.ByteSize(), Buffer: BufferStatic,
				})
			}

			plannedOp = &PlannedDeformOp{Instantiation: inst, Inputs: inputs, Outputs: outputs, VertexCount: vertexCount}
			plan.Ops = append(plan.Ops, *plannedOp)
		}

		geo := &DrawableGeo{
			VertexBuffer:        vb,
			IndexBuffer:         ib,
			IndexFormat:         indexFormatOf(root, gi),
			GeoSpaceToNodeSpace: nodeTransform,
			MachineOutputSlot:   -1,
		}
		if skinned {
			sg := root.SkinnedGeos[gi-len(root.Geos)]
			if sg.AnimatedDataRange.Length > 0 {
				animatedData, err := readScaffoldRange(root, sg.AnimatedDataRange)
				if err != nil {
					return nil, common.WrapError(common.KindInvalid, err, "renderer: reading geo %d animated data", gi)
				}
				animatedBuf, err := backend.CreateStaticVertexBuffer(animatedData)
				if err != nil {
					return nil, common.WrapError(common.KindInvalid, err, "renderer: uploading geo %d animated buffer", gi)
				}
				geo.AnimatedBuffer = animatedBuf
			}
		}
		r.geos = append(r.geos, geo)

		mat := materialOf(gi, skinned)
		for _, dc := range drawCalls {
			pipeline, dset, err := r.buildGeoCallAccelerators(mat, renderIA, skinned, plannedOp != nil, options.TopologyOf(dc), options)
			if err != nil {
				return nil, err
			}
			r.geoCalls = append(r.geoCalls, geoCall{
				Geo: geo, DrawCall: dc, Pipeline: pipeline, DescriptorSet: dset, MaterialGUID: mat.GUID,
			})
		}
	}

	plan.StaticSize = staticCursor
	plan.TemporarySize = temporaryCursor
	plan.PostDeformSize = postDeformCursor
	r.deformPlan = &plan
	r.staticData = staticData

	// Step 5: dynamic resources.
	dynamicVB, err := backend.CreateDynamicVertexBuffer(plan.PostDeformSize)
	if err != nil {
		return nil, common.WrapError(common.KindInvalid, err, "renderer: dynamic VB allocation")
	}
	r.dynamicVB = dynamicVB
	r.temporary = make([]byte, plan.TemporarySize)

	return r, nil
}

// readScaffoldRange opens and fully reads one byte range of a scaffold's large-blocks
// region (§6's seekable large-blocks retrieval mode).
func readScaffoldRange(root *scaffold.Root, rng scaffold.ByteRange) ([]byte, error) {
	sr, err := root.Open(rng)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, rng.Length)
	if _, err := sr.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

func indexRangeOf(root *scaffold.Root, geoIndex int) scaffold.ByteRange {
	if geoIndex < len(root.Geos) {
		return root.Geos[geoIndex].IndexDataRange
	}
	return root.SkinnedGeos[geoIndex-len(root.Geos)].IndexDataRange
}

// copyElementIntoStaticBuffer materialises one scaffold element's vertex data into the
// CPU-side static-data buffer, densely packed (stride == element byte size), appending to
// *buf and advancing *cursor. Returns the number of bytes written, so the caller can
// recover the binding's start offset as *cursor-n. Uses a byte-for-byte copy: the stored
// format is carried through unchanged, and no format conversion is performed here.
func copyElementIntoStaticBuffer(buf *[]byte, cursor *int, rawVertexData []byte, e scaffold.ElementDesc, vertexCount int) int {
	width := e.Format.ByteSize()
	start := len(*buf)
	*buf = append(*buf, make([]byte, width*vertexCount)...)
	for v := 0; v < vertexCount; v++ {
		srcOff := int(e.Offset) + v*int(e.Stride)
		dstOff := start + v*width
		copy((*buf)[dstOff:dstOff+width], rawVertexData[srcOff:srcOff+width])
	}
	*cursor = len(*buf)
	return width * vertexCount
}

func (r *SimpleModelRenderer) buildGeoCallAccelerators(mat *Material, ia scaffold.InputAssembly, skinned, deformed bool, topology Topology, options BuildOptions) (PipelineAccelerator, DescriptorSetAccelerator, error) {
	layout := InputLayout{Static: ia.Elements}
	if deformed {
		layout.Deform = []scaffold.ElementDesc{{SemanticName: "POSITION", SemanticIndex: 0, Format: common.FormatR32G32B32Float}}
	}

	selectors := mat.Constants.Union(resHasSelectors(mat))
	state := options.StateOf(mat)

	pipeline, err := r.pool.GetOrCreatePipeline(r.backend, mat.Patches, selectors, layout, topology, state)
	if err != nil {
		return PipelineAccelerator{}, DescriptorSetAccelerator{}, err
	}

	dsLayout := BuiltinDescriptorSetLayout(mat.Textures)
	if mat.Layout != nil {
		dsLayout = *mat.Layout
	}
	dset, err := r.pool.GetOrCreateDescriptorSet(r.backend, dsLayout, mat.Constants, mat.Textures)
	if err != nil {
		return PipelineAccelerator{}, DescriptorSetAccelerator{}, err
	}

	return pipeline, dset, nil
}

// resHasSelectors derives the `RES_HAS_<name>` selector set from a material's bound
// textures (§4.4 step 4).
func resHasSelectors(mat *Material) ParameterBox {
	out := make(ParameterBox, len(mat.Textures))
	for binding := range mat.Textures {
		out[textureSelectorName(binding)] = "1"
	}
	return out
}

func textureSelectorName(binding int) string {
	switch binding {
	case 1:
		return "RES_HAS_DiffuseTexture"
	case 2:
		return "RES_HAS_NormalTexture"
	case 3:
		return "RES_HAS_MetallicRoughnessTexture"
	default:
		return "RES_HAS_Texture"
	}
}

func strideOf(ia scaffold.InputAssembly) int {
	if len(ia.Elements) == 0 {
		return 0
	}
	return int(ia.Elements[0].Stride)
}

func elementDescStride(elems []scaffold.ElementDesc) int {
	stride := 0
	for _, e := range elems {
		stride += e.Format.ByteSize()
	}
	return stride
}

func indexFormatOf(root *scaffold.Root, geoIndex int) scaffold.IndexFormat {
	if geoIndex < len(root.Geos) {
		return root.Geos[geoIndex].IndexFormat
	}
	return root.SkinnedGeos[geoIndex-len(root.Geos)].IndexFormat
}

// skeletonCommandStreamInput recovers the parameter slots a scaffold's embedded skeleton
// expects, used to bind against a separately-loaded SkeletonMachine's output interface
// (§4.4 step 1). The scaffold only retains output shape (skeletonMachineRef), so this
// always returns nil and BindSkeleton degrades to an all-unbound binding, which is still
// well-defined (every output slot reads UnboundSlot).
func skeletonCommandStreamInput(root *scaffold.Root) []skeleton.Parameter {
	return nil
}
