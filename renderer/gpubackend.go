// Package renderer builds ready-to-draw models from a scaffold: deform planning with
// cursor-assigned byte regions (§4.4), the GPU abstraction the core requires of its host
// (§6), and per-frame draw-packet emission (§4.5).
package renderer

import (
	"sort"
	"sync"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/scaffold"
	"github.com/cogentcore/webgpu/wgpu"
)

// GPUResource is an opaque handle to a host-allocated GPU resource (a buffer, in every
// current case). The core never inspects its contents.
type GPUResource interface{}

// MappedRange is a writeable CPU-visible view of a dynamic buffer's bytes, returned by
// GPUBackend.Map and invalidated by the matching Unmap.
type MappedRange []byte

// GPUBackend is the five operations §6 requires the host application to provide. The core
// never touches shader bytecode, command buffers, or device objects directly; it only
// allocates buffers, builds accelerators, and reads/writes through these handles.
type GPUBackend interface {
	// CreateStaticVertexBuffer uploads an immutable vertex buffer and returns its handle.
	CreateStaticVertexBuffer(data []byte) (GPUResource, error)

	// CreateStaticIndexBuffer uploads an immutable index buffer and returns its handle.
	CreateStaticIndexBuffer(data []byte) (GPUResource, error)

	// CreateDynamicVertexBuffer allocates a size-byte mappable vertex buffer with
	// map-discard semantics: each Map after an Unmap is guaranteed (from the caller's
	// perspective) to return a distinct memory region, so the previous frame's GPU reads
	// never observe the new frame's writes.
	CreateDynamicVertexBuffer(size int) (GPUResource, error)

	// Map returns a writeable byte range over a dynamic buffer, discarding its previous
	// contents. Must be paired with Unmap before the buffer is used in a draw call.
	Map(res GPUResource) (MappedRange, error)

	// Unmap flushes a previously-mapped dynamic buffer back to the GPU.
	Unmap(res GPUResource) error

	// CreatePipelineAccelerator builds a pipeline handle from a compiled shader patch
	// collection, the material selectors active for this draw, the combined input
	// layout, a primitive topology, and a render-state set.
	CreatePipelineAccelerator(patches *PatchCollection, selectors ParameterBox, layout InputLayout, topology Topology, state RenderStateSet) (PipelineAccelerator, error)

	// CreateDescriptorSetAccelerator builds a descriptor-set handle from a binding
	// layout plus the material's constant and texture bindings.
	CreateDescriptorSetAccelerator(layout DescriptorSetLayout, constants ParameterBox, textures map[int]*common.ImportedTexture) (DescriptorSetAccelerator, error)
}

// wgpuBackend is the reference GPUBackend adaptor, grounded on
// engine/renderer/wgpu_renderer_backend.go's device/queue-holding impl and its
// InitMeshBuffers upload pattern. Pipeline/descriptor-set construction is delegated to
// accelerator.go, which this struct also builds against the same device.
type wgpuBackend struct {
	mu     sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue
}

// NewWGPUBackend wraps an already-initialised device/queue pair (surface setup, adapter
// selection, etc. are a host/windowing concern outside this core, as in the teacher's
// newWGPURendererBackend).
func NewWGPUBackend(device *wgpu.Device, queue *wgpu.Queue) GPUBackend {
	return &wgpuBackend{device: device, queue: queue}
}

func (b *wgpuBackend) CreateStaticVertexBuffer(data []byte) (GPUResource, error) {
	return b.uploadStatic(data, wgpu.BufferUsageVertex)
}

func (b *wgpuBackend) CreateStaticIndexBuffer(data []byte) (GPUResource, error) {
	return b.uploadStatic(data, wgpu.BufferUsageIndex)
}

func (b *wgpuBackend) uploadStatic(data []byte, usage wgpu.BufferUsage) (GPUResource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:             uint64(len(data)),
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, common.WrapError(common.KindInvalid, err, "renderer: static buffer creation failed")
	}
	if len(data) > 0 {
		b.queue.WriteBuffer(buf, 0, data)
	}
	return buf, nil
}

func (b *wgpuBackend) CreateDynamicVertexBuffer(size int) (GPUResource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:             uint64(size),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapWrite,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, common.WrapError(common.KindInvalid, err, "renderer: dynamic buffer creation failed")
	}
	return buf, nil
}

func (b *wgpuBackend) Map(res GPUResource) (MappedRange, error) {
	buf, ok := res.(*wgpu.Buffer)
	if !ok {
		return nil, common.NewError(common.KindInvalid, "renderer: Map called on a non-wgpu resource")
	}

	done := make(chan error, 1)
	buf.MapAsync(wgpu.MapModeWrite, 0, buf.GetSize(), func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- common.NewError(common.KindInvalid, "renderer: buffer map failed with status %v", status)
			return
		}
		done <- nil
	})
	b.device.Poll(true, nil)
	if err := <-done; err != nil {
		return nil, err
	}
	return buf.GetMappedRange(0, uint(buf.GetSize())), nil
}

func (b *wgpuBackend) Unmap(res GPUResource) error {
	buf, ok := res.(*wgpu.Buffer)
	if !ok {
		return common.NewError(common.KindInvalid, "renderer: Unmap called on a non-wgpu resource")
	}
	buf.Unmap()
	return nil
}

// CreatePipelineAccelerator compiles a patch collection's WGSL source and builds a render
// pipeline against the combined input layout, grounded on
// wgpu_renderer_backend.go's RegisterRenderPipeline (shader module -> pipeline layout ->
// render pipeline), simplified to the single bind group this core's descriptor-set
// abstraction produces instead of the teacher's per-shader-stage layout merge.
func (b *wgpuBackend) CreatePipelineAccelerator(patches *PatchCollection, selectors ParameterBox, layout InputLayout, topology Topology, state RenderStateSet) (PipelineAccelerator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          patches.Key + " vertex",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: patches.VertexSource},
	})
	if err != nil {
		return PipelineAccelerator{}, common.WrapError(common.KindInvalid, err, "renderer: vertex shader module")
	}
	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          patches.Key + " fragment",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: patches.FragmentSource},
	})
	if err != nil {
		return PipelineAccelerator{}, common.WrapError(common.KindInvalid, err, "renderer: fragment shader module")
	}

	vertexBuffers := vertexBufferLayouts(layout)

	depthCompare := wgpu.CompareFunctionLess
	if !state.DepthTestEnabled {
		depthCompare = wgpu.CompareFunctionAlways
	}

	pipeline, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: patches.Key,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: "vs_main",
			Buffers:    vertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    wgpu.TextureFormatBGRA8Unorm,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology.wgpu(),
			CullMode:  state.CullMode,
			FrontFace: wgpu.FrontFaceCCW,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: state.DepthWriteEnabled,
			DepthCompare:      depthCompare,
		},
	})
	if err != nil {
		return PipelineAccelerator{}, common.WrapError(common.KindInvalid, err, "renderer: render pipeline creation failed")
	}

	return PipelineAccelerator{pipeline: pipeline}, nil
}

// vertexBufferLayouts derives one wgpu.VertexBufferLayout per non-empty stream
// (static/animated/deform), matching §4.4 step 4's stream concatenation order. Shader
// locations are assigned sequentially across all three streams.
func vertexBufferLayouts(layout InputLayout) []wgpu.VertexBufferLayout {
	var out []wgpu.VertexBufferLayout
	shaderLocation := uint32(0)

	for _, elems := range [][]scaffold.ElementDesc{
		layout.Static,
		layout.Animated,
		layout.Deform,
	} {
		if len(elems) == 0 {
			continue
		}
		stride := elems[0].Stride
		attrs := make([]wgpu.VertexAttribute, len(elems))
		for i, e := range elems {
			attrs[i] = wgpu.VertexAttribute{
				Format:         vertexFormat(e.Format),
				Offset:         uint64(e.Offset),
				ShaderLocation: shaderLocation,
			}
			shaderLocation++
		}
		out = append(out, wgpu.VertexBufferLayout{
			ArrayStride: uint64(stride),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		})
	}
	return out
}

func vertexFormat(f common.ElementFormat) wgpu.VertexFormat {
	switch f {
	case common.FormatR32Float:
		return wgpu.VertexFormatFloat32
	case common.FormatR32G32Float:
		return wgpu.VertexFormatFloat32x2
	case common.FormatR32G32B32Float:
		return wgpu.VertexFormatFloat32x3
	case common.FormatR32G32B32A32Float:
		return wgpu.VertexFormatFloat32x4
	case common.FormatR16G16Float:
		return wgpu.VertexFormatFloat16x2
	case common.FormatR16G16B16A16Float:
		return wgpu.VertexFormatFloat16x4
	case common.FormatR8G8B8A8Unorm:
		return wgpu.VertexFormatUnorm8x4
	case common.FormatR16G16Unorm:
		return wgpu.VertexFormatUnorm16x2
	case common.FormatR16G16B16A16Unorm:
		return wgpu.VertexFormatUnorm16x4
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

// CreateDescriptorSetAccelerator builds a bind group for a material's uniform constants
// and texture bindings against the given layout, grounded on
// wgpu_renderer_backend.go's InitBindGroup (create-buffer-per-binding, then
// device.CreateBindGroup), simplified to this core's single constants buffer plus a fixed
// texture binding set.
func (b *wgpuBackend) CreateDescriptorSetAccelerator(layout DescriptorSetLayout, constants ParameterBox, textures map[int]*common.ImportedTexture) (DescriptorSetAccelerator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bgLayout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Entries: layout.Bindings,
	})
	if err != nil {
		return DescriptorSetAccelerator{}, common.WrapError(common.KindInvalid, err, "renderer: bind group layout creation failed")
	}

	constantBytes := encodeParameterBox(constants)
	constBuf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:             uint64(len(constantBytes)),
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return DescriptorSetAccelerator{}, common.WrapError(common.KindInvalid, err, "renderer: constants buffer creation failed")
	}
	if len(constantBytes) > 0 {
		b.queue.WriteBuffer(constBuf, 0, constantBytes)
	}

	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: constBuf, Size: uint64(len(constantBytes))},
	}

	bindings := make([]int, 0, len(textures))
	for binding := range textures {
		bindings = append(bindings, binding)
	}
	sort.Ints(bindings)
	for _, binding := range bindings {
		view, sampler, err := b.createTextureBinding(textures[binding])
		if err != nil {
			return DescriptorSetAccelerator{}, common.WrapError(common.KindInvalid, err, "renderer: texture binding %d", binding)
		}
		entries = append(entries,
			wgpu.BindGroupEntry{Binding: uint32(binding*2 + 1), TextureView: view},
			wgpu.BindGroupEntry{Binding: uint32(binding*2 + 2), Sampler: sampler},
		)
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  bgLayout,
		Entries: entries,
	})
	if err != nil {
		return DescriptorSetAccelerator{}, common.WrapError(common.KindInvalid, err, "renderer: bind group creation failed")
	}

	return DescriptorSetAccelerator{bindGroup: bindGroup}, nil
}

// createTextureBinding decodes a material's imported texture to RGBA pixels (§6's
// "RES_HAS_<name>" texture bindings), uploads it, and builds a sampler from its embedded
// sampler data, falling back to linear/repeat as the teacher's InitBindGroup does for
// textures with no explicit sampler metadata.
func (b *wgpuBackend) createTextureBinding(tex *common.ImportedTexture) (*wgpu.TextureView, *wgpu.Sampler, error) {
	pixels, width, height, err := tex.Decode()
	if err != nil {
		return nil, nil, err
	}

	gpuTex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, nil, err
	}
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: gpuTex},
		pixels,
		&wgpu.TextureDataLayout{BytesPerRow: 4 * width, RowsPerImage: height},
		&wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)

	sd := tex.SamplerData
	if sd == nil {
		sd = &common.SamplerStagingData{
			AddressModeU: wgpu.AddressModeRepeat,
			AddressModeV: wgpu.AddressModeRepeat,
			AddressModeW: wgpu.AddressModeRepeat,
			MagFilter:    wgpu.FilterModeLinear,
			MinFilter:    wgpu.FilterModeLinear,
			MipmapFilter: wgpu.MipmapFilterModeLinear,
		}
	}
	sampler, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  sd.AddressModeU,
		AddressModeV:  sd.AddressModeV,
		AddressModeW:  sd.AddressModeW,
		MagFilter:     sd.MagFilter,
		MinFilter:     sd.MinFilter,
		MipmapFilter:  sd.MipmapFilter,
		LodMinClamp:   sd.LodMinClamp,
		LodMaxClamp:   sd.LodMaxClamp,
		Compare:       sd.Compare,
		MaxAnisotropy: sd.MaxAnisotropy,
	})
	if err != nil {
		return nil, nil, err
	}

	return gpuTex.CreateView(nil), sampler, nil
}

// encodeParameterBox serialises a material's constants into the built-in descriptor-set
// layout's uniform buffer: its stable hash string, padded to a 16-byte alignment. Real
// patch collections declaring their own layout are expected to supply their own constant
// encoding; this is only the built-in fallback's wire format.
func encodeParameterBox(box ParameterBox) []byte {
	raw := []byte(box.hash())
	if len(raw) == 0 {
		return nil
	}
	if pad := len(raw) % 16; pad != 0 {
		raw = append(raw, make([]byte, 16-pad)...)
	}
	return raw
}
