package renderer

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/skingeo-core/common"
	"github.com/Carmen-Shannon/skingeo-core/scaffold"
	"github.com/cogentcore/webgpu/wgpu"
)

// ParameterBox is an unordered set of string selectors (material parameters plus the
// synthesised `RES_HAS_<name>` entries §4.4 step 4 derives from a material's bound
// textures). Grounded on the teacher's flat material-property struct
// (engine/renderer/material/material.go), generalised from fixed PBR fields to an open
// string-keyed selector set the way a shader-patch system needs.
type ParameterBox map[string]string

// Union returns a new ParameterBox containing every entry of b and other, with other's
// entries taking precedence on key collision.
func (b ParameterBox) Union(other ParameterBox) ParameterBox {
	out := make(ParameterBox, len(b)+len(other))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// hash returns a stable string key for this selector set, used to key the pipeline cache.
func (b ParameterBox) hash() string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b[k])
		sb.WriteByte(';')
	}
	return sb.String()
}

// PatchCollection is a compiled shader patch set: the vertex/fragment source fragments a
// material's graph resolves to, keyed for caching. The core never inspects the source; it
// only threads the handle through to the host's pipeline builder.
type PatchCollection struct {
	Key            string
	VertexSource   string
	FragmentSource string
}

// InputLayout is the combined vertex-buffer layout a pipeline accelerator is built
// against: static stream elements, the animated (skin) stream, and the deform-output
// stream, concatenated in that order (§4.4 step 4, "input-layout = static-stream ⊕
// animated-stream ⊕ deform-stream").
type InputLayout struct {
	Static   []scaffold.ElementDesc
	Animated []scaffold.ElementDesc
	Deform   []scaffold.ElementDesc
}

func (l InputLayout) hash() string {
	var sb strings.Builder
	write := func(elems []scaffold.ElementDesc) {
		for _, e := range elems {
			fmt.Fprintf(&sb, "%s%d:%d@%d/%d;", e.SemanticName, e.SemanticIndex, e.Format, e.Offset, e.Stride)
		}
		sb.WriteByte('|')
	}
	write(l.Static)
	write(l.Animated)
	write(l.Deform)
	return sb.String()
}

// Topology is the primitive topology a pipeline accelerator rasterises.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyPointList
)

func (t Topology) wgpu() wgpu.PrimitiveTopology {
	if t == TopologyPointList {
		return wgpu.PrimitiveTopologyPointList
	}
	return wgpu.PrimitiveTopologyTriangleList
}

// RenderStateSet is the fixed-function state a pipeline accelerator bakes in: cull mode,
// depth test/write, and blending. Grounded on pipeline.Pipeline's depth/blend/cull fields
// (engine/renderer/pipeline/pipeline.go), lifted out of the pipeline object itself so it
// can be part of a cache key independent of shader source.
type RenderStateSet struct {
	CullMode          wgpu.CullMode
	DepthTestEnabled  bool
	DepthWriteEnabled bool
	BlendEnabled      bool
}

func (s RenderStateSet) hash() string {
	return fmt.Sprintf("c%d-dt%v-dw%v-b%v", s.CullMode, s.DepthTestEnabled, s.DepthWriteEnabled, s.BlendEnabled)
}

// DescriptorSetLayout declares the binding slots (uniform buffer / texture / sampler) a
// descriptor-set accelerator is built against, falling back to a built-in layout when a
// patch collection declares none (§4.4 step 4).
type DescriptorSetLayout struct {
	Bindings []wgpu.BindGroupLayoutEntry
}

// BuiltinDescriptorSetLayout returns the default binding layout used when a material's
// patch collection does not declare its own: one uniform buffer at binding 0 for material
// constants, plus a texture+sampler pair at bindings (2n+1, 2n+2) for every texture slot n
// the material actually binds, matching wgpuBackend.createTextureBinding's binding scheme.
func BuiltinDescriptorSetLayout(textures map[int]*common.ImportedTexture) DescriptorSetLayout {
	entries := []wgpu.BindGroupLayoutEntry{
		{Binding: 0, Visibility: wgpu.ShaderStageFragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
	}
	bindings := make([]int, 0, len(textures))
	for binding := range textures {
		bindings = append(bindings, binding)
	}
	sort.Ints(bindings)
	for _, binding := range bindings {
		entries = append(entries,
			wgpu.BindGroupLayoutEntry{
				Binding:    uint32(binding*2 + 1),
				Visibility: wgpu.ShaderStageFragment,
				Texture:    wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D},
			},
			wgpu.BindGroupLayoutEntry{
				Binding:    uint32(binding*2 + 2),
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		)
	}
	return DescriptorSetLayout{Bindings: entries}
}

// PipelineAccelerator is an opaque cached handle to a compiled render pipeline.
type PipelineAccelerator struct {
	key      string
	pipeline *wgpu.RenderPipeline
}

// DescriptorSetAccelerator is an opaque cached handle to a bind group built from a
// material's constants and texture bindings.
type DescriptorSetAccelerator struct {
	key       string
	bindGroup *wgpu.BindGroup
}

// acceleratorPool caches pipeline and descriptor-set accelerators by their structural key,
// avoiding rebuilding GPU objects for (patch-collection, selectors, layout) combinations
// already seen this session. Grounded on engine/renderer/bind_group_provider's per-provider
// resource holder, generalised to a shared keyed cache across many materials/geos.
type acceleratorPool struct {
	mu        sync.Mutex
	pipelines map[string]PipelineAccelerator
	descSets  map[string]DescriptorSetAccelerator
}

// NewAcceleratorPool creates an empty pipeline/descriptor-set accelerator cache.
func NewAcceleratorPool() *acceleratorPool {
	return &acceleratorPool{
		pipelines: make(map[string]PipelineAccelerator),
		descSets:  make(map[string]DescriptorSetAccelerator),
	}
}

// GetOrCreatePipeline returns the cached PipelineAccelerator for this
// (patches, selectors, layout, topology, state) combination, building it via backend on a
// cache miss.
func (p *acceleratorPool) GetOrCreatePipeline(backend GPUBackend, patches *PatchCollection, selectors ParameterBox, layout InputLayout, topology Topology, state RenderStateSet) (PipelineAccelerator, error) {
	key := patches.Key + "#" + selectors.hash() + "#" + layout.hash() + "#" + state.hash() + "#" + fmt.Sprint(topology)

	p.mu.Lock()
	if acc, ok := p.pipelines[key]; ok {
		p.mu.Unlock()
		return acc, nil
	}
	p.mu.Unlock()

	acc, err := backend.CreatePipelineAccelerator(patches, selectors, layout, topology, state)
	if err != nil {
		return PipelineAccelerator{}, err
	}
	acc.key = key

	p.mu.Lock()
	p.pipelines[key] = acc
	p.mu.Unlock()
	return acc, nil
}

// GetOrCreateDescriptorSet returns the cached DescriptorSetAccelerator for this
// (layout, constants, textures) combination, building it via backend on a cache miss.
func (p *acceleratorPool) GetOrCreateDescriptorSet(backend GPUBackend, layout DescriptorSetLayout, constants ParameterBox, textures map[int]*common.ImportedTexture) (DescriptorSetAccelerator, error) {
	key := constants.hash() + "#" + fmt.Sprint(layout.Bindings)
	bindings := make([]int, 0, len(textures))
	for binding := range textures {
		bindings = append(bindings, binding)
	}
	sort.Ints(bindings)
	for _, binding := range bindings {
		key += fmt.Sprintf("#tex%d=%p", binding, textures[binding])
	}

	p.mu.Lock()
	if acc, ok := p.descSets[key]; ok {
		p.mu.Unlock()
		return acc, nil
	}
	p.mu.Unlock()

	acc, err := backend.CreateDescriptorSetAccelerator(layout, constants, textures)
	if err != nil {
		return DescriptorSetAccelerator{}, err
	}
	acc.key = key

	p.mu.Lock()
	p.descSets[key] = acc
	p.mu.Unlock()
	return acc, nil
}
