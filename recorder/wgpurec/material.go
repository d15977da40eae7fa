package wgpurec

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"

	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
)

// materialHandle is the Pipeline field of every *rendergraph.Material this
// backend creates. Unlike vkrec there is no descriptor-pool ring: bind
// groups are built fresh per draw from bindGroupLayouts (see execute.go),
// matching the pack's own per-draw CreateBindGroup idiom. Exactly one of
// renderPipeline/computePipeline is valid, since WebGPU (unlike Vulkan's
// single VkPipeline handle) gives render and compute pipelines distinct
// ID types — selected by whether the material declares a compute stage.
type materialHandle struct {
	isCompute        bool
	renderPipeline   core.RenderPipelineID
	computePipeline  core.ComputePipelineID
	pipelineLayout   core.PipelineLayoutID
	bindGroupLayouts []core.BindGroupLayoutID
	shaderModules    []core.ShaderModuleID
}

func (b *Backend) CreateMaterial(desc rendergraph.MaterialDescriptor) (*rendergraph.Material, error) {
	bindGroupLayouts := make([]core.BindGroupLayoutID, 0, len(desc.BindingLayouts))
	for _, layout := range desc.BindingLayouts {
		entries := make([]gputypes.BindGroupLayoutEntry, len(layout.Entries))
		for i, entry := range layout.Entries {
			entries[i] = toGpuBindGroupLayoutEntry(entry)
		}
		bgl, err := core.CreateBindGroupLayout(b.device, &gputypes.BindGroupLayoutDescriptor{
			Label:   desc.Label,
			Entries: entries,
		})
		if err != nil {
			releaseBindGroupLayouts(bindGroupLayouts)
			return nil, fmtErr("create bind group layout", err)
		}
		bindGroupLayouts = append(bindGroupLayouts, bgl)
	}

	pipelineLayout, err := core.CreatePipelineLayout(b.device, &gputypes.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		releaseBindGroupLayouts(bindGroupLayouts)
		return nil, fmtErr("create pipeline layout", err)
	}

	shaderModules := make([]core.ShaderModuleID, 0, len(desc.Stages))
	var vertexStage, fragmentStage, computeStage *rendergraph.ShaderStage
	for i := range desc.Stages {
		stage := &desc.Stages[i]
		module, err := core.CreateShaderModule(b.device, stage.Code)
		if err != nil {
			releaseShaderModules(shaderModules)
			releasePipelineLayout(pipelineLayout, bindGroupLayouts)
			return nil, fmtErr("compile shader stage", err)
		}
		shaderModules = append(shaderModules, module)
		switch {
		case stage.Stage&rendergraph.VisibilityCompute != 0 && computeStage == nil:
			computeStage = stage
		case stage.Stage&rendergraph.VisibilityVertex != 0 && vertexStage == nil:
			vertexStage = stage
		case stage.Stage&rendergraph.VisibilityFragment != 0 && fragmentStage == nil:
			fragmentStage = stage
		}
	}

	if computeStage != nil {
		pipeline, err := core.CreateComputePipeline(b.device, &gputypes.ComputePipelineDescriptor{
			Label:  desc.Label,
			Layout: pipelineLayout,
			Compute: gputypes.ProgrammableStageDescriptor{
				Module:     shaderModules[stageIndex(desc.Stages, computeStage)],
				EntryPoint: computeStage.EntryPoint,
			},
		})
		if err != nil {
			releaseShaderModules(shaderModules)
			releasePipelineLayout(pipelineLayout, bindGroupLayouts)
			return nil, fmtErr("create compute pipeline", err)
		}
		handle := &materialHandle{
			isCompute:        true,
			computePipeline:  pipeline,
			pipelineLayout:   pipelineLayout,
			bindGroupLayouts: bindGroupLayouts,
			shaderModules:    shaderModules,
		}
		return rendergraph.NewMaterial(b.destructor, desc, handle, func() {
			core.ComputePipelineDrop(pipeline)
			releaseShaderModules(shaderModules)
			releasePipelineLayout(pipelineLayout, bindGroupLayouts)
		}), nil
	}

	colorTargets := make([]gputypes.ColorTargetState, len(desc.ColorTargetFormats))
	for i, f := range desc.ColorTargetFormats {
		target := gputypes.ColorTargetState{Format: toGpuTextureFormat(f), WriteMask: gputypes.ColorWriteMaskAll}
		if desc.Blend.Enabled {
			blend := gputypes.BlendStatePremultiplied()
			target.Blend = &blend
		}
		colorTargets[i] = target
	}

	renderDesc := &gputypes.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: gputypes.VertexState{
			Buffers: toGpuVertexBufferLayout(desc.VertexLayout),
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	}
	if vertexStage != nil {
		renderDesc.Vertex.Module = shaderModules[stageIndex(desc.Stages, vertexStage)]
		renderDesc.Vertex.EntryPoint = vertexStage.EntryPoint
	}
	if fragmentStage != nil {
		renderDesc.Fragment = &gputypes.FragmentState{
			Module:     shaderModules[stageIndex(desc.Stages, fragmentStage)],
			EntryPoint: fragmentStage.EntryPoint,
			Targets:    colorTargets,
		}
	}
	if desc.DepthFormat != nil {
		renderDesc.DepthStencil = &gputypes.DepthStencilState{
			Format:            toGpuTextureFormat(*desc.DepthFormat),
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
		}
	}

	pipeline, err := core.CreateRenderPipeline(b.device, renderDesc)
	if err != nil {
		releaseShaderModules(shaderModules)
		releasePipelineLayout(pipelineLayout, bindGroupLayouts)
		return nil, fmtErr("create render pipeline", err)
	}

	handle := &materialHandle{
		renderPipeline:   pipeline,
		pipelineLayout:   pipelineLayout,
		bindGroupLayouts: bindGroupLayouts,
		shaderModules:    shaderModules,
	}
	return rendergraph.NewMaterial(b.destructor, desc, handle, func() {
		core.RenderPipelineDrop(pipeline)
		releaseShaderModules(shaderModules)
		releasePipelineLayout(pipelineLayout, bindGroupLayouts)
	}), nil
}

func (b *Backend) CreateMesh(desc rendergraph.MeshDescriptor) (*rendergraph.Mesh, error) {
	return rendergraph.NewMesh(b.destructor, desc, func() {}), nil
}

func stageIndex(stages []rendergraph.ShaderStage, target *rendergraph.ShaderStage) int {
	for i := range stages {
		if &stages[i] == target {
			return i
		}
	}
	return 0
}

func releaseBindGroupLayouts(layouts []core.BindGroupLayoutID) {
	for _, l := range layouts {
		core.BindGroupLayoutDrop(l)
	}
}

func releaseShaderModules(modules []core.ShaderModuleID) {
	for _, m := range modules {
		core.ShaderModuleDrop(m)
	}
}

func releasePipelineLayout(layout core.PipelineLayoutID, bindGroupLayouts []core.BindGroupLayoutID) {
	core.PipelineLayoutDrop(layout)
	releaseBindGroupLayouts(bindGroupLayouts)
}

func toGpuBindGroupLayoutEntry(entry rendergraph.BindingLayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{
		Binding:    entry.Binding,
		Visibility: toGpuShaderStages(entry.Visibility),
	}
	switch entry.Type {
	case rendergraph.BindingUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case rendergraph.BindingStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case rendergraph.BindingSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case rendergraph.BindingTexture, rendergraph.BindingTextureCube, rendergraph.BindingTexture2DArray:
		out.Texture = &gputypes.TextureBindingLayout{SampleType: gputypes.TextureSampleTypeFloat}
	case rendergraph.BindingCombinedTextureSampler:
		out.Texture = &gputypes.TextureBindingLayout{SampleType: gputypes.TextureSampleTypeFloat}
	}
	return out
}

func toGpuShaderStages(v rendergraph.ShaderVisibility) gputypes.ShaderStage {
	var out gputypes.ShaderStage
	if v&rendergraph.VisibilityVertex != 0 {
		out |= gputypes.ShaderStageVertex
	}
	if v&rendergraph.VisibilityFragment != 0 {
		out |= gputypes.ShaderStageFragment
	}
	if v&rendergraph.VisibilityCompute != 0 {
		out |= gputypes.ShaderStageCompute
	}
	return out
}

func toGpuVertexBufferLayout(layout *rendergraph.VertexLayout) []gputypes.VertexBufferLayout {
	if layout == nil {
		return nil
	}
	attrsByBuffer := make([][]gputypes.VertexAttribute, len(layout.Buffers))
	for i, a := range layout.Attributes {
		attrsByBuffer[a.BufferIndex] = append(attrsByBuffer[a.BufferIndex], gputypes.VertexAttribute{
			Format:         toGpuVertexFormat(a.Format),
			Offset:         uint64(a.ByteOffset),
			ShaderLocation: uint32(i),
		})
	}
	out := make([]gputypes.VertexBufferLayout, len(layout.Buffers))
	for i, buf := range layout.Buffers {
		out[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(buf.Stride),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  attrsByBuffer[i],
		}
	}
	return out
}

func toGpuVertexFormat(f rendergraph.Format) gputypes.VertexFormat {
	switch f {
	case rendergraph.FormatRg8Unorm:
		return gputypes.VertexFormatFloat32x2
	case rendergraph.FormatRgba16Float:
		return gputypes.VertexFormatFloat32x4
	default:
		return gputypes.VertexFormatFloat32x4
	}
}
