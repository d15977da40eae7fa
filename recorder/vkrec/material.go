package vkrec

import (
	"github.com/NOT-REAL-GAMES/forgecore/rendergraph"
	"github.com/NOT-REAL-GAMES/forgecore/vk"
)

// materialHandle is the Pipeline field of every *rendergraph.Material this
// backend creates: a graphics or compute pipeline built eagerly from the
// material's shader stages, vertex layout, and binding layouts, plus the
// descriptor set layouts and pipeline layout it was built against, which
// are destroyed together with it. recordDraw and recordComputePass bind only
// the pipeline: no descriptor sets are allocated, written or bound for a
// material instance's binding groups. Vulkan represents both pipeline kinds with the single opaque
// vk.Pipeline handle type, but isCompute still records which bind point
// it's valid at — a graphics pipeline bound at VK_PIPELINE_BIND_POINT_COMPUTE
// is driver-undefined even though the Go type system won't catch it.
type materialHandle struct {
	pipeline       vk.Pipeline
	isCompute      bool
	pipelineLayout vk.PipelineLayout
	setLayouts     []vk.DescriptorSetLayout
	shaderModules  []vk.ShaderModule
}

func (b *Backend) CreateMaterial(desc rendergraph.MaterialDescriptor) (*rendergraph.Material, error) {
	setLayouts := make([]vk.DescriptorSetLayout, 0, len(desc.BindingLayouts))
	for _, layout := range desc.BindingLayouts {
		bindings := make([]vk.DescriptorSetLayoutBinding, len(layout.Entries))
		for i, entry := range layout.Entries {
			bindings[i] = vk.DescriptorSetLayoutBinding{
				Binding:         entry.Binding,
				DescriptorType:  toVkDescriptorType(entry.Type),
				DescriptorCount: 1,
				StageFlags:      toVkShaderStages(entry.Visibility),
			}
		}
		setLayout, err := b.device.CreateDescriptorSetLayout(&vk.DescriptorSetLayoutCreateInfo{Bindings: bindings})
		if err != nil {
			releaseSetLayouts(b, setLayouts)
			return nil, fmtErr("create descriptor set layout", err)
		}
		setLayouts = append(setLayouts, setLayout)
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&vk.PipelineLayoutCreateInfo{SetLayouts: setLayouts})
	if err != nil {
		releaseSetLayouts(b, setLayouts)
		return nil, fmtErr("create pipeline layout", err)
	}

	shaderModules := make([]vk.ShaderModule, 0, len(desc.Stages))
	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(desc.Stages))
	for _, stage := range desc.Stages {
		module, err := b.device.CreateShaderModule(&vk.ShaderModuleCreateInfo{Code: stage.Code})
		if err != nil {
			releaseShaderModules(b, shaderModules)
			releasePipelineLayout(b, pipelineLayout, setLayouts)
			return nil, fmtErr("compile shader stage", err)
		}
		shaderModules = append(shaderModules, module)
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			Stage:  toVkShaderStages(stage.Stage),
			Module: module,
			Name:   stage.EntryPoint,
		})
	}

	var computeStageIndex = -1
	for i, stage := range desc.Stages {
		if stage.Stage&rendergraph.VisibilityCompute != 0 {
			computeStageIndex = i
			break
		}
	}
	if computeStageIndex >= 0 {
		pipeline, err := b.device.CreateComputePipeline(&vk.ComputePipelineCreateInfo{
			Stage:  stages[computeStageIndex],
			Layout: pipelineLayout,
		})
		if err != nil {
			releaseShaderModules(b, shaderModules)
			releasePipelineLayout(b, pipelineLayout, setLayouts)
			return nil, fmtErr("create compute pipeline", err)
		}
		handle := &materialHandle{
			pipeline:       pipeline,
			isCompute:      true,
			pipelineLayout: pipelineLayout,
			setLayouts:     setLayouts,
			shaderModules:  shaderModules,
		}
		return rendergraph.NewMaterial(b.destructor, desc, handle, func() {
			b.device.DestroyPipeline(pipeline)
			releaseShaderModules(b, shaderModules)
			releasePipelineLayout(b, pipelineLayout, setLayouts)
		}), nil
	}

	vertexInput := toVkVertexInput(desc.VertexLayout)

	colorAttachmentFormats := make([]vk.Format, len(desc.ColorTargetFormats))
	colorBlendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.ColorTargetFormats))
	for i, f := range desc.ColorTargetFormats {
		colorAttachmentFormats[i] = toVkFormat(f)
		colorBlendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:    desc.Blend.Enabled,
			ColorWriteMask: vk.COLOR_COMPONENT_ALL,
		}
	}

	renderingInfo := &vk.PipelineRenderingCreateInfo{ColorAttachmentFormats: colorAttachmentFormats}
	if desc.DepthFormat != nil {
		renderingInfo.DepthAttachmentFormat = toVkFormat(*desc.DepthFormat)
	}

	pipeline, err := b.device.CreateGraphicsPipeline(&vk.GraphicsPipelineCreateInfo{
		Stages:             stages,
		VertexInputState:   vertexInput,
		InputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{Topology: vk.PRIMITIVE_TOPOLOGY_TRIANGLE_LIST},
		ViewportState:      &vk.PipelineViewportStateCreateInfo{Viewports: []vk.Viewport{{}}, Scissors: []vk.Rect2D{{}}},
		RasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			PolygonMode: toVkPolygonMode(desc.PolygonMode),
			CullMode:    vk.CULL_MODE_BACK_BIT,
			FrontFace:   vk.FRONT_FACE_COUNTER_CLOCKWISE,
			LineWidth:   1,
		},
		MultisampleState: &vk.PipelineMultisampleStateCreateInfo{RasterizationSamples: vk.SAMPLE_COUNT_1_BIT},
		ColorBlendState:  &vk.PipelineColorBlendStateCreateInfo{Attachments: colorBlendAttachments},
		DynamicState:     &vk.PipelineDynamicStateCreateInfo{DynamicStates: []vk.DynamicState{vk.DYNAMIC_STATE_VIEWPORT, vk.DYNAMIC_STATE_SCISSOR}},
		Layout:           pipelineLayout,
		RenderingInfo:    renderingInfo,
	})
	if err != nil {
		releaseShaderModules(b, shaderModules)
		releasePipelineLayout(b, pipelineLayout, setLayouts)
		return nil, fmtErr("create graphics pipeline", err)
	}

	handle := &materialHandle{
		pipeline:       pipeline,
		pipelineLayout: pipelineLayout,
		setLayouts:     setLayouts,
		shaderModules:  shaderModules,
	}
	return rendergraph.NewMaterial(b.destructor, desc, handle, func() {
		b.device.DestroyPipeline(pipeline)
		releaseShaderModules(b, shaderModules)
		releasePipelineLayout(b, pipelineLayout, setLayouts)
	}), nil
}

func (b *Backend) CreateMesh(desc rendergraph.MeshDescriptor) (*rendergraph.Mesh, error) {
	return rendergraph.NewMesh(b.destructor, desc, func() {}), nil
}

func releaseSetLayouts(b *Backend, layouts []vk.DescriptorSetLayout) {
	for _, l := range layouts {
		b.device.DestroyDescriptorSetLayout(l)
	}
}

func releaseShaderModules(b *Backend, modules []vk.ShaderModule) {
	for _, m := range modules {
		b.device.DestroyShaderModule(m)
	}
}

func releasePipelineLayout(b *Backend, layout vk.PipelineLayout, setLayouts []vk.DescriptorSetLayout) {
	b.device.DestroyPipelineLayout(layout)
	releaseSetLayouts(b, setLayouts)
}

func toVkDescriptorType(t rendergraph.BindingType) vk.DescriptorType {
	switch t {
	case rendergraph.BindingUniformBuffer:
		return vk.DESCRIPTOR_TYPE_UNIFORM_BUFFER
	case rendergraph.BindingStorageBuffer:
		return vk.DESCRIPTOR_TYPE_STORAGE_BUFFER
	case rendergraph.BindingSampler:
		return vk.DESCRIPTOR_TYPE_SAMPLER
	case rendergraph.BindingTexture, rendergraph.BindingTextureCube, rendergraph.BindingTexture2DArray:
		return vk.DESCRIPTOR_TYPE_SAMPLED_IMAGE
	case rendergraph.BindingCombinedTextureSampler:
		return vk.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER
	default:
		return vk.DESCRIPTOR_TYPE_UNIFORM_BUFFER
	}
}

func toVkShaderStages(v rendergraph.ShaderVisibility) vk.ShaderStageFlags {
	var out vk.ShaderStageFlags
	if v&rendergraph.VisibilityVertex != 0 {
		out |= vk.SHADER_STAGE_VERTEX_BIT
	}
	if v&rendergraph.VisibilityFragment != 0 {
		out |= vk.SHADER_STAGE_FRAGMENT_BIT
	}
	if v&rendergraph.VisibilityCompute != 0 {
		out |= vk.SHADER_STAGE_COMPUTE_BIT
	}
	return out
}

func toVkPolygonMode(p rendergraph.PolygonMode) vk.PolygonMode {
	switch p {
	case rendergraph.PolygonModeLine:
		return vk.POLYGON_MODE_LINE
	case rendergraph.PolygonModePoint:
		return vk.POLYGON_MODE_POINT
	default:
		return vk.POLYGON_MODE_FILL
	}
}

func toVkVertexInput(layout *rendergraph.VertexLayout) *vk.PipelineVertexInputStateCreateInfo {
	if layout == nil {
		return &vk.PipelineVertexInputStateCreateInfo{}
	}
	bindings := make([]vk.VertexInputBindingDescription, len(layout.Buffers))
	for i, buf := range layout.Buffers {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   uint32(i),
			Stride:    buf.Stride,
			InputRate: vk.VERTEX_INPUT_RATE_VERTEX,
		}
	}
	attrs := make([]vk.VertexInputAttributeDescription, len(layout.Attributes))
	for i, a := range layout.Attributes {
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  a.BufferIndex,
			Format:   toVkFormat(a.Format),
			Offset:   a.ByteOffset,
		}
	}
	return &vk.PipelineVertexInputStateCreateInfo{Bindings: bindings, Attributes: attrs}
}
