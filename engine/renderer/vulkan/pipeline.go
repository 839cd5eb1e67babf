package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// maxPushConstantRanges follows from the 128 bytes guaranteed for push
// constants at 4 byte granularity.
const maxPushConstantRanges = 32

// Pipeline holds a pipeline and the layout it was built with.
type Pipeline struct {
	context *VulkanContext

	Handle    vk.Pipeline
	Layout    vk.PipelineLayout
	BindPoint vk.PipelineBindPoint
}

// PipelineBuilder is implemented by the compute and graphics builders. Build
// may be called repeatedly; each call creates a new pipeline and layout.
type PipelineBuilder interface {
	Reset()
	Build() (*Pipeline, error)
}

func (p *Pipeline) Bind(cmd vk.CommandBuffer) {
	vk.CmdBindPipeline(cmd, p.BindPoint, p.Handle)
}

func (p *Pipeline) BindDescriptorSets(cmd vk.CommandBuffer, firstSet uint32, sets ...vk.DescriptorSet) {
	if len(sets) == 0 {
		return
	}
	vk.CmdBindDescriptorSets(cmd, p.BindPoint, p.Layout, firstSet, uint32(len(sets)), sets, 0, nil)
}

func (p *Pipeline) PushConstants(cmd vk.CommandBuffer, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(cmd, p.Layout, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (p *Pipeline) Destroy() {
	device := p.context.Device.LogicalDevice
	_ = p.context.lockPool.SafeCall(PipelineManagement, func() error {
		if p.Handle != vk.NullPipeline {
			vk.DestroyPipeline(device, p.Handle, p.context.Allocator)
			p.Handle = vk.NullPipeline
		}
		if p.Layout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(device, p.Layout, p.context.Allocator)
			p.Layout = vk.NullPipelineLayout
		}
		return nil
	})
}

func createPipelineLayout(context *VulkanContext, layouts []vk.DescriptorSetLayout, pushConstants []vk.PushConstantRange) (vk.PipelineLayout, error) {
	if len(pushConstants) > maxPushConstantRanges {
		return vk.NullPipelineLayout, errors.Newf("cannot have more than %d push constant ranges, got %d", maxPushConstantRanges, len(pushConstants))
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(pushConstants)),
		PPushConstantRanges:    pushConstants,
	}
	var layout vk.PipelineLayout
	err := context.lockPool.SafeCall(PipelineManagement, func() error {
		if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &info, context.Allocator, &layout); !VulkanResultIsSuccess(res) {
			return errors.Newf("vkCreatePipelineLayout failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return vk.NullPipelineLayout, err
	}
	return layout, nil
}

type ComputePipelineBuilder struct {
	context *VulkanContext

	shader            vk.PipelineShaderStageCreateInfo
	hasShader         bool
	descriptorLayouts []vk.DescriptorSetLayout
	pushConstants     []vk.PushConstantRange
}

func NewComputePipelineBuilder(context *VulkanContext) *ComputePipelineBuilder {
	b := &ComputePipelineBuilder{context: context}
	b.Reset()
	return b
}

func (b *ComputePipelineBuilder) Reset() {
	b.shader = vk.PipelineShaderStageCreateInfo{}
	b.hasShader = false
	b.descriptorLayouts = nil
	b.pushConstants = nil
}

// SetShader uses module as the compute stage. An empty entry means "main".
func (b *ComputePipelineBuilder) SetShader(module vk.ShaderModule, entry string) *ComputePipelineBuilder {
	b.shader = shaderStageInfo(module, vk.ShaderStageComputeBit, entry)
	b.hasShader = true
	return b
}

func (b *ComputePipelineBuilder) AddDescriptorLayout(layout vk.DescriptorSetLayout) *ComputePipelineBuilder {
	b.descriptorLayouts = append(b.descriptorLayouts, layout)
	return b
}

func (b *ComputePipelineBuilder) AddPushConstant(pushConstant vk.PushConstantRange) *ComputePipelineBuilder {
	b.pushConstants = append(b.pushConstants, pushConstant)
	return b
}

func (b *ComputePipelineBuilder) DescriptorLayouts() []vk.DescriptorSetLayout {
	return append([]vk.DescriptorSetLayout(nil), b.descriptorLayouts...)
}

func (b *ComputePipelineBuilder) PushConstants() []vk.PushConstantRange {
	return append([]vk.PushConstantRange(nil), b.pushConstants...)
}

func (b *ComputePipelineBuilder) Build() (*Pipeline, error) {
	if !b.hasShader {
		return nil, errors.Wrap(core.ErrBuilderIncomplete, "compute pipeline has no shader")
	}
	layout, err := createPipelineLayout(b.context, b.descriptorLayouts, b.pushConstants)
	if err != nil {
		return nil, err
	}
	pipeline := &Pipeline{
		context:   b.context,
		Layout:    layout,
		BindPoint: vk.PipelineBindPointCompute,
	}

	info := vk.ComputePipelineCreateInfo{
		SType:              vk.StructureTypeComputePipelineCreateInfo,
		Stage:              b.shader,
		Layout:             layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	err = b.context.lockPool.SafeCall(PipelineManagement, func() error {
		res := vk.CreateComputePipelines(b.context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.ComputePipelineCreateInfo{info}, b.context.Allocator, pipelines)
		if !VulkanResultIsSuccess(res) {
			return errors.Newf("vkCreateComputePipelines failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		pipeline.Destroy()
		return nil, err
	}
	pipeline.Handle = pipelines[0]

	core.LogDebug("Compute pipeline created!")
	return pipeline, nil
}

// GraphicsPipelineBuilder collects fixed function state for a pipeline used
// inside a render pass. Viewport and scissor are dynamic by default.
type GraphicsPipelineBuilder struct {
	context *VulkanContext

	shaders           []vk.PipelineShaderStageCreateInfo
	descriptorLayouts []vk.DescriptorSetLayout
	pushConstants     []vk.PushConstantRange

	vertexBinding    vk.VertexInputBindingDescription
	vertexAttributes []vk.VertexInputAttributeDescription

	inputAssembly   vk.PipelineInputAssemblyStateCreateInfo
	rasterizer      vk.PipelineRasterizationStateCreateInfo
	multisample     vk.PipelineMultisampleStateCreateInfo
	depthStencil    vk.PipelineDepthStencilStateCreateInfo
	blendAttachment vk.PipelineColorBlendAttachmentState
	dynamicStates   []vk.DynamicState

	renderPass vk.RenderPass
	subpass    uint32
}

func NewGraphicsPipelineBuilder(context *VulkanContext) *GraphicsPipelineBuilder {
	b := &GraphicsPipelineBuilder{context: context}
	b.Reset()
	return b
}

// Reset restores triangle lists, no culling, filled polygons, one sample,
// depth and blending disabled and dynamic viewport and scissor.
func (b *GraphicsPipelineBuilder) Reset() {
	b.shaders = nil
	b.descriptorLayouts = nil
	b.pushConstants = nil
	b.vertexBinding = vk.VertexInputBindingDescription{}
	b.vertexAttributes = nil

	b.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	b.rasterizer = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}
	b.multisample = vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  vk.SampleCount1Bit,
		SampleShadingEnable:   vk.False,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}
	b.depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		DepthCompareOp:    vk.CompareOpLess,
		StencilTestEnable: vk.False,
		MinDepthBounds:    0.0,
		MaxDepthBounds:    1.0,
	}
	b.blendAttachment = vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	b.dynamicStates = []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	b.renderPass = vk.NullRenderPass
	b.subpass = 0
}

func (b *GraphicsPipelineBuilder) AddShader(module vk.ShaderModule, stage vk.ShaderStageFlagBits, entry string) *GraphicsPipelineBuilder {
	b.shaders = append(b.shaders, shaderStageInfo(module, stage, entry))
	return b
}

func (b *GraphicsPipelineBuilder) AddShaderModule(shader *ShaderModule) *GraphicsPipelineBuilder {
	b.shaders = append(b.shaders, shader.StageInfo())
	return b
}

func (b *GraphicsPipelineBuilder) ClearShaders() *GraphicsPipelineBuilder {
	b.shaders = nil
	return b
}

func (b *GraphicsPipelineBuilder) AddDescriptorLayout(layouts ...vk.DescriptorSetLayout) *GraphicsPipelineBuilder {
	b.descriptorLayouts = append(b.descriptorLayouts, layouts...)
	return b
}

func (b *GraphicsPipelineBuilder) ClearDescriptorLayouts() *GraphicsPipelineBuilder {
	b.descriptorLayouts = nil
	return b
}

func (b *GraphicsPipelineBuilder) AddPushConstant(ranges ...vk.PushConstantRange) *GraphicsPipelineBuilder {
	b.pushConstants = append(b.pushConstants, ranges...)
	return b
}

func (b *GraphicsPipelineBuilder) ClearPushConstants() *GraphicsPipelineBuilder {
	b.pushConstants = nil
	return b
}

func (b *GraphicsPipelineBuilder) SetVertexInputBinding(binding vk.VertexInputBindingDescription) *GraphicsPipelineBuilder {
	b.vertexBinding = binding
	return b
}

// SetVertexAttributes replaces the attribute list. Without attributes the
// pipeline has no vertex input and the binding is ignored.
func (b *GraphicsPipelineBuilder) SetVertexAttributes(attributes ...vk.VertexInputAttributeDescription) *GraphicsPipelineBuilder {
	b.vertexAttributes = append([]vk.VertexInputAttributeDescription(nil), attributes...)
	return b
}

func (b *GraphicsPipelineBuilder) SetInputAssembly(topology vk.PrimitiveTopology, primitiveRestart bool) *GraphicsPipelineBuilder {
	b.inputAssembly.Topology = topology
	b.inputAssembly.PrimitiveRestartEnable = vkBool(primitiveRestart)
	return b
}

func (b *GraphicsPipelineBuilder) SetCulling(cullMode vk.CullModeFlagBits, frontFace vk.FrontFace) *GraphicsPipelineBuilder {
	b.rasterizer.CullMode = vk.CullModeFlags(cullMode)
	b.rasterizer.FrontFace = frontFace
	return b
}

// SetDepthBias enables depth bias. All zero factors disable it again.
func (b *GraphicsPipelineBuilder) SetDepthBias(slope, constant, clamp float32) *GraphicsPipelineBuilder {
	b.rasterizer.DepthBiasEnable = vkBool(slope != 0 || constant != 0 || clamp != 0)
	b.rasterizer.DepthBiasSlopeFactor = slope
	b.rasterizer.DepthBiasConstantFactor = constant
	b.rasterizer.DepthBiasClamp = clamp
	return b
}

// SetPolygonMode needs fillModeNonSolid for anything but fill.
func (b *GraphicsPipelineBuilder) SetPolygonMode(mode vk.PolygonMode) *GraphicsPipelineBuilder {
	b.rasterizer.PolygonMode = mode
	return b
}

func (b *GraphicsPipelineBuilder) SetLineWidth(width float32) *GraphicsPipelineBuilder {
	b.rasterizer.LineWidth = width
	return b
}

func (b *GraphicsPipelineBuilder) SetMultisampleCount(samples vk.SampleCountFlagBits) *GraphicsPipelineBuilder {
	b.multisample.RasterizationSamples = samples
	return b
}

func (b *GraphicsPipelineBuilder) EnableSampleShading(enable bool, minSample float32) *GraphicsPipelineBuilder {
	b.multisample.SampleShadingEnable = vkBool(enable)
	b.multisample.MinSampleShading = minSample
	return b
}

func (b *GraphicsPipelineBuilder) EnableAlphaToOne(enable bool) *GraphicsPipelineBuilder {
	b.multisample.AlphaToOneEnable = vkBool(enable)
	return b
}

func (b *GraphicsPipelineBuilder) EnableAlphaToCoverage(enable bool) *GraphicsPipelineBuilder {
	b.multisample.AlphaToCoverageEnable = vkBool(enable)
	return b
}

func (b *GraphicsPipelineBuilder) EnableDepth(test, write bool, op vk.CompareOp) *GraphicsPipelineBuilder {
	b.depthStencil.DepthTestEnable = vkBool(test)
	b.depthStencil.DepthWriteEnable = vkBool(write)
	b.depthStencil.DepthCompareOp = op
	return b
}

func (b *GraphicsPipelineBuilder) EnableDepthBounds(enable bool, minDepth, maxDepth float32) *GraphicsPipelineBuilder {
	b.depthStencil.DepthBoundsTestEnable = vkBool(enable)
	b.depthStencil.MinDepthBounds = minDepth
	b.depthStencil.MaxDepthBounds = maxDepth
	return b
}

func (b *GraphicsPipelineBuilder) EnableStencil(enable bool, front, back vk.StencilOpState) *GraphicsPipelineBuilder {
	b.depthStencil.StencilTestEnable = vkBool(enable)
	b.depthStencil.Front = front
	b.depthStencil.Back = back
	return b
}

// EnableBlending uses the same factors and op for color and alpha.
func (b *GraphicsPipelineBuilder) EnableBlending(enable bool, src, dst vk.BlendFactor, op vk.BlendOp) *GraphicsPipelineBuilder {
	b.blendAttachment.BlendEnable = vkBool(enable)
	b.blendAttachment.SrcColorBlendFactor = src
	b.blendAttachment.DstColorBlendFactor = dst
	b.blendAttachment.ColorBlendOp = op
	b.blendAttachment.SrcAlphaBlendFactor = src
	b.blendAttachment.DstAlphaBlendFactor = dst
	b.blendAttachment.AlphaBlendOp = op
	return b
}

func (b *GraphicsPipelineBuilder) SetDynamicStates(states ...vk.DynamicState) *GraphicsPipelineBuilder {
	b.dynamicStates = append([]vk.DynamicState(nil), states...)
	return b
}

func (b *GraphicsPipelineBuilder) SetRenderPass(renderPass vk.RenderPass, subpass uint32) *GraphicsPipelineBuilder {
	b.renderPass = renderPass
	b.subpass = subpass
	return b
}

func (b *GraphicsPipelineBuilder) Stages() []vk.PipelineShaderStageCreateInfo {
	return append([]vk.PipelineShaderStageCreateInfo(nil), b.shaders...)
}

func (b *GraphicsPipelineBuilder) DescriptorLayouts() []vk.DescriptorSetLayout {
	return append([]vk.DescriptorSetLayout(nil), b.descriptorLayouts...)
}

func (b *GraphicsPipelineBuilder) PushConstants() []vk.PushConstantRange {
	return append([]vk.PushConstantRange(nil), b.pushConstants...)
}

func (b *GraphicsPipelineBuilder) InputAssembly() vk.PipelineInputAssemblyStateCreateInfo {
	return b.inputAssembly
}

func (b *GraphicsPipelineBuilder) Rasterization() vk.PipelineRasterizationStateCreateInfo {
	return b.rasterizer
}

func (b *GraphicsPipelineBuilder) Multisample() vk.PipelineMultisampleStateCreateInfo {
	return b.multisample
}

func (b *GraphicsPipelineBuilder) DepthStencil() vk.PipelineDepthStencilStateCreateInfo {
	return b.depthStencil
}

func (b *GraphicsPipelineBuilder) BlendAttachment() vk.PipelineColorBlendAttachmentState {
	return b.blendAttachment
}

func (b *GraphicsPipelineBuilder) DynamicStates() []vk.DynamicState {
	return append([]vk.DynamicState(nil), b.dynamicStates...)
}

func (b *GraphicsPipelineBuilder) Build() (*Pipeline, error) {
	if len(b.shaders) == 0 {
		return nil, errors.Wrap(core.ErrBuilderIncomplete, "graphics pipeline has no shader stages")
	}
	if b.renderPass == vk.NullRenderPass {
		return nil, errors.Wrap(core.ErrBuilderIncomplete, "graphics pipeline has no render pass")
	}

	layout, err := createPipelineLayout(b.context, b.descriptorLayouts, b.pushConstants)
	if err != nil {
		return nil, err
	}
	pipeline := &Pipeline{
		context:   b.context,
		Layout:    layout,
		BindPoint: vk.PipelineBindPointGraphics,
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if len(b.vertexAttributes) > 0 {
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{b.vertexBinding}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(b.vertexAttributes))
		vertexInput.PVertexAttributeDescriptions = b.vertexAttributes
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	inputAssembly := b.inputAssembly
	rasterizer := b.rasterizer
	multisample := b.multisample
	depthStencil := b.depthStencil

	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{b.blendAttachment},
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(b.dynamicStates)),
		PDynamicStates:    b.dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(b.shaders)),
		PStages:             b.shaders,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          b.renderPass,
		Subpass:             b.subpass,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	err = b.context.lockPool.SafeCall(PipelineManagement, func() error {
		res := vk.CreateGraphicsPipelines(b.context.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{info}, b.context.Allocator, pipelines)
		if !VulkanResultIsSuccess(res) {
			return errors.Newf("vkCreateGraphicsPipelines failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		pipeline.Destroy()
		return nil, err
	}
	pipeline.Handle = pipelines[0]

	core.LogDebug("Graphics pipeline created!")
	return pipeline, nil
}
