package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// RenderPassConfig describes a single subpass pass with one color attachment
// and an optional depth attachment.
type RenderPassConfig struct {
	ColorFormat      vk.Format
	ColorFinalLayout vk.ImageLayout
	// DepthFormat FormatUndefined leaves out the depth attachment.
	DepthFormat vk.Format

	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
}

// SwapchainRenderPassConfig targets the swapchain images with the device
// depth format and a black clear color.
func SwapchainRenderPassConfig(context *VulkanContext, sc *Swapchain) RenderPassConfig {
	return RenderPassConfig{
		ColorFormat:      sc.Format,
		ColorFinalLayout: vk.ImageLayoutPresentSrc,
		DepthFormat:      context.Device.DepthFormat,
		ClearColor:       [4]float32{0, 0, 0, 1},
		ClearDepth:       1.0,
	}
}

type RenderPass struct {
	context *VulkanContext

	Handle   vk.RenderPass
	HasDepth bool

	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
}

func NewRenderPass(context *VulkanContext, cfg RenderPassConfig) (*RenderPass, error) {
	if cfg.ColorFinalLayout == vk.ImageLayoutUndefined {
		cfg.ColorFinalLayout = vk.ImageLayoutPresentSrc
	}
	rp := &RenderPass{
		context:      context,
		HasDepth:     cfg.DepthFormat != vk.FormatUndefined,
		ClearColor:   cfg.ClearColor,
		ClearDepth:   cfg.ClearDepth,
		ClearStencil: cfg.ClearStencil,
	}

	attachments := []vk.AttachmentDescription{{
		Format:         cfg.ColorFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    cfg.ColorFinalLayout,
	}}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
	}

	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	access := vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	if rp.HasDepth {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         cfg.DepthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		stages |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
		access |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		SrcAccessMask: 0,
		DstStageMask:  stages,
		DstAccessMask: access,
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &info, context.Allocator, &rp.Handle); res != vk.Success {
		err := errors.Newf("vkCreateRenderPass failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return rp, nil
}

// ClearValues returns the color clear value followed by depth/stencil when
// the pass has a depth attachment.
func (rp *RenderPass) ClearValues() []vk.ClearValue {
	values := []vk.ClearValue{ColorClearValue(rp.ClearColor[0], rp.ClearColor[1], rp.ClearColor[2], rp.ClearColor[3])}
	if rp.HasDepth {
		values = append(values, DepthClearValue(rp.ClearDepth, rp.ClearStencil))
	}
	return values
}

// Begin starts the pass over the whole framebuffer.
func (rp *RenderPass) Begin(cb *CommandBuffer, fb *Framebuffer) {
	clearValues := rp.ClearValues()
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.Handle,
		Framebuffer: fb.Handle,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cb.Handle, &beginInfo, vk.SubpassContentsInline)
	cb.BeginRenderPass()
}

func (rp *RenderPass) End(cb *CommandBuffer) {
	vk.CmdEndRenderPass(cb.Handle)
	cb.EndRenderPass()
}

func (rp *RenderPass) Destroy() {
	if rp.Handle != vk.NullRenderPass {
		vk.DestroyRenderPass(rp.context.Device.LogicalDevice, rp.Handle, rp.context.Allocator)
		rp.Handle = vk.NullRenderPass
	}
}
