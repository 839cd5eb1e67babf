package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

type Framebuffer struct {
	context *VulkanContext

	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	RenderPass  *RenderPass
	Width       uint32
	Height      uint32
}

func NewFramebuffer(context *VulkanContext, renderPass *RenderPass, width, height uint32, attachments ...vk.ImageView) (*Framebuffer, error) {
	fb := &Framebuffer{
		context:     context,
		Attachments: append([]vk.ImageView(nil), attachments...),
		RenderPass:  renderPass,
		Width:       width,
		Height:      height,
	}

	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass.Handle,
		AttachmentCount: uint32(len(fb.Attachments)),
		PAttachments:    fb.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	if res := vk.CreateFramebuffer(context.Device.LogicalDevice, &info, context.Allocator, &fb.Handle); res != vk.Success {
		err := errors.Newf("vkCreateFramebuffer failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return fb, nil
}

// SwapchainFramebuffers creates one framebuffer per swapchain image. depth
// may be nil when the render pass has no depth attachment.
func SwapchainFramebuffers(context *VulkanContext, renderPass *RenderPass, sc *Swapchain, depth *VulkanImage) ([]*Framebuffer, error) {
	framebuffers := make([]*Framebuffer, 0, len(sc.Views))
	for _, view := range sc.Views {
		attachments := []vk.ImageView{view}
		if depth != nil {
			attachments = append(attachments, depth.View)
		}
		fb, err := NewFramebuffer(context, renderPass, sc.Extent.Width, sc.Extent.Height, attachments...)
		if err != nil {
			DestroyFramebuffers(framebuffers)
			return nil, err
		}
		framebuffers = append(framebuffers, fb)
	}
	return framebuffers, nil
}

func DestroyFramebuffers(framebuffers []*Framebuffer) {
	for _, fb := range framebuffers {
		fb.Destroy()
	}
}

func (fb *Framebuffer) Destroy() {
	if fb.Handle != vk.NullFramebuffer {
		vk.DestroyFramebuffer(fb.context.Device.LogicalDevice, fb.Handle, fb.context.Allocator)
		fb.Handle = vk.NullFramebuffer
	}
	fb.Attachments = nil
	fb.RenderPass = nil
}
