package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// Frame is handed to the application between BeginFrame and EndFrame. The
// command buffer is recording inside the main render pass.
type Frame struct {
	Slot        *FrameSlot
	ImageIndex  uint32
	Framebuffer *Framebuffer
	Extent      vk.Extent2D
}

func (f *Frame) CommandBuffer() vk.CommandBuffer {
	return f.Slot.CommandBuffer()
}

// Renderer drives the swapchain and the frame ring for one window and owns
// the main render pass with its depth buffer and framebuffers.
type Renderer struct {
	context *VulkanContext

	Swapchain  *Swapchain
	RenderPass *RenderPass
	Handler    *FrameHandler

	Layouts     *DescriptorLayoutCache
	Descriptors *DescriptorAllocator

	frames       *FrameRing
	depth        *VulkanImage
	framebuffers []*Framebuffer

	sizeGeneration     uint64
	lastSizeGeneration uint64
}

func NewRenderer(context *VulkanContext) (*Renderer, error) {
	cfg := context.Config()
	r := &Renderer{
		context: context,
		Handler: NewFrameHandler(cfg.Renderer.FrameOverlap),
		Layouts: NewDescriptorLayoutCache(context),
		Descriptors: NewDescriptorAllocator(context, DescriptorAllocatorConfig{
			SetsPerPool: cfg.Renderer.DescriptorSets,
		}),
	}

	var err error
	if r.Swapchain, err = PrepareSwapchain(context); err != nil {
		return nil, err
	}
	if err = r.Swapchain.Create(); err != nil {
		r.Shutdown()
		return nil, err
	}

	rpConfig := SwapchainRenderPassConfig(context, r.Swapchain)
	rpConfig.ClearColor = cfg.Renderer.ClearColor
	if r.RenderPass, err = NewRenderPass(context, rpConfig); err != nil {
		r.Shutdown()
		return nil, err
	}
	if err = r.createTargets(); err != nil {
		r.Shutdown()
		return nil, err
	}
	if r.frames, err = NewFrameRing(context, int(cfg.Renderer.FrameOverlap)); err != nil {
		r.Shutdown()
		return nil, err
	}

	core.LogInfo("Vulkan renderer initialized (%d swapchain images, %d frames in flight).", r.Swapchain.ImageCount, r.frames.Len())
	return r, nil
}

func (r *Renderer) Context() *VulkanContext {
	return r.context
}

// Resized records the window size generation. A change rebuilds the
// swapchain at the start of the next frame.
func (r *Renderer) Resized(generation uint64) {
	r.sizeGeneration = generation
}

func (r *Renderer) createTargets() error {
	extent := r.Swapchain.Extent
	var err error
	if r.RenderPass.HasDepth {
		r.depth, err = CreateImage(r.context, ImageConfig{
			Type:        vk.ImageType2d,
			Width:       extent.Width,
			Height:      extent.Height,
			Format:      r.context.Device.DepthFormat,
			Tiling:      vk.ImageTilingOptimal,
			Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
			MemoryUsage: MemoryUsageGpuOnly,
			Aspect:      vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			CreateView:  true,
		})
		if err != nil {
			return errors.Wrap(err, "depth attachment")
		}
	}
	r.framebuffers, err = SwapchainFramebuffers(r.context, r.RenderPass, r.Swapchain, r.depth)
	return err
}

func (r *Renderer) destroyTargets() {
	DestroyFramebuffers(r.framebuffers)
	r.framebuffers = nil
	if r.depth != nil {
		r.depth.Destroy()
		r.depth = nil
	}
}

// recreateSwapchain rebuilds the swapchain and everything sized after it.
// It returns core.ErrSwapchainBooting while the window has no area.
func (r *Renderer) recreateSwapchain() error {
	if err := r.context.WaitIdle(); err != nil {
		return err
	}
	r.destroyTargets()
	if err := r.Swapchain.Create(); err != nil {
		return err
	}
	r.lastSizeGeneration = r.sizeGeneration
	if err := r.createTargets(); err != nil {
		return err
	}
	core.LogInfo("Swapchain recreated at %dx%d.", r.Swapchain.Extent.Width, r.Swapchain.Extent.Height)
	return nil
}

// BeginFrame runs the early callbacks, waits for the next frame slot and
// begins the main render pass. A nil frame with a nil error means the
// swapchain was rebuilt or the window is minimized and nothing should be
// recorded this iteration.
func (r *Renderer) BeginFrame() (*Frame, error) {
	r.Handler.EarlyUpdate()

	if r.sizeGeneration != r.lastSizeGeneration {
		r.Swapchain.IsValid = false
	}

	slot, imageIndex, ok, err := r.frames.BeginFrame(r.Swapchain, r.Handler.CurrentFrameIndex())
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := r.recreateSwapchain(); err != nil && !errors.Is(err, core.ErrSwapchainBooting) {
			return nil, err
		}
		return nil, nil
	}

	frame := &Frame{
		Slot:        slot,
		ImageIndex:  imageIndex,
		Framebuffer: r.framebuffers[imageIndex],
		Extent:      r.Swapchain.Extent,
	}
	r.RenderPass.Begin(slot.Cmd, frame.Framebuffer)
	SetViewportScissor(slot.CommandBuffer(), frame.Extent)
	return frame, nil
}

// EndFrame closes the render pass, submits and presents the frame, then
// advances the frame handler.
func (r *Renderer) EndFrame(frame *Frame) error {
	r.RenderPass.End(frame.Slot.Cmd)
	presented, err := r.frames.EndFrame(frame.Slot, r.Swapchain, frame.ImageIndex)
	if err != nil {
		return err
	}
	if !presented {
		core.LogDebug("Swapchain out of date after present, rebuilding next frame.")
	}
	r.Handler.LateUpdate()
	return nil
}

// Shutdown waits for the device and destroys everything the renderer owns
// in reverse creation order. The context is left alive.
func (r *Renderer) Shutdown() {
	if r.context.Driver != nil {
		_ = r.context.WaitIdle()
	}
	if r.frames != nil {
		r.frames.Destroy()
		r.frames = nil
	}
	r.destroyTargets()
	if r.RenderPass != nil {
		r.RenderPass.Destroy()
		r.RenderPass = nil
	}
	if r.Swapchain != nil {
		r.Swapchain.Destroy()
		r.Swapchain = nil
	}
	r.Descriptors.DestroyPools()
	r.Layouts.DestroyLayouts()
}
