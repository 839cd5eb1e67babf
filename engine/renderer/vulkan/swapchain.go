package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/config"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// Swapchain owns the presentable images of a surface. Create may be called
// again after the swapchain was invalidated; the handle and views are
// replaced but the Swapchain value stays the same.
type Swapchain struct {
	context *VulkanContext

	Handle  vk.Swapchain
	Surface vk.Surface
	Images  []vk.Image
	Views   []vk.ImageView

	Format      vk.Format
	ColorSpace  vk.ColorSpace
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32

	// IsValid turns false when the surface no longer matches. The caller
	// must call Create before acquiring again.
	IsValid bool
}

// PrepareSwapchain picks image count, format and present mode for the
// context surface. No Vulkan swapchain exists until Create is called.
func PrepareSwapchain(context *VulkanContext) (*Swapchain, error) {
	caps, res := context.Driver.SurfaceCapabilities(context.Surface)
	if res != vk.Success {
		err := errors.Newf("failed to query surface capabilities: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	formats, res := context.Driver.SurfaceFormats(context.Surface)
	if res != vk.Success {
		err := errors.Newf("failed to query surface formats: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	if len(formats) == 0 {
		err := errors.New("surface reports no formats")
		core.LogError(err.Error())
		return nil, err
	}

	sc := &Swapchain{
		context:     context,
		Surface:     context.Surface,
		PresentMode: ConditionalOperator(config.Release, vk.PresentModeFifo, vk.PresentModeImmediate),
	}

	sc.ImageCount = caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && sc.ImageCount > caps.MaxImageCount {
		sc.ImageCount = caps.MaxImageCount
	}

	sc.Format, sc.ColorSpace = formats[0].Format, formats[0].ColorSpace
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			sc.Format, sc.ColorSpace = f.Format, f.ColorSpace
			break
		}
	}

	core.LogDebug("Swapchain prepared: %d images, format %d, present mode %d.", sc.ImageCount, sc.Format, sc.PresentMode)
	return sc, nil
}

// surfaceExtent is the extent the surface currently wants. A current width
// of 0xFFFFFFFF leaves the choice to the application, which then uses the
// framebuffer size clamped to the allowed range.
func (sc *Swapchain) surfaceExtent(caps vk.SurfaceCapabilities) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	var width, height uint32
	if sc.context.FramebufferSize != nil {
		width, height = sc.context.FramebufferSize()
	}
	return vk.Extent2D{
		Width:  Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func (sc *Swapchain) destroyViews() {
	for _, view := range sc.Views {
		sc.context.Driver.DestroyImageView(view)
	}
	sc.Views = nil
}

// Create builds the swapchain, or rebuilds it from the previous one. The
// swapchain stays invalid until every image view of the new chain exists.
func (sc *Swapchain) Create() error {
	old := sc.Handle
	sc.destroyViews()
	sc.IsValid = false

	caps, res := sc.context.Driver.SurfaceCapabilities(sc.Surface)
	if res != vk.Success {
		err := errors.Newf("failed to query surface capabilities: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	extent := sc.surfaceExtent(caps)
	if extent.Width == 0 || extent.Height == 0 {
		return errors.Wrap(core.ErrSwapchainBooting, "surface has a zero extent")
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.Surface,
		MinImageCount:    sc.ImageCount,
		ImageFormat:      sc.Format,
		ImageColorSpace:  sc.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      sc.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	handle, res := sc.context.Driver.CreateSwapchain(&info)
	if res != vk.Success {
		// old is retired either way; it is kept in Handle so Destroy releases it
		err := errors.Newf("failed to create swapchain: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	sc.Handle = handle
	sc.Images = nil
	if old != vk.NullSwapchain {
		sc.context.Driver.DestroySwapchain(old)
	}

	images, res := sc.context.Driver.SwapchainImages(handle)
	if res != vk.Success {
		err := errors.Newf("failed to get swapchain images: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	views := make([]vk.ImageView, 0, len(images))
	for _, image := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   sc.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		view, res := sc.context.Driver.CreateImageView(&viewInfo)
		if res != vk.Success {
			for _, created := range views {
				sc.context.Driver.DestroyImageView(created)
			}
			err := errors.Newf("failed to create swapchain image view: %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
		views = append(views, view)
	}

	sc.Images = images
	sc.Views = views
	sc.Extent = extent
	sc.IsValid = true

	core.LogInfo("Swapchain created: %dx%d with %d images.", sc.Extent.Width, sc.Extent.Height, len(sc.Images))
	return nil
}

// NextImage acquires the next presentable image and signals signal when it
// is ready. It reports false when the swapchain went out of date.
func (sc *Swapchain) NextImage(signal vk.Semaphore) (uint32, bool, error) {
	if sc.Handle == vk.NullSwapchain {
		return 0, false, core.ErrSwapchainNotCreated
	}

	index, res := sc.context.Driver.AcquireNextImage(sc.Handle, math.MaxUint64, signal, vk.NullFence)
	switch res {
	case vk.Success, vk.Suboptimal:
		return index, true, nil
	case vk.ErrorOutOfDate:
		sc.IsValid = false
		return 0, false, nil
	case vk.ErrorDeviceLost:
		return 0, false, errors.Wrap(core.ErrDeviceLost, "acquire swapchain image")
	default:
		err := errors.Newf("failed to acquire swapchain image: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return 0, false, err
	}
}

// Present queues image index for presentation after wait is signaled. The
// swapchain is invalidated when presentation reports a mismatch or the
// surface extent changed.
func (sc *Swapchain) Present(queue vk.Queue, wait vk.Semaphore, index uint32) (bool, error) {
	if sc.Handle == vk.NullSwapchain {
		return false, core.ErrSwapchainNotCreated
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{index},
	}
	res := sc.context.Driver.QueuePresent(queue, &presentInfo)
	switch res {
	case vk.Success:
	case vk.ErrorOutOfDate, vk.Suboptimal:
		sc.IsValid = false
		return false, nil
	case vk.ErrorDeviceLost:
		return false, errors.Wrap(core.ErrDeviceLost, "present swapchain image")
	default:
		err := errors.Newf("failed to present swapchain image: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return false, err
	}

	caps, res := sc.context.Driver.SurfaceCapabilities(sc.Surface)
	if res == vk.Success {
		extent := sc.surfaceExtent(caps)
		if extent.Width != sc.Extent.Width || extent.Height != sc.Extent.Height {
			sc.IsValid = false
			return false, nil
		}
	}
	return true, nil
}

// Destroy releases the views and the swapchain. Images belong to the
// swapchain and are not destroyed separately.
func (sc *Swapchain) Destroy() {
	if sc.Handle == vk.NullSwapchain {
		return
	}
	sc.destroyViews()
	sc.context.Driver.DestroySwapchain(sc.Handle)
	sc.Handle = vk.NullSwapchain
	sc.Images = nil
	sc.IsValid = false
}
