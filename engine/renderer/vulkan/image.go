package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

type ImageConfig struct {
	Type        vk.ImageType
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	Format      vk.Format
	Tiling      vk.ImageTiling
	Usage       vk.ImageUsageFlags
	MemoryUsage MemoryUsage
	Aspect      vk.ImageAspectFlags
	CreateView  bool
}

type VulkanImage struct {
	context *VulkanContext

	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView

	Format    vk.Format
	Extent    vk.Extent3D
	MipLevels uint32
	Aspect    vk.ImageAspectFlags
	Layout    vk.ImageLayout
}

// CreateImage allocates a device image and optionally a view covering every
// mip level.
func CreateImage(context *VulkanContext, cfg ImageConfig) (*VulkanImage, error) {
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, errors.Newf("image extent %dx%d is empty", cfg.Width, cfg.Height)
	}
	if cfg.Depth == 0 {
		cfg.Depth = 1
	}
	if cfg.MipLevels == 0 {
		cfg.MipLevels = 1
	}
	if cfg.Aspect == 0 {
		cfg.Aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}

	img := &VulkanImage{
		context:   context,
		Format:    cfg.Format,
		Extent:    vk.Extent3D{Width: cfg.Width, Height: cfg.Height, Depth: cfg.Depth},
		MipLevels: cfg.MipLevels,
		Aspect:    cfg.Aspect,
		Layout:    vk.ImageLayoutUndefined,
	}

	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     cfg.Type,
		Format:        cfg.Format,
		Extent:        img.Extent,
		MipLevels:     cfg.MipLevels,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        cfg.Tiling,
		Usage:         cfg.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageInfo, context.Allocator, &img.Handle); res != vk.Success {
		err := errors.Newf("vkCreateImage failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, img.Handle, &requirements)
	requirements.Deref()

	memory, err := allocateMemory(context, requirements, cfg.MemoryUsage)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.Memory = memory

	if res := vk.BindImageMemory(context.Device.LogicalDevice, img.Handle, img.Memory, 0); res != vk.Success {
		img.Destroy()
		err := errors.Newf("vkBindImageMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	if cfg.CreateView {
		if err := img.CreateView(); err != nil {
			img.Destroy()
			return nil, err
		}
	}
	return img, nil
}

func (img *VulkanImage) CreateView() error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   img.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: img.Aspect,
			LevelCount: img.MipLevels,
			LayerCount: 1,
		},
	}
	if res := vk.CreateImageView(img.context.Device.LogicalDevice, &viewInfo, img.context.Allocator, &img.View); res != vk.Success {
		err := errors.Newf("vkCreateImageView failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (img *VulkanImage) DescriptorInfo(sampler vk.Sampler) vk.DescriptorImageInfo {
	return vk.DescriptorImageInfo{
		Sampler:     sampler,
		ImageView:   img.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
}

// Transition records a layout change of every mip level and remembers the
// new layout.
func (img *VulkanImage) Transition(cmd vk.CommandBuffer, newLayout vk.ImageLayout) {
	TransitionImageLayout(cmd, img.Handle, img.Aspect, img.Layout, newLayout, 0, img.MipLevels)
	img.Layout = newLayout
}

func (img *VulkanImage) Destroy() {
	device := img.context.Device.LogicalDevice
	if img.View != vk.NullImageView {
		vk.DestroyImageView(device, img.View, img.context.Allocator)
		img.View = vk.NullImageView
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, img.Memory, img.context.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(device, img.Handle, img.context.Allocator)
		img.Handle = vk.NullImage
	}
}

// layoutSync is the access mask and stage that must complete before an
// image leaves layout, or that wait on an image entering it.
func layoutSync(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case vk.ImageLayoutUndefined:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageComputeShaderBit)
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case vk.ImageLayoutGeneral:
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit)
	case vk.ImageLayoutPresentSrc:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	default:
		return vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	}
}

// TransitionImageLayout records a pipeline barrier moving levelCount mip
// levels starting at baseMip from oldLayout to newLayout.
func TransitionImageLayout(cmd vk.CommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, oldLayout, newLayout vk.ImageLayout, baseMip, levelCount uint32) {
	srcAccess, srcStage := layoutSync(oldLayout)
	dstAccess, dstStage := layoutSync(newLayout)

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:   aspect,
			BaseMipLevel: baseMip,
			LevelCount:   levelCount,
			LayerCount:   1,
		},
	}
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
