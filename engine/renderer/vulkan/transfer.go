package vulkan

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"golang.org/x/sync/errgroup"
)

func CopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, size vk.DeviceSize) {
	CopyBufferRegions(cmd, src, dst, []vk.BufferCopy{{Size: size}})
}

func CopyBufferRegions(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	if len(regions) == 0 {
		return
	}
	vk.CmdCopyBuffer(cmd, src, dst, uint32(len(regions)), regions)
}

func colorLayers(aspect vk.ImageAspectFlags) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask: aspect,
		LayerCount: 1,
	}
}

// CopyImage blits the color contents of src into dst, scaling between the
// two extents. src must be in TransferSrcOptimal and dst in TransferDstOptimal.
func CopyImage(cmd vk.CommandBuffer, src, dst vk.Image, srcExtent, dstExtent vk.Extent2D) {
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	region := vk.ImageBlit{
		SrcSubresource: colorLayers(aspect),
		SrcOffsets: [2]vk.Offset3D{
			{},
			{X: int32(srcExtent.Width), Y: int32(srcExtent.Height), Z: 1},
		},
		DstSubresource: colorLayers(aspect),
		DstOffsets: [2]vk.Offset3D{
			{},
			{X: int32(dstExtent.Width), Y: int32(dstExtent.Height), Z: 1},
		},
	}
	vk.CmdBlitImage(cmd,
		src, vk.ImageLayoutTransferSrcOptimal,
		dst, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{region}, vk.FilterLinear)
}

func CopyBufferToImage(cmd vk.CommandBuffer, src vk.Buffer, dst vk.Image, extent vk.Extent3D, aspect vk.ImageAspectFlags) {
	region := vk.BufferImageCopy{
		ImageSubresource: colorLayers(aspect),
		ImageExtent:      extent,
	}
	vk.CmdCopyBufferToImage(cmd, src, dst, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func CopyImageToBuffer(cmd vk.CommandBuffer, src vk.Image, dst vk.Buffer, extent vk.Extent3D, aspect vk.ImageAspectFlags) {
	region := vk.BufferImageCopy{
		ImageSubresource: colorLayers(aspect),
		ImageExtent:      extent,
	}
	vk.CmdCopyImageToBuffer(cmd, src, vk.ImageLayoutTransferSrcOptimal, dst, 1, []vk.BufferImageCopy{region})
}

// UploadBufferData copies data into dst through a host visible staging
// buffer and waits for the copy to finish.
func UploadBufferData(sc *SubmitContext, dst *Buffer, data []byte, timeout time.Duration) error {
	if uint64(len(data)) > uint64(dst.Size) {
		return errors.Newf("upload of %d bytes does not fit buffer of %d bytes", len(data), dst.Size)
	}
	staging, err := CreateBuffer(sc.context, uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), MemoryUsageCpuOnly)
	if err != nil {
		return errors.Wrap(err, "staging buffer")
	}
	defer staging.Destroy()
	if err := staging.Write(data, 0); err != nil {
		return err
	}

	return sc.Execute(timeout, func(cmd vk.CommandBuffer) error {
		CopyBuffer(cmd, staging.Handle, dst.Handle, vk.DeviceSize(len(data)))
		return nil
	})
}

// UploadImageData fills mip level 0 of dst with tightly packed texels and
// leaves the image ready for sampling.
func UploadImageData(sc *SubmitContext, dst *VulkanImage, data []byte, timeout time.Duration) error {
	staging, err := CreateBuffer(sc.context, uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), MemoryUsageCpuOnly)
	if err != nil {
		return errors.Wrap(err, "staging buffer")
	}
	defer staging.Destroy()
	if err := staging.Write(data, 0); err != nil {
		return err
	}

	return sc.Execute(timeout, func(cmd vk.CommandBuffer) error {
		dst.Transition(cmd, vk.ImageLayoutTransferDstOptimal)
		CopyBufferToImage(cmd, staging.Handle, dst.Handle, dst.Extent, dst.Aspect)
		dst.Transition(cmd, vk.ImageLayoutShaderReadOnlyOptimal)
		return nil
	})
}

// UploadJob records work on its own submit context.
type UploadJob func(ctx context.Context, sc *SubmitContext) error

// UploadBatch runs jobs concurrently, each on a fresh transfer submit
// context. Queue submissions are serialized per queue family. The first
// error cancels the context passed to the remaining jobs.
func UploadBatch(ctx context.Context, vc *VulkanContext, queueType QueueType, limit int, jobs ...UploadJob) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sc, err := NewSubmitContext(vc, queueType)
			if err != nil {
				return err
			}
			defer sc.Destroy()
			if err := job(gctx, sc); err != nil {
				return errors.Wrapf(err, "upload job %d", i)
			}
			return nil
		})
	}
	return g.Wait()
}
