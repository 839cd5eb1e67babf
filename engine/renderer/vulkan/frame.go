package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// FrameSlot holds the resources of one in-flight frame. A slot is only
// touched while the CPU is at its frame index, and its command buffer is
// only re-recorded after RenderFence was signaled.
type FrameSlot struct {
	Index int

	RenderFence  *VulkanFence
	RenderReady  vk.Semaphore
	PresentReady vk.Semaphore

	Pool *CommandPool
	Cmd  *CommandBuffer
}

func (s *FrameSlot) CommandBuffer() vk.CommandBuffer {
	return s.Cmd.Handle
}

func (s *FrameSlot) destroy(context *VulkanContext) {
	if s.Cmd != nil {
		s.Cmd.Free()
	}
	if s.Pool != nil {
		s.Pool.Destroy()
	}
	DestroySemaphore(context, s.RenderReady)
	DestroySemaphore(context, s.PresentReady)
	if s.RenderFence != nil {
		s.RenderFence.Destroy()
	}
}

// FrameRing rotates the per-frame resources of the render loop.
type FrameRing struct {
	context *VulkanContext
	slots   []*FrameSlot
	timeout uint64
}

func NewFrameRing(context *VulkanContext, overlap int) (*FrameRing, error) {
	if overlap < 1 {
		return nil, errors.Wrapf(core.ErrInvalidConfig, "frame overlap %d", overlap)
	}
	ring := &FrameRing{
		context: context,
		timeout: uint64(context.cfg.Renderer.FenceTimeout().Nanoseconds()),
	}
	_, family := context.Queue(QueueGraphics)

	for i := 0; i < overlap; i++ {
		slot := &FrameSlot{Index: i}
		ring.slots = append(ring.slots, slot)

		var err error
		// signaled so the first wait on each slot passes
		if slot.RenderFence, err = NewFence(context, true); err != nil {
			ring.Destroy()
			return nil, err
		}
		if slot.RenderReady, err = NewSemaphore(context); err != nil {
			ring.Destroy()
			return nil, err
		}
		if slot.PresentReady, err = NewSemaphore(context); err != nil {
			ring.Destroy()
			return nil, err
		}
		if slot.Pool, err = NewCommandPool(context, family); err != nil {
			ring.Destroy()
			return nil, err
		}
		if slot.Cmd, err = slot.Pool.Allocate(true); err != nil {
			ring.Destroy()
			return nil, err
		}
	}
	core.LogDebug("Frame ring created with %d slots.", overlap)
	return ring, nil
}

func (r *FrameRing) Len() int {
	return len(r.slots)
}

func (r *FrameRing) Slot(frameIndex int) *FrameSlot {
	return r.slots[frameIndex%len(r.slots)]
}

// BeginFrame waits for the slot of frameIndex, acquires a swapchain image
// and starts recording. It returns false when the swapchain is invalid; the
// caller must recreate it and must not record or submit this iteration.
func (r *FrameRing) BeginFrame(sc *Swapchain, frameIndex int) (*FrameSlot, uint32, bool, error) {
	slot := r.Slot(frameIndex)

	if err := slot.RenderFence.Wait(r.timeout); err != nil {
		return nil, 0, false, errors.Wrapf(err, "frame slot %d", slot.Index)
	}
	if err := slot.RenderFence.Reset(); err != nil {
		return nil, 0, false, err
	}

	if !sc.IsValid {
		return slot, 0, false, r.signalSkipped(slot)
	}
	imageIndex, ok, err := sc.NextImage(slot.RenderReady)
	if err != nil {
		return nil, 0, false, err
	}
	if !ok {
		return slot, 0, false, r.signalSkipped(slot)
	}

	if err := slot.Cmd.Reset(false); err != nil {
		return nil, 0, false, err
	}
	if err := slot.Cmd.Begin(true, false, false); err != nil {
		return nil, 0, false, err
	}
	return slot, imageIndex, true, nil
}

// signalSkipped submits an empty batch for a skipped slot. BeginFrame has
// already reset the slot fence, and nothing else will signal it; without this
// submit the next BeginFrame on the slot waits until the fence timeout.
func (r *FrameRing) signalSkipped(slot *FrameSlot) error {
	queue, family := r.context.Queue(QueueGraphics)
	return r.context.lockPool.SafeQueueCall(family, func() error {
		if res := r.context.Driver.QueueSubmit(queue, nil, slot.RenderFence.Handle); res != vk.Success {
			return errors.Newf("empty submit failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
}

// EndFrame ends recording, submits the slot and presents imageIndex. It
// returns false when presentation invalidated the swapchain.
func (r *FrameRing) EndFrame(slot *FrameSlot, sc *Swapchain, imageIndex uint32) (bool, error) {
	if err := slot.Cmd.End(); err != nil {
		return false, err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{slot.RenderReady},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.Cmd.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.PresentReady},
	}
	queue, family := r.context.Queue(QueueGraphics)
	err := r.context.lockPool.SafeQueueCall(family, func() error {
		if res := r.context.Driver.QueueSubmit(queue, []vk.SubmitInfo{submitInfo}, slot.RenderFence.Handle); res != vk.Success {
			return errors.Newf("vkQueueSubmit failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return false, err
	}
	slot.Cmd.UpdateSubmitted()

	presentFamily := uint32(r.context.Device.PresentQueueIndex)
	var presented bool
	err = r.context.lockPool.SafeQueueCall(presentFamily, func() error {
		var perr error
		presented, perr = sc.Present(r.context.Device.PresentQueue, slot.PresentReady, imageIndex)
		return perr
	})
	return presented, err
}

// Destroy waits for the device and releases every slot.
func (r *FrameRing) Destroy() {
	if r.context.Driver != nil {
		r.context.Driver.DeviceWaitIdle()
	}
	for _, slot := range r.slots {
		slot.destroy(r.context)
	}
	r.slots = nil
}
