package vulkan

import (
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// SubmitContext records and submits one batch of commands outside the frame
// loop. The caller must Wait before calling Begin again or destroying it;
// Begin resets the fence without waiting on it.
type SubmitContext struct {
	ID   core.Identifier
	Type QueueType

	context *VulkanContext
	queue   vk.Queue
	family  uint32
	pool    *CommandPool
	cmd     *CommandBuffer
	fence   *VulkanFence
}

func NewSubmitContext(context *VulkanContext, queueType QueueType) (*SubmitContext, error) {
	queue, family := context.Queue(queueType)
	sc := &SubmitContext{
		ID:      core.NewIdentifier(),
		Type:    queueType,
		context: context,
		queue:   queue,
		family:  family,
	}

	pool, err := NewCommandPool(context, family)
	if err != nil {
		return nil, errors.Wrapf(err, "submit context %s", sc.ID.Short())
	}
	sc.pool = pool

	cmd, err := pool.Allocate(true)
	if err != nil {
		pool.Destroy()
		return nil, errors.Wrapf(err, "submit context %s", sc.ID.Short())
	}
	sc.cmd = cmd

	fence, err := NewFence(context, false)
	if err != nil {
		cmd.Free()
		pool.Destroy()
		return nil, errors.Wrapf(err, "submit context %s", sc.ID.Short())
	}
	sc.fence = fence

	core.LogDebug("Submit context %s created on the %s queue (family %d).", sc.ID.Short(), queueType, family)
	return sc, nil
}

// CommandBuffer is the buffer recorded between Begin and End.
func (sc *SubmitContext) CommandBuffer() vk.CommandBuffer {
	return sc.cmd.Handle
}

func (sc *SubmitContext) Fence() *VulkanFence {
	return sc.fence
}

// Begin resets the fence and the command buffer and starts one-time-submit
// recording. Calling Begin twice without Submit and Wait in between leaves
// the command buffer content undefined.
func (sc *SubmitContext) Begin() error {
	if err := sc.fence.Reset(); err != nil {
		return err
	}
	if err := sc.cmd.Reset(true); err != nil {
		return err
	}
	return sc.cmd.Begin(true, false, false)
}

func (sc *SubmitContext) End() error {
	return sc.cmd.End()
}

// Submit sends the recorded commands without semaphore dependencies. The
// fence is signaled once the queue has executed them.
func (sc *SubmitContext) Submit() error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{sc.cmd.Handle},
	}
	err := sc.context.lockPool.SafeQueueCall(sc.family, func() error {
		if res := sc.context.Driver.QueueSubmit(sc.queue, []vk.SubmitInfo{submitInfo}, sc.fence.Handle); res != vk.Success {
			return errors.Newf("vkQueueSubmit failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	sc.cmd.UpdateSubmitted()
	sc.fence.IsSignaled = false
	return nil
}

func (sc *SubmitContext) Wait(timeout time.Duration) error {
	if err := sc.fence.Wait(uint64(timeout.Nanoseconds())); err != nil {
		return errors.Wrapf(err, "submit context %s", sc.ID.Short())
	}
	sc.cmd.State = CommandBufferStateReady
	return nil
}

// Execute records fn, submits it and waits for completion.
func (sc *SubmitContext) Execute(timeout time.Duration, fn func(cmd vk.CommandBuffer) error) error {
	if err := sc.Begin(); err != nil {
		return err
	}
	if err := fn(sc.cmd.Handle); err != nil {
		// leave the buffer in a resettable state
		sc.cmd.End()
		return err
	}
	if err := sc.End(); err != nil {
		return err
	}
	if err := sc.Submit(); err != nil {
		return err
	}
	return sc.Wait(timeout)
}

func (sc *SubmitContext) Destroy() {
	if sc.fence != nil {
		sc.fence.Destroy()
		sc.fence = nil
	}
	if sc.cmd != nil {
		sc.cmd.Free()
		sc.cmd = nil
	}
	if sc.pool != nil {
		sc.pool.Destroy()
		sc.pool = nil
	}
}
