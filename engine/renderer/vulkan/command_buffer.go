package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

type CommandBufferState int

const (
	CommandBufferStateNotAllocated CommandBufferState = iota
	CommandBufferStateReady
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
)

func (s CommandBufferState) String() string {
	switch s {
	case CommandBufferStateReady:
		return "ready"
	case CommandBufferStateRecording:
		return "recording"
	case CommandBufferStateInRenderPass:
		return "in_render_pass"
	case CommandBufferStateRecordingEnded:
		return "recording_ended"
	case CommandBufferStateSubmitted:
		return "submitted"
	default:
		return "not_allocated"
	}
}

type CommandPool struct {
	context     *VulkanContext
	Handle      vk.CommandPool
	QueueFamily uint32
}

// NewCommandPool creates a pool whose buffers can be reset individually.
func NewCommandPool(context *VulkanContext, queueFamily uint32) (*CommandPool, error) {
	flags := vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	handle, res := context.Driver.CreateCommandPool(queueFamily, flags)
	if res != vk.Success {
		err := errors.Newf("failed to create command pool: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return &CommandPool{
		context:     context,
		Handle:      handle,
		QueueFamily: queueFamily,
	}, nil
}

func (p *CommandPool) Destroy() {
	if p.Handle != vk.NullCommandPool {
		p.context.Driver.DestroyCommandPool(p.Handle)
		p.Handle = vk.NullCommandPool
	}
}

type CommandBuffer struct {
	pool   *CommandPool
	Handle vk.CommandBuffer
	State  CommandBufferState
}

func (p *CommandPool) Allocate(isPrimary bool) (*CommandBuffer, error) {
	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}
	handle, res := p.context.Driver.AllocateCommandBuffer(p.Handle, level)
	if res != vk.Success {
		err := errors.Newf("failed to allocate command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return &CommandBuffer{
		pool:   p,
		Handle: handle,
		State:  CommandBufferStateReady,
	}, nil
}

func (cb *CommandBuffer) Free() {
	if cb.Handle != nil {
		cb.pool.context.Driver.FreeCommandBuffer(cb.pool.Handle, cb.Handle)
		cb.Handle = nil
	}
	cb.State = CommandBufferStateNotAllocated
}

func (cb *CommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := cb.pool.context.Driver.BeginCommandBuffer(cb.Handle, flags); res != vk.Success {
		err := errors.Newf("failed to begin command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	cb.State = CommandBufferStateRecording
	return nil
}

func (cb *CommandBuffer) End() error {
	if res := cb.pool.context.Driver.EndCommandBuffer(cb.Handle); res != vk.Success {
		err := errors.Newf("failed to end command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	cb.State = CommandBufferStateRecordingEnded
	return nil
}

// Reset returns the buffer to the initial state. With releaseResources the
// memory owned by the buffer goes back to the pool.
func (cb *CommandBuffer) Reset(releaseResources bool) error {
	var flags vk.CommandBufferResetFlags
	if releaseResources {
		flags = vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit)
	}
	if res := cb.pool.context.Driver.ResetCommandBuffer(cb.Handle, flags); res != vk.Success {
		err := errors.Newf("failed to reset command buffer: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	cb.State = CommandBufferStateReady
	return nil
}

func (cb *CommandBuffer) UpdateSubmitted() {
	cb.State = CommandBufferStateSubmitted
}

func (cb *CommandBuffer) BeginRenderPass() {
	cb.State = CommandBufferStateInRenderPass
}

func (cb *CommandBuffer) EndRenderPass() {
	cb.State = CommandBufferStateRecording
}
