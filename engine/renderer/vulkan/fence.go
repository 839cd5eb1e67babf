package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// VulkanFence tracks whether the host has already observed the fence as
// signaled, so repeated waits do not reach the driver.
type VulkanFence struct {
	context    *VulkanContext
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	handle, res := context.Driver.CreateFence(createSignaled)
	if res != vk.Success {
		err := errors.Newf("failed to create fence: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanFence{
		context:    context,
		Handle:     handle,
		IsSignaled: createSignaled,
	}, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != vk.NullFence {
		vf.context.Driver.DestroyFence(vf.Handle)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled or timeoutNs elapses. A timeout
// returns ErrFenceTimeout and a lost device returns ErrDeviceLost.
func (vf *VulkanFence) Wait(timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	res := vf.context.Driver.WaitForFence(vf.Handle, timeoutNs)
	switch res {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return errors.Wrapf(core.ErrFenceTimeout, "waited %d ns", timeoutNs)
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return errors.Wrap(core.ErrDeviceLost, "fence wait")
	default:
		err := errors.Newf("vk_fence_wait - %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
}

func (vf *VulkanFence) Reset() error {
	if res := vf.context.Driver.ResetFence(vf.Handle); res != vk.Success {
		err := errors.Newf("failed to reset fence: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	vf.IsSignaled = false
	return nil
}

// Signaled polls the fence without blocking.
func (vf *VulkanFence) Signaled() (bool, error) {
	switch res := vf.context.Driver.FenceStatus(vf.Handle); res {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.NotReady:
		return false, nil
	case vk.ErrorDeviceLost:
		return false, errors.Wrap(core.ErrDeviceLost, "fence status")
	default:
		return false, errors.Newf("vkGetFenceStatus failed with %s", VulkanResultString(res, true))
	}
}

func NewSemaphore(context *VulkanContext) (vk.Semaphore, error) {
	semaphore, res := context.Driver.CreateSemaphore()
	if res != vk.Success {
		err := errors.Newf("failed to create semaphore: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullSemaphore, err
	}
	return semaphore, nil
}

func DestroySemaphore(context *VulkanContext, semaphore vk.Semaphore) {
	if semaphore != vk.NullSemaphore {
		context.Driver.DestroySemaphore(semaphore)
	}
}
