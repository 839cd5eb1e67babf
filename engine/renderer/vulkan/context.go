package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/config"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// Window is what the renderer needs from the windowing layer.
type Window interface {
	InstanceProcAddr() unsafe.Pointer
	GetRequiredExtensionNames() []string
	CreateSurface(instance interface{}) (uintptr, error)
	FramebufferSize() (uint32, uint32)
}

type QueueType int

const (
	QueueGraphics QueueType = iota
	QueueCompute
	QueueTransfer
)

func (q QueueType) String() string {
	switch q {
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	default:
		return "graphics"
	}
}

// VulkanContext owns the instance, surface and device for one window. It is
// passed explicitly to everything that creates GPU objects.
type VulkanContext struct {
	cfg config.Config

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugCallback vk.DebugReportCallback

	Device *VulkanDevice
	Driver Driver

	// FramebufferSize reports the window size in pixels, used when the
	// surface leaves the swapchain extent to the application.
	FramebufferSize func() (uint32, uint32)

	lockPool *VulkanLockPool
}

// NewContext brings up the instance, surface and logical device. The
// configuration is copied; later changes to cfg are not observed.
func NewContext(cfg config.Config, window Window) (*VulkanContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := &VulkanContext{
		cfg:             cfg,
		FramebufferSize: window.FramebufferSize,
		lockPool:        NewVulkanLockPool(),
	}
	ctx.cfg.Device.Extensions = append([]string(nil), cfg.Device.Extensions...)

	vk.SetGetInstanceProcAddr(window.InstanceProcAddr())
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, errors.Wrap(err, "vulkan loader")
	}

	if err := ctx.createInstance(window.GetRequiredExtensionNames()); err != nil {
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateSurface(ctx.Instance)
	if err != nil {
		core.LogError("Failed to create platform surface: %s", err)
		ctx.Shutdown()
		return nil, err
	}
	ctx.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(ctx); err != nil {
		ctx.Shutdown()
		return nil, err
	}
	ctx.Driver = NewVulkanDriver(ctx.Device.PhysicalDevice, ctx.Device.LogicalDevice, ctx.Allocator)

	core.LogInfo("Vulkan context initialized successfully.")
	return ctx, nil
}

// Shutdown destroys the device, surface, debug callback and instance, in that
// order. Objects created from the context must be destroyed first.
func (vc *VulkanContext) Shutdown() {
	if vc.Device != nil && vc.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vc.Device.LogicalDevice)
		DeviceDestroy(vc)
	}
	vc.Driver = nil

	if vc.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}
	vc.destroyInstance()
}

// Config returns the configuration the context was started with.
func (vc *VulkanContext) Config() config.Config {
	return vc.cfg
}

// Queue returns the queue and family index for the requested type. Missing
// dedicated families fall back to the graphics queue at device creation.
func (vc *VulkanContext) Queue(t QueueType) (vk.Queue, uint32) {
	switch t {
	case QueueCompute:
		return vc.Device.ComputeQueue, uint32(vc.Device.ComputeQueueIndex)
	case QueueTransfer:
		return vc.Device.TransferQueue, uint32(vc.Device.TransferQueueIndex)
	default:
		return vc.Device.GraphicsQueue, uint32(vc.Device.GraphicsQueueIndex)
	}
}

// WaitIdle blocks until the device has finished all submitted work.
func (vc *VulkanContext) WaitIdle() error {
	if res := vc.Driver.DeviceWaitIdle(); res != vk.Success {
		return errors.Newf("vkDeviceWaitIdle failed: %s", VulkanResultString(res, true))
	}
	return nil
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// all of propertyFlags, or -1.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
