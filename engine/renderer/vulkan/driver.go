package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Driver is the set of device level entry points used by the descriptor,
// swapchain and synchronization code. The production implementation forwards
// to the Vulkan loader for a single logical device.
type Driver interface {
	CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result)
	ResetDescriptorPool(pool vk.DescriptorPool) vk.Result
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)

	SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, vk.Result)
	SurfaceFormats(surface vk.Surface) ([]vk.SurfaceFormat, vk.Result)
	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result)
	DestroySwapchain(swapchain vk.Swapchain)
	SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, vk.Result)
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result)
	DestroyImageView(view vk.ImageView)
	AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result)
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	CreateFence(signaled bool) (vk.Fence, vk.Result)
	DestroyFence(fence vk.Fence)
	WaitForFence(fence vk.Fence, timeout uint64) vk.Result
	ResetFence(fence vk.Fence) vk.Result
	FenceStatus(fence vk.Fence) vk.Result
	CreateSemaphore() (vk.Semaphore, vk.Result)
	DestroySemaphore(semaphore vk.Semaphore)

	CreateCommandPool(queueFamily uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, vk.Result)
	DestroyCommandPool(pool vk.CommandPool)
	AllocateCommandBuffer(pool vk.CommandPool, level vk.CommandBufferLevel) (vk.CommandBuffer, vk.Result)
	FreeCommandBuffer(pool vk.CommandPool, buffer vk.CommandBuffer)
	ResetCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferResetFlags) vk.Result
	BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result
	EndCommandBuffer(buffer vk.CommandBuffer) vk.Result

	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result
	QueueWaitIdle(queue vk.Queue) vk.Result
	DeviceWaitIdle() vk.Result
}

type vulkanDriver struct {
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	allocator      *vk.AllocationCallbacks
}

// NewVulkanDriver binds the loader entry points to one logical device.
func NewVulkanDriver(physicalDevice vk.PhysicalDevice, device vk.Device, allocator *vk.AllocationCallbacks) Driver {
	return &vulkanDriver{
		physicalDevice: physicalDevice,
		device:         device,
		allocator:      allocator,
	}
}

func (d *vulkanDriver) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result) {
	var layout vk.DescriptorSetLayout
	res := vk.CreateDescriptorSetLayout(d.device, info, d.allocator, &layout)
	return layout, res
}

func (d *vulkanDriver) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.device, layout, d.allocator)
}

func (d *vulkanDriver) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result) {
	var pool vk.DescriptorPool
	res := vk.CreateDescriptorPool(d.device, info, d.allocator, &pool)
	return pool, res
}

func (d *vulkanDriver) ResetDescriptorPool(pool vk.DescriptorPool) vk.Result {
	return vk.ResetDescriptorPool(d.device, pool, 0)
}

func (d *vulkanDriver) DestroyDescriptorPool(pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(d.device, pool, d.allocator)
}

func (d *vulkanDriver) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(d.device, &info, &set)
	return set, res
}

func (d *vulkanDriver) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	if len(writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(writes)), writes, 0, nil)
}

func (d *vulkanDriver) SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	var caps vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(d.physicalDevice, surface, &caps)
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, res
}

func (d *vulkanDriver) SurfaceFormats(surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, surface, &count, nil); res != vk.Success {
		return nil, res
	}
	formats := make([]vk.SurfaceFormat, count)
	res := vk.GetPhysicalDeviceSurfaceFormats(d.physicalDevice, surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}
	return formats[:count], res
}

func (d *vulkanDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	var swapchain vk.Swapchain
	res := vk.CreateSwapchain(d.device, info, d.allocator, &swapchain)
	return swapchain, res
}

func (d *vulkanDriver) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(d.device, swapchain, d.allocator)
}

func (d *vulkanDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	var count uint32
	if res := vk.GetSwapchainImages(d.device, swapchain, &count, nil); res != vk.Success {
		return nil, res
	}
	images := make([]vk.Image, count)
	res := vk.GetSwapchainImages(d.device, swapchain, &count, images)
	return images[:count], res
}

func (d *vulkanDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	var view vk.ImageView
	res := vk.CreateImageView(d.device, info, d.allocator, &view)
	return view, res
}

func (d *vulkanDriver) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.device, view, d.allocator)
}

func (d *vulkanDriver) AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	var index uint32
	res := vk.AcquireNextImage(d.device, swapchain, timeout, semaphore, fence, &index)
	return index, res
}

func (d *vulkanDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (d *vulkanDriver) CreateFence(signaled bool) (vk.Fence, vk.Result) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	res := vk.CreateFence(d.device, &info, d.allocator, &fence)
	return fence, res
}

func (d *vulkanDriver) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.device, fence, d.allocator)
}

func (d *vulkanDriver) WaitForFence(fence vk.Fence, timeout uint64) vk.Result {
	return vk.WaitForFences(d.device, 1, []vk.Fence{fence}, vk.True, timeout)
}

func (d *vulkanDriver) ResetFence(fence vk.Fence) vk.Result {
	return vk.ResetFences(d.device, 1, []vk.Fence{fence})
}

func (d *vulkanDriver) FenceStatus(fence vk.Fence) vk.Result {
	return vk.GetFenceStatus(d.device, fence)
}

func (d *vulkanDriver) CreateSemaphore() (vk.Semaphore, vk.Result) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	res := vk.CreateSemaphore(d.device, &info, d.allocator, &semaphore)
	return semaphore, res
}

func (d *vulkanDriver) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(d.device, semaphore, d.allocator)
}

func (d *vulkanDriver) CreateCommandPool(queueFamily uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, vk.Result) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamily,
		Flags:            flags,
	}
	var pool vk.CommandPool
	res := vk.CreateCommandPool(d.device, &info, d.allocator, &pool)
	return pool, res
}

func (d *vulkanDriver) DestroyCommandPool(pool vk.CommandPool) {
	vk.DestroyCommandPool(d.device, pool, d.allocator)
}

func (d *vulkanDriver) AllocateCommandBuffer(pool vk.CommandPool, level vk.CommandBufferLevel) (vk.CommandBuffer, vk.Result) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              level,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	res := vk.AllocateCommandBuffers(d.device, &info, buffers)
	return buffers[0], res
}

func (d *vulkanDriver) FreeCommandBuffer(pool vk.CommandPool, buffer vk.CommandBuffer) {
	vk.FreeCommandBuffers(d.device, pool, 1, []vk.CommandBuffer{buffer})
}

func (d *vulkanDriver) ResetCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferResetFlags) vk.Result {
	return vk.ResetCommandBuffer(buffer, flags)
}

func (d *vulkanDriver) BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	return vk.BeginCommandBuffer(buffer, &info)
}

func (d *vulkanDriver) EndCommandBuffer(buffer vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(buffer)
}

func (d *vulkanDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(queue, uint32(len(submits)), submits, fence)
}

func (d *vulkanDriver) QueueWaitIdle(queue vk.Queue) vk.Result {
	return vk.QueueWaitIdle(queue)
}

func (d *vulkanDriver) DeviceWaitIdle() vk.Result {
	return vk.DeviceWaitIdle(d.device)
}
