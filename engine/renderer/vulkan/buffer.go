package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// MemoryUsage says who reads and writes an allocation.
type MemoryUsage int

const (
	MemoryUsageGpuOnly MemoryUsage = iota
	MemoryUsageCpuOnly
	MemoryUsageCpuToGpu
	MemoryUsageGpuToCpu
)

func (u MemoryUsage) String() string {
	switch u {
	case MemoryUsageCpuOnly:
		return "cpu_only"
	case MemoryUsageCpuToGpu:
		return "cpu_to_gpu"
	case MemoryUsageGpuToCpu:
		return "gpu_to_cpu"
	default:
		return "gpu_only"
	}
}

// PropertyFlags are the memory properties required for the usage.
func (u MemoryUsage) PropertyFlags() vk.MemoryPropertyFlags {
	switch u {
	case MemoryUsageCpuOnly, MemoryUsageCpuToGpu:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	case MemoryUsageGpuToCpu:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit)
	default:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
}

// HostVisible reports whether the allocation can be mapped.
func (u MemoryUsage) HostVisible() bool {
	return u != MemoryUsageGpuOnly
}

// allocateMemory finds a memory type for requirements and allocates from it.
// GpuToCpu falls back to uncached memory when no cached type exists.
func allocateMemory(context *VulkanContext, requirements vk.MemoryRequirements, usage MemoryUsage) (vk.DeviceMemory, error) {
	index := context.FindMemoryIndex(requirements.MemoryTypeBits, usage.PropertyFlags())
	if index < 0 && usage == MemoryUsageGpuToCpu {
		index = context.FindMemoryIndex(requirements.MemoryTypeBits, MemoryUsageCpuOnly.PropertyFlags())
	}
	if index < 0 {
		return vk.NullDeviceMemory, errors.Wrapf(core.ErrNoMemoryType, "usage %s, type bits %#x", usage, requirements.MemoryTypeBits)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocInfo, context.Allocator, &memory); res != vk.Success {
		err := errors.Newf("vkAllocateMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullDeviceMemory, err
	}
	return memory, nil
}

type Buffer struct {
	context *VulkanContext

	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlags

	memoryUsage MemoryUsage
	mapped      unsafe.Pointer
}

func CreateBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryUsage MemoryUsage) (*Buffer, error) {
	if size == 0 {
		return nil, errors.New("buffer size must be greater than zero")
	}
	b := &Buffer{
		context:     context,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		memoryUsage: memoryUsage,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        b.Size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &b.Handle); res != vk.Success {
		err := errors.Newf("vkCreateBuffer failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, b.Handle, &requirements)
	requirements.Deref()

	memory, err := allocateMemory(context, requirements, memoryUsage)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	b.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, b.Handle, b.Memory, 0); res != vk.Success {
		b.Destroy()
		err := errors.Newf("vkBindBufferMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return b, nil
}

// Map returns a host pointer to the whole buffer. The mapping is cached
// until Unmap or Destroy.
func (b *Buffer) Map() (unsafe.Pointer, error) {
	if !b.memoryUsage.HostVisible() {
		return nil, errors.Newf("buffer memory is %s and cannot be mapped", b.memoryUsage)
	}
	if b.mapped != nil {
		return b.mapped, nil
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(b.context.Device.LogicalDevice, b.Memory, 0, b.Size, 0, &data); res != vk.Success {
		err := errors.Newf("vkMapMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	b.mapped = data
	return data, nil
}

func (b *Buffer) Unmap() {
	if b.mapped != nil {
		vk.UnmapMemory(b.context.Device.LogicalDevice, b.Memory)
		b.mapped = nil
	}
}

// Write copies data into the buffer at offset. The buffer must be host
// visible.
func (b *Buffer) Write(data []byte, offset uint64) error {
	if offset+uint64(len(data)) > uint64(b.Size) {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d bytes", len(data), offset, b.Size)
	}
	ptr, err := b.Map()
	if err != nil {
		return err
	}
	dst := unsafe.Slice((*byte)(unsafe.Add(ptr, offset)), len(data))
	copy(dst, data)
	return nil
}

func (b *Buffer) DescriptorInfo() vk.DescriptorBufferInfo {
	return vk.DescriptorBufferInfo{
		Buffer: b.Handle,
		Offset: 0,
		Range:  b.Size,
	}
}

func (b *Buffer) Destroy() {
	b.Unmap()
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, b.Handle, b.context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.context.Device.LogicalDevice, b.Memory, b.context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}
