package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/config"
	"github.com/spaghettifunk/vktogo/engine/core"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Name           string

	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	ComputeQueueIndex  int32
	TransferQueueIndex int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	ComputeQueue  vk.Queue
	TransferQueue vk.Queue

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

type queueFamilyInfo struct {
	graphics, present, compute, transfer int32
}

// selectQueueFamilies picks a family per queue type. Compute and transfer
// prefer families without graphics support and fall back to the graphics
// family when the device has none.
func selectQueueFamilies(families []vk.QueueFamilyProperties, supportsPresent func(index uint32) bool) queueFamilyInfo {
	info := queueFamilyInfo{graphics: -1, present: -1, compute: -1, transfer: -1}
	has := func(f vk.QueueFamilyProperties, bit vk.QueueFlagBits) bool {
		return vk.QueueFlagBits(f.QueueFlags)&bit != 0
	}

	for i, f := range families {
		if info.graphics < 0 && has(f, vk.QueueGraphicsBit) {
			info.graphics = int32(i)
		}
	}
	if info.graphics >= 0 && supportsPresent(uint32(info.graphics)) {
		info.present = info.graphics
	}
	for i, f := range families {
		if info.present < 0 && supportsPresent(uint32(i)) {
			info.present = int32(i)
		}
		if info.compute < 0 && has(f, vk.QueueComputeBit) && !has(f, vk.QueueGraphicsBit) {
			info.compute = int32(i)
		}
	}

	// a transfer-only family is most likely backed by a DMA engine
	for i, f := range families {
		if has(f, vk.QueueTransferBit) && !has(f, vk.QueueGraphicsBit) && !has(f, vk.QueueComputeBit) {
			info.transfer = int32(i)
			break
		}
	}
	if info.transfer < 0 {
		for i, f := range families {
			if has(f, vk.QueueTransferBit) && !has(f, vk.QueueGraphicsBit) {
				info.transfer = int32(i)
				break
			}
		}
	}

	if info.compute < 0 {
		info.compute = info.graphics
	}
	if info.transfer < 0 {
		info.transfer = info.graphics
	}
	return info
}

// deviceScore ranks physical devices; zero means unusable.
func deviceScore(deviceType vk.PhysicalDeviceType, prefer string) int {
	discrete, integrated := 1000, 100
	if prefer == "integrated" {
		discrete, integrated = integrated, discrete
	}
	switch deviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return discrete
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return integrated
	case vk.PhysicalDeviceTypeVirtualGpu:
		return 10
	case vk.PhysicalDeviceTypeCpu:
		return 1
	default:
		return 1
	}
}

func DeviceCreate(context *VulkanContext) error {
	context.Device = &VulkanDevice{}
	queues, err := selectPhysicalDevice(context)
	if err != nil {
		return err
	}
	device := context.Device

	core.LogInfo("Creating logical device...")

	// one queue per distinct family
	indices := []int32{queues.graphics}
	for _, idx := range []int32{queues.present, queues.compute, queues.transfer} {
		dup := false
		for _, existing := range indices {
			if existing == idx {
				dup = true
				break
			}
		}
		if !dup {
			indices = append(indices, idx)
		}
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, idx := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(idx),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := append([]string(nil), context.cfg.Device.Extensions...)
	if deviceHasExtension(device.PhysicalDevice, portabilitySubsetExtension) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	features := coreFeatures(context.cfg.Device.Vulkan10, device.Features)

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	chain := newFeatureChain(context.cfg.Device)
	deviceCreateInfo.PNext = chain.head()

	var logicalDevice vk.Device
	if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
		err := errors.Newf("vkCreateDevice failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	device.GraphicsQueueIndex = queues.graphics
	device.PresentQueueIndex = queues.present
	device.ComputeQueueIndex = queues.compute
	device.TransferQueueIndex = queues.transfer

	vk.GetDeviceQueue(logicalDevice, uint32(queues.graphics), 0, &device.GraphicsQueue)
	vk.GetDeviceQueue(logicalDevice, uint32(queues.present), 0, &device.PresentQueue)
	vk.GetDeviceQueue(logicalDevice, uint32(queues.compute), 0, &device.ComputeQueue)
	vk.GetDeviceQueue(logicalDevice, uint32(queues.transfer), 0, &device.TransferQueue)
	for _, idx := range indices {
		context.lockPool.SetQueueFamily(uint32(idx))
	}
	core.LogInfo("Queues obtained.")

	if !DeviceDetectDepthFormat(device) {
		core.LogWarn("No supported depth format found.")
	}
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	device.GraphicsQueue = nil
	device.PresentQueue = nil
	device.ComputeQueue = nil
	device.TransferQueue = nil

	if device.LogicalDevice != nil {
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(device.LogicalDevice, context.Allocator)
		device.LogicalDevice = nil
	}
	// physical devices are not destroyed
	device.PhysicalDevice = nil

	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
	device.ComputeQueueIndex = -1
	device.TransferQueueIndex = -1
}

func selectPhysicalDevice(context *VulkanContext) (queueFamilyInfo, error) {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return queueFamilyInfo{}, errors.Newf("vkEnumeratePhysicalDevices failed with %s", VulkanResultString(res, true))
	}
	if physicalDeviceCount == 0 {
		return queueFamilyInfo{}, errors.Wrap(core.ErrNoSuitableDevice, "no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return queueFamilyInfo{}, errors.Newf("vkEnumeratePhysicalDevices failed with %s", VulkanResultString(res, true))
	}

	bestScore := 0
	var best queueFamilyInfo
	for _, pd := range physicalDevices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &properties)
		properties.Deref()
		name := vk.ToString(properties.DeviceName[:])

		queues, ok := physicalDeviceMeetsRequirements(pd, context.Surface, context.cfg.Device.Extensions, name)
		if !ok {
			continue
		}
		score := deviceScore(properties.DeviceType, context.cfg.Device.PreferGPU)
		core.LogDebug("Candidate device '%s' scored %d.", name, score)
		if score <= bestScore {
			continue
		}
		bestScore = score
		best = queues

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(pd, &features)
		features.Deref()
		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
		memory.Deref()

		context.Device.PhysicalDevice = pd
		context.Device.Name = name
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.Memory = memory
	}

	if context.Device.PhysicalDevice == nil {
		core.LogError("No physical devices were found which meet the requirements.")
		return queueFamilyInfo{}, core.ErrNoSuitableDevice
	}

	props := context.Device.Properties
	core.LogInfo("Selected device: '%s'.", context.Device.Name)
	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(props.DriverVersion).Major(),
		vk.Version(props.DriverVersion).Minor(),
		vk.Version(props.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(props.ApiVersion).Major(),
		vk.Version(props.ApiVersion).Minor(),
		vk.Version(props.ApiVersion).Patch(),
	)
	memory := context.Device.Memory
	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		memory.MemoryHeaps[j].Deref()
		memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
	return best, nil
}

func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, extensions []string, name string) (queueFamilyInfo, bool) {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)
	for i := range queueFamilies {
		queueFamilies[i].Deref()
	}

	queues := selectQueueFamilies(queueFamilies, func(index uint32) bool {
		var supported vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, index, surface, &supported); res != vk.Success {
			return false
		}
		return supported == vk.True
	})
	core.LogDebug("'%s' queue families: graphics=%d present=%d compute=%d transfer=%d",
		name, queues.graphics, queues.present, queues.compute, queues.transfer)
	if queues.graphics < 0 || queues.present < 0 {
		core.LogInfo("Device '%s' lacks graphics or present support, skipping.", name)
		return queues, false
	}

	var formatCount, presentModeCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentModeCount, nil)
	if formatCount == 0 || presentModeCount == 0 {
		core.LogInfo("Required swapchain support not present on '%s', skipping.", name)
		return queues, false
	}

	for _, ext := range extensions {
		if !deviceHasExtension(device, ext) {
			core.LogInfo("Required extension not found: '%s', skipping '%s'.", ext, name)
			return queues, false
		}
	}
	return queues, true
}

func deviceHasExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// coreFeatures builds the 1.0 feature set, dropping requested features the
// device does not support.
func coreFeatures(want config.Features10, have vk.PhysicalDeviceFeatures) vk.PhysicalDeviceFeatures {
	enable := func(requested bool, supported vk.Bool32, name string) vk.Bool32 {
		if !requested {
			return vk.False
		}
		if supported != vk.True {
			core.LogWarn("Device feature %s requested but not supported.", name)
			return vk.False
		}
		return vk.True
	}
	return vk.PhysicalDeviceFeatures{
		SamplerAnisotropy:         enable(want.SamplerAnisotropy, have.SamplerAnisotropy, "samplerAnisotropy"),
		SampleRateShading:         enable(want.SampleRateShading, have.SampleRateShading, "sampleRateShading"),
		DepthClamp:                enable(want.DepthClamp, have.DepthClamp, "depthClamp"),
		GeometryShader:            enable(want.GeometryShader, have.GeometryShader, "geometryShader"),
		TessellationShader:        enable(want.TessellationShader, have.TessellationShader, "tessellationShader"),
		MultiDrawIndirect:         enable(want.MultiDrawIndirect, have.MultiDrawIndirect, "multiDrawIndirect"),
		DrawIndirectFirstInstance: enable(want.DrawIndirectFirstInstance, have.DrawIndirectFirstInstance, "drawIndirectFirstInstance"),
		FillModeNonSolid:          enable(want.FillModeNonSolid, have.FillModeNonSolid, "fillModeNonSolid"),
		ShaderFloat64:             enable(want.ShaderFloat64, have.ShaderFloat64, "shaderFloat64"),
		ShaderInt64:               enable(want.ShaderInt64, have.ShaderInt64, "shaderInt64"),
		WideLines:                 enable(want.WideLines, have.WideLines, "wideLines"),
	}
}

// featureChain holds the per-version feature structs linked through PNext.
// It must stay reachable until vkCreateDevice returns.
type featureChain struct {
	v11 *vk.PhysicalDeviceVulkan11Features
	v12 *vk.PhysicalDeviceVulkan12Features
	v13 *vk.PhysicalDeviceVulkan13Features
}

func newFeatureChain(cfg config.Device) *featureChain {
	chain := &featureChain{}
	var next unsafe.Pointer

	if f := cfg.Vulkan13; f != (config.Features13{}) {
		chain.v13 = &vk.PhysicalDeviceVulkan13Features{
			SType:            vk.StructureTypePhysicalDeviceVulkan13Features,
			PNext:            next,
			Synchronization2: vkBool(f.Synchronization2),
			DynamicRendering: vkBool(f.DynamicRendering),
			Maintenance4:     vkBool(f.Maintenance4),
		}
		next = unsafe.Pointer(chain.v13)
	}
	if f := cfg.Vulkan12; f != (config.Features12{}) {
		chain.v12 = &vk.PhysicalDeviceVulkan12Features{
			SType:                           vk.StructureTypePhysicalDeviceVulkan12Features,
			PNext:                           next,
			BufferDeviceAddress:             vkBool(f.BufferDeviceAddress),
			SamplerFilterMinmax:             vkBool(f.SamplerFilterMinmax),
			TimelineSemaphore:               vkBool(f.TimelineSemaphore),
			DescriptorIndexing:              vkBool(f.DescriptorIndexing),
			RuntimeDescriptorArray:          vkBool(f.RuntimeDescriptorArray),
			DescriptorBindingPartiallyBound: vkBool(f.DescriptorBindingPartiallyBound),
			ScalarBlockLayout:               vkBool(f.ScalarBlockLayout),
		}
		next = unsafe.Pointer(chain.v12)
	}
	if f := cfg.Vulkan11; f != (config.Features11{}) {
		chain.v11 = &vk.PhysicalDeviceVulkan11Features{
			SType:                    vk.StructureTypePhysicalDeviceVulkan11Features,
			PNext:                    next,
			ShaderDrawParameters:     vkBool(f.ShaderDrawParameters),
			Multiview:                vkBool(f.Multiview),
			StorageBuffer16BitAccess: vkBool(f.StorageBuffer16BitAccess),
		}
		next = unsafe.Pointer(chain.v11)
	}
	return chain
}

// head is the first struct of the chain, or nil when no tier is requested.
func (c *featureChain) head() unsafe.Pointer {
	switch {
	case c.v11 != nil:
		return unsafe.Pointer(c.v11)
	case c.v12 != nil:
		return unsafe.Pointer(c.v12)
	case c.v13 != nil:
		return unsafe.Pointer(c.v13)
	}
	return nil
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureDepthStencilAttachmentBit
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if (vk.FormatFeatureFlagBits(properties.LinearTilingFeatures)&flags) == flags ||
			(vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures)&flags) == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	device.DepthFormat = vk.FormatUndefined
	return false
}
