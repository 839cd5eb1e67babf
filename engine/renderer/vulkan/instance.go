package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/config"
	"github.com/spaghettifunk/vktogo/engine/core"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

func (vc *VulkanContext) createInstance(windowExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 3, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(vc.cfg.Window.Title),
		PEngineName:        VulkanSafeString("vktogo"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, windowExtensions...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	validation := vc.cfg.Renderer.Validation
	var layers []string
	if validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		if layerAvailable(validationLayerName) {
			layers = []string{validationLayerName}
			core.LogInfo("Validation layers enabled.")
		} else {
			core.LogWarn("Validation requested but %s is not installed.", validationLayerName)
		}
	}
	for _, ext := range requiredExtensions {
		core.LogDebug("Required instance extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vc.Allocator, &vc.Instance); res != vk.Success {
		err := errors.Newf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vc.Instance); err != nil {
		core.LogError(err.Error())
		return errors.Wrap(err, "init instance")
	}
	core.LogInfo("Vulkan Instance created.")

	if validation {
		if err := vc.createDebugCallback(); err != nil {
			return err
		}
	}
	return nil
}

func (vc *VulkanContext) createDebugCallback() error {
	core.LogDebug("Creating Vulkan debugger...")
	callback := vc.cfg.ValidationCallback
	if callback == nil {
		callback = config.LogValidationMessage
	}

	report := func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
		callback(severityFromFlags(flags), pLayerPrefix, messageCode, pMessage)
		return vk.Bool32(vk.False)
	}

	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: report,
	}

	var dbg vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(vc.Instance, &debugCreateInfo, vc.Allocator, &dbg)); err != nil {
		core.LogError("vk.CreateDebugReportCallback failed with %s", err)
		return errors.Wrap(err, "create debug report callback")
	}
	vc.debugCallback = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func (vc *VulkanContext) destroyInstance() {
	if vc.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugCallback, vc.Allocator)
		vc.debugCallback = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func layerAvailable(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		end := FindFirstZeroInByteArray(available[i].LayerName[:])
		if vk.ToString(available[i].LayerName[:end+1]) == name {
			return true
		}
	}
	return false
}

func severityFromFlags(flags vk.DebugReportFlags) config.Severity {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return config.SeverityError
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return config.SeverityPerformance
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		return config.SeverityWarning
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		return config.SeverityDebug
	default:
		return config.SeverityInfo
	}
}
