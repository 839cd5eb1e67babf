package vulkan

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

const spirvMagic uint32 = 0x07230203

// ShaderModule is a compiled SPIR-V module bound to the pipeline stage it
// was loaded for.
type ShaderModule struct {
	context *VulkanContext

	Handle vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
	Entry  string
}

// spirvWords reinterprets little endian SPIR-V bytes as words.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Newf("spir-v size %d is not a positive multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, errors.Newf("bad spir-v magic %#08x", words[0])
	}
	return words, nil
}

// shaderModuleInfo describes a module built from words. CodeSize is in bytes.
func shaderModuleInfo(words []uint32) vk.ShaderModuleCreateInfo {
	return vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(words) * 4),
		PCode:    words,
	}
}

func LoadShader(context *VulkanContext, code []byte, stage vk.ShaderStageFlagBits) (*ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	info := shaderModuleInfo(words)
	shader := &ShaderModule{
		context: context,
		Stage:   stage,
		Entry:   "main",
	}
	err = context.lockPool.SafeCall(ShaderManagement, func() error {
		if res := vk.CreateShaderModule(context.Device.LogicalDevice, &info, context.Allocator, &shader.Handle); res != vk.Success {
			return errors.Newf("vkCreateShaderModule failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	return shader, nil
}

// LoadShaderFile reads a .spv file from disk.
func LoadShaderFile(context *VulkanContext, path string, stage vk.ShaderStageFlagBits) (*ShaderModule, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read shader module %s", path)
	}
	shader, err := LoadShader(context, code, stage)
	if err != nil {
		return nil, errors.Wrapf(err, "shader %s", path)
	}
	core.LogDebug("loaded shader %s", path)
	return shader, nil
}

// StageInfo describes the module as a pipeline stage.
func (s *ShaderModule) StageInfo() vk.PipelineShaderStageCreateInfo {
	return shaderStageInfo(s.Handle, s.Stage, s.Entry)
}

func (s *ShaderModule) Destroy() {
	if s.Handle == vk.NullShaderModule {
		return
	}
	_ = s.context.lockPool.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(s.context.Device.LogicalDevice, s.Handle, s.context.Allocator)
		return nil
	})
	s.Handle = vk.NullShaderModule
}

func shaderStageInfo(module vk.ShaderModule, stage vk.ShaderStageFlagBits, entry string) vk.PipelineShaderStageCreateInfo {
	if entry == "" {
		entry = "main"
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: module,
		PName:  VulkanSafeString(entry),
	}
}
