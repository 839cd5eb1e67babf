package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// VK_LOD_CLAMP_NONE
const lodClampNone float32 = 1000.0

type SamplerBuilder struct {
	context   *VulkanContext
	info      vk.SamplerCreateInfo
	reduction vk.SamplerReductionModeCreateInfo
	useReduce bool
}

func NewSamplerBuilder(context *VulkanContext) *SamplerBuilder {
	b := &SamplerBuilder{context: context}
	b.Reset()
	return b
}

// Reset restores nearest filtering, clamp to border addressing with an
// opaque black border and an unclamped LOD range.
func (b *SamplerBuilder) Reset() {
	b.info = vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        vk.FilterNearest,
		MinFilter:        vk.FilterNearest,
		MipmapMode:       vk.SamplerMipmapModeNearest,
		AddressModeU:     vk.SamplerAddressModeClampToBorder,
		AddressModeV:     vk.SamplerAddressModeClampToBorder,
		AddressModeW:     vk.SamplerAddressModeClampToBorder,
		AnisotropyEnable: vk.False,
		MaxAnisotropy:    1,
		CompareEnable:    vk.False,
		CompareOp:        vk.CompareOpAlways,
		MinLod:           0,
		MaxLod:           lodClampNone,
		BorderColor:      vk.BorderColorIntOpaqueBlack,
	}
	b.reduction = vk.SamplerReductionModeCreateInfo{
		SType:         vk.StructureTypeSamplerReductionModeCreateInfo,
		ReductionMode: vk.SamplerReductionModeWeightedAverage,
	}
	b.useReduce = false
}

func (b *SamplerBuilder) SetFilter(filter vk.Filter) *SamplerBuilder {
	return b.SetMinFilter(filter).SetMagFilter(filter)
}

func (b *SamplerBuilder) SetMinFilter(filter vk.Filter) *SamplerBuilder {
	b.info.MinFilter = filter
	return b
}

func (b *SamplerBuilder) SetMagFilter(filter vk.Filter) *SamplerBuilder {
	b.info.MagFilter = filter
	return b
}

func (b *SamplerBuilder) SetMipmapMode(mode vk.SamplerMipmapMode) *SamplerBuilder {
	b.info.MipmapMode = mode
	return b
}

func (b *SamplerBuilder) SetLod(minLod, maxLod, mipLodBias float32) *SamplerBuilder {
	b.info.MinLod = minLod
	b.info.MaxLod = maxLod
	b.info.MipLodBias = mipLodBias
	return b
}

func (b *SamplerBuilder) SetAddressMode(mode vk.SamplerAddressMode) *SamplerBuilder {
	return b.SetAddressModeU(mode).SetAddressModeV(mode).SetAddressModeW(mode)
}

func (b *SamplerBuilder) SetAddressModeU(mode vk.SamplerAddressMode) *SamplerBuilder {
	b.info.AddressModeU = mode
	return b
}

func (b *SamplerBuilder) SetAddressModeV(mode vk.SamplerAddressMode) *SamplerBuilder {
	b.info.AddressModeV = mode
	return b
}

func (b *SamplerBuilder) SetAddressModeW(mode vk.SamplerAddressMode) *SamplerBuilder {
	b.info.AddressModeW = mode
	return b
}

func (b *SamplerBuilder) SetBorderColor(color vk.BorderColor) *SamplerBuilder {
	b.info.BorderColor = color
	return b
}

// EnableAnisotropy requires the samplerAnisotropy device feature.
func (b *SamplerBuilder) EnableAnisotropy(enable bool, maxAnisotropy float32) *SamplerBuilder {
	b.info.AnisotropyEnable = vkBool(enable)
	b.info.MaxAnisotropy = maxAnisotropy
	return b
}

func (b *SamplerBuilder) EnableComparison(enable bool, op vk.CompareOp) *SamplerBuilder {
	b.info.CompareEnable = vkBool(enable)
	b.info.CompareOp = op
	return b
}

// SetReductionMode requires samplerFilterMinmax for min and max reduction.
func (b *SamplerBuilder) SetReductionMode(mode vk.SamplerReductionMode) *SamplerBuilder {
	b.reduction.ReductionMode = mode
	b.useReduce = true
	return b
}

func (b *SamplerBuilder) ResetReductionMode() *SamplerBuilder {
	b.useReduce = false
	return b
}

// Info returns the create info Build would use, without the pNext chain.
func (b *SamplerBuilder) Info() vk.SamplerCreateInfo {
	return b.info
}

// ReductionMode reports the reduction mode and whether it will be chained.
func (b *SamplerBuilder) ReductionMode() (vk.SamplerReductionMode, bool) {
	return b.reduction.ReductionMode, b.useReduce
}

func (b *SamplerBuilder) Build() (vk.Sampler, error) {
	info := b.info
	reduction := b.reduction
	if b.useReduce {
		info.PNext = unsafe.Pointer(&reduction)
	}

	var sampler vk.Sampler
	err := b.context.lockPool.SafeCall(SamplerManagement, func() error {
		if res := vk.CreateSampler(b.context.Device.LogicalDevice, &info, b.context.Allocator, &sampler); res != vk.Success {
			return errors.Newf("vkCreateSampler failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return vk.NullSampler, err
	}
	return sampler, nil
}

func DestroySampler(context *VulkanContext, sampler vk.Sampler) {
	if sampler != vk.NullSampler {
		vk.DestroySampler(context.Device.LogicalDevice, sampler, context.Allocator)
	}
}
