package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// PoolSizeRatio is the number of descriptors of Type reserved per set.
type PoolSizeRatio struct {
	Type  vk.DescriptorType
	Ratio float32
}

type DescriptorAllocatorConfig struct {
	SetsPerPool uint32
	Ratios      []PoolSizeRatio
}

func DefaultDescriptorAllocatorConfig() DescriptorAllocatorConfig {
	return DescriptorAllocatorConfig{
		SetsPerPool: 1000,
		Ratios: []PoolSizeRatio{
			{Type: vk.DescriptorTypeSampler, Ratio: 0.5},
			{Type: vk.DescriptorTypeSampledImage, Ratio: 4},
			{Type: vk.DescriptorTypeCombinedImageSampler, Ratio: 4},
			{Type: vk.DescriptorTypeStorageImage, Ratio: 4},
			{Type: vk.DescriptorTypeUniformTexelBuffer, Ratio: 1},
			{Type: vk.DescriptorTypeStorageTexelBuffer, Ratio: 1},
			{Type: vk.DescriptorTypeUniformBuffer, Ratio: 2},
			{Type: vk.DescriptorTypeUniformBufferDynamic, Ratio: 1},
			{Type: vk.DescriptorTypeStorageBuffer, Ratio: 4},
			{Type: vk.DescriptorTypeStorageBufferDynamic, Ratio: 1},
			{Type: vk.DescriptorTypeInputAttachment, Ratio: 0.5},
		},
	}
}

// DescriptorAllocator hands out descriptor sets from a growing list of pools.
// Every pool is either in use or free; the current pool is the last one in
// use. It is not safe for concurrent use.
type DescriptorAllocator struct {
	context *VulkanContext
	config  DescriptorAllocatorConfig

	current   vk.DescriptorPool
	usedPools []vk.DescriptorPool
	freePools []vk.DescriptorPool
}

func NewDescriptorAllocator(context *VulkanContext, config DescriptorAllocatorConfig) *DescriptorAllocator {
	if config.SetsPerPool == 0 {
		config.SetsPerPool = DefaultDescriptorAllocatorConfig().SetsPerPool
	}
	if len(config.Ratios) == 0 {
		config.Ratios = DefaultDescriptorAllocatorConfig().Ratios
	}
	return &DescriptorAllocator{
		context: context,
		config:  config,
	}
}

func (a *DescriptorAllocator) createPool() (vk.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(a.config.Ratios))
	for _, r := range a.config.Ratios {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            r.Type,
			DescriptorCount: uint32(r.Ratio * float32(a.config.SetsPerPool)),
		})
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       a.config.SetsPerPool,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	pool, res := a.context.Driver.CreateDescriptorPool(&info)
	if res != vk.Success {
		err := errors.Newf("vkCreateDescriptorPool failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return pool, nil
}

// grabPool makes a free or newly created pool the current one.
func (a *DescriptorAllocator) grabPool() error {
	var pool vk.DescriptorPool
	if n := len(a.freePools); n > 0 {
		pool = a.freePools[n-1]
		a.freePools = a.freePools[:n-1]
	} else {
		p, err := a.createPool()
		if err != nil {
			return err
		}
		pool = p
	}
	a.current = pool
	a.usedPools = append(a.usedPools, pool)
	return nil
}

func (a *DescriptorAllocator) Allocate(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	if a.current == nil {
		if err := a.grabPool(); err != nil {
			return nil, err
		}
	}

	set, res := a.context.Driver.AllocateDescriptorSet(a.current, layout)
	switch res {
	case vk.Success:
		return set, nil
	case vk.ErrorFragmentedPool, vk.ErrorOutOfPoolMemory:
		// the current pool is full, retry once on a fresh one
		if err := a.grabPool(); err != nil {
			return nil, err
		}
		set, res = a.context.Driver.AllocateDescriptorSet(a.current, layout)
		if res == vk.Success {
			return set, nil
		}
		if res == vk.ErrorFragmentedPool || res == vk.ErrorOutOfPoolMemory {
			err := errors.Wrapf(core.ErrPoolExhausted, "fresh pool cannot hold the layout: %s", VulkanResultString(res, false))
			core.LogError(err.Error())
			return nil, err
		}
	}
	err := errors.Newf("vkAllocateDescriptorSets failed with %s", VulkanResultString(res, true))
	core.LogError(err.Error())
	return nil, err
}

// ResetPools resets every used pool and moves it to the free list. Sets
// allocated before the reset must no longer be used.
func (a *DescriptorAllocator) ResetPools() error {
	for i, pool := range a.usedPools {
		if res := a.context.Driver.ResetDescriptorPool(pool); res != vk.Success {
			a.freePools = append(a.freePools, a.usedPools[:i]...)
			a.usedPools = a.usedPools[i:]
			a.current = nil
			err := errors.Newf("vkResetDescriptorPool failed with %s", VulkanResultString(res, true))
			core.LogError(err.Error())
			return err
		}
	}
	a.freePools = append(a.freePools, a.usedPools...)
	a.usedPools = a.usedPools[:0]
	a.current = nil
	return nil
}

func (a *DescriptorAllocator) DestroyPools() {
	for _, pool := range a.usedPools {
		a.context.Driver.DestroyDescriptorPool(pool)
	}
	for _, pool := range a.freePools {
		a.context.Driver.DestroyDescriptorPool(pool)
	}
	a.usedPools = nil
	a.freePools = nil
	a.current = nil
}

func (a *DescriptorAllocator) UsedPools() int {
	return len(a.usedPools)
}

func (a *DescriptorAllocator) FreePools() int {
	return len(a.freePools)
}
