package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

// DescriptorBuilder collects bindings and writes for one descriptor set.
// Bind methods return a new builder and never modify the receiver, so a
// partially built value can be reused as a common prefix.
//
//	set, layout, err := NewDescriptorBuilder(cache, allocator).
//		BindBuffer(0, vk.DescriptorTypeUniformBuffer, stages, cameraInfo).
//		BindImage(1, vk.DescriptorTypeCombinedImageSampler, stages, textureInfo).
//		Build()
type DescriptorBuilder struct {
	cache     *DescriptorLayoutCache
	allocator *DescriptorAllocator
	bindings  []vk.DescriptorSetLayoutBinding
	writes    []vk.WriteDescriptorSet
}

func NewDescriptorBuilder(cache *DescriptorLayoutCache, allocator *DescriptorAllocator) DescriptorBuilder {
	return DescriptorBuilder{
		cache:     cache,
		allocator: allocator,
	}
}

func (b DescriptorBuilder) with(binding vk.DescriptorSetLayoutBinding, write vk.WriteDescriptorSet) DescriptorBuilder {
	next := b
	next.bindings = make([]vk.DescriptorSetLayoutBinding, len(b.bindings), len(b.bindings)+1)
	copy(next.bindings, b.bindings)
	next.bindings = append(next.bindings, binding)

	next.writes = make([]vk.WriteDescriptorSet, len(b.writes), len(b.writes)+1)
	copy(next.writes, b.writes)
	next.writes = append(next.writes, write)
	return next
}

func layoutBinding(slot uint32, kind vk.DescriptorType, stages vk.ShaderStageFlags) vk.DescriptorSetLayoutBinding {
	return vk.DescriptorSetLayoutBinding{
		Binding:         slot,
		DescriptorType:  kind,
		DescriptorCount: 1,
		StageFlags:      stages,
	}
}

func (b DescriptorBuilder) BindBuffer(slot uint32, kind vk.DescriptorType, stages vk.ShaderStageFlags, info vk.DescriptorBufferInfo) DescriptorBuilder {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      slot,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PBufferInfo:     []vk.DescriptorBufferInfo{info},
	}
	return b.with(layoutBinding(slot, kind, stages), write)
}

func (b DescriptorBuilder) BindImage(slot uint32, kind vk.DescriptorType, stages vk.ShaderStageFlags, info vk.DescriptorImageInfo) DescriptorBuilder {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      slot,
		DescriptorCount: 1,
		DescriptorType:  kind,
		PImageInfo:      []vk.DescriptorImageInfo{info},
	}
	return b.with(layoutBinding(slot, kind, stages), write)
}

// Build resolves the layout through the cache, allocates a set and writes
// every bound resource into it with a single update.
func (b DescriptorBuilder) Build() (vk.DescriptorSet, vk.DescriptorSetLayout, error) {
	if b.cache == nil || b.allocator == nil {
		return nil, nil, errors.Wrap(core.ErrBuilderIncomplete, "descriptor builder needs a layout cache and an allocator")
	}

	layout, err := b.cache.CreateLayout(b.bindings)
	if err != nil {
		return nil, nil, errors.Wrap(err, "descriptor layout")
	}
	set, err := b.allocator.Allocate(layout)
	if err != nil {
		return nil, nil, errors.Wrap(err, "descriptor set")
	}

	writes := make([]vk.WriteDescriptorSet, len(b.writes))
	for i, w := range b.writes {
		w.DstSet = set
		writes[i] = w
	}
	b.cache.context.Driver.UpdateDescriptorSets(writes)
	return set, layout, nil
}

// Bindings returns a copy of the layout bindings collected so far.
func (b DescriptorBuilder) Bindings() []vk.DescriptorSetLayoutBinding {
	return append([]vk.DescriptorSetLayoutBinding(nil), b.bindings...)
}
