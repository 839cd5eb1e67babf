package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

type layoutEntry struct {
	layout   vk.DescriptorSetLayout
	bindings []vk.DescriptorSetLayoutBinding
}

// DescriptorLayoutCache deduplicates descriptor set layouts by their binding
// list. Two identical, identically ordered binding lists share one handle.
// The cache is not safe for concurrent use.
type DescriptorLayoutCache struct {
	context   *VulkanContext
	layouts   map[uint64]layoutEntry
	destroyed bool
}

func NewDescriptorLayoutCache(context *VulkanContext) *DescriptorLayoutCache {
	return &DescriptorLayoutCache{
		context: context,
		layouts: make(map[uint64]layoutEntry),
	}
}

// layoutKey folds each binding tuple into a 64 bit key. Order matters.
func layoutKey(bindings []vk.DescriptorSetLayoutBinding) uint64 {
	var key uint64
	for _, b := range bindings {
		value := uint64(b.Binding)<<32 | uint64(b.DescriptorType)<<16 | uint64(b.StageFlags)
		key = (key << 1) ^ value
	}
	return key
}

func sameBindings(a, b []vk.DescriptorSetLayoutBinding) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Binding != b[i].Binding ||
			a[i].DescriptorType != b[i].DescriptorType ||
			a[i].StageFlags != b[i].StageFlags {
			return false
		}
	}
	return true
}

// CreateLayout returns the cached layout for bindings, creating it on first
// use. A key hit whose stored bindings differ returns ErrLayoutHashCollision.
func (c *DescriptorLayoutCache) CreateLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	if c.destroyed {
		return nil, core.ErrCacheDestroyed
	}

	key := layoutKey(bindings)
	if entry, ok := c.layouts[key]; ok {
		if !sameBindings(entry.bindings, bindings) {
			err := errors.Wrapf(core.ErrLayoutHashCollision, "key %#x", key)
			core.LogError(err.Error())
			return nil, err
		}
		return entry.layout, nil
	}

	stored := append([]vk.DescriptorSetLayoutBinding(nil), bindings...)
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(stored)),
		PBindings:    stored,
	}
	layout, res := c.context.Driver.CreateDescriptorSetLayout(&info)
	if res != vk.Success {
		err := errors.Newf("vkCreateDescriptorSetLayout failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	c.layouts[key] = layoutEntry{layout: layout, bindings: stored}
	return layout, nil
}

// DestroyLayouts destroys every cached layout. The cache refuses new layouts
// until Reinitialize is called.
func (c *DescriptorLayoutCache) DestroyLayouts() {
	for key, entry := range c.layouts {
		c.context.Driver.DestroyDescriptorSetLayout(entry.layout)
		delete(c.layouts, key)
	}
	c.destroyed = true
}

func (c *DescriptorLayoutCache) Reinitialize() {
	c.layouts = make(map[uint64]layoutEntry)
	c.destroyed = false
}

func (c *DescriptorLayoutCache) Len() int {
	return len(c.layouts)
}
