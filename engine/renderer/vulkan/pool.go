package vulkan

import (
	"sync"

	"github.com/cockroachdb/errors"
)

type LockGroup string

const (
	PipelineManagement LockGroup = "pipeline_management"
	SamplerManagement  LockGroup = "sampler_management"
	ShaderManagement   LockGroup = "shader_management"
)

// VulkanLockPool serializes access to externally synchronized Vulkan objects.
// Queues are locked per family since a queue may be shared by several
// queue types.
type VulkanLockPool struct {
	mu           sync.Mutex // guards the maps, never held during a call
	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) groupLock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, ok := vs.locks[group]
	if !ok {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

// SafeCall runs fn while holding the mutex for group.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.groupLock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

// SafeQueueCall runs fn while holding the mutex of the queue family. The
// family must have been registered with SetQueueFamily.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	vs.mu.Lock()
	l, ok := vs.queueMutexes[queueFamilyIndex]
	vs.mu.Unlock()
	if !ok {
		return errors.Newf("queue family %d is not registered", queueFamilyIndex)
	}

	l.Lock()
	defer l.Unlock()
	return fn()
}
