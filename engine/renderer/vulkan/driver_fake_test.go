package vulkan

import (
	"sync"
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/config"
)

// vk handle types point at incomplete C structs, so the collector does not
// see them as references; the backing words stay reachable from here.
var (
	handlesMu sync.Mutex
	handles   []*uint64
)

// newHandle returns a unique non-nil pointer usable as any fake Vulkan handle.
func newHandle() unsafe.Pointer {
	h := new(uint64)
	handlesMu.Lock()
	handles = append(handles, h)
	handlesMu.Unlock()
	return unsafe.Pointer(h)
}

type fakePool struct {
	maxSets   uint32
	sizes     map[vk.DescriptorType]uint32
	allocated uint32
	used      map[vk.DescriptorType]uint32
}

type fakeSwapchain struct {
	images   []vk.Image
	nextIdx  uint32
	info     vk.SwapchainCreateInfo
	oldChain vk.Swapchain
}

// fakeDriver is an in-memory stand-in for a logical device. Submitting with a
// fence signals it immediately. Every entry point holds mu so submit contexts
// can be exercised from several goroutines.
type fakeDriver struct {
	mu sync.Mutex

	layouts map[vk.DescriptorSetLayout][]vk.DescriptorSetLayoutBinding
	pools   map[vk.DescriptorPool]*fakePool

	createdLayouts, destroyedLayouts int
	createdPools, destroyedPools     int
	resetPools                       int
	allocations                      int
	updateCalls                      int
	lastWrites                       []vk.WriteDescriptorSet

	capabilities vk.SurfaceCapabilities
	formats      []vk.SurfaceFormat
	swapchains   map[vk.Swapchain]*fakeSwapchain
	liveViews    map[vk.ImageView]bool

	createdSwapchains, destroyedSwapchains int
	createdViews, destroyedViews           int
	destroyOrder                           []string

	// 1-based CreateImageView call that fails, 0 never
	failViewAt int

	// one-shot overrides, cleared after use
	acquireResult vk.Result
	presentResult vk.Result
	presents      int

	fences          map[vk.Fence]bool
	liveSemaphores  int
	createdFences   int
	destroyedFences int
	fenceResets     int

	commandPools     int
	liveCommandPools int
	resets           []vk.CommandBufferResetFlags
	begins           []vk.CommandBufferUsageFlags
	ends             int
	submits          []vk.SubmitInfo
	submitFences     []vk.Fence
	queueWaits       int
	deviceWaits      int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		layouts:    map[vk.DescriptorSetLayout][]vk.DescriptorSetLayoutBinding{},
		pools:      map[vk.DescriptorPool]*fakePool{},
		swapchains: map[vk.Swapchain]*fakeSwapchain{},
		liveViews:  map[vk.ImageView]bool{},
		fences:     map[vk.Fence]bool{},
		capabilities: vk.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  vk.Extent2D{Width: 800, Height: 600},
			MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
		},
		formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
	}
}

func (d *fakeDriver) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout := vk.DescriptorSetLayout(newHandle())
	d.layouts[layout] = append([]vk.DescriptorSetLayoutBinding(nil), info.PBindings...)
	d.createdLayouts++
	return layout, vk.Success
}

func (d *fakeDriver) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.layouts, layout)
	d.destroyedLayouts++
}

func (d *fakeDriver) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pool := vk.DescriptorPool(newHandle())
	p := &fakePool{
		maxSets: info.MaxSets,
		sizes:   map[vk.DescriptorType]uint32{},
		used:    map[vk.DescriptorType]uint32{},
	}
	for _, size := range info.PPoolSizes {
		p.sizes[size.Type] += size.DescriptorCount
	}
	d.pools[pool] = p
	d.createdPools++
	return pool, vk.Success
}

func (d *fakeDriver) ResetDescriptorPool(pool vk.DescriptorPool) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.pools[pool]
	p.allocated = 0
	p.used = map[vk.DescriptorType]uint32{}
	d.resetPools++
	return vk.Success
}

func (d *fakeDriver) DestroyDescriptorPool(pool vk.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.pools, pool)
	d.destroyedPools++
}

func (d *fakeDriver) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pools[pool]
	if !ok {
		return nil, vk.ErrorUnknown
	}
	if p.allocated >= p.maxSets {
		return nil, vk.ErrorOutOfPoolMemory
	}
	need := map[vk.DescriptorType]uint32{}
	for _, b := range d.layouts[layout] {
		need[b.DescriptorType] += b.DescriptorCount
	}
	for t, n := range need {
		if p.used[t]+n > p.sizes[t] {
			return nil, vk.ErrorOutOfPoolMemory
		}
	}
	for t, n := range need {
		p.used[t] += n
	}
	p.allocated++
	d.allocations++
	return vk.DescriptorSet(newHandle()), vk.Success
}

func (d *fakeDriver) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.updateCalls++
	d.lastWrites = append([]vk.WriteDescriptorSet(nil), writes...)
}

func (d *fakeDriver) SurfaceCapabilities(surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.capabilities, vk.Success
}

func (d *fakeDriver) SurfaceFormats(surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]vk.SurfaceFormat(nil), d.formats...), vk.Success
}

func (d *fakeDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handle := vk.Swapchain(newHandle())
	sc := &fakeSwapchain{info: *info, oldChain: info.OldSwapchain}
	for i := uint32(0); i < info.MinImageCount; i++ {
		sc.images = append(sc.images, vk.Image(newHandle()))
	}
	d.swapchains[handle] = sc
	d.createdSwapchains++
	return handle, vk.Success
}

func (d *fakeDriver) DestroySwapchain(swapchain vk.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.swapchains, swapchain)
	d.destroyedSwapchains++
	d.destroyOrder = append(d.destroyOrder, "swapchain")
}

func (d *fakeDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sc, ok := d.swapchains[swapchain]
	if !ok {
		return nil, vk.ErrorUnknown
	}
	return append([]vk.Image(nil), sc.images...), vk.Success
}

func (d *fakeDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.createdViews++
	if d.failViewAt != 0 && d.createdViews == d.failViewAt {
		return nil, vk.ErrorOutOfDeviceMemory
	}
	view := vk.ImageView(newHandle())
	d.liveViews[view] = true
	return view, vk.Success
}

func (d *fakeDriver) DestroyImageView(view vk.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.liveViews, view)
	d.destroyedViews++
	d.destroyOrder = append(d.destroyOrder, "view")
}

func (d *fakeDriver) AcquireNextImage(swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res := d.acquireResult
	d.acquireResult = vk.Success
	if res != vk.Success && res != vk.Suboptimal {
		return 0, res
	}
	sc := d.swapchains[swapchain]
	idx := sc.nextIdx
	sc.nextIdx = (sc.nextIdx + 1) % uint32(len(sc.images))
	return idx, res
}

func (d *fakeDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.presents++
	res := d.presentResult
	d.presentResult = vk.Success
	return res
}

func (d *fakeDriver) CreateFence(signaled bool) (vk.Fence, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fence := vk.Fence(newHandle())
	d.fences[fence] = signaled
	d.createdFences++
	return fence, vk.Success
}

func (d *fakeDriver) DestroyFence(fence vk.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.fences, fence)
	d.destroyedFences++
}

func (d *fakeDriver) WaitForFence(fence vk.Fence, timeout uint64) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fences[fence] {
		return vk.Success
	}
	// nothing is pending on an unsignaled fence, a real device would block
	return vk.Timeout
}

func (d *fakeDriver) ResetFence(fence vk.Fence) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fences[fence] = false
	d.fenceResets++
	return vk.Success
}

func (d *fakeDriver) FenceStatus(fence vk.Fence) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fences[fence] {
		return vk.Success
	}
	return vk.NotReady
}

func (d *fakeDriver) CreateSemaphore() (vk.Semaphore, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.liveSemaphores++
	return vk.Semaphore(newHandle()), vk.Success
}

func (d *fakeDriver) DestroySemaphore(semaphore vk.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.liveSemaphores--
}

func (d *fakeDriver) CreateCommandPool(queueFamily uint32, flags vk.CommandPoolCreateFlags) (vk.CommandPool, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.commandPools++
	d.liveCommandPools++
	return vk.CommandPool(newHandle()), vk.Success
}

func (d *fakeDriver) DestroyCommandPool(pool vk.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.liveCommandPools--
}

func (d *fakeDriver) AllocateCommandBuffer(pool vk.CommandPool, level vk.CommandBufferLevel) (vk.CommandBuffer, vk.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return vk.CommandBuffer(newHandle()), vk.Success
}

func (d *fakeDriver) FreeCommandBuffer(pool vk.CommandPool, buffer vk.CommandBuffer) {}

func (d *fakeDriver) ResetCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferResetFlags) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resets = append(d.resets, flags)
	return vk.Success
}

func (d *fakeDriver) BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.begins = append(d.begins, flags)
	return vk.Success
}

func (d *fakeDriver) EndCommandBuffer(buffer vk.CommandBuffer) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ends++
	return vk.Success
}

func (d *fakeDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.submits = append(d.submits, submits...)
	d.submitFences = append(d.submitFences, fence)
	if fence != vk.NullFence {
		d.fences[fence] = true
	}
	return vk.Success
}

func (d *fakeDriver) QueueWaitIdle(queue vk.Queue) vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.queueWaits++
	return vk.Success
}

func (d *fakeDriver) DeviceWaitIdle() vk.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deviceWaits++
	return vk.Success
}

// newTestContext wires a fake driver into a context with distinct graphics,
// compute and transfer queues.
func newTestContext(t *testing.T, d *fakeDriver) *VulkanContext {
	t.Helper()
	ctx := &VulkanContext{
		cfg:      config.Default(),
		Driver:   d,
		Surface:  vk.Surface(newHandle()),
		lockPool: NewVulkanLockPool(),
		Device: &VulkanDevice{
			GraphicsQueueIndex: 0,
			PresentQueueIndex:  0,
			ComputeQueueIndex:  1,
			TransferQueueIndex: 2,
			GraphicsQueue:      vk.Queue(newHandle()),
			ComputeQueue:       vk.Queue(newHandle()),
			TransferQueue:      vk.Queue(newHandle()),
		},
	}
	ctx.Device.PresentQueue = ctx.Device.GraphicsQueue
	for _, family := range []uint32{0, 1, 2} {
		ctx.lockPool.SetQueueFamily(family)
	}
	ctx.FramebufferSize = func() (uint32, uint32) { return 800, 600 }
	return ctx
}
