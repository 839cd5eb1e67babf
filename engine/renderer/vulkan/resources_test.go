package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestMemoryUsage(t *testing.T) {
	tests := []struct {
		usage   MemoryUsage
		name    string
		visible bool
		flags   vk.MemoryPropertyFlagBits
	}{
		{MemoryUsageGpuOnly, "gpu_only", false, vk.MemoryPropertyDeviceLocalBit},
		{MemoryUsageCpuOnly, "cpu_only", true, vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit},
		{MemoryUsageCpuToGpu, "cpu_to_gpu", true, vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit},
		{MemoryUsageGpuToCpu, "gpu_to_cpu", true, vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit},
	}
	for _, tt := range tests {
		if tt.usage.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.usage.String(), tt.name)
		}
		if tt.usage.HostVisible() != tt.visible {
			t.Errorf("%s: HostVisible = %v", tt.name, tt.usage.HostVisible())
		}
		if tt.usage.PropertyFlags() != vk.MemoryPropertyFlags(tt.flags) {
			t.Errorf("%s: flags = %#x, want %#x", tt.name, tt.usage.PropertyFlags(), tt.flags)
		}
	}
}

func TestLayoutSync(t *testing.T) {
	access, stage := layoutSync(vk.ImageLayoutUndefined)
	if access != 0 || stage != vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit) {
		t.Errorf("undefined: access %#x stage %#x", access, stage)
	}
	access, stage = layoutSync(vk.ImageLayoutTransferDstOptimal)
	if access != vk.AccessFlags(vk.AccessTransferWriteBit) || stage != vk.PipelineStageFlags(vk.PipelineStageTransferBit) {
		t.Errorf("transfer dst: access %#x stage %#x", access, stage)
	}
	access, stage = layoutSync(vk.ImageLayoutShaderReadOnlyOptimal)
	if access != vk.AccessFlags(vk.AccessShaderReadBit) || stage&vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit) == 0 {
		t.Errorf("shader read: access %#x stage %#x", access, stage)
	}
	access, stage = layoutSync(vk.ImageLayoutPreinitialized)
	if stage != vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit) || access == 0 {
		t.Errorf("unknown layouts should fall back to a full barrier, got access %#x stage %#x", access, stage)
	}
}

func TestCreateViewportAndScissor(t *testing.T) {
	vp := CreateViewport(0, 0, 800, 600, 0, 1)
	if vp.Width != 800 || vp.Height != 600 || vp.MaxDepth != 1 {
		t.Errorf("viewport = %+v", vp)
	}
	sc := CreateScissor(-4, 8, 100, 50)
	if sc.Offset.X != -4 || sc.Offset.Y != 8 || sc.Extent.Width != 100 || sc.Extent.Height != 50 {
		t.Errorf("scissor = %+v", sc)
	}
}

func TestQueueTypeString(t *testing.T) {
	for queueType, want := range map[QueueType]string{QueueGraphics: "graphics", QueueCompute: "compute", QueueTransfer: "transfer"} {
		if queueType.String() != want {
			t.Errorf("%d.String() = %q, want %q", queueType, queueType.String(), want)
		}
	}
}

func TestCommandBufferStateString(t *testing.T) {
	if CommandBufferStateInRenderPass.String() != "in_render_pass" || CommandBufferStateNotAllocated.String() != "not_allocated" {
		t.Error("unexpected state names")
	}
}

func TestContextQueues(t *testing.T) {
	ctx := newTestContext(t, newFakeDriver())
	queue, familyIndex := ctx.Queue(QueueTransfer)
	if queue != ctx.Device.TransferQueue || familyIndex != 2 {
		t.Errorf("transfer queue on family %d", familyIndex)
	}
	queue, familyIndex = ctx.Queue(QueueGraphics)
	if queue != ctx.Device.GraphicsQueue || familyIndex != 0 {
		t.Errorf("graphics queue on family %d", familyIndex)
	}
	if err := ctx.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}

func TestFindMemoryIndex(t *testing.T) {
	ctx := newTestContext(t, newFakeDriver())
	ctx.Device.Memory.MemoryTypeCount = 3
	ctx.Device.Memory.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	ctx.Device.Memory.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	ctx.Device.Memory.MemoryTypes[2].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit | vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

	if got := ctx.FindMemoryIndex(0b111, MemoryUsageCpuOnly.PropertyFlags()); got != 1 {
		t.Errorf("host visible index = %d, want 1", got)
	}
	// type 1 filtered out by the requirements
	if got := ctx.FindMemoryIndex(0b101, MemoryUsageCpuToGpu.PropertyFlags()); got != 2 {
		t.Errorf("filtered index = %d, want 2", got)
	}
	if got := ctx.FindMemoryIndex(0b111, MemoryUsageGpuToCpu.PropertyFlags()); got != -1 {
		t.Errorf("no cached type should give -1, got %d", got)
	}
}
