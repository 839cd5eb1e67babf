package vulkan

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

func TestSubmitContextUsesQueueFamily(t *testing.T) {
	d := newFakeDriver()
	ctx := newTestContext(t, d)

	for queueType, family := range map[QueueType]uint32{QueueGraphics: 0, QueueCompute: 1, QueueTransfer: 2} {
		sc, err := NewSubmitContext(ctx, queueType)
		if err != nil {
			t.Fatalf("NewSubmitContext(%s): %v", queueType, err)
		}
		if sc.family != family || sc.pool.QueueFamily != family {
			t.Errorf("%s context on family %d, want %d", queueType, sc.family, family)
		}
		sc.Destroy()
	}
	if d.liveCommandPools != 0 {
		t.Errorf("%d command pools leaked", d.liveCommandPools)
	}
}

func TestSubmitContextExecute(t *testing.T) {
	d := newFakeDriver()
	ctx := newTestContext(t, d)
	sc, err := NewSubmitContext(ctx, QueueTransfer)
	if err != nil {
		t.Fatalf("NewSubmitContext: %v", err)
	}
	defer sc.Destroy()

	var recorded vk.CommandBuffer
	err = sc.Execute(time.Second, func(cmd vk.CommandBuffer) error {
		recorded = cmd
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if recorded != sc.CommandBuffer() {
		t.Error("callback did not receive the context command buffer")
	}
	if len(d.submits) != 1 || d.submitFences[0] != sc.Fence().Handle {
		t.Fatalf("expected one submit with the context fence, got %d", len(d.submits))
	}
	if d.submits[0].WaitSemaphoreCount != 0 || d.submits[0].SignalSemaphoreCount != 0 {
		t.Error("submit context submits must not use semaphores")
	}
	if len(d.begins) != 1 || d.begins[0] != vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit) {
		t.Errorf("begin flags = %v, want one time submit", d.begins)
	}
	if !sc.Fence().IsSignaled || sc.cmd.State != CommandBufferStateReady {
		t.Error("context not ready for reuse after Execute")
	}

	// reuse resets the fence before recording again
	if err := sc.Execute(time.Second, func(vk.CommandBuffer) error { return nil }); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if d.fenceResets != 2 || len(d.submits) != 2 {
		t.Errorf("resets %d submits %d, want 2 each", d.fenceResets, len(d.submits))
	}
}

func TestSubmitContextExecuteCallbackError(t *testing.T) {
	d := newFakeDriver()
	sc, err := NewSubmitContext(newTestContext(t, d), QueueGraphics)
	if err != nil {
		t.Fatalf("NewSubmitContext: %v", err)
	}
	defer sc.Destroy()

	boom := errors.New("boom")
	err = sc.Execute(time.Second, func(vk.CommandBuffer) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if len(d.submits) != 0 {
		t.Error("failed recording must not be submitted")
	}
	if d.ends != 1 {
		t.Errorf("command buffer was not ended after the failure")
	}
}

func TestSubmitContextWaitTimeout(t *testing.T) {
	d := newFakeDriver()
	sc, err := NewSubmitContext(newTestContext(t, d), QueueGraphics)
	if err != nil {
		t.Fatalf("NewSubmitContext: %v", err)
	}
	defer sc.Destroy()

	if err := sc.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := sc.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	// never submitted, so the fence is never signaled
	if err := sc.Wait(time.Millisecond); err == nil {
		t.Fatal("expected a timeout")
	}
}

func TestSubmitContextsConcurrent(t *testing.T) {
	d := newFakeDriver()
	ctx := newTestContext(t, d)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(queueType QueueType) {
			defer wg.Done()
			sc, err := NewSubmitContext(ctx, queueType)
			if err != nil {
				errs <- err
				return
			}
			defer sc.Destroy()
			for n := 0; n < 10; n++ {
				if err := sc.Execute(time.Second, func(vk.CommandBuffer) error { return nil }); err != nil {
					errs <- err
					return
				}
			}
		}(QueueType(i % 3))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("worker failed: %v", err)
	}
	if len(d.submits) != workers*10 {
		t.Errorf("submits = %d, want %d", len(d.submits), workers*10)
	}
}

func TestSubmitContextBeginUnsignalsFence(t *testing.T) {
	d := newFakeDriver()
	sc, err := NewSubmitContext(newTestContext(t, d), QueueGraphics)
	if err != nil {
		t.Fatalf("NewSubmitContext: %v", err)
	}
	defer sc.Destroy()

	if sc.Fence().IsSignaled {
		t.Fatal("submit context fence must start unsignaled")
	}
	if err := sc.Execute(time.Second, func(vk.CommandBuffer) error { return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !d.fences[sc.Fence().Handle] {
		t.Fatal("fence not signaled after Execute")
	}

	if err := sc.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if sc.Fence().IsSignaled || d.fences[sc.Fence().Handle] {
		t.Error("Begin on a signaled fence should leave it unsignaled")
	}
	if sc.cmd.State != CommandBufferStateRecording {
		t.Errorf("command buffer is %s after Begin", sc.cmd.State)
	}
	if last := d.resets[len(d.resets)-1]; last != vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit) {
		t.Errorf("Begin reset flags = %#x, want release resources", last)
	}
}
