package vulkan

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vktogo/engine/core"
)

func newTestSwapchain(t *testing.T, d *fakeDriver) (*VulkanContext, *Swapchain) {
	t.Helper()
	ctx := newTestContext(t, d)
	sc, err := PrepareSwapchain(ctx)
	if err != nil {
		t.Fatalf("PrepareSwapchain: %v", err)
	}
	if err := sc.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return ctx, sc
}

func TestPrepareSwapchainPrefersSrgb(t *testing.T) {
	d := newFakeDriver()
	sc, err := PrepareSwapchain(newTestContext(t, d))
	if err != nil {
		t.Fatalf("PrepareSwapchain: %v", err)
	}
	if sc.Format != vk.FormatB8g8r8a8Srgb {
		t.Errorf("format = %d, want B8G8R8A8_SRGB", sc.Format)
	}
	if sc.ImageCount != 3 {
		t.Errorf("image count = %d, want min+1 = 3", sc.ImageCount)
	}
	if sc.Handle != vk.NullSwapchain || sc.IsValid {
		t.Errorf("prepare must not create the swapchain")
	}
}

func TestPrepareSwapchainClampsImageCount(t *testing.T) {
	d := newFakeDriver()
	d.capabilities.MinImageCount = 3
	d.capabilities.MaxImageCount = 3
	d.formats = d.formats[:1]

	sc, err := PrepareSwapchain(newTestContext(t, d))
	if err != nil {
		t.Fatalf("PrepareSwapchain: %v", err)
	}
	if sc.ImageCount != 3 {
		t.Errorf("image count = %d, want 3", sc.ImageCount)
	}
	if sc.Format != vk.FormatB8g8r8a8Unorm {
		t.Errorf("without sRGB the first format is used, got %d", sc.Format)
	}
}

func TestPrepareSwapchainWithoutFormats(t *testing.T) {
	d := newFakeDriver()
	d.formats = nil
	if _, err := PrepareSwapchain(newTestContext(t, d)); err == nil {
		t.Fatal("expected an error for a surface without formats")
	}
}

func TestSwapchainCreate(t *testing.T) {
	d := newFakeDriver()
	_, sc := newTestSwapchain(t, d)

	if !sc.IsValid {
		t.Error("swapchain should be valid after Create")
	}
	if len(sc.Images) != 3 || len(sc.Views) != 3 || len(d.liveViews) != 3 {
		t.Errorf("images %d views %d live %d, want 3 each", len(sc.Images), len(sc.Views), len(d.liveViews))
	}
	if sc.Extent.Width != 800 || sc.Extent.Height != 600 {
		t.Errorf("extent = %dx%d, want 800x600", sc.Extent.Width, sc.Extent.Height)
	}
	if info := d.swapchains[sc.Handle].info; info.OldSwapchain != vk.NullSwapchain {
		t.Error("first swapchain must not reference an old one")
	}
	seen := map[vk.ImageView]bool{}
	for i, view := range sc.Views {
		if seen[view] {
			t.Errorf("view %d repeats an earlier handle", i)
		}
		seen[view] = true
	}
}

func TestSwapchainRecreateRetiresOldHandle(t *testing.T) {
	d := newFakeDriver()
	_, sc := newTestSwapchain(t, d)
	old := sc.Handle
	oldViews := append([]vk.ImageView(nil), sc.Views...)
	d.destroyOrder = nil

	d.capabilities.CurrentExtent = vk.Extent2D{Width: 1024, Height: 768}
	sc.IsValid = false
	if err := sc.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if sc.Handle == old {
		t.Fatal("recreate kept the old handle")
	}
	if got := d.swapchains[sc.Handle].oldChain; got != old {
		t.Errorf("new swapchain was not created from the old one")
	}
	if _, alive := d.swapchains[old]; alive {
		t.Error("old swapchain was not destroyed")
	}
	// views of the old chain go before the old chain itself
	want := []string{"view", "view", "view", "swapchain"}
	if len(d.destroyOrder) != len(want) {
		t.Fatalf("destroy order = %v, want %v", d.destroyOrder, want)
	}
	for i := range want {
		if d.destroyOrder[i] != want[i] {
			t.Fatalf("destroy order = %v, want %v", d.destroyOrder, want)
		}
	}
	if !sc.IsValid || sc.Extent.Width != 1024 || len(d.liveViews) != 3 {
		t.Errorf("unexpected state after recreate: valid=%v extent=%v views=%d", sc.IsValid, sc.Extent, len(d.liveViews))
	}
	for i, view := range sc.Views {
		for _, prev := range oldViews {
			if view == prev {
				t.Errorf("view %d reuses a handle of the retired chain", i)
			}
		}
		if !d.liveViews[view] {
			t.Errorf("view %d is not alive", i)
		}
	}
}

func TestSwapchainRecreateOnZeroSurfaceInvalidates(t *testing.T) {
	d := newFakeDriver()
	_, sc := newTestSwapchain(t, d)
	old := sc.Handle

	d.capabilities.CurrentExtent = vk.Extent2D{Width: 0, Height: 0}
	if err := sc.Create(); !errors.Is(err, core.ErrSwapchainBooting) {
		t.Fatalf("expected ErrSwapchainBooting, got %v", err)
	}
	if sc.IsValid {
		t.Error("swapchain without views must not be valid")
	}
	if len(sc.Views) != 0 || len(d.liveViews) != 0 {
		t.Errorf("views %d live %d, want none", len(sc.Views), len(d.liveViews))
	}
	if sc.Extent.Width != 800 || sc.Extent.Height != 600 {
		t.Errorf("extent = %dx%d, the last good extent should be kept", sc.Extent.Width, sc.Extent.Height)
	}
	if sc.Handle != old {
		t.Error("the old handle should be kept for the next recreate")
	}

	d.capabilities.CurrentExtent = vk.Extent2D{Width: 640, Height: 480}
	if err := sc.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !sc.IsValid || len(d.liveViews) != 3 || d.swapchains[sc.Handle].oldChain != old {
		t.Errorf("recreate after booting: valid=%v views=%d", sc.IsValid, len(d.liveViews))
	}
	if _, alive := d.swapchains[old]; alive {
		t.Error("old swapchain was not destroyed")
	}
}

func TestSwapchainRecreateViewFailureReleasesChains(t *testing.T) {
	d := newFakeDriver()
	_, sc := newTestSwapchain(t, d)
	old := sc.Handle

	// second view of the new chain
	d.failViewAt = d.createdViews + 2
	if err := sc.Create(); err == nil {
		t.Fatal("expected the image view failure to be reported")
	}
	if sc.IsValid || len(sc.Views) != 0 {
		t.Errorf("failed recreate left valid=%v views=%d", sc.IsValid, len(sc.Views))
	}
	if len(d.liveViews) != 0 {
		t.Errorf("%d image views leaked", len(d.liveViews))
	}
	if _, alive := d.swapchains[old]; alive {
		t.Error("retired swapchain leaked")
	}
	if len(d.swapchains) != 1 || d.swapchains[sc.Handle] == nil {
		t.Fatalf("want only the new chain alive, have %d", len(d.swapchains))
	}

	sc.Destroy()
	if len(d.swapchains) != 0 {
		t.Errorf("%d swapchains left after Destroy", len(d.swapchains))
	}
}

func TestSwapchainCreateZeroExtentIsBooting(t *testing.T) {
	d := newFakeDriver()
	d.capabilities.CurrentExtent = vk.Extent2D{Width: 0, Height: 0}
	ctx := newTestContext(t, d)
	sc, err := PrepareSwapchain(ctx)
	if err != nil {
		t.Fatalf("PrepareSwapchain: %v", err)
	}

	err = sc.Create()
	if !errors.Is(err, core.ErrSwapchainBooting) {
		t.Fatalf("expected ErrSwapchainBooting, got %v", err)
	}
	if d.createdSwapchains != 0 || sc.IsValid {
		t.Error("no swapchain should exist for a zero sized surface")
	}
}

func TestSwapchainUndefinedExtentUsesFramebuffer(t *testing.T) {
	d := newFakeDriver()
	d.capabilities.CurrentExtent = vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}
	d.capabilities.MaxImageExtent = vk.Extent2D{Width: 640, Height: 4096}
	ctx := newTestContext(t, d)
	ctx.FramebufferSize = func() (uint32, uint32) { return 1280, 720 }

	sc, err := PrepareSwapchain(ctx)
	if err != nil {
		t.Fatalf("PrepareSwapchain: %v", err)
	}
	if err := sc.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sc.Extent.Width != 640 || sc.Extent.Height != 720 {
		t.Errorf("extent = %dx%d, want 640x720", sc.Extent.Width, sc.Extent.Height)
	}
}

func TestSwapchainNextImage(t *testing.T) {
	d := newFakeDriver()
	ctx, sc := newTestSwapchain(t, d)
	sem, _ := NewSemaphore(ctx)

	for want := uint32(0); want < 4; want++ {
		idx, ok, err := sc.NextImage(sem)
		if err != nil || !ok {
			t.Fatalf("NextImage: ok=%v err=%v", ok, err)
		}
		if idx != want%3 {
			t.Errorf("index = %d, want %d", idx, want%3)
		}
	}

	d.acquireResult = vk.Suboptimal
	if _, ok, err := sc.NextImage(sem); !ok || err != nil {
		t.Errorf("suboptimal acquire should still succeed: ok=%v err=%v", ok, err)
	}

	d.acquireResult = vk.ErrorOutOfDate
	_, ok, err := sc.NextImage(sem)
	if ok || err != nil {
		t.Fatalf("out of date acquire: ok=%v err=%v", ok, err)
	}
	if sc.IsValid {
		t.Error("out of date acquire must invalidate the swapchain")
	}

	d.acquireResult = vk.ErrorDeviceLost
	if _, _, err := sc.NextImage(sem); !errors.Is(err, core.ErrDeviceLost) {
		t.Errorf("expected ErrDeviceLost, got %v", err)
	}
}

func TestSwapchainNotCreated(t *testing.T) {
	d := newFakeDriver()
	sc, err := PrepareSwapchain(newTestContext(t, d))
	if err != nil {
		t.Fatalf("PrepareSwapchain: %v", err)
	}
	if _, _, err := sc.NextImage(nil); !errors.Is(err, core.ErrSwapchainNotCreated) {
		t.Errorf("NextImage: expected ErrSwapchainNotCreated, got %v", err)
	}
	if _, err := sc.Present(nil, nil, 0); !errors.Is(err, core.ErrSwapchainNotCreated) {
		t.Errorf("Present: expected ErrSwapchainNotCreated, got %v", err)
	}
}

func TestSwapchainPresent(t *testing.T) {
	d := newFakeDriver()
	ctx, sc := newTestSwapchain(t, d)
	sem, _ := NewSemaphore(ctx)
	queue := ctx.Device.PresentQueue

	ok, err := sc.Present(queue, sem, 0)
	if !ok || err != nil {
		t.Fatalf("Present: ok=%v err=%v", ok, err)
	}

	d.presentResult = vk.Suboptimal
	if ok, err := sc.Present(queue, sem, 1); ok || err != nil || sc.IsValid {
		t.Errorf("suboptimal present: ok=%v err=%v valid=%v", ok, err, sc.IsValid)
	}

	sc.IsValid = true
	d.capabilities.CurrentExtent = vk.Extent2D{Width: 801, Height: 600}
	if ok, err := sc.Present(queue, sem, 2); ok || err != nil || sc.IsValid {
		t.Errorf("resized surface: ok=%v err=%v valid=%v", ok, err, sc.IsValid)
	}
	if d.presents != 3 {
		t.Errorf("presents = %d, want 3", d.presents)
	}
}

func TestSwapchainDestroy(t *testing.T) {
	d := newFakeDriver()
	_, sc := newTestSwapchain(t, d)

	sc.Destroy()
	if len(d.liveViews) != 0 || len(d.swapchains) != 0 {
		t.Errorf("views %d swapchains %d left alive", len(d.liveViews), len(d.swapchains))
	}
	if sc.Handle != vk.NullSwapchain || sc.IsValid || sc.Images != nil {
		t.Error("destroyed swapchain still looks usable")
	}

	// a second destroy is a no-op
	sc.Destroy()
	if d.destroyedSwapchains != 1 {
		t.Errorf("destroyed %d swapchains, want 1", d.destroyedSwapchains)
	}
}
