package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/vktogo/engine/config"
	"github.com/spaghettifunk/vktogo/engine/core"
	"github.com/spaghettifunk/vktogo/engine/renderer/vulkan"
)

func renderNothing(*vulkan.Frame, float64) error { return nil }

func TestNewRequiresRenderCallback(t *testing.T) {
	if _, err := New(config.Default(), nil); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("nil game: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := New(config.Default(), &Game{Name: "empty"}); !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("no render callback: expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Renderer.FrameOverlap = 0
	if _, err := New(cfg, &Game{FnRender: renderNothing}); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewEngine(t *testing.T) {
	e, err := New(config.Default(), &Game{FnRender: renderNothing})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Stage() != EngineStageUninitialized {
		t.Errorf("stage = %d, want uninitialized", e.Stage())
	}
	if e.Events() == nil {
		t.Error("engine has no event system")
	}
}

func TestResizeSuspendsOnZeroArea(t *testing.T) {
	var resized [][2]uint32
	e, err := New(config.Default(), &Game{
		FnRender: renderNothing,
		FnOnResize: func(w, h uint32) error {
			resized = append(resized, [2]uint32{w, h})
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.events.Register(core.EventCodeResized, e, e.onResized)

	e.events.Fire(core.EventCodeResized, nil, core.EventContext{Width: 0, Height: 480})
	if !e.isSuspended {
		t.Error("zero width should suspend the engine")
	}
	if len(resized) != 0 {
		t.Error("the game should not see a zero sized resize")
	}

	e.events.Fire(core.EventCodeResized, nil, core.EventContext{Width: 640, Height: 480})
	if e.isSuspended {
		t.Error("a real size should resume the engine")
	}
	if len(resized) != 1 || resized[0] != [2]uint32{640, 480} {
		t.Errorf("resize callbacks = %v", resized)
	}
}

func TestQuitEventStopsLoop(t *testing.T) {
	e, err := New(config.Default(), &Game{FnRender: renderNothing})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.events.Register(core.EventCodeApplicationQuit, e, e.onEvent)
	e.isRunning.Store(true)

	if !e.events.Fire(core.EventCodeApplicationQuit, nil, core.EventContext{}) {
		t.Error("quit event was not handled")
	}
	if e.isRunning.Load() {
		t.Error("engine still running after quit")
	}

	e.isRunning.Store(true)
	e.Stop()
	if e.isRunning.Load() {
		t.Error("Stop did not clear the running flag")
	}
}
