package engine

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/vktogo/engine/assets"
	"github.com/spaghettifunk/vktogo/engine/config"
	"github.com/spaghettifunk/vktogo/engine/core"
	"github.com/spaghettifunk/vktogo/engine/platform"
	"github.com/spaghettifunk/vktogo/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	cfg          config.Config
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool
	isSuspended  bool

	events       *core.EventSystem
	platform     *platform.Platform
	assetManager *assets.AssetManager
	context      *vulkan.VulkanContext
	renderer     *vulkan.Renderer
}

func New(cfg config.Config, g *Game) (*Engine, error) {
	if g == nil || g.FnRender == nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "game has no render callback")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	events := core.NewEventSystem()
	return &Engine{
		cfg:          cfg,
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		events:       events,
		platform:     platform.New(events),
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Events() *core.EventSystem {
	return e.events
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	e.events.Register(core.EventCodeApplicationQuit, e, e.onEvent)
	e.events.Register(core.EventCodeKeyPressed, e, e.onKey)
	e.events.Register(core.EventCodeResized, e, e.onResized)

	if err := e.platform.Startup(e.cfg.Window); err != nil {
		return err
	}

	ctx, err := vulkan.NewContext(e.cfg, e.platform)
	if err != nil {
		return err
	}
	e.context = ctx

	if e.renderer, err = vulkan.NewRenderer(ctx); err != nil {
		return err
	}

	if e.cfg.Renderer.HotReloadShaders && e.cfg.Renderer.ShaderDir != "" {
		am, err := assets.NewAssetManager()
		if err != nil {
			return err
		}
		if err := am.Initialize(e.cfg.Renderer.ShaderDir); err != nil {
			am.Close()
			core.LogWarn("shader hot reload disabled: %s", err)
		} else {
			e.assetManager = am
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.renderer); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		w, h := e.platform.FramebufferSize()
		if err := e.gameInstance.FnOnResize(w, h); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the frame loop until the window closes, ctx is cancelled or
// a callback fails.
func (e *Engine) Run(ctx context.Context) error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	for e.isRunning.Load() {
		if ctx.Err() != nil || !e.platform.PumpMessages() {
			break
		}
		if e.isSuspended {
			e.platform.WaitWhileMinimized()
			e.isSuspended = false
			continue
		}

		e.drainAssetEvents()
		e.renderer.Resized(e.platform.SizeGeneration())

		delta := e.renderer.Handler.DeltaTime()
		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				return err
			}
		}

		frame, err := e.renderer.BeginFrame()
		if err != nil {
			core.LogError("BeginFrame failed: %s", err)
			return err
		}
		if frame == nil {
			continue
		}
		if err := e.gameInstance.FnRender(frame, delta); err != nil {
			core.LogError("Game render failed, shutting down: %s", err)
			return err
		}
		if err := e.renderer.EndFrame(frame); err != nil {
			core.LogError("EndFrame failed: %s", err)
			return err
		}
	}
	e.isRunning.Store(false)
	return nil
}

// Stop asks the frame loop to return after the current frame. It is safe
// to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown releases the game, the renderer, the context and the window in
// reverse creation order.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var errs error
	if e.renderer != nil {
		_ = e.context.WaitIdle()
	}
	if e.gameInstance.FnShutdown != nil {
		errs = errors.CombineErrors(errs, e.gameInstance.FnShutdown())
	}
	if e.assetManager != nil {
		errs = errors.CombineErrors(errs, e.assetManager.Close())
		e.assetManager = nil
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
		e.renderer = nil
	}
	if e.context != nil {
		e.context.Shutdown()
		e.context = nil
	}
	e.platform.Shutdown()
	e.events.Shutdown()

	e.currentStage = EngineStageUninitialized
	return errs
}

func (e *Engine) drainAssetEvents() {
	if e.assetManager == nil {
		return
	}
	for {
		select {
		case ev := <-e.assetManager.Events():
			if ev.Removed || ev.Type != assets.AssetTypeShaderBinary {
				continue
			}
			e.events.Fire(core.EventCodeShaderChanged, e, core.EventContext{Path: ev.Path})
			if e.gameInstance.FnShaderChanged != nil {
				if err := e.gameInstance.FnShaderChanged(ev.Path); err != nil {
					core.LogWarn("shader reload of %s failed: %s", ev.Path, err)
				}
			}
		default:
			return
		}
	}
}

func (e *Engine) onEvent(code core.EventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EventCodeApplicationQuit {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.EventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if data.Key == int(glfw.KeyEscape) {
		e.platform.RequestClose()
		return e.events.Fire(core.EventCodeApplicationQuit, e, core.EventContext{})
	}
	return false
}

func (e *Engine) onResized(code core.EventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if data.Width == 0 || data.Height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	e.isSuspended = false
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(data.Width, data.Height); err != nil {
			core.LogError("resize callback failed: %s", err)
		}
	}
	return false
}
