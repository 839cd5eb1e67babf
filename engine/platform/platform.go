package platform

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/vktogo/engine/config"
	"github.com/spaghettifunk/vktogo/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window
	events *core.EventSystem

	// bumped on every framebuffer resize
	sizeGeneration atomic.Uint64
}

// New creates a platform that reports input and resize events to events.
func New(events *core.EventSystem) *Platform {
	return &Platform{events: events}
}

func (p *Platform) Startup(cfg config.Window) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return errors.Wrap(err, "glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	width, height := int(cfg.Width), int(cfg.Height)
	var monitor *glfw.Monitor
	if cfg.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
		if mode := monitor.GetVideoMode(); mode != nil {
			width, height = mode.Width, mode.Height
		}
	}

	window, err := glfw.CreateWindow(width, height, cfg.Title, monitor, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return errors.Wrap(err, "glfw create window")
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.Show()

	core.LogInfo("Window '%s' created (%dx%d, fullscreen=%t).", cfg.Title, width, height, cfg.Fullscreen)
	return nil
}

func (p *Platform) Shutdown() {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
}

// PumpMessages processes pending window events. It reports false once the
// window has been asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.Window.ShouldClose()
}

// WaitWhileMinimized blocks until the framebuffer has a non-zero area again.
func (p *Platform) WaitWhileMinimized() {
	w, h := p.Window.GetFramebufferSize()
	for (w == 0 || h == 0) && !p.Window.ShouldClose() {
		glfw.WaitEvents()
		w, h = p.Window.GetFramebufferSize()
	}
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

// SizeGeneration changes every time the framebuffer is resized.
func (p *Platform) SizeGeneration() uint64 {
	return p.sizeGeneration.Load()
}

func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateSurface returns the raw VkSurfaceKHR created for the window.
func (p *Platform) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "create window surface")
	}
	return surface, nil
}

// InstanceProcAddr is the loader entry point handed to the Vulkan bindings.
func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// RequestClose makes the next PumpMessages report false.
func (p *Platform) RequestClose() {
	p.Window.SetShouldClose(true)
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	switch action {
	case glfw.Press:
		p.events.Fire(core.EventCodeKeyPressed, p, core.EventContext{Key: int(key)})
	case glfw.Release:
		p.events.Fire(core.EventCodeKeyReleased, p, core.EventContext{Key: int(key)})
	}
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	gen := p.sizeGeneration.Add(1)
	core.LogDebug("framebuffer resized: %dx%d (generation %d)", width, height, gen)
	p.events.Fire(core.EventCodeResized, p, core.EventContext{Width: uint32(width), Height: uint32(height)})
}
