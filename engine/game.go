package engine

import (
	"github.com/spaghettifunk/vktogo/engine/renderer/vulkan"
)

// Game is the set of callbacks the engine drives. Only FnRender is
// required.
type Game struct {
	Name            string
	State           interface{}
	FnInitialize    Initialize
	FnUpdate        Update
	FnRender        Render
	FnOnResize      OnResize
	FnShaderChanged ShaderChanged
	FnShutdown      Shutdown
}

type Initialize func(r *vulkan.Renderer) error
type Update func(deltaTime float64) error
type Render func(frame *vulkan.Frame, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type ShaderChanged func(path string) error
type Shutdown func() error
