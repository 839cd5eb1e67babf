package vulkan

import (
	vk "github.com/goki/vulkan"
)

func ColorClearValue(r, g, b, a float32) vk.ClearValue {
	var value vk.ClearValue
	value.SetColor([]float32{r, g, b, a})
	return value
}

func DepthClearValue(depth float32, stencil uint32) vk.ClearValue {
	var value vk.ClearValue
	value.SetDepthStencil(depth, stencil)
	return value
}

func CreateViewport(x, y, width, height, minDepth, maxDepth float32) vk.Viewport {
	return vk.Viewport{
		X:        x,
		Y:        y,
		Width:    width,
		Height:   height,
		MinDepth: minDepth,
		MaxDepth: maxDepth,
	}
}

func CreateScissor(x, y int32, width, height uint32) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: x, Y: y},
		Extent: vk.Extent2D{Width: width, Height: height},
	}
}

// SetViewportScissor covers extent with the dynamic viewport and scissor.
func SetViewportScissor(cmd vk.CommandBuffer, extent vk.Extent2D) {
	viewport := CreateViewport(0, 0, float32(extent.Width), float32(extent.Height), 0, 1)
	scissor := CreateScissor(0, 0, extent.Width, extent.Height)
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{scissor})
}
