package testbed

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	hudWidth   = 256
	hudHeight  = 32
	hudPadding = 6
)

var (
	hudBackground = color.RGBA{R: 0, G: 0, B: 0, A: 160}
	hudForeground = color.RGBA{R: 230, G: 230, B: 230, A: 255}
)

// rasterizeHUD draws lines of text on a translucent panel. The result is
// tightly packed RGBA8 and can be uploaded as is.
func rasterizeHUD(lines ...string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, hudWidth, hudHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(hudBackground), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(hudForeground),
		Face: face,
	}
	lineHeight := face.Metrics().Height.Ceil()
	for i, line := range lines {
		drawer.Dot = fixed.P(hudPadding, hudPadding+face.Metrics().Ascent.Ceil()+i*lineHeight)
		drawer.DrawString(line)
	}
	return img
}

// textWidth is the pixel width of s in the HUD font.
func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}
