package testbed

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestRasterizeHUDIsTightlyPacked(t *testing.T) {
	img := rasterizeHUD("60 fps", "frame 1")
	if img.Bounds().Dx() != hudWidth || img.Bounds().Dy() != hudHeight {
		t.Fatalf("unexpected HUD size %v", img.Bounds())
	}
	if img.Stride != hudWidth*4 {
		t.Fatalf("stride = %d, want %d", img.Stride, hudWidth*4)
	}
	if len(img.Pix) != hudWidth*hudHeight*4 {
		t.Fatalf("pixel buffer is %d bytes", len(img.Pix))
	}
}

func TestRasterizeHUDDrawsText(t *testing.T) {
	blank := rasterizeHUD()
	text := rasterizeHUD("vktogo")

	differs := 0
	for i := range blank.Pix {
		if blank.Pix[i] != text.Pix[i] {
			differs++
		}
	}
	if differs == 0 {
		t.Fatal("text did not change any pixel")
	}
	if got := blank.RGBAAt(0, 0); got != hudBackground {
		t.Fatalf("background = %v, want %v", got, hudBackground)
	}
}

func TestTextWidth(t *testing.T) {
	// basicfont.Face7x13 advances 7 pixels per glyph.
	if got := textWidth("abcd"); got != 28 {
		t.Fatalf("textWidth = %d, want 28", got)
	}
	if textWidth("") != 0 {
		t.Fatal("empty string should have no width")
	}
}

func TestHUDRect(t *testing.T) {
	if got := hudRect(0, 600); got != (mgl32.Vec4{}) {
		t.Fatalf("zero width should collapse the rect, got %v", got)
	}
	got := hudRect(512, 64)
	want := mgl32.Vec4{-1 + 16.0/512, -1 + 16.0/64, 1, 1}
	if !got.ApproxEqual(want) {
		t.Fatalf("hudRect = %v, want %v", got, want)
	}
}

func TestVertexBytes(t *testing.T) {
	if vertexBytes(nil) != nil {
		t.Fatal("nil vertices should give nil bytes")
	}
	if got := len(vertexBytes(triangleVertices)); got != 3*20 {
		t.Fatalf("vertex data is %d bytes, want 60", got)
	}
	m := mgl32.Ident4()
	if len(matrixBytes(&m)) != 64 {
		t.Fatal("a mat4 push constant is 64 bytes")
	}
	v := mgl32.Vec4{1, 2, 3, 4}
	if len(vec4Bytes(&v)) != 16 {
		t.Fatal("a vec4 push constant is 16 bytes")
	}
}
