package preview_test

import (
	"image"
	"image/color"
	"testing"

	"dsrec/internal/preview"
)

func marked() *image.RGBA {
	// 3 wide, 2 tall; red marks the top-left pixel.
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img
}

func isRed(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r == 0xffff && g == 0 && b == 0
}

func TestScaleProducesRequestedSize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	dst := preview.Scale(src, 480, 320)
	if dst.Bounds().Dx() != 480 || dst.Bounds().Dy() != 320 {
		t.Fatalf("unexpected bounds: %v", dst.Bounds())
	}
	gray := preview.ScaleGray(image.NewGray(image.Rect(0, 0, 1280, 800)), 480, 300)
	if gray.Bounds().Dx() != 480 || gray.Bounds().Dy() != 300 {
		t.Fatalf("unexpected gray bounds: %v", gray.Bounds())
	}
}

func TestRotate90CCW(t *testing.T) {
	dst := preview.Rotate90CCW(marked())
	if dst.Bounds().Dx() != 2 || dst.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds: %v", dst.Bounds())
	}
	if !isRed(dst.At(0, 2)) {
		t.Fatal("expected top-left to move to bottom-left")
	}
}

func TestRotate90CW(t *testing.T) {
	dst := preview.Rotate90CW(marked())
	if dst.Bounds().Dx() != 2 || dst.Bounds().Dy() != 3 {
		t.Fatalf("unexpected bounds: %v", dst.Bounds())
	}
	if !isRed(dst.At(1, 0)) {
		t.Fatal("expected top-left to move to top-right")
	}
}

func TestFlipHorizontalKeepsGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 1))
	src.SetGray(0, 0, color.Gray{Y: 200})
	dst := preview.FlipHorizontal(src)
	if _, ok := dst.(*image.Gray); !ok {
		t.Fatalf("expected gray output, got %T", dst)
	}
	if got := dst.(*image.Gray).GrayAt(2, 0).Y; got != 200 {
		t.Fatalf("expected mirrored pixel, got %d", got)
	}
}
