// Package preview prepares live sensor frames for the UI boundary: scaling to
// the display size, rotating for portrait layouts and mirroring.
package preview

import (
	"image"

	"golang.org/x/image/draw"
)

// Scale resizes src to exactly w×h. Previews favour speed over quality, so
// the approximate bilinear kernel is used.
func Scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if src == nil || w <= 0 || h <= 0 {
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// ScaleGray resizes a grayscale frame to exactly w×h.
func ScaleGray(src image.Image, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if src == nil || w <= 0 || h <= 0 {
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Rotate90CCW rotates src a quarter turn counter-clockwise.
func Rotate90CCW(src image.Image) draw.Image {
	b := src.Bounds()
	dst := newLike(src, image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y-b.Min.Y, b.Max.X-1-x, src.At(x, y))
		}
	}
	return dst
}

// Rotate90CW rotates src a quarter turn clockwise.
func Rotate90CW(src image.Image) draw.Image {
	b := src.Bounds()
	dst := newLike(src, image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x-b.Min.X, src.At(x, y))
		}
	}
	return dst
}

// FlipHorizontal mirrors src left to right.
func FlipHorizontal(src image.Image) draw.Image {
	b := src.Bounds()
	dst := newLike(src, image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, y-b.Min.Y, src.At(x, y))
		}
	}
	return dst
}

func newLike(src image.Image, r image.Rectangle) draw.Image {
	switch src.(type) {
	case *image.Gray:
		return image.NewGray(r)
	case *image.Gray16:
		return image.NewGray16(r)
	default:
		return image.NewRGBA(r)
	}
}
