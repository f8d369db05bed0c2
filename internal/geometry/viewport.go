// Letterbox viewport mapping between preview surface and image pixel space
package geometry

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidDimensions is returned when an image or surface has a non-positive side
var ErrInvalidDimensions = errors.New("invalid dimensions")

// roundingSlack absorbs float error so that an exact pixel corner maps back to itself
const roundingSlack = 1e-9

// Point is a position on the display surface. Display coordinates are not
// necessarily integral because the preview is scaled.
type Point struct {
	X, Y float64
}

// Viewport describes how an image is fitted into a display surface: uniform
// scale, centered, with letterbox bars on the unused axis.
type Viewport struct {
	Scale         float64
	OffsetX       int
	OffsetY       int
	SurfaceWidth  int
	SurfaceHeight int
	ImageWidth    int
	ImageHeight   int
}

// ComputeViewport fits an imageW x imageH image into a surfaceW x surfaceH surface
func ComputeViewport(imageW, imageH, surfaceW, surfaceH int) (Viewport, error) {
	if imageW <= 0 || imageH <= 0 {
		return Viewport{}, errors.Wrapf(ErrInvalidDimensions, "image %dx%d", imageW, imageH)
	}
	if surfaceW <= 0 || surfaceH <= 0 {
		return Viewport{}, errors.Wrapf(ErrInvalidDimensions, "surface %dx%d", surfaceW, surfaceH)
	}

	scale := math.Min(float64(surfaceW)/float64(imageW), float64(surfaceH)/float64(imageH))

	vp := Viewport{
		Scale:         scale,
		SurfaceWidth:  surfaceW,
		SurfaceHeight: surfaceH,
		ImageWidth:    imageW,
		ImageHeight:   imageH,
	}

	scaledW, scaledH := vp.ScaledSize()
	vp.OffsetX = (surfaceW - scaledW) / 2
	vp.OffsetY = (surfaceH - scaledH) / 2

	return vp, nil
}

// ScaledSize returns the size of the image once scaled into the surface.
// Both sides are at least one pixel and never exceed the surface.
func (v Viewport) ScaledSize() (int, int) {
	w := clampInt(int(math.Floor(float64(v.ImageWidth)*v.Scale+roundingSlack)), 1, v.SurfaceWidth)
	h := clampInt(int(math.Floor(float64(v.ImageHeight)*v.Scale+roundingSlack)), 1, v.SurfaceHeight)
	return w, h
}

// ToDisplaySpace maps an image pixel to its position on the surface
func (v Viewport) ToDisplaySpace(p image.Point) Point {
	return Point{
		X: float64(p.X)*v.Scale + float64(v.OffsetX),
		Y: float64(p.Y)*v.Scale + float64(v.OffsetY),
	}
}

// ToImageSpace maps a surface position to the image pixel under it. Positions
// in the letterbox bars or outside the surface are clamped to the image edge.
func (v Viewport) ToImageSpace(p Point) image.Point {
	if v.Scale <= 0 || v.ImageWidth <= 0 || v.ImageHeight <= 0 {
		return image.Point{}
	}

	x := math.Floor((p.X-float64(v.OffsetX))/v.Scale + roundingSlack)
	y := math.Floor((p.Y-float64(v.OffsetY))/v.Scale + roundingSlack)

	return image.Point{
		X: clampInt(int(clampFloat(x, -1, float64(v.ImageWidth))), 0, v.ImageWidth-1),
		Y: clampInt(int(clampFloat(y, -1, float64(v.ImageHeight))), 0, v.ImageHeight-1),
	}
}

// ImageRectToDisplay maps an image-space rectangle to surface pixels
func (v Viewport) ImageRectToDisplay(r image.Rectangle) image.Rectangle {
	minP := v.ToDisplaySpace(r.Min)
	maxP := v.ToDisplaySpace(r.Max)
	return image.Rect(
		int(math.Floor(minP.X)),
		int(math.Floor(minP.Y)),
		int(math.Ceil(maxP.X)),
		int(math.Ceil(maxP.Y)),
	)
}

// ImageRect returns the area of the surface covered by the image
func (v Viewport) ImageRect() image.Rectangle {
	w, h := v.ScaledSize()
	return image.Rect(v.OffsetX, v.OffsetY, v.OffsetX+w, v.OffsetY+h)
}

// clampFloat keeps huge values in range before int conversion.
func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
