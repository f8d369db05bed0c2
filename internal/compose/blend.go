package compose

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"cutout-studio/internal/geometry"
)

// Letterbox fits img into a w x h surface with uniform scale and black bars
func Letterbox(img gocv.Mat, w, h int) (gocv.Mat, geometry.Viewport, error) {
	if isEmpty(img) {
		return gocv.NewMat(), geometry.Viewport{}, ErrEmptyInput
	}

	vp, err := geometry.ComputeViewport(img.Cols(), img.Rows(), w, h)
	if err != nil {
		return gocv.NewMat(), geometry.Viewport{}, err
	}

	sw, sh := vp.ScaledSize()
	scaled := gocv.NewMat()
	defer scaled.Close()
	if sw == img.Cols() && sh == img.Rows() {
		img.CopyTo(&scaled)
	} else {
		interp := gocv.InterpolationLinear
		if sw < img.Cols() {
			interp = gocv.InterpolationArea
		}
		gocv.Resize(img, &scaled, image.Pt(sw, sh), 0, 0, interp)
	}

	dst := gocv.NewMat()
	gocv.CopyMakeBorder(scaled, &dst,
		vp.OffsetY, h-sh-vp.OffsetY,
		vp.OffsetX, w-sw-vp.OffsetX,
		gocv.BorderConstant, color.RGBA{})
	return dst, vp, nil
}

type blendOptions struct {
	marker *color.RGBA
}

// BlendOption customizes Blend
type BlendOption func(*blendOptions)

// WithMarker draws a one pixel column of c at the split position
func WithMarker(c color.RGBA) BlendOption {
	return func(o *blendOptions) {
		o.marker = &c
	}
}

// SplitColumn returns the first column taken from the second image
func SplitColumn(fraction float64, width int) int {
	return int(math.Floor(clampUnit(fraction) * float64(width)))
}

// FractionFromPointer converts a pointer x position on a width-wide
// comparison surface into a split fraction.
func FractionFromPointer(x float64, width int) float64 {
	if width <= 0 {
		return 0
	}
	return clampUnit(x / float64(width))
}

// Blend renders a split comparison of a and b on a w x h surface: columns
// left of the split come from a, the rest from b. Both images are
// letterboxed first.
func Blend(a, b gocv.Mat, fraction float64, w, h int, opts ...BlendOption) (gocv.Mat, error) {
	if isEmpty(a) {
		return gocv.NewMat(), errors.Wrap(ErrEmptyInput, "first image")
	}
	if isEmpty(b) {
		return gocv.NewMat(), errors.Wrap(ErrEmptyInput, "second image")
	}

	var o blendOptions
	for _, opt := range opts {
		opt(&o)
	}

	la, _, err := Letterbox(a, w, h)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer la.Close()

	lb, _, err := Letterbox(b, w, h)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer lb.Close()

	channels := max(la.Channels(), lb.Channels())
	left, err := convertChannels(la, channels)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer left.Close()

	dst, err := convertChannels(lb, channels)
	if err != nil {
		return gocv.NewMat(), err
	}

	split := SplitColumn(fraction, w)
	if split > 0 {
		srcROI := left.Region(image.Rect(0, 0, split, h))
		dstROI := dst.Region(image.Rect(0, 0, split, h))
		srcROI.CopyTo(&dstROI)
		srcROI.Close()
		dstROI.Close()
	}

	if o.marker != nil && split < w {
		c := o.marker
		column := dst.Region(image.Rect(split, 0, split+1, h))
		column.SetTo(gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), float64(c.A)))
		column.Close()
	}

	return dst, nil
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
