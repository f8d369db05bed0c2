package segmentation

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	DefaultIterations = 5
	MinIterations     = 1
	MaxIterations     = 10

	// gmmModelSize is the length of an OpenCV grabcut appearance model row
	gmmModelSize = 65
)

// RectSeededCut runs OpenCV grabcut seeded with a rectangle. Appearance
// models start from zero on every call.
type RectSeededCut struct{}

// NewRectSeededCut creates the rectangle-seeded graph-cut backend
func NewRectSeededCut() *RectSeededCut {
	return &RectSeededCut{}
}

func (g *RectSeededCut) Name() string {
	return KindRectSeededCut.String()
}

// ClampIterations maps 0 to the default and keeps the count in [1,10]
func ClampIterations(n int) int {
	switch {
	case n == 0:
		return DefaultIterations
	case n < MinIterations:
		return MinIterations
	case n > MaxIterations:
		return MaxIterations
	}
	return n
}

// SeedRect clips seed to the image and leaves a one pixel border when the
// seed covers the whole image, so the background model has samples.
func SeedRect(seed image.Rectangle, w, h int) (image.Rectangle, error) {
	bounds := image.Rect(0, 0, w, h)
	r := seed.Canon().Intersect(bounds)
	if r == bounds {
		r = r.Inset(1)
	}
	if r.Empty() {
		return image.Rectangle{}, errors.Wrapf(ErrMissingSeed, "seed %v degenerate in %dx%d image", seed, w, h)
	}
	return r, nil
}

func (g *RectSeededCut) Segment(ctx context.Context, img gocv.Mat, seed *image.Rectangle, iterations int) (RawMask, error) {
	if seed == nil || seed.Empty() {
		return RawMask{}, ErrMissingSeed
	}
	if isEmpty(img) {
		return RawMask{}, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return RawMask{}, err
	}

	rect, err := SeedRect(*seed, img.Cols(), img.Rows())
	if err != nil {
		return RawMask{}, err
	}

	bgr, err := toBGR(img)
	if err != nil {
		return RawMask{}, err
	}
	defer bgr.Close()

	bgdModel := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 1, gmmModelSize, gocv.MatTypeCV64F)
	defer bgdModel.Close()
	fgdModel := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 1, gmmModelSize, gocv.MatTypeCV64F)
	defer fgdModel.Close()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), img.Rows(), img.Cols(), gocv.MatTypeCV8UC1)

	gocv.GrabCut(bgr, &mask, rect, &bgdModel, &fgdModel, ClampIterations(iterations), gocv.GCInitWithRect)

	if err := ctx.Err(); err != nil {
		mask.Close()
		return RawMask{}, err
	}

	return RawMask{Kind: LabelMask, Data: mask}, nil
}
