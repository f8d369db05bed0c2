// Image resizing with optional aspect-ratio lock
package algorithms

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	MaxResizeWidth  = 1920
	MaxResizeHeight = 1080
)

// Resize scales src to exactly w x h
func Resize(src gocv.Mat, w, h int) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), errors.Errorf("invalid target size %dx%d", w, h)
	}

	interp := gocv.InterpolationLinear
	if w < src.Cols() && h < src.Rows() {
		interp = gocv.InterpolationArea
	}

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(w, h), 0, 0, interp)
	return dst, nil
}

// ResizePercent scales both sides of src by percent/100
func ResizePercent(src gocv.Mat, percent float64) (gocv.Mat, error) {
	if percent <= 0 {
		return gocv.NewMat(), errors.Errorf("invalid scale percentage %g", percent)
	}
	w := max(1, int(math.Round(float64(src.Cols())*percent/100)))
	h := max(1, int(math.Round(float64(src.Rows())*percent/100)))
	return Resize(src, w, h)
}

// HeightForWidth returns the height that keeps a srcW x srcH aspect ratio at width w
func HeightForWidth(srcW, srcH, w int) int {
	if srcW <= 0 {
		return 0
	}
	return max(1, int(math.Round(float64(w)*float64(srcH)/float64(srcW))))
}

// WidthForHeight returns the width that keeps a srcW x srcH aspect ratio at height h
func WidthForHeight(srcW, srcH, h int) int {
	if srcH <= 0 {
		return 0
	}
	return max(1, int(math.Round(float64(h)*float64(srcW)/float64(srcH))))
}

// ResizeAlgorithm exposes Resize through the algorithm registry
type ResizeAlgorithm struct{}

// NewResizeAlgorithm creates the registry entry for resizing
func NewResizeAlgorithm() *ResizeAlgorithm {
	return &ResizeAlgorithm{}
}

func (a *ResizeAlgorithm) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	if input.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}

	w := intParam(params, "width", input.Cols())
	h := intParam(params, "height", input.Rows())
	if boolParam(params, "keep_aspect", true) {
		h = HeightForWidth(input.Cols(), input.Rows(), w)
	}
	return Resize(input, w, h)
}

func (a *ResizeAlgorithm) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"width":       800.0,
		"height":      600.0,
		"keep_aspect": true,
	}
}

func (a *ResizeAlgorithm) GetName() string {
	return "Resize"
}

func (a *ResizeAlgorithm) GetDescription() string {
	return "Resizes the image, optionally keeping its aspect ratio"
}

func (a *ResizeAlgorithm) Validate(params map[string]interface{}) error {
	if err := rangeParam(params, "width", 1, MaxResizeWidth); err != nil {
		return err
	}
	return rangeParam(params, "height", 1, MaxResizeHeight)
}

func (a *ResizeAlgorithm) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "width",
			Type:        "int",
			Min:         1.0,
			Max:         float64(MaxResizeWidth),
			Default:     800.0,
			Description: "Target width in pixels",
		},
		{
			Name:        "height",
			Type:        "int",
			Min:         1.0,
			Max:         float64(MaxResizeHeight),
			Default:     600.0,
			Description: "Target height in pixels",
		},
		{
			Name:        "keep_aspect",
			Type:        "bool",
			Default:     true,
			Description: "Derive height from width",
		},
	}
}
