// Masked compositing of a cutout over a replacement background
package compose

import (
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrEmptyInput is returned when a required image is absent
	ErrEmptyInput = errors.New("empty input")
	// ErrDimensionMismatch is returned when image, mask or background sizes differ
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// White is the default replacement background
var White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Background produces the canvas a cutout is drawn onto. The returned Mat
// matches src in size and has the channel count the composite will use.
type Background interface {
	Canvas(src gocv.Mat) (gocv.Mat, error)
}

// SolidColor fills the background with one color. Gray sources are
// composited in color.
type SolidColor color.RGBA

func (c SolidColor) Canvas(src gocv.Mat) (gocv.Mat, error) {
	channels := 3
	if src.Channels() == 4 {
		channels = 4
	}
	typ := gocv.MatTypeCV8UC3
	if channels == 4 {
		typ = gocv.MatTypeCV8UC4
	}
	s := gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), float64(c.A))
	return gocv.NewMatWithSizeFromScalar(s, src.Rows(), src.Cols(), typ), nil
}

// ImageBackground uses another image of the same size as background
type ImageBackground struct {
	Image gocv.Mat
}

func (b ImageBackground) Canvas(src gocv.Mat) (gocv.Mat, error) {
	if isEmpty(b.Image) {
		return gocv.NewMat(), errors.Wrap(ErrEmptyInput, "background image")
	}
	if b.Image.Rows() != src.Rows() || b.Image.Cols() != src.Cols() {
		return gocv.NewMat(), errors.Wrapf(ErrDimensionMismatch, "background %dx%d, image %dx%d",
			b.Image.Cols(), b.Image.Rows(), src.Cols(), src.Rows())
	}
	return convertChannels(b.Image, src.Channels())
}

// Composite keeps img where mask is 1 and shows bg elsewhere
func Composite(img, mask gocv.Mat, bg Background) (gocv.Mat, error) {
	if isEmpty(img) {
		return gocv.NewMat(), errors.Wrap(ErrEmptyInput, "image")
	}
	if isEmpty(mask) {
		return gocv.NewMat(), errors.Wrap(ErrEmptyInput, "mask")
	}
	if mask.Rows() != img.Rows() || mask.Cols() != img.Cols() {
		return gocv.NewMat(), errors.Wrapf(ErrDimensionMismatch, "mask %dx%d, image %dx%d",
			mask.Cols(), mask.Rows(), img.Cols(), img.Rows())
	}
	if mask.Channels() != 1 {
		return gocv.NewMat(), errors.Errorf("mask must be single channel, got %d", mask.Channels())
	}
	if bg == nil {
		bg = SolidColor(White)
	}

	canvas, err := bg.Canvas(img)
	if err != nil {
		return gocv.NewMat(), err
	}

	src, err := convertChannels(img, canvas.Channels())
	if err != nil {
		canvas.Close()
		return gocv.NewMat(), err
	}
	defer src.Close()

	m := mask
	if mask.Type() != gocv.MatTypeCV8UC1 {
		m = gocv.NewMat()
		defer m.Close()
		mask.ConvertTo(&m, gocv.MatTypeCV8UC1)
	}

	src.CopyToWithMask(&canvas, m)
	return canvas, nil
}

// MaskPreview scales a 0/1 mask to 0/255 for display
func MaskPreview(mask gocv.Mat) (gocv.Mat, error) {
	if isEmpty(mask) {
		return gocv.NewMat(), errors.Wrap(ErrEmptyInput, "mask")
	}
	dst := gocv.NewMat()
	mask.ConvertToWithParams(&dst, gocv.MatTypeCV8UC1, 255, 0)
	return dst, nil
}

func isEmpty(m gocv.Mat) bool {
	return m.Empty() || m.Rows() == 0 || m.Cols() == 0
}

// convertChannels returns a copy of src with the requested channel count
func convertChannels(src gocv.Mat, channels int) (gocv.Mat, error) {
	dst := gocv.NewMat()
	switch from := src.Channels(); {
	case from == channels:
		src.CopyTo(&dst)
	case from == 1 && channels == 3:
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	case from == 1 && channels == 4:
		gocv.CvtColor(src, &dst, gocv.ColorGrayToBGRA)
	case from == 3 && channels == 1:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	case from == 3 && channels == 4:
		gocv.CvtColor(src, &dst, gocv.ColorBGRToBGRA)
	case from == 4 && channels == 1:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToGray)
	case from == 4 && channels == 3:
		gocv.CvtColor(src, &dst, gocv.ColorBGRAToBGR)
	default:
		dst.Close()
		return gocv.NewMat(), errors.Errorf("cannot convert %d channels to %d", from, channels)
	}
	return dst, nil
}
