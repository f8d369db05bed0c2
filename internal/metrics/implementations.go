// Concrete implementations of image and mask metrics
package metrics

import (
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyImage is returned when a metric receives an image without pixels
var ErrEmptyImage = errors.New("empty image")

// maxPSNR is reported for identical images instead of +Inf
const maxPSNR = 100.0

// PSNR implements Peak Signal-to-Noise Ratio metric
type PSNR struct{}

// NewPSNR creates a new PSNR metric
func NewPSNR() *PSNR {
	return &PSNR{}
}

func (p *PSNR) Calculate(original, processed gocv.Mat) (float64, error) {
	a, err := grayValues(original)
	if err != nil {
		return 0, err
	}
	b, err := grayValues(processed)
	if err != nil {
		return 0, err
	}
	if len(a) != len(b) || original.Rows() != processed.Rows() {
		return 0, errors.New("image dimensions mismatch")
	}

	floats.Sub(a, b)
	floats.Mul(a, a)
	mse := stat.Mean(a, nil)
	if mse == 0 {
		return maxPSNR, nil
	}
	return math.Min(maxPSNR, 20*math.Log10(255.0/math.Sqrt(mse))), nil
}

func (p *PSNR) GetName() string {
	return "PSNR"
}

func (p *PSNR) GetDescription() string {
	return "Peak Signal-to-Noise Ratio between original and processed image"
}

func (p *PSNR) GetRange() (float64, float64) {
	return 0, maxPSNR
}

func (p *PSNR) IsHigherBetter() bool {
	return true
}

// ForegroundRatio is the share of non-zero pixels in the processed image
type ForegroundRatio struct{}

// NewForegroundRatio creates a new foreground ratio metric
func NewForegroundRatio() *ForegroundRatio {
	return &ForegroundRatio{}
}

func (f *ForegroundRatio) Calculate(_, processed gocv.Mat) (float64, error) {
	gray, err := toGray(processed)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	total := gray.Rows() * gray.Cols()
	return float64(gocv.CountNonZero(gray)) / float64(total), nil
}

func (f *ForegroundRatio) GetName() string {
	return "Foreground Ratio"
}

func (f *ForegroundRatio) GetDescription() string {
	return "Fraction of pixels kept as foreground"
}

func (f *ForegroundRatio) GetRange() (float64, float64) {
	return 0, 1
}

func (f *ForegroundRatio) IsHigherBetter() bool {
	return false
}

// MaskIoU compares two masks by intersection over union
type MaskIoU struct{}

// NewMaskIoU creates a new mask IoU metric
func NewMaskIoU() *MaskIoU {
	return &MaskIoU{}
}

func (m *MaskIoU) Calculate(reference, mask gocv.Mat) (float64, error) {
	a, err := toGray(reference)
	if err != nil {
		return 0, err
	}
	defer a.Close()
	b, err := toGray(mask)
	if err != nil {
		return 0, err
	}
	defer b.Close()

	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return 0, errors.New("mask dimensions mismatch")
	}

	inter := gocv.NewMat()
	defer inter.Close()
	gocv.BitwiseAnd(a, b, &inter)

	union := gocv.NewMat()
	defer union.Close()
	gocv.BitwiseOr(a, b, &union)

	u := gocv.CountNonZero(union)
	if u == 0 {
		return 1, nil
	}
	return float64(gocv.CountNonZero(inter)) / float64(u), nil
}

func (m *MaskIoU) GetName() string {
	return "Mask IoU"
}

func (m *MaskIoU) GetDescription() string {
	return "Intersection over union of two foreground masks"
}

func (m *MaskIoU) GetRange() (float64, float64) {
	return 0, 1
}

func (m *MaskIoU) IsHigherBetter() bool {
	return true
}

// Contrast is the standard deviation of processed intensities, scaled to [0,1]
type Contrast struct{}

// NewContrast creates a new contrast metric
func NewContrast() *Contrast {
	return &Contrast{}
}

func (c *Contrast) Calculate(_, processed gocv.Mat) (float64, error) {
	values, err := grayValues(processed)
	if err != nil {
		return 0, err
	}
	return stat.StdDev(values, nil) / 255.0, nil
}

func (c *Contrast) GetName() string {
	return "Contrast"
}

func (c *Contrast) GetDescription() string {
	return "Spread of intensities in the processed image"
}

func (c *Contrast) GetRange() (float64, float64) {
	return 0, 1
}

func (c *Contrast) IsHigherBetter() bool {
	return true
}

func toGray(m gocv.Mat) (gocv.Mat, error) {
	if m.Empty() || m.Rows() == 0 || m.Cols() == 0 {
		return gocv.NewMat(), ErrEmptyImage
	}

	gray := gocv.NewMat()
	switch m.Channels() {
	case 1:
		m.ConvertTo(&gray, gocv.MatTypeCV8UC1)
	case 3:
		gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(m, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return gocv.NewMat(), errors.Errorf("unsupported number of channels: %d", m.Channels())
	}
	return gray, nil
}

// grayValues returns the intensities of m as float64, row-major
func grayValues(m gocv.Mat) ([]float64, error) {
	gray, err := toGray(m)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	data := gray.ToBytes()
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out, nil
}

func floatValues(m gocv.Mat) ([]float64, error) {
	if m.Empty() {
		return nil, ErrEmptyImage
	}

	src := m
	if m.Type() != gocv.MatTypeCV32FC1 {
		src = gocv.NewMat()
		defer src.Close()
		m.ConvertTo(&src, gocv.MatTypeCV32FC1)
	}

	data, err := src.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read probability map")
	}
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out, nil
}
