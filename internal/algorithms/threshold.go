// Fixed-level intensity thresholding with five output modes
package algorithms

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when an operation receives a zero-sized image
var ErrEmptyImage = errors.New("empty image")

// ThresholdMode selects how intensities are mapped around the threshold
type ThresholdMode int

const (
	ThresholdBinary ThresholdMode = iota
	ThresholdBinaryInverted
	ThresholdTruncate
	ThresholdToZero
	ThresholdToZeroInverted
)

const (
	DefaultThreshold = 127.0
	DefaultMaxValue  = 255.0
)

var thresholdModeNames = []string{
	ThresholdBinary:         "binary",
	ThresholdBinaryInverted: "binary_inv",
	ThresholdTruncate:       "trunc",
	ThresholdToZero:         "tozero",
	ThresholdToZeroInverted: "tozero_inv",
}

// ThresholdModes lists every mode in display order
func ThresholdModes() []ThresholdMode {
	return []ThresholdMode{
		ThresholdBinary,
		ThresholdBinaryInverted,
		ThresholdTruncate,
		ThresholdToZero,
		ThresholdToZeroInverted,
	}
}

func (m ThresholdMode) String() string {
	if m < 0 || int(m) >= len(thresholdModeNames) {
		return fmt.Sprintf("ThresholdMode(%d)", int(m))
	}
	return thresholdModeNames[m]
}

// ParseThresholdMode accepts the names produced by String, case-insensitively
func ParseThresholdMode(s string) (ThresholdMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range thresholdModeNames {
		if n == name {
			return ThresholdMode(i), nil
		}
	}
	return ThresholdBinary, errors.Errorf("unknown threshold mode %q", s)
}

func (m ThresholdMode) cvType() (gocv.ThresholdType, error) {
	switch m {
	case ThresholdBinary:
		return gocv.ThresholdBinary, nil
	case ThresholdBinaryInverted:
		return gocv.ThresholdBinaryInv, nil
	case ThresholdTruncate:
		return gocv.ThresholdTrunc, nil
	case ThresholdToZero:
		return gocv.ThresholdToZero, nil
	case ThresholdToZeroInverted:
		return gocv.ThresholdToZeroInv, nil
	}
	return gocv.ThresholdBinary, errors.Errorf("unsupported threshold mode %d", int(m))
}

// Threshold applies a fixed-level threshold. Multi-channel input is reduced
// to intensity first; the result is always single channel. t and m are
// clamped to [0,255].
func Threshold(src gocv.Mat, t, m float64, mode ThresholdMode) (gocv.Mat, error) {
	if src.Empty() || src.Rows() == 0 || src.Cols() == 0 {
		return gocv.NewMat(), ErrEmptyImage
	}

	typ, err := mode.cvType()
	if err != nil {
		return gocv.NewMat(), err
	}

	gray, err := ToGray(src)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer gray.Close()

	dst := gocv.NewMat()
	gocv.Threshold(gray, &dst, float32(clampByte(t)), float32(clampByte(m)), typ)
	return dst, nil
}

// ToGray returns a single-channel copy of src
func ToGray(src gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	switch src.Channels() {
	case 1:
		src.CopyTo(&gray)
	case 3:
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(src, &gray, gocv.ColorBGRAToGray)
	default:
		gray.Close()
		return gocv.NewMat(), errors.Errorf("unsupported number of channels: %d", src.Channels())
	}
	return gray, nil
}

// BroadcastChannels converts a single-channel image to the given channel
// count so it can be composited or compared against color images.
func BroadcastChannels(gray gocv.Mat, channels int) (gocv.Mat, error) {
	if gray.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}

	dst := gocv.NewMat()
	switch {
	case gray.Channels() == channels:
		gray.CopyTo(&dst)
	case gray.Channels() == 1 && channels == 3:
		gocv.CvtColor(gray, &dst, gocv.ColorGrayToBGR)
	case gray.Channels() == 1 && channels == 4:
		gocv.CvtColor(gray, &dst, gocv.ColorGrayToBGRA)
	default:
		dst.Close()
		return gocv.NewMat(), errors.Errorf("cannot broadcast %d channels to %d", gray.Channels(), channels)
	}
	return dst, nil
}

func clampByte(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// ThresholdAlgorithm exposes Threshold through the algorithm registry
type ThresholdAlgorithm struct{}

// NewThresholdAlgorithm creates the registry entry for fixed thresholding
func NewThresholdAlgorithm() *ThresholdAlgorithm {
	return &ThresholdAlgorithm{}
}

func (a *ThresholdAlgorithm) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	mode, err := modeParam(params, "mode", ThresholdBinary)
	if err != nil {
		return gocv.NewMat(), err
	}

	return Threshold(input,
		floatParam(params, "threshold", DefaultThreshold),
		floatParam(params, "max_value", DefaultMaxValue),
		mode)
}

func (a *ThresholdAlgorithm) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"threshold": DefaultThreshold,
		"max_value": DefaultMaxValue,
		"mode":      ThresholdBinary.String(),
	}
}

func (a *ThresholdAlgorithm) GetName() string {
	return "Threshold"
}

func (a *ThresholdAlgorithm) GetDescription() string {
	return "Fixed-level threshold on image intensity"
}

func (a *ThresholdAlgorithm) Validate(params map[string]interface{}) error {
	if err := rangeParam(params, "threshold", 0, 255); err != nil {
		return err
	}
	if err := rangeParam(params, "max_value", 0, 255); err != nil {
		return err
	}
	_, err := modeParam(params, "mode", ThresholdBinary)
	return err
}

func (a *ThresholdAlgorithm) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "threshold",
			Type:        "float",
			Min:         0.0,
			Max:         255.0,
			Default:     DefaultThreshold,
			Description: "Threshold value",
		},
		{
			Name:        "max_value",
			Type:        "float",
			Min:         0.0,
			Max:         255.0,
			Default:     DefaultMaxValue,
			Description: "Value assigned by the binary modes",
		},
		{
			Name:        "mode",
			Type:        "enum",
			Default:     ThresholdBinary.String(),
			Description: "Threshold mode",
			Options:     modeOptions(),
		},
	}
}

func modeOptions() []string {
	opts := make([]string, 0, len(thresholdModeNames))
	for _, m := range ThresholdModes() {
		opts = append(opts, m.String())
	}
	return opts
}
