// Background removal by masking the source with its own thresholded intensity
package algorithms

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrMaskMode is returned when a threshold mask is asked for a mode whose
// output is not 0 or 255
var ErrMaskMode = errors.New("threshold mask needs binary or binary_inv")

// IsMaskMode reports whether mode can drive ThresholdMask
func IsMaskMode(mode ThresholdMode) bool {
	return mode == ThresholdBinary || mode == ThresholdBinaryInverted
}

// ThresholdMask keeps the source pixels whose thresholded intensity is set
// and blacks out the rest. Only the binary modes are accepted.
func ThresholdMask(src gocv.Mat, t float64, mode ThresholdMode) (gocv.Mat, error) {
	if !IsMaskMode(mode) {
		return gocv.NewMat(), errors.Wrap(ErrMaskMode, mode.String())
	}

	binary, err := Threshold(src, t, DefaultMaxValue, mode)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer binary.Close()

	mask, err := BroadcastChannels(binary, src.Channels())
	if err != nil {
		return gocv.NewMat(), err
	}
	defer mask.Close()

	dst := gocv.NewMat()
	gocv.BitwiseAnd(src, mask, &dst)
	return dst, nil
}

// ThresholdMaskAlgorithm exposes ThresholdMask through the algorithm registry
type ThresholdMaskAlgorithm struct{}

// NewThresholdMaskAlgorithm creates the registry entry for threshold masking
func NewThresholdMaskAlgorithm() *ThresholdMaskAlgorithm {
	return &ThresholdMaskAlgorithm{}
}

func (a *ThresholdMaskAlgorithm) Apply(input gocv.Mat, params map[string]interface{}) (gocv.Mat, error) {
	mode, err := maskModeParam(params)
	if err != nil {
		return gocv.NewMat(), err
	}
	return ThresholdMask(input, floatParam(params, "threshold", DefaultThreshold), mode)
}

func (a *ThresholdMaskAlgorithm) GetDefaultParams() map[string]interface{} {
	return map[string]interface{}{
		"threshold": DefaultThreshold,
		"mode":      ThresholdBinary.String(),
	}
}

func (a *ThresholdMaskAlgorithm) GetName() string {
	return "Threshold Mask"
}

func (a *ThresholdMaskAlgorithm) GetDescription() string {
	return "Removes background pixels that fall outside the threshold"
}

func (a *ThresholdMaskAlgorithm) Validate(params map[string]interface{}) error {
	if err := rangeParam(params, "threshold", 0, 255); err != nil {
		return err
	}
	_, err := maskModeParam(params)
	return err
}

func maskModeParam(params map[string]interface{}) (ThresholdMode, error) {
	mode, err := modeParam(params, "mode", ThresholdBinary)
	if err != nil {
		return mode, err
	}
	if !IsMaskMode(mode) {
		return mode, errors.Wrap(ErrMaskMode, mode.String())
	}
	return mode, nil
}

func (a *ThresholdMaskAlgorithm) GetParameterInfo() []ParameterInfo {
	return []ParameterInfo{
		{
			Name:        "threshold",
			Type:        "float",
			Min:         0.0,
			Max:         255.0,
			Default:     DefaultThreshold,
			Description: "Intensity separating foreground from background",
		},
		{
			Name:        "mode",
			Type:        "enum",
			Default:     ThresholdBinary.String(),
			Description: "Threshold mode used to build the mask",
			Options:     []string{ThresholdBinary.String(), ThresholdBinaryInverted.String()},
		},
	}
}
