package segmentation

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ProbabilityCutoff separates foreground from background in probability masks
const ProbabilityCutoff = 0.5

// Refine turns a raw backend mask into a binary CV8UC1 mask holding 0 and 1.
// Label masks keep definite and probable foreground; probability masks
// keep pixels strictly above ProbabilityCutoff.
func Refine(raw RawMask) (gocv.Mat, error) {
	if isEmpty(raw.Data) {
		return gocv.NewMat(), ErrEmptyImage
	}
	if raw.Data.Channels() != 1 {
		return gocv.NewMat(), errors.Errorf("mask must be single channel, got %d", raw.Data.Channels())
	}

	switch raw.Kind {
	case LabelMask:
		return refineLabels(raw.Data)
	case ProbabilityMask:
		return refineProbability(raw.Data)
	}
	return gocv.NewMat(), errors.Errorf("unknown mask kind %v", raw.Kind)
}

// Labels 1 and 3 are the odd values, so the low bit is the foreground flag.
func refineLabels(labels gocv.Mat) (gocv.Mat, error) {
	src := labels
	if labels.Type() != gocv.MatTypeCV8UC1 {
		src = gocv.NewMat()
		defer src.Close()
		labels.ConvertTo(&src, gocv.MatTypeCV8UC1)
	}

	ones := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 0, 0, 0), src.Rows(), src.Cols(), gocv.MatTypeCV8UC1)
	defer ones.Close()

	dst := gocv.NewMat()
	gocv.BitwiseAnd(src, ones, &dst)
	return dst, nil
}

func refineProbability(prob gocv.Mat) (gocv.Mat, error) {
	src := prob
	if prob.Type() != gocv.MatTypeCV32FC1 {
		src = gocv.NewMat()
		defer src.Close()
		prob.ConvertTo(&src, gocv.MatTypeCV32FC1)
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(src, &binary, ProbabilityCutoff, 1, gocv.ThresholdBinary)

	dst := gocv.NewMat()
	binary.ConvertTo(&dst, gocv.MatTypeCV8UC1)
	return dst, nil
}
