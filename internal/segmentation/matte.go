package segmentation

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ProbabilityModel predicts a per-pixel foreground probability map. The
// result must be CV32FC1 with the same size as the input.
type ProbabilityModel interface {
	Predict(ctx context.Context, bgr gocv.Mat) (gocv.Mat, error)
	Close() error
}

// DenseMatte segments the whole image with a learned matte model and
// ignores any seed rectangle.
type DenseMatte struct {
	model ProbabilityModel
}

// NewDenseMatte wraps a probability model as a backend
func NewDenseMatte(model ProbabilityModel) *DenseMatte {
	return &DenseMatte{model: model}
}

func (d *DenseMatte) Name() string {
	return KindDenseMatte.String()
}

func (d *DenseMatte) Segment(ctx context.Context, img gocv.Mat, _ *image.Rectangle, _ int) (RawMask, error) {
	if isEmpty(img) {
		return RawMask{}, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return RawMask{}, err
	}

	bgr, err := toBGR(img)
	if err != nil {
		return RawMask{}, err
	}
	defer bgr.Close()

	prob, err := d.model.Predict(ctx, bgr)
	if err != nil {
		return RawMask{}, errors.Wrap(err, "matte prediction failed")
	}

	if err := ctx.Err(); err != nil {
		prob.Close()
		return RawMask{}, err
	}

	if prob.Empty() || prob.Rows() != img.Rows() || prob.Cols() != img.Cols() || prob.Channels() != 1 {
		defer prob.Close()
		return RawMask{}, errors.Wrapf(ErrModelOutput, "got %dx%dx%d for %dx%d image",
			prob.Cols(), prob.Rows(), prob.Channels(), img.Cols(), img.Rows())
	}

	if prob.Type() != gocv.MatTypeCV32FC1 {
		converted := gocv.NewMat()
		prob.ConvertTo(&converted, gocv.MatTypeCV32FC1)
		prob.Close()
		prob = converted
	}

	return RawMask{Kind: ProbabilityMask, Data: clampUnit(prob)}, nil
}

// Close releases the underlying model
func (d *DenseMatte) Close() error {
	return d.model.Close()
}

// clampUnit limits a CV32F map to [0,1], consuming src.
func clampUnit(src gocv.Mat) gocv.Mat {
	upper := gocv.NewMat()
	gocv.Threshold(src, &upper, 1, 1, gocv.ThresholdTrunc)
	src.Close()

	dst := gocv.NewMat()
	gocv.Threshold(upper, &dst, 0, 0, gocv.ThresholdToZero)
	upper.Close()
	return dst
}
