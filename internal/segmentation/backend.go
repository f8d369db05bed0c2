// Segmentation backends producing raw foreground masks
package segmentation

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrMissingSeed is returned by seeded backends called without a usable rectangle
	ErrMissingSeed = errors.New("missing segmentation seed")
	// ErrEmptyImage is returned when the input image has no pixels
	ErrEmptyImage = errors.New("empty image")
	// ErrModelOutput is returned when a probability model produces an unusable map
	ErrModelOutput = errors.New("invalid model output")
)

// MaskKind tells the refiner how to read a RawMask
type MaskKind int

const (
	// LabelMask holds CV8UC1 labels: 0 background, 1 foreground,
	// 2 probable background, 3 probable foreground.
	LabelMask MaskKind = iota
	// ProbabilityMask holds CV32FC1 foreground probabilities in [0,1].
	ProbabilityMask
)

func (k MaskKind) String() string {
	switch k {
	case LabelMask:
		return "labels"
	case ProbabilityMask:
		return "probability"
	}
	return fmt.Sprintf("MaskKind(%d)", int(k))
}

// Grabcut label values
const (
	LabelBackground         = 0
	LabelForeground         = 1
	LabelProbableBackground = 2
	LabelProbableForeground = 3
)

// RawMask is backend output before binarization. The caller owns Data.
type RawMask struct {
	Kind MaskKind
	Data gocv.Mat
}

// Close releases the mask data
func (m RawMask) Close() error {
	return m.Data.Close()
}

// Backend produces a raw foreground mask for an image. Seeded backends
// require seed; others ignore it.
type Backend interface {
	Name() string
	Segment(ctx context.Context, img gocv.Mat, seed *image.Rectangle, iterations int) (RawMask, error)
}

// Kind selects a backend implementation
type Kind int

const (
	KindRectSeededCut Kind = iota
	KindDenseMatte
)

func (k Kind) String() string {
	switch k {
	case KindRectSeededCut:
		return "grabcut"
	case KindDenseMatte:
		return "matte"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names produced by String
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grabcut", "rect", "cut":
		return KindRectSeededCut, nil
	case "matte", "dense", "model":
		return KindDenseMatte, nil
	}
	return KindRectSeededCut, errors.Errorf("unknown segmentation backend %q", s)
}

// Options configures New
type Options struct {
	// Model is required for KindDenseMatte
	Model ProbabilityModel
}

// New builds the backend for kind
func New(kind Kind, opts Options) (Backend, error) {
	switch kind {
	case KindRectSeededCut:
		return NewRectSeededCut(), nil
	case KindDenseMatte:
		if opts.Model == nil {
			return nil, errors.New("dense matte backend requires a probability model")
		}
		return NewDenseMatte(opts.Model), nil
	}
	return nil, errors.Errorf("unsupported backend kind %d", int(kind))
}

func isEmpty(img gocv.Mat) bool {
	return img.Empty() || img.Rows() == 0 || img.Cols() == 0
}

// toBGR returns a 3-channel copy of img
func toBGR(img gocv.Mat) (gocv.Mat, error) {
	dst := gocv.NewMat()
	switch img.Channels() {
	case 3:
		img.CopyTo(&dst)
	case 1:
		gocv.CvtColor(img, &dst, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(img, &dst, gocv.ColorBGRAToBGR)
	default:
		dst.Close()
		return gocv.NewMat(), errors.Errorf("unsupported number of channels: %d", img.Channels())
	}
	return dst, nil
}
