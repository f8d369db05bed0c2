package segmentation

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ModelConfig describes how to feed a matte network. Networks take RGB
// input scaled to [0,1], normalized as (x-Mean)/Std per channel.
type ModelConfig struct {
	Path         string
	InputSize    int // square network input side
	Mean         [3]float64
	Std          [3]float64
	ApplySigmoid bool // network emits logits

	// onnxruntime only
	InputName   string
	OutputName  string
	LibraryPath string
}

// DefaultModelConfig matches U2-Net style salient-object matte networks
func DefaultModelConfig(path string) ModelConfig {
	return ModelConfig{
		Path:       path,
		InputSize:  320,
		Mean:       [3]float64{0.485, 0.456, 0.406},
		Std:        [3]float64{0.229, 0.224, 0.225},
		InputName:  "input",
		OutputName: "output",
	}
}

// OpenCVModel runs an ONNX matte network through the OpenCV DNN module
type OpenCVModel struct {
	mu  sync.Mutex
	net gocv.Net
	cfg ModelConfig
}

// NewOpenCVModel loads cfg.Path with gocv.ReadNetFromONNX
func NewOpenCVModel(cfg ModelConfig) (*OpenCVModel, error) {
	if cfg.InputSize <= 0 {
		return nil, errors.Errorf("invalid model input size %d", cfg.InputSize)
	}
	for i, s := range cfg.Std {
		if s == 0 {
			return nil, errors.Errorf("std[%d] must be non-zero", i)
		}
	}

	net := gocv.ReadNetFromONNX(cfg.Path)
	if net.Empty() {
		return nil, errors.Errorf("failed to load matte model: %s", cfg.Path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &OpenCVModel{net: net, cfg: cfg}, nil
}

func (m *OpenCVModel) Predict(ctx context.Context, bgr gocv.Mat) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}

	blob := inputBlob(bgr, m.cfg)
	defer blob.Close()

	m.mu.Lock()
	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	m.mu.Unlock()
	defer out.Close()

	if out.Empty() {
		return gocv.NewMat(), errors.Wrap(ErrModelOutput, "empty network output")
	}

	channel := gocv.GetBlobChannel(out, 0, 0)
	defer channel.Close()

	prob := gocv.NewMat()
	gocv.Resize(channel, &prob, image.Pt(bgr.Cols(), bgr.Rows()), 0, 0, gocv.InterpolationLinear)

	if m.cfg.ApplySigmoid {
		return sigmoidMat(prob), nil
	}
	return prob, nil
}

// inputBlob builds the NCHW RGB input normalized as (x/255-mean)/std, the
// same values fillInput writes for onnxruntime
func inputBlob(bgr gocv.Mat, cfg ModelConfig) gocv.Mat {
	size := image.Pt(cfg.InputSize, cfg.InputSize)
	// BlobFromImage yields (x - 255*mean) / 255 = x/255 - mean
	mean := gocv.NewScalar(cfg.Mean[0]*255, cfg.Mean[1]*255, cfg.Mean[2]*255, 0)
	blob := gocv.BlobFromImage(bgr, 1.0/255.0, size, mean, true, false)

	// each plane is a view into blob
	for c := 0; c < 3; c++ {
		plane := gocv.GetBlobChannel(blob, 0, c)
		plane.MultiplyFloat(float32(1 / cfg.Std[c]))
		plane.Close()
	}
	return blob
}

func (m *OpenCVModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

// sigmoidMat applies 1/(1+exp(-x)) to a CV32F map, consuming src.
func sigmoidMat(src gocv.Mat) gocv.Mat {
	neg := gocv.NewMat()
	src.ConvertToWithParams(&neg, gocv.MatTypeCV32FC1, -1, 0)
	src.Close()

	exp := gocv.NewMat()
	gocv.Exp(neg, &exp)
	neg.Close()

	denom := gocv.NewMat()
	exp.ConvertToWithParams(&denom, gocv.MatTypeCV32FC1, 1, 1)
	exp.Close()

	ones := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 0, 0, 0), denom.Rows(), denom.Cols(), gocv.MatTypeCV32FC1)
	defer ones.Close()

	dst := gocv.NewMat()
	gocv.Divide(ones, denom, &dst)
	denom.Close()
	return dst
}
