package segmentation

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// ONNXModel runs a matte network through onnxruntime. Input tensors are
// prepared with imaging, mirroring how the model was trained on RGB input.
type ONNXModel struct {
	mu      sync.Mutex
	cfg     ModelConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXModel initializes the onnxruntime environment if needed and
// creates a session bound to fixed input/output tensors.
func NewONNXModel(cfg ModelConfig) (*ONNXModel, error) {
	if cfg.InputSize <= 0 {
		return nil, errors.Errorf("invalid model input size %d", cfg.InputSize)
	}
	for i, s := range cfg.Std {
		if s == 0 {
			return nil, errors.Errorf("std[%d] must be non-zero", i)
		}
	}

	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "failed to initialize onnxruntime")
		}
	}

	n := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, n, n))
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, n, n))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "failed to allocate output tensor")
	}

	session, err := ort.NewAdvancedSession(cfg.Path,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "failed to load matte model: %s", cfg.Path)
	}

	return &ONNXModel{cfg: cfg, session: session, input: input, output: output}, nil
}

func (m *ONNXModel) Predict(ctx context.Context, bgr gocv.Mat) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}

	img, err := bgr.ToImage()
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to convert image")
	}

	n := m.cfg.InputSize
	resized := imaging.Resize(img, n, n, imaging.Linear)

	m.mu.Lock()
	defer m.mu.Unlock()

	fillInput(m.input.GetData(), resized, m.cfg)
	if err := m.session.Run(); err != nil {
		return gocv.NewMat(), errors.Wrap(err, "inference failed")
	}

	raw := gocv.NewMatWithSize(n, n, gocv.MatTypeCV32FC1)
	defer raw.Close()

	data := m.output.GetData()
	for i, v := range data {
		if m.cfg.ApplySigmoid {
			v = float32(1.0 / (1.0 + math.Exp(float64(-v))))
		}
		raw.SetFloatAt(i/n, i%n, v)
	}

	prob := gocv.NewMat()
	gocv.Resize(raw, &prob, image.Pt(bgr.Cols(), bgr.Rows()), 0, 0, gocv.InterpolationLinear)
	return prob, nil
}

// fillInput writes an NCHW tensor normalized as (x/255-mean)/std
func fillInput(dst []float32, img *image.NRGBA, cfg ModelConfig) {
	n := cfg.InputSize
	plane := n * n
	for y := 0; y < n; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+n*4]
		for x := 0; x < n; x++ {
			base := x * 4
			for c := 0; c < 3; c++ {
				v := float64(row[base+c]) / 255.0
				dst[c*plane+y*n+x] = float32((v - cfg.Mean[c]) / cfg.Std[c])
			}
		}
	}
}

func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, destroy := range []func() error{m.session.Destroy, m.input.Destroy, m.output.Destroy} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
