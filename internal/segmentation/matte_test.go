package segmentation

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// constantModel predicts the same probability everywhere
type constantModel struct {
	value  float64
	size   image.Point // zero means input size
	calls  int
	closed bool
}

func (m *constantModel) Predict(_ context.Context, bgr gocv.Mat) (gocv.Mat, error) {
	m.calls++
	w, h := bgr.Cols(), bgr.Rows()
	if m.size != (image.Point{}) {
		w, h = m.size.X, m.size.Y
	}
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(m.value, 0, 0, 0), h, w, gocv.MatTypeCV32FC1), nil
}

func (m *constantModel) Close() error {
	m.closed = true
	return nil
}

func TestDenseMatteIgnoresSeed(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 12, 16, gocv.MatTypeCV8UC3)
	defer img.Close()

	model := &constantModel{value: 0.8}
	backend := NewDenseMatte(model)

	raw, err := backend.Segment(context.Background(), img, nil, 0)
	require.NoError(t, err)
	defer raw.Close()

	assert.Equal(t, ProbabilityMask, raw.Kind)
	assert.Equal(t, 12, raw.Data.Rows())
	assert.Equal(t, 16, raw.Data.Cols())
	assert.InDelta(t, 0.8, raw.Data.GetFloatAt(5, 5), 1e-6)

	seed := image.Rect(0, 0, 1, 1)
	other, err := backend.Segment(context.Background(), img, &seed, 3)
	require.NoError(t, err)
	defer other.Close()
	assert.Equal(t, raw.Data.ToBytes(), other.Data.ToBytes())
	assert.Equal(t, 2, model.calls)

	require.NoError(t, backend.Close())
	assert.True(t, model.closed)
}

func TestDenseMatteClampsOutput(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 4, 4, gocv.MatTypeCV8UC1)
	defer img.Close()

	raw, err := NewDenseMatte(&constantModel{value: 1.7}).Segment(context.Background(), img, nil, 0)
	require.NoError(t, err)
	defer raw.Close()
	assert.InDelta(t, 1.0, raw.Data.GetFloatAt(0, 0), 1e-6)

	neg, err := NewDenseMatte(&constantModel{value: -0.3}).Segment(context.Background(), img, nil, 0)
	require.NoError(t, err)
	defer neg.Close()
	assert.InDelta(t, 0.0, neg.Data.GetFloatAt(3, 3), 1e-6)
}

func TestDenseMatteRejectsBadOutput(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 4, 4, gocv.MatTypeCV8UC3)
	defer img.Close()

	_, err := NewDenseMatte(&constantModel{value: 0.5, size: image.Pt(2, 2)}).Segment(context.Background(), img, nil, 0)
	assert.True(t, errors.Is(err, ErrModelOutput))
}

func TestDenseMatteEmptyImage(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	model := &constantModel{value: 0.5}
	_, err := NewDenseMatte(model).Segment(context.Background(), empty, nil, 0)
	assert.True(t, errors.Is(err, ErrEmptyImage))
	assert.Zero(t, model.calls)
}

func TestNewBackend(t *testing.T) {
	b, err := New(KindRectSeededCut, Options{})
	require.NoError(t, err)
	assert.Equal(t, "grabcut", b.Name())

	_, err = New(KindDenseMatte, Options{})
	assert.Error(t, err)

	b, err = New(KindDenseMatte, Options{Model: &constantModel{}})
	require.NoError(t, err)
	assert.Equal(t, "matte", b.Name())

	kind, err := ParseKind("Matte")
	require.NoError(t, err)
	assert.Equal(t, KindDenseMatte, kind)

	_, err = ParseKind("watershed")
	assert.Error(t, err)
}

func TestLoadModelValidatesInput(t *testing.T) {
	_, err := LoadModel(RuntimeOpenCV, ModelConfig{})
	assert.Error(t, err)

	_, err = LoadModel("tensorrt", DefaultModelConfig("model.onnx"))
	assert.Error(t, err)
}
