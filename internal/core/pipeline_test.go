package core

import (
	"context"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"cutout-studio/internal/algorithms"
	"cutout-studio/internal/config"
	"cutout-studio/internal/geometry"
	"cutout-studio/internal/segmentation"
)

type memoryCodec struct {
	mu    sync.Mutex
	files map[string]gocv.Mat
	saved map[string]gocv.Mat
}

func newMemoryCodec() *memoryCodec {
	return &memoryCodec{
		files: make(map[string]gocv.Mat),
		saved: make(map[string]gocv.Mat),
	}
}

func (c *memoryCodec) Load(path string) (gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.files[path]
	if !ok {
		return gocv.NewMat(), errors.Errorf("no such file %s", path)
	}
	return m.Clone(), nil
}

func (c *memoryCodec) Save(img gocv.Mat, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved[path] = img.Clone()
	return nil
}

// rectBackend marks the seed rectangle as definite foreground
type rectBackend struct {
	started chan struct{}
	release chan struct{}
}

func (b *rectBackend) Name() string { return "rect" }

func (b *rectBackend) Segment(ctx context.Context, img gocv.Mat, seed *image.Rectangle, iterations int) (segmentation.RawMask, error) {
	if seed == nil {
		return segmentation.RawMask{}, segmentation.ErrMissingSeed
	}
	if b.started != nil {
		close(b.started)
	}
	if b.release != nil {
		<-b.release
	}

	labels := gocv.NewMatWithSize(img.Rows(), img.Cols(), gocv.MatTypeCV8UC1)
	labels.SetTo(gocv.NewScalar(segmentation.LabelBackground, 0, 0, 0))
	roi := labels.Region(*seed)
	roi.SetTo(gocv.NewScalar(segmentation.LabelForeground, 0, 0, 0))
	roi.Close()

	return segmentation.RawMask{Kind: segmentation.LabelMask, Data: labels}, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestPipeline(t *testing.T, backend segmentation.Backend) (*Pipeline, *memoryCodec) {
	t.Helper()

	codec := newMemoryCodec()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(100, 150, 200, 0), 30, 40, gocv.MatTypeCV8UC3)
	codec.files["photo.png"] = img

	opts := PipelineOptions{}
	if backend != nil {
		opts.Backends = map[segmentation.Kind]segmentation.Backend{
			segmentation.KindRectSeededCut: backend,
		}
	}
	p := NewPipeline(NewSession(), NewSelectionMachine(), codec, quietLogger(), opts)

	t.Cleanup(func() {
		p.Close()
		p.Session().Close()
		for _, m := range codec.files {
			m.Close()
		}
		for _, m := range codec.saved {
			m.Close()
		}
	})
	return p, codec
}

func drag(t *testing.T, p *Pipeline, from, to geometry.Point) {
	t.Helper()
	meta := p.Session().Metadata()
	vp, err := geometry.ComputeViewport(meta.Width, meta.Height, meta.Width, meta.Height)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, PointerRequest{Phase: PointerPress, Position: from, Viewport: vp}))
	require.NoError(t, p.Dispatch(ctx, PointerRequest{Phase: PointerMove, Position: to, Viewport: vp}))
	require.NoError(t, p.Dispatch(ctx, PointerRequest{Phase: PointerRelease, Position: to, Viewport: vp}))
}

func TestPipelineRequiresImage(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	ctx := context.Background()

	err := p.Dispatch(ctx, ThresholdRequest{Threshold: 127, MaxValue: 255})
	assert.True(t, errors.Is(err, ErrNoImage))
	assert.True(t, IsNotice(err))

	// the missing image is reported before the missing selection
	err = p.Dispatch(ctx, SegmentRequest{Backend: segmentation.KindRectSeededCut})
	assert.True(t, errors.Is(err, ErrNoImage))
	assert.False(t, errors.Is(err, ErrNoSelection))

	// pointer events without an image are ignored
	require.NoError(t, p.Dispatch(ctx, PointerRequest{Phase: PointerPress}))
	assert.Equal(t, SelectionIdle, p.Selection().State())
}

func TestPipelineLoadAndThreshold(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	ctx := context.Background()

	require.Error(t, p.Dispatch(ctx, LoadRequest{Path: "missing.png"}))
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))

	var updated []Artifact
	p.SetCallbacks(func(a Artifact) { updated = append(updated, a) }, nil)

	require.NoError(t, p.Dispatch(ctx, ThresholdRequest{Threshold: 127, MaxValue: 255, Mode: algorithms.ThresholdBinary}))
	assert.Equal(t, []Artifact{ArtifactThreshold}, updated)

	out, ok := p.Session().Artifact(ArtifactThreshold)
	require.True(t, ok)
	defer out.Close()
	assert.Equal(t, 40, out.Cols())
	assert.Equal(t, 30, out.Rows())
	assert.Equal(t, 3, out.Channels())

	// gray of (100,150,200) is above 127
	assert.Equal(t, uint8(255), out.GetUCharAt(0, 0))
	assert.Contains(t, p.Metrics(), "foreground_ratio")
}

func TestPipelineResizeKeepsAspect(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))

	require.NoError(t, p.Dispatch(ctx, ResizeRequest{Width: 20, Height: 999, KeepAspect: true}))
	out, ok := p.Session().Artifact(ArtifactResized)
	require.True(t, ok)
	defer out.Close()
	assert.Equal(t, 20, out.Cols())
	assert.Equal(t, 15, out.Rows())

	orig := p.Session().Original()
	defer orig.Close()
	assert.Equal(t, 40, orig.Cols())
}

func TestPipelineSegmentWithoutSelection(t *testing.T) {
	p, _ := newTestPipeline(t, &rectBackend{})
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))

	err := p.Dispatch(ctx, SegmentRequest{Backend: segmentation.KindRectSeededCut})
	assert.True(t, errors.Is(err, ErrNoSelection))
	assert.True(t, IsNotice(err))

	// a click without movement leaves no selection either
	drag(t, p, geometry.Point{X: 5, Y: 5}, geometry.Point{X: 5, Y: 5})
	assert.Equal(t, SelectionIdle, p.Selection().State())
	err = p.Dispatch(ctx, SegmentRequest{Backend: segmentation.KindRectSeededCut})
	assert.True(t, errors.Is(err, ErrNoSelection))
	assert.False(t, p.Session().HasArtifact(ArtifactMask))
}

func TestPipelineSegment(t *testing.T) {
	p, codec := newTestPipeline(t, &rectBackend{})
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))

	drag(t, p, geometry.Point{X: 30, Y: 25}, geometry.Point{X: 10, Y: 5})
	rect, ok := p.Selection().Rect()
	require.True(t, ok)
	assert.Equal(t, image.Rect(10, 5, 30, 25), rect)

	require.NoError(t, p.Dispatch(ctx, SegmentRequest{Backend: segmentation.KindRectSeededCut}))

	mask, ok := p.Session().Artifact(ArtifactMask)
	require.True(t, ok)
	defer mask.Close()
	assert.Equal(t, uint8(1), mask.GetUCharAt(10, 15))
	assert.Equal(t, uint8(0), mask.GetUCharAt(0, 0))

	cutout, ok := p.Session().Artifact(ArtifactCutout)
	require.True(t, ok)
	defer cutout.Close()
	outside := cutout.GetVecbAt(0, 0)
	assert.Equal(t, []uint8{255, 255, 255}, []uint8{outside[0], outside[1], outside[2]})
	inside := cutout.GetVecbAt(10, 15)
	assert.Equal(t, []uint8{100, 150, 200}, []uint8{inside[0], inside[1], inside[2]})
	assert.NotContains(t, p.Metrics(), "mask_iou")

	// same seed again agrees with the first run
	require.NoError(t, p.Dispatch(ctx, SegmentRequest{Backend: segmentation.KindRectSeededCut}))
	assert.InDelta(t, 1.0, p.Metrics()["mask_iou"], 1e-9)

	require.NoError(t, p.Dispatch(ctx, SaveRequest{Artifact: ArtifactMask, Path: "mask.png"}))
	saved := codec.saved["mask.png"]
	assert.Equal(t, uint8(255), saved.GetUCharAt(10, 15))

	require.NoError(t, p.Dispatch(ctx, ResetSelectionRequest{}))
	assert.False(t, p.Session().HasArtifact(ArtifactMask))
	assert.False(t, p.Session().HasArtifact(ArtifactCutout))
	_, ok = p.Selection().Rect()
	assert.False(t, ok)
}

func TestPipelineMissingBackend(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))

	assert.False(t, p.HasBackend(segmentation.KindDenseMatte))
	err := p.Dispatch(ctx, SegmentRequest{Backend: segmentation.KindDenseMatte})
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
}

func TestPipelineSaveWithoutArtifact(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))

	err := p.Dispatch(ctx, SaveRequest{Artifact: ArtifactCutout, Path: "out.png"})
	assert.True(t, IsNotice(err))
}

func TestPipelineCompare(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))

	err := p.Dispatch(ctx, CompareRequest{Against: ArtifactThreshold, Fraction: 0.5, Width: 80, Height: 60})
	assert.True(t, IsNotice(err))

	// no psnr across different sizes
	require.NoError(t, p.Dispatch(ctx, ResizeRequest{Width: 20, KeepAspect: true}))
	require.NoError(t, p.Dispatch(ctx, CompareRequest{Against: ArtifactResized, Fraction: 0.5, Width: 80, Height: 60}))
	assert.NotContains(t, p.Metrics(), "psnr")

	require.NoError(t, p.Dispatch(ctx, ThresholdRequest{Threshold: 127, MaxValue: 255}))
	require.NoError(t, p.Dispatch(ctx, CompareRequest{Against: ArtifactThreshold, Fraction: 0.5, Width: 80, Height: 60}))

	out, ok := p.Session().Artifact(ArtifactComparison)
	require.True(t, ok)
	defer out.Close()
	assert.Equal(t, 80, out.Cols())
	assert.Equal(t, 60, out.Rows())

	// gray 159 against 255 everywhere: 20*log10(255/96)
	assert.InDelta(t, 8.485, p.Metrics()["psnr"], 0.1)
}

func TestPipelineSubmitDiscardsStaleResult(t *testing.T) {
	backend := &rectBackend{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	p, _ := newTestPipeline(t, backend)
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))
	drag(t, p, geometry.Point{X: 5, Y: 5}, geometry.Point{X: 20, Y: 20})

	done := make(chan error, 1)
	p.Submit(ctx, SegmentRequest{Backend: segmentation.KindRectSeededCut}, func(err error) {
		done <- err
	})
	<-backend.started

	// loading a new image while the backend is busy invalidates the run
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))
	close(backend.release)

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrStale), "unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("segmentation did not finish")
	}
	assert.False(t, p.Session().HasArtifact(ArtifactMask))
	assert.False(t, p.Session().HasArtifact(ArtifactCutout))
}

func TestPipelineSubmitPublishes(t *testing.T) {
	p, _ := newTestPipeline(t, &rectBackend{})
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))
	drag(t, p, geometry.Point{X: 5, Y: 5}, geometry.Point{X: 20, Y: 20})

	done := make(chan error, 1)
	p.Submit(ctx, SegmentRequest{Backend: segmentation.KindRectSeededCut}, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("segmentation did not finish")
	}
	assert.True(t, p.Session().HasArtifact(ArtifactCutout))
	assert.Contains(t, p.Metrics(), "foreground_ratio")
}

func TestPipelineAlgorithmRequest(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Dispatch(ctx, LoadRequest{Path: "photo.png"}))

	err := p.Dispatch(ctx, AlgorithmRequest{Algorithm: "sharpen"})
	assert.True(t, errors.Is(err, algorithms.ErrUnknownAlgorithm))

	err = p.Dispatch(ctx, AlgorithmRequest{Algorithm: "threshold", Params: map[string]interface{}{"threshold": 300.0}})
	assert.Error(t, err)
	assert.False(t, p.Session().HasArtifact(ArtifactThreshold))

	params := map[string]interface{}{"threshold": 200.0, "max_value": 255.0, "mode": "binary_inv"}
	require.NoError(t, p.Dispatch(ctx, AlgorithmRequest{Algorithm: "threshold", Params: params}))
	out, ok := p.Session().Artifact(ArtifactThreshold)
	require.True(t, ok)
	defer out.Close()
	assert.Equal(t, uint8(255), out.GetUCharAt(0, 0))

	require.NoError(t, p.Dispatch(ctx, AlgorithmRequest{Algorithm: "resize", Params: map[string]interface{}{"width": 10.0}}))
	resized, ok := p.Session().Artifact(ArtifactResized)
	require.True(t, ok)
	defer resized.Close()
	assert.Equal(t, 10, resized.Cols())
	assert.Equal(t, 8, resized.Rows())
}

func TestNewPipelineFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Segmentation.Background = "#000000"

	p, err := NewPipelineFromConfig(cfg, newMemoryCodec(), quietLogger())
	require.NoError(t, err)
	defer p.Close()

	assert.True(t, p.HasBackend(segmentation.KindRectSeededCut))
	assert.False(t, p.HasBackend(segmentation.KindDenseMatte))

	cfg.Matte.ModelPath = "/nonexistent/model.onnx"
	_, err = NewPipelineFromConfig(cfg, newMemoryCodec(), quietLogger())
	assert.Error(t, err)
}
