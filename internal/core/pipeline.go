// Single control path from UI or CLI requests to published artifacts
package core

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"cutout-studio/internal/algorithms"
	"cutout-studio/internal/compose"
	"cutout-studio/internal/metrics"
	"cutout-studio/internal/segmentation"
)

// ImageCodec decodes and encodes image files
type ImageCodec interface {
	Load(path string) (gocv.Mat, error)
	Save(img gocv.Mat, path string) error
}

// PipelineOptions configures NewPipeline
type PipelineOptions struct {
	Backends   map[segmentation.Kind]segmentation.Backend
	Background compose.Background
	// Marker, when set, is drawn at the split column of comparisons
	Marker *color.RGBA
}

// Pipeline dispatches requests against a session. Threshold, resize and
// comparison requests run on the caller's goroutine; segmentation can also
// run in the background through Submit.
type Pipeline struct {
	session   *Session
	selection *SelectionMachine
	codec     ImageCodec
	evaluator *metrics.Evaluator
	logger    *logrus.Entry

	mu         sync.Mutex
	backends   map[segmentation.Kind]segmentation.Backend
	background compose.Background
	marker     *color.RGBA
	metrics    map[string]float64
	cancel     context.CancelFunc
	task       uint64

	// Callbacks run on the goroutine that produced the result
	onUpdate func(Artifact)
	onError  func(error)
}

// NewPipeline wires a session, a selection machine and an image codec
func NewPipeline(session *Session, selection *SelectionMachine, codec ImageCodec, logger *logrus.Logger, opts PipelineOptions) *Pipeline {
	backends := make(map[segmentation.Kind]segmentation.Backend, len(opts.Backends))
	for k, b := range opts.Backends {
		backends[k] = b
	}
	if _, ok := backends[segmentation.KindRectSeededCut]; !ok {
		backends[segmentation.KindRectSeededCut] = segmentation.NewRectSeededCut()
	}

	bg := opts.Background
	if bg == nil {
		bg = compose.SolidColor(compose.White)
	}

	return &Pipeline{
		session:    session,
		selection:  selection,
		codec:      codec,
		evaluator:  metrics.NewEvaluator(),
		logger:     logger.WithField("component", "pipeline"),
		backends:   backends,
		background: bg,
		marker:     opts.Marker,
		metrics:    make(map[string]float64),
	}
}

// Session returns the session the pipeline writes to
func (p *Pipeline) Session() *Session {
	return p.session
}

// Selection returns the selection machine fed by pointer requests
func (p *Pipeline) Selection() *SelectionMachine {
	return p.selection
}

// SetCallbacks sets the artifact update and background error callbacks
func (p *Pipeline) SetCallbacks(onUpdate func(Artifact), onError func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = onUpdate
	p.onError = onError
}

// SetBackground changes the background used by later segmentations
func (p *Pipeline) SetBackground(bg compose.Background) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bg == nil {
		bg = compose.SolidColor(compose.White)
	}
	p.background = bg
}

// HasBackend reports whether a backend of the given kind is configured
func (p *Pipeline) HasBackend(kind segmentation.Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.backends[kind]
	return ok
}

// Metrics returns the measurements of the most recent computation
func (p *Pipeline) Metrics() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]float64, len(p.metrics))
	for k, v := range p.metrics {
		out[k] = v
	}
	return out
}

// Dispatch handles one request synchronously
func (p *Pipeline) Dispatch(ctx context.Context, req Request) error {
	start := time.Now()
	err := p.dispatch(ctx, req)

	fields := logrus.Fields{
		"request":  req.Name(),
		"duration": time.Since(start),
	}
	switch {
	case err == nil:
		p.logger.WithFields(fields).Debug("Request handled")
	case IsNotice(err):
		p.logger.WithFields(fields).WithError(err).Info("Request skipped")
	default:
		p.logger.WithFields(fields).WithError(err).Error("Request failed")
	}
	return err
}

func (p *Pipeline) dispatch(ctx context.Context, req Request) error {
	switch r := req.(type) {
	case LoadRequest:
		return p.load(r)
	case SaveRequest:
		return p.save(r)
	case ThresholdRequest:
		return p.threshold(r)
	case ThresholdMaskRequest:
		return p.thresholdMask(r)
	case AlgorithmRequest:
		return p.algorithm(r)
	case ResizeRequest:
		return p.resize(r)
	case SegmentRequest:
		return p.segment(ctx, r, 0)
	case ResetSelectionRequest:
		p.resetSelection()
		return nil
	case CompareRequest:
		return p.compare(r)
	case PointerRequest:
		p.pointer(r)
		return nil
	}
	return errors.Errorf("unsupported request %T", req)
}

// Submit runs a segmentation in the background. A newer Submit, a reset or
// a new image cancels it, and its result is then discarded. done, if not
// nil, receives the outcome.
func (p *Pipeline) Submit(ctx context.Context, req SegmentRequest, done func(error)) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.task++
	task := p.task
	p.cancel = cancel
	p.mu.Unlock()

	go func() {
		defer cancel()

		start := time.Now()
		err := p.segment(ctx, req, task)

		entry := p.logger.WithFields(logrus.Fields{
			"request":  req.Name(),
			"backend":  req.Backend.String(),
			"task":     task,
			"duration": time.Since(start),
		})
		switch {
		case err == nil:
			entry.Info("Segmentation finished")
		case errors.Is(err, context.Canceled), IsNotice(err):
			entry.WithError(err).Info("Segmentation skipped")
		default:
			entry.WithError(err).Error("Segmentation failed")
			p.reportError(err)
		}

		p.mu.Lock()
		if p.task == task {
			p.cancel = nil
		}
		p.mu.Unlock()

		if done != nil {
			done(err)
		}
	}()
}

// Cancel stops the in-flight background segmentation, if any
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.task++
}

func (p *Pipeline) load(r LoadRequest) error {
	mat, err := p.codec.Load(r.Path)
	if err != nil {
		return err
	}
	defer mat.Close()

	p.Cancel()
	generation, err := p.session.Load(mat, r.Path)
	if err != nil {
		return err
	}
	p.selection.Reset()

	meta := p.session.Metadata()
	p.logger.WithFields(logrus.Fields{
		"path":       r.Path,
		"width":      meta.Width,
		"height":     meta.Height,
		"channels":   meta.Channels,
		"generation": generation,
	}).Info("Image loaded")
	return nil
}

func (p *Pipeline) save(r SaveRequest) error {
	mat, ok := p.session.Artifact(r.Artifact)
	if !ok {
		return errors.Wrapf(compose.ErrEmptyInput, "nothing to save for %s", r.Artifact)
	}
	defer mat.Close()

	if r.Artifact == ArtifactMask {
		preview, err := compose.MaskPreview(mat)
		if err != nil {
			return err
		}
		defer preview.Close()
		return p.codec.Save(preview, r.Path)
	}
	return p.codec.Save(mat, r.Path)
}

func (p *Pipeline) threshold(r ThresholdRequest) error {
	img, generation, err := p.session.Snapshot()
	if err != nil {
		return err
	}
	defer img.Close()

	out, err := algorithms.Threshold(img, r.Threshold, r.MaxValue, r.Mode)
	if err != nil {
		return err
	}

	p.record(p.evaluator.EvaluateStep("threshold", img, out))
	return p.publish(generation, map[Artifact]gocv.Mat{ArtifactThreshold: out})
}

func (p *Pipeline) thresholdMask(r ThresholdMaskRequest) error {
	img, generation, err := p.session.Snapshot()
	if err != nil {
		return err
	}
	defer img.Close()

	out, err := algorithms.ThresholdMask(img, r.Threshold, r.Mode)
	if err != nil {
		return err
	}
	return p.publish(generation, map[Artifact]gocv.Mat{ArtifactThresholdMask: out})
}

// algorithmArtifacts maps registry names to the artifact their output replaces
var algorithmArtifacts = map[string]Artifact{
	"threshold":      ArtifactThreshold,
	"threshold_mask": ArtifactThresholdMask,
	"resize":         ArtifactResized,
}

func (p *Pipeline) algorithm(r AlgorithmRequest) error {
	target, ok := algorithmArtifacts[r.Algorithm]
	if !ok {
		return errors.Wrap(algorithms.ErrUnknownAlgorithm, r.Algorithm)
	}
	if err := algorithms.ValidateParameters(r.Algorithm, r.Params); err != nil {
		return err
	}

	img, generation, err := p.session.Snapshot()
	if err != nil {
		return err
	}
	defer img.Close()

	out, err := algorithms.Apply(r.Algorithm, img, r.Params)
	if err != nil {
		return err
	}

	if target == ArtifactThreshold {
		p.record(p.evaluator.EvaluateStep("threshold", img, out))
	}
	return p.publish(generation, map[Artifact]gocv.Mat{target: out})
}

func (p *Pipeline) resize(r ResizeRequest) error {
	img, generation, err := p.session.Snapshot()
	if err != nil {
		return err
	}
	defer img.Close()

	var out gocv.Mat
	if r.Percent > 0 {
		out, err = algorithms.ResizePercent(img, r.Percent)
	} else {
		h := r.Height
		if r.KeepAspect {
			h = algorithms.HeightForWidth(img.Cols(), img.Rows(), r.Width)
		}
		out, err = algorithms.Resize(img, r.Width, h)
	}
	if err != nil {
		return err
	}
	return p.publish(generation, map[Artifact]gocv.Mat{ArtifactResized: out})
}

// segment runs a backend and publishes mask and cutout. A non-zero task is
// a background run that must still be current when it finishes.
func (p *Pipeline) segment(ctx context.Context, r SegmentRequest, task uint64) error {
	p.mu.Lock()
	backend, ok := p.backends[r.Backend]
	bg := p.background
	p.mu.Unlock()
	if !ok {
		return errors.Wrap(ErrBackendUnavailable, r.Backend.String())
	}

	if !p.session.HasImage() {
		return ErrNoImage
	}

	var seed *image.Rectangle
	if r.Backend == segmentation.KindRectSeededCut {
		rect, ok := p.selection.Rect()
		if !ok {
			return ErrNoSelection
		}
		seed = &rect
	}

	img, generation, err := p.session.Snapshot()
	if err != nil {
		return err
	}
	defer img.Close()

	raw, err := backend.Segment(ctx, img, seed, r.Iterations)
	if err != nil {
		return err
	}
	defer raw.Close()

	mask, err := segmentation.Refine(raw)
	if err != nil {
		return err
	}

	cutout, err := compose.Composite(img, mask, bg)
	if err != nil {
		mask.Close()
		return err
	}

	values := p.evaluator.EvaluateStep("segmentation", img, mask)
	if previous, ok := p.session.Artifact(ArtifactMask); ok {
		// agreement with the last run on the same image
		if v, err := p.evaluator.Calculate("mask_iou", previous, mask); err == nil {
			values["mask_iou"] = v
		}
		previous.Close()
	}
	if raw.Kind == segmentation.ProbabilityMask {
		for k, v := range p.evaluator.EvaluateProbability(raw.Data) {
			values[k] = v
		}
	}

	results := map[Artifact]gocv.Mat{
		ArtifactMask:   mask,
		ArtifactCutout: cutout,
	}

	// The task check and the publish happen under one lock so a concurrent
	// reset either sees the published result or cancels it first.
	p.mu.Lock()
	if task != 0 && p.task != task {
		p.mu.Unlock()
		mask.Close()
		cutout.Close()
		return context.Canceled
	}
	err = p.session.Publish(generation, results)
	if err == nil {
		for k, v := range values {
			p.metrics[k] = v
		}
	}
	p.mu.Unlock()

	if err != nil {
		return err
	}
	p.notify(ArtifactMask)
	p.notify(ArtifactCutout)
	return nil
}

func (p *Pipeline) resetSelection() {
	p.Cancel()
	p.selection.Reset()
	p.session.Discard(ArtifactMask, ArtifactCutout)
	p.notify(ArtifactMask)
	p.notify(ArtifactCutout)
}

func (p *Pipeline) compare(r CompareRequest) error {
	original, generation, err := p.session.Snapshot()
	if err != nil {
		return err
	}
	defer original.Close()

	other, ok := p.session.Artifact(r.Against)
	if !ok {
		return errors.Wrapf(compose.ErrEmptyInput, "no %s image to compare", r.Against)
	}
	defer other.Close()

	p.mu.Lock()
	var opts []compose.BlendOption
	if p.marker != nil {
		opts = append(opts, compose.WithMarker(*p.marker))
	}
	p.mu.Unlock()

	out, err := compose.Blend(original, other, r.Fraction, r.Width, r.Height, opts...)
	if err != nil {
		return err
	}

	// resized artifacts have no pixel correspondence with the original
	if original.Rows() == other.Rows() && original.Cols() == other.Cols() {
		p.record(p.evaluator.EvaluateStep("comparison", original, other))
	}
	return p.publish(generation, map[Artifact]gocv.Mat{ArtifactComparison: out})
}

func (p *Pipeline) pointer(r PointerRequest) {
	if !p.session.HasImage() {
		return
	}

	pt := r.Viewport.ToImageSpace(r.Position)
	switch r.Phase {
	case PointerPress:
		p.selection.Press(pt)
	case PointerMove:
		p.selection.Move(pt)
	case PointerRelease:
		if !p.selection.Release(pt) {
			p.logger.WithField("point", pt).Debug("Degenerate selection dropped")
		}
	}
}

func (p *Pipeline) publish(generation uint64, results map[Artifact]gocv.Mat) error {
	if err := p.session.Publish(generation, results); err != nil {
		return err
	}
	for a := range results {
		p.notify(a)
	}
	return nil
}

func (p *Pipeline) record(values map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range values {
		p.metrics[k] = v
	}
}

func (p *Pipeline) notify(a Artifact) {
	p.mu.Lock()
	fn := p.onUpdate
	p.mu.Unlock()
	if fn != nil {
		fn(a)
	}
}

func (p *Pipeline) reportError(err error) {
	p.mu.Lock()
	fn := p.onError
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Close cancels background work and releases the backends
func (p *Pipeline) Close() {
	p.Cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	for kind, b := range p.backends {
		if c, ok := b.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				p.logger.WithError(err).WithField("backend", kind.String()).Warn("Failed to close backend")
			}
		}
	}
}
