// Batch front end for the cutout pipeline
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"cutout-studio/internal/algorithms"
	"cutout-studio/internal/compose"
	"cutout-studio/internal/config"
	"cutout-studio/internal/core"
	"cutout-studio/internal/geometry"
	"cutout-studio/internal/io"
	"cutout-studio/internal/logging"
	"cutout-studio/internal/segmentation"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "grabcut":
		err = runGrabCut(os.Args[2:])
	case "matte":
		err = runMatte(os.Args[2:])
	case "threshold":
		err = runThreshold(os.Args[2:])
	case "compare":
		err = runCompare(os.Args[2:])
	case "resize":
		err = runResize(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: cutout <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  grabcut   -in photo.jpg -out cutout.png [-rect x,y,w,h] [-iterations 5] [-background #ffffff] [-background-image bg.jpg] [-mask-out mask.png]")
	fmt.Fprintln(os.Stderr, "  matte     -in photo.jpg -out cutout.png [-model model.onnx] [-runtime opencv|onnxruntime] [-background #ffffff] [-mask-out mask.png]")
	fmt.Fprintln(os.Stderr, "  threshold -in photo.jpg -out binary.png [-t 127] [-max 255] [-mode binary] [-mask (binary or binary_inv only)]")
	fmt.Fprintln(os.Stderr, "  compare   -in photo.jpg -out compare.png [-split 0.5] [-w 800] [-h 600] [-t 127] [-mode binary]")
	fmt.Fprintln(os.Stderr, "  resize    -in photo.jpg -out small.jpg (-w 800 [-h 600] [-keep-aspect] | -percent 50)")
	fmt.Fprintln(os.Stderr, "Every command also accepts -config cutout.toml, -debug and -log-format text|json.")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// command holds the flags shared by every subcommand
type command struct {
	fs         *flag.FlagSet
	configPath *string
	debug      *bool
	logFormat  *string
	in         *string
	out        *string
}

func newCommand(name string) *command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return &command{
		fs:         fs,
		configPath: fs.String("config", "", "TOML configuration file"),
		debug:      fs.Bool("debug", false, "verbose logging"),
		logFormat:  fs.String("log-format", "", "text or json"),
		in:         fs.String("in", "", "input image"),
		out:        fs.String("out", "", "output image"),
	}
}

// session is a loaded pipeline ready to take requests
type session struct {
	cfg      *config.Config
	logger   *logrus.Logger
	pipeline *core.Pipeline
}

// parse reads args, loads the configuration, lets tweak adjust it and
// loads the input image
func (c *command) parse(args []string, tweak func(*config.Config)) (*session, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, err
	}
	if *c.in == "" || *c.out == "" {
		return nil, errors.New("missing required arguments: -in and -out")
	}

	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return nil, err
	}
	if *c.logFormat != "" {
		cfg.Log.Format = *c.logFormat
	}
	if tweak != nil {
		tweak(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewWithOutput(os.Stderr, cfg.Log.Level, cfg.Log.Format, *c.debug)
	pipeline, err := core.NewPipelineFromConfig(cfg, io.NewImageLoader(logger), logger)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: logger, pipeline: pipeline}
	if err := s.dispatch(core.LoadRequest{Path: *c.in}); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) dispatch(reqs ...core.Request) error {
	for _, req := range reqs {
		if err := s.pipeline.Dispatch(context.Background(), req); err != nil {
			return errors.Wrap(err, req.Name())
		}
	}
	return nil
}

func (s *session) report(out string) {
	fields := logrus.Fields{"out": out}
	for k, v := range s.pipeline.Metrics() {
		fields[k] = v
	}
	s.logger.WithFields(fields).Info("Done")
}

func (s *session) close() {
	s.pipeline.Close()
	s.pipeline.Session().Close()
}

func runGrabCut(args []string) error {
	c := newCommand("grabcut")
	rect := c.fs.String("rect", "", "seed rectangle x,y,w,h (default: image inset by seed_margin)")
	iterations := c.fs.Int("iterations", 0, "refinement iterations (1-10)")
	background := c.fs.String("background", "", "replacement background color")
	backgroundImage := c.fs.String("background-image", "", "replacement background image")
	maskOut := c.fs.String("mask-out", "", "write the binary mask")

	s, err := c.parse(args, func(cfg *config.Config) {
		if *iterations > 0 {
			cfg.Segmentation.Iterations = *iterations
		}
		if *background != "" {
			cfg.Segmentation.Background = *background
		}
	})
	if err != nil {
		return err
	}
	defer s.close()

	meta := s.pipeline.Session().Metadata()
	seed, err := seedRect(*rect, meta.Width, meta.Height, s.cfg.Segmentation.SeedMargin)
	if err != nil {
		return err
	}
	sel := s.pipeline.Selection()
	sel.Press(seed.Min)
	if !sel.Release(seed.Max) {
		return errors.Wrapf(core.ErrNoSelection, "seed %v is empty", seed)
	}

	if *backgroundImage != "" {
		bg, err := io.NewImageLoader(s.logger).Load(*backgroundImage)
		if err != nil {
			return err
		}
		defer bg.Close()
		s.pipeline.SetBackground(compose.ImageBackground{Image: bg})
	}

	if err := s.dispatch(core.SegmentRequest{
		Backend:    segmentation.KindRectSeededCut,
		Iterations: s.cfg.Segmentation.Iterations,
	}); err != nil {
		return err
	}
	if err := saveCutout(s, *c.out, *maskOut); err != nil {
		return err
	}
	s.report(*c.out)
	return nil
}

func runMatte(args []string) error {
	c := newCommand("matte")
	model := c.fs.String("model", "", "matte model file (overrides the config)")
	runtime := c.fs.String("runtime", "", "opencv or onnxruntime")
	background := c.fs.String("background", "", "replacement background color")
	maskOut := c.fs.String("mask-out", "", "write the binary mask")

	s, err := c.parse(args, func(cfg *config.Config) {
		if *model != "" {
			cfg.Matte.ModelPath = *model
		}
		if *runtime != "" {
			cfg.Matte.Runtime = *runtime
		}
		if *background != "" {
			cfg.Segmentation.Background = *background
		}
	})
	if err != nil {
		return err
	}
	defer s.close()

	if !s.pipeline.HasBackend(segmentation.KindDenseMatte) {
		return errors.Wrap(core.ErrBackendUnavailable, "set -model or matte.model_path")
	}
	if err := s.dispatch(core.SegmentRequest{Backend: segmentation.KindDenseMatte}); err != nil {
		return err
	}
	if err := saveCutout(s, *c.out, *maskOut); err != nil {
		return err
	}
	s.report(*c.out)
	return nil
}

func saveCutout(s *session, out, maskOut string) error {
	reqs := []core.Request{core.SaveRequest{Artifact: core.ArtifactCutout, Path: out}}
	if maskOut != "" {
		reqs = append(reqs, core.SaveRequest{Artifact: core.ArtifactMask, Path: maskOut})
	}
	return s.dispatch(reqs...)
}

func runThreshold(args []string) error {
	c := newCommand("threshold")
	t := c.fs.Float64("t", -1, "threshold level (0-255)")
	maxValue := c.fs.Float64("max", -1, "value assigned by the binary modes (0-255)")
	mode := c.fs.String("mode", "", "binary, binary_inv, trunc, tozero or tozero_inv")
	asMask := c.fs.Bool("mask", false, "keep the original pixels that pass instead")

	s, err := c.parse(args, thresholdTweak(t, maxValue, mode))
	if err != nil {
		return err
	}
	defer s.close()

	req, artifact := thresholdRequest(s.cfg, *asMask)
	if err := s.dispatch(req, core.SaveRequest{Artifact: artifact, Path: *c.out}); err != nil {
		return err
	}
	s.report(*c.out)
	return nil
}

func runCompare(args []string) error {
	c := newCommand("compare")
	split := c.fs.Float64("split", -1, "fraction of the width showing the original (0-1)")
	w := c.fs.Int("w", 0, "output width (default: window.preview_width)")
	h := c.fs.Int("h", 0, "output height (default: window.preview_height)")
	t := c.fs.Float64("t", -1, "threshold level (0-255)")
	mode := c.fs.String("mode", "", "threshold mode")
	asMask := c.fs.Bool("mask", false, "compare against the threshold mask")

	maxValue := -1.0
	s, err := c.parse(args, func(cfg *config.Config) {
		thresholdTweak(t, &maxValue, mode)(cfg)
		if *split >= 0 {
			cfg.Compare.Split = *split
		}
		if *w > 0 && *h > 0 {
			cfg.Window.PreviewWidth, cfg.Window.PreviewHeight = *w, *h
		}
	})
	if err != nil {
		return err
	}
	defer s.close()

	req, artifact := thresholdRequest(s.cfg, *asMask)
	if err := s.dispatch(
		req,
		core.CompareRequest{
			Against:  artifact,
			Fraction: s.cfg.Compare.Split,
			Width:    s.cfg.Window.PreviewWidth,
			Height:   s.cfg.Window.PreviewHeight,
		},
		core.SaveRequest{Artifact: core.ArtifactComparison, Path: *c.out},
	); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"split_column": compose.SplitColumn(s.cfg.Compare.Split, s.cfg.Window.PreviewWidth),
		"against":      artifact.String(),
	}).Debug("Comparison rendered")
	s.report(*c.out)
	return nil
}

func runResize(args []string) error {
	c := newCommand("resize")
	w := c.fs.Int("w", 0, "target width")
	h := c.fs.Int("h", 0, "target height")
	keepAspect := c.fs.Bool("keep-aspect", false, "derive the height from the width")
	percent := c.fs.Float64("percent", 0, "scale both sides by this percentage")

	s, err := c.parse(args, nil)
	if err != nil {
		return err
	}
	defer s.close()

	req := core.ResizeRequest{Width: *w, Height: *h, KeepAspect: *keepAspect, Percent: *percent}
	switch {
	case *percent > 0:
	case *w <= 0:
		return errors.New("missing required arguments: -w or -percent")
	case *h <= 0:
		req.KeepAspect = true
	}
	if req.Percent == 0 && (req.Width > algorithms.MaxResizeWidth || (!req.KeepAspect && req.Height > algorithms.MaxResizeHeight)) {
		s.logger.WithFields(logrus.Fields{
			"width":  req.Width,
			"height": req.Height,
		}).Warn("Target exceeds the interactive resize limits")
	}

	if err := s.dispatch(req, core.SaveRequest{Artifact: core.ArtifactResized, Path: *c.out}); err != nil {
		return err
	}
	s.report(*c.out)
	return nil
}

func thresholdTweak(t, maxValue *float64, mode *string) func(*config.Config) {
	return func(cfg *config.Config) {
		if *t >= 0 {
			cfg.Threshold.Value = *t
		}
		if *maxValue >= 0 {
			cfg.Threshold.MaxValue = *maxValue
		}
		if *mode != "" {
			cfg.Threshold.Mode = *mode
		}
	}
}

func thresholdRequest(cfg *config.Config, asMask bool) (core.Request, core.Artifact) {
	if asMask {
		return core.ThresholdMaskRequest{
			Threshold: cfg.Threshold.Value,
			Mode:      cfg.ThresholdMode(),
		}, core.ArtifactThresholdMask
	}
	return core.ThresholdRequest{
		Threshold: cfg.Threshold.Value,
		MaxValue:  cfg.Threshold.MaxValue,
		Mode:      cfg.ThresholdMode(),
	}, core.ArtifactThreshold
}

// seedRect parses "x,y,w,h", or insets the whole image by margin when spec
// is empty. The result is clipped to the image.
func seedRect(spec string, width, height, margin int) (image.Rectangle, error) {
	if spec == "" {
		r := image.Rect(0, 0, width, height).Inset(margin)
		return geometry.ClipRect(r, width, height), nil
	}

	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, errors.Errorf("invalid rect %q: want x,y,w,h", spec)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, errors.Wrapf(err, "invalid rect %q", spec)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, errors.Errorf("invalid rect %q: empty", spec)
	}
	r := image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3])
	return geometry.ClipRect(r, width, height), nil
}
