package core

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"cutout-studio/internal/compose"
	"cutout-studio/internal/config"
	"cutout-studio/internal/segmentation"
)

// NewPipelineFromConfig builds a pipeline with the backends, background and
// comparison marker described by cfg. The dense matte backend is added only
// when a model path is configured.
func NewPipelineFromConfig(cfg *config.Config, codec ImageCodec, logger *logrus.Logger) (*Pipeline, error) {
	backends := map[segmentation.Kind]segmentation.Backend{
		segmentation.KindRectSeededCut: segmentation.NewRectSeededCut(),
	}

	if cfg.Matte.ModelPath != "" {
		model, err := segmentation.LoadModel(cfg.Matte.Runtime, cfg.ModelConfig())
		if err != nil {
			return nil, errors.Wrap(err, "failed to load matte model")
		}
		backend, err := segmentation.New(segmentation.KindDenseMatte, segmentation.Options{Model: model})
		if err != nil {
			model.Close()
			return nil, err
		}
		backends[segmentation.KindDenseMatte] = backend

		logger.WithFields(logrus.Fields{
			"runtime": cfg.Matte.Runtime,
			"model":   cfg.Matte.ModelPath,
		}).Info("Matte model loaded")
	}

	opts := PipelineOptions{
		Backends:   backends,
		Background: compose.SolidColor(cfg.BackgroundColor()),
	}
	if cfg.Compare.Marker {
		marker := compose.White
		opts.Marker = &marker
	}

	return NewPipeline(NewSession(), NewSelectionMachine(), codec, logger, opts), nil
}
