package segmentation

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Matte model runtimes
const (
	RuntimeOpenCV      = "opencv"
	RuntimeONNXRuntime = "onnxruntime"
)

// LoadModel opens a matte network with the named runtime
func LoadModel(runtime string, cfg ModelConfig) (ProbabilityModel, error) {
	if cfg.Path == "" {
		return nil, errors.New("matte model path is empty")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, errors.Wrap(err, "matte model")
	}

	switch strings.ToLower(runtime) {
	case RuntimeOpenCV, "":
		model, err := NewOpenCVModel(cfg)
		if err != nil {
			return nil, err
		}
		return model, nil
	case RuntimeONNXRuntime, "ort":
		model, err := NewONNXModel(cfg)
		if err != nil {
			return nil, err
		}
		return model, nil
	}
	return nil, errors.Errorf("unknown matte runtime %q", runtime)
}
