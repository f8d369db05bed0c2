// Runtime configuration loaded from a TOML file and overridden by flags
package config

import (
	"image/color"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"cutout-studio/internal/algorithms"
	"cutout-studio/internal/segmentation"
)

// Config holds runtime configuration for the application and the batch tool
type Config struct {
	Log          LogConfig          `toml:"log"`
	Threshold    ThresholdConfig    `toml:"threshold"`
	Segmentation SegmentationConfig `toml:"segmentation"`
	Matte        MatteConfig        `toml:"matte"`
	Compare      CompareConfig      `toml:"compare"`
	Window       WindowConfig       `toml:"window"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

type ThresholdConfig struct {
	Value    float64 `toml:"value"`
	MaxValue float64 `toml:"max_value"`
	Mode     string  `toml:"mode"`
}

type SegmentationConfig struct {
	Backend    string `toml:"backend"`
	Iterations int    `toml:"iterations"`
	// Background is a hex color such as "#ffffff"
	Background string `toml:"background"`
	// SeedMargin is the inset of the default seed used by the batch tool
	SeedMargin int `toml:"seed_margin"`
}

type MatteConfig struct {
	Runtime      string     `toml:"runtime"` // "opencv" or "onnxruntime"
	ModelPath    string     `toml:"model_path"`
	LibraryPath  string     `toml:"library_path"`
	InputSize    int        `toml:"input_size"`
	InputName    string     `toml:"input_name"`
	OutputName   string     `toml:"output_name"`
	Mean         [3]float64 `toml:"mean"`
	Std          [3]float64 `toml:"std"`
	ApplySigmoid bool       `toml:"apply_sigmoid"`
}

type CompareConfig struct {
	Split  float64 `toml:"split"`
	Marker bool    `toml:"marker"`
}

type WindowConfig struct {
	Width         int `toml:"width"`
	Height        int `toml:"height"`
	PreviewWidth  int `toml:"preview_width"`
	PreviewHeight int `toml:"preview_height"`
}

// DefaultConfig returns a Config populated with standard defaults
func DefaultConfig() *Config {
	model := segmentation.DefaultModelConfig("")
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Threshold: ThresholdConfig{
			Value:    algorithms.DefaultThreshold,
			MaxValue: algorithms.DefaultMaxValue,
			Mode:     algorithms.ThresholdBinary.String(),
		},
		Segmentation: SegmentationConfig{
			Backend:    segmentation.KindRectSeededCut.String(),
			Iterations: segmentation.DefaultIterations,
			Background: "#ffffff",
			SeedMargin: 10,
		},
		Matte: MatteConfig{
			Runtime:    segmentation.RuntimeOpenCV,
			InputSize:  model.InputSize,
			InputName:  model.InputName,
			OutputName: model.OutputName,
			Mean:       model.Mean,
			Std:        model.Std,
		},
		Compare: CompareConfig{
			Split:  0.5,
			Marker: true,
		},
		Window: WindowConfig{
			Width:         1400,
			Height:        900,
			PreviewWidth:  800,
			PreviewHeight: 600,
		},
	}
}

// Validate clamps values to safe ranges and rejects values that cannot be fixed
func (c *Config) Validate() error {
	def := DefaultConfig()

	c.Threshold.Value = clamp(c.Threshold.Value, 0, 255)
	c.Threshold.MaxValue = clamp(c.Threshold.MaxValue, 0, 255)
	if c.Threshold.Mode == "" {
		c.Threshold.Mode = def.Threshold.Mode
	}
	if _, err := algorithms.ParseThresholdMode(c.Threshold.Mode); err != nil {
		return err
	}

	if c.Segmentation.Backend == "" {
		c.Segmentation.Backend = def.Segmentation.Backend
	}
	if _, err := segmentation.ParseKind(c.Segmentation.Backend); err != nil {
		return err
	}
	c.Segmentation.Iterations = segmentation.ClampIterations(c.Segmentation.Iterations)
	if c.Segmentation.Background == "" {
		c.Segmentation.Background = def.Segmentation.Background
	}
	if _, err := ParseColor(c.Segmentation.Background); err != nil {
		return err
	}
	if c.Segmentation.SeedMargin < 0 {
		c.Segmentation.SeedMargin = 0
	}

	if c.Matte.InputSize <= 0 {
		c.Matte.InputSize = def.Matte.InputSize
	}
	for i := range c.Matte.Std {
		if c.Matte.Std[i] <= 0 {
			c.Matte.Std[i] = 1
		}
	}

	c.Compare.Split = clamp(c.Compare.Split, 0, 1)

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		c.Window.Width, c.Window.Height = def.Window.Width, def.Window.Height
	}
	if c.Window.PreviewWidth <= 0 || c.Window.PreviewHeight <= 0 {
		c.Window.PreviewWidth, c.Window.PreviewHeight = def.Window.PreviewWidth, def.Window.PreviewHeight
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		c.Log.Format = def.Log.Format
	}
	return nil
}

// Load reads configuration from a TOML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return DefaultConfig(), errors.Wrapf(err, "failed to read config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Save writes the configuration to path in TOML format
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

// ThresholdMode returns the parsed threshold mode
func (c *Config) ThresholdMode() algorithms.ThresholdMode {
	mode, err := algorithms.ParseThresholdMode(c.Threshold.Mode)
	if err != nil {
		return algorithms.ThresholdBinary
	}
	return mode
}

// BackendKind returns the parsed default segmentation backend
func (c *Config) BackendKind() segmentation.Kind {
	kind, err := segmentation.ParseKind(c.Segmentation.Backend)
	if err != nil {
		return segmentation.KindRectSeededCut
	}
	return kind
}

// BackgroundColor returns the parsed background color, white on error
func (c *Config) BackgroundColor() color.RGBA {
	col, err := ParseColor(c.Segmentation.Background)
	if err != nil {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return col
}

// ModelConfig converts the matte section for the segmentation package
func (c *Config) ModelConfig() segmentation.ModelConfig {
	return segmentation.ModelConfig{
		Path:         c.Matte.ModelPath,
		InputSize:    c.Matte.InputSize,
		Mean:         c.Matte.Mean,
		Std:          c.Matte.Std,
		ApplySigmoid: c.Matte.ApplySigmoid,
		InputName:    c.Matte.InputName,
		OutputName:   c.Matte.OutputName,
		LibraryPath:  c.Matte.LibraryPath,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
