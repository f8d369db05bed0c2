// Measurements reported after thresholding and segmentation
package metrics

import (
	"sort"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Metric defines the interface for image measurements
type Metric interface {
	// Calculate computes the metric value
	Calculate(original, processed gocv.Mat) (float64, error)

	// GetName returns the metric name
	GetName() string

	// GetDescription returns the metric description
	GetDescription() string

	// GetRange returns the value range (min, max)
	GetRange() (float64, float64)

	// IsHigherBetter returns true if higher values indicate better quality
	IsHigherBetter() bool
}

// ErrUnknownMetric is returned for names missing from the evaluator
var ErrUnknownMetric = errors.New("metric not found")

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates an evaluator with the default metrics registered
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.RegisterDefaultMetrics()
	return e
}

// RegisterDefaultMetrics registers all default metrics
func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("psnr", NewPSNR())
	e.Register("foreground_ratio", NewForegroundRatio())
	e.Register("mask_iou", NewMaskIoU())
	e.Register("contrast", NewContrast())
}

// Register registers a metric
func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Names returns the registered metric names in sorted order
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, original, processed gocv.Mat) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, errors.Wrap(ErrUnknownMetric, name)
	}
	return metric.Calculate(original, processed)
}

// EvaluateStep calculates the metrics relevant to a processing step.
// Metrics that fail are left out.
func (e *Evaluator) EvaluateStep(step string, before, after gocv.Mat) map[string]float64 {
	var names []string
	switch step {
	case "threshold":
		names = []string{"foreground_ratio", "contrast"}
	case "segmentation":
		names = []string{"foreground_ratio"}
	case "comparison":
		names = []string{"psnr"}
	}

	results := make(map[string]float64, len(names))
	for _, name := range names {
		if v, err := e.Calculate(name, before, after); err == nil {
			results[name] = v
		}
	}
	return results
}

// EvaluateProbability summarizes a CV32F probability map
func (e *Evaluator) EvaluateProbability(prob gocv.Mat) map[string]float64 {
	values, err := floatValues(prob)
	if err != nil || len(values) == 0 {
		return map[string]float64{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	return map[string]float64{
		"probability_mean":   mean,
		"probability_stddev": std,
	}
}

// MetricInfo provides metadata about a metric
type MetricInfo struct {
	Name         string
	Description  string
	Range        [2]float64 // [min, max]
	HigherBetter bool
}

// GetMetricInfo returns information about all metrics
func (e *Evaluator) GetMetricInfo() map[string]MetricInfo {
	info := make(map[string]MetricInfo, len(e.metrics))
	for name, metric := range e.metrics {
		lo, hi := metric.GetRange()
		info[name] = MetricInfo{
			Name:         metric.GetName(),
			Description:  metric.GetDescription(),
			Range:        [2]float64{lo, hi},
			HigherBetter: metric.IsHigherBetter(),
		}
	}
	return info
}
