package core

import (
	"cutout-studio/internal/algorithms"
	"cutout-studio/internal/geometry"
	"cutout-studio/internal/segmentation"
)

// Request is a recomputation request handled by Pipeline.Dispatch
type Request interface {
	Name() string
}

// LoadRequest decodes an image file into the session
type LoadRequest struct {
	Path string
}

// SaveRequest encodes a derived artifact to disk
type SaveRequest struct {
	Artifact Artifact
	Path     string
}

// ThresholdRequest recomputes the thresholded image
type ThresholdRequest struct {
	Threshold float64
	MaxValue  float64
	Mode      algorithms.ThresholdMode
}

// ThresholdMaskRequest recomputes the threshold-masked cutout
type ThresholdMaskRequest struct {
	Threshold float64
	Mode      algorithms.ThresholdMode
}

// AlgorithmRequest runs a registered algorithm with UI-supplied parameters
// and stores the result as the artifact that algorithm produces.
type AlgorithmRequest struct {
	Algorithm string
	Params    map[string]interface{}
}

// ResizeRequest recomputes the resized copy of the original. A positive
// Percent scales both sides and takes precedence over Width and Height.
type ResizeRequest struct {
	Width      int
	Height     int
	KeepAspect bool
	Percent    float64
}

// SegmentRequest extracts the foreground with the chosen backend
type SegmentRequest struct {
	Backend    segmentation.Kind
	Iterations int
}

// ResetSelectionRequest clears the selection and the segmentation results
type ResetSelectionRequest struct{}

// CompareRequest renders the original against a derived artifact
type CompareRequest struct {
	Against  Artifact
	Fraction float64
	Width    int
	Height   int
}

// PointerPhase is the kind of pointer event
type PointerPhase int

const (
	PointerPress PointerPhase = iota
	PointerMove
	PointerRelease
)

// PointerRequest feeds a gesture on the preview surface to the selection
type PointerRequest struct {
	Phase    PointerPhase
	Position geometry.Point
	Viewport geometry.Viewport
}

func (LoadRequest) Name() string           { return "load" }
func (SaveRequest) Name() string           { return "save" }
func (ThresholdRequest) Name() string      { return "threshold" }
func (ThresholdMaskRequest) Name() string  { return "threshold_mask" }
func (r AlgorithmRequest) Name() string    { return "algorithm:" + r.Algorithm }
func (ResizeRequest) Name() string         { return "resize" }
func (SegmentRequest) Name() string        { return "segment" }
func (ResetSelectionRequest) Name() string { return "reset_selection" }
func (CompareRequest) Name() string        { return "compare" }
func (PointerRequest) Name() string        { return "pointer" }
