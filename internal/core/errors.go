package core

import (
	"github.com/pkg/errors"

	"cutout-studio/internal/algorithms"
	"cutout-studio/internal/compose"
	"cutout-studio/internal/segmentation"
)

var (
	// ErrNoSelection is returned when a seeded segmentation runs without a committed rectangle
	ErrNoSelection = errors.New("no selection")
	// ErrNoImage is returned by operations that need a loaded image
	ErrNoImage = errors.Wrap(compose.ErrEmptyInput, "no image loaded")
	// ErrBackendUnavailable is returned when the requested backend was not configured
	ErrBackendUnavailable = errors.New("segmentation backend unavailable")
	// ErrStale is returned when a result belongs to an image that has since been replaced
	ErrStale = errors.New("result is stale")
)

// IsNotice reports whether err is a no-op condition that should be shown to
// the user as a notice rather than a failure.
func IsNotice(err error) bool {
	for _, target := range []error{
		ErrNoSelection,
		ErrStale,
		segmentation.ErrMissingSeed,
		segmentation.ErrEmptyImage,
		algorithms.ErrEmptyImage,
		compose.ErrEmptyInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
