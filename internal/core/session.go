// Loaded image and its derived artifacts, shared between the UI and workers
package core

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Artifact names an image derived from the loaded original
type Artifact int

const (
	ArtifactThreshold Artifact = iota
	ArtifactThresholdMask
	ArtifactResized
	ArtifactMask
	ArtifactCutout
	ArtifactComparison
)

var artifactNames = map[Artifact]string{
	ArtifactThreshold:     "threshold",
	ArtifactThresholdMask: "threshold_mask",
	ArtifactResized:       "resized",
	ArtifactMask:          "mask",
	ArtifactCutout:        "cutout",
	ArtifactComparison:    "comparison",
}

func (a Artifact) String() string {
	if name, ok := artifactNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseArtifact accepts the names produced by String
func ParseArtifact(s string) (Artifact, error) {
	for a, name := range artifactNames {
		if name == strings.ToLower(s) {
			return a, nil
		}
	}
	return 0, errors.Errorf("unknown artifact %q", s)
}

// ImageMetadata contains image information
type ImageMetadata struct {
	Width    int
	Height   int
	Channels int
	Format   string
}

const maxDimension = 16384

// Session owns the loaded image. Only one goroutine writes at a time; any
// number may read. Readers always receive clones, and derived artifacts are
// replaced wholesale, so nothing handed out is mutated afterwards.
type Session struct {
	mu         sync.RWMutex
	original   gocv.Mat
	hasImage   bool
	path       string
	metadata   ImageMetadata
	generation uint64
	artifacts  map[Artifact]gocv.Mat
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{
		original:  gocv.NewMat(),
		artifacts: make(map[Artifact]gocv.Mat),
	}
}

// Load replaces the original image, drops every derived artifact and
// returns the new generation. Four-channel images are reduced to BGR.
func (s *Session) Load(mat gocv.Mat, path string) (uint64, error) {
	if err := ValidateImage(mat); err != nil {
		return 0, err
	}

	var stored gocv.Mat
	if mat.Channels() == 4 {
		stored = gocv.NewMat()
		gocv.CvtColor(mat, &stored, gocv.ColorBGRAToBGR)
	} else {
		stored = mat.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.original
	s.original = stored
	old.Close()
	s.clearArtifactsLocked()

	s.hasImage = true
	s.path = path
	s.generation++
	s.metadata = ImageMetadata{
		Width:    stored.Cols(),
		Height:   stored.Rows(),
		Channels: stored.Channels(),
		Format:   formatFromPath(path),
	}

	return s.generation, nil
}

// Original returns a copy of the loaded image, or an empty Mat
func (s *Session) Original() gocv.Mat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasImage {
		return gocv.NewMat()
	}
	return s.original.Clone()
}

// Snapshot returns a copy of the loaded image along with its generation
func (s *Session) Snapshot() (gocv.Mat, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasImage {
		return gocv.NewMat(), s.generation, ErrNoImage
	}
	return s.original.Clone(), s.generation, nil
}

// HasImage returns true if an image is loaded
func (s *Session) HasImage() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasImage
}

// Generation increments every time a new image is loaded
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Metadata returns image metadata
func (s *Session) Metadata() ImageMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata
}

// Path returns the file the image was loaded from
func (s *Session) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Publish stores derived artifacts computed from the given generation. The
// session takes ownership of the Mats. When the generation is outdated
// nothing is stored, the Mats are closed and ErrStale is returned.
func (s *Session) Publish(generation uint64, results map[Artifact]gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasImage || generation != s.generation {
		for _, m := range results {
			m.Close()
		}
		return ErrStale
	}

	for a, m := range results {
		old, ok := s.artifacts[a]
		s.artifacts[a] = m
		if ok {
			old.Close()
		}
	}
	return nil
}

// Artifact returns a copy of a derived image
func (s *Session) Artifact(a Artifact) (gocv.Mat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.artifacts[a]
	if !ok {
		return gocv.NewMat(), false
	}
	return m.Clone(), true
}

// HasArtifact reports whether a derived image is available
func (s *Session) HasArtifact(a Artifact) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.artifacts[a]
	return ok
}

// Discard drops the named artifacts
func (s *Session) Discard(artifacts ...Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range artifacts {
		if m, ok := s.artifacts[a]; ok {
			m.Close()
			delete(s.artifacts, a)
		}
	}
}

func (s *Session) clearArtifactsLocked() {
	for a, m := range s.artifacts {
		m.Close()
		delete(s.artifacts, a)
	}
}

// Close releases all resources
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearArtifactsLocked()
	s.original.Close()
	s.original = gocv.NewMat()
	s.hasImage = false
	s.path = ""
	s.metadata = ImageMetadata{}
}

func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

// ValidateImage validates an OpenCV Mat for basic requirements
func ValidateImage(mat gocv.Mat) error {
	if mat.Empty() {
		return errors.Wrap(ErrNoImage, "image is empty")
	}

	if mat.Cols() <= 0 || mat.Rows() <= 0 {
		return errors.Errorf("invalid dimensions: %dx%d", mat.Cols(), mat.Rows())
	}

	channels := mat.Channels()
	if channels != 1 && channels != 3 && channels != 4 {
		return errors.Errorf("unsupported channel count: %d", channels)
	}

	if mat.Cols() > maxDimension || mat.Rows() > maxDimension {
		return errors.Errorf("image too large: %dx%d (max: %d)", mat.Cols(), mat.Rows(), maxDimension)
	}

	return nil
}
