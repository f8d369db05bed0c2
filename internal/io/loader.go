// Image loading and saving through OpenCV, with Go decoders as fallback
package io

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode is returned for unreadable, corrupt or unsupported input files
	ErrDecode = errors.New("cannot decode image")
	// ErrEncode is returned when an image cannot be written
	ErrEncode = errors.New("cannot encode image")
)

var (
	readableFormats = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}
	writableFormats = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}
)

// ImageLoader handles image file operations
type ImageLoader struct {
	logger *logrus.Entry
}

// NewImageLoader creates a loader that logs through logger
func NewImageLoader(logger *logrus.Logger) *ImageLoader {
	return &ImageLoader{
		logger: logger.WithField("component", "io"),
	}
}

// Load decodes the file at path into an 8-bit BGR Mat
func (il *ImageLoader) Load(path string) (gocv.Mat, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	if !IsReadable(path) {
		return gocv.NewMat(), errors.Wrapf(ErrDecode, "unsupported image format: %s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()

		data, err := os.ReadFile(path)
		if err != nil {
			return gocv.NewMat(), errors.Wrapf(ErrDecode, "%s: %v", path, err)
		}
		mat, err = il.Decode(data)
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, path)
		}
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Info("Image loaded successfully")

	return mat, nil
}

// Decode reads an encoded image from memory. OpenCV is tried first; formats
// it was built without fall back to the Go decoders.
func (il *ImageLoader) Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), errors.Wrap(ErrDecode, "no data")
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	return decodeWithGo(data)
}

func decodeWithGo(data []byte) (gocv.Mat, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(ErrDecode, "%v", err)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(ErrDecode, "convert %s: %v", format, err)
	}
	return mat, nil
}

// Save encodes img with the format implied by the path extension
func (il *ImageLoader) Save(img gocv.Mat, path string) error {
	il.logger.WithField("filepath", path).Debug("Saving image")

	if img.Empty() {
		return errors.Wrap(ErrEncode, "cannot save empty image")
	}
	if !IsWritable(path) {
		return errors.Wrapf(ErrEncode, "unsupported image format: %s", path)
	}

	if !gocv.IMWrite(path, img) {
		return errors.Wrapf(ErrEncode, "failed to save image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    img.Cols(),
		"height":   img.Rows(),
		"channels": img.Channels(),
	}).Info("Image saved successfully")

	return nil
}

// IsReadable reports whether path has an extension Load understands
func IsReadable(path string) bool {
	return hasExtension(path, readableFormats)
}

// IsWritable reports whether path has an extension Save understands
func IsWritable(path string) bool {
	return hasExtension(path, writableFormats)
}

// ReadableExtensions lists the accepted input extensions
func ReadableExtensions() []string {
	return append([]string(nil), readableFormats...)
}

// WritableExtensions lists the accepted output extensions
func WritableExtensions() []string {
	return append([]string(nil), writableFormats...)
}

func hasExtension(path string, formats []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range formats {
		if ext == format {
			return true
		}
	}
	return false
}
