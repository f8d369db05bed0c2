package segmentation

import (
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestModelInputsAgreeAcrossRuntimes(t *testing.T) {
	cfg := DefaultModelConfig("")
	cfg.InputSize = 2

	// BGR pixels; the first is pure red
	bgr, err := gocv.NewMatFromBytes(2, 2, gocv.MatTypeCV8UC3, []byte{
		0, 0, 255, 10, 20, 30,
		128, 64, 32, 255, 255, 255,
	})
	require.NoError(t, err)
	defer bgr.Close()

	blob := inputBlob(bgr, cfg)
	defer blob.Close()

	img, err := bgr.ToImage()
	require.NoError(t, err)
	tensor := make([]float32, 3*2*2)
	fillInput(tensor, imaging.Clone(img), cfg)

	// red channel of a 255 pixel: (1 - 0.485) / 0.229
	assert.InDelta(t, 2.2489, tensor[0], 1e-3)

	for c := 0; c < 3; c++ {
		plane := gocv.GetBlobChannel(blob, 0, c)
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				assert.InDelta(t, tensor[c*4+y*2+x], plane.GetFloatAt(y, x), 1e-4, "c=%d y=%d x=%d", c, y, x)
			}
		}
		plane.Close()
	}
}

func TestOpenCVModelRejectsZeroStd(t *testing.T) {
	cfg := DefaultModelConfig("model.onnx")
	cfg.Std[1] = 0
	_, err := NewOpenCVModel(cfg)
	assert.Error(t, err)
}
