package segmentation

import (
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func floatMat(t *testing.T, rows, cols int, values ...float32) gocv.Mat {
	t.Helper()
	require.Len(t, values, rows*cols)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4)
	mat, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV32FC1, buf)
	require.NoError(t, err)
	t.Cleanup(func() { mat.Close() })
	return mat
}

func byteMat(t *testing.T, rows, cols int, values ...byte) gocv.Mat {
	t.Helper()
	mat, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC1, values)
	require.NoError(t, err)
	t.Cleanup(func() { mat.Close() })
	return mat
}

func TestRefineLabels(t *testing.T) {
	labels := byteMat(t, 1, 4, LabelBackground, LabelForeground, LabelProbableBackground, LabelProbableForeground)

	mask, err := Refine(RawMask{Kind: LabelMask, Data: labels})
	require.NoError(t, err)
	defer mask.Close()

	assert.Equal(t, gocv.MatTypeCV8UC1, mask.Type())
	assert.Equal(t, []byte{0, 1, 0, 1}, mask.ToBytes())
}

func TestRefineProbability(t *testing.T) {
	prob := floatMat(t, 1, 5, 0, 0.49, 0.5, 0.51, 1)

	mask, err := Refine(RawMask{Kind: ProbabilityMask, Data: prob})
	require.NoError(t, err)
	defer mask.Close()

	assert.Equal(t, gocv.MatTypeCV8UC1, mask.Type())
	assert.Equal(t, []byte{0, 0, 0, 1, 1}, mask.ToBytes())
}

func TestRefineExtremes(t *testing.T) {
	for _, tc := range []struct {
		value float64
		want  byte
	}{
		{0, 0},
		{1, 1},
	} {
		prob := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(tc.value, 0, 0, 0), 8, 6, gocv.MatTypeCV32FC1)
		mask, err := Refine(RawMask{Kind: ProbabilityMask, Data: prob})
		require.NoError(t, err)

		assert.Equal(t, 8, mask.Rows())
		assert.Equal(t, 6, mask.Cols())
		for _, b := range mask.ToBytes() {
			assert.Equal(t, tc.want, b)
		}
		mask.Close()
		prob.Close()
	}
}

func TestRefineOutputIsBinary(t *testing.T) {
	values := make([]byte, 64)
	for i := range values {
		values[i] = byte(i % 4)
	}
	labels := byteMat(t, 8, 8, values...)

	mask, err := Refine(RawMask{Kind: LabelMask, Data: labels})
	require.NoError(t, err)
	defer mask.Close()

	for _, b := range mask.ToBytes() {
		assert.Contains(t, []byte{0, 1}, b)
	}
}

func TestRefineErrors(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := Refine(RawMask{Kind: LabelMask, Data: empty})
	assert.True(t, errors.Is(err, ErrEmptyImage))

	labels := byteMat(t, 1, 1, 1)
	_, err = Refine(RawMask{Kind: MaskKind(9), Data: labels})
	assert.Error(t, err)
}
