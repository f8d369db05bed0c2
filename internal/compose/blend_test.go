package compose

import (
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func filled(t *testing.T, value float64, rows, cols int, typ gocv.MatType) gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), rows, cols, typ)
	t.Cleanup(func() { mat.Close() })
	return mat
}

func TestBlendHalf(t *testing.T) {
	a := filled(t, 1, 1, 4, gocv.MatTypeCV8UC1)
	b := filled(t, 2, 1, 4, gocv.MatTypeCV8UC1)

	out, err := Blend(a, b, 0.5, 4, 1)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, []byte{1, 1, 2, 2}, out.ToBytes())
}

func TestBlendExtremes(t *testing.T) {
	a := filled(t, 1, 1, 4, gocv.MatTypeCV8UC1)
	b := filled(t, 2, 1, 4, gocv.MatTypeCV8UC1)

	for _, tc := range []struct {
		fraction float64
		want     []byte
	}{
		{0, []byte{2, 2, 2, 2}},
		{-3, []byte{2, 2, 2, 2}},
		{1, []byte{1, 1, 1, 1}},
		{7, []byte{1, 1, 1, 1}},
		{0.3, []byte{1, 2, 2, 2}},
	} {
		out, err := Blend(a, b, tc.fraction, 4, 1)
		require.NoError(t, err)
		assert.Equal(t, tc.want, out.ToBytes(), "fraction %v", tc.fraction)
		out.Close()
	}
}

func TestBlendMarker(t *testing.T) {
	a := filled(t, 1, 2, 4, gocv.MatTypeCV8UC1)
	b := filled(t, 2, 2, 4, gocv.MatTypeCV8UC1)

	out, err := Blend(a, b, 0.5, 4, 2, WithMarker(color.RGBA{R: 255, G: 255, B: 255, A: 255}))
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, []byte{1, 1, 255, 2, 1, 1, 255, 2}, out.ToBytes())

	full, err := Blend(a, b, 1, 4, 2, WithMarker(color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	defer full.Close()
	assert.Equal(t, []byte{1, 1, 1, 1, 1, 1, 1, 1}, full.ToBytes())
}

func TestBlendPromotesChannels(t *testing.T) {
	a := filled(t, 10, 2, 2, gocv.MatTypeCV8UC3)
	b := filled(t, 200, 2, 2, gocv.MatTypeCV8UC1)

	out, err := Blend(a, b, 0.5, 2, 2)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 3, out.Channels())
	assert.Equal(t, []byte{
		10, 10, 10, 200, 200, 200,
		10, 10, 10, 200, 200, 200,
	}, out.ToBytes())
}

func TestBlendLetterboxes(t *testing.T) {
	// 2x1 image on a 2x4 surface: one black row above and below
	a := filled(t, 50, 1, 2, gocv.MatTypeCV8UC1)
	b := filled(t, 60, 1, 2, gocv.MatTypeCV8UC1)

	out, err := Blend(a, b, 0.5, 2, 4)
	require.NoError(t, err)
	defer out.Close()

	require.Equal(t, 4, out.Rows())
	require.Equal(t, 2, out.Cols())
	assert.Equal(t, []byte{
		0, 0,
		50, 60,
		0, 0,
		0, 0,
	}, out.ToBytes())
}

func TestBlendEmptyInput(t *testing.T) {
	a := filled(t, 1, 1, 4, gocv.MatTypeCV8UC1)
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := Blend(a, empty, 0.5, 4, 1)
	assert.True(t, errors.Is(err, ErrEmptyInput))
	_, err = Blend(empty, a, 0.5, 4, 1)
	assert.True(t, errors.Is(err, ErrEmptyInput))
}

func TestLetterbox(t *testing.T) {
	img := filled(t, 255, 10, 20, gocv.MatTypeCV8UC3)

	out, vp, err := Letterbox(img, 40, 40)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 40, out.Cols())
	assert.Equal(t, 40, out.Rows())
	assert.Equal(t, 10, vp.OffsetY)
	assert.Equal(t, uint8(0), out.GetVecbAt(0, 0)[0])
	assert.Equal(t, uint8(255), out.GetVecbAt(20, 20)[0])
}

func TestFractionFromPointer(t *testing.T) {
	assert.InDelta(t, 0.25, FractionFromPointer(100, 400), 1e-12)
	assert.Equal(t, 0.0, FractionFromPointer(-5, 400))
	assert.Equal(t, 1.0, FractionFromPointer(900, 400))
	assert.Equal(t, 0.0, FractionFromPointer(10, 0))
	assert.Equal(t, 2, SplitColumn(0.5, 4))
}
