package geometry

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeViewportLetterbox(t *testing.T) {
	// wide image in a square surface: bars above and below
	vp, err := ComputeViewport(200, 100, 400, 400)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, vp.Scale, 1e-12)
	assert.Equal(t, 0, vp.OffsetX)
	assert.Equal(t, 100, vp.OffsetY)

	w, h := vp.ScaledSize()
	assert.Equal(t, 400, w)
	assert.Equal(t, 200, h)
	assert.Equal(t, image.Rect(0, 100, 400, 300), vp.ImageRect())
}

func TestComputeViewportPillarbox(t *testing.T) {
	vp, err := ComputeViewport(100, 300, 600, 300)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vp.Scale, 1e-12)
	assert.Equal(t, 250, vp.OffsetX)
	assert.Equal(t, 0, vp.OffsetY)
}

func TestComputeViewportInvalid(t *testing.T) {
	cases := [][4]int{
		{0, 10, 10, 10},
		{10, -1, 10, 10},
		{10, 10, 0, 10},
		{10, 10, 10, 0},
	}
	for _, c := range cases {
		_, err := ComputeViewport(c[0], c[1], c[2], c[3])
		assert.True(t, errors.Is(err, ErrInvalidDimensions), "case %v", c)
	}
}

func TestViewportRoundTrip(t *testing.T) {
	surfaces := [][2]int{{640, 480}, {333, 777}, {50, 50}, {1920, 1080}}
	images := [][2]int{{800, 600}, {37, 91}, {1, 1}, {4000, 3}}

	for _, s := range surfaces {
		for _, im := range images {
			vp, err := ComputeViewport(im[0], im[1], s[0], s[1])
			require.NoError(t, err)

			stepX := max(1, im[0]/17)
			stepY := max(1, im[1]/13)
			for y := 0; y < im[1]; y += stepY {
				for x := 0; x < im[0]; x += stepX {
					p := image.Pt(x, y)
					back := vp.ToImageSpace(vp.ToDisplaySpace(p))
					assert.LessOrEqual(t, abs(back.X-p.X), 1, "x for %v in %v", p, vp)
					assert.LessOrEqual(t, abs(back.Y-p.Y), 1, "y for %v in %v", p, vp)
				}
			}
		}
	}
}

func TestToImageSpaceClampsBars(t *testing.T) {
	vp, err := ComputeViewport(200, 100, 400, 400)
	require.NoError(t, err)

	// inside the top bar
	assert.Equal(t, image.Pt(0, 0), vp.ToImageSpace(Point{X: 0, Y: 10}))
	// below the image
	assert.Equal(t, image.Pt(199, 99), vp.ToImageSpace(Point{X: 1000, Y: 1000}))
	// center of the surface
	assert.Equal(t, image.Pt(100, 50), vp.ToImageSpace(Point{X: 200, Y: 200}))
}

func TestImageRectToDisplay(t *testing.T) {
	vp, err := ComputeViewport(100, 100, 200, 300)
	require.NoError(t, err)

	r := vp.ImageRectToDisplay(image.Rect(10, 10, 20, 30))
	assert.Equal(t, image.Rect(20, 70, 40, 110), r)
}

func TestNormalizeRect(t *testing.T) {
	want := image.Rect(2, 3, 10, 12)
	assert.Equal(t, want, NormalizeRect(image.Pt(2, 3), image.Pt(10, 12)))
	assert.Equal(t, want, NormalizeRect(image.Pt(10, 12), image.Pt(2, 3)))
	assert.Equal(t, want, NormalizeRect(image.Pt(2, 12), image.Pt(10, 3)))
	assert.True(t, NormalizeRect(image.Pt(5, 5), image.Pt(5, 9)).Empty())
}

func TestClipRect(t *testing.T) {
	assert.Equal(t, image.Rect(0, 0, 10, 5), ClipRect(image.Rect(-5, -5, 20, 5), 10, 10))
	assert.True(t, ClipRect(image.Rect(20, 20, 30, 30), 10, 10).Empty())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
