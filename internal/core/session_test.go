package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solid(rows, cols int, typ gocv.MatType, v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 255), rows, cols, typ)
}

func TestSessionLoad(t *testing.T) {
	s := NewSession()
	defer s.Close()
	assert.False(t, s.HasImage())

	src := solid(4, 6, gocv.MatTypeCV8UC4, 9)
	defer src.Close()

	gen, err := s.Load(src, "/tmp/photo.PNG")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	assert.True(t, s.HasImage())

	meta := s.Metadata()
	assert.Equal(t, ImageMetadata{Width: 6, Height: 4, Channels: 3, Format: "png"}, meta)
	assert.Equal(t, "/tmp/photo.PNG", s.Path())

	img := s.Original()
	defer img.Close()
	assert.Equal(t, 3, img.Channels())
}

func TestSessionRejectsEmpty(t *testing.T) {
	s := NewSession()
	defer s.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	_, err := s.Load(empty, "x.png")
	assert.True(t, errors.Is(err, ErrNoImage))
	assert.False(t, s.HasImage())
}

func TestSessionReadersGetClones(t *testing.T) {
	s := NewSession()
	defer s.Close()

	src := solid(2, 2, gocv.MatTypeCV8UC1, 5)
	defer src.Close()
	gen, err := s.Load(src, "")
	require.NoError(t, err)

	img := s.Original()
	img.SetUCharAt(0, 0, 200)
	img.Close()

	again := s.Original()
	defer again.Close()
	assert.Equal(t, uint8(5), again.GetUCharAt(0, 0))

	require.NoError(t, s.Publish(gen, map[Artifact]gocv.Mat{ArtifactThreshold: solid(2, 2, gocv.MatTypeCV8UC1, 1)}))
	a, ok := s.Artifact(ArtifactThreshold)
	require.True(t, ok)
	a.SetUCharAt(1, 1, 77)
	a.Close()

	b, ok := s.Artifact(ArtifactThreshold)
	require.True(t, ok)
	defer b.Close()
	assert.Equal(t, uint8(1), b.GetUCharAt(1, 1))
}

func TestSessionStalePublish(t *testing.T) {
	s := NewSession()
	defer s.Close()

	src := solid(2, 2, gocv.MatTypeCV8UC1, 5)
	defer src.Close()

	first, err := s.Load(src, "")
	require.NoError(t, err)
	second, err := s.Load(src, "")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	err = s.Publish(first, map[Artifact]gocv.Mat{ArtifactMask: solid(2, 2, gocv.MatTypeCV8UC1, 1)})
	assert.True(t, errors.Is(err, ErrStale))
	assert.False(t, s.HasArtifact(ArtifactMask))
}

func TestSessionLoadClearsArtifacts(t *testing.T) {
	s := NewSession()
	defer s.Close()

	src := solid(2, 2, gocv.MatTypeCV8UC1, 5)
	defer src.Close()

	gen, err := s.Load(src, "")
	require.NoError(t, err)
	require.NoError(t, s.Publish(gen, map[Artifact]gocv.Mat{ArtifactCutout: solid(2, 2, gocv.MatTypeCV8UC3, 1)}))
	assert.True(t, s.HasArtifact(ArtifactCutout))

	_, err = s.Load(src, "")
	require.NoError(t, err)
	assert.False(t, s.HasArtifact(ArtifactCutout))

	s.Discard(ArtifactCutout)
}

func TestParseArtifact(t *testing.T) {
	for a := range artifactNames {
		parsed, err := ParseArtifact(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	_, err := ParseArtifact("negative")
	assert.Error(t, err)
}
