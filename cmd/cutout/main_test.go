package main

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cutout-studio/internal/algorithms"
	"cutout-studio/internal/config"
	"cutout-studio/internal/core"
)

func TestSeedRectDefaultInset(t *testing.T) {
	r, err := seedRect("", 100, 80, 10)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 10, 90, 70), r)
}

func TestSeedRectParsesAndClips(t *testing.T) {
	r, err := seedRect("20, 10, 200, 30", 100, 80, 10)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(20, 10, 100, 40), r)
}

func TestSeedRectRejectsBadInput(t *testing.T) {
	for _, spec := range []string{"1,2,3", "a,b,c,d", "0,0,0,10", "0,0,10,-1"} {
		_, err := seedRect(spec, 100, 80, 10)
		assert.Error(t, err, spec)
	}
}

func TestThresholdRequestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Threshold.Value = 90
	cfg.Threshold.Mode = "binary_inv"

	req, artifact := thresholdRequest(cfg, false)
	assert.Equal(t, core.ArtifactThreshold, artifact)
	assert.Equal(t, core.ThresholdRequest{
		Threshold: 90,
		MaxValue:  cfg.Threshold.MaxValue,
		Mode:      algorithms.ThresholdBinaryInverted,
	}, req)

	req, artifact = thresholdRequest(cfg, true)
	assert.Equal(t, core.ArtifactThresholdMask, artifact)
	assert.Equal(t, core.ThresholdMaskRequest{Threshold: 90, Mode: algorithms.ThresholdBinaryInverted}, req)
}

func TestThresholdTweakKeepsUnsetFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	t1, maxValue, mode := -1.0, 200.0, ""
	thresholdTweak(&t1, &maxValue, &mode)(cfg)

	assert.Equal(t, algorithms.DefaultThreshold, cfg.Threshold.Value)
	assert.Equal(t, 200.0, cfg.Threshold.MaxValue)
	assert.Equal(t, config.DefaultConfig().Threshold.Mode, cfg.Threshold.Mode)
}
