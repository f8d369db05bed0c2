package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "warn", "json", false)

	logger.Info("dropped")
	logger.WithField("path", "a.png").Warn("kept")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "a.png", entry["path"])
	assert.Equal(t, "warning", entry["level"])
}

func TestDebugMode(t *testing.T) {
	logger := NewWithOutput(&bytes.Buffer{}, "error", "json", true)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestInvalidLevelFallsBack(t *testing.T) {
	logger := NewWithOutput(&bytes.Buffer{}, "loud", "text", false)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
