package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewPrefixesAppName(t *testing.T) {
	var buf bytes.Buffer
	logger := New("parcellink", "debug", &buf)

	logger.Info("loaded layers")

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "[parcellink] loaded layers")
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New("parcellink", "chatty", &buf)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "Invalid log level 'chatty'")
}

func TestNewDisablesColorsForBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger := New("", "info", &buf)

	f, ok := logger.Formatter.(*logrus.TextFormatter)
	if assert.True(t, ok) {
		assert.True(t, f.DisableColors)
	}
}
