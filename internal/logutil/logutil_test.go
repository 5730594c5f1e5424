package logutil

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFormatterTagsAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug")

	logger.WithField("model", "tiny.gguf").Warn("slow load")
	out := buf.String()

	assert.Contains(t, out, "[WRN] slow load")
	assert.Contains(t, out, "model=tiny.gguf")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	logger := NewWithWriter(&bytes.Buffer{}, "chatty")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info")
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
}
