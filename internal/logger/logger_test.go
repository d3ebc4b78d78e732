package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetLogger() {
	SetOutput(nil)
	SetLevel("info")
}

func TestSetLevelFiltersDebug(t *testing.T) {
	t.Cleanup(resetLogger)
	var buf bytes.Buffer
	SetOutput(&buf)

	SetLevel("info")
	Debugf("hidden %d", 1)
	Infof("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")

	SetLevel("debug")
	Debugf("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSetLevelUnknownFallsBackToInfo(t *testing.T) {
	t.Cleanup(resetLogger)
	var buf bytes.Buffer
	SetOutput(&buf)

	SetLevel("chatty")
	Debugf("suppressed")
	Warnf("kept")
	assert.NotContains(t, buf.String(), "suppressed")
	assert.Contains(t, buf.String(), "kept")
}
