package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_NonTTYIsPlain(t *testing.T) {
	// Given output that is not a terminal
	cfg := NewConfig(&bytes.Buffer{})

	// Then nothing is animated or styled
	assert.False(t, cfg.Interactive())
	assert.False(t, cfg.UseColor())
	assert.False(t, IsTTY(nil))
}

func TestConfig_Options(t *testing.T) {
	cfg := NewConfig(nil, WithForcePlain(true), WithNoColor(true))

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	assert.True(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")

	assert.True(t, DetectCI())
}

func TestNewWaiter_PlainForBuffers(t *testing.T) {
	w := NewWaiter(NewConfig(&bytes.Buffer{}), "Thinking")

	_, ok := w.(*PlainWaiter)
	assert.True(t, ok)
}

func TestStyles_Status(t *testing.T) {
	styles := NoColorStyles()

	for _, s := range []string{"ready", "processing", "failed", "open", "custom"} {
		t.Run(s, func(t *testing.T) {
			assert.Equal(t, s, styles.Status(s))
		})
	}
}
