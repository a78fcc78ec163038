package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithConfig_WritesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithConfig(Config{Level: "debug", Output: &buf})
	log.Debug().Str("component", "test").Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "qrpay", line["service"])
	assert.Equal(t, "test", line["component"])
	assert.Equal(t, "hello", line["message"])
}

func TestNewWithConfig_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithConfig(Config{Level: "warn", Output: &buf})
	log.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestColorizeLevel(t *testing.T) {
	assert.Equal(t, "\033[31merror\033[0m", colorizeLevel("error"))
	assert.Equal(t, "custom", colorizeLevel("custom"))
}
