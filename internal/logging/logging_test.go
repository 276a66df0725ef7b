package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONLevels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "WARN", false)
	require.NoError(t, err)

	l.Info().Msg("quiet")
	assert.Zero(t, buf.Len())

	l.Warn().Str("game", "g1").Msg("loud")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "g1", line["game"])
	assert.Contains(t, line, "time")
}

func TestNew_DefaultsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "", true)
	require.NoError(t, err)
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")

	_, err = New(&buf, "chatty", false)
	assert.Error(t, err)
}
