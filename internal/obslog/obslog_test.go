package obslog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterAttachesPermanentFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "run-1", "genetic", "ES")
	logger.Info().Msg("started")

	var fields map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "genetic", fields["mode"])
	assert.Equal(t, "ES", fields["symbol"])
	assert.Equal(t, "started", fields["message"])
}

func TestWithIterationAddsIterationField(t *testing.T) {
	var buf bytes.Buffer
	logger := WithIteration(NewWithWriter(&buf, "run-1", "serial", "ES"), 7)
	logger.Info().Msg("progress")

	var fields map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	assert.Equal(t, float64(7), fields["iteration"])
}
