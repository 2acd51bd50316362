package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := log.Logger
	buf := &bytes.Buffer{}
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

func TestLoggerFromContext_RequestFields(t *testing.T) {
	buf := captureLogs(t)

	ctx := WithRequestFields(context.Background(), RequestFields{RequestID: "req-1", UserID: "user-9"})
	LoggerFromContext(ctx).Info().Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "user-9", line["user_id"])
	assert.NotContains(t, line, "trace_id")
}

func TestLoggerFromContext_Bare(t *testing.T) {
	buf := captureLogs(t)

	LoggerFromContext(context.Background()).Info().Msg("plain")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "request_id")
	assert.NotContains(t, line, "user_id")

	_, ok := RequestFieldsFromContext(context.Background())
	assert.False(t, ok)
}
