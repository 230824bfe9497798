package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRejectsUnknownLevel(t *testing.T) {
	err := Setup(LogConfig{Level: "chatty", Output: "stdout"})
	assert.Error(t, err)
}

func TestSetupWritesJSONToFile(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "idscan.log")
	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", Output: path}))

	l := WithComponent("extract")
	l.Debug().Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "extract", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}

func TestFromContextPrefersContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).With().Str("request_id", "abc").Logger()
	ctx := base.WithContext(context.Background())

	l := FromContext(ctx, "scan")
	l.Info().Msg("done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "abc", entry["request_id"])
	assert.Equal(t, "scan", entry["component"])
}
