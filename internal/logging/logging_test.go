package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/linechat/internal/logging"
)

func TestNew_WriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := logging.New(logging.Options{Level: "debug", Writer: &buf})
	require.NoError(t, err)
	defer closer.Close()

	log.Debug().Str("peer", "p1").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "p1", entry["peer"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := logging.New(logging.Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	log.Info().Msg("quiet")
	assert.Zero(t, buf.Len())
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	log, closer, err := logging.New(logging.Options{File: path})
	require.NoError(t, err)

	log.Info().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := logging.New(logging.Options{Level: "shouty"})
	assert.Error(t, err)
}
