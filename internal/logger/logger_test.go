package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", Output: path}))
	t.Cleanup(func() {
		Close()
		_ = Setup(DefaultConfig())
	})

	log := WithRequestID("verification", "req-1")
	log.Info().Str("invoice", "INV-1").Msg("Invoice verified")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "verification", entry["component"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "INV-1", entry["invoice"])
	assert.Equal(t, "info", entry["level"])
}

func TestSetupRejectsBadConfig(t *testing.T) {
	t.Cleanup(func() { _ = Setup(DefaultConfig()) })

	assert.Error(t, Setup(LogConfig{Level: "loud", Format: "json"}))
	assert.Error(t, Setup(LogConfig{Level: "info", Format: "xml"}))
}
