package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Hallo", Truncate("Hallo", 10))
	assert.Equal(t, "Küll...", Truncate("Küllmann", 4))
	assert.Equal(t, "", Truncate("", 3))
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.log")

	l := New("debug", "json", path)
	NewZapAdapter(l).WithFields(map[string]interface{}{"sessionId": "s1"}).Info("turn answered", map[string]interface{}{"approach": "analytical"})
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	assert.Contains(t, line, `"msg":"turn answered"`)
	assert.Contains(t, line, `"sessionId":"s1"`)
	assert.Contains(t, line, `"approach":"analytical"`)
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.log")

	l := New("warn", "json", path)
	l.Info("ignored")
	l.Warn("kept")
	require.NoError(t, l.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ignored")
	assert.Contains(t, string(raw), "kept")
}
