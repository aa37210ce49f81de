package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "solari", cfg.Name)
	assert.Equal(t, 5, cfg.Router.TopN)
	assert.Equal(t, "sqlite", cfg.Audit.Backend)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solari.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: front-desk
router:
  top_n: 3
audit:
  backend: jsonl
  path: /tmp/audit.jsonl
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "front-desk", cfg.Name)
	assert.Equal(t, 3, cfg.Router.TopN)
	assert.Equal(t, "jsonl", cfg.Audit.Backend)
	// Untouched sections keep defaults.
	assert.Equal(t, "10m", cfg.Flow.ConfirmationTTL)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bad-backend.yaml")
	require.NoError(t, os.WriteFile(path, []byte("audit:\n  backend: postgres\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)

	path = filepath.Join(dir, "bad-duration.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flow:\n  tool_timeout: soon\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k-123")
	t.Setenv("SOLARI_AUDIT_BACKEND", "memory")
	t.Setenv("SOLARI_DEBUG", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.Classifier.Enabled)
	assert.Equal(t, "k-123", cfg.Classifier.APIKey)
	assert.Equal(t, "memory", cfg.Audit.Backend)
	assert.True(t, cfg.Logging.Debug)
}

func TestDotEnvLoaded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SOLARI_LOG_DIR=/var/log/solari\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("SOLARI_LOG_DIR") })

	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/var/log/solari", cfg.Logging.Dir)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "solari.yaml")
	cfg := DefaultConfig()
	cfg.Router.TopN = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Router.TopN)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 10*time.Minute, Duration("10m", time.Second))
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("garbage", time.Second))
}
