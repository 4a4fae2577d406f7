package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syllasync/internal/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:5002", cfg.BaseURL)
	assert.Equal(t, model.DeliveryAccountLinked, cfg.DeliveryMode())
	assert.Equal(t, []string{".pdf"}, cfg.Accept)
	assert.Zero(t, cfg.UploadTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().BaseURL, cfg.BaseURL)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte(`
base_url: "https://sync.example.edu/"
calendar: outlook
accept: ["PDF", ".docx"]
upload_timeout: 45s
sync_on_start: true
`)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.edu", cfg.BaseURL)
	assert.Equal(t, "google", cfg.Calendar)
	assert.Equal(t, []string{".pdf", ".docx"}, cfg.Accept)
	assert.Equal(t, 45*time.Second, cfg.UploadTimeout)
	assert.True(t, cfg.SyncOnStart)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 120, cfg.PreviewDays)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")
	want := DefaultConfig()
	want.Calendar = "apple"
	want.SessionCookie = "session=abc123"
	want.UploadTimeout = 2 * time.Minute
	want.Schedule = "0 8 * * 1"
	want.Inputs = []string{"/syllabi"}

	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should not remain")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "localhost:5002"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SessionCookie = "no-equals-sign"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}
