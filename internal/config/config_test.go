package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altafino/attachment-store/internal/types"
)

const sampleConfig = `
storage:
  root: ${ATTACHMENT_STORE_TEST_ROOT}
  cache:
    type: lru
    size: 16
server:
  port: 9000
mailbox:
  enabled: true
  protocol: imap
  server: mail.example.com
  username: store
  password: secret
  tls:
    enabled: true
  allowed_types: [".pdf", ".xml"]
scheduling:
  enabled: true
  frequency_every: minute
  frequency_amount: 15
  audit_every: 1h
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "attachment-store.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("ATTACHMENT_STORE_TEST_ROOT", "/srv/attachments")
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/attachments", cfg.Storage.Root)
	assert.Equal(t, "lru", cfg.Storage.Cache.Type)
	assert.Equal(t, 16, cfg.Storage.Cache.Size)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{".pdf", ".xml"}, cfg.Mailbox.AllowedTypes)
	assert.Equal(t, DefaultIMAPTLSPort, cfg.Mailbox.Port)
	assert.Equal(t, 15, cfg.Scheduling.FrequencyAmount)

	// untouched values come from the defaults
	assert.Equal(t, 30, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/health", cfg.Monitoring.HealthCheckPath)
	assert.Equal(t, "INBOX", cfg.Mailbox.Folder)
	assert.Equal(t, 90, cfg.Mailbox.Tracking.RetentionDays)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Storage, cfg.Storage)
	assert.Equal(t, DefaultPOP3Port, cfg.Mailbox.Port)
	assert.False(t, cfg.Mailbox.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load("", func(cfg *types.Config) {
		cfg.Logging.Level = "debug"
		cfg.Server.Port = 7000
	})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "storage:\n  cache:\n    type: fifo\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.cache.type")

	_, err = Load("", func(cfg *types.Config) { cfg.Logging.Level = "verbose" })
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Load(missing)
	require.Error(t, err)

	cfg, err := LoadOptional(missing)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "storage: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server:\n  port: 9000\n")

	w, err := StartWatcher(path, testLogger())
	require.NoError(t, err)
	defer w.Stop()

	// invalid content is ignored
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-w.ReloadChan():
			require.NotNil(t, cfg)
			if cfg.Server.Port == 9100 {
				return
			}
		case <-deadline:
			t.Fatal("configuration was not reloaded")
		}
	}
}

func TestWatcherStopClosesChannel(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	w, err := StartWatcher(path, testLogger())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.ReloadChan()
	assert.False(t, ok)
}
