package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altafino/attachment-store/internal/attachment"
	"github.com/altafino/attachment-store/internal/config"
	"github.com/altafino/attachment-store/internal/scheduler"
	"github.com/altafino/attachment-store/internal/storage"
	"github.com/altafino/attachment-store/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, overrides ...config.Override) *types.Config {
	t.Helper()
	overrides = append([]config.Override{func(cfg *types.Config) {
		cfg.Storage.Root = "/store"
		cfg.Storage.CreateRoot = true
	}}, overrides...)
	cfg, err := config.Load("", overrides...)
	require.NoError(t, err)
	return cfg
}

func withMailbox(cfg *types.Config) {
	cfg.Mailbox.Enabled = true
	cfg.Mailbox.Server = "mail.example.com"
	cfg.Mailbox.Username = "store"
	cfg.Mailbox.Password = "secret"
	cfg.Mailbox.Tracking.Enabled = true
	cfg.Mailbox.Tracking.StoragePath = "/tracking"
	cfg.Scheduling.Enabled = true
	cfg.Scheduling.AuditEvery = "1h"
}

func TestNewCreatesRoot(t *testing.T) {
	fs := afero.NewMemMapFs()

	a, err := New(testConfig(t), testLogger(), WithFs(fs))
	require.NoError(t, err)
	defer a.Stop()

	ok, err := afero.DirExists(fs, "/store")
	require.NoError(t, err)
	assert.True(t, ok)

	in, err := attachment.NewInMemory("a1", "invoice.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	_, err = a.Manager().Create(in)
	require.NoError(t, err)

	report, err := a.Audit()
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, []string{"a1"}, a.Storage().ListIDs())
}

func TestNewRequiresExistingRoot(t *testing.T) {
	cfg := testConfig(t, func(cfg *types.Config) { cfg.Storage.CreateRoot = false })

	_, err := New(cfg, testLogger(), WithFs(afero.NewMemMapFs()))
	assert.ErrorIs(t, err, storage.ErrRootNotDirectory)
}

func TestNewWithLRUCache(t *testing.T) {
	cfg := testConfig(t, func(cfg *types.Config) {
		cfg.Storage.Cache.Type = storage.CacheLRU
		cfg.Storage.Cache.Size = 2
	})

	a, err := New(cfg, testLogger(), WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	a.Stop()
}

func TestIngestDisabled(t *testing.T) {
	a, err := New(testConfig(t), testLogger(), WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	defer a.Stop()

	_, err = a.Ingest(context.Background())
	assert.ErrorIs(t, err, ErrMailboxDisabled)
	assert.Empty(t, a.scheduler.Jobs())
}

func TestApplyConfigUpdatesJobs(t *testing.T) {
	a, err := New(testConfig(t, withMailbox), testLogger(), WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	defer a.Stop()

	assert.Equal(t, []string{scheduler.JobAudit, scheduler.JobIngest}, a.scheduler.Jobs())
	assert.True(t, a.Config().Mailbox.Enabled)

	require.NoError(t, a.applyConfig(testConfig(t)))
	assert.Empty(t, a.scheduler.Jobs())
	assert.False(t, a.Config().Mailbox.Enabled)

	_, err = a.Ingest(context.Background())
	assert.ErrorIs(t, err, ErrMailboxDisabled)
}
