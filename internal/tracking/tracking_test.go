package tracking

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altafino/attachment-store/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileStorageRequiresInitialize(t *testing.T) {
	s, err := NewFileStorage(afero.NewMemMapFs(), "/tracking")
	require.NoError(t, err)

	_, err = s.HasRecord("pop3", "mail", "u", "m1")
	assert.ErrorIs(t, err, ErrStorageNotInitialized)

	_, err = NewFileStorage(afero.NewMemMapFs(), "")
	assert.Error(t, err)
}

func TestFileStorageRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := NewFileStorage(fs, "/tracking")
	require.NoError(t, err)
	require.NoError(t, s.Initialize())

	now := time.Now().UTC()
	require.NoError(t, s.AddRecord(MessageRecord{MessageID: "m1", Protocol: "pop3", Server: "mail", Username: "u", IngestedAt: now, Status: StatusIngested}))
	require.NoError(t, s.AddRecord(MessageRecord{MessageID: "m2", Protocol: "imap", Server: "mail", Username: "u", IngestedAt: now, Status: StatusFailed}))

	ok, err := s.HasRecord("pop3", "mail", "u", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasRecord("imap", "mail", "u", "m1")
	require.NoError(t, err)
	assert.False(t, ok)

	failed, err := s.GetRecords(map[string]string{"status": StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "m2", failed[0].MessageID)

	all, err := s.GetRecords(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// survives a reopen
	reopened, err := NewFileStorage(fs, "/tracking")
	require.NoError(t, err)
	require.NoError(t, reopened.Initialize())
	ok, err = reopened.HasRecord("imap", "mail", "u", "m2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStorageCleanup(t *testing.T) {
	s, err := NewFileStorage(afero.NewMemMapFs(), "/tracking")
	require.NoError(t, err)
	require.NoError(t, s.Initialize())

	now := time.Now().UTC()
	require.NoError(t, s.AddRecord(MessageRecord{MessageID: "old", IngestedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, s.AddRecord(MessageRecord{MessageID: "new", IngestedAt: now}))

	removed, err := s.CleanupOldRecords(now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	records, err := s.GetRecords(nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].MessageID)
}

func TestManagerDisabled(t *testing.T) {
	m, err := NewManager(afero.NewMemMapFs(), types.TrackingConfig{}, testLogger())
	require.NoError(t, err)
	assert.False(t, m.Enabled())

	require.NoError(t, m.MarkIngested("pop3", "mail", "u", "m1", "", StatusIngested, nil))
	ok, err := m.IsIngested("pop3", "mail", "u", "m1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, m.CleanupOldRecords())
}

func TestManagerTracksMessages(t *testing.T) {
	cfg := types.TrackingConfig{Enabled: true, StorageType: "file", StoragePath: "/tracking", RetentionDays: 30}
	m, err := NewManager(afero.NewMemMapFs(), cfg, testLogger())
	require.NoError(t, err)
	assert.True(t, m.Enabled())

	m.now = func() time.Time { return time.Now().AddDate(0, 0, -60) }
	require.NoError(t, m.MarkIngested("pop3", "mail", "u", "old", "", StatusIngested, []string{"x"}))
	m.now = time.Now
	require.NoError(t, m.MarkIngested("pop3", "mail", "u", "m1", "Invoice", StatusIngested, []string{"a", "b"}))

	ok, err := m.IsIngested("pop3", "mail", "u", "m1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.CleanupOldRecords())
	ok, err = m.IsIngested("pop3", "mail", "u", "old")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.MarkIngested("pop3", "mail", "u", "broken", "Scan", StatusFailed, nil))
	ok, err = m.IsIngested("pop3", "mail", "u", "broken")
	require.NoError(t, err)
	assert.False(t, ok)

	failures, err := m.Failures()
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "Scan", failures[0].Subject)

	_, err = NewManager(afero.NewMemMapFs(), types.TrackingConfig{Enabled: true, StorageType: "database", StoragePath: "/x"}, testLogger())
	assert.ErrorIs(t, err, ErrUnsupportedStorageType)
}
