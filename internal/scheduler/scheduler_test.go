package scheduler

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altafino/attachment-store/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ingestConfig(every string, amount int) *types.Config {
	cfg := &types.Config{}
	cfg.Mailbox.Enabled = true
	cfg.Scheduling.Enabled = true
	cfg.Scheduling.FrequencyEvery = every
	cfg.Scheduling.FrequencyAmount = amount
	return cfg
}

func TestUpdateIngestJob(t *testing.T) {
	s := NewScheduler(testLogger())

	require.NoError(t, s.UpdateIngestJob(ingestConfig("hour", 1), func() {}))
	assert.Equal(t, []string{JobIngest}, s.Jobs())

	// replacing keeps a single job
	require.NoError(t, s.UpdateIngestJob(ingestConfig("minute", 5), func() {}))
	assert.Equal(t, []string{JobIngest}, s.Jobs())

	disabled := ingestConfig("minute", 5)
	disabled.Scheduling.Enabled = false
	require.NoError(t, s.UpdateIngestJob(disabled, func() {}))
	assert.Empty(t, s.Jobs())
}

func TestUpdateIngestJobRejectsUnknownFrequency(t *testing.T) {
	s := NewScheduler(testLogger())
	err := s.UpdateIngestJob(ingestConfig("fortnight", 1), func() {})
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestAuditJobRuns(t *testing.T) {
	s := NewScheduler(testLogger())
	var runs atomic.Int32

	require.NoError(t, s.UpdateAuditJob(50*time.Millisecond, func() { runs.Add(1) }))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.UpdateAuditJob(0, nil))
	assert.Empty(t, s.Jobs())
}

func TestRemoveJob(t *testing.T) {
	s := NewScheduler(testLogger())
	require.NoError(t, s.UpdateAuditJob(time.Hour, func() {}))
	require.NoError(t, s.UpdateIngestJob(ingestConfig("day", 1), func() {}))
	assert.Equal(t, []string{JobAudit, JobIngest}, s.Jobs())

	s.RemoveJob(JobAudit)
	assert.Equal(t, []string{JobIngest}, s.Jobs())
	s.RemoveJob("unknown")
}
