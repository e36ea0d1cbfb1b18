package tracking

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/altafino/attachment-store/internal/types"
)

// Manager handles message tracking for mailbox ingest. A disabled manager
// reports nothing as ingested and records nothing.
type Manager struct {
	cfg     types.TrackingConfig
	logger  *slog.Logger
	storage Storage
	now     func() time.Time
}

// NewManager creates a new tracking manager
func NewManager(fs afero.Fs, cfg types.TrackingConfig, logger *slog.Logger) (*Manager, error) {
	logger = logger.With("component", "tracking")
	m := &Manager{cfg: cfg, logger: logger, now: time.Now}
	if !cfg.Enabled {
		logger.Debug("message tracking is disabled")
		return m, nil
	}

	storage, err := NewStorage(fs, cfg.StorageType, cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracking storage: %w", err)
	}
	if err := storage.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracking storage: %w", err)
	}

	logger.Debug("initialized message tracking",
		"storage_type", cfg.StorageType,
		"storage_path", cfg.StoragePath)

	m.storage = storage
	return m, nil
}

func (m *Manager) Enabled() bool { return m.storage != nil }

// Close cleans up resources
func (m *Manager) Close() error {
	if m.storage != nil {
		return m.storage.Close()
	}
	return nil
}

// IsIngested checks if a message has already been ingested. Messages that
// only have failed records are not.
func (m *Manager) IsIngested(protocol, server, username, messageID string) (bool, error) {
	if m.storage == nil || messageID == "" {
		return false, nil
	}

	records, err := m.storage.GetRecords(map[string]string{
		"protocol":   protocol,
		"server":     server,
		"username":   username,
		"message_id": messageID,
		"status":     StatusIngested,
	})
	if err != nil {
		m.logger.Error("failed to check if message was ingested",
			"message_id", messageID,
			"error", err)
		return false, err
	}

	ingested := len(records) > 0
	if ingested {
		m.logger.Debug("message already ingested",
			"message_id", messageID,
			"protocol", protocol,
			"server", server)
	}
	return ingested, nil
}

// Failures returns the failed records, newest last
func (m *Manager) Failures() ([]MessageRecord, error) {
	if m.storage == nil {
		return nil, nil
	}
	return m.storage.GetRecords(map[string]string{"status": StatusFailed})
}

// MarkIngested records a processed message with the ids of the attachments it
// produced
func (m *Manager) MarkIngested(protocol, server, username, messageID, subject, status string, attachmentIDs []string) error {
	if m.storage == nil || messageID == "" {
		return nil
	}

	record := MessageRecord{
		MessageID:     messageID,
		Protocol:      protocol,
		Server:        server,
		Username:      username,
		Subject:       subject,
		AttachmentIDs: attachmentIDs,
		IngestedAt:    m.now().UTC(),
		Status:        status,
	}

	if err := m.storage.AddRecord(record); err != nil {
		m.logger.Error("failed to track message",
			"message_id", messageID,
			"error", err)
		return err
	}

	m.logger.Debug("tracked message",
		"message_id", messageID,
		"status", status,
		"attachments", len(attachmentIDs))
	return nil
}

// CleanupOldRecords removes records older than the retention period
func (m *Manager) CleanupOldRecords() error {
	if m.storage == nil || m.cfg.RetentionDays <= 0 {
		return nil
	}

	cutoff := m.now().AddDate(0, 0, -m.cfg.RetentionDays)
	removed, err := m.storage.CleanupOldRecords(cutoff)
	if err != nil {
		m.logger.Error("failed to clean up old records", "error", err)
		return err
	}

	if removed > 0 {
		m.logger.Info("cleaned up old tracking records",
			"removed", removed,
			"retention_days", m.cfg.RetentionDays)
	}
	return nil
}
