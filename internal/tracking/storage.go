package tracking

import (
	"errors"
	"time"

	"github.com/spf13/afero"
)

// MessageRecord represents a mailbox message whose attachments were ingested
type MessageRecord struct {
	MessageID     string    `json:"message_id"`
	Protocol      string    `json:"protocol"`
	Server        string    `json:"server"`
	Username      string    `json:"username"`
	Subject       string    `json:"subject,omitempty"`
	AttachmentIDs []string  `json:"attachment_ids,omitempty"`
	IngestedAt    time.Time `json:"ingested_at"`
	Status        string    `json:"status"`
}

const (
	StatusIngested = "ingested"
	StatusFailed   = "failed"
)

// Storage defines the interface for tracking ingested messages
type Storage interface {
	// Initialize prepares the storage for use
	Initialize() error

	// Close cleans up any resources used by the storage
	Close() error

	// AddRecord adds a new message record to the storage
	AddRecord(record MessageRecord) error

	// HasRecord checks if a message with the given ID has already been ingested
	HasRecord(protocol, server, username, messageID string) (bool, error)

	// GetRecords retrieves all message records, optionally filtered
	GetRecords(filter map[string]string) ([]MessageRecord, error)

	// CleanupOldRecords removes records older than the cutoff
	CleanupOldRecords(cutoff time.Time) (int, error)
}

// NewStorage creates a new storage implementation based on the specified type
func NewStorage(fs afero.Fs, storageType, storagePath string) (Storage, error) {
	switch storageType {
	case "", "file":
		return NewFileStorage(fs, storagePath)
	default:
		return nil, ErrUnsupportedStorageType
	}
}

// Common errors
var (
	ErrUnsupportedStorageType = errors.New("unsupported storage type")
	ErrStorageNotInitialized  = errors.New("storage not initialized")
)
