package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const recordsFileName = "ingested_messages.json"

// FileStorage keeps all records in one JSON document
type FileStorage struct {
	fs          afero.Fs
	basePath    string
	recordsPath string
	mu          sync.RWMutex
	initialized bool
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(fs afero.Fs, basePath string) (*FileStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	return &FileStorage{
		fs:          fs,
		basePath:    basePath,
		recordsPath: filepath.Join(basePath, recordsFileName),
	}, nil
}

// Initialize creates the base directory and an empty records file
func (s *FileStorage) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	if _, err := s.fs.Stat(s.recordsPath); errors.Is(err, os.ErrNotExist) {
		if err := s.saveRecords([]MessageRecord{}); err != nil {
			return fmt.Errorf("failed to create records file: %w", err)
		}
	}

	s.initialized = true
	return nil
}

func (s *FileStorage) Close() error {
	return nil
}

func (s *FileStorage) AddRecord(record MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrStorageNotInitialized
	}

	records, err := s.loadRecordsLocked()
	if err != nil {
		return err
	}
	records = append(records, record)
	return s.saveRecords(records)
}

func (s *FileStorage) HasRecord(protocol, server, username, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return false, ErrStorageNotInitialized
	}

	records, err := s.loadRecordsLocked()
	if err != nil {
		return false, err
	}

	for _, record := range records {
		if record.Protocol == protocol &&
			record.Server == server &&
			record.Username == username &&
			record.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (s *FileStorage) GetRecords(filter map[string]string) ([]MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrStorageNotInitialized
	}

	records, err := s.loadRecordsLocked()
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return records, nil
	}

	filtered := []MessageRecord{}
	for _, record := range records {
		if matches(record, filter) {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

func matches(record MessageRecord, filter map[string]string) bool {
	for key, value := range filter {
		var field string
		switch key {
		case "protocol":
			field = record.Protocol
		case "server":
			field = record.Server
		case "username":
			field = record.Username
		case "message_id":
			field = record.MessageID
		case "status":
			field = record.Status
		default:
			continue
		}
		if field != value {
			return false
		}
	}
	return true
}

// CleanupOldRecords drops records ingested before cutoff and returns how many
// were removed
func (s *FileStorage) CleanupOldRecords(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return 0, ErrStorageNotInitialized
	}

	records, err := s.loadRecordsLocked()
	if err != nil {
		return 0, err
	}

	kept := make([]MessageRecord, 0, len(records))
	for _, record := range records {
		if !record.IngestedAt.Before(cutoff) {
			kept = append(kept, record)
		}
	}
	if len(kept) == len(records) {
		return 0, nil
	}
	return len(records) - len(kept), s.saveRecords(kept)
}

// loadRecordsLocked loads all records from the file (assumes lock is held)
func (s *FileStorage) loadRecordsLocked() ([]MessageRecord, error) {
	data, err := afero.ReadFile(s.fs, s.recordsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}
	if len(data) == 0 {
		return []MessageRecord{}, nil
	}

	var records []MessageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse records file: %w", err)
	}
	return records, nil
}

func (s *FileStorage) saveRecords(records []MessageRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize records: %w", err)
	}

	tmp := s.recordsPath + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write records file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.recordsPath); err != nil {
		return fmt.Errorf("failed to replace records file: %w", err)
	}
	return nil
}
