// Package manager is the entry point callers use to create, fetch and remove
// attachments. It wraps exactly one storage handler.
package manager

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/altafino/attachment-store/internal/attachment"
	"github.com/altafino/attachment-store/internal/storage"
)

var ErrAlreadyExists = errors.New("attachment already exists")

// Manager forwards to a storage.Handler and rejects duplicate creates.
type Manager struct {
	handler storage.Handler
	logger  *slog.Logger

	// serialises Create and Remove so the duplicate check and the write are
	// one step
	mu sync.Mutex
}

// New creates a manager over h. The handler is chosen by the caller at
// process start.
func New(h storage.Handler, logger *slog.Logger) *Manager {
	return &Manager{
		handler: h,
		logger:  logger.With("component", "manager"),
	}
}

func (m *Manager) ListIDs() []string { return m.handler.ListIDs() }

func (m *Manager) Contains(id string) bool { return m.handler.Contains(id) }

func (m *Manager) Get(id string) (attachment.Attachment, bool, error) {
	return m.handler.Get(id)
}

// Create persists a new attachment. It fails with ErrAlreadyExists if the id
// is taken.
func (m *Manager) Create(a attachment.Attachment) (attachment.Attachment, error) {
	if a == nil {
		return nil, errors.New("create: attachment is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler.Contains(a.ID()) {
		m.logger.Debug("rejecting duplicate attachment", "id", a.ID())
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, a.ID())
	}
	return m.handler.Persist(a)
}

func (m *Manager) Remove(id string) (storage.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler.Remove(id)
}

// Handler returns the wrapped storage handler.
func (m *Manager) Handler() storage.Handler { return m.handler }
