package storage

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/altafino/attachment-store/internal/attachment"
	"github.com/altafino/attachment-store/internal/metrics"
)

var (
	ErrRootNotDirectory = errors.New("storage root is not a directory")
	ErrAlreadyStored    = errors.New("attachment id is already stored")
)

// FileHandler stores every attachment in its own directory below root:
//
//	<root>/toc.txt
//	<root>/<id>/content.dat
//	<root>/<id>/metadata.yaml
//
// One RWMutex guards the index, the cache and all mutations of the tree.
type FileHandler struct {
	fs      afero.Fs
	root    string
	logger  *slog.Logger
	now     func() time.Time
	metrics *metrics.Storage

	mu    sync.RWMutex
	index index
	cache Cache
}

// Option configures a FileHandler.
type Option func(*FileHandler)

// WithCache replaces the default unbounded cache.
func WithCache(c Cache) Option {
	return func(h *FileHandler) {
		if c != nil {
			h.cache = c
		}
	}
}

// WithClock sets the clock used for upload times.
func WithClock(now func() time.Time) Option {
	return func(h *FileHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *metrics.Storage) Option {
	return func(h *FileHandler) { h.metrics = m }
}

// NewFileHandler opens the storage root on fs. The root must exist and be a
// directory. An unreadable index is logged and treated as empty.
func NewFileHandler(fs afero.Fs, root string, logger *slog.Logger, opts ...Option) (*FileHandler, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootNotDirectory, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}

	h := &FileHandler{
		fs:     fs,
		root:   root,
		logger: logger.With("component", "storage", "root", root),
		now:    time.Now,
		cache:  NewUnboundedCache(),
	}
	for _, opt := range opts {
		opt(h)
	}

	ix, err := readIndex(fs, h.indexPath())
	if err != nil {
		h.logger.Error("failed to read index, starting empty", "error", err)
		ix = make(index)
	}
	h.index = ix
	h.metrics.SetStored(len(ix))

	h.logger.Info("storage opened", "attachments", len(ix))
	return h, nil
}

// Root returns the storage root path.
func (h *FileHandler) Root() string { return h.root }

func (h *FileHandler) ListIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index.sorted()
}

func (h *FileHandler) Contains(id string) bool {
	if validID(id) != nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index.contains(id)
}

// Get resolves id from the cache or, on a miss, from its metadata document.
// The write lock is held across check and populate so concurrent first reads
// of one id load it once.
func (h *FileHandler) Get(id string) (attachment.Attachment, bool, error) {
	if !h.Contains(id) {
		return nil, false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// removed between Contains and Lock
	if !h.index.contains(id) {
		return nil, false, nil
	}

	if a, ok := h.cache.Get(id); ok {
		h.metrics.RecordCacheHit()
		return a, true, nil
	}
	h.metrics.RecordCacheMiss()

	a, err := h.load(id)
	if err != nil {
		h.metrics.RecordFailure("get")
		return nil, false, err
	}
	h.cache.Add(id, a)
	return a, true, nil
}

func (h *FileHandler) load(id string) (attachment.Attachment, error) {
	path := h.metadataPath(id)
	f, err := h.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: attachment %s: %w", ErrCorruptMetadata, id, err)
	}
	defer f.Close()

	m, uploadedAt, err := decodeMetadata(f, h.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("attachment %s: %w", id, err)
	}
	if m.ID != "" && m.ID != id {
		h.logger.Warn("metadata id does not match directory", "id", id, "metadata_id", m.ID)
	}

	a, err := attachment.NewPersistedResource(id, m.Title, storedContentType(m.ContentType, m.Title), uploadedAt,
		attachment.NewFileSource(h.fs, h.contentPath(id)))
	if err != nil {
		return nil, fmt.Errorf("%w: attachment %s: %w", ErrCorruptMetadata, id, err)
	}
	return a, nil
}

// Persist writes the content of a, then its metadata, then the index. A
// failure leaves whatever was already written in place. Stored attachments
// are never rewritten: an id already in the index fails with ErrAlreadyStored.
func (h *FileHandler) Persist(a attachment.Attachment) (attachment.Attachment, error) {
	if a == nil {
		return nil, errors.New("persist: attachment is nil")
	}
	id := a.ID()
	if err := validID(id); err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index.contains(id) {
		return nil, fmt.Errorf("persist: %w: %s", ErrAlreadyStored, id)
	}

	start := time.Now()
	if a.IsPersisted() {
		h.logger.Warn("attachment is already persisted, storing another copy", "id", id)
	}

	stored, size, err := h.persist(a)
	if err != nil {
		h.metrics.RecordFailure("persist")
		return nil, err
	}

	h.metrics.RecordPersist(size, time.Since(start))
	h.metrics.SetStored(len(h.index))
	h.logger.Info("attachment persisted",
		"id", id,
		"title", stored.Title(),
		"content_type", stored.ContentType(),
		"size", size)
	return stored, nil
}

func (h *FileHandler) persist(a attachment.Attachment) (attachment.Attachment, int64, error) {
	id := a.ID()
	dir := h.dir(id)
	if err := h.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("create directory for attachment %s: %w", id, err)
	}

	rc, err := a.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("open content of attachment %s: %w", id, err)
	}
	size, err := writeFileAtomic(h.fs, h.contentPath(id), rc)
	rc.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("store content of attachment %s: %w", id, err)
	}

	uploadedAt := time.UnixMilli(h.now().UnixMilli()).UTC()
	doc, err := newMetadata(id, a.Title(), a.ContentType(), uploadedAt).encode()
	if err != nil {
		return nil, 0, err
	}
	if _, err := writeFileAtomic(h.fs, h.metadataPath(id), bytes.NewReader(doc)); err != nil {
		return nil, 0, fmt.Errorf("store metadata of attachment %s: %w", id, err)
	}

	h.index.add(id)
	if err := writeIndex(h.fs, h.indexPath(), h.index); err != nil {
		h.index.remove(id)
		return nil, 0, err
	}

	stored, err := attachment.NewPersistedResource(id, a.Title(), storedContentType(a.ContentType(), a.Title()), uploadedAt,
		attachment.NewFileSource(h.fs, h.contentPath(id)))
	if err != nil {
		return nil, 0, err
	}
	return stored, size, nil
}

// Remove deletes the directory of id and drops it from the index and cache.
func (h *FileHandler) Remove(id string) (Change, error) {
	if !h.Contains(id) {
		return Unchanged, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.index.contains(id) {
		return Unchanged, nil
	}

	start := time.Now()
	if err := h.fs.RemoveAll(h.dir(id)); err != nil {
		h.metrics.RecordFailure("remove")
		return Unchanged, fmt.Errorf("remove attachment %s: %w", id, err)
	}

	h.index.remove(id)
	h.cache.Remove(id)
	if err := writeIndex(h.fs, h.indexPath(), h.index); err != nil {
		h.metrics.RecordFailure("remove")
		return Changed, err
	}

	h.metrics.RecordRemove(time.Since(start))
	h.metrics.SetStored(len(h.index))
	h.logger.Info("attachment removed", "id", id)
	return Changed, nil
}

// storedContentType falls back to the title, since content.dat carries no
// useful extension.
func storedContentType(contentType, title string) string {
	if contentType != "" {
		return contentType
	}
	return attachment.InferContentType(title)
}

func (h *FileHandler) dir(id string) string          { return filepath.Join(h.root, id) }
func (h *FileHandler) contentPath(id string) string  { return filepath.Join(h.root, id, contentFileName) }
func (h *FileHandler) metadataPath(id string) string { return filepath.Join(h.root, id, metadataFileName) }
func (h *FileHandler) indexPath() string             { return filepath.Join(h.root, indexFileName) }

var _ Handler = (*FileHandler)(nil)

