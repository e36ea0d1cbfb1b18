// Package attachment holds the attachment record types shared by the storage
// engine, the manager and the inbound document handlers.
package attachment

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Attachment describes one binary object associated with a business document.
// Implementations are immutable after construction.
type Attachment interface {
	// ID returns the caller supplied identifier, never empty
	ID() string

	// Title returns the human readable label, e.g. the original file name
	Title() string

	// ContentType returns the MIME type or an empty string if unknown
	ContentType() string

	// UploadedAt returns the time the attachment was created or persisted
	UploadedAt() time.Time

	// Open returns a fresh reader over the attachment content
	Open() (io.ReadCloser, error)

	// IsPersisted reports whether the content lives in a storage root
	IsPersisted() bool

	// Base64 returns the standard base64 encoding of the content
	Base64() (string, error)
}

var (
	ErrEmptyID    = errors.New("attachment id is empty")
	ErrEmptyTitle = errors.New("attachment title is empty")
	ErrInvalidID  = errors.New("attachment id is not a valid path element")
)

// ValidateID checks that id can be used as a single directory name below a
// storage root and as one line of the index file.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	if id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	// index lines and directory names must spell the id exactly
	if id != strings.TrimSpace(id) {
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidID, id)
	}
	return nil
}

// header carries the fields common to every realization.
type header struct {
	id          string
	title       string
	contentType string
	uploadedAt  time.Time
}

func newHeader(id, title, contentType string, uploadedAt time.Time) (header, error) {
	if err := ValidateID(id); err != nil {
		return header{}, err
	}
	if strings.TrimSpace(title) == "" {
		return header{}, ErrEmptyTitle
	}
	return header{
		id:          id,
		title:       title,
		contentType: contentType,
		uploadedAt:  uploadedAt,
	}, nil
}

func (h header) ID() string            { return h.id }
func (h header) Title() string         { return h.title }
func (h header) ContentType() string   { return h.contentType }
func (h header) UploadedAt() time.Time { return h.uploadedAt }

func (h header) String() string {
	if h.contentType == "" {
		return fmt.Sprintf("%s (%s)", h.id, h.title)
	}
	return fmt.Sprintf("%s (%s, %s)", h.id, h.title, h.contentType)
}

// ReadAll returns the complete content of a.
func ReadAll(a Attachment) ([]byte, error) {
	rc, err := a.Open()
	if err != nil {
		return nil, fmt.Errorf("open attachment %s: %w", a.ID(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", a.ID(), err)
	}
	return data, nil
}
