// Package storage persists attachments below a storage root and serves them
// back through a resolved-object cache.
package storage

import (
	"github.com/altafino/attachment-store/internal/attachment"
)

// Change reports whether a mutating call altered the store.
type Change int

const (
	Unchanged Change = iota
	Changed
)

func (c Change) String() string {
	if c == Changed {
		return "changed"
	}
	return "unchanged"
}

// IsChanged reports whether c is Changed.
func (c Change) IsChanged() bool { return c == Changed }

// Handler defines the operations of an attachment storage backend
type Handler interface {
	// ListIDs returns a sorted snapshot of all known ids, never nil
	ListIDs() []string

	// Contains reports whether id is known. Invalid ids are never known.
	Contains(id string) bool

	// Get resolves id. found is false, with a nil error, when id is unknown.
	Get(id string) (a attachment.Attachment, found bool, err error)

	// Persist stores a and returns a persisted record for the stored copy
	Persist(a attachment.Attachment) (attachment.Attachment, error)

	// Remove deletes id and reports whether anything was removed
	Remove(id string) (Change, error)
}
