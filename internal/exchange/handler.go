// Package exchange decides what happens to attachments that arrive inside
// inbound documents.
package exchange

import (
	"github.com/altafino/attachment-store/internal/attachment"
)

// ReadHandler is invoked for every attachment read from an inbound document.
// It returns the record the rest of the system should keep.
type ReadHandler interface {
	HandleReadAttachment(a attachment.Attachment) (attachment.Attachment, error)
}

// ReadHandlerFunc adapts a function to ReadHandler.
type ReadHandlerFunc func(a attachment.Attachment) (attachment.Attachment, error)

func (f ReadHandlerFunc) HandleReadAttachment(a attachment.Attachment) (attachment.Attachment, error) {
	return f(a)
}

// Discard keeps the attachment as it was read, without storing it.
type Discard struct{}

func (Discard) HandleReadAttachment(a attachment.Attachment) (attachment.Attachment, error) {
	return a, nil
}

// Creator is the part of the manager StoreCentrally needs.
type Creator interface {
	Create(a attachment.Attachment) (attachment.Attachment, error)
}

// StoreCentrally persists every attachment through the manager and hands back
// the stored copy.
type StoreCentrally struct {
	Manager Creator
}

func (s StoreCentrally) HandleReadAttachment(a attachment.Attachment) (attachment.Attachment, error) {
	return s.Manager.Create(a)
}
