package exchange

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/altafino/attachment-store/internal/attachment"
)

// Embedded is an attachment carried inline in a textual document, with the
// content as standard base64.
type Embedded struct {
	Title       string `json:"title" yaml:"title"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Data        string `json:"data" yaml:"data"`
}

// Embed converts a into its inline form.
func Embed(a attachment.Attachment) (Embedded, error) {
	data, err := a.Base64()
	if err != nil {
		return Embedded{}, fmt.Errorf("embed attachment %s: %w", a.ID(), err)
	}
	return Embedded{
		Title:       a.Title(),
		ContentType: a.ContentType(),
		Data:        data,
	}, nil
}

// Read decodes e into an in-memory attachment under a fresh id and passes it
// to h.
func (e Embedded) Read(h ReadHandler) (attachment.Attachment, error) {
	data, err := attachment.DecodeBase64(e.Data)
	if err != nil {
		return nil, fmt.Errorf("read embedded attachment %q: %w", e.Title, err)
	}

	a, err := attachment.NewInMemory(uuid.NewString(), e.Title, e.ContentType, data)
	if err != nil {
		return nil, fmt.Errorf("read embedded attachment %q: %w", e.Title, err)
	}
	return h.HandleReadAttachment(a)
}
