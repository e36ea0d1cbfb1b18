package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/altafino/attachment-store/internal/attachment"
)

const (
	contentFileName  = "content.dat"
	metadataFileName = "metadata.yaml"
)

var ErrCorruptMetadata = errors.New("corrupt attachment metadata")

// metadata is the on-disk description of one stored attachment.
type metadata struct {
	ID          string `yaml:"id"`
	UploadedAt  *int64 `yaml:"uploaded_at,omitempty"` // epoch millis
	Title       string `yaml:"title"`
	ContentType string `yaml:"content_type,omitempty"`
}

func newMetadata(id, title, contentType string, uploadedAt time.Time) metadata {
	millis := uploadedAt.UnixMilli()
	return metadata{
		ID:          id,
		UploadedAt:  &millis,
		Title:       title,
		ContentType: contentType,
	}
}

func (m metadata) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode metadata for %s: %w", m.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode metadata for %s: %w", m.ID, err)
	}
	return buf.Bytes(), nil
}

// decodeMetadata parses a metadata document. Unknown fields are ignored, a
// missing upload time resolves to now and a missing title is an error.
func decodeMetadata(r io.Reader, now time.Time) (metadata, time.Time, error) {
	var m metadata
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return metadata{}, time.Time{}, fmt.Errorf("%w: empty document", ErrCorruptMetadata)
		}
		return metadata{}, time.Time{}, fmt.Errorf("%w: %w", ErrCorruptMetadata, err)
	}
	if m.Title == "" {
		return metadata{}, time.Time{}, fmt.Errorf("%w: title is missing", ErrCorruptMetadata)
	}

	uploadedAt := now
	if m.UploadedAt != nil {
		uploadedAt = time.UnixMilli(*m.UploadedAt).UTC()
	}
	m.ContentType = attachment.NormalizeContentType(m.ContentType)
	return m, uploadedAt, nil
}
