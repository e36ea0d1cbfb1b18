package attachment

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// InMemory is an attachment whose content is held in a byte slice. It is
// never persisted.
type InMemory struct {
	header
	data []byte
}

// NewInMemory creates an in-memory attachment uploaded now.
func NewInMemory(id, title, contentType string, data []byte) (*InMemory, error) {
	h, err := newHeader(id, title, NormalizeContentType(contentType), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return &InMemory{header: h, data: data}, nil
}

func (a *InMemory) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(a.data)), nil
}

func (a *InMemory) IsPersisted() bool { return false }

func (a *InMemory) Base64() (string, error) {
	return EncodeBase64(a.data), nil
}

// Size returns the content length in bytes.
func (a *InMemory) Size() int { return len(a.data) }

func (a *InMemory) String() string {
	return fmt.Sprintf("%s, %d bytes in memory", a.header.String(), len(a.data))
}
