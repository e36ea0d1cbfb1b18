package attachment

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Source is a location attachment content can be read from on demand.
type Source interface {
	// Name identifies the location; its extension is used for MIME inference
	Name() string
	Open() (io.ReadCloser, error)
}

// FileSource reads a file from an afero filesystem.
type FileSource struct {
	fs   afero.Fs
	path string
}

// NewFileSource returns a source for path on fs.
func NewFileSource(fs afero.Fs, path string) *FileSource {
	return &FileSource{fs: fs, path: path}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Open() (io.ReadCloser, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	return f, nil
}

// Resource is an attachment that reads its bytes from a Source.
type Resource struct {
	header
	src       Source
	persisted bool
}

// NewResource creates a resource-backed attachment that is not yet persisted.
// An empty title defaults to the base name of the source and an empty content
// type is inferred from the source name, then from the title.
func NewResource(id, title, contentType string, uploadedAt time.Time, src Source) (*Resource, error) {
	return newResource(id, title, contentType, uploadedAt, src, false)
}

// NewPersistedResource creates a resource-backed attachment for content that
// already lives in a storage root. Only storage handlers should call it.
func NewPersistedResource(id, title, contentType string, uploadedAt time.Time, src Source) (*Resource, error) {
	return newResource(id, title, contentType, uploadedAt, src, true)
}

func newResource(id, title, contentType string, uploadedAt time.Time, src Source, persisted bool) (*Resource, error) {
	if src == nil {
		return nil, fmt.Errorf("attachment %s has no source", id)
	}
	if title == "" {
		title = path.Base(filepath.ToSlash(src.Name()))
	}
	contentType = NormalizeContentType(contentType)
	if contentType == "" {
		contentType = InferContentType(src.Name())
	}
	if contentType == "" {
		contentType = InferContentType(title)
	}

	h, err := newHeader(id, title, contentType, uploadedAt)
	if err != nil {
		return nil, err
	}
	return &Resource{header: h, src: src, persisted: persisted}, nil
}

func (r *Resource) Open() (io.ReadCloser, error) { return r.src.Open() }

func (r *Resource) IsPersisted() bool { return r.persisted }

func (r *Resource) Base64() (string, error) {
	rc, err := r.src.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return EncodeBase64Reader(rc)
}

// Source returns the location the content is read from.
func (r *Resource) Source() Source { return r.src }

func (r *Resource) String() string {
	return fmt.Sprintf("%s, resource %s", r.header.String(), r.src.Name())
}
