package attachment

import (
	"fmt"
	"io"
	"mime/multipart"
	"time"
)

// Upload is an attachment backed by a multipart file upload. The upload is
// transient, so it never reports itself as persisted.
type Upload struct {
	header
	file *multipart.FileHeader
}

// NewUpload wraps an uploaded file. The file name becomes the title and the
// part's Content-Type header, if any, the content type.
func NewUpload(id string, file *multipart.FileHeader) (*Upload, error) {
	if file == nil {
		return nil, fmt.Errorf("upload for attachment %s is missing", id)
	}

	contentType := NormalizeContentType(file.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		if inferred := InferContentType(file.Filename); inferred != "" {
			contentType = inferred
		}
	}

	h, err := newHeader(id, file.Filename, contentType, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &Upload{header: h, file: file}, nil
}

func (u *Upload) Open() (io.ReadCloser, error) {
	f, err := u.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", u.file.Filename, err)
	}
	return f, nil
}

func (u *Upload) IsPersisted() bool { return false }

func (u *Upload) Base64() (string, error) {
	rc, err := u.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return EncodeBase64Reader(rc)
}

// Size returns the uploaded size in bytes.
func (u *Upload) Size() int64 { return u.file.Size }
