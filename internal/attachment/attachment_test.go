package attachment

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr error
	}{
		{"a1", nil},
		{"2024-invoice_7", nil},
		{".hidden", nil},
		{"", ErrEmptyID},
		{"   ", ErrEmptyID},
		{".", ErrInvalidID},
		{"..", ErrInvalidID},
		{"a/b", ErrInvalidID},
		{`a\b`, ErrInvalidID},
		{"a\nb", ErrInvalidID},
		{"a\x00", ErrInvalidID},
		{" a1", ErrInvalidID},
		{"a1 ", ErrInvalidID},
		{"\ta1", ErrInvalidID},
		{"a 1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewInMemory(t *testing.T) {
	a, err := NewInMemory("a1", "invoice.pdf", "Application/PDF", []byte{0x25, 0x50, 0x44, 0x46})
	require.NoError(t, err)

	assert.Equal(t, "a1", a.ID())
	assert.Equal(t, "invoice.pdf", a.Title())
	assert.Equal(t, "application/pdf", a.ContentType())
	assert.False(t, a.IsPersisted())
	assert.Equal(t, 4, a.Size())
	assert.WithinDuration(t, time.Now(), a.UploadedAt(), time.Minute)

	data, err := ReadAll(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	encoded, err := a.Base64()
	require.NoError(t, err)
	assert.Equal(t, "JVBERg==", encoded)
}

func TestNewInMemoryRejectsMissingFields(t *testing.T) {
	_, err := NewInMemory("", "title", "", nil)
	assert.ErrorIs(t, err, ErrEmptyID)

	_, err = NewInMemory("id", "", "", nil)
	assert.ErrorIs(t, err, ErrEmptyTitle)

	a, err := NewInMemory("id", "title", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Size())
}

func TestResourceInfersTitleAndContentType(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/test.txt", []byte("Hallo Welt!"), 0o644))
	src := NewFileSource(fs, "/docs/test.txt")

	// explicit title
	r, err := NewResource("any", "my title", "text/plain", time.Now(), src)
	require.NoError(t, err)
	assert.Equal(t, "my title", r.Title())
	assert.Equal(t, "text/plain", r.ContentType())
	assert.False(t, r.IsPersisted())

	encoded, err := r.Base64()
	require.NoError(t, err)
	assert.Equal(t, "SGFsbG8gV2VsdCE=", encoded)

	// title and type from the source name
	r, err = NewResource("any", "", "", time.Now(), src)
	require.NoError(t, err)
	assert.Equal(t, "test.txt", r.Title())
	assert.Equal(t, "text/plain", r.ContentType())

	// type from the title when the source name carries no usable extension
	require.NoError(t, afero.WriteFile(fs, "/store/content.dat", []byte("x"), 0o644))
	r, err = NewPersistedResource("p1", "scan.png", "", time.Now(), NewFileSource(fs, "/store/content.dat"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", r.ContentType())
	assert.True(t, r.IsPersisted())
}

func TestResourceWithoutSource(t *testing.T) {
	_, err := NewResource("id", "title", "", time.Now(), nil)
	assert.Error(t, err)
}

func TestUpload(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "report.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	_, fh, err := req.FormFile("file")
	require.NoError(t, err)

	u, err := NewUpload("u1", fh)
	require.NoError(t, err)
	assert.Equal(t, "report.csv", u.Title())
	assert.Equal(t, "text/csv", u.ContentType())
	assert.False(t, u.IsPersisted())
	assert.EqualValues(t, 8, u.Size())

	data, err := ReadAll(u)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestBase64RoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x00},
		[]byte("%PDF-1.4"),
		bytes.Repeat([]byte{0xff, 0x00, 0x7f}, 1000),
	}
	for _, in := range inputs {
		encoded := EncodeBase64(in)

		streamed, err := EncodeBase64Reader(bytes.NewReader(in))
		require.NoError(t, err)
		assert.Equal(t, encoded, streamed)

		decoded, err := DecodeBase64(encoded)
		require.NoError(t, err)
		assert.Equal(t, in, decoded)
	}
}

func TestDecodeBase64IgnoresLineWrapping(t *testing.T) {
	decoded, err := DecodeBase64("SGFs\nbG8g\r\nV2Vs dCE=")
	require.NoError(t, err)
	assert.Equal(t, "Hallo Welt!", string(decoded))

	_, err = DecodeBase64("not base64!")
	assert.Error(t, err)
}

func TestInferContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", InferContentType("invoice.PDF"))
	assert.Equal(t, "image/jpeg", InferContentType("photo.jpeg"))
	assert.Equal(t, "", InferContentType("README"))
	assert.Equal(t, "", InferContentType("content.unknownext"))
}

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, "", NormalizeContentType("  "))
	assert.Equal(t, "text/plain; charset=utf-8", NormalizeContentType("Text/Plain; charset=utf-8"))
	assert.Equal(t, "application/pdf", NormalizeContentType("application/pdf"))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".pdf", ExtensionFor("application/pdf"))
	assert.Equal(t, ".txt", ExtensionFor("text/plain; charset=utf-8"))
	assert.Equal(t, ".bin", ExtensionFor("application/x-unknown"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", SanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "a_b_.pdf", SanitizeFilename("a<b>.pdf"))
	assert.Equal(t, "x.txt", SanitizeFilename(`C:\temp\x.txt`))
	assert.Equal(t, "", SanitizeFilename(""))

	long := strings.Repeat("a", 300) + ".pdf"
	got := SanitizeFilename(long)
	assert.Len(t, got, 255)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestIsAllowedFilename(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.True(t, IsAllowedFilename("a.pdf", nil, logger))
	assert.True(t, IsAllowedFilename("a.PDF", []string{".pdf"}, logger))
	assert.True(t, IsAllowedFilename("a.xml", []string{"pdf", "xml"}, logger))
	assert.False(t, IsAllowedFilename("a.exe", []string{".pdf"}, logger))
	assert.False(t, IsAllowedFilename("noext", []string{".pdf"}, logger))
	assert.False(t, IsAllowedFilename("", nil, logger))
}
