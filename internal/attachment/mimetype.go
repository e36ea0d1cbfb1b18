package attachment

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime/mediatype"
)

// MimeToExt maps MIME types to file extensions
var MimeToExt = map[string]string{
	"application/pdf":          ".pdf",
	"application/msword":       ".doc",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.ms-powerpoint":                                             ".ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/xml":              ".xml",
	"image/jpeg":                   ".jpg",
	"image/png":                    ".png",
	"image/gif":                    ".gif",
	"image/bmp":                    ".bmp",
	"image/tiff":                   ".tiff",
	"text/plain":                   ".txt",
	"text/html":                    ".html",
	"text/csv":                     ".csv",
	"audio/mpeg":                   ".mp3",
	"audio/wav":                    ".wav",
	"video/mp4":                    ".mp4",
	"video/mpeg":                   ".mpeg",
	"video/quicktime":              ".mov",
	"application/zip":              ".zip",
	"application/x-tar":            ".tar",
	"application/x-gzip":           ".gz",
	"application/x-bzip2":          ".bz2",
	"application/x-7z-compressed":  ".7z",
	"application/x-rar-compressed": ".rar",
}

var extToMime = func() map[string]string {
	m := make(map[string]string, len(MimeToExt)+2)
	for mimeType, ext := range MimeToExt {
		m[ext] = mimeType
	}
	m[".jpeg"] = "image/jpeg"
	m[".tif"] = "image/tiff"
	return m
}()

// InferContentType guesses the MIME type from the extension of name. It
// returns an empty string when the extension is missing or unknown.
func InferContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if mimeType, ok := extToMime[ext]; ok {
		return mimeType
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return NormalizeContentType(byExt)
	}
	return ""
}

// NormalizeContentType lower-cases the media type and re-formats its
// parameters. Values that cannot be parsed are returned trimmed but otherwise
// untouched.
func NormalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}

	mediaType, params, _, err := mediatype.Parse(contentType)
	if err != nil || mediaType == "" {
		return contentType
	}
	if formatted := mime.FormatMediaType(mediaType, params); formatted != "" {
		return formatted
	}
	return mediaType
}

// ExtensionFor returns a file extension for a content type, ".bin" if unknown.
func ExtensionFor(contentType string) string {
	mainType := contentType
	if idx := strings.Index(contentType, ";"); idx != -1 {
		mainType = contentType[:idx]
	}
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	if ext, ok := MimeToExt[mainType]; ok {
		return ext
	}
	return ".bin"
}
