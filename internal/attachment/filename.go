package attachment

import (
	"log/slog"
	"path/filepath"
	"strings"
)

var filenameReplacer = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
	";", "_",
	"&", "_",
	"$", "_",
	"#", "_",
	"%", "_",
	"`", "_",
	"'", "_",
	"\n", "_",
	"\r", "_",
	"\t", "_",
	"\x00", "_",
)

// SanitizeFilename removes path components and characters that are unsafe in
// file names and HTTP headers.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" {
		return ""
	}
	filename = filenameReplacer.Replace(filename)

	const maxLength = 255
	if len(filename) > maxLength {
		ext := filepath.Ext(filename)
		if len(ext) >= maxLength {
			ext = ""
		}
		filename = filename[:maxLength-len(ext)] + ext
	}

	return filename
}

// IsAllowedFilename checks the extension of filename against allowedTypes.
// An empty allow list accepts everything with a name.
func IsAllowedFilename(filename string, allowedTypes []string, logger *slog.Logger) bool {
	if filename == "" {
		logger.Debug("empty filename")
		return false
	}
	if len(allowedTypes) == 0 {
		return true
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		logger.Debug("no extension", "filename", filename)
		return false
	}

	for _, allowedType := range allowedTypes {
		if strings.TrimPrefix(ext, ".") == strings.TrimPrefix(strings.ToLower(allowedType), ".") {
			return true
		}
	}

	logger.Debug("attachment not allowed", "filename", filename, "extension", ext)
	return false
}
