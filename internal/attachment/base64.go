package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

var ErrInvalidBase64 = errors.New("invalid base64 content")

// EncodeBase64 returns the standard, padded base64 encoding of data.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// EncodeBase64Reader streams r through a base64 encoder.
func EncodeBase64Reader(r io.Reader) (string, error) {
	var sb strings.Builder
	enc := base64.NewEncoder(base64.StdEncoding, &sb)
	if _, err := io.Copy(enc, r); err != nil {
		return "", fmt.Errorf("encode base64: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode base64: %w", err)
	}
	return sb.String(), nil
}

// DecodeBase64 decodes standard base64. Whitespace, as produced by line
// wrapping in text documents, is ignored.
func DecodeBase64(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBase64, err)
	}
	return data, nil
}
