package mailbox

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/DusanKasan/parsemail"
	"github.com/jhillyerd/enmime"
)

// Message is one raw message retrieved from a mailbox.
type Message struct {
	// Seq is the position of the message in the mailbox for this session
	Seq  int
	Raw  []byte
	Size int
}

// Part is an attachment extracted from a message.
type Part struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Parsed holds the fields of a message the ingest needs.
type Parsed struct {
	MessageID string
	Subject   string
	Parts     []Part
}

// ParseMessage extracts the attachments of raw. enmime is tried first; when it
// fails the message is handed to parsemail.
func ParseMessage(raw []byte, logger *slog.Logger) (Parsed, error) {
	parsed, err := parseEnmime(raw)
	if err == nil {
		return parsed, nil
	}
	logger.Debug("enmime failed to parse message, trying parsemail", "error", err)

	parsed, fallbackErr := parseParsemail(raw)
	if fallbackErr != nil {
		return Parsed{}, fmt.Errorf("failed to parse message: %w", err)
	}
	return parsed, nil
}

func parseEnmime(raw []byte) (Parsed, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Parsed{}, err
	}

	parsed := Parsed{
		MessageID: cleanMessageID(env.GetHeader("Message-ID")),
		Subject:   env.GetHeader("Subject"),
	}
	for _, p := range env.Attachments {
		parsed.Parts = append(parsed.Parts, Part{
			Filename:    p.FileName,
			ContentType: p.ContentType,
			Data:        p.Content,
		})
	}
	// inline parts with a file name are attachments too, e.g. images
	for _, p := range env.Inlines {
		if p.FileName == "" {
			continue
		}
		parsed.Parts = append(parsed.Parts, Part{
			Filename:    p.FileName,
			ContentType: p.ContentType,
			Data:        p.Content,
		})
	}

	if parsed.MessageID == "" {
		parsed.MessageID = hashMessage(raw)
	}
	return parsed, nil
}

func parseParsemail(raw []byte) (Parsed, error) {
	email, err := parsemail.Parse(bytes.NewReader(raw))
	if err != nil {
		return Parsed{}, err
	}

	parsed := Parsed{
		MessageID: cleanMessageID(email.MessageID),
		Subject:   email.Subject,
	}
	for _, a := range email.Attachments {
		data, err := io.ReadAll(a.Data)
		if err != nil {
			return Parsed{}, fmt.Errorf("failed to read attachment %s: %w", a.Filename, err)
		}
		parsed.Parts = append(parsed.Parts, Part{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        data,
		})
	}

	if parsed.MessageID == "" {
		parsed.MessageID = hashMessage(raw)
	}
	return parsed, nil
}

func cleanMessageID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// hashMessage identifies messages without a Message-ID header.
func hashMessage(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
