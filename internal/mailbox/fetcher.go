// Package mailbox ingests attachments from messages in a POP3 or IMAP mailbox.
package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/altafino/attachment-store/internal/types"
)

// HandleFunc processes one message. It returns true when the message was
// fully handled and may be deleted from the mailbox.
type HandleFunc func(msg Message) bool

// Fetcher retrieves messages from a mailbox.
type Fetcher interface {
	// Fetch calls handle for up to the configured batch of messages
	Fetch(ctx context.Context, handle HandleFunc) error

	// Protocol names the mailbox protocol, e.g. "pop3"
	Protocol() string
}

// NewFetcher creates the fetcher for the configured protocol
func NewFetcher(cfg types.MailboxConfig, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Protocol {
	case "pop3":
		return NewPOP3Fetcher(cfg, logger), nil
	case "imap":
		return NewIMAPFetcher(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported mailbox protocol: %s", cfg.Protocol)
	}
}

func timeout(cfg types.MailboxConfig) time.Duration {
	if cfg.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Timeout) * time.Second
}
