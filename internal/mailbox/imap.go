package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/altafino/attachment-store/internal/types"
)

// IMAPFetcher reads the newest messages of one folder
type IMAPFetcher struct {
	cfg    types.MailboxConfig
	logger *slog.Logger
}

func NewIMAPFetcher(cfg types.MailboxConfig, logger *slog.Logger) *IMAPFetcher {
	return &IMAPFetcher{
		cfg:    cfg,
		logger: logger.With("protocol", "imap", "server", cfg.Server),
	}
}

func (f *IMAPFetcher) Protocol() string { return "imap" }

func (f *IMAPFetcher) connect() (*client.Client, error) {
	server := fmt.Sprintf("%s:%d", f.cfg.Server, f.cfg.Port)
	f.logger.Info("connecting to IMAP server",
		"port", f.cfg.Port,
		"tls_enabled", f.cfg.TLS.Enabled,
		"username", f.cfg.Username)

	tlsConfig := &tls.Config{
		ServerName:         f.cfg.Server,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !f.cfg.TLS.VerifyCert,
	}

	var (
		c   *client.Client
		err error
	)
	switch {
	case f.cfg.Port == 143:
		// plain connection first, upgraded with STARTTLS when enabled
		c, err = client.Dial(server)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
		}
		if f.cfg.TLS.Enabled {
			if err := c.StartTLS(tlsConfig); err != nil {
				c.Logout()
				return nil, fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	case f.cfg.TLS.Enabled:
		c, err = client.DialTLS(server, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
		}
	default:
		c, err = client.Dial(server)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
		}
	}

	c.Timeout = timeout(f.cfg)

	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	f.logger.Info("successfully connected to IMAP server and logged in")
	return c, nil
}

// Fetch downloads the newest batch of messages, hands each to handle and
// expunges the handled ones when deletion is enabled.
func (f *IMAPFetcher) Fetch(ctx context.Context, handle HandleFunc) error {
	c, err := f.connect()
	if err != nil {
		return err
	}
	defer c.Logout()

	folder := f.cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	mbox, err := c.Select(folder, false)
	if err != nil {
		return fmt.Errorf("failed to select %s: %w", folder, err)
	}
	if mbox.Messages == 0 {
		f.logger.Info("mailbox is empty", "folder", folder)
		return nil
	}

	from := uint32(1)
	to := mbox.Messages
	if f.cfg.BatchSize > 0 && mbox.Messages > uint32(f.cfg.BatchSize) {
		from = mbox.Messages - uint32(f.cfg.BatchSize) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, to)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchRFC822Size}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	// commands cannot be issued while the fetch is running, so the bodies
	// are collected first
	var fetched []Message
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			f.logger.Warn("server returned no body", "seq", msg.SeqNum)
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			f.logger.Error("failed to read message body", "seq", msg.SeqNum, "error", err)
			continue
		}
		fetched = append(fetched, Message{Seq: int(msg.SeqNum), Raw: raw, Size: int(msg.Size)})
	}
	if err := <-done; err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	handled := new(imap.SeqSet)
	for _, msg := range fetched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if handle(msg) {
			handled.AddNum(uint32(msg.Seq))
		}
	}

	if f.cfg.DeleteAfterDownload && !handled.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		flags := []interface{}{imap.DeletedFlag}
		if err := c.Store(handled, item, flags, nil); err != nil {
			return fmt.Errorf("failed to flag messages as deleted: %w", err)
		}
		if err := c.Expunge(nil); err != nil {
			return fmt.Errorf("failed to expunge messages: %w", err)
		}
	}
	return nil
}
