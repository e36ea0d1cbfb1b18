package mailbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knadh/go-pop3"

	"github.com/altafino/attachment-store/internal/types"
)

type POP3Fetcher struct {
	cfg    types.MailboxConfig
	logger *slog.Logger
}

func NewPOP3Fetcher(cfg types.MailboxConfig, logger *slog.Logger) *POP3Fetcher {
	return &POP3Fetcher{
		cfg:    cfg,
		logger: logger.With("protocol", "pop3", "server", cfg.Server),
	}
}

func (f *POP3Fetcher) Protocol() string { return "pop3" }

func (f *POP3Fetcher) connect() (*pop3.Conn, error) {
	f.logger.Info("connecting to POP3 server",
		"port", f.cfg.Port,
		"tls_enabled", f.cfg.TLS.Enabled,
		"username", f.cfg.Username)

	p := pop3.New(pop3.Opt{
		Host:          f.cfg.Server,
		Port:          f.cfg.Port,
		DialTimeout:   timeout(f.cfg),
		TLSEnabled:    f.cfg.TLS.Enabled,
		TLSSkipVerify: !f.cfg.TLS.VerifyCert,
	})

	conn, err := p.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := conn.Auth(f.cfg.Username, f.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	f.logger.Info("successfully connected to POP3 server")
	return conn, nil
}

// Fetch retrieves messages in mailbox order. Deletions are committed when the
// session ends with QUIT.
func (f *POP3Fetcher) Fetch(ctx context.Context, handle HandleFunc) error {
	conn, err := f.connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			f.logger.Warn("failed to quit POP3 session", "error", err)
		}
	}()

	messages, err := conn.List(0)
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	f.logger.Info("mailbox stats", "messages", len(messages))

	if f.cfg.BatchSize > 0 && len(messages) > f.cfg.BatchSize {
		messages = messages[:f.cfg.BatchSize]
	}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}

		buf, err := conn.RetrRaw(msg.ID)
		if err != nil {
			f.logger.Error("failed to retrieve message", "seq", msg.ID, "error", err)
			continue
		}

		ok := handle(Message{Seq: msg.ID, Raw: buf.Bytes(), Size: msg.Size})
		if ok && f.cfg.DeleteAfterDownload {
			if err := conn.Dele(msg.ID); err != nil {
				f.logger.Error("failed to delete message", "seq", msg.ID, "error", err)
			}
		}
	}
	return nil
}
