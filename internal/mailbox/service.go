package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/altafino/attachment-store/internal/attachment"
	"github.com/altafino/attachment-store/internal/exchange"
	"github.com/altafino/attachment-store/internal/metrics"
	"github.com/altafino/attachment-store/internal/tracking"
	"github.com/altafino/attachment-store/internal/types"
)

// Result summarises one ingest run
type Result struct {
	Messages int `json:"messages"`
	Skipped  int `json:"skipped"`
	Stored   int `json:"stored"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// Service turns mailbox attachments into stored attachments
type Service struct {
	cfg     types.MailboxConfig
	fetcher Fetcher
	handler exchange.ReadHandler
	tracker *tracking.Manager
	metrics *metrics.Ingest
	logger  *slog.Logger

	// one run at a time; scheduled and manual runs may overlap
	mu sync.Mutex
}

func NewService(cfg types.MailboxConfig, fetcher Fetcher, handler exchange.ReadHandler, tracker *tracking.Manager, m *metrics.Ingest, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		fetcher: fetcher,
		handler: handler,
		tracker: tracker,
		metrics: m,
		logger:  logger.With("component", "mailbox"),
	}
}

// Ingest runs one pass over the mailbox
func (s *Service) Ingest(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	var result Result

	s.logger.Info("starting mailbox ingest",
		"protocol", s.fetcher.Protocol(),
		"server", s.cfg.Server,
		"username", s.cfg.Username)

	err := s.fetcher.Fetch(ctx, func(msg Message) bool {
		return s.processMessage(msg, &result)
	})
	s.metrics.RecordRun(time.Since(start), err == nil)
	if err != nil {
		return result, fmt.Errorf("failed to fetch %s messages: %w", s.fetcher.Protocol(), err)
	}

	if s.tracker != nil {
		if err := s.tracker.CleanupOldRecords(); err != nil {
			s.logger.Warn("tracking cleanup failed", "error", err)
		}
	}

	s.logger.Info("mailbox ingest finished",
		"messages", result.Messages,
		"skipped", result.Skipped,
		"stored", result.Stored,
		"rejected", result.Rejected,
		"failed", result.Failed,
		"duration", time.Since(start))
	return result, nil
}

// processMessage reports whether msg was handled completely
func (s *Service) processMessage(msg Message, result *Result) bool {
	result.Messages++
	s.metrics.RecordMessage()

	parsed, err := ParseMessage(msg.Raw, s.logger)
	if err != nil {
		s.logger.Error("failed to parse message", "seq", msg.Seq, "error", err)
		result.Failed++
		return false
	}
	logger := s.logger.With("message_id", parsed.MessageID)

	if ingested, err := s.isIngested(parsed.MessageID); err != nil {
		logger.Warn("failed to check tracking, processing message", "error", err)
	} else if ingested {
		logger.Debug("skipping already ingested message")
		result.Skipped++
		return true
	}

	var (
		ids    []string
		failed bool
	)
	for _, part := range parsed.Parts {
		id, err := s.storePart(part, logger)
		switch {
		case err != nil:
			logger.Error("failed to store attachment", "filename", part.Filename, "error", err)
			s.metrics.RecordAttachment("failed")
			result.Failed++
			failed = true
		case id == "":
			s.metrics.RecordAttachment("rejected")
			result.Rejected++
		default:
			s.metrics.RecordAttachment("stored")
			result.Stored++
			ids = append(ids, id)
		}
	}

	// failed messages are recorded but stay eligible for the next run
	status := tracking.StatusIngested
	if failed {
		status = tracking.StatusFailed
	}
	if s.tracker != nil {
		if err := s.tracker.MarkIngested(s.fetcher.Protocol(), s.cfg.Server, s.cfg.Username,
			parsed.MessageID, parsed.Subject, status, ids); err != nil {
			logger.Warn("failed to track message", "error", err)
		}
	}

	logger.Info("processed message",
		"subject", parsed.Subject,
		"attachments", len(ids),
		"failed", failed)
	return !failed
}

func (s *Service) isIngested(messageID string) (bool, error) {
	if s.tracker == nil {
		return false, nil
	}
	return s.tracker.IsIngested(s.fetcher.Protocol(), s.cfg.Server, s.cfg.Username, messageID)
}

// storePart hands an allowed part to the read handler. It returns an empty id
// when the part is rejected by the allow list or the size limit.
func (s *Service) storePart(part Part, logger *slog.Logger) (string, error) {
	title := attachment.SanitizeFilename(part.Filename)
	if !attachment.IsAllowedFilename(title, s.cfg.AllowedTypes, logger) {
		return "", nil
	}
	if s.cfg.MaxSize > 0 && int64(len(part.Data)) > s.cfg.MaxSize {
		logger.Warn("attachment exceeds maximum size",
			"filename", title,
			"size", len(part.Data),
			"max_size", s.cfg.MaxSize)
		return "", nil
	}

	a, err := attachment.NewInMemory(uuid.NewString(), title, part.ContentType, part.Data)
	if err != nil {
		return "", err
	}
	stored, err := s.handler.HandleReadAttachment(a)
	if err != nil {
		return "", err
	}
	logger.Debug("stored attachment", "id", stored.ID(), "filename", title)
	return stored.ID(), nil
}
