package config

import (
	"fmt"

	"dario.cat/mergo"

	"github.com/altafino/attachment-store/internal/types"
)

const (
	DefaultPOP3Port     = 110
	DefaultPOP3TLSPort  = 995
	DefaultIMAPPort     = 143
	DefaultIMAPTLSPort  = 993
	DefaultMaxUploadMiB = 32
)

// Defaults returns the configuration used for every value a file leaves unset.
// Booleans default to false since a file cannot unset them.
func Defaults() *types.Config {
	cfg := &types.Config{}

	cfg.Storage.Root = "./data/attachments"
	cfg.Storage.Cache.Type = "unbounded"
	cfg.Storage.Cache.Size = 1024

	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 30
	cfg.Server.WriteTimeout = 30
	cfg.Server.IdleTimeout = 60
	cfg.Server.MaxUploadSize = DefaultMaxUploadMiB << 20

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stdout"

	cfg.Monitoring.MetricsPath = "/metrics"
	cfg.Monitoring.HealthCheckPath = "/health"

	cfg.Mailbox.Protocol = "pop3"
	cfg.Mailbox.Folder = "INBOX"
	cfg.Mailbox.Timeout = 30
	cfg.Mailbox.Tracking.StorageType = "file"
	cfg.Mailbox.Tracking.StoragePath = "./data/tracking"
	cfg.Mailbox.Tracking.RetentionDays = 90

	cfg.Scheduling.FrequencyEvery = "hour"
	cfg.Scheduling.FrequencyAmount = 1

	return cfg
}

// ApplyDefaults merges cfg over the defaults
func ApplyDefaults(cfg *types.Config) error {
	base := Defaults()

	// Merge configuration over defaults
	if err := mergo.Merge(base, cfg, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config with defaults: %w", err)
	}

	if base.Mailbox.Port == 0 {
		base.Mailbox.Port = defaultMailboxPort(base.Mailbox.Protocol, base.Mailbox.TLS.Enabled)
	}

	// Copy merged result back to original config
	*cfg = *base
	return nil
}

func defaultMailboxPort(protocol string, tls bool) int {
	switch {
	case protocol == "imap" && tls:
		return DefaultIMAPTLSPort
	case protocol == "imap":
		return DefaultIMAPPort
	case tls:
		return DefaultPOP3TLSPort
	default:
		return DefaultPOP3Port
	}
}
