package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/altafino/attachment-store/internal/types"
)

// ValidateConfig performs validation on a single configuration
func ValidateConfig(cfg *types.Config) error {
	if err := validateStorage(cfg); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}

	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateLogging(cfg); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	if err := validateMonitoring(cfg); err != nil {
		return fmt.Errorf("monitoring validation failed: %w", err)
	}

	if err := validateMailbox(cfg); err != nil {
		return fmt.Errorf("mailbox validation failed: %w", err)
	}

	if err := validateScheduling(cfg); err != nil {
		return fmt.Errorf("scheduling validation failed: %w", err)
	}

	return nil
}

func validateStorage(cfg *types.Config) error {
	if cfg.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}

	switch cfg.Storage.Cache.Type {
	case "unbounded":
	case "lru":
		if cfg.Storage.Cache.Size <= 0 {
			return fmt.Errorf("storage.cache.size must be positive for the lru cache")
		}
	default:
		return fmt.Errorf("storage.cache.type must be one of: unbounded, lru")
	}

	return nil
}

func validateServer(cfg *types.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if cfg.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server.max_upload_size must be positive")
	}

	return nil
}

func validateLogging(cfg *types.Config) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
		"dev":  true,
	}

	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: text, json, dev")
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}

	if !validOutputs[cfg.Logging.Output] {
		return fmt.Errorf("logging.output must be one of: stdout, stderr, file")
	}

	if cfg.Logging.Output == "file" && cfg.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required when output is 'file'")
	}

	return nil
}

func validateMonitoring(cfg *types.Config) error {
	if cfg.Monitoring.MetricsEnabled && !strings.HasPrefix(cfg.Monitoring.MetricsPath, "/") {
		return fmt.Errorf("monitoring.metrics_path must start with /")
	}

	if !strings.HasPrefix(cfg.Monitoring.HealthCheckPath, "/") {
		return fmt.Errorf("monitoring.health_check_path must start with /")
	}

	return nil
}

func validateMailbox(cfg *types.Config) error {
	mb := cfg.Mailbox
	if !mb.Enabled {
		return nil // Skip validation if ingest is disabled
	}

	switch mb.Protocol {
	case "pop3", "imap":
	default:
		return fmt.Errorf("mailbox.protocol must be 'pop3' or 'imap'")
	}

	if mb.Server == "" || mb.Username == "" || mb.Password == "" {
		return fmt.Errorf("incomplete mailbox configuration: server, username and password are required")
	}

	if mb.Port <= 0 || mb.Port > 65535 {
		return fmt.Errorf("mailbox.port must be between 1 and 65535")
	}

	if mb.BatchSize < 0 {
		return fmt.Errorf("mailbox.batch_size must not be negative")
	}

	for _, ext := range mb.AllowedTypes {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("mailbox.allowed_types: extension %q must start with dot", ext)
		}
	}

	if mb.MaxSize < 0 {
		return fmt.Errorf("mailbox.max_size must not be negative")
	}

	if err := validateTracking(mb.Tracking); err != nil {
		return fmt.Errorf("tracking validation failed: %w", err)
	}

	return nil
}

func validateTracking(cfg types.TrackingConfig) error {
	if !cfg.Enabled {
		return nil // Skip validation if tracking is disabled
	}

	if cfg.StorageType != "file" {
		return fmt.Errorf("mailbox.tracking.storage_type must be 'file'")
	}

	if cfg.StoragePath == "" {
		return fmt.Errorf("mailbox.tracking.storage_path is required")
	}

	if cfg.RetentionDays <= 0 {
		return fmt.Errorf("mailbox.tracking.retention_days must be positive")
	}

	return nil
}

func validateScheduling(cfg *types.Config) error {
	if cfg.Scheduling.AuditEvery != "" {
		every, err := time.ParseDuration(cfg.Scheduling.AuditEvery)
		if err != nil {
			return fmt.Errorf("scheduling.audit_every must be a duration (e.g., 1h30m): %w", err)
		}
		if every < time.Second {
			return fmt.Errorf("scheduling.audit_every must be at least 1s")
		}
	}

	if !cfg.Scheduling.Enabled {
		return nil // Skip validation if scheduling is disabled
	}

	// Validate frequency_every
	validFrequencies := map[string]bool{
		"minute": true,
		"hour":   true,
		"day":    true,
		"week":   true,
		"month":  true,
	}

	if !validFrequencies[cfg.Scheduling.FrequencyEvery] {
		return fmt.Errorf("scheduling.frequency_every must be one of: minute, hour, day, week, month")
	}

	// Validate frequency_amount
	if cfg.Scheduling.FrequencyAmount < 1 {
		return fmt.Errorf("scheduling.frequency_amount must be greater than 0")
	}

	// Additional frequency-specific validations
	switch cfg.Scheduling.FrequencyEvery {
	case "minute":
		if cfg.Scheduling.FrequencyAmount > 60 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 60 for minute frequency")
		}
	case "hour":
		if cfg.Scheduling.FrequencyAmount > 24 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 24 for hour frequency")
		}
	case "day":
		if cfg.Scheduling.FrequencyAmount > 31 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 31 for day frequency")
		}
	case "week":
		if cfg.Scheduling.FrequencyAmount > 52 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 52 for week frequency")
		}
	case "month":
		if cfg.Scheduling.FrequencyAmount > 12 {
			return fmt.Errorf("scheduling.frequency_amount must not exceed 12 for month frequency")
		}
	}

	return nil
}
