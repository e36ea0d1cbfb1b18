package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/altafino/attachment-store/internal/api"
	"github.com/altafino/attachment-store/internal/config"
	"github.com/altafino/attachment-store/internal/exchange"
	"github.com/altafino/attachment-store/internal/mailbox"
	"github.com/altafino/attachment-store/internal/manager"
	"github.com/altafino/attachment-store/internal/metrics"
	"github.com/altafino/attachment-store/internal/scheduler"
	"github.com/altafino/attachment-store/internal/storage"
	"github.com/altafino/attachment-store/internal/tracking"
	"github.com/altafino/attachment-store/internal/types"
)

var ErrMailboxDisabled = errors.New("mailbox ingest is disabled")

// App represents the main application
type App struct {
	fs        afero.Fs
	logger    *slog.Logger
	registry  *prometheus.Registry
	handler   *storage.FileHandler
	manager   *manager.Manager
	ingestM   *metrics.Ingest
	scheduler *scheduler.Scheduler
	watcher   *config.Watcher
	wg        sync.WaitGroup

	// guarded by mu; replaced on configuration reload
	mu      sync.RWMutex
	cfg     *types.Config
	ingest  *mailbox.Service
	tracker *tracking.Manager

	// run context for scheduled jobs
	ctx context.Context
}

// Option configures the application
type Option func(*App)

// WithFs replaces the operating system filesystem, e.g. in tests
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// New opens the storage root and builds every service for cfg
func New(cfg *types.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	a := &App{
		fs:       afero.NewOsFs(),
		logger:   logger,
		registry: prometheus.NewRegistry(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.Storage.CreateRoot {
		if err := a.fs.MkdirAll(cfg.Storage.Root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage root: %w", err)
		}
	}

	cache, err := storage.NewCache(cfg.Storage.Cache.Type, cfg.Storage.Cache.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	handler, err := storage.NewFileHandler(a.fs, cfg.Storage.Root, logger,
		storage.WithCache(cache),
		storage.WithMetrics(metrics.NewStorage(a.registry)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.handler = handler
	a.manager = manager.New(handler, logger)
	a.ingestM = metrics.NewIngest(a.registry)
	a.scheduler = scheduler.NewScheduler(logger)

	if err := a.applyConfig(cfg); err != nil {
		return nil, err
	}

	logger.Info("attachment store opened",
		"root", cfg.Storage.Root,
		"cache", cfg.Storage.Cache.Type,
		"attachments", len(a.manager.ListIDs()))
	return a, nil
}

func (a *App) Manager() *manager.Manager { return a.manager }

func (a *App) Storage() *storage.FileHandler { return a.handler }

// Config returns the configuration currently in effect
func (a *App) Config() *types.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// Audit compares the storage index with the attachment directories
func (a *App) Audit() (storage.AuditReport, error) {
	return a.handler.Audit()
}

// Ingest runs one pass over the configured mailbox
func (a *App) Ingest(ctx context.Context) (mailbox.Result, error) {
	a.mu.RLock()
	svc := a.ingest
	a.mu.RUnlock()

	if svc == nil {
		return mailbox.Result{}, ErrMailboxDisabled
	}
	return svc.Ingest(ctx)
}

// applyConfig rebuilds the mailbox services and the scheduled jobs. Storage
// settings only take effect on restart.
func (a *App) applyConfig(cfg *types.Config) error {
	var (
		svc     *mailbox.Service
		tracker *tracking.Manager
	)

	if cfg.Mailbox.Enabled {
		fetcher, err := mailbox.NewFetcher(cfg.Mailbox, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create mailbox fetcher: %w", err)
		}
		tracker, err = tracking.NewManager(a.fs, cfg.Mailbox.Tracking, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create ingest tracker: %w", err)
		}
		svc = mailbox.NewService(cfg.Mailbox, fetcher, exchange.StoreCentrally{Manager: a.manager}, tracker, a.ingestM, a.logger)
	}

	a.mu.Lock()
	previous := a.cfg
	oldTracker := a.tracker
	a.cfg, a.ingest, a.tracker = cfg, svc, tracker
	a.mu.Unlock()

	if oldTracker != nil {
		if err := oldTracker.Close(); err != nil {
			a.logger.Warn("failed to close previous tracker", "error", err)
		}
	}

	if previous != nil && previous.Storage != cfg.Storage {
		a.logger.Warn("storage settings changed, restart to apply them", "root", previous.Storage.Root)
	}

	if err := a.scheduler.UpdateIngestJob(cfg, a.runIngest); err != nil {
		return fmt.Errorf("failed to update ingest job: %w", err)
	}

	var auditEvery time.Duration
	if cfg.Scheduling.AuditEvery != "" {
		every, err := time.ParseDuration(cfg.Scheduling.AuditEvery)
		if err != nil {
			return fmt.Errorf("invalid audit interval: %w", err)
		}
		auditEvery = every
	}
	if err := a.scheduler.UpdateAuditJob(auditEvery, a.runAudit); err != nil {
		return fmt.Errorf("failed to update audit job: %w", err)
	}

	return nil
}

func (a *App) runIngest() {
	if _, err := a.Ingest(a.ctx); err != nil {
		a.logger.Error("scheduled ingest failed", "error", err)
	}
}

func (a *App) runAudit() {
	if _, err := a.Audit(); err != nil {
		a.logger.Error("scheduled audit failed", "error", err)
	}
}

// Run starts the scheduler, the configuration watcher when configPath is set
// and the HTTP server. It blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context, configPath string, overrides ...config.Override) error {
	a.ctx = ctx

	if configPath != "" {
		watcher, err := config.StartWatcher(configPath, a.logger, overrides...)
		if err != nil {
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
		a.watcher = watcher

		a.wg.Add(1)
		go a.watchConfig()
	}

	a.scheduler.Start()

	cfg := a.Config()
	srvOpts := []api.Option{api.WithAuditor(a), api.WithMetrics(a.registry)}
	if cfg.Mailbox.Enabled {
		srvOpts = append(srvOpts, api.WithIngester(a))
	}
	server := api.NewServer(cfg, a.manager, a.logger, srvOpts...)

	return server.Run(ctx)
}

func (a *App) watchConfig() {
	defer a.wg.Done()

	for cfg := range a.watcher.ReloadChan() {
		a.logger.Info("reloading services due to configuration change")

		if err := a.applyConfig(cfg); err != nil {
			a.logger.Error("failed to apply configuration", "error", err)
		}
	}
}

// Stop gracefully stops all application services
func (a *App) Stop() {
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("failed to stop config watcher", "error", err)
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			a.logger.Warn("failed to close tracker", "error", err)
		}
	}
}
