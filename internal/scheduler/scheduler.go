package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/altafino/attachment-store/internal/types"
)

const (
	JobIngest = "ingest"
	JobAudit  = "audit"
)

type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	jobs      map[string]*gocron.Job
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler instance
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger.With("component", "scheduler"),
		jobs:      make(map[string]*gocron.Job),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// UpdateIngestJob replaces the mailbox polling job
func (s *Scheduler) UpdateIngestJob(cfg *types.Config, run func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(JobIngest)

	if !cfg.Scheduling.Enabled || !cfg.Mailbox.Enabled {
		s.logger.Info("mailbox polling disabled")
		return nil
	}

	job := s.scheduler.Every(cfg.Scheduling.FrequencyAmount)
	switch cfg.Scheduling.FrequencyEvery {
	case "minute":
		job = job.Minutes()
	case "hour":
		job = job.Hours()
	case "day":
		job = job.Days()
	case "week":
		job = job.Weeks()
	case "month":
		job = job.Months(1)
	default:
		return fmt.Errorf("invalid frequency: %s", cfg.Scheduling.FrequencyEvery)
	}
	if !cfg.Scheduling.StartNow {
		job = job.WaitForSchedule()
	}

	scheduled, err := job.SingletonMode().Tag(JobIngest).Do(s.wrap(JobIngest, run))
	if err != nil {
		return fmt.Errorf("failed to schedule ingest job: %w", err)
	}
	s.jobs[JobIngest] = scheduled

	s.logger.Info("scheduled job updated",
		"job", JobIngest,
		"frequency", fmt.Sprintf("every %d %s", cfg.Scheduling.FrequencyAmount, cfg.Scheduling.FrequencyEvery),
		"start_now", cfg.Scheduling.StartNow)
	return nil
}

// UpdateAuditJob replaces the storage audit job. A zero interval removes it.
func (s *Scheduler) UpdateAuditJob(every time.Duration, run func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(JobAudit)
	if every <= 0 {
		s.logger.Info("storage audit disabled")
		return nil
	}

	scheduled, err := s.scheduler.Every(every).WaitForSchedule().SingletonMode().Tag(JobAudit).Do(s.wrap(JobAudit, run))
	if err != nil {
		return fmt.Errorf("failed to schedule audit job: %w", err)
	}
	s.jobs[JobAudit] = scheduled

	s.logger.Info("scheduled job updated", "job", JobAudit, "every", every)
	return nil
}

func (s *Scheduler) wrap(name string, run func()) func() {
	return func() {
		s.logger.Info("executing scheduled job", "job", name, "time", time.Now().UTC())
		run()
	}
}

// RemoveJob removes a job by name
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
}

func (s *Scheduler) removeLocked(name string) {
	if job, exists := s.jobs[name]; exists {
		s.scheduler.RemoveByReference(job)
		delete(s.jobs, name)
		s.logger.Info("removed scheduled job", "job", name)
	}
}

// Jobs returns the names of the scheduled jobs
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
