package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/harvest/core"
)

const (
	// DefaultStaleAfter is how long a running job may go without a status write.
	DefaultStaleAfter = 45 * time.Minute

	// DefaultSweepInterval is the time between watchdog sweeps.
	DefaultSweepInterval = time.Minute
)

// SweepReport counts the records a sweep failed.
type SweepReport struct {
	ScrapeJobs   int `json:"scrape_jobs"`
	DocumentJobs int `json:"document_jobs"`
	Databases    int `json:"databases"`
}

// Total returns the number of records failed.
func (r SweepReport) Total() int {
	return r.ScrapeJobs + r.DocumentJobs + r.Databases
}

// Watchdog fails jobs and builds that stopped making progress without a task
// in this process's executor, such as work lost to a restart.
type Watchdog struct {
	orchestrator *Orchestrator
	staleAfter   time.Duration
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// WatchdogOption configures a Watchdog.
type WatchdogOption func(*Watchdog) error

// WithStaleAfter sets the idle time after which unowned work is failed.
func WithStaleAfter(d time.Duration) WatchdogOption {
	return func(w *Watchdog) error {
		if d <= 0 {
			return fmt.Errorf("stale threshold must be positive, got %s", d)
		}
		w.staleAfter = d
		return nil
	}
}

// WithSweepInterval sets the time between sweeps.
func WithSweepInterval(d time.Duration) WatchdogOption {
	return func(w *Watchdog) error {
		if d <= 0 {
			return fmt.Errorf("sweep interval must be positive, got %s", d)
		}
		w.interval = d
		return nil
	}
}

// WithWatchdogLogger sets a custom logger.
func WithWatchdogLogger(logger *slog.Logger) WatchdogOption {
	return func(w *Watchdog) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWatchdog creates a watchdog for o.
func NewWatchdog(o *Orchestrator, opts ...WatchdogOption) (*Watchdog, error) {
	if o == nil {
		return nil, ErrOrchestratorRequired
	}
	w := &Watchdog{
		orchestrator: o,
		staleAfter:   DefaultStaleAfter,
		interval:     DefaultSweepInterval,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "watchdog")
	return w, nil
}

// Run sweeps immediately and then on every interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep fails running scrape jobs, pending document jobs and building
// databases that are stale and not owned by an in-flight task.
func (w *Watchdog) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	o := w.orchestrator
	cutoff := w.now().Add(-w.staleAfter)

	scrapes, err := o.store.ScrapeJobs().ListByStatus(ctx, core.JobStatusRunning)
	if err != nil {
		return report, err
	}
	for _, job := range scrapes {
		if job.UpdatedAt.After(cutoff) || o.executor.Running(scrapeKey(job.ID)) {
			continue
		}
		w.logger.Warn("failing abandoned scrape job", "job", job.ID, "updated", job.UpdatedAt)
		o.failScrape(job.ID, w.abandoned(job.UpdatedAt))
		report.ScrapeJobs++
	}

	documents, err := o.store.DocumentJobs().ListByStatus(ctx, core.JobStatusPending)
	if err != nil {
		return report, err
	}
	for _, job := range documents {
		if job.UpdatedAt.After(cutoff) || o.executor.Running(documentKey(job.ID)) {
			continue
		}
		w.logger.Warn("failing abandoned document job", "job", job.ID, "updated", job.UpdatedAt)
		o.failDocument(job.ID, w.abandoned(job.UpdatedAt))
		report.DocumentJobs++
	}

	dbs, err := o.store.Databases().ListByStatus(ctx, core.DatabaseStatusBuilding)
	if err != nil {
		return report, err
	}
	for _, db := range dbs {
		if db.UpdatedAt.After(cutoff) || o.executor.Running(databaseKey(db.ID)) {
			continue
		}
		w.logger.Warn("failing abandoned build", "database", db.ID, "updated", db.UpdatedAt)
		o.failBuild(db.ID, w.abandoned(db.UpdatedAt))
		report.Databases++
	}

	if report.Total() > 0 {
		w.logger.Info("sweep finished", "scrape_jobs", report.ScrapeJobs,
			"document_jobs", report.DocumentJobs, "databases", report.Databases)
	}
	return report, nil
}

func (w *Watchdog) abandoned(updated time.Time) error {
	return fmt.Errorf("%w: no progress since %s", ErrJobAbandoned, updated.UTC().Format(time.RFC3339))
}
