package ingestion

import (
	"context"
	"log/slog"
	"sync"
)

// maxRunningProgress is the ceiling while a job runs; 100 is written only
// together with the completed status.
const maxRunningProgress = 99

// progressReporter turns crawler callbacks into monotone status writes.
type progressReporter struct {
	ctx    context.Context
	write  func(ctx context.Context, percent int, message string) error
	logger *slog.Logger

	mu          sync.Mutex
	last        int
	lastMessage string
}

func newProgressReporter(ctx context.Context, write func(ctx context.Context, percent int, message string) error, logger *slog.Logger) *progressReporter {
	return &progressReporter{ctx: ctx, write: write, logger: logger}
}

// Report records percent and message. Lower percentages than already
// reported are raised to the last value; a repeat of the last report is dropped.
func (p *progressReporter) Report(percent int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if percent > maxRunningProgress {
		percent = maxRunningProgress
	}
	if percent < p.last {
		percent = p.last
	}
	if percent == p.last && message == p.lastMessage {
		return
	}
	if err := p.write(p.ctx, percent, message); err != nil {
		p.logger.Warn("failed to record progress", "percent", percent, "error", err)
		return
	}
	p.last = percent
	p.lastMessage = message
}

// Last returns the most recently written percentage.
func (p *progressReporter) Last() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
