// Package stats periodically logs relay counters.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Counter reports the number of stored files.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Pending reports the number of queued updates.
type Pending interface {
	Pending() int
}

// Snapshot is one stats report.
type Snapshot struct {
	FilesStored    int
	PendingUpdates int
	Uptime         time.Duration
}

// Reporter logs a Snapshot on a cron schedule.
type Reporter struct {
	cron    *cron.Cron
	parser  cron.Parser
	counter Counter
	pending Pending
	logger  *slog.Logger
	started time.Time
	now     func() time.Time

	mu      sync.Mutex
	entry   cron.EntryID
	running bool
}

// NewReporter creates a reporter. pending may be nil.
func NewReporter(log *slog.Logger, counter Counter, pending Pending) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Reporter{
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		counter: counter,
		pending: pending,
		logger:  log.With(slog.String("service", "stats")),
		started: time.Now(),
		now:     time.Now,
	}
}

// Start schedules the report. An empty pattern leaves the reporter idle.
func (r *Reporter) Start(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		r.logger.Info("stats report disabled")
		return nil
	}
	if _, err := r.parser.Parse(pattern); err != nil {
		return fmt.Errorf("invalid stats schedule %q: %w", pattern, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	id, err := r.cron.AddFunc(pattern, func() {
		r.Report(context.Background())
	})
	if err != nil {
		return err
	}
	r.entry = id
	r.running = true
	r.cron.Start()
	r.logger.Info("stats report scheduled", slog.String("schedule", pattern))
	return nil
}

// Stop halts the schedule and waits for a running report to finish or ctx to end.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cron.Remove(r.entry)
	done := r.cron.Stop()
	r.mu.Unlock()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot collects the current counters.
func (r *Reporter) Snapshot(ctx context.Context) (Snapshot, error) {
	count, err := r.counter.Count(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		FilesStored: count,
		Uptime:      r.now().Sub(r.started),
	}
	if r.pending != nil {
		s.PendingUpdates = r.pending.Pending()
	}
	return s, nil
}

// Report logs the current snapshot.
func (r *Reporter) Report(ctx context.Context) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		r.logger.Warn("collect stats failed", slog.Any("error", err))
		return
	}
	r.logger.Info("stats",
		slog.Int("files_stored", s.FilesStored),
		slog.Int("pending_updates", s.PendingUpdates),
		slog.Duration("uptime", s.Uptime.Truncate(time.Second)),
	)
}
