// Package scheduler runs the periodic refresh: warm the agenda, then
// optionally capture a preview of the rendered calendar.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "calshell/internal/log"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Refresher reloads calendar data.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshJob refreshes r and then runs capture when it is non-nil. A
// partial refresh still proceeds to capture; the errors are joined.
func RefreshJob(r Refresher, capture Job) Job {
	return func(ctx context.Context) error {
		started := time.Now()
		refreshErr := r.Refresh(ctx)
		if refreshErr != nil {
			appLog.Warn("refresh incomplete", "reason", refreshErr)
		}
		var captureErr error
		if capture != nil {
			if captureErr = capture(ctx); captureErr != nil {
				appLog.Error("capture failed", captureErr)
			}
		}
		appLog.Info("refresh job finished", "took", time.Since(started).Round(time.Millisecond))
		return errors.Join(refreshErr, captureErr)
	}
}

// Scheduler runs a Job on a cron schedule. Runs never overlap; a tick that
// arrives while the previous run is active is skipped.
type Scheduler struct {
	cron *cron.Cron
	job  Job

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec (standard five-field cron) and evaluates it in loc.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: job is nil")
	}
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		job: job,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("scheduler: bad spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := s.job(ctx); err != nil {
		appLog.Debug("scheduled job returned error", "err", err)
	}
}

// Start begins ticking; jobs get a context canceled by Stop or by ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	appLog.Info("scheduler started", "next", s.Next().Format(time.RFC3339))
}

// Stop cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// RunNow executes the job synchronously, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.job(ctx)
}

// Next is the next scheduled run, zero if none.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
