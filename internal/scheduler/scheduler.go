// Package scheduler runs the periodic background jobs: cache refresh and
// feedback cleanup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of background work. ctx is cancelled on Stop.
type Job func(ctx context.Context)

type entry struct {
	name     string
	runAfter time.Duration
	run      func()
}

// Scheduler wraps robfig/cron. A job never overlaps with itself.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries []entry
	timers  []*time.Timer
	wg      sync.WaitGroup
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) { c.l.Debug("cron: "+msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error("cron: "+msg, append(kv, "err", err)...)
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job to fire every interval. When runAfter is not negative
// the job also runs once that long after Start, so the first pass does not
// wait a full interval.
func (s *Scheduler) Add(name string, every, runAfter time.Duration, job Job) error {
	if every <= 0 {
		return fmt.Errorf("scheduler: job %s needs a positive interval, got %s", name, every)
	}

	var running sync.Mutex
	run := func() {
		if !running.TryLock() {
			s.logger.Debug("job still running, skipped", "job", name)
			return
		}
		defer running.Unlock()
		start := time.Now()
		job(s.ctx)
		s.logger.Debug("job finished", "job", name, "took", time.Since(start))
	}

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), run); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry{name: name, runAfter: runAfter, run: run})
	s.mu.Unlock()
	return nil
}

// Start begins ticking and arms the initial runs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.runAfter < 0 {
			continue
		}
		s.wg.Add(1)
		run := e.run
		s.timers = append(s.timers, time.AfterFunc(e.runAfter, func() {
			defer s.wg.Done()
			run()
		}))
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
	}
	s.timers = nil
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}
