// Package scheduler runs the daily expiry-notification check at the time of
// day stored in the notification preferences.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/model"
	"github.com/manav03panchal/couponvault/internal/notify"
	"github.com/manav03panchal/couponvault/internal/parser"
)

// Scheduler owns a cron entry that runs the expiry check once a day. It is a
// cancellable handle: Stop (or cancelling Start's context) removes the job.
type Scheduler struct {
	cron    *cron.Cron
	source  Source
	checker *ExpiryChecker

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entry   cron.EntryID
	spec    string
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.checker.now = now }
}

// WithMetrics overrides metrics.Default.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.checker.metrics = m }
}

// WithLocation evaluates the daily time in loc instead of time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.cron = cron.New(cron.WithLocation(loc)) }
}

// WithExpiredDigest also sends the daily expired-coupon reminder.
func WithExpiredDigest() Option {
	return func(s *Scheduler) { s.checker.EnableExpiredDigest() }
}

// New creates a scheduler that checks source and notifies sink.
func New(source Source, sink notify.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(),
		source:  source,
		checker: NewExpiryChecker(source, sink),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SpecFor returns the cron spec "<minute> <hour> * * *" for p's notification time.
func SpecFor(p model.NotificationPreferences) (string, error) {
	hour, minute, err := parser.ParseTimeOfDay(p.NotificationTime)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Start schedules the daily check and starts the cron runner. The job stops
// when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.Reschedule(s.ctx); err != nil {
		s.cancel()
		return err
	}

	s.mu.Lock()
	s.running = true
	runCtx := s.ctx
	s.mu.Unlock()

	s.cron.Start()
	logging.InfoContext(ctx, "scheduler started", "spec", s.Spec(), logging.KeyNextRun, s.NextRun())

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop removes the daily job and waits for a running check to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	logging.Info("scheduler stopped")
}

// Reschedule re-reads the preferences and replaces the daily job, so a new
// notification time takes effect without a restart.
func (s *Scheduler) Reschedule(ctx context.Context) error {
	prefs := s.source.GetNotificationPreferences(ctx)
	spec, err := SpecFor(prefs)
	if err != nil {
		return fmt.Errorf("invalid notification time %q: %w", prefs.NotificationTime, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != 0 && spec == s.spec {
		return nil
	}
	id, err := s.cron.AddFunc(spec, s.runCheck)
	if err != nil {
		return fmt.Errorf("failed to schedule expiry check: %w", err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.spec = spec

	logging.DebugContext(ctx, "expiry check scheduled", "spec", spec)
	return nil
}

func (s *Scheduler) runCheck() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	ctx = logging.NewRequestContext(ctx)
	_, _ = s.checker.Check(ctx)
}

// RunNow performs one check immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (CheckResult, error) {
	return s.checker.Check(ctx)
}

// Spec returns the current cron spec, or "" before the first Reschedule.
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// NextRun returns when the daily check fires next; zero if not scheduled or
// not started.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}
