// Package scheduler fires the background engine runs on a fixed cadence. The
// job table is explicit: each job carries a name, a cadence, and a hook. Jobs
// are also runnable on demand through the trigger endpoint; both paths stamp
// the fire time into the context so every run is reproducible.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/requestcontext"
)

// RunFunc executes one job run. The returned summary is logged, and handed
// back verbatim on manual triggers.
type RunFunc func(ctx context.Context) (any, error)

// Cadence computes the next fire time strictly after a reference instant.
// All cadences work in UTC.
type Cadence interface {
	next(after time.Time) time.Time
}

type dailyCadence struct {
	offset time.Duration
}

func (c dailyCadence) next(after time.Time) time.Time {
	after = after.UTC()
	fire := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, time.UTC).Add(c.offset)
	if !fire.After(after) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// Daily fires once a day at the given offset from midnight UTC.
func Daily(offset time.Duration) Cadence {
	return dailyCadence{offset: offset}
}

type hourlyCadence struct{}

func (hourlyCadence) next(after time.Time) time.Time {
	return after.UTC().Truncate(time.Hour).Add(time.Hour)
}

// Hourly fires at the top of every hour.
func Hourly() Cadence {
	return hourlyCadence{}
}

type firstOfCadence struct {
	months []time.Month
	offset time.Duration
}

func (c firstOfCadence) next(after time.Time) time.Time {
	after = after.UTC()
	candidate := time.Date(after.Year(), after.Month(), 1, 0, 0, 0, 0, time.UTC).Add(c.offset)
	for range 13 {
		if candidate.After(after) && c.includes(candidate.Month()) {
			return candidate
		}
		candidate = time.Date(candidate.Year(), candidate.Month(), 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 1, 0).Add(c.offset)
	}
	return candidate
}

func (c firstOfCadence) includes(m time.Month) bool {
	if len(c.months) == 0 {
		return true
	}
	for _, month := range c.months {
		if month == m {
			return true
		}
	}
	return false
}

// FirstOf fires on the first day of each listed month at the given offset
// from midnight UTC. With no months listed it fires on the first of every
// month.
func FirstOf(offset time.Duration, months ...time.Month) Cadence {
	return firstOfCadence{months: months, offset: offset}
}

// Job is one named entry in the schedule.
type Job struct {
	Name    string
	Cadence Cadence
	Run     RunFunc
}

// Scheduler drives the job table.
type Scheduler struct {
	jobs   []Job
	byName map[string]Job
	logger *slog.Logger
	clock  func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Option configures optional scheduler dependencies.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock overrides the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// New builds a scheduler over the given job table.
func New(jobs []Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:   jobs,
		byName: make(map[string]Job, len(jobs)),
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, job := range jobs {
		s.byName[job.Name] = job
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one timer loop per job. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Stop halts the timer loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	for {
		fire := job.Cadence.next(s.clock())
		timer := time.NewTimer(fire.Sub(s.clock()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(ctx, job, fire)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, job Job, at time.Time) {
	runCtx := requestcontext.WithTime(ctx, at)
	runCtx = requestcontext.WithRequestID(runCtx, uuid.New().String())

	start := s.clock()
	summary, err := job.Run(runCtx)
	if err != nil {
		s.logger.ErrorContext(runCtx, "scheduled run failed",
			"job", job.Name,
			"fired_at", at,
			"error", err,
		)
		return
	}
	s.logger.InfoContext(runCtx, "scheduled run finished",
		"job", job.Name,
		"fired_at", at,
		"summary", summary,
		"duration_ms", s.clock().Sub(start).Milliseconds(),
	)
}

// RunNow executes a job by name outside its regular slot. The fire time
// is the current clock reading unless the context already carries one.
func (s *Scheduler) RunNow(ctx context.Context, name string) (any, error) {
	job, ok := s.byName[name]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown trigger %q", name)
	}
	runCtx := requestcontext.WithTime(ctx, requestcontext.Now(ctx))
	return job.Run(runCtx)
}

// JobNames lists the registered job names in table order.
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for _, job := range s.jobs {
		names = append(names, job.Name)
	}
	return names
}
