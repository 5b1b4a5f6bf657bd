// Package scheduler runs registered pipeline jobs on their triggers with a
// single tick loop: at most one in-flight run per job id, overlapping
// firings dropped, and missed firings coalesced into one catch-up run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler is one job execution. It must honor ctx cancellation so shutdown
// can complete within the configured timeout.
type Handler func(ctx context.Context) error

// JobDefinition configures one recurring job. Immutable once registered.
type JobDefinition struct {
	ID      string
	Trigger Trigger
	Handler Handler
	Enabled bool
	// SingleInstance drops firings that would overlap an active run of the
	// same job. Without it overlapping runs are allowed.
	SingleInstance bool
	// MisfireGrace is how late a firing may be before it is counted as
	// genuinely missed. The late firing still runs, once.
	MisfireGrace time.Duration
}

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	ID           string     `json:"id"`
	Trigger      string     `json:"trigger"`
	Enabled      bool       `json:"enabled"`
	Paused       bool       `json:"paused"`
	Running      bool       `json:"running"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	LastStarted  *time.Time `json:"last_started,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	RunCount     int        `json:"run_count"`
	FailCount    int        `json:"fail_count"`
	MissedCount  int        `json:"missed_count"`
	DroppedCount int        `json:"dropped_count"`
}

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrUnknownJob     = errors.New("unknown job id")
)

type job struct {
	def      JobDefinition
	nextFire time.Time
	paused   bool
	running  int

	lastStarted *time.Time
	lastError   string
	runCount    int
	failCount   int
	missed      int
	dropped     int
}

// Scheduler drives all registered jobs from one ticking goroutine. Job
// handlers run in their own goroutines; the tick loop never blocks on them.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	started bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log  *logrus.Logger
	tick time.Duration
	now  func() time.Time
}

// Option tweaks scheduler construction; used mainly by tests to shrink the
// tick interval and pin the clock.
type Option func(*Scheduler)

func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(log *logrus.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs: make(map[string]*job),
		log:  log,
		tick: time.Second,
		now:  time.Now,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(def JobDefinition) error {
	if def.ID == "" {
		return errors.New("job id is required")
	}
	if def.Trigger == nil {
		return fmt.Errorf("job %s: trigger is required", def.ID)
	}
	if def.Handler == nil {
		return fmt.Errorf("job %s: handler is required", def.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	if _, exists := s.jobs[def.ID]; exists {
		return fmt.Errorf("job %s already registered", def.ID)
	}
	s.jobs[def.ID] = &job{def: def}
	s.order = append(s.order, def.ID)
	return nil
}

// Start launches the tick loop. The derived context is handed to every job
// run; Stop cancels it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel

	now := s.now()
	for _, id := range s.order {
		j := s.jobs[id]
		j.nextFire = j.def.Trigger.Next(now)
		s.log.Infof("Scheduled job %s (%s), next run at %s", id, j.def.Trigger.Description(), j.nextFire.Format(time.RFC3339))
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

// Stop cancels all in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

// tickOnce fires every due job at most once, recomputing each next-fire time
// from "now" so any backlog of missed firings collapses into the single run.
func (s *Scheduler) tickOnce(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*job
	for _, id := range s.order {
		j := s.jobs[id]
		if !j.def.Enabled || j.paused || now.Before(j.nextFire) {
			continue
		}
		late := now.Sub(j.nextFire)
		if j.def.SingleInstance && j.running > 0 {
			// Previous run still active: drop this firing, do not queue it.
			j.dropped++
			j.nextFire = j.def.Trigger.Next(now)
			continue
		}
		if j.def.MisfireGrace > 0 && late > j.def.MisfireGrace {
			j.missed++
			s.log.Warnf("Job %s missed its scheduled time by %s, running catch-up", j.def.ID, late.Round(time.Millisecond))
		}
		j.nextFire = j.def.Trigger.Next(now)
		due = append(due, j)
	}
	for _, j := range due {
		s.fireLocked(ctx, j, now)
	}
	s.mu.Unlock()
}

// fireLocked starts a job run; the caller holds s.mu.
func (s *Scheduler) fireLocked(ctx context.Context, j *job, now time.Time) {
	j.running++
	started := now
	j.lastStarted = &started
	j.runCount++

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		err := s.runHandler(ctx, j.def)

		s.mu.Lock()
		j.running--
		if err != nil {
			j.failCount++
			j.lastError = err.Error()
			s.log.Errorf("Job %s failed: %v", j.def.ID, err)
		} else {
			j.lastError = ""
			s.log.Infof("Job %s completed", j.def.ID)
		}
		s.mu.Unlock()
	}()
}

// runHandler isolates handler panics so one job can never take down the
// scheduler or block other jobs from firing.
func (s *Scheduler) runHandler(ctx context.Context, def JobDefinition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v\n%s", def.ID, r, debug.Stack())
		}
	}()
	return def.Handler(ctx)
}

// TriggerNow runs a job immediately, bypassing its trigger but subject to
// the same single-instance rule. Returns false if the job is unknown, the
// scheduler is stopped, or a run is already in flight.
func (s *Scheduler) TriggerNow(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.runCtx == nil {
		return false
	}
	j, ok := s.jobs[id]
	if !ok || (j.def.SingleInstance && j.running > 0) {
		return false
	}

	// Manual runs do not move the regular schedule.
	s.fireLocked(s.runCtx, j, s.now())
	return true
}

// Pause keeps a job registered but stops it firing until Resume.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrUnknownJob
	}
	j.paused = true
	return nil
}

// Resume re-enables a paused job, scheduling its next fire from now.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrUnknownJob
	}
	if j.paused {
		j.paused = false
		j.nextFire = j.def.Trigger.Next(s.now())
	}
	return nil
}

// Status reports all jobs in registration order.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.order))
	for _, id := range s.order {
		j := s.jobs[id]
		st := JobStatus{
			ID:           id,
			Trigger:      j.def.Trigger.Description(),
			Enabled:      j.def.Enabled,
			Paused:       j.paused,
			Running:      j.running > 0,
			LastStarted:  j.lastStarted,
			LastError:    j.lastError,
			RunCount:     j.runCount,
			FailCount:    j.failCount,
			MissedCount:  j.missed,
			DroppedCount: j.dropped,
		}
		if s.started && !j.paused && j.def.Enabled {
			next := j.nextFire
			st.NextRun = &next
		}
		statuses = append(statuses, st)
	}
	return statuses
}
