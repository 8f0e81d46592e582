package monitoring

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/isdelr/reminder-be/internal/clock"
	"github.com/isdelr/reminder-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSpec runs a scan once a minute.
const DefaultSpec = "@every 1m"

// ScanRunner performs one scan pass.
type ScanRunner interface {
	Scan(ctx context.Context) (ScanResult, error)
}

// SchedulerOptions configures a Scheduler. Zero values take defaults.
type SchedulerOptions struct {
	Spec string // cron spec understood by cron.ParseStandard
	// MaxConsecutiveFailures calls OnFatal after that many failed ticks in a row. 0 disables.
	MaxConsecutiveFailures int
	OnFatal                func(error)
	Clock                  clock.Clock
}

// TickStatus describes the most recent tick.
type TickStatus struct {
	StartedAt           time.Time  `json:"startedAt"`
	FinishedAt          time.Time  `json:"finishedAt"`
	Result              ScanResult `json:"result"`
	Error               string     `json:"error,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// Scheduler drives the scanner on a fixed schedule. Ticks never overlap: a tick that
// fires while the previous one is still running is skipped, not queued.
type Scheduler struct {
	scanner  ScanRunner
	eventSvc services.EventServiceProvider
	schedule cron.Schedule
	opts     SchedulerOptions

	running sync.Mutex // held for the duration of a tick

	mu       sync.Mutex
	last     *TickStatus
	failures int

	started  atomic.Bool
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler instance. eventSvc may be nil.
func NewScheduler(scanner ScanRunner, eventSvc services.EventServiceProvider, opts SchedulerOptions) (*Scheduler, error) {
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	schedule, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", opts.Spec, err)
	}
	return &Scheduler{
		scanner:  scanner,
		eventSvc: eventSvc,
		schedule: schedule,
		opts:     opts,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start runs the loop in a new goroutine. A Stop issued any time after Start returns
// waits for the loop, including its first tick, to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.started.Store(true)
	go s.Run(ctx)
}

// Run starts the scheduler's ticking loop and blocks until Stop is called or ctx ends.
func (s *Scheduler) Run(ctx context.Context) {
	s.started.Store(true)
	defer close(s.stopped)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	select {
	case <-s.done:
		return
	default:
	}

	log.Info().Str("spec", s.opts.Spec).Msg("Starting reminder scheduler...")
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.RunOnce(ctx) }))

	// Run once immediately on start
	s.RunOnce(ctx)
	c.Start()

	select {
	case <-s.done:
	case <-ctx.Done():
	}
	log.Info().Msg("Stopping reminder scheduler.")
	// Let an in-flight tick finish its sends before cancelling.
	<-c.Stop().Done()
}

// Stop halts the scheduler and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	if s.started.Load() {
		<-s.stopped
	}
}

// RunOnce performs a single tick unless one is already in progress, in which case it
// returns false without scanning.
func (s *Scheduler) RunOnce(ctx context.Context) (TickStatus, bool) {
	if !s.running.TryLock() {
		log.Warn().Msg("Scheduler: previous scan still running, skipping tick")
		return TickStatus{}, false
	}
	defer s.running.Unlock()

	status := TickStatus{StartedAt: s.opts.Clock.Now()}
	res, err := s.scanner.Scan(ctx)
	status.FinishedAt = s.opts.Clock.Now()
	status.Result = res

	s.mu.Lock()
	if err != nil {
		s.failures++
	} else {
		s.failures = 0
	}
	failures := s.failures
	status.ConsecutiveFailures = failures
	if err != nil {
		status.Error = err.Error()
	}
	s.last = &status
	s.mu.Unlock()

	if err != nil {
		s.handleFailure(ctx, err, failures)
	}
	return status, true
}

// LastTick returns the status of the most recent tick, if any.
func (s *Scheduler) LastTick() (TickStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return TickStatus{}, false
	}
	return *s.last, true
}

func (s *Scheduler) handleFailure(ctx context.Context, err error, failures int) {
	log.Error().Err(err).Int("consecutive_failures", failures).Msg("Scheduler: scan failed")
	if s.eventSvc != nil {
		msg := fmt.Sprintf("Reminder scan failed (%d in a row): %v", failures, err)
		if eerr := s.eventSvc.CreateEvent(ctx, "scheduler.scan.fail", "error", msg, nil); eerr != nil {
			log.Warn().Err(eerr).Msg("Scheduler: failed to record scan failure")
		}
	}
	limit := s.opts.MaxConsecutiveFailures
	if limit > 0 && failures >= limit && s.opts.OnFatal != nil {
		s.opts.OnFatal(fmt.Errorf("reminder scan failed %d times in a row: %w", failures, err))
	}
}

// cronLogger routes robfig/cron's logging onto zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
