// Package scheduler runs the bot's periodic jobs: deadline and overdue
// reminders, daily summary, streak reminder, weekly stats and leaderboard rebuild.
// A Scheduler is constructed once by the worker and injected where needed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskquest/taskquest-bot/pkg/logger"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Description returns a human-readable description of the job.
	Description() string

	// Run executes the job. The context carries the run id (see RunID).
	Run(ctx context.Context) error
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next activation strictly after t.
	Next(t time.Time) time.Time

	String() string
}

// Locker serializes runs of the same job across worker instances.
type Locker interface {
	Acquire(ctx context.Context, job, token string) (bool, error)
	Release(ctx context.Context, job, token string) error
}

// JobResult contains the result of a job execution.
type JobResult struct {
	RunID       string        `json:"run_id"`
	JobName     string        `json:"job"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Manual      bool          `json:"manual,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("scheduler: job cannot be nil")
	ErrNilSchedule             = errors.New("scheduler: schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("scheduler: job already exists")
	ErrJobNotFound             = errors.New("scheduler: job not found")
	ErrJobRunning              = errors.New("scheduler: job is already running")
	ErrJobLocked               = errors.New("scheduler: job is locked by another instance")
	ErrJobPanicked             = errors.New("scheduler: job panicked")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
	ErrSchedulerNotRunning     = errors.New("scheduler: not running")

	// ErrShutdownTimeout - задания не успели завершиться за отведённое время.
	ErrShutdownTimeout = errors.New("scheduler: shutdown timed out, in-flight jobs abandoned")
)

type runIDKey struct{}

// RunID returns the run id stored in a job context.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger   *slog.Logger
	Location *time.Location
	Clock    timeutil.Clock

	// TickInterval - как часто проверяются сроки запуска (по умолчанию 1s).
	TickInterval time.Duration

	// JobTimeout ограничивает один запуск; 0 - без ограничения.
	JobTimeout time.Duration

	MaxHistorySize int

	// Locker is optional; without it every instance runs every job.
	Locker Locker
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Logger:         slog.Default(),
		Location:       time.UTC,
		TickInterval:   time.Second,
		JobTimeout:     10 * time.Minute,
		MaxHistorySize: 200,
	}
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	lastRun   time.Time
	nextRun   time.Time
	running   bool
	runCount  int64
	failCount int64
	skipCount int64
	last      *JobResult
}

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.Mutex

	cfg Config
	log *slog.Logger

	jobs    map[string]*scheduledJob
	history []JobResult
	metrics *Metrics

	running    bool
	stopped    bool
	stopLoop   context.CancelFunc
	jobsCtx    context.Context
	cancelJobs context.CancelFunc
	loopDone   chan struct{}
	inflight   sync.WaitGroup
	startedAt  time.Time

	onJobComplete func(JobResult)
}

// New creates a Scheduler. Zero config fields take DefaultConfig values.
func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.SystemClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = def.MaxHistorySize
	}

	return &Scheduler{
		cfg:     cfg,
		log:     cfg.Logger.With(logger.Component("scheduler")),
		jobs:    make(map[string]*scheduledJob),
		metrics: NewMetrics(),
	}
}

func (s *Scheduler) now() time.Time {
	return s.cfg.Clock().In(s.cfg.Location)
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job. Allowed before or after Start.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, schedule: schedule, nextRun: schedule.Next(s.now())}
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.Job(name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", sj.nextRun),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop. Jobs run until Stop, even if ctx is cancelled
// first; cancelling ctx only stops the loop from firing new runs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	s.jobsCtx, s.cancelJobs = context.WithCancel(context.WithoutCancel(ctx))
	s.stopLoop = stopLoop
	s.loopDone = make(chan struct{})
	s.running = true
	s.stopped = false
	s.startedAt = s.cfg.Clock()

	s.log.Info("scheduler started", slog.Int("jobs", len(s.jobs)))

	go s.loop(loopCtx, s.loopDone)
	return nil
}

// Stop stops firing new runs and waits for in-flight runs until ctx expires.
// After that the runs are cancelled and abandoned with ErrShutdownTimeout.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.stopped = true
	s.stopLoop()
	loopDone := s.loopDone
	cancelJobs := s.cancelJobs
	s.mu.Unlock()

	<-loopDone

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancelJobs()
		s.log.Info("scheduler stopped", slog.Duration("uptime", s.cfg.Clock().Sub(s.startedAt)))
		return nil
	case <-ctx.Done():
		cancelJobs()
		s.log.Warn("scheduler stop timed out, abandoning in-flight jobs")
		return ErrShutdownTimeout
	}
}

// IsRunning returns true if the scheduler loop is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// OnJobComplete sets a callback invoked after every finished run.
func (s *Scheduler) OnJobComplete(fn func(JobResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJobComplete = fn
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER LOOP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDue()
		}
	}
}

// fireDue starts every due job. A job still running from the previous
// activation is skipped for this tick and rescheduled.
func (s *Scheduler) fireDue() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	for name, sj := range s.jobs {
		if sj.nextRun.IsZero() || now.Before(sj.nextRun) {
			continue
		}
		sj.nextRun = sj.schedule.Next(now)

		if sj.running {
			sj.skipCount++
			s.metrics.RecordSkip(name)
			s.log.Warn("job skipped, previous run still in flight", logger.Job(name))
			continue
		}

		sj.running = true
		s.inflight.Add(1)
		go func(ctx context.Context, sj *scheduledJob) {
			defer s.inflight.Done()
			_, _ = s.execute(ctx, sj, false)
		}(s.jobsCtx, sj)
	}
}

// execute runs one activation. The caller has already set sj.running.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) (JobResult, error) {
	name := sj.job.Name()
	runID := uuid.NewString()
	log := s.log.With(logger.Job(name), slog.String("run_id", runID))

	result := JobResult{RunID: runID, JobName: name, StartedAt: s.cfg.Clock(), Manual: manual}

	err := s.runLocked(ctx, sj.job, runID, log)

	result.CompletedAt = s.cfg.Clock()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	sj.running = false
	sj.lastRun = result.StartedAt
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	sj.last = &result
	s.history = append(s.history, result)
	if over := len(s.history) - s.cfg.MaxHistorySize; over > 0 {
		s.history = s.history[over:]
	}
	hook := s.onJobComplete
	s.mu.Unlock()

	s.metrics.RecordExecution(name, result.Duration, err == nil)

	if err != nil {
		log.Error("job failed", slog.Duration("duration", result.Duration), logger.Err(err))
	} else {
		log.Info("job completed", slog.Duration("duration", result.Duration))
	}

	if hook != nil {
		hook(result)
	}
	return result, err
}

func (s *Scheduler) runLocked(ctx context.Context, job Job, runID string, log *slog.Logger) error {
	name := job.Name()

	if s.cfg.Locker != nil {
		ok, err := s.cfg.Locker.Acquire(ctx, name, runID)
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return ErrJobLocked
		}
		defer func() {
			if err := s.cfg.Locker.Release(context.WithoutCancel(ctx), name, runID); err != nil {
				log.Warn("release job lock", logger.Err(err))
			}
		}()
	}

	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, runIDKey{}, runID)
	ctx = logger.WithContext(ctx, log)

	log.Info("job started")
	return safeRun(ctx, job)
}

// safeRun converts a panic inside the job into an error.
func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrJobPanicked, p, debug.Stack())
		}
	}()
	return job.Run(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow executes a job immediately, ignoring its schedule. It works on a
// scheduler that was never started; after Stop it returns ErrSchedulerNotRunning.
// Returns ErrJobRunning if the job is already in flight.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return JobResult{}, ErrSchedulerNotRunning
	}
	sj, exists := s.jobs[jobName]
	if !exists {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	if sj.running {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobRunning, jobName)
	}
	sj.running = true
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	return s.execute(ctx, sj, true)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	Running     bool       `json:"running"`
	LastRun     time.Time  `json:"last_run"`
	NextRun     time.Time  `json:"next_run"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	SkipCount   int64      `json:"skip_count"`
	LastResult  *JobResult `json:"last_result,omitempty"`
}

func (sj *scheduledJob) info() JobInfo {
	return JobInfo{
		Name:        sj.job.Name(),
		Description: sj.job.Description(),
		Schedule:    sj.schedule.String(),
		Running:     sj.running,
		LastRun:     sj.lastRun,
		NextRun:     sj.nextRun,
		RunCount:    sj.runCount,
		FailCount:   sj.failCount,
		SkipCount:   sj.skipCount,
		LastResult:  sj.last,
	}
}

// ListJobs returns information about all registered jobs, sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, sj := range s.jobs {
		infos = append(infos, sj.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetJobInfo returns information about a specific job.
func (s *Scheduler) GetJobInfo(jobName string) (JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[jobName]
	if !exists {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	return sj.info(), nil
}

// History returns up to limit most recent results, oldest first.
func (s *Scheduler) History(limit int) []JobResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]JobResult, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}

// Metrics returns the scheduler metrics.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}
