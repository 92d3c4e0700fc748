// Package scheduler runs one push job per note with coalescing, a connectivity gate,
// bounded concurrency and exponential backoff.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// errRequeued stops the retry chain of a job superseded while its call was in flight.
var errRequeued = errors.New("job requeued")

type (
	// An Executor performs the work of a job.
	Executor interface {
		Push(ctx context.Context, id string) error
	}

	// An ExecutorFunc is a function that implements Executor.
	ExecutorFunc func(ctx context.Context, id string) error

	// A Gate blocks jobs while the network is unavailable.
	Gate interface {
		Wait(ctx context.Context) error
	}

	// A Config holds the scheduler tuning.
	Config struct {
		// Workers bounds the number of jobs running at the same time.
		Workers int
		// BackoffBase is the first retry delay. Next delays double up to BackoffMax.
		BackoffBase time.Duration
		BackoffMax  time.Duration
		// Transient tells whether a failed job must be retried.
		Transient func(error) bool
		Logger    logrus.FieldLogger
	}

	// A Scheduler keeps at most one job per id.
	Scheduler struct {
		exec Executor
		gate Gate
		cfg  Config
		sem  *semaphore.Weighted
		log  logrus.FieldLogger

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup

		mu      sync.Mutex
		jobs    map[string]*job
		changed chan struct{} // closed and replaced every time a job ends
	}

	job struct {
		id      string
		cancel  context.CancelFunc
		running bool
		// again is set when a request arrives while the call is in flight.
		again bool
	}
)

// Push implements Executor.
func (f ExecutorFunc) Push(ctx context.Context, id string) error {
	return f(ctx, id)
}

// New returns a new Scheduler.
func New(exec Executor, gate Gate, cfg Config) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.Transient == nil {
		cfg.Transient = func(error) bool { return false }
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		exec:    exec,
		gate:    gate,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		log:     cfg.Logger.WithField("component", "scheduler"),
		ctx:     ctx,
		cancel:  cancel,
		jobs:    map[string]*job{},
		changed: make(chan struct{}),
	}
}

// RequestSync schedules a job for the given id.
// A queued job of the same id is replaced. When the job of the same id is running,
// a new job starts once the running call returns.
func (s *Scheduler) RequestSync(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	if j, ok := s.jobs[id]; ok {
		if j.running {
			j.again = true
			return
		}
		j.cancel()
	}

	s.start(id)
}

// CancelAll drops every queued job and retry chain.
// In-flight calls are not interrupted but their outcome does not trigger any retry.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, j := range s.jobs {
		j.cancel()
		j.again = false
		if !j.running {
			delete(s.jobs, id)
		}
	}
	s.broadcast()
}

// Len returns the number of jobs queued or running.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs)
}

// Wait blocks until no job remains or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.jobs) == 0 {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels all the jobs and waits for their goroutines.
func (s *Scheduler) Close() {
	s.CancelAll()
	s.cancel()
	s.wg.Wait()
}

// start must be called with the lock held.
func (s *Scheduler) start(id string) {
	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{
		id:     id,
		cancel: cancel,
	}
	s.jobs[id] = j

	s.wg.Add(1)
	go s.run(ctx, j)
}

func (s *Scheduler) run(ctx context.Context, j *job) {
	defer s.wg.Done()
	defer j.cancel()

	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		return s.attempt(ctx, j)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jobs[j.id] != j {
		// Replaced or cancelled.
		return
	}
	delete(s.jobs, j.id)
	s.broadcast()

	if j.again && s.ctx.Err() == nil {
		s.start(j.id)
		return
	}

	if err != nil && ctx.Err() == nil {
		s.log.WithField("id", j.id).WithError(err).Warn("job failed permanently")
	}
}

func (s *Scheduler) attempt(ctx context.Context, j *job) error {
	if err := s.gate.Wait(ctx); err != nil {
		return err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	j.running = true
	s.mu.Unlock()

	// The call is not recalled once started.
	err := s.exec.Push(context.WithoutCancel(ctx), j.id)

	s.mu.Lock()
	j.running = false
	again := j.again
	s.mu.Unlock()

	switch {
	case again:
		return errRequeued
	case err == nil:
		return nil
	case s.cfg.Transient(err):
		s.log.WithField("id", j.id).WithError(err).Debug("job failed, retrying")
		return retry.RetryableError(err)
	default:
		return err
	}
}

func (s *Scheduler) backoff() retry.Backoff {
	b := retry.NewExponential(s.cfg.BackoffBase)
	b = retry.WithJitterPercent(10, b)
	return retry.WithCappedDuration(s.cfg.BackoffMax, b)
}

// broadcast must be called with the lock held.
func (s *Scheduler) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}
