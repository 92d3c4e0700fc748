package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mdouchement/notesync/internal/connectivity"
	"github.com/mdouchement/notesync/internal/logger"
	"github.com/mdouchement/notesync/internal/scheduler"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("unavailable")
	errPermanent = errors.New("permission denied")
)

type recorder struct {
	mu      sync.Mutex
	calls   map[string]int
	running int32
	max     int32
	fn      func(id string, call int) error
}

func newRecorder(fn func(id string, call int) error) *recorder {
	return &recorder{calls: map[string]int{}, fn: fn}
}

func (r *recorder) Push(_ context.Context, id string) error {
	n := atomic.AddInt32(&r.running, 1)
	defer atomic.AddInt32(&r.running, -1)
	for {
		max := atomic.LoadInt32(&r.max)
		if n <= max || atomic.CompareAndSwapInt32(&r.max, max, n) {
			break
		}
	}

	r.mu.Lock()
	r.calls[id]++
	call := r.calls[id]
	r.mu.Unlock()

	if r.fn == nil {
		return nil
	}
	return r.fn(id, call)
}

func (r *recorder) Calls(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func setup(exec scheduler.Executor, online bool, workers int) (*scheduler.Scheduler, *connectivity.Switch) {
	gate := connectivity.NewSwitch(online)
	s := scheduler.New(exec, gate, scheduler.Config{
		Workers:     workers,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
		Transient: func(err error) bool {
			return errors.Cause(err) == errTransient
		},
		Logger: logger.Discard(),
	})
	return s, gate
}

func wait(t *testing.T, s *scheduler.Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestScheduler_Coalescing(t *testing.T) {
	exec := newRecorder(nil)
	s, gate := setup(exec, false, 4)
	defer s.Close()

	for i := 0; i < 5; i++ {
		s.RequestSync("a")
	}
	s.RequestSync("b")
	assert.Equal(t, 2, s.Len())

	gate.Set(true)
	wait(t, s)

	assert.Equal(t, 1, exec.Calls("a"))
	assert.Equal(t, 1, exec.Calls("b"))
}

func TestScheduler_SameIDSerialized(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	exec := newRecorder(func(id string, call int) error {
		started <- struct{}{}
		if call == 1 {
			<-release
		}
		return nil
	})
	s, _ := setup(exec, true, 4)
	defer s.Close()

	s.RequestSync("a")
	<-started

	// Requests received while the call is in flight are held and coalesced.
	s.RequestSync("a")
	s.RequestSync("a")
	s.RequestSync("a")
	assert.Equal(t, 1, s.Len())
	assert.EqualValues(t, 1, atomic.LoadInt32(&exec.running))

	close(release)
	wait(t, s)

	assert.Equal(t, 2, exec.Calls("a"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&exec.max))
}

func TestScheduler_BoundedConcurrency(t *testing.T) {
	exec := newRecorder(func(id string, call int) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	s, _ := setup(exec, true, 2)
	defer s.Close()

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		s.RequestSync(id)
	}
	wait(t, s)

	assert.LessOrEqual(t, atomic.LoadInt32(&exec.max), int32(2))
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		assert.Equal(t, 1, exec.Calls(id), id)
	}
}

func TestScheduler_RetryConvergence(t *testing.T) {
	exec := newRecorder(func(id string, call int) error {
		if call <= 3 {
			return errors.Wrap(errTransient, "push")
		}
		return nil
	})
	s, _ := setup(exec, true, 1)
	defer s.Close()

	s.RequestSync("a")
	wait(t, s)

	assert.Equal(t, 4, exec.Calls("a"))
}

func TestScheduler_PermanentFailure(t *testing.T) {
	exec := newRecorder(func(id string, call int) error {
		return errPermanent
	})
	s, _ := setup(exec, true, 1)
	defer s.Close()

	s.RequestSync("a")
	wait(t, s)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, exec.Calls("a"))
}

func TestScheduler_CancelAll(t *testing.T) {
	exec := newRecorder(nil)
	s, gate := setup(exec, false, 1)
	defer s.Close()

	s.RequestSync("a")
	s.RequestSync("b")
	s.CancelAll()
	assert.Equal(t, 0, s.Len())

	gate.Set(true)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, exec.Calls("a"))
	assert.Equal(t, 0, exec.Calls("b"))

	// The scheduler is still usable.
	s.RequestSync("a")
	wait(t, s)
	assert.Equal(t, 1, exec.Calls("a"))
}

func TestScheduler_CancelAllStopsRetries(t *testing.T) {
	exec := newRecorder(func(id string, call int) error {
		return errTransient
	})
	s, _ := setup(exec, true, 1)
	defer s.Close()

	s.RequestSync("a")
	assert.Eventually(t, func() bool { return exec.Calls("a") >= 2 }, time.Second, time.Millisecond)

	s.CancelAll()
	wait(t, s)
	calls := exec.Calls("a")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, exec.Calls("a"))
}

func TestScheduler_InFlightNotRecalled(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var completed atomic.Bool
	exec := scheduler.ExecutorFunc(func(ctx context.Context, id string) error {
		started <- struct{}{}
		<-release
		if ctx.Err() == nil {
			completed.Store(true)
		}
		return nil
	})
	s, _ := setup(exec, true, 1)
	defer s.Close()

	s.RequestSync("a")
	<-started
	s.CancelAll()
	close(release)

	wait(t, s)
	assert.True(t, completed.Load())
}
