package remote

import (
	"context"
	"sync"
)

// subscription buffers the changes in order and hands them over one at a time,
// so a slow reader never blocks the producer.
type subscription struct {
	mu      sync.Mutex
	backlog []Change
	signal  chan struct{}

	out        chan Change
	quit       chan struct{}
	done       chan struct{}
	once       sync.Once
	unregister func(*subscription)
}

func newSubscription(unregister func(*subscription)) *subscription {
	return &subscription{
		signal:     make(chan struct{}, 1),
		out:        make(chan Change),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		unregister: unregister,
	}
}

func (s *subscription) push(changes ...Change) {
	if len(changes) == 0 {
		return
	}

	s.mu.Lock()
	s.backlog = append(s.backlog, changes...)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)
	defer s.unregister(s)

	for {
		s.mu.Lock()
		if len(s.backlog) == 0 {
			s.mu.Unlock()

			select {
			case <-s.signal:
				continue
			case <-s.quit:
				return
			case <-ctx.Done():
				return
			}
		}

		c := s.backlog[0]
		s.backlog = s.backlog[1:]
		s.mu.Unlock()

		select {
		case s.out <- c:
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *subscription) Changes() <-chan Change {
	return s.out
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.quit)
	})
	<-s.done
	return nil
}
