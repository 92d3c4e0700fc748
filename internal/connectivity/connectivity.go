// Package connectivity tells whether the remote store is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type (
	// A Monitor reports the network state.
	Monitor interface {
		// Online returns true when the remote store is believed reachable.
		Online() bool
		// Wait blocks until the remote store is believed reachable or ctx is done.
		Wait(ctx context.Context) error
	}

	// A Pinger checks that the remote store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// A Switch is a Monitor whose state is set explicitly.
	Switch struct {
		mu     sync.Mutex
		online bool
		ready  chan struct{} // closed while online
	}
)

// NewSwitch returns a Switch in the given state.
func NewSwitch(online bool) *Switch {
	s := &Switch{ready: make(chan struct{})}
	s.Set(online)
	return s
}

// Set changes the state of the switch.
func (s *Switch) Set(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if online == s.online {
		return
	}

	s.online = online
	if online {
		close(s.ready)
		return
	}
	s.ready = make(chan struct{})
}

// Online returns the current state.
func (s *Switch) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.online
}

// Wait blocks until the switch is online or ctx is done.
func (s *Switch) Wait(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Probe pings the remote store at the given interval and sets the switch accordingly.
// It returns when ctx is done.
func Probe(ctx context.Context, s *Switch, p Pinger, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pctx, cancel := context.WithTimeout(ctx, interval)
		err := p.Ping(pctx)
		cancel()

		if ctx.Err() != nil {
			return
		}

		online := err == nil
		if online != s.Online() {
			entry := log.WithField("online", online)
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Info("connectivity changed")
		}
		s.Set(online)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
