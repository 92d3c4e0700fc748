package remote

import (
	"context"
	"time"

	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/pkg/libnotes"
	"github.com/sirupsen/logrus"
)

// An HTTPStore is a Store backed by a notecloud server.
// Subscriptions poll the change feed at a fixed interval.
type HTTPStore struct {
	client   libnotes.Client
	interval time.Duration
	limit    int
	log      logrus.FieldLogger
}

// NewHTTP returns a new HTTPStore.
func NewHTTP(client libnotes.Client, interval time.Duration, log logrus.FieldLogger) *HTTPStore {
	return &HTTPStore{
		client:   client,
		interval: interval,
		limit:    100,
		log:      log.WithField("component", "remote"),
	}
}

// Ping checks that the server is reachable.
func (h *HTTPStore) Ping(ctx context.Context) error {
	_, err := h.client.Version(ctx)
	return Classify("ping", err)
}

// Upsert creates or replaces the note of the given owner.
func (h *HTTPStore) Upsert(ctx context.Context, ownerID string, note model.Note) error {
	return Classify("upsert", h.client.UpsertNote(ctx, ownerID, note.Wire()))
}

// Delete removes the note of the given owner.
func (h *HTTPStore) Delete(ctx context.Context, ownerID, id string) error {
	return Classify("delete", h.client.DeleteNote(ctx, ownerID, id))
}

// Subscribe follows the changes of the given owner's collection.
func (h *HTTPStore) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	polled := make(chan struct{})

	s := newSubscription(func(*subscription) {
		cancel()
		<-polled
	})

	go func() {
		defer close(polled)
		h.poll(ctx, ownerID, s)
	}()
	go s.run(ctx)

	return s, nil
}

func (h *HTTPStore) poll(ctx context.Context, ownerID string, s *subscription) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var cursor string
	for {
		cursor = h.fetch(ctx, ownerID, cursor, s)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fetch pushes all the changes available after cursor and returns the new cursor.
func (h *HTTPStore) fetch(ctx context.Context, ownerID, cursor string, s *subscription) string {
	for {
		cs, err := h.client.Changes(ctx, ownerID, cursor, h.limit)
		if err != nil {
			if ctx.Err() == nil {
				err = Classify("changes", err)
				h.log.WithField("transient", IsTransient(err)).WithError(err).Warn("could not fetch changes")
			}
			return cursor
		}

		changes := make([]Change, 0, len(cs.Changes))
		for _, c := range cs.Changes {
			changes = append(changes, Change{
				Type: ChangeType(c.Type),
				Note: model.NoteFromWire(c.Note),
			})
		}
		s.push(changes...)

		if cs.Cursor != "" {
			cursor = cs.Cursor
		}
		if !cs.More {
			return cursor
		}
	}
}
