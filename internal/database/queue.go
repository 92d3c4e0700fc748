package database

import (
	"sync"

	"github.com/mdouchement/notesync/internal/model"
	"github.com/pkg/errors"
)

// ErrClosed is returned when the queue does not accept operations anymore.
var ErrClosed = errors.New("database queue closed")

type (
	// A Store is the serialized access to the local notes.
	// Every call is executed one at a time by a single goroutine.
	Store interface {
		NoteInteraction

		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool
		// Atomically runs fn on the queue goroutine. No other store operation is interleaved with fn.
		// fn must not call the Store itself.
		Atomically(fn func(tx Client) error) error
		// Watch returns a channel notified after every write.
		// Notifications are coalesced when the receiver lags behind.
		Watch() (<-chan struct{}, func())
	}

	// A Queue is a Store that executes all the operations on a single goroutine.
	Queue struct {
		client Client
		ops    chan func()
		quit   chan struct{}
		done   chan struct{}
		once   sync.Once

		mu       sync.Mutex
		watchers map[int]chan struct{}
		next     int
	}

	// tracker flags writes made through Atomically.
	tracker struct {
		Client
		dirty bool
	}
)

// NewQueue returns a Queue over the given client and starts its goroutine.
// Closing the queue closes the client.
func NewQueue(client Client) *Queue {
	q := &Queue{
		client:   client,
		ops:      make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		watchers: map[int]chan struct{}{},
	}
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.done)

	for {
		select {
		case op := <-q.ops:
			op()
		case <-q.quit:
			return
		}
	}
}

// Close stops the queue goroutine then closes the database.
func (q *Queue) Close() error {
	q.once.Do(func() {
		close(q.quit)
	})
	<-q.done
	return q.client.Close()
}

// IsNotFound returns true if err is a not found error.
func (q *Queue) IsNotFound(err error) bool {
	return q.client.IsNotFound(err)
}

// Atomically runs fn on the queue goroutine.
func (q *Queue) Atomically(fn func(tx Client) error) error {
	errc := make(chan error, 1)
	op := func() {
		tx := &tracker{Client: q.client}
		errc <- fn(tx)
		if tx.dirty {
			q.notify()
		}
	}

	select {
	case q.ops <- op:
	case <-q.done:
		return ErrClosed
	}
	return <-errc
}

// Watch returns a channel notified after every write.
func (q *Queue) Watch() (<-chan struct{}, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.next
	q.next++
	ch := make(chan struct{}, 1)
	q.watchers[id] = ch

	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.watchers, id)
	}
}

func (q *Queue) notify() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, ch := range q.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// FindNote returns the note for the given id (UUID).
func (q *Queue) FindNote(id string) (note *model.Note, err error) {
	err = q.Atomically(func(tx Client) error {
		note, err = tx.FindNote(id)
		return err
	})
	return note, err
}

// SaveNote inserts or replaces the given note as is.
func (q *Queue) SaveNote(note *model.Note) error {
	return q.Atomically(func(tx Client) error {
		return tx.SaveNote(note)
	})
}

// FindActiveNotes returns the notes of the given owner that are neither trashed nor purged.
func (q *Queue) FindActiveNotes(ownerID string) (notes []*model.Note, err error) {
	err = q.Atomically(func(tx Client) error {
		notes, err = tx.FindActiveNotes(ownerID)
		return err
	})
	return notes, err
}

// FindTrashedNotes returns the trashed notes of the given owner that are not purged.
func (q *Queue) FindTrashedNotes(ownerID string) (notes []*model.Note, err error) {
	err = q.Atomically(func(tx Client) error {
		notes, err = tx.FindTrashedNotes(ownerID)
		return err
	})
	return notes, err
}

// FindPendingNotes returns all the notes of the given owner waiting for a push.
func (q *Queue) FindPendingNotes(ownerID string) (notes []*model.Note, err error) {
	err = q.Atomically(func(tx Client) error {
		notes, err = tx.FindPendingNotes(ownerID)
		return err
	})
	return notes, err
}

// SavePurgeReceipt records that the deletion of a purged note was delivered.
func (q *Queue) SavePurgeReceipt(receipt *model.PurgeReceipt) error {
	return q.Atomically(func(tx Client) error {
		return tx.SavePurgeReceipt(receipt)
	})
}

// SetSyncStatus updates only the sync status of the given note.
func (q *Queue) SetSyncStatus(id string, status model.SyncStatus) error {
	return q.Atomically(func(tx Client) error {
		return tx.SetSyncStatus(id, status)
	})
}

// DeleteNotesByOwner physically removes all the notes and purge receipts of the given owner.
func (q *Queue) DeleteNotesByOwner(ownerID string) error {
	return q.Atomically(func(tx Client) error {
		return tx.DeleteNotesByOwner(ownerID)
	})
}

//
// Write tracking
//

func (t *tracker) Save(m model.Model) error {
	t.dirty = true
	return t.Client.Save(m)
}

func (t *tracker) SaveNote(note *model.Note) error {
	t.dirty = true
	return t.Client.SaveNote(note)
}

func (t *tracker) SetSyncStatus(id string, status model.SyncStatus) error {
	t.dirty = true
	return t.Client.SetSyncStatus(id, status)
}

func (t *tracker) DeleteNotesByOwner(ownerID string) error {
	t.dirty = true
	return t.Client.DeleteNotesByOwner(ownerID)
}

func (t *tracker) Close() error {
	return errors.New("database cannot be closed from a queued operation")
}
