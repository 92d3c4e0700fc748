// Package syncer implements the offline-first synchronization of the notes:
// conflict resolution, push execution, remote change ingestion and the
// mutation API exposed to the application.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/device"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/internal/remote"
	"github.com/mdouchement/notesync/internal/scheduler"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type (
	// Options holds the dependencies of an Orchestrator.
	Options struct {
		Store  database.Store
		Remote remote.Store
		Device device.Provider
		// Gate blocks the pushes while the remote store is unreachable.
		Gate scheduler.Gate

		Workers     int
		BackoffBase time.Duration
		BackoffMax  time.Duration
		// WatchDebounce coalesces the listings emitted by the Watch methods.
		WatchDebounce time.Duration

		Logger logrus.FieldLogger
		// Clock defaults to time.Now.
		Clock func() time.Time
	}

	// An Orchestrator is the entry point of the synchronization engine.
	// Every mutation is written locally then queued for push.
	Orchestrator struct {
		store     database.Store
		device    string
		scheduler *scheduler.Scheduler
		pusher    *Pusher
		ingestor  *Ingestor
		debounce  time.Duration
		clock     func() time.Time
		log       logrus.FieldLogger

		mu    sync.Mutex
		owner string
	}
)

// New returns a new Orchestrator.
// The device id is resolved once and stamped on every local mutation.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil || opts.Remote == nil || opts.Device == nil || opts.Gate == nil {
		return nil, errors.New("syncer: store, remote, device and gate are required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	deviceID, err := opts.Device.CurrentDeviceID()
	if err != nil {
		return nil, errors.Wrap(err, "syncer")
	}

	o := &Orchestrator{
		store:    opts.Store,
		device:   deviceID,
		debounce: opts.WatchDebounce,
		clock:    opts.Clock,
		log:      opts.Logger.WithField("device", deviceID),
	}
	o.pusher = NewPusher(opts.Store, opts.Remote, o.log)
	o.ingestor = NewIngestor(opts.Store, opts.Remote, deviceID, o.log)
	o.scheduler = scheduler.New(o.pusher, opts.Gate, scheduler.Config{
		Workers:     opts.Workers,
		BackoffBase: opts.BackoffBase,
		BackoffMax:  opts.BackoffMax,
		Transient:   remote.IsTransient,
		Logger:      o.log,
	})

	return o, nil
}

// DeviceID returns the id of the current device.
func (o *Orchestrator) DeviceID() string {
	return o.device
}

// Attach follows the remote changes of the given owner and resumes the pending pushes.
func (o *Orchestrator) Attach(ctx context.Context, ownerID string) error {
	if err := o.ingestor.Start(ctx, ownerID); err != nil {
		return err
	}

	o.mu.Lock()
	o.owner = ownerID
	o.mu.Unlock()

	pending, err := o.store.FindPendingNotes(ownerID)
	if err != nil {
		return errors.Wrap(err, "could not find pending notes")
	}
	for _, note := range pending {
		o.scheduler.RequestSync(note.ID)
	}

	o.log.WithField("owner", ownerID).WithField("pending", len(pending)).Info("attached")
	return nil
}

// Detach stops the remote change ingestion then cancels every scheduled push.
// In-flight remote calls complete but no retry follows.
func (o *Orchestrator) Detach() {
	o.ingestor.Stop()
	o.scheduler.CancelAll()

	o.mu.Lock()
	owner := o.owner
	o.owner = ""
	o.mu.Unlock()

	if owner != "" {
		o.log.WithField("owner", owner).Info("detached")
	}
}

// SignOut detaches and then physically removes every local note of the given owner.
func (o *Orchestrator) SignOut(ctx context.Context, ownerID string) error {
	o.Detach()
	// In-flight pushes read rows by id, they must be done before the wipe.
	if err := o.scheduler.Wait(ctx); err != nil {
		return errors.Wrap(err, "could not wait for in-flight pushes")
	}
	return errors.Wrap(o.store.DeleteNotesByOwner(ownerID), "could not wipe local notes")
}

// Insert creates a new note and returns its id.
func (o *Orchestrator) Insert(ownerID string, payload model.Payload) (string, error) {
	id := uuid.Must(uuid.NewV4()).String()
	note := model.NewNote(id, ownerID, payload)
	note.Touch(o.device, o.clock())

	if err := o.store.SaveNote(note); err != nil {
		return "", errors.Wrap(err, "could not insert note")
	}

	o.scheduler.RequestSync(id)
	return id, nil
}

// Update replaces the payload of a note.
func (o *Orchestrator) Update(id string, payload model.Payload) error {
	if payload.Kind == "" {
		payload.Kind = model.KindText
	}

	return o.mutate(id, func(note *model.Note) {
		note.Payload = payload
	})
}

// Trash moves a note to the trash.
func (o *Orchestrator) Trash(id string) error {
	return o.mutate(id, func(note *model.Note) {
		note.Trashed = true
	})
}

// Restore moves a note out of the trash.
func (o *Orchestrator) Restore(id string) error {
	return o.mutate(id, func(note *model.Note) {
		note.Trashed = false
	})
}

// Purge deletes a note forever. The local row is kept as a tombstone.
func (o *Orchestrator) Purge(id string) error {
	return o.mutate(id, func(note *model.Note) {
		note.Purged = true
	})
}

func (o *Orchestrator) mutate(id string, fn func(note *model.Note)) error {
	err := o.store.Atomically(func(tx database.Client) error {
		note, err := tx.FindNote(id)
		if err != nil {
			if tx.IsNotFound(err) {
				return ErrUnknownNote
			}
			return err
		}
		if note.Purged {
			return ErrPurged
		}

		fn(note)

		now := o.clock()
		if !now.After(note.UpdatedAt) {
			// UpdatedAt never goes backward, even with a skewed clock.
			now = note.UpdatedAt.Add(time.Nanosecond)
		}
		note.Touch(o.device, now)
		return tx.SaveNote(note)
	})
	if err != nil {
		return errors.Wrapf(err, "could not update note %s", id)
	}

	o.scheduler.RequestSync(id)
	return nil
}

// Note returns the local row of a note, purged ones included.
func (o *Orchestrator) Note(id string) (*model.Note, error) {
	note, err := o.store.FindNote(id)
	if err != nil {
		if o.store.IsNotFound(err) {
			return nil, errors.Wrapf(ErrUnknownNote, "note %s", id)
		}
		return nil, errors.Wrap(err, "could not read note")
	}
	return note, nil
}

// ActiveNotes returns the notes of the main listing, most recently updated first.
func (o *Orchestrator) ActiveNotes(ownerID string) ([]*model.Note, error) {
	notes, err := o.store.FindActiveNotes(ownerID)
	return notes, errors.Wrap(err, "could not list notes")
}

// TrashedNotes returns the notes of the trash listing, most recently updated first.
func (o *Orchestrator) TrashedNotes(ownerID string) ([]*model.Note, error) {
	notes, err := o.store.FindTrashedNotes(ownerID)
	return notes, errors.Wrap(err, "could not list trash")
}

// WatchActive emits the main listing now and after every local change of it.
// The channel is closed when ctx is done.
func (o *Orchestrator) WatchActive(ctx context.Context, ownerID string) (<-chan []*model.Note, error) {
	return o.watch(ctx, func() ([]*model.Note, error) {
		return o.ActiveNotes(ownerID)
	})
}

// WatchTrashed emits the trash listing now and after every local change of it.
// The channel is closed when ctx is done.
func (o *Orchestrator) WatchTrashed(ctx context.Context, ownerID string) (<-chan []*model.Note, error) {
	return o.watch(ctx, func() ([]*model.Note, error) {
		return o.TrashedNotes(ownerID)
	})
}

func (o *Orchestrator) watch(ctx context.Context, list func() ([]*model.Note, error)) (<-chan []*model.Note, error) {
	notify, unwatch := o.store.Watch()

	last, err := list()
	if err != nil {
		unwatch()
		return nil, err
	}

	out := make(chan []*model.Note, 1)
	out <- last

	trigger := make(chan struct{}, 1)
	debounced := debounce.New(o.debounce)

	go func() {
		defer close(out)
		defer unwatch()

		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
				debounced(func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			case <-trigger:
				notes, err := list()
				if err != nil {
					o.log.WithError(err).Error("could not refresh listing")
					continue
				}
				if sameListing(last, notes) {
					continue
				}
				last = notes

				select {
				case out <- notes:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func sameListing(a, b []*model.Note) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !a[i].UpdatedAt.Equal(b[i].UpdatedAt) || a[i].SyncStatus != b[i].SyncStatus {
			return false
		}
	}
	return true
}

// Wait blocks until every scheduled push is done or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	return o.scheduler.Wait(ctx)
}

// Pending returns the number of scheduled pushes.
func (o *Orchestrator) Pending() int {
	return o.scheduler.Len()
}

// Close detaches and stops the scheduler. The store is not closed.
func (o *Orchestrator) Close() {
	o.Detach()
	o.scheduler.Close()
}
