package syncer

import (
	"context"
	"time"

	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/internal/remote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// A Pusher sends the local state of a note to the remote store.
// It only touches the sync status of the local row.
type Pusher struct {
	store  database.Store
	remote remote.Store
	log    logrus.FieldLogger
}

// NewPusher returns a new Pusher.
func NewPusher(store database.Store, r remote.Store, log logrus.FieldLogger) *Pusher {
	return &Pusher{
		store:  store,
		remote: r,
		log:    log.WithField("component", "pusher"),
	}
}

// Push sends the current local state of the given note.
// A transient remote failure is returned as is so the caller retries it.
func (p *Pusher) Push(ctx context.Context, id string) error {
	note, err := p.store.FindNote(id)
	if err != nil {
		if p.store.IsNotFound(err) {
			// Wiped since the request, nothing left to push.
			p.log.WithField("note", id).Debug("note not found locally")
			return nil
		}
		return errors.Wrap(err, "could not read note")
	}

	if note.SyncStatus == model.Conflict {
		// The remote version is newer, it stays there until the next local edit.
		return nil
	}

	if note.Purged {
		err = p.remote.Delete(ctx, note.OwnerID, note.ID)
	} else {
		err = p.remote.Upsert(ctx, note.OwnerID, *note)
	}

	log := p.log.WithField("note", id).WithField("purged", note.Purged)
	if err != nil {
		if remote.IsTransient(err) {
			log.WithError(err).Debug("push failed")
			return err
		}

		log.WithError(err).Warn("push rejected")
		if serr := p.settle(note.ID, note.UpdatedAt, model.Unsynced); serr != nil {
			log.WithError(serr).Error("could not mark note as unsynced")
		}
		return err
	}

	if note.Purged {
		log.Debug("note deleted remotely")
		return errors.Wrap(p.receipt(note), "could not record delivered deletion")
	}

	log.Debug("note pushed")
	return errors.Wrap(p.settle(note.ID, note.UpdatedAt, model.Synced), "could not mark note as synced")
}

// receipt records the delivered deletion of a purged note, unless it changed meanwhile.
// The sync status stays as is.
func (p *Pusher) receipt(pushed *model.Note) error {
	return p.store.Atomically(func(tx database.Client) error {
		note, err := tx.FindNote(pushed.ID)
		if err != nil {
			if tx.IsNotFound(err) {
				return nil
			}
			return err
		}

		if !note.Purged || note.SyncStatus != model.Pending || !note.UpdatedAt.Equal(pushed.UpdatedAt) {
			return nil
		}
		return tx.SavePurgeReceipt(&model.PurgeReceipt{
			ID:        note.ID,
			OwnerID:   note.OwnerID,
			UpdatedAt: note.UpdatedAt,
		})
	})
}

// settle sets the status of a pending note unless it was edited again during the push.
func (p *Pusher) settle(id string, pushed time.Time, status model.SyncStatus) error {
	return p.store.Atomically(func(tx database.Client) error {
		note, err := tx.FindNote(id)
		if err != nil {
			if tx.IsNotFound(err) {
				return nil
			}
			return err
		}

		if note.SyncStatus != model.Pending || !note.UpdatedAt.Equal(pushed) {
			return nil
		}
		return tx.SetSyncStatus(id, status)
	})
}
