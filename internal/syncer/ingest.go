package syncer

import (
	"context"
	"sync"

	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/internal/remote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// An Ingestor applies the remote change feed of an owner to the local store.
type Ingestor struct {
	store  database.Store
	remote remote.Store
	device string
	log    logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	sub    remote.Subscription
	wg     sync.WaitGroup
}

// NewIngestor returns a new Ingestor for the given device.
func NewIngestor(store database.Store, r remote.Store, device string, log logrus.FieldLogger) *Ingestor {
	return &Ingestor{
		store:  store,
		remote: r,
		device: device,
		log:    log.WithField("component", "ingestor"),
	}
}

// Start subscribes to the change feed of the given owner.
// A previous subscription is stopped first.
func (i *Ingestor) Start(ctx context.Context, ownerID string) error {
	i.Stop()

	i.mu.Lock()
	defer i.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	sub, err := i.remote.Subscribe(ctx, ownerID)
	if err != nil {
		cancel()
		return errors.Wrap(err, "could not subscribe to remote changes")
	}

	i.cancel = cancel
	i.sub = sub
	i.wg.Add(1)
	go i.listen(ctx, sub, i.log.WithField("owner", ownerID))
	return nil
}

// Stop detaches from the change feed.
// Once Stop returns, no remote change is applied anymore.
func (i *Ingestor) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cancel == nil {
		return
	}

	i.cancel()
	if err := i.sub.Close(); err != nil {
		i.log.WithError(err).Warn("could not close subscription")
	}
	i.wg.Wait()

	i.cancel = nil
	i.sub = nil
}

func (i *Ingestor) listen(ctx context.Context, sub remote.Subscription, log logrus.FieldLogger) {
	defer i.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.Changes():
			if !ok {
				return
			}

			verdict, err := i.Apply(c)
			entry := log.WithField("note", c.Note.ID).WithField("type", c.Type).WithField("verdict", verdict)
			if err != nil {
				entry.WithError(err).Error("could not apply remote change")
				continue
			}
			entry.Debug("remote change")
		}
	}
}

// Apply resolves and applies a single remote change.
// Removed changes carry the soft-delete state of the note and are applied like modifications.
func (i *Ingestor) Apply(c remote.Change) (verdict Verdict, err error) {
	err = i.store.Atomically(func(tx database.Client) error {
		local, err := tx.FindNote(c.Note.ID)
		if err != nil {
			if !tx.IsNotFound(err) {
				return err
			}
			local = nil
		}

		verdict = Resolve(local, c.Note, i.device)
		switch verdict {
		case Accept:
			note := c.Note
			note.SyncStatus = model.Synced
			return tx.SaveNote(&note)
		case Flag:
			return tx.SetSyncStatus(local.ID, model.Conflict)
		}
		return nil
	})
	return verdict, errors.Wrap(err, "could not apply remote change")
}
