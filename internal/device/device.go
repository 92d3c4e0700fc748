// Package device provides the stable identity of the current installation.
package device

import (
	"sync"

	"github.com/gofrs/uuid"
	"github.com/mdouchement/notesync/internal/database"
	"github.com/pkg/errors"
)

const metaKey = "device_id"

// A Provider returns the identity of the current installation.
type Provider interface {
	// CurrentDeviceID returns the device id, creating and persisting it on first call.
	CurrentDeviceID() (string, error)
}

// An Identity is a Provider backed by the local database.
type Identity struct {
	store database.Store

	mu sync.Mutex
	id string
}

// New returns a new Identity.
func New(store database.Store) *Identity {
	return &Identity{store: store}
}

// CurrentDeviceID returns the device id, creating and persisting it on first call.
func (i *Identity) CurrentDeviceID() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id, nil
	}

	var id string
	err := i.store.Atomically(func(tx database.Client) error {
		err := tx.GetMeta(metaKey, &id)
		if err == nil || !tx.IsNotFound(err) {
			return err
		}

		id = uuid.Must(uuid.NewV4()).String()
		return tx.SetMeta(metaKey, id)
	})
	if err != nil {
		return "", errors.Wrap(err, "could not get device id")
	}

	i.id = id
	return id, nil
}

// Static is a Provider returning always the same id.
type Static string

// CurrentDeviceID returns the static id.
func (s Static) CurrentDeviceID() (string, error) {
	return string(s), nil
}
