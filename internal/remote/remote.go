// Package remote defines the multi-device note store and its implementations.
package remote

import (
	"context"

	"github.com/mdouchement/notesync/internal/model"
)

// A ChangeType tells how a document changed on the remote store.
type ChangeType string

// Change types.
const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	// Removed changes carry the full soft-delete state of the note
	// and are applied like modifications.
	Removed ChangeType = "removed"
)

type (
	// A Store is the remote multi-device store of the notes.
	Store interface {
		// Upsert creates or replaces the note of the given owner.
		Upsert(ctx context.Context, ownerID string, note model.Note) error
		// Delete removes the note of the given owner. Deleting an unknown note succeeds.
		Delete(ctx context.Context, ownerID, id string) error
		// Subscribe follows the changes of the given owner's collection.
		// The current collection is first delivered as added changes, newest first.
		Subscribe(ctx context.Context, ownerID string) (Subscription, error)
	}

	// A Subscription delivers the changes of a collection in order.
	Subscription interface {
		// Changes returns the channel of changes. It is closed once the subscription is detached.
		Changes() <-chan Change
		// Close detaches the subscription. Once Close returns, no change is delivered anymore.
		Close() error
	}

	// A Change is an entry of the change feed.
	Change struct {
		Type ChangeType
		Note model.Note
	}
)
