package database_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Serialized(t *testing.T) {
	db, cleanup := setup(t, "")
	defer cleanup()
	queue := database.NewQueue(db)

	require.NoError(t, queue.SaveNote(note("n1", "george", time.Now(), false, false)))

	// Concurrent read-modify-write cycles must not lose any increment.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := queue.Atomically(func(tx database.Client) error {
				n, err := tx.FindNote("n1")
				if err != nil {
					return err
				}
				n.Payload.Body += "x"
				return tx.SaveNote(n)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := queue.FindNote("n1")
	require.NoError(t, err)
	assert.Len(t, n.Payload.Body, 50)
}

func TestQueue_Watch(t *testing.T) {
	db, cleanup := setup(t, "")
	defer cleanup()
	queue := database.NewQueue(db)

	changes, unwatch := queue.Watch()
	defer unwatch()

	_, err := queue.FindActiveNotes("george")
	require.NoError(t, err)
	select {
	case <-changes:
		t.Fatal("reads must not notify watchers")
	default:
	}

	require.NoError(t, queue.SaveNote(note("n1", "george", time.Now(), false, false)))
	require.NoError(t, queue.SetSyncStatus("n1", model.Synced))

	// Both writes are coalesced in a single pending notification.
	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("missing notification")
	}
	select {
	case <-changes:
		t.Fatal("notifications must be coalesced")
	default:
	}
}

func TestQueue_Closed(t *testing.T) {
	db, cleanup := setup(t, "")
	defer cleanup()
	queue := database.NewQueue(db)

	require.NoError(t, queue.Close())

	_, err := queue.FindNote("n1")
	assert.Equal(t, database.ErrClosed, err)
}
