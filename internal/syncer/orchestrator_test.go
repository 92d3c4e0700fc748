package syncer_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/notesync/internal/connectivity"
	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/device"
	"github.com/mdouchement/notesync/internal/logger"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/internal/remote"
	"github.com/mdouchement/notesync/internal/syncer"
	"github.com/mdouchement/notesync/pkg/stormcodec"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "george"

func TestOrchestrator_Coalescing(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, false)
	defer a.cleanup()

	a.clock.Set(100)
	id, err := a.Insert(owner, model.Payload{Title: "draft"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		a.clock.Set(101 + int64(i))
		require.NoError(t, a.Update(id, model.Payload{Title: "draft", Body: string(rune('a' + i))}))
	}
	assert.Equal(t, 1, a.Pending())

	a.gate.Set(true)
	a.wait(t)

	assert.Equal(t, 1, r.Calls())
	n, ok := r.Note(owner, id)
	require.True(t, ok)
	assert.Equal(t, "e", n.Payload.Body)
	assertStatus(t, a.store, id, model.Synced)
}

func TestOrchestrator_EchoSuppression(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, true)
	defer a.cleanup()
	require.NoError(t, a.Attach(context.Background(), owner))

	a.clock.Set(100)
	id, err := a.Insert(owner, model.Payload{Title: "mine"})
	require.NoError(t, err)
	a.wait(t)

	// Edit again while offline, the echo of the first push must not revert it.
	a.gate.Set(false)
	a.clock.Set(110)
	require.NoError(t, a.Update(id, model.Payload{Title: "mine", Body: "second"}))

	n, ok := r.Note(owner, id)
	require.True(t, ok)
	require.NoError(t, r.Upsert(context.Background(), owner, n))
	time.Sleep(20 * time.Millisecond)

	local := assertStatus(t, a.store, id, model.Pending)
	assert.Equal(t, "second", local.Payload.Body)
}

func TestOrchestrator_RetryConvergence(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, true)
	defer a.cleanup()

	unavailable := errors.New("unavailable")
	r.FailNext(
		remote.Transient("upsert", unavailable),
		remote.Transient("upsert", unavailable),
		remote.Transient("upsert", unavailable),
	)

	id, err := a.Insert(owner, model.Payload{Title: "flaky"})
	require.NoError(t, err)
	a.wait(t)

	assert.Equal(t, 4, r.Calls())
	assertStatus(t, a.store, id, model.Synced)
}

func TestOrchestrator_PermanentFailure(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, true)
	defer a.cleanup()

	r.FailNext(remote.Permanent("upsert", errors.New("permission denied")))

	id, err := a.Insert(owner, model.Payload{Title: "refused"})
	require.NoError(t, err)
	a.wait(t)

	assert.Equal(t, 1, r.Calls())
	assertStatus(t, a.store, id, model.Unsynced)

	// A new local edit tries again.
	require.NoError(t, a.Update(id, model.Payload{Title: "accepted"}))
	a.wait(t)
	assertStatus(t, a.store, id, model.Synced)
}

func TestOrchestrator_TrashRoundTrip(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, false)
	defer a.cleanup()

	a.clock.Set(100)
	id, err := a.Insert(owner, model.Payload{Title: "keep me"})
	require.NoError(t, err)
	a.clock.Set(110)
	other, err := a.Insert(owner, model.Payload{Title: "other"})
	require.NoError(t, err)

	a.clock.Set(120)
	require.NoError(t, a.Trash(id))
	assertListings(t, a, []string{other}, []string{id})
	n := assertStatus(t, a.store, id, model.Pending)
	assert.True(t, n.InTrash())

	a.clock.Set(130)
	require.NoError(t, a.Restore(id))
	assertListings(t, a, []string{id, other}, nil)
	n = assertStatus(t, a.store, id, model.Pending)
	assert.True(t, at(130).Equal(n.UpdatedAt))

	a.gate.Set(true)
	a.wait(t)
	rn, ok := r.Note(owner, id)
	require.True(t, ok)
	assert.False(t, rn.Trashed)
}

func TestOrchestrator_Purge(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, false)
	defer a.cleanup()

	id, err := a.Insert(owner, model.Payload{Title: "gone"})
	require.NoError(t, err)
	require.NoError(t, a.Trash(id))
	require.NoError(t, a.Purge(id))
	assertListings(t, a, nil, nil)

	assert.Equal(t, syncer.ErrPurged, errors.Cause(a.Purge(id)))
	assert.Equal(t, syncer.ErrPurged, errors.Cause(a.Restore(id)))
	assert.Equal(t, syncer.ErrUnknownNote, errors.Cause(a.Update("unknown", model.Payload{})))

	// Never pushed, the remote delete of an unknown note succeeds.
	a.gate.Set(true)
	a.wait(t)
	assert.Equal(t, 1, r.Calls())
	_, ok := r.Note(owner, id)
	assert.False(t, ok)

	n, err := a.Note(id)
	require.NoError(t, err)
	assert.True(t, n.Purged)
}

func TestOrchestrator_AttachSkipsDeliveredPurge(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, false)
	defer a.cleanup()
	ctx := context.Background()

	id, err := a.Insert(owner, model.Payload{Title: "gone"})
	require.NoError(t, err)
	require.NoError(t, a.Purge(id))

	a.gate.Set(true)
	a.wait(t)
	assert.Equal(t, 1, r.Calls())
	assertStatus(t, a.store, id, model.Pending)

	for i := 0; i < 2; i++ {
		require.NoError(t, a.Attach(ctx, owner))
		a.wait(t)
		a.Detach()
	}
	assert.Equal(t, 1, r.Calls())
}

func TestOrchestrator_DetachAttach(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, false)
	defer a.cleanup()
	ctx := context.Background()

	require.NoError(t, a.Attach(ctx, owner))
	id, err := a.Insert(owner, model.Payload{Title: "queued"})
	require.NoError(t, err)

	a.Detach()
	assert.Equal(t, 0, a.Pending())

	a.gate.Set(true)
	require.NoError(t, r.Upsert(ctx, owner, remoteNote("remote", "B", 100)))
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, r.Calls())
	_, err = a.Note("remote")
	assert.Equal(t, syncer.ErrUnknownNote, errors.Cause(err))

	// Attaching again pulls the remote notes and resumes the pending pushes.
	require.NoError(t, a.Attach(ctx, owner))
	a.wait(t)
	assertStatus(t, a.store, id, model.Synced)
	assert.Eventually(t, func() bool {
		_, err := a.Note("remote")
		return err == nil
	}, time.Second, time.Millisecond)
}

func TestOrchestrator_SignOut(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, true)
	defer a.cleanup()
	ctx := context.Background()

	require.NoError(t, a.Attach(ctx, owner))
	id, err := a.Insert(owner, model.Payload{Title: "bye"})
	require.NoError(t, err)
	a.wait(t)

	require.NoError(t, a.SignOut(ctx, owner))
	assertListings(t, a, nil, nil)
	_, err = a.Note(id)
	assert.Equal(t, syncer.ErrUnknownNote, errors.Cause(err))

	// Remote data is untouched.
	_, ok := r.Note(owner, id)
	assert.True(t, ok)
}

func TestOrchestrator_WatchActive(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, false)
	defer a.cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	active, err := a.WatchActive(ctx, owner)
	require.NoError(t, err)
	trashed, err := a.WatchTrashed(ctx, owner)
	require.NoError(t, err)

	assert.Empty(t, receive(t, active))
	assert.Empty(t, receive(t, trashed))

	id, err := a.Insert(owner, model.Payload{Title: "live"})
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids(receive(t, active)))

	require.NoError(t, a.Trash(id))
	assert.Empty(t, receive(t, active))
	assert.Equal(t, []string{id}, ids(receive(t, trashed)))

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-active
		return !ok
	}, time.Second, time.Millisecond)
}

func TestOrchestrator_TwoDevices(t *testing.T) {
	r := remote.NewMemory()
	a := setup(t, "A", r, true)
	defer a.cleanup()
	b := setup(t, "B", r, true)
	defer b.cleanup()
	ctx := context.Background()

	require.NoError(t, a.Attach(ctx, owner))
	require.NoError(t, b.Attach(ctx, owner))

	// A creates the note at 100, it reaches B.
	a.clock.Set(100)
	id, err := a.Insert(owner, model.Payload{Title: "shared", Body: "v1"})
	require.NoError(t, err)
	a.wait(t)
	assertStatus(t, a.store, id, model.Synced)

	assert.Eventually(t, func() bool {
		n, err := b.store.FindNote(id)
		return err == nil && n.SyncStatus == model.Synced
	}, time.Second, time.Millisecond)

	// A goes offline and edits at 140.
	a.gate.Set(false)
	a.clock.Set(140)
	require.NoError(t, a.Update(id, model.Payload{Title: "shared", Body: "from A"}))

	// B edits at 150 and pushes.
	b.clock.Set(150)
	require.NoError(t, b.Update(id, model.Payload{Title: "shared", Body: "from B"}))
	b.wait(t)
	assertStatus(t, b.store, id, model.Synced)

	// A receives the newer remote version while its own edit is pending.
	assert.Eventually(t, func() bool {
		n, err := a.store.FindNote(id)
		return err == nil && n.SyncStatus == model.Conflict
	}, time.Second, time.Millisecond)

	// Back online, A does not overwrite the remote version.
	a.gate.Set(true)
	a.wait(t)

	n := assertStatus(t, a.store, id, model.Conflict)
	assert.Equal(t, "from A", n.Payload.Body)
	assert.True(t, at(140).Equal(n.UpdatedAt))

	rn, ok := r.Note(owner, id)
	require.True(t, ok)
	assert.Equal(t, "from B", rn.Payload.Body)
	assert.Equal(t, "B", rn.LastEditedByDevice)

	// A new edit on A resolves the conflict by winning.
	a.clock.Set(160)
	require.NoError(t, a.Update(id, model.Payload{Title: "shared", Body: "merged"}))
	a.wait(t)
	assertStatus(t, a.store, id, model.Synced)

	assert.Eventually(t, func() bool {
		n, err := b.store.FindNote(id)
		return err == nil && n.Payload.Body == "merged" && n.SyncStatus == model.Synced
	}, time.Second, time.Millisecond)
}

//
// Helpers
//

type node struct {
	*syncer.Orchestrator
	store   *database.Queue
	gate    *connectivity.Switch
	clock   *clock
	cleanup func()
}

func setup(t *testing.T, deviceID string, r remote.Store, online bool) *node {
	store, cleanup := newStore(t)
	gate := connectivity.NewSwitch(online)
	clk := &clock{now: at(1)}

	o, err := syncer.New(syncer.Options{
		Store:       store,
		Remote:      r,
		Device:      device.Static(deviceID),
		Gate:        gate,
		Workers:     2,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
		Logger:      logger.Discard(),
		Clock:       clk.Now,
	})
	require.NoError(t, err)
	assert.Equal(t, deviceID, o.DeviceID())

	return &node{
		Orchestrator: o,
		store:        store,
		gate:         gate,
		clock:        clk,
		cleanup: func() {
			o.Close()
			cleanup()
		},
	}
}

func (n *node) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Wait(ctx))
}

func newStore(t *testing.T) (*database.Queue, func()) {
	return newStoreWith(t, "")
}

func newStoreWith(t *testing.T, codecName string) (*database.Queue, func()) {
	c, err := stormcodec.Lookup(codecName)
	require.NoError(t, err)

	tmpfile, err := os.CreateTemp("", "notesync.*.db")
	require.NoError(t, err)
	filename := tmpfile.Name()
	tmpfile.Close()

	require.NoError(t, database.StormInit(filename, c))
	db, err := database.StormOpen(filename, c)
	require.NoError(t, err)

	queue := database.NewQueue(db)
	return queue, func() {
		queue.Close()
		os.RemoveAll(filename)
	}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Set(sec int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at(sec)
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0)
}

func localNote(id, deviceID string, sec int64, status model.SyncStatus) *model.Note {
	n := model.NewNote(id, owner, model.Payload{Title: "Title " + id})
	n.Touch(deviceID, at(sec))
	n.SyncStatus = status
	return n
}

func remoteNote(id, deviceID string, sec int64) model.Note {
	n := localNote(id, deviceID, sec, "")
	return *n
}

func assertStatus(t *testing.T, store database.Store, id string, status model.SyncStatus) *model.Note {
	t.Helper()
	n, err := store.FindNote(id)
	require.NoError(t, err)
	assert.Equal(t, status, n.SyncStatus)
	return n
}

func assertListings(t *testing.T, n *node, active, trashed []string) {
	t.Helper()
	notes, err := n.ActiveNotes(owner)
	require.NoError(t, err)
	assert.Equal(t, active, ids(notes))

	notes, err = n.TrashedNotes(owner)
	require.NoError(t, err)
	assert.Equal(t, trashed, ids(notes))
}

func receive(t *testing.T, ch <-chan []*model.Note) []*model.Note {
	t.Helper()
	select {
	case notes := <-ch:
		return notes
	case <-time.After(time.Second):
		t.Fatal("no listing received")
		return nil
	}
}

func ids(notes []*model.Note) []string {
	var ids []string
	for _, n := range notes {
		ids = append(ids, n.ID)
	}
	return ids
}
