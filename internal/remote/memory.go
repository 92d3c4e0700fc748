package remote

import (
	"context"
	"sort"
	"sync"

	"github.com/mdouchement/notesync/internal/model"
)

// A Memory is an in-process Store shared by several devices.
// It is used by tests and by the offline demo mode.
type Memory struct {
	mu     sync.Mutex
	notes  map[string]map[string]model.Note
	subs   map[string]map[*subscription]struct{}
	faults []error
	calls  int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		notes: map[string]map[string]model.Note{},
		subs:  map[string]map[*subscription]struct{}{},
	}
}

// FailNext makes the next calls to Upsert or Delete return the given errors, in order.
func (m *Memory) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.faults = append(m.faults, errs...)
}

// Calls returns the number of Upsert and Delete calls received, failed ones included.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls
}

// Note returns the stored note of the given owner.
func (m *Memory) Note(ownerID, id string) (model.Note, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[ownerID][id]
	return n, ok
}

// Upsert creates or replaces the note of the given owner.
func (m *Memory) Upsert(ctx context.Context, ownerID string, note model.Note) error {
	if err := ctx.Err(); err != nil {
		return Transient("upsert", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault(); err != nil {
		return err
	}

	collection, ok := m.notes[ownerID]
	if !ok {
		collection = map[string]model.Note{}
		m.notes[ownerID] = collection
	}

	typ := Modified
	if _, ok := collection[note.ID]; !ok {
		typ = Added
	}

	note.OwnerID = ownerID
	note.SyncStatus = ""
	collection[note.ID] = note
	m.publish(ownerID, Change{Type: typ, Note: note})
	return nil
}

// Delete removes the note of the given owner.
func (m *Memory) Delete(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return Transient("delete", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault(); err != nil {
		return err
	}

	note, ok := m.notes[ownerID][id]
	if !ok {
		return nil
	}

	delete(m.notes[ownerID], id)
	note.Purged = true
	m.publish(ownerID, Change{Type: Removed, Note: note})
	return nil
}

// Subscribe follows the changes of the given owner's collection.
func (m *Memory) Subscribe(ctx context.Context, ownerID string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]Change, 0, len(m.notes[ownerID]))
	for _, note := range m.notes[ownerID] {
		snapshot = append(snapshot, Change{Type: Added, Note: note})
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Note.UpdatedAt.After(snapshot[j].Note.UpdatedAt)
	})

	s := newSubscription(func(s *subscription) {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[ownerID], s)
	})
	s.push(snapshot...)

	if m.subs[ownerID] == nil {
		m.subs[ownerID] = map[*subscription]struct{}{}
	}
	m.subs[ownerID][s] = struct{}{}

	go s.run(ctx)
	return s, nil
}

func (m *Memory) fault() error {
	m.calls++
	if len(m.faults) == 0 {
		return nil
	}

	err := m.faults[0]
	m.faults = m.faults[1:]
	return err
}

func (m *Memory) publish(ownerID string, c Change) {
	for s := range m.subs[ownerID] {
		s.push(c)
	}
}
