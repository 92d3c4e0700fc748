package service

import (
	"net/http"
	"sort"
	"sync"

	"github.com/mdouchement/notesync/internal/apierror"
	"github.com/mdouchement/notesync/internal/database"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/pkg/libnotes"
	"github.com/pkg/errors"
)

// A Notes is the service managing the server-side copies of the notes.
type Notes struct {
	db    database.Client
	limit int

	// Writes are serialized so concurrent requests keep the creation date of a document.
	mu sync.Mutex
}

// NewNotes instantiates a new Notes service.
// limit caps the number of changes returned by a feed page.
func NewNotes(db database.Client, limit int) *Notes {
	return &Notes{
		db:    db,
		limit: limit,
	}
}

// Upsert creates or replaces the note of the given owner.
func (s *Notes) Upsert(ownerID string, note model.Note) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	document, err := s.db.FindDocument(ownerID, note.ID)
	if err != nil {
		if !s.db.IsNotFound(err) {
			return nil, errors.Wrap(err, "could not upsert note")
		}

		document = &model.Document{
			OwnerID: ownerID,
			NoteID:  note.ID,
		}
		document.ID = model.DocumentID(ownerID, note.ID)
	}

	note.OwnerID = ownerID
	note.SyncStatus = ""
	document.Note = note
	document.Removed = false

	return document, errors.Wrap(s.db.Save(document), "could not upsert note")
}

// Remove tombstones the note of the given owner so the change feed reports it as removed.
// Removing an unknown note is not an error.
func (s *Notes) Remove(ownerID, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	document, err := s.db.FindDocument(ownerID, noteID)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "could not remove note")
	}

	if document.Removed {
		return nil
	}

	document.Removed = true
	document.Note.Purged = true
	return errors.Wrap(s.db.Save(document), "could not remove note")
}

// Changes returns the page of changes made after the given cursor.
func (s *Notes) Changes(ownerID, cursor string, limit int) (*libnotes.ChangeSet, error) {
	since, err := libnotes.TimeFromToken(cursor)
	if err != nil {
		return nil, apierror.NewWithTagCode(http.StatusBadRequest, "invalid-cursor", "Invalid cursor.")
	}

	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	documents, more, err := s.db.FindDocumentsChangedSince(ownerID, since, limit)
	if err != nil {
		return nil, errors.Wrap(err, "could not get changes")
	}

	changes := &libnotes.ChangeSet{
		Changes: make([]libnotes.Change, 0, len(documents)),
		Cursor:  cursor,
		More:    more,
	}

	for _, document := range documents {
		changes.Cursor = libnotes.TokenFromTime(*document.UpdatedAt)

		typ := libnotes.ChangeModified
		switch {
		case document.Removed:
			typ = libnotes.ChangeRemoved
		case since.IsZero() || document.CreatedAt.After(since):
			typ = libnotes.ChangeAdded
		}

		changes.Changes = append(changes.Changes, libnotes.Change{
			Type: typ,
			Note: document.Note.Wire(),
		})
	}

	sort.SliceStable(changes.Changes, func(i, j int) bool {
		return changes.Changes[i].Note.UpdatedAt.After(changes.Changes[j].Note.UpdatedAt)
	})

	return changes, nil
}
