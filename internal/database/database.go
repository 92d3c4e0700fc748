package database

import (
	"time"

	"github.com/mdouchement/notesync/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		NoteInteraction
		DocumentInteraction
		MetaInteraction
	}

	// A NoteInteraction defines all the methods used to interact with the local note records.
	NoteInteraction interface {
		// FindNote returns the note for the given id (UUID).
		FindNote(id string) (*model.Note, error)
		// SaveNote inserts or replaces the given note as is.
		SaveNote(note *model.Note) error
		// FindActiveNotes returns the notes of the given owner that are neither trashed nor purged,
		// newest first.
		FindActiveNotes(ownerID string) ([]*model.Note, error)
		// FindTrashedNotes returns the trashed notes of the given owner that are not purged,
		// newest first.
		FindTrashedNotes(ownerID string) ([]*model.Note, error)
		// FindPendingNotes returns all the notes of the given owner waiting for a push,
		// purged ones included until their deletion is delivered.
		FindPendingNotes(ownerID string) ([]*model.Note, error)
		// SavePurgeReceipt records that the deletion of a purged note was delivered.
		SavePurgeReceipt(receipt *model.PurgeReceipt) error
		// SetSyncStatus updates only the sync status of the given note.
		SetSyncStatus(id string, status model.SyncStatus) error
		// DeleteNotesByOwner physically removes all the notes and purge receipts of the given owner.
		DeleteNotesByOwner(ownerID string) error
	}

	// A DocumentInteraction defines all the methods used to interact with server-side documents.
	DocumentInteraction interface {
		// FindDocument returns the document of the given owner and note id.
		FindDocument(ownerID, noteID string) (*model.Document, error)
		// FindDocumentsChangedSince returns the documents of the given owner changed strictly after since,
		// oldest change first.
		// It also returns a boolean to true if there is more documents than the given limit.
		// limit equals to 0 means all documents.
		FindDocumentsChangedSince(ownerID string, since time.Time, limit int) ([]*model.Document, bool, error)
	}

	// A MetaInteraction defines the methods used to store installation-wide values.
	MetaInteraction interface {
		// GetMeta decodes into v the value stored under the given key.
		GetMeta(key string, v any) error
		// SetMeta stores v under the given key.
		SetMeta(key string, v any) error
	}
)
