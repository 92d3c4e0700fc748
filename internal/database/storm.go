package database

import (
	"sync"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/pkg/errors"
)

const metaBucket = "meta"

type strm struct {
	db *storm.DB

	mu   sync.Mutex
	last time.Time
}

// StormCodec is the default format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormInit initializes Storm database.
func StormInit(database string, c codec.MarshalUnmarshaler) error {
	db, err := storm.Open(database, codecOption(c))
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Note{}); err != nil {
		return errors.Wrap(err, "could not init note index")
	}

	if err := db.Init(&model.PurgeReceipt{}); err != nil {
		return errors.Wrap(err, "could not init purge receipt index")
	}

	err = db.Init(&model.Document{})
	return errors.Wrap(err, "could not init document index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database string, c codec.MarshalUnmarshaler) error {
	db, err := storm.Open(database, codecOption(c))
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Note{}); err != nil {
		return errors.Wrap(err, "could not ReIndex notes")
	}

	if err := db.ReIndex(&model.PurgeReceipt{}); err != nil {
		return errors.Wrap(err, "could not ReIndex purge receipts")
	}

	err = db.ReIndex(&model.Document{})
	return errors.Wrap(err, "could not ReIndex documents")
}

// StormOpen returns a new Storm database connection.
// A nil codec means MessagePack.
func StormOpen(database string, c codec.MarshalUnmarshaler) (Client, error) {
	db, err := storm.Open(database, codecOption(c))
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func codecOption(c codec.MarshalUnmarshaler) func(*storm.Options) error {
	if c == nil {
		return StormCodec
	}
	return storm.Codec(c)
}

// Save inserts or updates the entry in database with the given model.
// The update date is strictly increasing across all saved models.
func (c *strm) Save(m model.Model) error {
	t := c.now()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
	}
	if m.GetCreatedAt() == nil {
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

func (c *strm) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is nil or a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// FindNote returns the note for the given id (UUID).
func (c *strm) FindNote(id string) (*model.Note, error) {
	var note model.Note
	if err := c.db.One("ID", id, &note); err != nil {
		return nil, errors.Wrap(err, "could not find note")
	}
	return &note, nil
}

// SaveNote inserts or replaces the given note as is.
func (c *strm) SaveNote(note *model.Note) error {
	return errors.Wrap(c.db.Save(note), "could not save note")
}

// FindActiveNotes returns the notes of the given owner that are neither trashed nor purged.
func (c *strm) FindActiveNotes(ownerID string) ([]*model.Note, error) {
	return c.findNotes("could not find active notes",
		q.Eq("OwnerID", ownerID),
		q.Eq("Trashed", false),
		q.Eq("Purged", false),
	)
}

// FindTrashedNotes returns the trashed notes of the given owner that are not purged.
func (c *strm) FindTrashedNotes(ownerID string) ([]*model.Note, error) {
	return c.findNotes("could not find trashed notes",
		q.Eq("OwnerID", ownerID),
		q.Eq("Trashed", true),
		q.Eq("Purged", false),
	)
}

// FindPendingNotes returns all the notes of the given owner waiting for a push.
// A purged note is left out once the deletion of its last version is delivered.
func (c *strm) FindPendingNotes(ownerID string) ([]*model.Note, error) {
	notes, err := c.findNotes("could not find pending notes",
		q.Eq("OwnerID", ownerID),
		q.Eq("SyncStatus", model.Pending),
	)
	if err != nil {
		return nil, err
	}

	receipts := make([]*model.PurgeReceipt, 0)
	err = c.db.Find("OwnerID", ownerID, &receipts)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find purge receipts")
	}
	if len(receipts) == 0 {
		return notes, nil
	}

	delivered := make(map[string]time.Time, len(receipts))
	for _, receipt := range receipts {
		delivered[receipt.ID] = receipt.UpdatedAt
	}

	pending := notes[:0]
	for _, note := range notes {
		if at, ok := delivered[note.ID]; ok && note.Purged && at.Equal(note.UpdatedAt) {
			continue
		}
		pending = append(pending, note)
	}
	return pending, nil
}

// SavePurgeReceipt records that the deletion of a purged note was delivered.
func (c *strm) SavePurgeReceipt(receipt *model.PurgeReceipt) error {
	return errors.Wrap(c.db.Save(receipt), "could not save purge receipt")
}

func (c *strm) findNotes(message string, matchers ...q.Matcher) ([]*model.Note, error) {
	notes := make([]*model.Note, 0)
	err := c.db.Select(matchers...).OrderBy("UpdatedAt").Reverse().Find(&notes)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, message)
	}
	return notes, nil
}

// SetSyncStatus updates only the sync status of the given note.
func (c *strm) SetSyncStatus(id string, status model.SyncStatus) error {
	err := c.db.UpdateField(&model.Note{ID: id}, "SyncStatus", status)
	return errors.Wrap(err, "could not update sync status")
}

// DeleteNotesByOwner physically removes all the notes and purge receipts of the given owner.
func (c *strm) DeleteNotesByOwner(ownerID string) error {
	err := c.db.Select(q.Eq("OwnerID", ownerID)).Delete(&model.Note{})
	if err != nil && !c.IsNotFound(err) {
		return errors.Wrap(err, "could not delete notes")
	}

	err = c.db.Select(q.Eq("OwnerID", ownerID)).Delete(&model.PurgeReceipt{})
	if err != nil && !c.IsNotFound(err) {
		return errors.Wrap(err, "could not delete purge receipts")
	}
	return nil
}

// FindDocument returns the document of the given owner and note id.
func (c *strm) FindDocument(ownerID, noteID string) (*model.Document, error) {
	var document model.Document
	if err := c.db.One("ID", model.DocumentID(ownerID, noteID), &document); err != nil {
		return nil, errors.Wrap(err, "could not find document")
	}
	return &document, nil
}

// FindDocumentsChangedSince returns the documents of the given owner changed strictly after since.
// It also returns a boolean to true if there is more documents than the given limit.
// limit equals to 0 means all documents.
func (c *strm) FindDocumentsChangedSince(ownerID string, since time.Time, limit int) ([]*model.Document, bool, error) {
	query := []q.Matcher{q.Eq("OwnerID", ownerID)}

	if !since.IsZero() {
		query = append(query, q.Gt("UpdatedAt", since))
	}

	documents := make([]*model.Document, 0)
	stmt := c.db.Select(query...).OrderBy("UpdatedAt")
	if limit > 0 {
		stmt = stmt.Limit(limit + 1)
	}
	err := stmt.Find(&documents)
	if err != nil && !c.IsNotFound(err) {
		return nil, false, errors.Wrap(err, "could not find documents")
	}

	var overLimit bool
	if limit != 0 && len(documents) > limit {
		documents = documents[:limit]
		overLimit = true
	}

	return documents, overLimit, nil
}

// GetMeta decodes into v the value stored under the given key.
func (c *strm) GetMeta(key string, v any) error {
	return errors.Wrapf(c.db.Get(metaBucket, key, v), "could not get meta %s", key)
}

// SetMeta stores v under the given key.
func (c *strm) SetMeta(key string, v any) error {
	return errors.Wrapf(c.db.Set(metaBucket, key, v), "could not set meta %s", key)
}
