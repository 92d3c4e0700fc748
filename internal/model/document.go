package model

// A Document is the server-side copy of a note.
// Its UpdatedAt is the server change time used by the change feed,
// not the edit time carried by the note itself.
type Document struct {
	Base `msgpack:",inline" storm:"inline"`

	OwnerID string `json:"owner_id" msgpack:"owner_id" storm:"index"`
	NoteID  string `json:"note_id"  msgpack:"note_id"  storm:"index"`
	Note    Note   `json:"note"     msgpack:"note"`
	Removed bool   `json:"removed"  msgpack:"removed"  storm:"index"`
}

// DocumentID returns the storage key of the given owner's note.
func DocumentID(ownerID, noteID string) string {
	return ownerID + "/" + noteID
}
