package model

import "github.com/mdouchement/notesync/pkg/libnotes"

// Wire returns the wire representation of the note.
// The sync status is local state and is not sent.
func (n *Note) Wire() libnotes.Note {
	return libnotes.Note{
		ID:                 n.ID,
		OwnerID:            n.OwnerID,
		Kind:               string(n.Payload.Kind),
		Title:              n.Payload.Title,
		Body:               n.Payload.Body,
		CanvasImagePath:    n.Payload.CanvasImagePath,
		CreatedAt:          n.CreatedAt,
		UpdatedAt:          n.UpdatedAt,
		LastEditedByDevice: n.LastEditedByDevice,
		Trashed:            n.Trashed,
		Purged:             n.Purged,
	}
}

// NoteFromWire returns the note described by the given wire representation.
func NoteFromWire(w libnotes.Note) Note {
	return Note{
		ID:      w.ID,
		OwnerID: w.OwnerID,
		Payload: Payload{
			Kind:            Kind(w.Kind),
			Title:           w.Title,
			Body:            w.Body,
			CanvasImagePath: w.CanvasImagePath,
		},
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
		LastEditedByDevice: w.LastEditedByDevice,
		Trashed:            w.Trashed,
		Purged:             w.Purged,
	}
}
