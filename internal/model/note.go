package model

import (
	"time"
)

// A SyncStatus tells where a note stands regarding the remote store.
type SyncStatus string

// Sync statuses.
const (
	// Synced means the local row matches what the remote store holds.
	Synced SyncStatus = "synced"
	// Pending means a local mutation has not been pushed yet.
	Pending SyncStatus = "pending"
	// Conflict means a newer remote version exists while local edits were pending.
	// The local content is kept until the next local mutation.
	Conflict SyncStatus = "conflict"
	// Unsynced means the remote store refused the last push.
	Unsynced SyncStatus = "unsynced"
)

// A Kind is the kind of content carried by a note.
type Kind string

// Note kinds.
const (
	KindText   Kind = "text"
	KindCanvas Kind = "canvas"
)

type (
	// A Payload is the user content of a note.
	// The synchronization engine never looks into it.
	Payload struct {
		Kind            Kind   `json:"kind"                        msgpack:"kind"`
		Title           string `json:"title"                       msgpack:"title"`
		Body            string `json:"body"                        msgpack:"body"`
		CanvasImagePath string `json:"canvas_image_path,omitempty" msgpack:"canvas_image_path"`
	}

	// A Note is the local record of a user note.
	Note struct {
		ID                 string     `json:"id"                    msgpack:"id"                    storm:"id"`
		OwnerID            string     `json:"owner_id"              msgpack:"owner_id"              storm:"index"`
		Payload            Payload    `json:"payload"               msgpack:"payload"`
		CreatedAt          time.Time  `json:"created_at"            msgpack:"created_at"`
		UpdatedAt          time.Time  `json:"updated_at"            msgpack:"updated_at"            storm:"index"`
		LastEditedByDevice string     `json:"last_edited_by_device" msgpack:"last_edited_by_device"`
		Trashed            bool       `json:"trashed"               msgpack:"trashed"               storm:"index"`
		Purged             bool       `json:"purged"                msgpack:"purged"                storm:"index"`
		SyncStatus         SyncStatus `json:"sync_status,omitempty" msgpack:"sync_status"           storm:"index"`
	}

	// A PurgeReceipt records that the deletion of a purged note reached the remote store.
	// It is kept apart from the note so the note row only changes on local or accepted remote writes.
	PurgeReceipt struct {
		ID        string    `msgpack:"id"         storm:"id"`
		OwnerID   string    `msgpack:"owner_id"   storm:"index"`
		UpdatedAt time.Time `msgpack:"updated_at"`
	}
)

// NewNote returns a fresh note, pending its first push.
func NewNote(id, ownerID string, payload Payload) *Note {
	if payload.Kind == "" {
		payload.Kind = KindText
	}

	return &Note{
		ID:         id,
		OwnerID:    ownerID,
		Payload:    payload,
		SyncStatus: Pending,
	}
}

// Touch records a local mutation made by the given device at the given time.
func (n *Note) Touch(device string, at time.Time) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = at
	}
	n.UpdatedAt = at
	n.LastEditedByDevice = device
	n.SyncStatus = Pending
}

// Active returns true if the note belongs to the main listing.
func (n *Note) Active() bool {
	return !n.Trashed && !n.Purged
}

// InTrash returns true if the note belongs to the trash listing.
func (n *Note) InTrash() bool {
	return n.Trashed && !n.Purged
}
