package libnotes

import "time"

// Note kinds.
const (
	KindText   = "text"
	KindCanvas = "canvas"
)

// Change types reported by the change feed.
const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
	ChangeRemoved  = "removed"
)

type (
	// A Note is the wire representation of a note.
	Note struct {
		ID                 string    `json:"id"`
		OwnerID            string    `json:"owner_id"`
		Kind               string    `json:"kind"`
		Title              string    `json:"title"`
		Body               string    `json:"body"`
		CanvasImagePath    string    `json:"canvas_image_path,omitempty"`
		CreatedAt          time.Time `json:"created_at"`
		UpdatedAt          time.Time `json:"updated_at"`
		LastEditedByDevice string    `json:"last_edited_by_device"`
		Trashed            bool      `json:"trashed"`
		Purged             bool      `json:"purged"`
	}

	// A Change is an entry of the change feed.
	Change struct {
		Type string `json:"type"`
		Note Note   `json:"note"`
	}

	// A ChangeSet is a page of the change feed.
	// Changes are ordered by note update time, newest first.
	ChangeSet struct {
		Changes []Change `json:"changes"`
		// Cursor must be sent back to get the next changes.
		Cursor string `json:"cursor"`
		// More is true when another page is immediately available.
		More bool `json:"more"`
	}
)
