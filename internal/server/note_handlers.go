package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/notesync/internal/apierror"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/mdouchement/notesync/internal/server/service"
	"github.com/mdouchement/notesync/pkg/libnotes"
)

// note contains all note handlers.
type note struct {
	notes *service.Notes
}

///// Upsert
////
//

// Upsert creates or replaces a note of the owner.
func (h *note) Upsert(c echo.Context) error {
	var params libnotes.Note
	if err := c.Bind(&params); err != nil {
		if he, ok := err.(*echo.HTTPError); ok && he.Internal == nil {
			// Rejected by the binder before decoding.
			return he
		}
		return c.JSON(http.StatusBadRequest, apierror.New("Could not get note."))
	}

	id := c.Param("id")
	if params.ID != "" && params.ID != id {
		return c.JSON(http.StatusBadRequest, apierror.New("Note id does not match the URL."))
	}
	params.ID = id

	if params.UpdatedAt.IsZero() {
		return c.JSON(http.StatusBadRequest, apierror.New("Note updated_at is required."))
	}

	document, err := h.notes.Upsert(c.Param("owner"), model.NoteFromWire(params))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"note":       document.Note.Wire(),
		"changed_at": document.UpdatedAt,
	})
}

///// Delete
////
//

// Delete removes a note of the owner.
func (h *note) Delete(c echo.Context) error {
	if err := h.notes.Remove(c.Param("owner"), c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

///// Changes
////
//

// Changes returns the changes of the owner's collection made after the given cursor.
func (h *note) Changes(c echo.Context) error {
	var limit int
	if v := c.QueryParam("limit"); v != "" {
		var err error
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, apierror.New("Invalid limit."))
		}
	}

	changes, err := h.notes.Changes(c.Param("owner"), c.QueryParam("cursor"), limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, changes)
}
