package client

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"
	"github.com/mdouchement/notesync/internal/model"
	"github.com/pkg/errors"
	"github.com/sanity-io/litter"
)

// Prompt asks on stdin the fields left empty in the given payload.
func Prompt(payload *model.Payload) error {
	var err error

	if payload.Title == "" {
		payload.Title, err = readline.Line("Title: ")
		if err != nil {
			return errors.Wrap(err, "could not read title from stdin")
		}
	}

	if payload.Body == "" && payload.Kind != model.KindCanvas {
		payload.Body, err = readline.Line("Body: ")
		if err != nil {
			return errors.Wrap(err, "could not read body from stdin")
		}
	}

	return nil
}

// Add creates a note and prints its id.
func (a *App) Add(payload model.Payload) (string, error) {
	id, err := a.Sync.Insert(a.Config.Owner, payload)
	if err != nil {
		return "", err
	}

	fmt.Fprintln(a.Out, id)
	return id, nil
}

// Edit replaces the content of a note. Empty fields keep their current value.
func (a *App) Edit(id string, payload model.Payload) error {
	note, err := a.Sync.Note(id)
	if err != nil {
		return err
	}

	current := note.Payload
	if payload.Kind != "" {
		current.Kind = payload.Kind
	}
	if payload.Title != "" {
		current.Title = payload.Title
	}
	if payload.Body != "" {
		current.Body = payload.Body
	}
	if payload.CanvasImagePath != "" {
		current.CanvasImagePath = payload.CanvasImagePath
	}

	return a.Sync.Update(id, current)
}

// List prints the main listing, or the trash listing, of the notes updated after since.
func (a *App) List(trash bool, since time.Time) error {
	list := a.Sync.ActiveNotes
	if trash {
		list = a.Sync.TrashedNotes
	}

	notes, err := list(a.Config.Owner)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tUPDATED\tKIND\tTITLE")
	for _, note := range notes {
		if !since.IsZero() && !note.UpdatedAt.After(since) {
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			note.ID,
			note.SyncStatus,
			note.UpdatedAt.Local().Format(time.DateTime),
			note.Payload.Kind,
			note.Payload.Title,
		)
	}
	return w.Flush()
}

// Show prints a note. raw dumps the whole local row.
func (a *App) Show(id string, raw bool) error {
	note, err := a.Sync.Note(id)
	if err != nil {
		return err
	}

	if raw {
		fmt.Fprintln(a.Out, litter.Sdump(note))
		return nil
	}

	fmt.Fprintf(a.Out, "# %s\n", note.Payload.Title)
	fmt.Fprintf(a.Out, "%s | updated %s by %s\n", note.SyncStatus, note.UpdatedAt.Local().Format(time.RFC3339), note.LastEditedByDevice)
	if note.Trashed {
		fmt.Fprintln(a.Out, "(in trash)")
	}
	if note.Payload.Kind == model.KindCanvas {
		fmt.Fprintf(a.Out, "canvas: %s\n", note.Payload.CanvasImagePath)
	}
	if note.Payload.Body != "" {
		fmt.Fprintln(a.Out)
		fmt.Fprintln(a.Out, strings.TrimRight(note.Payload.Body, "\n"))
	}
	return nil
}

// Watch attaches the owner and prints the main listing every time it changes, until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	if err := a.Sync.Attach(ctx, a.Config.Owner); err != nil {
		return err
	}
	defer a.Sync.Detach()

	listings, err := a.Sync.WatchActive(ctx, a.Config.Owner)
	if err != nil {
		return err
	}

	for notes := range listings {
		var conflicts int
		for _, note := range notes {
			if note.SyncStatus == model.Conflict {
				conflicts++
			}
		}

		fmt.Fprintf(a.Out, "[%s] %d note(s), %d conflict(s), %d push(es) scheduled\n",
			time.Now().Format(time.TimeOnly), len(notes), conflicts, a.Sync.Pending())
	}
	return nil
}

// SignOut forgets every local note of the owner.
func (a *App) SignOut(ctx context.Context) error {
	if err := a.Sync.SignOut(ctx, a.Config.Owner); err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "Local notes of %s removed\n", a.Config.Owner)
	return nil
}

// Device prints the id of the current installation.
func (a *App) Device() {
	fmt.Fprintln(a.Out, a.Sync.DeviceID())
}
