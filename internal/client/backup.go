package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mdouchement/notesync/pkg/libnotes"
	"github.com/pkg/errors"
)

// Backup stores all the local notes of the owner, trash included, in the given directory.
func (a *App) Backup(dir string) (string, error) {
	active, err := a.Sync.ActiveNotes(a.Config.Owner)
	if err != nil {
		return "", err
	}
	trashed, err := a.Sync.TrashedNotes(a.Config.Owner)
	if err != nil {
		return "", err
	}

	notes := make([]libnotes.Note, 0, len(active)+len(trashed))
	for _, note := range append(active, trashed...) {
		notes = append(notes, note.Wire())
	}

	filename := filepath.Join(dir, fmt.Sprintf("notes_%s.json", time.Now().Format("20060102150405")))
	if err = backup(notes, filename); err != nil {
		return "", errors.Wrap(err, "notes")
	}

	fmt.Fprintf(a.Out, "%d note(s) saved in %s\n", len(notes), filename)
	return filename, nil
}

func backup(v any, filename string) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not serialize")
	}

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", filename)
	}
	defer f.Close()

	if _, err = f.Write(payload); err != nil {
		return errors.Wrapf(err, "could not write %s", filename)
	}
	return errors.Wrapf(f.Sync(), "could not write %s", filename)
}
