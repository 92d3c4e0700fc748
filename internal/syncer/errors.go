package syncer

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnknownNote is returned when mutating a note that does not exist locally.
	ErrUnknownNote = errors.New("unknown note")
	// ErrPurged is returned when mutating a purged note.
	ErrPurged = errors.New("note is purged")
)
