package syncer

import (
	"github.com/mdouchement/notesync/internal/model"
)

// A Verdict is the decision taken for an incoming remote change.
type Verdict int

// Verdicts.
const (
	// Accept overwrites the local row with the remote one.
	Accept Verdict = iota
	// Ignore leaves the local row untouched.
	Ignore
	// Flag marks the local row as conflicting and keeps its content.
	Flag
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Ignore:
		return "ignore"
	case Flag:
		return "flag"
	}
	return "unknown"
}

// Resolve decides what to do with a remote version of a note.
// local is nil when the note is unknown locally.
//
// Rules apply in order:
//   - unknown locally: accept
//   - last edited by this device: ignore, it is the echo of our own push
//   - local row synced: accept
//   - local row not synced and remote strictly newer: flag
//   - otherwise: ignore, the local edit will win when pushed
func Resolve(local *model.Note, remote model.Note, thisDevice string) Verdict {
	switch {
	case local == nil:
		return Accept
	case remote.LastEditedByDevice == thisDevice:
		return Ignore
	case local.SyncStatus == model.Synced:
		return Accept
	case remote.UpdatedAt.After(local.UpdatedAt):
		return Flag
	default:
		return Ignore
	}
}
