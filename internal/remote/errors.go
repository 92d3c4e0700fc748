package remote

import (
	"context"
	"net"
	"net/url"

	"github.com/mdouchement/notesync/pkg/libnotes"
	"github.com/pkg/errors"
)

// ErrClosed is returned when using a closed subscription or store.
var ErrClosed = errors.New("remote store closed")

type (
	// A TransientError is a failure that may succeed when retried later
	// (network unavailable, deadline exceeded, server overloaded).
	TransientError struct {
		Op  string
		Err error
	}

	// A PermanentError is a failure that will not succeed until the request changes
	// (permission denied, invalid argument).
	PermanentError struct {
		Op  string
		Err error
	}
)

// Transient wraps err as a TransientError.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// Permanent wraps err as a PermanentError.
func Permanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *PermanentError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsTransient returns true if err should be retried.
func IsTransient(err error) bool {
	var terr *TransientError
	return errors.As(err, &terr)
}

// IsPermanent returns true if err must not be retried.
func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

// Classify wraps an error returned by the notecloud client into the error taxonomy.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) || IsPermanent(err) {
		return err
	}

	var apierr *libnotes.Error
	if errors.As(err, &apierr) {
		if apierr.Temporary() {
			return Transient(op, err)
		}
		return Permanent(op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient(op, err)
	}

	var nerr net.Error
	var uerr *url.Error
	if errors.As(err, &nerr) || errors.As(err, &uerr) {
		return Transient(op, err)
	}

	return Permanent(op, err)
}
