package repositories

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrEmptyRecord       = errors.New("record has no fields")
)

// RemoteWriteError wraps any failure to insert into the remote store:
// network, timeout, auth or server-side rejection alike.
type RemoteWriteError struct {
	Collection string
	Err        error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("remote write to %s failed: %v", e.Collection, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }
