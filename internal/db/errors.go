package db

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped in a RemoteError) when the addressed row
// does not exist for the user.
var ErrNotFound = errors.New("record not found")

// RemoteError is every failure the remote adapter reports. Op names the
// adapter method.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a not-found from the remote.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Op: op, Err: err}
}
