package domain

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when a send is attempted while the
// session is not authenticated. No transport call is made.
var ErrNotAuthenticated = errors.New("session is not authenticated")

// StorageError reports a credential persistence failure. It is fatal to
// Initialize and never retried internally.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("credential storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MissingParameterError reports a required request field that was absent.
type MissingParameterError struct {
	Field string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// LogoutError wraps a failed protocol-level logout. It is logged and never
// prevents local teardown.
type LogoutError struct {
	Err error
}

func (e *LogoutError) Error() string { return fmt.Sprintf("logout: %v", e.Err) }

func (e *LogoutError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}

// IsMissingParameter reports whether err is or wraps a *MissingParameterError.
func IsMissingParameter(err error) bool {
	var paramErr *MissingParameterError
	return errors.As(err, &paramErr)
}

// SendError reports that the transport rejected a submission. Sends are
// never retried.
type SendError struct {
	Destination string
	Err         error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Destination, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsSendError reports whether err is or wraps a *SendError.
func IsSendError(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr)
}
