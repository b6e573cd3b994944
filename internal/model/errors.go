package model

import "github.com/pkg/errors"

var (
	// ErrConfiguration means a required trait or rule is missing. Fatal to the call.
	ErrConfiguration = errors.New("configuration error")
	// ErrStoreUnavailable means the fact store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrValidation means a single write was rejected.
	ErrValidation = errors.New("validation error")
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")
)

func Configurationf(format string, args ...any) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

func Validationf(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// StoreUnavailable marks err as a recoverable store failure, keeping its message.
func StoreUnavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &storeError{msg: msg, cause: err}
}

type storeError struct {
	msg   string
	cause error
}

func (e *storeError) Error() string { return e.msg + ": " + e.cause.Error() }

func (e *storeError) Unwrap() []error { return []error{ErrStoreUnavailable, e.cause} }
