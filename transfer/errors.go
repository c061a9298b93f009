package transfer

import "errors"

// Kinds of transfer failure; match them with errors.Is.
var (
	ErrSourceSize = errors.New("failed to determine source size")
	ErrConnect    = errors.New("failed to connect to FTP server")
	ErrBinaryMode = errors.New("failed to set binary transfer mode")
	ErrControl    = errors.New("FTP control connection failed")
	ErrPut        = errors.New("failed to store file on FTP server")
)

// Error is a transfer failure of a given Kind, wrapping the underlying cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
