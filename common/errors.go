package common

import "errors"

// Error kinds shared by every facade. Concrete errors wrap one of these so
// callers can branch with errors.Is.
var (
	// ErrValidation marks bad arguments caught before any command is built.
	ErrValidation = errors.New("validation error")
	// ErrCommand marks a vendor tool exiting with a code the caller rejects.
	ErrCommand = errors.New("command error")
	// ErrParse marks expected output that could not be found.
	ErrParse = errors.New("parse error")
	// ErrTimeout marks a retry loop that ran out of time.
	ErrTimeout = errors.New("timeout")
)
