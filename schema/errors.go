package schema

import "errors"

var (
	// ErrInvalidName indicates an empty or malformed service name.
	ErrInvalidName = errors.New("invalid service name")
	// ErrInvalidEndpoint indicates an unsupported network or empty address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	// ErrInvalidTaskKind indicates an empty or malformed task kind.
	ErrInvalidTaskKind = errors.New("invalid task kind")
	// ErrUnknownTaskKind indicates a task kind with no registered decoder.
	ErrUnknownTaskKind = errors.New("unknown task kind")
	// ErrNotBound indicates no binding exists under the requested name.
	ErrNotBound = errors.New("name not bound")
)
