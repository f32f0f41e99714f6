package core

import (
	"errors"
	"fmt"

	"pkt.systems/computeengine/schema"
)

// ErrorKind classifies compute failures so callers can react without parsing messages.
type ErrorKind string

const (
	// ErrorUnknown is an uncategorized failure.
	ErrorUnknown ErrorKind = "unknown"
	// ErrorConnectivity indicates the registry or the compute service is unreachable.
	ErrorConnectivity ErrorKind = "connectivity"
	// ErrorLookup indicates no service is bound under the requested name.
	ErrorLookup ErrorKind = "lookup"
	// ErrorRemoteExecution indicates the task failed while executing on the server.
	ErrorRemoteExecution ErrorKind = "remote_execution"
	// ErrorSerialization indicates a task or result could not be encoded or decoded.
	ErrorSerialization ErrorKind = "serialization"
	// ErrorTimeout indicates a configured deadline expired before the call completed.
	ErrorTimeout ErrorKind = "timeout"
	// ErrorCanceled indicates the caller canceled the call.
	ErrorCanceled ErrorKind = "canceled"
)

// ComputeError wraps compute failures with a stable classification.
type ComputeError struct {
	Kind     ErrorKind
	Op       string
	TaskKind schema.TaskKind
	Message  string
	Err      error
}

// NewComputeError constructs a classified compute error.
func NewComputeError(kind ErrorKind, op string, err error) *ComputeError {
	return &ComputeError{Kind: kind, Op: op, Err: err}
}

func (e *ComputeError) Error() string {
	if e == nil {
		return "compute error"
	}
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.TaskKind != "" {
		prefix += " (task " + string(e.TaskKind) + ")"
	}
	switch {
	case e.Message != "":
		return prefix + ": " + e.Message
	case e.Err != nil:
		return prefix + ": " + e.Err.Error()
	default:
		return fmt.Sprintf("%s failed", prefix)
	}
}

func (e *ComputeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf returns the classification of err, or ErrorUnknown when err is not a ComputeError.
func KindOf(err error) ErrorKind {
	var ce *ComputeError
	if errors.As(err, &ce) && ce != nil {
		return ce.Kind
	}
	return ErrorUnknown
}

// IsConnectivity reports whether err is a connectivity failure.
func IsConnectivity(err error) bool { return KindOf(err) == ErrorConnectivity }

// IsLookup reports whether err is a lookup failure.
func IsLookup(err error) bool { return KindOf(err) == ErrorLookup }

// IsRemoteExecution reports whether err is a task failure raised on the server.
func IsRemoteExecution(err error) bool { return KindOf(err) == ErrorRemoteExecution }

// IsSerialization reports whether err is an encode/decode failure.
func IsSerialization(err error) bool { return KindOf(err) == ErrorSerialization }

func serializationError(op string, kind schema.TaskKind, err error) *ComputeError {
	return &ComputeError{Kind: ErrorSerialization, Op: op, TaskKind: kind, Err: err}
}
