package core

import (
	"context"
	"encoding/json"
	"fmt"

	"pkt.systems/computeengine/schema"
)

// Task is a self-contained unit of work that can be shipped to a compute service
// and executed there. Implementations are plain value types: everything Execute
// needs must be carried in exported, JSON-encodable fields, because the server
// runs a decoded copy and never the caller's instance.
type Task[R any] interface {
	// Kind tags the concrete variant so the receiving side can decode it.
	Kind() schema.TaskKind
	// Execute runs the task in the current process and returns its result.
	Execute(ctx context.Context) (R, error)
}

// Envelope is a tagged payload: a task on the way in, a result on the way out.
type Envelope struct {
	Kind    schema.TaskKind
	Payload []byte
}

// EncodeTask boxes task into an envelope tagged with its kind.
func EncodeTask[R any](task Task[R]) (Envelope, error) {
	if task == nil {
		return Envelope{}, serializationError("encode task", "", fmt.Errorf("task is nil"))
	}
	kind := task.Kind()
	if err := schema.ValidateTaskKind(kind); err != nil {
		return Envelope{}, serializationError("encode task", kind, err)
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return Envelope{}, serializationError("encode task", kind, err)
	}
	return Envelope{Kind: kind, Payload: payload}, nil
}

// DecodeResult unboxes a result envelope produced for a task of the given kind.
func DecodeResult[R any](kind schema.TaskKind, env Envelope) (R, error) {
	var out R
	if env.Kind != kind {
		return out, serializationError("decode result", kind, fmt.Errorf("result tagged %q, expected %q", env.Kind, kind))
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, serializationError("decode result", kind, err)
	}
	return out, nil
}

func encodeResult[R any](kind schema.TaskKind, result R) (Envelope, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return Envelope{}, serializationError("encode result", kind, err)
	}
	return Envelope{Kind: kind, Payload: payload}, nil
}
