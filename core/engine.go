package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pkt.systems/pslog"
)

// ComputeService runs tagged tasks. The server-side Engine implements it, and so
// do remote handles, which is what lets ExecuteTask treat both the same way.
type ComputeService interface {
	ExecuteTask(ctx context.Context, task Envelope) (Envelope, error)
}

// Task outcomes reported to a TaskObserver.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomePanicked  = "panicked"
	OutcomeRejected  = "rejected"
)

// TaskObserver receives one notification per executed task.
type TaskObserver interface {
	ObserveTask(kind string, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveTask(string, string, time.Duration) {}

// EngineOptions tunes an Engine.
type EngineOptions struct {
	Observer TaskObserver
}

// Engine is the stateless compute service. It decodes each task against its
// catalog and runs it synchronously on the calling goroutine, so concurrent
// calls never share task state.
type Engine struct {
	catalog  *Catalog
	observer TaskObserver
}

var _ ComputeService = (*Engine)(nil)

// NewEngine constructs an Engine that accepts the task kinds in catalog.
func NewEngine(catalog *Catalog, opts EngineOptions) *Engine {
	if catalog == nil {
		catalog = NewCatalog()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Engine{catalog: catalog, observer: observer}
}

// Catalog returns the task variants this engine accepts.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// ExecuteTask decodes env, executes it and returns the tagged result.
// Task failures and panics come back as ErrorRemoteExecution; nothing a task
// does can take the process down.
func (e *Engine) ExecuteTask(ctx context.Context, env Envelope) (result Envelope, err error) {
	log := pslog.Ctx(ctx).With("task_kind", string(env.Kind))
	if id := CallIDFromContext(ctx); id != "" {
		log = log.With("call_id", id)
	}
	inv, err := e.catalog.decode(env)
	if err != nil {
		log.Warn("compute task rejected", "err", err, "payload_bytes", len(env.Payload))
		e.observer.ObserveTask(string(env.Kind), OutcomeRejected, 0)
		return Envelope{}, err
	}
	log.Info("got compute task", "task", inv.describe(), "payload_bytes", len(env.Payload))

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			elapsed := time.Since(started)
			log.Error("compute task panicked", "panic", fmt.Sprint(r), "elapsed", elapsed)
			e.observer.ObserveTask(string(env.Kind), OutcomePanicked, elapsed)
			result = Envelope{}
			err = &ComputeError{
				Kind:     ErrorRemoteExecution,
				Op:       "execute task",
				TaskKind: env.Kind,
				Message:  fmt.Sprintf("task panicked: %v", r),
			}
		}
	}()

	result, err = inv.run(pslog.ContextWithLogger(ctx, log))
	elapsed := time.Since(started)
	if err != nil {
		var ce *ComputeError
		if errors.As(err, &ce) && ce.Kind == ErrorSerialization {
			log.Error("compute task result not encodable", "err", err, "elapsed", elapsed)
			e.observer.ObserveTask(string(env.Kind), OutcomeFailed, elapsed)
			return Envelope{}, err
		}
		log.Warn("compute task failed", "err", err, "elapsed", elapsed)
		e.observer.ObserveTask(string(env.Kind), OutcomeFailed, elapsed)
		return Envelope{}, &ComputeError{
			Kind:     ErrorRemoteExecution,
			Op:       "execute task",
			TaskKind: env.Kind,
			Message:  err.Error(),
			Err:      err,
		}
	}
	log.Debug("compute task done", "elapsed", elapsed, "result_bytes", len(result.Payload))
	e.observer.ObserveTask(string(env.Kind), OutcomeSucceeded, elapsed)
	return result, nil
}

// ExecuteTask runs task on svc and decodes its result. svc may be a local Engine
// or a remote handle; the task is always encoded first, so the executing side
// works on its own copy either way.
func ExecuteTask[R any](ctx context.Context, svc ComputeService, task Task[R]) (R, error) {
	var zero R
	if svc == nil {
		return zero, NewComputeError(ErrorConnectivity, "execute task", errors.New("compute service is nil"))
	}
	env, err := EncodeTask(task)
	if err != nil {
		return zero, err
	}
	out, err := svc.ExecuteTask(ctx, env)
	if err != nil {
		return zero, err
	}
	return DecodeResult[R](env.Kind, out)
}
