package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/computeengine/schema"
	"pkt.systems/pslog"
)

type observed struct {
	kind    string
	outcome string
}

type recordingObserver struct {
	mu     sync.Mutex
	events []observed
}

func (r *recordingObserver) ObserveTask(kind, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, observed{kind: kind, outcome: outcome})
}

func (r *recordingObserver) last() observed {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return observed{}
	}
	return r.events[len(r.events)-1]
}

func TestExecuteTaskMatchesLocalExecution(t *testing.T) {
	engine := NewEngine(testCatalog(), EngineOptions{})
	task := addTask{A: 40, B: 2}
	want, err := task.Execute(context.Background())
	if err != nil {
		t.Fatalf("local execute: %v", err)
	}
	got, err := ExecuteTask[int](context.Background(), engine, task)
	if err != nil {
		t.Fatalf("execute task: %v", err)
	}
	if got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestExecuteTaskRunsOnCopy(t *testing.T) {
	engine := NewEngine(testCatalog(), EngineOptions{})
	task := sumTask{Values: []int{1, 2, 3}}
	got, err := ExecuteTask[int](context.Background(), engine, task)
	if err != nil {
		t.Fatalf("execute task: %v", err)
	}
	if got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
	if task.Values[0] != 1 || task.Values[1] != 2 || task.Values[2] != 3 {
		t.Fatalf("caller's task was mutated: %v", task.Values)
	}
}

func TestExecuteTaskFailureIsRemoteExecution(t *testing.T) {
	obs := &recordingObserver{}
	engine := NewEngine(testCatalog(), EngineOptions{Observer: obs})
	_, err := ExecuteTask[int](context.Background(), engine, failTask{Reason: "division by zero"})
	if !IsRemoteExecution(err) {
		t.Fatalf("expected remote execution error, got %v", err)
	}
	var ce *ComputeError
	if !errors.As(err, &ce) || ce.TaskKind != "test.fail" {
		t.Fatalf("expected task kind on error, got %#v", err)
	}
	if !strings.Contains(err.Error(), "division by zero") {
		t.Fatalf("expected task message in error, got %q", err.Error())
	}
	if ev := obs.last(); ev.outcome != OutcomeFailed || ev.kind != "test.fail" {
		t.Fatalf("unexpected observation: %+v", ev)
	}

	// The engine keeps serving after a failure.
	got, err := ExecuteTask[int](context.Background(), engine, addTask{A: 1, B: 1})
	if err != nil || got != 2 {
		t.Fatalf("expected follow-up call to succeed, got %d, %v", got, err)
	}
}

func TestExecuteTaskRecoversPanic(t *testing.T) {
	obs := &recordingObserver{}
	engine := NewEngine(testCatalog(), EngineOptions{Observer: obs})
	_, err := ExecuteTask[int](context.Background(), engine, panicTask{})
	if !IsRemoteExecution(err) {
		t.Fatalf("expected remote execution error, got %v", err)
	}
	if !strings.Contains(err.Error(), "task panicked: boom") {
		t.Fatalf("unexpected error text: %q", err.Error())
	}
	if ev := obs.last(); ev.outcome != OutcomePanicked {
		t.Fatalf("expected panicked outcome, got %+v", ev)
	}
}

func TestExecuteTaskRejectsUnknownKind(t *testing.T) {
	obs := &recordingObserver{}
	engine := NewEngine(NewCatalog(), EngineOptions{Observer: obs})
	_, err := ExecuteTask[int](context.Background(), engine, addTask{A: 1, B: 2})
	if !IsSerialization(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if !errors.Is(err, schema.ErrUnknownTaskKind) {
		t.Fatalf("expected ErrUnknownTaskKind, got %v", err)
	}
	if ev := obs.last(); ev.outcome != OutcomeRejected {
		t.Fatalf("expected rejected outcome, got %+v", ev)
	}
}

func TestExecuteTaskRejectsMalformedPayload(t *testing.T) {
	engine := NewEngine(testCatalog(), EngineOptions{})
	_, err := engine.ExecuteTask(context.Background(), Envelope{Kind: "test.add", Payload: []byte(`{"a":`)})
	if !IsSerialization(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	_, err = engine.ExecuteTask(context.Background(), Envelope{Kind: "test.add", Payload: []byte(`{"a":1,"c":2}`)})
	if !IsSerialization(err) {
		t.Fatalf("expected serialization error for unknown field, got %v", err)
	}
}

func TestExecuteTaskUnencodableResult(t *testing.T) {
	engine := NewEngine(testCatalog(), EngineOptions{})
	_, err := ExecuteTask[chan int](context.Background(), engine, chanTask{})
	if !IsSerialization(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
}

func TestExecuteTaskResultKindMismatch(t *testing.T) {
	svc := serviceFunc(func(context.Context, Envelope) (Envelope, error) {
		return Envelope{Kind: "other", Payload: []byte("1")}, nil
	})
	_, err := ExecuteTask[int](context.Background(), svc, addTask{})
	if !IsSerialization(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
}

func TestExecuteTaskNilService(t *testing.T) {
	if _, err := ExecuteTask[int](context.Background(), nil, addTask{}); !IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestExecuteTaskConcurrentCallsAreIndependent(t *testing.T) {
	engine := NewEngine(testCatalog(), EngineOptions{})
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := ExecuteTask[int](context.Background(), engine, sumTask{Values: []int{i, i, i}})
			if err != nil {
				errs <- err
				return
			}
			if got != 3*i {
				errs <- errors.New("cross-talk between concurrent tasks")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestEngineLogsTaskReceipt(t *testing.T) {
	var buf bytes.Buffer
	logger := pslog.NewWithOptions(&buf, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	ctx = ContextWithCallID(ctx, "call-1")
	engine := NewEngine(testCatalog(), EngineOptions{})
	if _, err := ExecuteTask[int](ctx, engine, addTask{A: 1, B: 2}); err != nil {
		t.Fatalf("execute task: %v", err)
	}
	line := bytes.TrimSpace(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry %q: %v", line, err)
	}
	if entry["task_kind"] != "test.add" || entry["call_id"] != "call-1" {
		t.Fatalf("expected task_kind and call_id fields, got %+v", entry)
	}
}

type serviceFunc func(context.Context, Envelope) (Envelope, error)

func (f serviceFunc) ExecuteTask(ctx context.Context, env Envelope) (Envelope, error) {
	return f(ctx, env)
}

func TestExecuteTaskRecoversDecodePanic(t *testing.T) {
	obs := &recordingObserver{}
	engine := NewEngine(testCatalog(), EngineOptions{Observer: obs})
	_, err := engine.ExecuteTask(context.Background(), Envelope{Kind: "test.fragile", Payload: []byte(`{}`)})
	if !IsSerialization(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if !strings.Contains(err.Error(), "short payload") {
		t.Fatalf("unexpected error text: %q", err.Error())
	}
	if ev := obs.last(); ev.outcome != OutcomeRejected {
		t.Fatalf("expected rejected outcome, got %+v", ev)
	}
	if _, err := ExecuteTask[int](context.Background(), engine, addTask{A: 1, B: 1}); err != nil {
		t.Fatalf("engine unusable after decode panic: %v", err)
	}
}

func TestExecuteTaskUnencodableTaskIsNotSent(t *testing.T) {
	sent := 0
	svc := serviceFunc(func(context.Context, Envelope) (Envelope, error) {
		sent++
		return Envelope{}, nil
	})
	_, err := ExecuteTask[int](context.Background(), svc, leakyTask{Results: make(chan int)})
	if !IsSerialization(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected nothing sent, got %d calls", sent)
	}
}

func TestExecuteTaskNilTask(t *testing.T) {
	engine := NewEngine(testCatalog(), EngineOptions{})
	if _, err := ExecuteTask[int](context.Background(), engine, nil); !IsSerialization(err) {
		t.Fatalf("expected serialization error, got %v", err)
	}
}
