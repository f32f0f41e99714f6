package core

import (
	"fmt"
	"sync"
	"time"
)

// CallState is the client-side lifecycle of one task invocation.
type CallState string

const (
	CallIdle      CallState = "idle"
	CallResolving CallState = "resolving"
	CallInvoking  CallState = "invoking"
	CallSucceeded CallState = "succeeded"
	CallFailed    CallState = "failed"
)

var callTransitions = map[CallState][]CallState{
	CallIdle:      {CallResolving, CallInvoking},
	CallResolving: {CallInvoking, CallFailed},
	CallInvoking:  {CallSucceeded, CallFailed},
}

// Call tracks a single invocation through Idle -> Resolving -> Invoking -> Succeeded|Failed.
// Terminal states are final; there is no retry edge.
type Call struct {
	ID string

	mu      sync.Mutex
	state   CallState
	err     error
	started time.Time
	ended   time.Time
}

// NewCall returns an idle call. An empty id is replaced with a fresh one.
func NewCall(id string) *Call {
	if id == "" {
		id = NewCallID()
	}
	return &Call{ID: id, state: CallIdle}
}

// State reports the current state.
func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure recorded by Fail.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Elapsed returns the time between leaving Idle and reaching a terminal state,
// or until now while the call is still in flight.
func (c *Call) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		return 0
	}
	if c.ended.IsZero() {
		return time.Since(c.started)
	}
	return c.ended.Sub(c.started)
}

// Resolving moves an idle call into service resolution.
func (c *Call) Resolving() error { return c.transition(CallResolving, nil) }

// Invoking marks the request as sent. A call may skip Resolving when the
// caller already holds a handle.
func (c *Call) Invoking() error { return c.transition(CallInvoking, nil) }

// Succeed marks the call as completed with a result.
func (c *Call) Succeed() error { return c.transition(CallSucceeded, nil) }

// Fail marks the call as failed with err.
func (c *Call) Fail(err error) error { return c.transition(CallFailed, err) }

func (c *Call) transition(next CallState, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, allowed := range callTransitions[c.state] {
		if allowed != next {
			continue
		}
		now := time.Now()
		if c.state == CallIdle {
			c.started = now
		}
		if next == CallSucceeded || next == CallFailed {
			c.ended = now
		}
		c.state = next
		c.err = err
		return nil
	}
	return fmt.Errorf("call %s: illegal transition %s -> %s", c.ID, c.state, next)
}
