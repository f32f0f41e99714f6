package core

import (
	"context"
	"errors"

	"pkt.systems/computeengine/schema"
)

type addTask struct {
	A int `json:"a"`
	B int `json:"b"`
}

func (addTask) Kind() schema.TaskKind { return "test.add" }

func (t addTask) Execute(context.Context) (int, error) { return t.A + t.B, nil }

type failTask struct {
	Reason string `json:"reason"`
}

func (failTask) Kind() schema.TaskKind { return "test.fail" }

func (t failTask) Execute(context.Context) (int, error) { return 0, errors.New(t.Reason) }

type panicTask struct{}

func (panicTask) Kind() schema.TaskKind { return "test.panic" }

func (panicTask) Execute(context.Context) (int, error) { panic("boom") }

type sumTask struct {
	Values []int `json:"values"`
}

func (sumTask) Kind() schema.TaskKind { return "test.sum" }

// Execute consumes its input so shared state would be visible to the caller.
func (t sumTask) Execute(context.Context) (int, error) {
	total := 0
	for i, v := range t.Values {
		total += v
		t.Values[i] = 0
	}
	return total, nil
}

type chanTask struct{}

func (chanTask) Kind() schema.TaskKind { return "test.chan" }

func (chanTask) Execute(context.Context) (chan int, error) { return make(chan int), nil }

func testCatalog() *Catalog {
	c := NewCatalog()
	Register[int, addTask](c)
	Register[int, failTask](c)
	Register[int, panicTask](c)
	Register[int, sumTask](c)
	Register[chan int, chanTask](c)
	Register[int, fragileTask](c)
	Register[int, leakyTask](c)
	return c
}

// fragileTask panics while decoding its payload.
type fragileTask struct{}

func (fragileTask) Kind() schema.TaskKind { return "test.fragile" }

func (fragileTask) Execute(context.Context) (int, error) { return 0, nil }

func (*fragileTask) UnmarshalJSON([]byte) error { panic("short payload") }

// leakyTask carries a field json cannot encode.
type leakyTask struct {
	Results chan int `json:"results"`
}

func (leakyTask) Kind() schema.TaskKind { return "test.leaky" }

func (leakyTask) Execute(context.Context) (int, error) { return 0, nil }
