package tasks

import (
	"context"
	"testing"

	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/tasks/pi"
)

func TestCatalogRunsPi(t *testing.T) {
	engine := core.NewEngine(Catalog(), core.EngineOptions{})
	got, err := core.ExecuteTask[pi.Decimal](context.Background(), engine, pi.New(5))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != "3.14159" {
		t.Fatalf("unexpected result %s", got)
	}
}

func TestCatalogKinds(t *testing.T) {
	kinds := Catalog().Kinds()
	if len(kinds) != 1 || kinds[0] != pi.Kind {
		t.Fatalf("unexpected kinds %v", kinds)
	}
}
