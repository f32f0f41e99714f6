// Package tasks assembles the task variants the compute engine accepts.
package tasks

import (
	"pkt.systems/computeengine/core"
	"pkt.systems/computeengine/tasks/pi"
)

// Catalog returns a catalog with every built-in task registered.
func Catalog() *core.Catalog {
	c := core.NewCatalog()
	core.Register[pi.Decimal, pi.Task](c)
	return c
}
