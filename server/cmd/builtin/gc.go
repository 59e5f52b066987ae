package builtin

import (
	"context"
	"runtime"

	"github.com/qexed/qexed/server/cmd"
)

type gcCommand struct{}

func newGCCommand() cmd.Command {
	return cmd.Command{
		Name:        "gc",
		Description: "Triggers a Go garbage collection cycle.",
		Permission:  "qexed.gc",
		Runner:      gcCommand{},
	}
}

func (gcCommand) Run(_ context.Context, _ cmd.CommandData, o *cmd.Output) {
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	runtime.GC()

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	freedBytes := uint64(0)
	if before.HeapAlloc > after.HeapAlloc {
		freedBytes = before.HeapAlloc - after.HeapAlloc
	}
	o.Print("---- Garbage collection result ----")
	o.Printf("Heap memory freed: %.2f MiB (current heap %.2f MiB)", bytesToMiB(freedBytes), bytesToMiB(after.HeapAlloc))
	o.Printf("Goroutines: %d", runtime.NumGoroutine())
}
