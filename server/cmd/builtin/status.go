package builtin

import (
	"context"
	"runtime"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/qexed/qexed/server/cmd"
)

type statusCommand struct {
	srv serverAdapter
	cpu *cpuSampler
}

func newStatusCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "status",
		Description: "Displays server performance statistics.",
		Permission:  "qexed.status",
		Runner:      statusCommand{srv: srv, cpu: &cpuSampler{}},
	}
}

func (s statusCommand) Run(ctx context.Context, _ cmd.CommandData, o *cmd.Output) {
	o.Printf("Uptime: %s", time.Since(s.srv.StartTime()).Round(time.Second))
	if counts, err := s.srv.PlayerList().Counts(ctx); err == nil {
		o.Printf("Players: %d/%d", counts.Online, counts.Max)
	}
	for _, w := range s.srv.Worlds().Worlds() {
		stats, err := w.Stats(ctx)
		if err != nil {
			o.Errorf("World: %s | %v", w.Name(), err)
			continue
		}
		o.Printf("World: %s | Regions: %d | Chunks: %d", w.Name(), stats.Regions, stats.Chunks)
	}

	m := s.srv.Metrics()
	for _, name := range m.Names() {
		st := m.Snapshot(name)
		o.Printf("Actor %s: %d processed, %d dropped, %d panics", name, st.Processed, st.Dropped, st.Panics)
	}

	if load, ok := s.cpu.sample(time.Now()); ok {
		o.Printf("CPU: %.2f%% of %d cores", load, runtime.NumCPU())
	} else {
		o.Print("CPU: sampling, try again shortly.")
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	o.Printf("Memory: %.2f MiB heap / %.2f MiB reserved | Goroutines: %d | GC cycles: %d",
		bytesToMiB(mem.HeapAlloc), bytesToMiB(mem.HeapSys), runtime.NumGoroutine(), mem.NumGC)
}

// cpuSampler derives the process CPU load from the runtime's cumulative CPU
// time between two calls.
type cpuSampler struct {
	mu   sync.Mutex
	at   time.Time
	used float64
}

func (c *cpuSampler) sample(now time.Time) (float64, bool) {
	s := []metrics.Sample{{Name: "/cpu/classes/total:cpu-seconds"}}
	metrics.Read(s)
	if s[0].Value.Kind() != metrics.KindFloat64 {
		return 0, false
	}
	used := s[0].Value.Float64()

	c.mu.Lock()
	defer c.mu.Unlock()
	prevAt, prevUsed := c.at, c.used
	c.at, c.used = now, used
	elapsed := now.Sub(prevAt).Seconds()
	if prevAt.IsZero() || elapsed <= 0 || used < prevUsed {
		return 0, false
	}
	return min(100, (used-prevUsed)/elapsed/float64(runtime.NumCPU())*100), true
}
