package console

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qexed/qexed/server/cmd"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleRunsCommandsAsConsole(t *testing.T) {
	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(out, nil))
	m := cmd.NewManager(cmd.Config{Log: log})
	t.Cleanup(m.Close)

	ran := make(chan cmd.CommandData, 1)
	_, err := m.Register(context.Background(), cmd.Command{
		Name:       "stop",
		Permission: "qexed.stop",
		Runner: cmd.RunnerFunc(func(_ context.Context, data cmd.CommandData, o *cmd.Output) {
			o.Print("§cStopping§r server...")
			ran <- data
		}),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	exited := false
	c := New(m, func() { exited = true }, log).WithReader(strings.NewReader("/stop\n\nunknown\nexit\nstop\n"))
	c.Run(context.Background())

	select {
	case data := <-ran:
		if !data.IsCmd || data.Source.Name() != "Server" || !data.Permissions.Has("qexed.stop") {
			t.Fatalf("console commands must carry IsCmd, got %+v", data)
		}
	case <-time.After(time.Second):
		t.Fatalf("stop did not run")
	}
	if !exited {
		t.Fatalf("exit must call the exit function")
	}
	deadline := time.Now().Add(time.Second)
	for !strings.Contains(out.String(), "Stopping server...") {
		if time.Now().After(deadline) {
			t.Fatalf("command output was not logged without formatting codes: %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !strings.Contains(out.String(), "Unknown command: unknown.") {
		t.Fatalf("unknown command was not reported: %q", out.String())
	}
	select {
	case <-ran:
		t.Fatalf("lines after exit must not run")
	case <-time.After(20 * time.Millisecond):
	}
}
