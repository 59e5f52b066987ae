package ping

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/internal/conntest"
	"github.com/qexed/qexed/server/protocol/packet"
)

type drop struct {
	id     uuid.UUID
	reason Reason
}

func newTestManager(t *testing.T, conf Config) (*Manager, chan drop) {
	t.Helper()
	drops := make(chan drop, 4)
	conf.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	conf.OnDrop = func(id uuid.UUID, reason Reason) { drops <- drop{id, reason} }
	m := NewManager(conf)
	t.Cleanup(m.Close)
	return m, drops
}

func TestTimeoutAfterRetries(t *testing.T) {
	m, drops := newTestManager(t, Config{Interval: 10 * time.Millisecond, MaxRetries: 2})
	id := uuid.New()
	rec := conntest.NewRecorder()
	if err := m.Connect(context.Background(), id, rec, packet.StatePlay); err != nil {
		t.Fatalf("connect: %v", err)
	}
	select {
	case d := <-drops:
		if d.id != id || d.reason != Timeout {
			t.Fatalf("unexpected drop %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("player was never dropped")
	}
	if n := len(conntest.Of[*packet.KeepAlive](rec)); n != 2 {
		t.Fatalf("expected 2 keep alives before the drop, got %d", n)
	}
	if err := m.Pong(id, 1); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected dropped player to be forgotten, got %v", err)
	}
}

func TestPongKeepsPlayer(t *testing.T) {
	m, drops := newTestManager(t, Config{Interval: 10 * time.Millisecond, MaxRetries: 5})
	id := uuid.New()
	rec := conntest.NewRecorder()
	if err := m.Connect(context.Background(), id, rec, packet.StateConfiguration); err != nil {
		t.Fatalf("connect: %v", err)
	}
	first, ok := conntest.WaitFor[*packet.ConfigPing](rec, time.Second)
	if !ok {
		t.Fatalf("no configuration ping sent")
	}
	if err := m.SetPhase(id, packet.StatePlay); err != nil {
		t.Fatalf("set phase: %v", err)
	}
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		for _, ka := range conntest.Of[*packet.KeepAlive](rec) {
			_ = m.Pong(id, ka.KeepAliveID)
		}
		time.Sleep(2 * time.Millisecond)
	}
	select {
	case d := <-drops:
		t.Fatalf("answered player was dropped: %+v", d)
	default:
	}
	if first.PingID != 1 {
		t.Fatalf("expected first nonce 1, got %d", first.PingID)
	}
	if _, err := m.Latency(context.Background(), id); err != nil {
		t.Fatalf("latency: %v", err)
	}
}

func TestLatencyLimit(t *testing.T) {
	m, drops := newTestManager(t, Config{Interval: time.Hour, MaxRetries: 3, LatencyLimit: time.Millisecond})
	id := uuid.New()
	rec := conntest.NewRecorder()
	if err := m.Connect(context.Background(), id, rec, packet.StatePlay); err != nil {
		t.Fatalf("connect: %v", err)
	}
	ka, ok := conntest.WaitFor[*packet.KeepAlive](rec, time.Second)
	if !ok {
		t.Fatalf("no keep alive sent")
	}
	time.Sleep(5 * time.Millisecond)
	if err := m.Pong(id, ka.KeepAliveID); err != nil {
		t.Fatalf("pong: %v", err)
	}
	select {
	case d := <-drops:
		if d.reason != LatencyExceeded {
			t.Fatalf("expected latency drop, got %v", d.reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("slow player was not dropped")
	}
}

func TestDuplicateConnect(t *testing.T) {
	m, _ := newTestManager(t, Config{Interval: time.Hour})
	id := uuid.New()
	rec := conntest.NewRecorder()
	if err := m.Connect(context.Background(), id, rec, packet.StatePlay); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := m.Connect(context.Background(), id, rec, packet.StatePlay); !errors.Is(err, actor.ErrChildExists) {
		t.Fatalf("expected ErrChildExists, got %v", err)
	}
	m.Disconnect(id)
	if err := m.SetPhase(id, packet.StatePlay); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer after disconnect, got %v", err)
	}
}
