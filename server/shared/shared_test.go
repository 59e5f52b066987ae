package shared

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"testing"
	"time"

	"github.com/qexed/qexed/server/actor"
)

type settings struct {
	Motd  string
	Flags map[string]bool
}

func (s settings) Clone() settings {
	s.Flags = maps.Clone(s.Flags)
	return s
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCommitThenCheck(t *testing.T) {
	ctx := testCtx(t)
	h := New(settings{Motd: "a", Flags: map[string]bool{"pvp": true}}, discard())
	t.Cleanup(h.Close)

	h2, err := h.Clone(ctx)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	h.Local.Motd = "b"
	h.Local.Flags["pvp"] = false
	if h2.Local.Motd != "a" || !h2.Local.Flags["pvp"] {
		t.Fatalf("local edits leaked into another handle: %+v", h2.Local)
	}
	if err := h.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := h2.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}
	if h2.Local.Motd != "b" || h2.Local.Flags["pvp"] {
		t.Fatalf("expected committed value, got %+v", h2.Local)
	}
	if h2.Version() != 1 || h.Version() != 1 {
		t.Fatalf("expected version 1, got %d and %d", h.Version(), h2.Version())
	}
}

func TestLastWriterWins(t *testing.T) {
	ctx := testCtx(t)
	h := New(3, discard())
	t.Cleanup(h.Close)
	h2, _ := h.Clone(ctx)

	h.Local = 10
	h2.Local = 20
	_ = h.Commit(ctx)
	_ = h2.Commit(ctx)
	if err := h.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}
	if h.Local != 20 || h.Version() != 2 {
		t.Fatalf("expected 20 at version 2, got %d at %d", h.Local, h.Version())
	}
}

func TestClosedAuthority(t *testing.T) {
	h := New("x", discard())
	h.Close()
	<-h.authority.Done()
	if err := h.Check(testCtx(t)); !errors.Is(err, actor.ErrPeerGone) {
		t.Fatalf("expected ErrPeerGone, got %v", err)
	}
}
