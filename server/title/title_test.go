package title

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/internal/conntest"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/text"
)

func TestShowAndBroadcast(t *testing.T) {
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(m.Close)

	alice, aliceRec := uuid.New(), conntest.NewRecorder()
	bob, bobRec := uuid.New(), conntest.NewRecorder()
	for id, rec := range map[uuid.UUID]*conntest.Recorder{alice: aliceRec, bob: bobRec} {
		if err := m.Connect(context.Background(), id, rec); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}

	if err := m.Show(alice, KindSubtitle, text.Plain("sub")); err != nil {
		t.Fatalf("show: %v", err)
	}
	if err := m.Broadcast(KindActionBar, text.Plain("bar")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	sub, ok := conntest.WaitFor[*packet.SetSubtitleText](aliceRec, time.Second)
	if !ok || sub.Text.Text != "sub" {
		t.Fatalf("alice did not get the subtitle")
	}
	for _, rec := range []*conntest.Recorder{aliceRec, bobRec} {
		bar, ok := conntest.WaitFor[*packet.SetActionBarText](rec, time.Second)
		if !ok || bar.Text.Text != "bar" {
			t.Fatalf("action bar was not broadcast")
		}
	}
	if n := len(conntest.Of[*packet.SetSubtitleText](bobRec)); n != 0 {
		t.Fatalf("bob must not get alice's subtitle")
	}

	if err := m.SetTimes(bob, Times{FadeIn: 1, Stay: 2, FadeOut: 3}); err != nil {
		t.Fatalf("times: %v", err)
	}
	times, ok := conntest.WaitFor[*packet.SetTitlesAnimation](bobRec, time.Second)
	if !ok || times.Stay != 2 {
		t.Fatalf("unexpected times %+v", times)
	}
	if err := m.Clear(uuid.New(), true); err != ErrUnknownPlayer {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("actionbar"); !ok || k != KindActionBar {
		t.Fatalf("unexpected kind %v %v", k, ok)
	}
	if _, ok := ParseKind("times"); ok {
		t.Fatalf("times is not a display kind")
	}
}
