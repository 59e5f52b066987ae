package actor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type counterMsg interface{ counterMsg() }

type incr struct{ by int }

type get struct{ *Reply[int] }

type stop struct{}

type boom struct{}

func (incr) counterMsg() {}
func (get) counterMsg()  {}
func (stop) counterMsg() {}
func (boom) counterMsg() {}

type counter struct {
	n       int
	stopped chan struct{}
}

func (c *counter) Handle(_ *Sender[counterMsg], msg counterMsg) bool {
	switch m := msg.(type) {
	case incr:
		c.n += m.by
	case get:
		m.Send(c.n)
	case stop:
		return true
	case boom:
		panic("boom")
	}
	return false
}

func (c *counter) Stopped() {
	if c.stopped != nil {
		close(c.stopped)
	}
}

func testConfig(name string) Config {
	return Config{Name: name, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestActorProcessesInOrder(t *testing.T) {
	s := Spawn[counterMsg](&counter{}, testConfig("counter"))
	for i := 0; i < 1000; i++ {
		if err := s.Send(incr{by: 1}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	n, err := Ask(ctxT(t), s, func(r *Reply[int]) counterMsg { return get{r} })
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if n != 1000 {
		t.Fatalf("expected 1000, got %d", n)
	}
}

func TestStopAbandonsPendingReplies(t *testing.T) {
	c := &counter{stopped: make(chan struct{})}
	a, s := New[counterMsg](c, testConfig("counter"))
	r := NewReply[int]()
	_ = s.Send(stop{})
	_ = s.Send(get{r})
	a.Run()

	if _, err := r.Wait(ctxT(t)); !errors.Is(err, ErrReplyDropped) {
		t.Fatalf("expected ErrReplyDropped, got %v", err)
	}
	<-c.stopped
	if err := s.Send(incr{by: 1}); !errors.Is(err, ErrPeerGone) {
		t.Fatalf("expected ErrPeerGone, got %v", err)
	}
}

func TestSendToStoppedActorDropsReply(t *testing.T) {
	s := Spawn[counterMsg](&counter{}, testConfig("counter"))
	_ = s.Send(stop{})
	<-s.Done()

	_, err := Ask(ctxT(t), s, func(r *Reply[int]) counterMsg { return get{r} })
	if !errors.Is(err, ErrPeerGone) {
		t.Fatalf("expected ErrPeerGone, got %v", err)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	c := &counter{}
	a, s := New[counterMsg](c, testConfig("counter"))
	for i := 0; i < 10; i++ {
		_ = s.Send(incr{by: 2})
	}
	s.Close()
	a.Run()
	<-s.Done()
	if c.n != 20 {
		t.Fatalf("expected queued messages to be processed before exit, got %d", c.n)
	}
}

func TestPanicStopsActor(t *testing.T) {
	metrics := NewMetrics()
	conf := testConfig("panicky")
	conf.Metrics = metrics
	s := Spawn[counterMsg](&counter{}, conf)
	_ = s.Send(boom{})
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("actor did not stop after panic")
	}
	if got := metrics.Snapshot("panicky").Panics; got != 1 {
		t.Fatalf("expected 1 panic, got %d", got)
	}
}

func TestReplyOnlyFirstWins(t *testing.T) {
	r := NewReply[string]()
	r.Send("a")
	r.Send("b")
	r.Drop()
	v, err := r.Wait(ctxT(t))
	if err != nil || v != "a" {
		t.Fatalf("expected a, got %q (%v)", v, err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[uuid.UUID, int](UUIDHash)
	ids := make([]uuid.UUID, 100)
	for i := range ids {
		ids[i] = uuid.New()
		if !r.Insert(ids[i], i) {
			t.Fatalf("insert %d failed", i)
		}
	}
	if r.Insert(ids[0], 5) {
		t.Fatalf("expected duplicate insert to fail")
	}
	if r.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", r.Len())
	}
	if v, ok := r.Load(ids[42]); !ok || v != 42 {
		t.Fatalf("expected 42, got %d (%v)", v, ok)
	}
	if !r.CompareAndDelete(ids[1], func(v int) bool { return v == 1 }) {
		t.Fatalf("expected compare-and-delete to succeed")
	}
	if r.CompareAndDelete(ids[2], func(v int) bool { return v == 3 }) {
		t.Fatalf("expected compare-and-delete to fail on mismatch")
	}
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry[[2]int64, int](CoordHash)
	var wg sync.WaitGroup
	for g := int64(0); g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := int64(-50); i < 50; i++ {
				r.Store([2]int64{g, i}, int(i))
				r.Load([2]int64{g, i})
			}
		}()
	}
	wg.Wait()
	if r.Len() != 800 {
		t.Fatalf("expected 800 entries, got %d", r.Len())
	}
}

func TestChildrenCloseAll(t *testing.T) {
	children := NewChildren[int32, counterMsg](Int32Hash)
	for i := int32(0); i < 4; i++ {
		children.Store(i, Spawn[counterMsg](&counter{}, testConfig("child")))
	}
	children.CloseAll()
	if children.Len() != 0 {
		t.Fatalf("expected no children, got %d", children.Len())
	}
}

func TestChildrenSpawnRejectsDuplicate(t *testing.T) {
	children := NewChildren[int32, counterMsg](Int32Hash)
	first, err := children.Spawn(1, &counter{}, testConfig("child"))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := children.Spawn(1, &counter{}, testConfig("child")); !errors.Is(err, ErrChildExists) {
		t.Fatalf("expected ErrChildExists, got %v", err)
	}
	children.Forget(1, &Sender[counterMsg]{})
	if got, ok := children.Load(1); !ok || got != first {
		t.Fatalf("forget with another sender must keep the child")
	}
	children.Forget(1, first)
	if _, ok := children.Load(1); ok {
		t.Fatalf("child still registered after forget")
	}
	first.Close()
}
