// Package actor implements the in-process actor runtime every long-lived
// component of the server is built on. An actor owns private state, reads
// messages from an unbounded mailbox one at a time and talks to its peers only
// through their Senders.
package actor

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Handler processes the messages of one actor. Handle is never called
// concurrently for the same actor. Returning true stops the actor; messages
// still queued at that point are dropped and their replies abandoned.
type Handler[M any] interface {
	Handle(self *Sender[M], msg M) (stop bool)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc[M any] func(self *Sender[M], msg M) bool

// Handle calls f(self, msg).
func (f HandlerFunc[M]) Handle(self *Sender[M], msg M) bool { return f(self, msg) }

// Stopper may be implemented by a Handler to run cleanup after the actor loop
// has finished, whichever way it finished.
type Stopper interface {
	Stopped()
}

// Config holds optional settings for a new actor.
type Config struct {
	// Name identifies the actor in logs and metrics.
	Name string
	// Log receives handler panics. If nil, slog.Default() is used.
	Log *slog.Logger
	// Metrics, if set, records processed and dropped message counts under Name.
	Metrics *Metrics
}

// Actor is a mailbox bound to a Handler. It is created by New and started with
// Run.
type Actor[M any] struct {
	conf    Config
	handler Handler[M]
	self    *Sender[M]
}

// New creates an actor for h and returns it together with the Sender used to
// reach it. The actor does not process messages until Run is called, but
// messages sent before that are queued.
func New[M any](h Handler[M], conf Config) (*Actor[M], *Sender[M]) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	s := &Sender[M]{mb: newMailbox[M]()}
	return &Actor[M]{conf: conf, handler: h, self: s}, s
}

// Spawn creates an actor for h, runs it and returns its Sender.
func Spawn[M any](h Handler[M], conf Config) *Sender[M] {
	a, s := New(h, conf)
	a.Run()
	return s
}

// Run starts the actor loop on its own goroutine.
func (a *Actor[M]) Run() {
	go a.loop()
}

func (a *Actor[M]) loop() {
	mb := a.self.mb
	defer func() {
		for _, m := range mb.drain() {
			abandon(m)
			a.conf.Metrics.dropped(a.conf.Name)
		}
		if s, ok := a.handler.(Stopper); ok {
			s.Stopped()
		}
		close(mb.done)
	}()
	for {
		m, ok := mb.pop()
		if !ok {
			return
		}
		stop := a.handle(m)
		a.conf.Metrics.processed(a.conf.Name)
		if stop {
			return
		}
	}
}

// handle runs the handler for m, converting a panic into a stop.
func (a *Actor[M]) handle(m M) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			a.conf.Log.Error("actor handler panicked", "actor", a.conf.Name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			a.conf.Metrics.panicked(a.conf.Name)
			abandon(m)
			stop = true
		}
	}()
	return a.handler.Handle(a.self, m)
}

func abandon(m any) {
	if r, ok := m.(returning); ok {
		r.abandon()
	}
}

// Sender is the address of an actor. It is safe for concurrent use.
type Sender[M any] struct {
	mb *mailbox[M]
}

// Send queues m for the actor. It never blocks. If the actor has stopped,
// ErrPeerGone is returned and any reply carried by m is abandoned.
func (s *Sender[M]) Send(m M) error {
	if s == nil {
		abandon(m)
		return ErrPeerGone
	}
	if err := s.mb.push(m); err != nil {
		abandon(m)
		return err
	}
	return nil
}

// Close stops the actor from accepting new messages. The actor finishes once it
// has processed every message already queued.
func (s *Sender[M]) Close() {
	if s != nil {
		s.mb.close()
	}
}

// Done returns a channel that is closed after the actor loop has exited.
func (s *Sender[M]) Done() <-chan struct{} {
	return s.mb.done
}

// Len returns the number of queued messages. A growing value indicates a
// producer outrunning the actor.
func (s *Sender[M]) Len() int {
	if s == nil {
		return 0
	}
	return s.mb.len()
}

// Parent gives a Handler a reference to the actor that spawned it. Handlers
// embed it to gain the parent capability.
type Parent[P any] struct {
	parent *Sender[P]
}

// WithParent returns a Parent pointing at p.
func WithParent[P any](p *Sender[P]) Parent[P] {
	return Parent[P]{parent: p}
}

// Parent returns the parent's Sender.
func (p Parent[P]) Parent() *Sender[P] { return p.parent }

// Children gives a Handler a registry of child actors. Handlers embed it to
// gain the manager capability. The registry is safe to read from other actors
// so siblings may look each other up without a round trip through the manager.
type Children[K comparable, C any] struct {
	*Registry[K, *Sender[C]]
}

// NewChildren returns an empty child registry using hash to pick shards.
func NewChildren[K comparable, C any](hash func(K) uint64) Children[K, C] {
	return Children[K, C]{Registry: NewRegistry[K, *Sender[C]](hash)}
}

// Spawn starts a child actor for h under key k. It fails with ErrChildExists
// and starts nothing if k is already taken.
func (c Children[K, C]) Spawn(k K, h Handler[C], conf Config) (*Sender[C], error) {
	a, s := New(h, conf)
	if !c.Insert(k, s) {
		return nil, ErrChildExists
	}
	a.Run()
	return s, nil
}

// Forget removes k if it still maps to s. Children call it on exit so that a
// newer child under the same key is left alone.
func (c Children[K, C]) Forget(k K, s *Sender[C]) {
	c.CompareAndDelete(k, func(v *Sender[C]) bool { return v == s })
}

// CloseAll closes every child mailbox and waits for the children to finish.
func (c Children[K, C]) CloseAll() {
	var senders []*Sender[C]
	c.Range(func(_ K, s *Sender[C]) bool {
		senders = append(senders, s)
		return true
	})
	for _, s := range senders {
		s.Close()
	}
	for _, s := range senders {
		<-s.Done()
	}
	c.Clear()
}
