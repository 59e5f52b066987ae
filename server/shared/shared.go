// Package shared provides Shared, a value replicated into every holder with an
// authority actor keeping the canonical copy.
package shared

import (
	"context"
	"log/slog"

	"github.com/qexed/qexed/server/actor"
)

// Cloner may be implemented by values with reference fields so that every
// handle gets an independent copy.
type Cloner[T any] interface {
	Clone() T
}

// Snapshot is a value together with the authority version it was taken at.
type Snapshot[T any] struct {
	Value   T
	Version uint64
}

// Shared is one handle onto a replicated value. Local is the handle's private
// copy: reads and writes on it never touch the authority until Commit or
// Check is called. A Shared must not be used from more than one goroutine.
type Shared[T any] struct {
	Local T

	version   uint64
	authority *actor.Sender[message[T]]
}

// New starts an authority owning v at version 0 and returns the first handle.
func New[T any](v T, log *slog.Logger) *Shared[T] {
	a := &authority[T]{value: copyOf(v)}
	s := actor.Spawn[message[T]](a, actor.Config{Name: "shared", Log: log})
	return &Shared[T]{Local: copyOf(v), authority: s}
}

// Clone returns a new handle initialised with the authority's current value.
func (s *Shared[T]) Clone(ctx context.Context) (*Shared[T], error) {
	snap, err := actor.Ask(ctx, s.authority, func(r *actor.Reply[Snapshot[T]]) message[T] {
		return fetch[T]{r}
	})
	if err != nil {
		return nil, err
	}
	return &Shared[T]{Local: snap.Value, version: snap.Version, authority: s.authority}, nil
}

// Commit publishes the local value to the authority. The last writer wins; the
// handle's version is updated to the version the write produced.
func (s *Shared[T]) Commit(ctx context.Context) error {
	v, err := actor.Ask(ctx, s.authority, func(r *actor.Reply[uint64]) message[T] {
		return commit[T]{value: copyOf(s.Local), expected: s.version, Reply: r}
	})
	if err != nil {
		return err
	}
	s.version = v
	return nil
}

// Check replaces the local value with the authority's current value.
func (s *Shared[T]) Check(ctx context.Context) error {
	snap, err := actor.Ask(ctx, s.authority, func(r *actor.Reply[Snapshot[T]]) message[T] {
		return fetch[T]{r}
	})
	if err != nil {
		return err
	}
	s.Local, s.version = snap.Value, snap.Version
	return nil
}

// Version returns the authority version the local value was last synchronised
// with.
func (s *Shared[T]) Version() uint64 { return s.version }

// Close stops the authority. Every handle sharing it fails with
// actor.ErrPeerGone afterwards.
func (s *Shared[T]) Close() {
	s.authority.Close()
}

type message[T any] interface{ sharedMessage() }

type fetch[T any] struct {
	*actor.Reply[Snapshot[T]]
}

type commit[T any] struct {
	value    T
	expected uint64
	*actor.Reply[uint64]
}

func (fetch[T]) sharedMessage()  {}
func (commit[T]) sharedMessage() {}

type authority[T any] struct {
	value   T
	version uint64
}

func (a *authority[T]) Handle(_ *actor.Sender[message[T]], msg message[T]) bool {
	switch m := msg.(type) {
	case fetch[T]:
		m.Send(Snapshot[T]{Value: copyOf(a.value), Version: a.version})
	case commit[T]:
		// expected is not compared: concurrent commits overwrite each other.
		a.value = m.value
		a.version++
		m.Send(a.version)
	}
	return false
}

func copyOf[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}
