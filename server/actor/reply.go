package actor

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrPeerGone is returned when a message is sent to an actor whose mailbox
	// has been closed.
	ErrPeerGone = errors.New("actor: peer gone")
	// ErrReplyDropped is returned by Reply.Wait when the receiving actor never
	// answered, either because it dropped the reply or because it stopped.
	ErrReplyDropped = errors.New("actor: reply dropped")
	// ErrChildExists is returned by Children.Spawn when the key is taken.
	ErrChildExists = errors.New("actor: child already exists")
)

// Reply is a one-shot reply channel carried by request messages. Exactly one of
// Send or Drop takes effect; later calls are ignored. Request messages embed a
// *Reply so that pending requests are abandoned when the receiver stops.
type Reply[T any] struct {
	once sync.Once
	ch   chan T
	drop chan struct{}
}

// NewReply returns a Reply ready to be embedded in a request message.
func NewReply[T any]() *Reply[T] {
	return &Reply[T]{ch: make(chan T, 1), drop: make(chan struct{})}
}

// Send delivers v to the waiting caller.
func (r *Reply[T]) Send(v T) {
	if r == nil {
		return
	}
	r.once.Do(func() { r.ch <- v })
}

// Drop releases the reply without a value. The caller observes
// ErrReplyDropped.
func (r *Reply[T]) Drop() {
	if r == nil {
		return
	}
	r.once.Do(func() { close(r.drop) })
}

// Wait blocks until the reply is sent or dropped, or ctx is done.
func (r *Reply[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-r.ch:
		return v, nil
	case <-r.drop:
		return zero, ErrReplyDropped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *Reply[T]) abandon() { r.Drop() }

// returning is implemented by every message embedding a *Reply.
type returning interface {
	abandon()
}

// Ask sends the message built by req to s and waits for its reply. A send to a
// stopped actor returns ErrPeerGone.
func Ask[M, T any](ctx context.Context, s *Sender[M], req func(r *Reply[T]) M) (T, error) {
	r := NewReply[T]()
	if err := s.Send(req(r)); err != nil {
		var zero T
		return zero, err
	}
	return r.Wait(ctx)
}
