package actor

import (
	"sync"
)

// mailbox is an unbounded FIFO queue with a single consumer and any number of
// producers. Pushing never blocks.
type mailbox[M any] struct {
	mu     sync.Mutex
	queue  []M
	head   int
	closed bool

	notify chan struct{}
	done   chan struct{}
}

func newMailbox[M any]() *mailbox[M] {
	return &mailbox[M]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push appends m to the queue. It returns ErrPeerGone if the mailbox no longer
// accepts messages.
func (mb *mailbox[M]) push(m M) error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return ErrPeerGone
	}
	mb.queue = append(mb.queue, m)
	mb.mu.Unlock()

	select {
	case mb.notify <- struct{}{}:
	default:
	}
	return nil
}

// pop blocks until a message is available. It returns false once the mailbox
// is closed and every queued message has been handed out.
func (mb *mailbox[M]) pop() (M, bool) {
	for {
		mb.mu.Lock()
		if mb.head < len(mb.queue) {
			m := mb.queue[mb.head]
			var zero M
			mb.queue[mb.head] = zero
			mb.head++
			if mb.head == len(mb.queue) {
				mb.queue, mb.head = mb.queue[:0], 0
			}
			mb.mu.Unlock()
			return m, true
		}
		if mb.closed {
			mb.mu.Unlock()
			var zero M
			return zero, false
		}
		mb.mu.Unlock()
		<-mb.notify
	}
}

// close stops the mailbox from accepting new messages. Messages already queued
// are still delivered by pop.
func (mb *mailbox[M]) close() {
	mb.mu.Lock()
	mb.closed = true
	mb.mu.Unlock()

	select {
	case mb.notify <- struct{}{}:
	default:
	}
}

// drain closes the mailbox and removes every queued message, returning them.
func (mb *mailbox[M]) drain() []M {
	mb.mu.Lock()
	mb.closed = true
	pending := append([]M(nil), mb.queue[mb.head:]...)
	mb.queue, mb.head = nil, 0
	mb.mu.Unlock()
	return pending
}

func (mb *mailbox[M]) len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queue) - mb.head
}
