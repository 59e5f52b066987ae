// Package conntest provides a packet.Sender that records packets for tests.
package conntest

import (
	"errors"
	"sync"
	"time"

	"github.com/qexed/qexed/server/protocol/packet"
)

// ErrClosed is returned by a closed Recorder.
var ErrClosed = errors.New("conntest: recorder closed")

// Recorder collects every packet sent to it.
type Recorder struct {
	mu      sync.Mutex
	packets []packet.Packet
	closed  bool
	notify  chan struct{}
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// SendPacket records pk.
func (r *Recorder) SendPacket(pk packet.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.packets = append(r.packets, pk)
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Close makes further sends fail.
func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Packets returns the packets recorded so far.
func (r *Recorder) Packets() []packet.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]packet.Packet(nil), r.packets...)
}

// Reset forgets the recorded packets.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.packets = nil
	r.mu.Unlock()
}

// Of returns the recorded packets of type T.
func Of[T packet.Packet](r *Recorder) []T {
	var out []T
	for _, pk := range r.Packets() {
		if v, ok := pk.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// WaitFor waits until a packet of type T has been recorded and returns the
// first one. It returns false after timeout.
func WaitFor[T packet.Packet](r *Recorder, timeout time.Duration) (T, bool) {
	deadline := time.After(timeout)
	for {
		if got := Of[T](r); len(got) > 0 {
			return got[0], true
		}
		select {
		case <-r.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			var zero T
			return zero, false
		}
	}
}
