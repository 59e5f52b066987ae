// Package entityid hands out the entity IDs used on the wire. IDs released by
// Deallocate are reused oldest first before the cursor advances.
package entityid

import (
	"context"
	"log/slog"

	"github.com/brentp/intintmap"
	"github.com/qexed/qexed/server/actor"
)

// Exhausted is returned by Allocate when every ID up to the maximum is in use.
const Exhausted int32 = -1

// Config holds the ID range of an Allocator.
type Config struct {
	// StartID is the first ID handed out.
	StartID int32
	// MaxID is the largest ID handed out.
	MaxID int32
	Log   *slog.Logger
}

// Status describes the state of an Allocator.
type Status struct {
	Allocated int
	Free      int
	Next      int32
	Max       int32
}

type message interface{ entityMessage() }

type allocate struct{ *actor.Reply[int32] }

type deallocate struct {
	id int32
	*actor.Reply[bool]
}

type status struct{ *actor.Reply[Status] }

type reset struct{ *actor.Reply[struct{}] }

func (allocate) entityMessage()   {}
func (deallocate) entityMessage() {}
func (status) entityMessage()     {}
func (reset) entityMessage()      {}

// Allocator is a handle to the allocator actor.
type Allocator struct {
	s *actor.Sender[message]
}

// New starts an allocator for conf.
func New(conf Config) *Allocator {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	a := &allocator{conf: conf}
	a.reset()
	return &Allocator{s: actor.Spawn[message](a, actor.Config{Name: "entity_id", Log: conf.Log})}
}

// Allocate returns an unused ID, or Exhausted.
func (a *Allocator) Allocate(ctx context.Context) (int32, error) {
	return actor.Ask(ctx, a.s, func(r *actor.Reply[int32]) message { return allocate{r} })
}

// Deallocate releases id. It reports false if id was not allocated.
func (a *Allocator) Deallocate(ctx context.Context, id int32) (bool, error) {
	return actor.Ask(ctx, a.s, func(r *actor.Reply[bool]) message { return deallocate{id: id, Reply: r} })
}

// Status returns the allocator's counters.
func (a *Allocator) Status(ctx context.Context) (Status, error) {
	return actor.Ask(ctx, a.s, func(r *actor.Reply[Status]) message { return status{r} })
}

// Reset forgets every allocation.
func (a *Allocator) Reset(ctx context.Context) error {
	_, err := actor.Ask(ctx, a.s, func(r *actor.Reply[struct{}]) message { return reset{r} })
	return err
}

// Close stops the allocator.
func (a *Allocator) Close() { a.s.Close() }

type allocator struct {
	conf Config
	next int64
	// free holds released IDs, oldest first.
	free      []int32
	allocated *intintmap.Map
}

func (a *allocator) reset() {
	a.next = int64(a.conf.StartID)
	a.free = nil
	a.allocated = intintmap.New(64, 0.6)
}

func (a *allocator) Handle(_ *actor.Sender[message], msg message) bool {
	switch m := msg.(type) {
	case allocate:
		m.Send(a.allocate())
	case deallocate:
		m.Send(a.deallocate(m.id))
	case status:
		m.Send(Status{Allocated: a.allocated.Size(), Free: len(a.free), Next: int32(min(a.next, int64(a.conf.MaxID)+1)), Max: a.conf.MaxID})
	case reset:
		a.reset()
		m.Send(struct{}{})
	}
	return false
}

func (a *allocator) allocate() int32 {
	if len(a.free) > 0 {
		id := a.free[0]
		a.free = a.free[1:]
		a.allocated.Put(int64(id), 1)
		return id
	}
	if a.next > int64(a.conf.MaxID) {
		a.conf.Log.Warn("Entity IDs exhausted.", "max", a.conf.MaxID)
		return Exhausted
	}
	id := a.next
	a.next++
	a.allocated.Put(id, 1)
	return int32(id)
}

func (a *allocator) deallocate(id int32) bool {
	if _, ok := a.allocated.Get(int64(id)); !ok {
		return false
	}
	a.allocated.Del(int64(id))
	a.free = append(a.free, id)
	return true
}
