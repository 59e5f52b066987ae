// Package heartbeat watches every session for silence. A session that sends
// nothing for longer than the timeout is reported and forgotten.
package heartbeat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol/packet"
)

// ErrUnknownPlayer is returned for a player that is not watched.
var ErrUnknownPlayer = errors.New("heartbeat: unknown player")

// EventKind is what happened to a watched player.
type EventKind uint8

const (
	// TimedOut means nothing was heard from the player within the timeout.
	TimedOut EventKind = iota + 1
	// Disconnected means the player was removed with Disconnect.
	Disconnected
)

// Event is reported through Config.OnEvent.
type Event struct {
	Player uuid.UUID
	Kind   EventKind
	// LastSeen is when the player was last heard from.
	LastSeen time.Time
}

// Alive describes a watched player.
type Alive struct {
	LastSeen time.Time
	Phase    packet.State
	// Lag is the number of messages waiting in the session's mailbox.
	Lag int
}

// Config configures the heartbeat manager.
type Config struct {
	// Timeout is how long a player may stay silent.
	Timeout time.Duration
	// CheckInterval is how often silence is checked.
	CheckInterval time.Duration
	// OnEvent receives timeouts and disconnects. It is called from the
	// manager's goroutine.
	OnEvent func(Event)
	Log     *slog.Logger
}

type managerMessage interface{ heartbeatManagerMessage() }

type watch struct {
	id    uuid.UUID
	phase packet.State
	lag   func() int
	*actor.Reply[error]
}

type report struct {
	id uuid.UUID
	s  *actor.Sender[childMessage]
	Event
}

func (watch) heartbeatManagerMessage()  {}
func (report) heartbeatManagerMessage() {}

// Manager holds one watchdog per player.
type Manager struct {
	s        *actor.Sender[managerMessage]
	children actor.Children[uuid.UUID, childMessage]
}

// NewManager starts a heartbeat manager.
func NewManager(conf Config) *Manager {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 30 * time.Second
	}
	if conf.CheckInterval <= 0 {
		conf.CheckInterval = time.Second
	}
	m := &Manager{children: actor.NewChildren[uuid.UUID, childMessage](actor.UUIDHash)}
	m.s = actor.Spawn[managerMessage](&manager{conf: conf, children: m.children}, actor.Config{Name: "heartbeat", Log: conf.Log})
	return m
}

// Watch starts watching a player. lag, if not nil, reports the length of the
// player's session mailbox.
func (m *Manager) Watch(ctx context.Context, id uuid.UUID, phase packet.State, lag func() int) error {
	err, askErr := actor.Ask(ctx, m.s, func(r *actor.Reply[error]) managerMessage {
		return watch{id: id, phase: phase, lag: lag, Reply: r}
	})
	if askErr != nil {
		return askErr
	}
	return err
}

// Beat records that the player was heard from.
func (m *Manager) Beat(id uuid.UUID) error {
	return m.send(id, beat{at: time.Now()})
}

// SetPhase records the player's new phase.
func (m *Manager) SetPhase(id uuid.UUID, phase packet.State) error {
	return m.send(id, setPhase{phase})
}

// Alive returns the state of a watched player.
func (m *Manager) Alive(ctx context.Context, id uuid.UUID) (Alive, error) {
	c, ok := m.children.Load(id)
	if !ok {
		return Alive{}, ErrUnknownPlayer
	}
	return actor.Ask(ctx, c, func(r *actor.Reply[Alive]) childMessage { return alive{r} })
}

// Disconnect stops watching a player and reports Disconnected. The player
// may be watched again as soon as Disconnect returns.
func (m *Manager) Disconnect(id uuid.UUID) error {
	c, ok := m.children.Delete(id)
	if !ok {
		return ErrUnknownPlayer
	}
	return c.Send(disconnect{})
}

// Close stops every watchdog and the manager.
func (m *Manager) Close() {
	m.children.CloseAll()
	m.s.Close()
}

func (m *Manager) send(id uuid.UUID, msg childMessage) error {
	c, ok := m.children.Load(id)
	if !ok {
		return ErrUnknownPlayer
	}
	return c.Send(msg)
}

type manager struct {
	conf     Config
	children actor.Children[uuid.UUID, childMessage]
}

func (m *manager) Handle(self *actor.Sender[managerMessage], msg managerMessage) bool {
	switch msg := msg.(type) {
	case watch:
		w := &watchdog{
			Parent:   actor.WithParent(self),
			id:       msg.id,
			phase:    msg.phase,
			lag:      msg.lag,
			conf:     m.conf,
			lastSeen: time.Now(),
		}
		s, err := m.children.Spawn(msg.id, w, actor.Config{Name: "heartbeat_child", Log: m.conf.Log})
		if err == nil {
			_ = s.Send(check{})
		}
		msg.Send(err)
	case report:
		m.children.Forget(msg.id, msg.s)
		if msg.Kind == TimedOut {
			m.conf.Log.Info("Player timed out.", "uuid", msg.id, "last_seen", msg.LastSeen)
		}
		if m.conf.OnEvent != nil {
			m.conf.OnEvent(msg.Event)
		}
	}
	return false
}

type childMessage interface{ heartbeatChildMessage() }

type beat struct{ at time.Time }

type check struct{}

type setPhase struct{ phase packet.State }

type alive struct{ *actor.Reply[Alive] }

type disconnect struct{}

func (beat) heartbeatChildMessage()       {}
func (check) heartbeatChildMessage()      {}
func (setPhase) heartbeatChildMessage()   {}
func (alive) heartbeatChildMessage()      {}
func (disconnect) heartbeatChildMessage() {}

type watchdog struct {
	actor.Parent[managerMessage]

	id       uuid.UUID
	phase    packet.State
	lag      func() int
	conf     Config
	lastSeen time.Time
	timer    *time.Timer
}

func (w *watchdog) Handle(self *actor.Sender[childMessage], msg childMessage) bool {
	switch m := msg.(type) {
	case beat:
		if m.at.After(w.lastSeen) {
			w.lastSeen = m.at
		}
	case check:
		if time.Since(w.lastSeen) > w.conf.Timeout {
			return w.report(self, TimedOut)
		}
		w.timer = time.AfterFunc(w.conf.CheckInterval, func() { _ = self.Send(check{}) })
	case setPhase:
		w.phase = m.phase
	case alive:
		a := Alive{LastSeen: w.lastSeen, Phase: w.phase}
		if w.lag != nil {
			a.Lag = w.lag()
		}
		m.Send(a)
	case disconnect:
		return w.report(self, Disconnected)
	}
	return false
}

func (w *watchdog) report(self *actor.Sender[childMessage], kind EventKind) bool {
	_ = w.Parent.Parent().Send(report{id: w.id, s: self, Event: Event{Player: w.id, Kind: kind, LastSeen: w.lastSeen}})
	return true
}

// Stopped stops the check timer.
func (w *watchdog) Stopped() {
	if w.timer != nil {
		w.timer.Stop()
	}
}
