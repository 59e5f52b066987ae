// Package ping measures the round trip time of every connected player. A ping
// is KeepAlive in play and Ping during configuration; the phase must be kept
// up to date with SetPhase.
package ping

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol/packet"
)

// Reason is why a player was dropped.
type Reason uint8

const (
	// Timeout means MaxRetries pings in a row went unanswered.
	Timeout Reason = iota + 1
	// LatencyExceeded means a round trip took longer than the latency limit.
	LatencyExceeded
)

func (r Reason) String() string {
	if r == LatencyExceeded {
		return "latency exceeded"
	}
	return "timeout"
}

// ErrUnknownPlayer is returned for a player without a ping child.
var ErrUnknownPlayer = errors.New("ping: unknown player")

// Config configures the ping manager.
type Config struct {
	// Interval is the time between pings.
	Interval time.Duration
	// MaxRetries is the number of unanswered pings tolerated.
	MaxRetries int
	// LatencyLimit disconnects players whose round trip exceeds it. Zero
	// disables the limit.
	LatencyLimit time.Duration
	// OnDrop is called once for a player that timed out or exceeded the
	// latency limit. It is called from the manager's goroutine.
	OnDrop func(id uuid.UUID, reason Reason)
	Log    *slog.Logger
}

type managerMessage interface{ pingManagerMessage() }

type connect struct {
	id    uuid.UUID
	conn  packet.Sender
	phase packet.State
	*actor.Reply[error]
}

type dropped struct {
	id     uuid.UUID
	s      *actor.Sender[childMessage]
	reason Reason
}

func (connect) pingManagerMessage() {}
func (dropped) pingManagerMessage() {}

// Manager holds one ping child per player.
type Manager struct {
	s        *actor.Sender[managerMessage]
	children actor.Children[uuid.UUID, childMessage]
}

// NewManager starts a ping manager.
func NewManager(conf Config) *Manager {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Interval <= 0 {
		conf.Interval = 15 * time.Second
	}
	m := &Manager{children: actor.NewChildren[uuid.UUID, childMessage](actor.UUIDHash)}
	m.s = actor.Spawn[managerMessage](&manager{conf: conf, children: m.children}, actor.Config{Name: "ping", Log: conf.Log})
	return m
}

// Connect starts pinging a player. It fails with actor.ErrChildExists if the
// player is already known.
func (m *Manager) Connect(ctx context.Context, id uuid.UUID, conn packet.Sender, phase packet.State) error {
	err, askErr := actor.Ask(ctx, m.s, func(r *actor.Reply[error]) managerMessage {
		return connect{id: id, conn: conn, phase: phase, Reply: r}
	})
	if askErr != nil {
		return askErr
	}
	return err
}

// SetPhase switches the ping packet used for a player.
func (m *Manager) SetPhase(id uuid.UUID, phase packet.State) error {
	return m.send(id, setPhase{phase})
}

// Pong records the answer to the ping with the given nonce.
func (m *Manager) Pong(id uuid.UUID, nonce int64) error {
	return m.send(id, pong{nonce: nonce, at: time.Now()})
}

// Latency returns the last measured round trip of a player.
func (m *Manager) Latency(ctx context.Context, id uuid.UUID) (time.Duration, error) {
	c, ok := m.children.Load(id)
	if !ok {
		return 0, ErrUnknownPlayer
	}
	return actor.Ask(ctx, c, func(r *actor.Reply[time.Duration]) childMessage { return latency{r} })
}

// Disconnect stops pinging a player.
func (m *Manager) Disconnect(id uuid.UUID) {
	if c, ok := m.children.Delete(id); ok {
		c.Close()
	}
}

// Close stops every child and the manager.
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
	case connect:
		p := &pinger{
			Parent: actor.WithParent(self),
			id:     msg.id,
			conn:   msg.conn,
			phase:  msg.phase,
			conf:   m.conf,
			sent:   map[int64]time.Time{},
		}
		s, err := m.children.Spawn(msg.id, p, actor.Config{Name: "ping_child", Log: m.conf.Log})
		if err == nil {
			_ = s.Send(tick{})
		}
		msg.Send(err)
	case dropped:
		m.children.Forget(msg.id, msg.s)
		m.conf.Log.Info("Player dropped by ping.", "uuid", msg.id, "reason", msg.reason.String())
		if m.conf.OnDrop != nil {
			m.conf.OnDrop(msg.id, msg.reason)
		}
	}
	return false
}

type childMessage interface{ pingChildMessage() }

type tick struct{}

type pong struct {
	nonce int64
	at    time.Time
}

type setPhase struct{ phase packet.State }

type latency struct{ *actor.Reply[time.Duration] }

func (tick) pingChildMessage()     {}
func (pong) pingChildMessage()     {}
func (setPhase) pingChildMessage() {}
func (latency) pingChildMessage()  {}

type pinger struct {
	actor.Parent[managerMessage]

	id    uuid.UUID
	conn  packet.Sender
	phase packet.State
	conf  Config

	nonce int64
	// sent maps outstanding nonces to their send time.
	sent       map[int64]time.Time
	unanswered int
	rtt        time.Duration
	timer      *time.Timer
}

func (p *pinger) Handle(self *actor.Sender[childMessage], msg childMessage) bool {
	switch m := msg.(type) {
	case tick:
		if p.unanswered >= p.conf.MaxRetries && p.conf.MaxRetries > 0 {
			return p.drop(self, Timeout)
		}
		p.ping()
		p.timer = time.AfterFunc(p.conf.Interval, func() { _ = self.Send(tick{}) })
	case pong:
		at, ok := p.sent[m.nonce]
		if !ok {
			return false
		}
		// Every ping sent before this one is answered by implication.
		for n := range p.sent {
			if n <= m.nonce {
				delete(p.sent, n)
			}
		}
		p.unanswered = len(p.sent)
		p.rtt = m.at.Sub(at)
		if p.conf.LatencyLimit > 0 && p.rtt > p.conf.LatencyLimit {
			return p.drop(self, LatencyExceeded)
		}
	case setPhase:
		if m.phase != p.phase {
			p.phase = m.phase
			// Nonces from the old phase can no longer be answered.
			clear(p.sent)
			p.unanswered = 0
		}
	case latency:
		m.Send(p.rtt)
	}
	return false
}

func (p *pinger) ping() {
	p.nonce++
	var pk packet.Packet
	if p.phase == packet.StateConfiguration {
		pk = &packet.ConfigPing{PingID: int32(p.nonce)}
	} else {
		pk = &packet.KeepAlive{KeepAliveID: p.nonce}
	}
	if err := p.conn.SendPacket(pk); err != nil {
		p.conf.Log.Debug("ping write failed", "err", err, "uuid", p.id)
	}
	p.sent[p.nonce] = time.Now()
	p.unanswered++
}

func (p *pinger) drop(self *actor.Sender[childMessage], reason Reason) bool {
	_ = p.Parent.Parent().Send(dropped{id: p.id, s: self, reason: reason})
	return true
}

// Stopped stops the ping timer.
func (p *pinger) Stopped() {
	if p.timer != nil {
		p.timer.Stop()
	}
}
