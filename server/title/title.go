// Package title shows titles, subtitles and action bar text to players.
package title

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/text"
)

// Kind is the place a text is displayed at.
type Kind uint8

const (
	KindTitle Kind = iota
	KindSubtitle
	KindActionBar
)

// ParseKind parses the name used by the title command.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "title":
		return KindTitle, true
	case "subtitle":
		return KindSubtitle, true
	case "actionbar":
		return KindActionBar, true
	}
	return 0, false
}

// Times are title timings in ticks.
type Times struct {
	FadeIn, Stay, FadeOut int32
}

// DefaultTimes are the timings the client starts with.
var DefaultTimes = Times{FadeIn: 10, Stay: 70, FadeOut: 20}

// ErrUnknownPlayer is returned for a player without a title child.
var ErrUnknownPlayer = errors.New("title: unknown player")

// Packet returns the packet showing c as kind.
func Packet(kind Kind, c text.Component) packet.Packet {
	switch kind {
	case KindSubtitle:
		return &packet.SetSubtitleText{Text: c}
	case KindActionBar:
		return &packet.SetActionBarText{Text: c}
	default:
		return &packet.SetTitleText{Text: c}
	}
}

type managerMessage interface{ titleManagerMessage() }

type connect struct {
	id   uuid.UUID
	conn packet.Sender
	*actor.Reply[error]
}

type broadcast struct{ pk packet.Packet }

func (connect) titleManagerMessage()   {}
func (broadcast) titleManagerMessage() {}

// Manager holds one title child per player.
type Manager struct {
	s        *actor.Sender[managerMessage]
	children actor.Children[uuid.UUID, packet.Packet]
}

// NewManager starts a title manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{children: actor.NewChildren[uuid.UUID, packet.Packet](actor.UUIDHash)}
	m.s = actor.Spawn[managerMessage](actor.HandlerFunc[managerMessage](func(_ *actor.Sender[managerMessage], msg managerMessage) bool {
		switch msg := msg.(type) {
		case connect:
			_, err := m.children.Spawn(msg.id, &viewer{id: msg.id, conn: msg.conn, children: m.children, log: log}, actor.Config{Name: "title_player", Log: log})
			msg.Send(err)
		case broadcast:
			m.children.Range(func(_ uuid.UUID, c *actor.Sender[packet.Packet]) bool {
				_ = c.Send(msg.pk)
				return true
			})
		}
		return false
	}), actor.Config{Name: "title", Log: log})
	return m
}

// Connect starts the title child of a player.
func (m *Manager) Connect(ctx context.Context, id uuid.UUID, conn packet.Sender) error {
	err, askErr := actor.Ask(ctx, m.s, func(r *actor.Reply[error]) managerMessage {
		return connect{id: id, conn: conn, Reply: r}
	})
	if askErr != nil {
		return askErr
	}
	return err
}

// Show displays c to one player.
func (m *Manager) Show(id uuid.UUID, kind Kind, c text.Component) error {
	return m.send(id, Packet(kind, c))
}

// SetTimes changes the title timings of one player.
func (m *Manager) SetTimes(id uuid.UUID, t Times) error {
	return m.send(id, timesPacket(t))
}

// Clear removes the title of one player. Reset also restores the default
// timings.
func (m *Manager) Clear(id uuid.UUID, reset bool) error {
	return m.send(id, &packet.ClearTitles{Reset: reset})
}

// Broadcast displays c to every player.
func (m *Manager) Broadcast(kind Kind, c text.Component) error {
	return m.s.Send(broadcast{pk: Packet(kind, c)})
}

// BroadcastTimes changes the title timings of every player.
func (m *Manager) BroadcastTimes(t Times) error {
	return m.s.Send(broadcast{pk: timesPacket(t)})
}

// BroadcastClear removes the title of every player.
func (m *Manager) BroadcastClear(reset bool) error {
	return m.s.Send(broadcast{pk: &packet.ClearTitles{Reset: reset}})
}

// Disconnect stops the title child of a player.
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

func (m *Manager) send(id uuid.UUID, pk packet.Packet) error {
	c, ok := m.children.Load(id)
	if !ok {
		return ErrUnknownPlayer
	}
	return c.Send(pk)
}

func timesPacket(t Times) *packet.SetTitlesAnimation {
	return &packet.SetTitlesAnimation{FadeIn: t.FadeIn, Stay: t.Stay, FadeOut: t.FadeOut}
}

type viewer struct {
	id       uuid.UUID
	conn     packet.Sender
	children actor.Children[uuid.UUID, packet.Packet]
	log      *slog.Logger
}

func (v *viewer) Handle(self *actor.Sender[packet.Packet], pk packet.Packet) bool {
	if err := v.conn.SendPacket(pk); err != nil {
		v.log.Debug("title: send: "+err.Error(), "player", v.id)
		v.children.Forget(v.id, self)
		return true
	}
	return false
}
