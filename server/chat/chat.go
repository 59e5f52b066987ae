// Package chat relays player chat. Each player has a chat child that validates
// what the player types and delivers system messages to them; the manager fans
// messages out to every child.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/text"
)

// MaxLength is the longest chat message a client may send.
const MaxLength = 256

var (
	// ErrUnknownPlayer is returned for a player without a chat child.
	ErrUnknownPlayer = errors.New("chat: unknown player")
	// ErrTooLong is returned for a message longer than MaxLength.
	ErrTooLong = errors.New("chat: message too long")
	// ErrIllegalCharacters is returned for a message containing formatting
	// codes or control characters.
	ErrIllegalCharacters = errors.New("chat: illegal characters in message")
	// ErrEmpty is returned for a message with nothing but whitespace.
	ErrEmpty = errors.New("chat: empty message")
)

// Validate reports whether msg may be sent by a client.
func Validate(msg string) error {
	if utf8.RuneCountInString(msg) > MaxLength {
		return ErrTooLong
	}
	blank := true
	for _, r := range msg {
		if r == text.Section || r == 0x7f || unicode.IsControl(r) {
			return ErrIllegalCharacters
		}
		if !unicode.IsSpace(r) {
			blank = false
		}
	}
	if blank {
		return ErrEmpty
	}
	return nil
}

// Format renders a chat line the way it is shown to players.
func Format(name, msg string) text.Component {
	return text.Plainf("<%s> %s", name, msg)
}

type managerMessage interface{ chatManagerMessage() }

type connect struct {
	id   uuid.UUID
	name string
	conn packet.Sender
	*actor.Reply[error]
}

type broadcast struct {
	exclude uuid.UUID
	pk      *packet.SystemChat
}

func (connect) chatManagerMessage()   {}
func (broadcast) chatManagerMessage() {}

// Manager holds one chat child per player.
type Manager struct {
	s        *actor.Sender[managerMessage]
	children actor.Children[uuid.UUID, childMessage]
	log      *slog.Logger
}

// NewManager starts a chat manager. Chat lines are logged to log with
// formatting codes removed.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{children: actor.NewChildren[uuid.UUID, childMessage](actor.UUIDHash), log: log}
	m.s = actor.Spawn[managerMessage](&manager{Manager: m}, actor.Config{Name: "chat", Log: log})
	return m
}

// Connect starts the chat child of a player. It fails with
// actor.ErrChildExists if the player already has one.
func (m *Manager) Connect(ctx context.Context, id uuid.UUID, name string, conn packet.Sender) error {
	err, askErr := actor.Ask(ctx, m.s, func(r *actor.Reply[error]) managerMessage {
		return connect{id: id, name: name, conn: conn, Reply: r}
	})
	if askErr != nil {
		return askErr
	}
	return err
}

// Chat handles a message typed by a player. Invalid messages are answered
// with an error shown only to that player.
func (m *Manager) Chat(id uuid.UUID, msg string) error {
	return m.send(id, chatEvent{msg: msg})
}

// Send delivers a system message to one player.
func (m *Manager) Send(id uuid.UUID, c text.Component) error {
	return m.send(id, sendMessage{pk: &packet.SystemChat{Content: c}})
}

// Broadcast delivers a system message to every player except exclude. Pass
// uuid.Nil to reach everyone.
func (m *Manager) Broadcast(exclude uuid.UUID, c text.Component) error {
	return m.s.Send(broadcast{exclude: exclude, pk: &packet.SystemChat{Content: c}})
}

// Disconnect stops the chat child of a player once its queued messages are
// delivered.
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
	*Manager
}

func (m *manager) Handle(self *actor.Sender[managerMessage], msg managerMessage) bool {
	switch msg := msg.(type) {
	case connect:
		p := &player{
			Parent:   actor.WithParent(self),
			children: m.children,
			id:       msg.id,
			name:     msg.name,
			conn:     msg.conn,
			log:      m.log,
		}
		_, err := m.children.Spawn(msg.id, p, actor.Config{Name: "chat_player", Log: m.log})
		msg.Send(err)
	case broadcast:
		m.children.Range(func(id uuid.UUID, c *actor.Sender[childMessage]) bool {
			if id != msg.exclude {
				_ = c.Send(sendMessage{pk: msg.pk})
			}
			return true
		})
	}
	return false
}

type childMessage interface{ chatPlayerMessage() }

type chatEvent struct{ msg string }

type sendMessage struct{ pk *packet.SystemChat }

func (chatEvent) chatPlayerMessage()   {}
func (sendMessage) chatPlayerMessage() {}

type player struct {
	actor.Parent[managerMessage]
	children actor.Children[uuid.UUID, childMessage]
	id       uuid.UUID
	name     string
	conn     packet.Sender
	log      *slog.Logger
}

func (p *player) Handle(self *actor.Sender[childMessage], msg childMessage) bool {
	if p.handle(msg) {
		p.children.Forget(p.id, self)
		return true
	}
	return false
}

func (p *player) handle(msg childMessage) bool {
	switch msg := msg.(type) {
	case chatEvent:
		if err := Validate(msg.msg); err != nil {
			if errors.Is(err, ErrEmpty) {
				return false
			}
			return p.deliver(&packet.SystemChat{Content: text.Error(errText(err))})
		}
		line := Format(p.name, msg.msg)
		p.log.Info(line.String())
		if p.deliver(&packet.SystemChat{Content: line}) {
			return true
		}
		_ = p.Parent.Parent().Send(broadcast{exclude: p.id, pk: &packet.SystemChat{Content: line}})
	case sendMessage:
		return p.deliver(msg.pk)
	}
	return false
}

// deliver writes pk to the player and reports whether the connection is gone.
func (p *player) deliver(pk *packet.SystemChat) bool {
	if err := p.conn.SendPacket(pk); err != nil {
		p.log.Debug("chat: send: "+err.Error(), "player", p.name)
		return true
	}
	return false
}

func errText(err error) string {
	if errors.Is(err, ErrTooLong) {
		return "Chat message too long"
	}
	return "Illegal characters in chat"
}
