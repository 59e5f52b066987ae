// Package packetsplit routes the decoded play packets of each player to the
// subsystem that handles them. It does not buffer: every packet is handed to
// exactly one route.
package packetsplit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol/packet"
)

// ErrUnknownPlayer is returned by Dispatch for a player without routes.
var ErrUnknownPlayer = errors.New("packetsplit: unknown player")

// Movement is the normalised form of the four movement packets.
type Movement struct {
	Pos        mgl64.Vec3
	HasPos     bool
	Yaw, Pitch float32
	HasRot     bool
	OnGround   bool
}

// Routes holds the destination of each kind of packet. Nil routes drop their
// packets. Routes are called from the player's split actor, one at a time.
type Routes struct {
	Chat          func(*packet.Chat)
	Command       func(*packet.ChatCommand)
	Suggestion    func(*packet.CommandSuggestion)
	KeepAlive     func(*packet.KeepAliveResponse)
	Pong          func(*packet.PlayPong)
	Movement      func(Movement)
	Settings      func(*packet.PlayClientInformation)
	ClientCommand func(*packet.ClientCommand)
	// Other receives every packet without a dedicated route.
	Other func(packet.Packet)
}

func (r Routes) route(pk packet.Packet) {
	switch pk := pk.(type) {
	case *packet.Chat:
		call(r.Chat, pk)
	case *packet.ChatCommand:
		call(r.Command, pk)
	case *packet.CommandSuggestion:
		call(r.Suggestion, pk)
	case *packet.KeepAliveResponse:
		call(r.KeepAlive, pk)
	case *packet.PlayPong:
		call(r.Pong, pk)
	case *packet.PlayClientInformation:
		call(r.Settings, pk)
	case *packet.ClientCommand:
		call(r.ClientCommand, pk)
	case *packet.MovePlayerPos:
		call(r.Movement, Movement{Pos: mgl64.Vec3{pk.X, pk.Y, pk.Z}, HasPos: true, OnGround: onGround(pk.Flags)})
	case *packet.MovePlayerPosRot:
		call(r.Movement, Movement{
			Pos: mgl64.Vec3{pk.X, pk.Y, pk.Z}, HasPos: true,
			Yaw: pk.Yaw, Pitch: pk.Pitch, HasRot: true,
			OnGround: onGround(pk.Flags),
		})
	case *packet.MovePlayerRot:
		call(r.Movement, Movement{Yaw: pk.Yaw, Pitch: pk.Pitch, HasRot: true, OnGround: onGround(pk.Flags)})
	case *packet.MovePlayerStatusOnly:
		call(r.Movement, Movement{OnGround: onGround(pk.Flags)})
	default:
		call(r.Other, packet.Packet(pk))
	}
}

func call[T any](f func(T), v T) {
	if f != nil {
		f(v)
	}
}

func onGround(flags uint8) bool { return flags&packet.MoveFlagOnGround != 0 }

type managerMessage interface{ splitManagerMessage() }

type connect struct {
	id     uuid.UUID
	routes Routes
	*actor.Reply[error]
}

func (connect) splitManagerMessage() {}

// Manager holds one split child per player.
type Manager struct {
	s        *actor.Sender[managerMessage]
	children actor.Children[uuid.UUID, packet.Packet]
}

// NewManager starts a packet split manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{children: actor.NewChildren[uuid.UUID, packet.Packet](actor.UUIDHash)}
	m.s = actor.Spawn[managerMessage](actor.HandlerFunc[managerMessage](func(_ *actor.Sender[managerMessage], msg managerMessage) bool {
		if c, ok := msg.(connect); ok {
			_, err := m.children.Spawn(c.id, splitter(c.routes), actor.Config{Name: "packet_split", Log: log})
			c.Send(err)
		}
		return false
	}), actor.Config{Name: "packet_split_manager", Log: log})
	return m
}

// Connect registers the routes of a player.
func (m *Manager) Connect(ctx context.Context, id uuid.UUID, routes Routes) error {
	err, askErr := actor.Ask(ctx, m.s, func(r *actor.Reply[error]) managerMessage {
		return connect{id: id, routes: routes, Reply: r}
	})
	if askErr != nil {
		return askErr
	}
	return err
}

// Dispatch hands pk to the player's routes.
func (m *Manager) Dispatch(id uuid.UUID, pk packet.Packet) error {
	c, ok := m.children.Load(id)
	if !ok {
		return ErrUnknownPlayer
	}
	return c.Send(pk)
}

// Disconnect removes the routes of a player once its queued packets have been
// routed.
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

func splitter(r Routes) actor.HandlerFunc[packet.Packet] {
	return func(_ *actor.Sender[packet.Packet], pk packet.Packet) bool {
		r.route(pk)
		return false
	}
}
