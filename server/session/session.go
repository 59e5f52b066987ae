// Package session implements the game logic: one session actor per logged in
// player, driving the configuration exchange and then the play state. A
// session connects its player to every per-player subsystem and tears those
// connections down again whichever way the player leaves.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/chat"
	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/entityid"
	"github.com/qexed/qexed/server/heartbeat"
	"github.com/qexed/qexed/server/ingress"
	"github.com/qexed/qexed/server/packetsplit"
	"github.com/qexed/qexed/server/ping"
	"github.com/qexed/qexed/server/playerlist"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/registry"
	"github.com/qexed/qexed/server/rule"
	"github.com/qexed/qexed/server/text"
	"github.com/qexed/qexed/server/title"
	"github.com/qexed/qexed/server/world"
)

// ErrPlayerNotAway is returned by Connect for a player that already has a
// session.
var ErrPlayerNotAway = ingress.ErrPlayerNotAway

// ErrUnknownPlayer is returned for a player without a session.
var ErrUnknownPlayer = errors.New("session: unknown player")

// askTimeout bounds every request a session makes to another actor.
const askTimeout = 5 * time.Second

// Config holds the subsystems a session connects its player to.
type Config struct {
	Players   *playerlist.List
	Entities  *entityid.Allocator
	Rules     *rule.Handle
	Worlds    *world.Manager
	Ping      *ping.Manager
	Heartbeat *heartbeat.Manager
	Split     *packetsplit.Manager
	Chat      *chat.Manager
	Commands  *cmd.Manager
	Titles    *title.Manager

	// ViewDistance is the chunk radius sent to players.
	ViewDistance       int
	SimulationDistance int
	Log                *slog.Logger
	Metrics            *actor.Metrics
}

// profile is the player list entry of a player in play.
type profile struct {
	name       string
	properties []packet.Property
	gameMode   rule.GameMode
}

// Manager keeps one session per player.
type Manager struct {
	conf     Config
	s        *actor.Sender[managerMessage]
	children actor.Children[uuid.UUID, message]
	profiles *actor.Registry[uuid.UUID, profile]
	log      *slog.Logger
}

// NewManager starts the session manager.
func NewManager(conf Config) *Manager {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.ViewDistance <= 0 {
		conf.ViewDistance = 10
	}
	if conf.SimulationDistance <= 0 {
		conf.SimulationDistance = conf.ViewDistance
	}
	m := &Manager{
		conf:     conf,
		children: actor.NewChildren[uuid.UUID, message](actor.UUIDHash),
		profiles: actor.NewRegistry[uuid.UUID, profile](actor.UUIDHash),
		log:      conf.Log,
	}
	h := &manager{Manager: m, data: registry.DataPackets(), tags: registry.TagsPacket()}
	m.s = actor.Spawn[managerMessage](h, actor.Config{Name: "game_logic", Log: conf.Log, Metrics: conf.Metrics})
	return m
}

// Connect creates the session of a player that completed login and returns
// the receiver of its packets. It fails with ErrPlayerNotAway if the player
// already has a session.
func (m *Manager) Connect(ctx context.Context, p ingress.Player, c ingress.Client) (ingress.Inbound, error) {
	res, err := actor.Ask(ctx, m.s, func(r *actor.Reply[connectResult]) managerMessage {
		return connect{player: p, conn: c, Reply: r}
	})
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	return inbound{s: res.s}, nil
}

// Kick disconnects a player with reason.
func (m *Manager) Kick(id uuid.UUID, reason text.Component) error {
	s, ok := m.children.Load(id)
	if !ok {
		return ErrUnknownPlayer
	}
	return s.Send(kick{reason: reason})
}

// PingDropped kicks a player dropped by the ping manager. It is meant as
// ping.Config.OnDrop.
func (m *Manager) PingDropped(id uuid.UUID, reason ping.Reason) {
	m.log.Info("player dropped by ping: "+reason.String(), "uuid", id.String())
	_ = m.Kick(id, text.Translatable("disconnect.timeout"))
}

// HeartbeatEvent kicks a player that timed out. It is meant as
// heartbeat.Config.OnEvent.
func (m *Manager) HeartbeatEvent(ev heartbeat.Event) {
	if ev.Kind != heartbeat.TimedOut {
		return
	}
	m.log.Info("player timed out", "uuid", ev.Player.String(), "last_seen", ev.LastSeen)
	_ = m.Kick(ev.Player, text.Translatable("disconnect.timeout"))
}

// Online reports whether a player has a session.
func (m *Manager) Online(id uuid.UUID) bool {
	_, ok := m.children.Load(id)
	return ok
}

// Len returns the number of sessions.
func (m *Manager) Len() int { return m.children.Len() }

// Close disconnects every player and stops the manager. The subsystems the
// sessions use must still be running.
func (m *Manager) Close() {
	m.children.Range(func(_ uuid.UUID, s *actor.Sender[message]) bool {
		_ = s.Send(kick{reason: ingress.ReasonShutdown.Message()})
		return true
	})
	m.children.CloseAll()
	m.s.Close()
}

// broadcast delivers pk to every session in play except exclude.
func (m *Manager) broadcast(exclude uuid.UUID, pk packet.Packet) {
	m.children.Range(func(id uuid.UUID, s *actor.Sender[message]) bool {
		if id != exclude {
			_ = s.Send(deliver{pk: pk})
		}
		return true
	})
}

// playerInfo returns the player list entries of every player in play.
func (m *Manager) playerInfo() []packet.PlayerInfoEntry {
	var entries []packet.PlayerInfoEntry
	m.profiles.Range(func(id uuid.UUID, p profile) bool {
		entries = append(entries, infoEntry(id, p))
		return true
	})
	return entries
}

func infoEntry(id uuid.UUID, p profile) packet.PlayerInfoEntry {
	return packet.PlayerInfoEntry{
		UUID:       id,
		Name:       p.name,
		Properties: p.properties,
		GameMode:   int32(p.gameMode),
		Listed:     true,
	}
}

const infoActions = packet.PlayerInfoAddPlayer | packet.PlayerInfoUpdateGameMode | packet.PlayerInfoUpdateListed | packet.PlayerInfoUpdateLatency

type managerMessage interface{ sessionManagerMessage() }

type connectResult struct {
	s   *actor.Sender[message]
	err error
}

type connect struct {
	player ingress.Player
	conn   ingress.Client
	*actor.Reply[connectResult]
}

type registryData struct {
	*actor.Reply[[]*packet.RegistryData]
}

type tags struct {
	*actor.Reply[*packet.UpdateTags]
}

func (connect) sessionManagerMessage()      {}
func (registryData) sessionManagerMessage() {}
func (tags) sessionManagerMessage()         {}

type manager struct {
	*Manager
	data []*packet.RegistryData
	tags *packet.UpdateTags
}

func (m *manager) Handle(self *actor.Sender[managerMessage], msg managerMessage) bool {
	switch msg := msg.(type) {
	case connect:
		p := &player{
			Parent: actor.WithParent(self),
			m:      m.Manager,
			id:     msg.player.UUID,
			info:   msg.player,
			conn:   msg.conn,
			log:    m.log.With("player", msg.player.Name),
		}
		s, err := m.children.Spawn(msg.player.UUID, p, actor.Config{Name: "session", Log: m.log, Metrics: m.conf.Metrics})
		if errors.Is(err, actor.ErrChildExists) {
			msg.Send(connectResult{err: ErrPlayerNotAway})
			return false
		}
		_ = s.Send(start{})
		msg.Send(connectResult{s: s})
	case registryData:
		msg.Send(m.data)
	case tags:
		msg.Send(m.tags)
	}
	return false
}

// inbound feeds the packets read by the ingress to a session.
type inbound struct {
	s *actor.Sender[message]
}

func (in inbound) Handle(pk packet.Packet) error {
	return in.s.Send(received{pk: pk})
}

func (in inbound) Closed() {
	_ = in.s.Send(closed{})
}
