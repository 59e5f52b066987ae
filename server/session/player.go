package session

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/chat"
	"github.com/qexed/qexed/server/entityid"
	"github.com/qexed/qexed/server/ingress"
	"github.com/qexed/qexed/server/packetsplit"
	"github.com/qexed/qexed/server/playerlist"
	"github.com/qexed/qexed/server/protocol"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/registry"
	"github.com/qexed/qexed/server/rule"
	"github.com/qexed/qexed/server/text"
	"github.com/qexed/qexed/server/world"
	"golang.org/x/time/rate"
)

type message interface{ sessionMessage() }

type start struct{}

type received struct{ pk packet.Packet }

type closed struct{}

type kick struct{ reason text.Component }

type deliver struct{ pk packet.Packet }

type moved struct{ m packetsplit.Movement }

type settings struct{ s packet.ClientSettings }

type clientCommand struct{ action int32 }

func (start) sessionMessage()         {}
func (received) sessionMessage()      {}
func (closed) sessionMessage()        {}
func (kick) sessionMessage()          {}
func (deliver) sessionMessage()       {}
func (moved) sessionMessage()         {}
func (settings) sessionMessage()      {}
func (clientCommand) sessionMessage() {}

// stage is how far a session got through configuration.
type stage uint8

const (
	// awaitingPacks: ServerKnownPacks was sent.
	awaitingPacks stage = iota
	// awaitingAck: FinishConfiguration was sent.
	awaitingAck
	playing
)

// errViolation is a packet that is not allowed at the session's stage.
var errViolation = errors.New("unexpected packet")

// player is the session actor of one player.
type player struct {
	actor.Parent[managerMessage]
	m    *Manager
	self *actor.Sender[message]
	id   uuid.UUID
	info ingress.Player
	conn ingress.Client
	log  *slog.Logger

	stage    stage
	settings packet.ClientSettings
	// locale mirrors settings.Locale for readers outside the actor.
	locale   atomic.Pointer[string]
	rules    *rule.Handle
	entityID int32
	world    *world.World
	pos      mgl64.Vec3
	centre   world.ChunkPos

	// Cleanup flags, one per subsystem the player was added to.
	listed, pinged, watched, allocated, inPlay bool
}

func (p *player) Handle(self *actor.Sender[message], msg message) bool {
	p.self = self
	switch msg := msg.(type) {
	case start:
		if err := p.start(); err != nil {
			return p.fail(err)
		}
	case received:
		_ = p.m.conf.Heartbeat.Beat(p.id)
		if err := p.receive(msg.pk); err != nil {
			return p.fail(err)
		}
	case deliver:
		if p.stage == playing {
			if err := p.conn.SendPacket(msg.pk); err != nil {
				return p.fail(err)
			}
		}
	case moved:
		if err := p.move(msg.m); err != nil {
			return p.fail(err)
		}
	case settings:
		p.applySettings(msg.s)
		if err := p.sendSkinParts(); err != nil {
			return p.fail(err)
		}
	case clientCommand:
		if msg.action == packet.ClientCommandRespawn {
			return p.fail(p.teleport(p.world.Spawn()))
		}
	case kick:
		p.log.Info("player kicked: " + msg.reason.String())
		p.conn.Disconnect(msg.reason)
		return true
	case closed:
		return true
	}
	return false
}

// fail ends the session if err is set. A violation is reported to the client
// before the connection is closed.
func (p *player) fail(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, errViolation):
		p.log.Info("protocol violation: " + err.Error())
		p.conn.Disconnect(ingress.ReasonProtocolViolation.Message())
	case errors.Is(err, playerlist.ErrFull):
		p.conn.Disconnect(ingress.ReasonServerFull.Message())
	case errors.Is(err, playerlist.ErrAlreadyOnline):
		p.conn.Disconnect(ingress.ReasonPlayerNotAway.Message())
	default:
		p.log.Error("session ended: " + err.Error())
		p.conn.Disconnect(ingress.ReasonInternal.Message())
	}
	return true
}

// start joins the player list, starts pinging and opens the configuration
// exchange.
func (p *player) start() error {
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	conf := p.m.conf
	if err := conf.Players.Join(ctx, playerlist.Player{UUID: p.id, Name: p.info.Name}); err != nil {
		return err
	}
	p.listed = true
	if err := conf.Ping.Connect(ctx, p.id, p.conn, packet.StateConfiguration); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	p.pinged = true
	if err := conf.Heartbeat.Watch(ctx, p.id, packet.StateConfiguration, p.self.Len); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	p.watched = true
	rules, err := conf.Rules.Clone(ctx)
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	p.rules = rules
	return p.conn.SendPacket(&packet.ServerKnownPacks{Packs: registry.KnownPacks})
}

func (p *player) receive(pk packet.Packet) error {
	if p.stage == playing {
		if _, ok := pk.(*packet.ConfigurationAcknowledged); ok {
			return fmt.Errorf("%w: configuration acknowledged without a request", errViolation)
		}
		return p.m.conf.Split.Dispatch(p.id, pk)
	}
	switch pk := pk.(type) {
	case *packet.ClientInformation:
		p.applySettings(pk.ClientSettings)
	case *packet.ClientKnownPacks:
		if p.stage != awaitingPacks {
			return fmt.Errorf("%w: known packs sent twice", errViolation)
		}
		return p.sendRegistries()
	case *packet.ConfigPong:
		_ = p.m.conf.Ping.Pong(p.id, int64(pk.PingID))
	case *packet.FinishConfigurationAck:
		if p.stage != awaitingAck {
			return fmt.Errorf("%w: configuration finished before it was offered", errViolation)
		}
		return p.play()
	}
	return nil
}

// sendRegistries completes configuration: the registries and tags, fetched
// from the manager, then the enabled features.
func (p *player) sendRegistries() error {
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	data, err := actor.Ask(ctx, p.Parent.Parent(), func(r *actor.Reply[[]*packet.RegistryData]) managerMessage { return registryData{r} })
	if err != nil {
		return fmt.Errorf("registry data: %w", err)
	}
	tagsPk, err := actor.Ask(ctx, p.Parent.Parent(), func(r *actor.Reply[*packet.UpdateTags]) managerMessage { return tags{r} })
	if err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	for _, pk := range data {
		if err := p.conn.SendPacket(pk); err != nil {
			return err
		}
	}
	for _, pk := range []packet.Packet{
		tagsPk,
		&packet.UpdateEnabledFeatures{Features: registry.EnabledFeatures},
		&packet.FinishConfiguration{},
	} {
		if err := p.conn.SendPacket(pk); err != nil {
			return err
		}
	}
	p.stage = awaitingAck
	return nil
}

// play runs the join sequence after the client acknowledged the end of
// configuration.
func (p *player) play() error {
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()
	conf := p.m.conf

	p.stage = playing
	_ = conf.Ping.SetPhase(p.id, packet.StatePlay)
	_ = conf.Heartbeat.SetPhase(p.id, packet.StatePlay)
	if err := p.rules.Check(ctx); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	rules := p.rules.Local

	w, ok := conf.Worlds.Default()
	if !ok {
		return errors.New("no world loaded")
	}
	p.world, p.pos = w, w.Spawn()
	p.centre = world.ChunkAt(p.pos)

	id, err := conf.Entities.Allocate(ctx)
	if err != nil {
		return fmt.Errorf("entity id: %w", err)
	}
	if id == entityid.Exhausted {
		return errors.New("entity ids exhausted")
	}
	p.entityID, p.allocated = id, true

	counts, err := conf.Players.Counts(ctx)
	if err != nil {
		return fmt.Errorf("player counts: %w", err)
	}
	graph, err := conf.Commands.Graph(ctx)
	if err != nil {
		return fmt.Errorf("command graph: %w", err)
	}
	dimType, _ := registry.Lookup(registry.DimensionType, w.Namespace())
	spawn := blockPos(p.pos)

	seq := []packet.Packet{
		&packet.Login{
			EntityID:            id,
			Hardcore:            rules.Hardcore,
			Dimensions:          dimensions(conf.Worlds),
			MaxPlayers:          int32(counts.Max),
			ViewDistance:        int32(conf.ViewDistance),
			SimulationDistance:  int32(conf.SimulationDistance),
			ReducedDebugInfo:    rules.ReducedDebugInfo,
			EnableRespawnScreen: !rules.ImmediateRespawn,
			LimitedCrafting:     rules.LimitedCrafting,
			DimensionType:       dimType,
			DimensionName:       w.Namespace(),
			HashedSeed:          hashedSeed(w.Seed()),
			GameMode:            uint8(rules.GameMode),
			PreviousGameMode:    -1,
			SeaLevel:            63,
		},
		graph,
		&packet.UpdateAdvancements{Reset: true},
		&packet.SetDefaultSpawnPosition{Position: spawn},
		positionPacket(p.pos),
		&packet.GameEvent{Event: packet.GameEventWaitForChunks},
	}
	if rules.ImmediateRespawn {
		seq = append(seq, &packet.GameEvent{Event: packet.GameEventImmediateRespawn, Value: 1})
	}
	if rules.LimitedCrafting {
		seq = append(seq, &packet.GameEvent{Event: packet.GameEventLimitedCrafting, Value: 1})
	}
	seq = append(seq, &packet.SetChunkCacheCenter{ChunkX: int32(p.centre[0]), ChunkZ: int32(p.centre[1])})
	for _, pk := range seq {
		if err := p.conn.SendPacket(pk); err != nil {
			return err
		}
	}
	if _, err := w.Join(ctx, p.id, p.pos, conf.ViewDistance, p.conn); err != nil {
		return fmt.Errorf("join world: %w", err)
	}

	if err := p.connect(ctx); err != nil {
		return err
	}

	prof := profile{name: p.info.Name, properties: p.info.Properties, gameMode: rules.GameMode}
	p.m.profiles.Store(p.id, prof)
	p.inPlay = true
	if err := p.conn.SendPacket(&packet.PlayerInfoUpdate{Actions: infoActions, Entries: p.m.playerInfo()}); err != nil {
		return err
	}
	p.m.broadcast(p.id, &packet.PlayerInfoUpdate{Actions: infoActions, Entries: []packet.PlayerInfoEntry{infoEntry(p.id, prof)}})
	if err := p.sendSkinParts(); err != nil {
		return err
	}
	if rules.AnnounceJoins {
		_ = conf.Chat.Broadcast(uuid.Nil, announcement("multiplayer.player.joined", p.info.Name))
	}
	p.log.Info("player joined", "entity_id", id, "world", w.Name())
	return nil
}

// connect adds the player to the per-player subsystems of the play state.
func (p *player) connect(ctx context.Context) error {
	conf := p.m.conf
	if err := conf.Chat.Connect(ctx, p.id, p.info.Name, p.conn); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := conf.Commands.Connect(ctx, p.id, p.commandSource(conf.Chat), p.conn); err != nil {
		return fmt.Errorf("commands: %w", err)
	}
	if err := conf.Titles.Connect(ctx, p.id, p.conn); err != nil {
		return fmt.Errorf("titles: %w", err)
	}
	if err := conf.Split.Connect(ctx, p.id, p.routes()); err != nil {
		return fmt.Errorf("packet split: %w", err)
	}
	return nil
}

// A player may send one chat message or command a second, with bursts of up
// to chatBurst. Going faster is a kick for spamming.
const (
	chatRate  = rate.Limit(1)
	chatBurst = 10
)

// routes sends every kind of play packet to the subsystem serving it. Routes
// run on the split actor; state of this session is only touched through its
// mailbox.
func (p *player) routes() packetsplit.Routes {
	conf, id, self := p.m.conf, p.id, p.self
	spam := rate.NewLimiter(chatRate, chatBurst)
	allowChat := func() bool {
		if spam.Allow() {
			return true
		}
		_ = self.Send(kick{reason: text.Translatable("disconnect.spam")})
		return false
	}
	return packetsplit.Routes{
		Chat: func(pk *packet.Chat) {
			if allowChat() {
				_ = conf.Chat.Chat(id, pk.Message)
			}
		},
		Command: func(pk *packet.ChatCommand) {
			if allowChat() {
				_ = conf.Commands.ExecuteAs(id, pk.Command)
			}
		},
		Suggestion: func(pk *packet.CommandSuggestion) { _ = conf.Commands.Suggest(id, pk) },
		KeepAlive:  func(pk *packet.KeepAliveResponse) { _ = conf.Ping.Pong(id, pk.KeepAliveID) },
		Movement:   func(m packetsplit.Movement) { _ = self.Send(moved{m: m}) },
		Settings: func(pk *packet.PlayClientInformation) {
			_ = self.Send(settings{s: pk.ClientSettings})
		},
		ClientCommand: func(pk *packet.ClientCommand) { _ = self.Send(clientCommand{action: pk.Action}) },
	}
}

// move records a movement and sends the chunks that came into view when the
// player crossed into another chunk.
func (p *player) move(m packetsplit.Movement) error {
	if !m.HasPos || p.world == nil {
		return nil
	}
	p.pos = m.Pos
	centre := world.ChunkAt(m.Pos)
	if centre == p.centre {
		return nil
	}
	old := p.centre
	p.centre = centre
	if err := p.conn.SendPacket(&packet.SetChunkCacheCenter{ChunkX: int32(centre[0]), ChunkZ: int32(centre[1])}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()
	if err := p.conn.SendPacket(&packet.ChunkBatchStart{}); err != nil {
		return err
	}
	r := int64(p.m.conf.ViewDistance)
	sent := 0
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			if dx*dx+dz*dz > r*r {
				continue
			}
			pos := centre.Add(dx, dz)
			if ox, oz := pos[0]-old[0], pos[1]-old[1]; ox*ox+oz*oz <= r*r {
				continue
			}
			err := p.world.SendChunk(ctx, pos, p.id, p.pos, p.conn)
			switch {
			case err == nil:
				sent++
			case errors.Is(err, world.ErrChunkNotLoaded):
			default:
				return fmt.Errorf("send chunk %v: %w", pos, err)
			}
		}
	}
	return p.conn.SendPacket(&packet.ChunkBatchFinished{BatchSize: int32(sent)})
}

func (p *player) teleport(pos mgl64.Vec3) error {
	p.pos = pos
	return p.conn.SendPacket(positionPacket(pos))
}

// sendSkinParts shows the client its own skin layers.
func (p *player) sendSkinParts() error {
	if p.stage != playing {
		return nil
	}
	return p.conn.SendPacket(&packet.SetEntityData{
		EntityID: p.entityID,
		Metadata: []packet.EntityMetadata{{
			Index: packet.MetadataSkinParts,
			Type:  packet.MetadataByte,
			Byte:  int8(p.settings.DisplayedSkinParts),
		}},
	})
}

// Stopped removes the player from every subsystem it was added to.
func (p *player) Stopped() {
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()
	conf := p.m.conf

	if p.self != nil {
		p.m.children.Forget(p.id, p.self)
	}
	conf.Split.Disconnect(p.id)
	conf.Chat.Disconnect(p.id)
	conf.Commands.Disconnect(p.id)
	conf.Titles.Disconnect(p.id)
	if p.pinged {
		conf.Ping.Disconnect(p.id)
	}
	if p.watched {
		_ = conf.Heartbeat.Disconnect(p.id)
	}
	if p.listed {
		if _, err := conf.Players.Left(ctx, p.id); err != nil {
			p.log.Error("leave player list: " + err.Error())
		}
	}
	if p.allocated {
		if _, err := conf.Entities.Deallocate(ctx, p.entityID); err != nil {
			p.log.Error("release entity id: " + err.Error())
		}
	}
	if p.inPlay {
		p.m.profiles.Delete(p.id)
		p.m.broadcast(p.id, &packet.PlayerInfoRemove{UUIDs: []uuid.UUID{p.id}})
		if p.rules.Local.AnnounceJoins {
			_ = conf.Chat.Broadcast(p.id, announcement("multiplayer.player.left", p.info.Name))
		}
		p.log.Info("player left")
	}
	_ = p.conn.Close()
}

func positionPacket(pos mgl64.Vec3) *packet.PlayerPosition {
	return &packet.PlayerPosition{TeleportID: 1, X: pos[0], Y: pos[1], Z: pos[2]}
}

func announcement(key, name string) text.Component {
	c := text.Translatable(key, name)
	c.Color = "yellow"
	return c
}

// dimensions lists the dimension of every loaded world.
func dimensions(m *world.Manager) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range m.Worlds() {
		if !seen[w.Namespace()] {
			seen[w.Namespace()] = true
			out = append(out, w.Namespace())
		}
	}
	return out
}

// hashedSeed is the first eight bytes of the SHA-256 of the seed, as clients
// expect it for biome noise.
func hashedSeed(seed int64) int64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(seed))
	sum := sha256.Sum256(b[:])
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

func (p *player) applySettings(s packet.ClientSettings) {
	p.settings = s
	locale := s.Locale
	p.locale.Store(&locale)
}

// blockPos is the block holding v.
func blockPos(v mgl64.Vec3) protocol.BlockPos {
	return protocol.BlockPos{
		X: int32(math.Floor(v[0])),
		Y: int32(math.Floor(v[1])),
		Z: int32(math.Floor(v[2])),
	}
}

func (p *player) commandSource(c *chat.Manager) source {
	return source{id: p.id, name: p.info.Name, chat: c, locale: &p.locale}
}

// source is the command source of a player. Command output goes to the
// player's chat child.
type source struct {
	id     uuid.UUID
	name   string
	chat   *chat.Manager
	locale *atomic.Pointer[string]
}

func (s source) Name() string { return s.name }

// Locale is the language the client last reported, en_us until it did.
func (s source) Locale() string {
	if l := s.locale.Load(); l != nil && *l != "" {
		return *l
	}
	return "en_us"
}

func (s source) SendMessage(c text.Component) { _ = s.chat.Send(s.id, c) }
