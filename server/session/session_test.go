package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/qexed/qexed/server/chat"
	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/entityid"
	"github.com/qexed/qexed/server/heartbeat"
	"github.com/qexed/qexed/server/ingress"
	"github.com/qexed/qexed/server/internal/conntest"
	"github.com/qexed/qexed/server/packetsplit"
	"github.com/qexed/qexed/server/ping"
	"github.com/qexed/qexed/server/playerlist"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/registry"
	"github.com/qexed/qexed/server/rule"
	"github.com/qexed/qexed/server/text"
	"github.com/qexed/qexed/server/title"
	"github.com/qexed/qexed/server/world"
	"github.com/qexed/qexed/server/world/anvil"
)

const wait = 2 * time.Second

// client is an ingress.Client that records what the session sends.
type client struct {
	*conntest.Recorder
	mu     sync.Mutex
	reason *text.Component
	once   sync.Once
	closed chan struct{}
}

func newClient() *client {
	return &client{Recorder: conntest.NewRecorder(), closed: make(chan struct{})}
}

func (c *client) Disconnect(reason text.Component) {
	c.mu.Lock()
	c.reason = &reason
	c.mu.Unlock()
	_ = c.Close()
}

func (c *client) Close() error {
	c.once.Do(func() {
		c.Recorder.Close()
		close(c.closed)
	})
	return nil
}

func (c *client) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000} }

func (c *client) disconnectReason(t *testing.T) text.Component {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(wait):
		t.Fatalf("connection was not closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason == nil {
		t.Fatalf("connection was closed without a reason")
	}
	return *c.reason
}

type env struct {
	m       *Manager
	players *playerlist.List
	ids     *entityid.Allocator
	rules   *rule.Handle
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	t.Cleanup(cancel)

	worlds := world.NewManager(log, nil)
	_, err := worlds.Load(ctx, world.Config{
		UUID:        uuid.New(),
		Name:        "lobby",
		Namespace:   "minecraft:overworld",
		Seed:        42,
		Engine:      world.EngineMiniLobby,
		MapRange:    world.Range{MinX: -1, MinZ: -1, MaxX: 1, MaxZ: 1},
		Spawn:       mgl64.Vec3{0.5, 64, 0.5},
		Root:        t.TempDir(),
		Compression: anvil.Zlib,
		Log:         log,
	})
	if err != nil {
		t.Fatalf("load world: %v", err)
	}

	e := &env{
		players: playerlist.New(20, log),
		ids:     entityid.New(entityid.Config{StartID: 1, MaxID: 1000, Log: log}),
		rules:   rule.New(rule.Default(), log),
	}
	var m *Manager
	pings := ping.NewManager(ping.Config{Interval: time.Minute, MaxRetries: 3, Log: log, OnDrop: func(id uuid.UUID, r ping.Reason) { m.PingDropped(id, r) }})
	beats := heartbeat.NewManager(heartbeat.Config{Timeout: time.Minute, CheckInterval: time.Minute, Log: log, OnEvent: func(ev heartbeat.Event) { m.HeartbeatEvent(ev) }})
	chats := chat.NewManager(log)
	titles := title.NewManager(log)
	split := packetsplit.NewManager(log)
	cmds := cmd.NewManager(cmd.Config{Log: log})
	m = NewManager(Config{
		Players:      e.players,
		Entities:     e.ids,
		Rules:        e.rules,
		Worlds:       worlds,
		Ping:         pings,
		Heartbeat:    beats,
		Split:        split,
		Chat:         chats,
		Commands:     cmds,
		Titles:       titles,
		ViewDistance: 2,
		Log:          log,
	})
	e.m = m
	t.Cleanup(func() {
		m.Close()
		split.Close()
		chats.Close()
		titles.Close()
		cmds.Close()
		pings.Close()
		beats.Close()
		e.ids.Close()
		e.rules.Close()
		e.players.Close()
		_, _ = worlds.Close(context.Background())
	})
	return e
}

func (e *env) connect(t *testing.T, name string) (ingress.Player, *client, ingress.Inbound) {
	t.Helper()
	p := ingress.Player{UUID: ingress.OfflineUUID(name), Name: name}
	c := newClient()
	in, err := e.m.Connect(context.Background(), p, c)
	if err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	if _, ok := conntest.WaitFor[*packet.ServerKnownPacks](c.Recorder, wait); !ok {
		t.Fatalf("known packs were not offered")
	}
	return p, c, in
}

// join runs the configuration exchange and waits for the join sequence.
func (e *env) join(t *testing.T, name string) (ingress.Player, *client, ingress.Inbound) {
	t.Helper()
	p, c, in := e.connect(t, name)
	mustHandle(t, in, &packet.ClientInformation{ClientSettings: packet.ClientSettings{Locale: "en_us", ViewDistance: 2, DisplayedSkinParts: 0x7F}})
	mustHandle(t, in, &packet.ClientKnownPacks{Packs: registry.KnownPacks})
	if _, ok := conntest.WaitFor[*packet.FinishConfiguration](c.Recorder, wait); !ok {
		t.Fatalf("configuration was not finished")
	}
	mustHandle(t, in, &packet.FinishConfigurationAck{})
	if _, ok := conntest.WaitFor[*packet.SetEntityData](c.Recorder, wait); !ok {
		t.Fatalf("join sequence did not complete")
	}
	return p, c, in
}

func mustHandle(t *testing.T, in ingress.Inbound, pk packet.Packet) {
	t.Helper()
	if err := in.Handle(pk); err != nil {
		t.Fatalf("handle %T: %v", pk, err)
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (e *env) online(t *testing.T) int {
	t.Helper()
	c, err := e.players.Counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	return c.Online
}

func TestConfigurationAndJoin(t *testing.T) {
	e := newEnv(t)
	p, c, _ := e.join(t, "Steve")

	pks := c.Packets()
	if _, ok := pks[0].(*packet.ServerKnownPacks); !ok {
		t.Fatalf("expected known packs first, got %T", pks[0])
	}
	var order []string
	for _, pk := range pks {
		switch pk.(type) {
		case *packet.RegistryData:
			if len(order) == 0 || order[len(order)-1] != "registry" {
				order = append(order, "registry")
			}
		case *packet.UpdateTags:
			order = append(order, "tags")
		case *packet.UpdateEnabledFeatures:
			order = append(order, "features")
		case *packet.FinishConfiguration:
			order = append(order, "finish")
		case *packet.Login:
			order = append(order, "login")
		}
	}
	if strings.Join(order, ",") != "registry,tags,features,finish,login" {
		t.Fatalf("unexpected configuration order %v", order)
	}
	if n := len(conntest.Of[*packet.RegistryData](c.Recorder)); n != len(registry.DataPackets()) {
		t.Fatalf("expected %d registries, got %d", len(registry.DataPackets()), n)
	}

	login := conntest.Of[*packet.Login](c.Recorder)[0]
	if login.EntityID != 1 || login.DimensionName != "minecraft:overworld" || login.MaxPlayers != 20 || login.ViewDistance != 2 {
		t.Fatalf("unexpected login %+v", login)
	}
	if login.HashedSeed != hashedSeed(42) || hashedSeed(42) == hashedSeed(43) {
		t.Fatalf("unexpected hashed seed %d", login.HashedSeed)
	}
	if len(conntest.Of[*packet.Commands](c.Recorder)) != 1 {
		t.Fatalf("expected the command graph")
	}
	if ev, ok := conntest.WaitFor[*packet.GameEvent](c.Recorder, wait); !ok || ev.Event != packet.GameEventWaitForChunks {
		t.Fatalf("expected the wait for chunks game event, got %+v", ev)
	}
	fin, ok := conntest.WaitFor[*packet.ChunkBatchFinished](c.Recorder, wait)
	if !ok || fin.BatchSize != 9 {
		t.Fatalf("expected the 9 chunks of the map, got %+v", fin)
	}
	info, ok := conntest.WaitFor[*packet.PlayerInfoUpdate](c.Recorder, wait)
	if !ok || len(info.Entries) != 1 || info.Entries[0].UUID != p.UUID {
		t.Fatalf("expected the player list with the player, got %+v", info)
	}
	skin := conntest.Of[*packet.SetEntityData](c.Recorder)[0]
	if skin.EntityID != 1 || skin.Metadata[0].Index != packet.MetadataSkinParts || skin.Metadata[0].Byte != 0x7F {
		t.Fatalf("unexpected skin parts %+v", skin)
	}

	if !e.m.Online(p.UUID) || e.m.Len() != 1 || e.online(t) != 1 {
		t.Fatalf("expected one online session")
	}
}

func TestSecondSessionIsRefused(t *testing.T) {
	e := newEnv(t)
	p, c, _ := e.join(t, "Steve")

	_, err := e.m.Connect(context.Background(), p, newClient())
	if !errors.Is(err, ErrPlayerNotAway) {
		t.Fatalf("expected ErrPlayerNotAway, got %v", err)
	}
	select {
	case <-c.closed:
		t.Fatalf("the first session must be kept")
	default:
	}
	if e.online(t) != 1 {
		t.Fatalf("expected one online player")
	}
}

func TestFinishAckBeforeOfferIsAViolation(t *testing.T) {
	e := newEnv(t)
	p, c, in := e.connect(t, "Steve")
	mustHandle(t, in, &packet.FinishConfigurationAck{})

	reason := c.disconnectReason(t)
	if reason.Translate != "multiplayer.disconnect.invalid_packet" {
		t.Fatalf("unexpected reason %+v", reason)
	}
	waitUntil(t, "the session to end", func() bool { return !e.m.Online(p.UUID) })
	waitUntil(t, "the player list to empty", func() bool { return e.online(t) == 0 })
	if len(conntest.Of[*packet.Login](c.Recorder)) != 0 {
		t.Fatalf("no play packet may be sent before the acknowledgement")
	}
}

func TestLeaveNotifiesOthers(t *testing.T) {
	e := newEnv(t)
	alex, _, alexIn := e.join(t, "Alex")
	_, steve, _ := e.join(t, "Steve")

	if _, ok := conntest.WaitFor[*packet.SystemChat](steve.Recorder, wait); !ok {
		t.Fatalf("expected a join message")
	}
	steve.Reset()
	alexIn.Closed()

	rm, ok := conntest.WaitFor[*packet.PlayerInfoRemove](steve.Recorder, wait)
	if !ok || len(rm.UUIDs) != 1 || rm.UUIDs[0] != alex.UUID {
		t.Fatalf("expected Alex to be removed from the tab list, got %+v", rm)
	}
	msg, ok := conntest.WaitFor[*packet.SystemChat](steve.Recorder, wait)
	if !ok || msg.Content.Translate != "multiplayer.player.left" || msg.Content.With[0].Text != "Alex" {
		t.Fatalf("expected a quit message, got %+v", msg)
	}
	waitUntil(t, "Alex to leave the player list", func() bool { return e.online(t) == 1 })

	st, err := e.ids.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Allocated != 1 {
		t.Fatalf("expected Alex's entity id to be released, got %+v", st)
	}
}

func TestPlayPacketsAreRouted(t *testing.T) {
	e := newEnv(t)
	_, alex, alexIn := e.join(t, "Alex")
	_, steve, _ := e.join(t, "Steve")
	waitUntil(t, "Alex to see Steve", func() bool {
		return len(conntest.Of[*packet.PlayerInfoUpdate](alex.Recorder)) == 2
	})
	steve.Reset()

	mustHandle(t, alexIn, &packet.Chat{Message: "hello there"})
	waitUntil(t, "the chat line", func() bool {
		for _, m := range conntest.Of[*packet.SystemChat](steve.Recorder) {
			if strings.Contains(m.Content.String(), "hello there") {
				return true
			}
		}
		return false
	})

	alex.Reset()
	mustHandle(t, alexIn, &packet.MovePlayerPos{X: 40, Y: 64, Z: 0.5})
	centre, ok := conntest.WaitFor[*packet.SetChunkCacheCenter](alex.Recorder, wait)
	if !ok || centre.ChunkX != 2 || centre.ChunkZ != 0 {
		t.Fatalf("expected a new chunk centre, got %+v", centre)
	}
	if _, ok := conntest.WaitFor[*packet.ChunkBatchFinished](alex.Recorder, wait); !ok {
		t.Fatalf("expected a chunk batch after crossing a chunk border")
	}

	alex.Reset()
	mustHandle(t, alexIn, &packet.PlayClientInformation{ClientSettings: packet.ClientSettings{DisplayedSkinParts: 0x01}})
	skin, ok := conntest.WaitFor[*packet.SetEntityData](alex.Recorder, wait)
	if !ok || skin.Metadata[0].Byte != 0x01 {
		t.Fatalf("expected updated skin parts, got %+v", skin)
	}
}

func TestKick(t *testing.T) {
	e := newEnv(t)
	p, c, _ := e.join(t, "Steve")
	if err := e.m.Kick(p.UUID, text.Plain("bye")); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if reason := c.disconnectReason(t); reason.Text != "bye" {
		t.Fatalf("unexpected reason %+v", reason)
	}
	waitUntil(t, "the session to end", func() bool { return !e.m.Online(p.UUID) })
	if err := e.m.Kick(p.UUID, text.Plain("again")); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestHeartbeatTimeoutKicks(t *testing.T) {
	e := newEnv(t)
	p, c, _ := e.join(t, "Steve")
	e.m.HeartbeatEvent(heartbeat.Event{Player: p.UUID, Kind: heartbeat.Disconnected})
	select {
	case <-c.closed:
		t.Fatalf("a disconnect event must not kick")
	case <-time.After(50 * time.Millisecond):
	}
	e.m.HeartbeatEvent(heartbeat.Event{Player: p.UUID, Kind: heartbeat.TimedOut})
	if reason := c.disconnectReason(t); reason.Translate != "disconnect.timeout" {
		t.Fatalf("unexpected reason %+v", reason)
	}
}

func TestRulesAreCheckedAtJoin(t *testing.T) {
	e := newEnv(t)
	e.rules.Local.GameMode = rule.Creative
	e.rules.Local.ImmediateRespawn = true
	if err := e.rules.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_, c, _ := e.join(t, "Steve")
	login := conntest.Of[*packet.Login](c.Recorder)[0]
	if login.GameMode != uint8(rule.Creative) || login.EnableRespawnScreen {
		t.Fatalf("rules were not applied: %+v", login)
	}
	var immediate bool
	for _, ev := range conntest.Of[*packet.GameEvent](c.Recorder) {
		immediate = immediate || ev.Event == packet.GameEventImmediateRespawn
	}
	if !immediate {
		t.Fatalf("expected the immediate respawn game event")
	}
}

func TestChatSpamKicks(t *testing.T) {
	e := newEnv(t)
	p, c, in := e.join(t, "Steve")
	for range chatBurst {
		mustHandle(t, in, &packet.Chat{Message: "spam"})
	}
	select {
	case <-c.closed:
		t.Fatalf("a burst of %d messages must be allowed", chatBurst)
	case <-time.After(50 * time.Millisecond):
	}
	// Commands count towards the same limit.
	mustHandle(t, in, &packet.ChatCommand{Command: "list"})
	if reason := c.disconnectReason(t); reason.Translate != "disconnect.spam" {
		t.Fatalf("unexpected reason %+v", reason)
	}
	waitUntil(t, "the session to end", func() bool { return !e.m.Online(p.UUID) })
}

func TestBlockPosFloors(t *testing.T) {
	for _, tc := range []struct {
		v       mgl64.Vec3
		x, y, z int32
	}{
		{v: mgl64.Vec3{0.5, 64, 0.5}, x: 0, y: 64, z: 0},
		{v: mgl64.Vec3{-0.5, 63.9, -1}, x: -1, y: 63, z: -1},
		{v: mgl64.Vec3{-16.01, -64, 15.99}, x: -17, y: -64, z: 15},
	} {
		pos := blockPos(tc.v)
		if pos.X != tc.x || pos.Y != tc.y || pos.Z != tc.z {
			t.Fatalf("block of %v: got %+v, want %d %d %d", tc.v, pos, tc.x, tc.y, tc.z)
		}
	}
}

func TestCommandSourceFollowsClientLocale(t *testing.T) {
	p := &player{id: uuid.New(), info: ingress.Player{Name: "Steve"}}
	src := p.commandSource(nil)
	if src.Locale() != "en_us" {
		t.Fatalf("locale before any settings: %q", src.Locale())
	}
	p.applySettings(packet.ClientSettings{Locale: "de_de"})
	if src.Locale() != "de_de" {
		t.Fatalf("locale not updated: %q", src.Locale())
	}
	p.applySettings(packet.ClientSettings{Locale: "sv_se"})
	if src.Locale() != "sv_se" || p.settings.Locale != "sv_se" {
		t.Fatalf("locale not updated: %q", src.Locale())
	}
}
