package builtin

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/access"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/chat"
	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/internal/conntest"
	"github.com/qexed/qexed/server/playerlist"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/rule"
	"github.com/qexed/qexed/server/text"
	"github.com/qexed/qexed/server/title"
	"github.com/qexed/qexed/server/world"
)

type fakeServer struct {
	list      *playerlist.List
	chat      *chat.Manager
	titles    *title.Manager
	worlds    *world.Manager
	rules     *rule.Handle
	blacklist *access.List
	whitelist *access.List
	metrics   *actor.Metrics

	mu     sync.Mutex
	kicked []uuid.UUID
	closed bool
}

func (s *fakeServer) PlayerList() *playerlist.List { return s.list }
func (s *fakeServer) Chat() *chat.Manager          { return s.chat }
func (s *fakeServer) Titles() *title.Manager       { return s.titles }
func (s *fakeServer) Worlds() *world.Manager       { return s.worlds }
func (s *fakeServer) Rules() *rule.Handle          { return s.rules }
func (s *fakeServer) Blacklist() *access.List      { return s.blacklist }
func (s *fakeServer) Whitelist() *access.List      { return s.whitelist }
func (s *fakeServer) StartTime() time.Time         { return time.Now() }
func (s *fakeServer) Metrics() *actor.Metrics      { return s.metrics }

func (s *fakeServer) Kick(_ context.Context, id uuid.UUID, _ text.Component) error {
	s.mu.Lock()
	s.kicked = append(s.kicked, id)
	s.mu.Unlock()
	return nil
}

func (s *fakeServer) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type source struct {
	name string
	mu   sync.Mutex
	msgs []string
}

func (s *source) Name() string { return s.name }

func (s *source) SendMessage(c text.Component) {
	s.mu.Lock()
	s.msgs = append(s.msgs, c.String())
	s.mu.Unlock()
}

func (s *source) wait(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		msgs := slices.Clone(s.msgs)
		s.mu.Unlock()
		if len(msgs) >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %v messages, got %q", n, msgs)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type env struct {
	srv  *fakeServer
	cmds *cmd.Manager
	recs map[string]*conntest.Recorder
	ids  map[string]uuid.UUID
}

func newEnv(t *testing.T, players ...string) *env {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	blacklist, err := access.New(access.Blacklist, access.Config{Enable: true, Log: log})
	if err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	whitelist, err := access.New(access.Whitelist, access.Config{Log: log})
	if err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	srv := &fakeServer{
		list:      playerlist.New(20, log),
		chat:      chat.NewManager(log),
		titles:    title.NewManager(log),
		worlds:    world.NewManager(log, nil),
		rules:     rule.New(rule.Default(), log),
		blacklist: blacklist,
		whitelist: whitelist,
		metrics:   actor.NewMetrics(),
	}
	cmds := cmd.NewManager(cmd.Config{PlayerPermissions: PlayerPermissions, Log: log, Metrics: srv.metrics})
	t.Cleanup(func() {
		cmds.Close()
		srv.chat.Close()
		srv.titles.Close()
		srv.list.Close()
		srv.rules.Close()
		blacklist.Close()
		whitelist.Close()
		_, _ = srv.worlds.Close(ctx)
	})
	if err := Register(ctx, cmds, srv); err != nil {
		t.Fatalf("register: %v", err)
	}
	e := &env{srv: srv, cmds: cmds, recs: map[string]*conntest.Recorder{}, ids: map[string]uuid.UUID{}}
	for _, name := range players {
		id, rec := uuid.New(), conntest.NewRecorder()
		if err := srv.list.Join(ctx, playerlist.Player{UUID: id, Name: name}); err != nil {
			t.Fatalf("join: %v", err)
		}
		if err := srv.chat.Connect(ctx, id, name, rec); err != nil {
			t.Fatalf("chat connect: %v", err)
		}
		if err := srv.titles.Connect(ctx, id, rec); err != nil {
			t.Fatalf("title connect: %v", err)
		}
		e.recs[name], e.ids[name] = rec, id
	}
	return e
}

func (e *env) console(t *testing.T, line string) *source {
	t.Helper()
	src := &source{name: "Server"}
	if err := e.cmds.Execute(context.Background(), cmd.CommandData{Source: src, IsCmd: true}, line); err != nil {
		t.Fatalf("execute %q: %v", line, err)
	}
	return src
}

func (e *env) as(t *testing.T, name, line string) *source {
	t.Helper()
	src := &source{name: name}
	data := cmd.CommandData{Source: src, Player: e.ids[name], Permissions: cmd.Grant(PlayerPermissions...)}
	if err := e.cmds.Execute(context.Background(), data, line); err != nil {
		t.Fatalf("execute %q: %v", line, err)
	}
	return src
}

func waitChat(t *testing.T, rec *conntest.Recorder, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, pk := range conntest.Of[*packet.SystemChat](rec) {
			if pk.Content.String() == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no chat message %q", want)
}

func TestList(t *testing.T) {
	e := newEnv(t, "zed", "Alice", "bob")
	msgs := e.console(t, "list").wait(t, 2)
	if msgs[0] != "There are 3/20 players online." || msgs[1] != "Alice, bob, zed" {
		t.Fatalf("unexpected list output %q", msgs)
	}
}

func TestTellAndSay(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	msgs := e.as(t, "alice", "tell bob meet me at spawn").wait(t, 1)
	if msgs[0] != "You whisper to bob: meet me at spawn" {
		t.Fatalf("unexpected tell output %q", msgs)
	}
	waitChat(t, e.recs["bob"], "alice whispers to you: meet me at spawn")

	e.console(t, "say §eRestart in 5 minutes")
	for _, name := range []string{"alice", "bob"} {
		waitChat(t, e.recs[name], "[Server] Restart in 5 minutes")
	}
	msgs = e.as(t, "alice", "w nobody hi").wait(t, 1)
	if !strings.HasPrefix(msgs[0], "No player was found") {
		t.Fatalf("unexpected output %q", msgs)
	}
}

func TestStopNeedsPermission(t *testing.T) {
	e := newEnv(t, "alice")
	if msgs := e.as(t, "alice", "stop").wait(t, 1); msgs[0] != cmd.MessagePermission {
		t.Fatalf("expected a permission error, got %q", msgs)
	}
	e.console(t, "stop").wait(t, 1)
	e.srv.mu.Lock()
	defer e.srv.mu.Unlock()
	if !e.srv.closed {
		t.Fatalf("stop from the console must close the server")
	}
}

func TestRuleCommand(t *testing.T) {
	e := newEnv(t)
	msgs := e.console(t, "rule doImmediateRespawn true").wait(t, 1)
	if msgs[0] != "Rule doImmediateRespawn is now set to: true" {
		t.Fatalf("unexpected output %q", msgs)
	}
	ctx := context.Background()
	if err := e.srv.rules.Check(ctx); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !e.srv.rules.Local.ImmediateRespawn {
		t.Fatalf("the rule change was not committed")
	}
	if msgs := e.console(t, "rule spawnRadius far").wait(t, 1); !strings.HasPrefix(msgs[0], "Invalid value") {
		t.Fatalf("unexpected output %q", msgs)
	}
}

func TestBlacklistAddKicksOnlinePlayer(t *testing.T) {
	e := newEnv(t, "griefer", "friend")
	msgs := e.console(t, "blacklist add Griefer").wait(t, 1)
	if msgs[0] != "Added griefer to the blacklist." {
		t.Fatalf("unexpected output %q", msgs)
	}
	e.srv.mu.Lock()
	kicked := slices.Clone(e.srv.kicked)
	e.srv.mu.Unlock()
	if len(kicked) != 1 || kicked[0] != e.ids["griefer"] {
		t.Fatalf("expected griefer to be kicked, got %v", kicked)
	}
	msgs = e.console(t, "blacklist list").wait(t, 2)
	if msgs[0] != "Blacklist (enabled): 1 player(s)." || msgs[1] != "griefer" {
		t.Fatalf("unexpected list output %q", msgs)
	}
}

func TestTitleBroadcast(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	if msgs := e.console(t, "title @a title Welcome").wait(t, 1); msgs[0] != "Showing new title for 2 players" {
		t.Fatalf("unexpected output %q", msgs)
	}
	for _, name := range []string{"alice", "bob"} {
		pk, ok := conntest.WaitFor[*packet.SetTitleText](e.recs[name], time.Second)
		if !ok || pk.Text.Text != "Welcome" {
			t.Fatalf("%v did not get the title", name)
		}
	}
}

func TestHelpHidesCommandsWithoutPermission(t *testing.T) {
	e := newEnv(t, "alice")
	msgs := e.as(t, "alice", "help").wait(t, 2)
	for _, m := range msgs {
		if strings.HasPrefix(m, "/stop") {
			t.Fatalf("help must not list commands the player may not run")
		}
	}
	if msgs := e.as(t, "alice", "help kick").wait(t, 1); !strings.HasPrefix(msgs[0], "Unknown command: kick") {
		t.Fatalf("expected kick to be unknown to a player, got %q", msgs)
	}
	if msgs := e.console(t, "help tell").wait(t, 3); msgs[1] != "/tell <player> <message>" {
		t.Fatalf("unexpected usage %q", msgs)
	}
}

func TestHelpDescribesParameters(t *testing.T) {
	e := newEnv(t)
	msgs := e.console(t, "help help").wait(t, 4)
	if msgs[1] != "/help [command]" || msgs[2] != "  command: The command to describe." || msgs[3] != "Aliases: ?" {
		t.Fatalf("unexpected help output %q", msgs)
	}
}

func TestStatusReportsActors(t *testing.T) {
	e := newEnv(t, "alice")
	src := e.console(t, "status")
	var msgs []string
	deadline := time.Now().Add(2 * time.Second)
	for n := 5; ; n++ {
		msgs = src.wait(t, n)
		if strings.HasPrefix(msgs[len(msgs)-1], "Memory:") || time.Now().After(deadline) {
			break
		}
	}
	if msgs[1] != "Players: 1/20" {
		t.Fatalf("unexpected players line %q", msgs[1])
	}
	if !slices.ContainsFunc(msgs, func(m string) bool { return strings.HasPrefix(m, "Actor command:") }) {
		t.Fatalf("expected the command manager in the actor report, got %q", msgs)
	}
	if !strings.HasPrefix(msgs[len(msgs)-1], "Memory:") {
		t.Fatalf("expected memory statistics last, got %q", msgs)
	}
}
