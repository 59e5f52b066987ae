package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/internal/conntest"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/text"
)

type recordingSource struct {
	name string
	mu   sync.Mutex
	msgs []text.Component
}

func (s *recordingSource) Name() string { return s.name }

func (s *recordingSource) SendMessage(c text.Component) {
	s.mu.Lock()
	s.msgs = append(s.msgs, c)
	s.mu.Unlock()
}

// wait returns the messages once there are at least n of them.
func (s *recordingSource) wait(t *testing.T, n int) []text.Component {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		msgs := slices.Clone(s.msgs)
		s.mu.Unlock()
		if len(msgs) >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %v messages, got %v", n, msgs)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newManager(t *testing.T, players ...string) *Manager {
	m := NewManager(Config{
		Players: func() []string { return players },
		Log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(m.Close)
	return m
}

func echo() Command {
	return Command{
		Name:    "echo",
		Aliases: []string{"e"},
		Params:  []Param{{Name: "count", Type: ParamInt, Min: Bound(1), Max: Bound(3)}, {Name: "message", Type: ParamText}},
		Runner: RunnerFunc(func(_ context.Context, data CommandData, o *Output) {
			for i := int32(0); i < data.Args.Int("count"); i++ {
				o.Print(data.Args.String("message"))
			}
		}),
	}
}

func TestRegistrationCollision(t *testing.T) {
	m := newManager(t)
	tp := Command{Name: "tp", Runner: RunnerFunc(func(context.Context, CommandData, *Output) {})}
	if ok, err := m.Register(testCtx(t), tp); err != nil || !ok {
		t.Fatalf("first registration: %v %v", ok, err)
	}
	if ok, err := m.Register(testCtx(t), tp); err != nil || ok {
		t.Fatalf("second registration of tp must fail: %v %v", ok, err)
	}
	if ok, _ := m.Register(testCtx(t), Command{Name: "teleport", Aliases: []string{"tp"}, Runner: tp.Runner}); ok {
		t.Fatalf("an alias colliding with a name must fail")
	}
	if _, err := m.Lookup(testCtx(t), "teleport"); err != ErrUnknownCommand {
		t.Fatalf("a failed registration must not register its name, got %v", err)
	}
}

func TestLookupByNameAndAlias(t *testing.T) {
	m := newManager(t)
	if ok, err := m.Register(testCtx(t), echo()); err != nil || !ok {
		t.Fatalf("register: %v %v", ok, err)
	}
	byName, err := m.Lookup(testCtx(t), "echo")
	if err != nil {
		t.Fatalf("lookup by name: %v", err)
	}
	byAlias, err := m.Lookup(testCtx(t), "E")
	if err != nil {
		t.Fatalf("lookup by alias: %v", err)
	}
	if byName.Name != byAlias.Name || byName.Usage != "/echo <count> <message>" {
		t.Fatalf("unexpected infos %+v %+v", byName, byAlias)
	}
}

func TestExecute(t *testing.T) {
	m := newManager(t)
	if _, err := m.Register(testCtx(t), echo()); err != nil {
		t.Fatalf("register: %v", err)
	}
	src := &recordingSource{name: "Server"}
	data := CommandData{Source: src, IsCmd: true}

	if err := m.Execute(testCtx(t), data, "/e 2 \"hello there\""); err != nil {
		t.Fatalf("execute: %v", err)
	}
	msgs := src.wait(t, 2)
	if msgs[0].Text != "hello there" || msgs[1].Text != "hello there" {
		t.Fatalf("unexpected output %+v", msgs)
	}

	if err := m.Execute(testCtx(t), data, "echo 9 x"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	msgs = src.wait(t, 4)
	if msgs[2].Color != "red" || msgs[3].Text != "Usage: /echo <count> <message>" {
		t.Fatalf("expected a range error and usage, got %+v", msgs[2:])
	}

	if err := m.Execute(testCtx(t), data, "nope"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if msgs = src.wait(t, 5); msgs[4].Color != "red" {
		t.Fatalf("unknown command must be reported in red, got %+v", msgs[4])
	}
}

func TestPermissionNodes(t *testing.T) {
	p := Grant("qexed.list", "Admin.*", " ")
	for node, want := range map[string]bool{
		"":                true,
		"qexed.list":      true,
		"QEXED.LIST":      true,
		"qexed.stop":      false,
		"admin.kick":      true,
		"admin.ban.temp":  true,
		"admin":           false,
		"administer.kick": false,
	} {
		if p.Has(node) != want {
			t.Fatalf("Has(%q) != %v", node, want)
		}
	}
	if (Permissions{}).Has("qexed.list") {
		t.Fatalf("the zero value must grant nothing")
	}
	if !Grant("*").Has("qexed.stop") || !AllPermissions().Has("anything.at.all") {
		t.Fatalf("a wildcard must grant everything")
	}
}

func TestPermissionCheckedOnDispatch(t *testing.T) {
	m := newManager(t)
	stopped := make(chan struct{}, 3)
	stop := Command{Name: "stop", Permission: "qexed.stop", Runner: RunnerFunc(func(context.Context, CommandData, *Output) {
		stopped <- struct{}{}
	})}
	if _, err := m.Register(testCtx(t), stop); err != nil {
		t.Fatalf("register: %v", err)
	}
	player := &recordingSource{name: "alice"}
	data := CommandData{Source: player, Player: uuid.New(), Permissions: Grant("qexed.list")}
	if err := m.Execute(testCtx(t), data, "stop"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if msgs := player.wait(t, 1); msgs[0].Text != MessagePermission {
		t.Fatalf("expected a permission error, got %+v", msgs)
	}
	select {
	case <-stopped:
		t.Fatalf("stop must not run without its permission")
	default:
	}

	for _, data := range []CommandData{
		{Source: &recordingSource{name: "op"}, Player: uuid.New(), Permissions: Grant("qexed.*")},
		{Source: &recordingSource{name: "Server"}, IsCmd: true},
	} {
		if err := m.Execute(testCtx(t), data, "stop"); err != nil {
			t.Fatalf("execute: %v", err)
		}
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatalf("stop did not run for %v", data.Source.Name())
		}
	}
}

func TestPlayerChildUsesPlayerPermissions(t *testing.T) {
	m := NewManager(Config{
		PlayerPermissions: []string{"qexed.list"},
		Log:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(m.Close)
	noop := RunnerFunc(func(_ context.Context, _ CommandData, o *Output) { o.Print("ok") })
	for _, c := range []Command{
		{Name: "list", Permission: "qexed.list", Runner: noop},
		{Name: "kick", Permission: "qexed.kick", Runner: noop},
	} {
		if _, err := m.Register(testCtx(t), c); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	id, src, rec := uuid.New(), &recordingSource{name: "alice"}, conntest.NewRecorder()
	if err := m.Connect(testCtx(t), id, src, rec); err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = m.ExecuteAs(id, "list")
	_ = m.ExecuteAs(id, "kick")
	msgs := src.wait(t, 2)
	if msgs[0].Text != "ok" || msgs[1].Text != MessagePermission {
		t.Fatalf("unexpected output %+v", msgs)
	}

	if err := m.Suggest(id, &packet.CommandSuggestion{TransactionID: 1, Text: "/"}); err != nil {
		t.Fatalf("suggest: %v", err)
	}
	res, ok := conntest.WaitFor[*packet.CommandSuggestions](rec, time.Second)
	if !ok || len(res.Matches) != 1 || res.Matches[0].Match != "list" {
		t.Fatalf("only permitted commands may be suggested, got %+v", res)
	}
	g, err := m.Graph(testCtx(t))
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	for _, n := range g.Nodes {
		if n.Name == "kick" {
			t.Fatalf("the graph must leave out commands players may not run")
		}
	}
}

func TestGraph(t *testing.T) {
	m := newManager(t)
	noop := RunnerFunc(func(context.Context, CommandData, *Output) {})
	for _, c := range []Command{
		{Name: "help", Aliases: []string{"?"}, Params: []Param{{Name: "command", Type: ParamString, Optional: true}}, Runner: noop},
		{Name: "tell", Params: []Param{{Name: "player", Type: ParamPlayer}, {Name: "message", Type: ParamText}}, Runner: noop},
		{Name: "stop", Permission: "qexed.stop", Runner: noop},
	} {
		if ok, err := m.Register(testCtx(t), c); err != nil || !ok {
			t.Fatalf("register %v: %v %v", c.Name, ok, err)
		}
	}
	g, err := m.Graph(testCtx(t))
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	again, _ := m.Graph(testCtx(t))
	if g != again {
		t.Fatalf("graph must be cached between registrations")
	}

	root := g.Nodes[g.Root]
	if len(root.Children) != 3 {
		t.Fatalf("expected help, ? and tell under the root, got %v children", len(root.Children))
	}
	byName := map[string]packet.CommandNode{}
	for _, n := range g.Nodes {
		byName[n.Name] = n
	}
	if _, ok := byName["stop"]; ok {
		t.Fatalf("commands players lack the permission for must not be sent")
	}
	help, alias := byName["help"], byName["?"]
	if help.Flags&packet.NodeExecutable == 0 {
		t.Fatalf("help with an optional parameter must be executable")
	}
	if alias.Flags&packet.NodeHasRedirect == 0 || g.Nodes[alias.Redirect].Name != "help" {
		t.Fatalf("alias must redirect to help, got %+v", alias)
	}
	tell, player, message := byName["tell"], byName["player"], byName["message"]
	if tell.Flags&packet.NodeExecutable != 0 || player.Flags&packet.NodeExecutable != 0 {
		t.Fatalf("tell is not executable before its message")
	}
	if message.Flags&packet.NodeExecutable == 0 || message.Properties.StringMode != packet.StringGreedy {
		t.Fatalf("unexpected message node %+v", message)
	}
	if player.Suggestions != packet.SuggestAskServer {
		t.Fatalf("player parameter must ask the server for completions")
	}

	if _, err := m.Unregister(testCtx(t), "tell"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	after, _ := m.Graph(testCtx(t))
	if after == g || len(after.Nodes[after.Root].Children) != 2 {
		t.Fatalf("graph must be rebuilt after removal")
	}
}

func TestPlayerChildCacheAndSuggestions(t *testing.T) {
	m := newManager(t, "Steve", "alex", "Sam")
	if _, err := m.Register(testCtx(t), Command{
		Name:   "tell",
		Params: []Param{{Name: "player", Type: ParamPlayer}, {Name: "message", Type: ParamText}},
		Runner: RunnerFunc(func(_ context.Context, data CommandData, o *Output) {
			o.Printf("to %v: %v", data.Args.String("player"), data.Args.String("message"))
		}),
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	id, src, rec := uuid.New(), &recordingSource{name: "alice"}, conntest.NewRecorder()
	if err := m.Connect(testCtx(t), id, src, rec); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := m.ExecuteAs(id, "tell Steve hi there"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if msgs := src.wait(t, 1); msgs[0].Text != "to Steve: hi there" {
		t.Fatalf("unexpected output %+v", msgs)
	}

	if err := m.Suggest(id, &packet.CommandSuggestion{TransactionID: 7, Text: "/tell s"}); err != nil {
		t.Fatalf("suggest: %v", err)
	}
	res, ok := conntest.WaitFor[*packet.CommandSuggestions](rec, time.Second)
	if !ok {
		t.Fatalf("no suggestions sent")
	}
	if res.TransactionID != 7 || res.Start != 6 || res.Length != 1 || len(res.Matches) != 2 || res.Matches[0].Match != "Sam" {
		t.Fatalf("unexpected suggestions %+v", res)
	}

	if _, err := m.Unregister(testCtx(t), "tell"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if err := m.ExecuteAs(id, "tell Steve again"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if msgs := src.wait(t, 2); msgs[1].Color != "red" {
		t.Fatalf("a stale cache entry must end in an unknown command error, got %+v", msgs[1])
	}
}

func TestSplit(t *testing.T) {
	if got := Split(`say "hello world" now`); !slices.Equal(got, []string{"say", "hello world", "now"}) {
		t.Fatalf("unexpected split %q", got)
	}
	if got := Split("me don't panic"); !slices.Equal(got, []string{"me", "don't", "panic"}) {
		t.Fatalf("unmatched quotes must fall back to whitespace, got %q", got)
	}
}

func TestParseArgsStrings(t *testing.T) {
	params := []Param{{Name: "word", Type: ParamString}, {Name: "phrase", Type: ParamQuotable}}
	args, err := ParseArgs(params, Split(`home "my base"`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if args.String("word") != "home" || args.String("phrase") != "my base" {
		t.Fatalf("unexpected args %v %v", args.String("word"), args.String("phrase"))
	}
	if _, err := ParseArgs(params, Split(`"my home" base`)); !errors.Is(err, ErrSyntax) {
		t.Fatalf("a quoted phrase must not fill a single word parameter, got %v", err)
	}
}

func TestParamDescriptionsAndSuggestions(t *testing.T) {
	m := newManager(t)
	warp := Command{
		Name: "warp",
		Params: []Param{
			{Name: "place", Description: "Where to go.", Type: ParamQuotable, Suggestions: []string{"spawn", "old town"}},
		},
		Runner: RunnerFunc(func(context.Context, CommandData, *Output) {}),
	}
	if _, err := m.Register(testCtx(t), warp); err != nil {
		t.Fatalf("register: %v", err)
	}
	info, err := m.Lookup(testCtx(t), "warp")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(info.Params) != 1 || info.Params[0].Description != "Where to go." {
		t.Fatalf("parameter descriptions must be kept, got %+v", info.Params)
	}

	g, err := m.Graph(testCtx(t))
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	var place packet.CommandNode
	for _, n := range g.Nodes {
		if n.Name == "place" {
			place = n
		}
	}
	if place.Properties.StringMode != packet.StringQuotable {
		t.Fatalf("a quotable parameter must use the quotable string mode, got %+v", place)
	}
	if place.Flags&packet.NodeHasSuggestions == 0 || place.Suggestions != packet.SuggestAskServer {
		t.Fatalf("a parameter with suggestions must ask the server, got %+v", place)
	}

	id, rec := uuid.New(), conntest.NewRecorder()
	if err := m.Connect(testCtx(t), id, &recordingSource{name: "alice"}, rec); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := m.Suggest(id, &packet.CommandSuggestion{TransactionID: 3, Text: "/warp sp"}); err != nil {
		t.Fatalf("suggest: %v", err)
	}
	res, ok := conntest.WaitFor[*packet.CommandSuggestions](rec, time.Second)
	if !ok || len(res.Matches) != 1 || res.Matches[0].Match != "spawn" {
		t.Fatalf("unexpected suggestions %+v", res)
	}
}
