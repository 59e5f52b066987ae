package cmd

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/text"
)

// ErrUnknownCommand is returned for a name that no command is registered
// under.
var ErrUnknownCommand = errors.New("unknown command")

// Config configures a Manager.
type Config struct {
	// Players returns the names of online players, for completion of player
	// parameters. It may be nil.
	Players func() []string
	// PlayerPermissions are the nodes granted to every player.
	PlayerPermissions []string
	Log               *slog.Logger
	Metrics           *actor.Metrics
}

// Manager is the command registry. Every registered command is served by its
// own dispatch actor; the name and aliases of a command all lead to it.
type Manager struct {
	conf     Config
	perms    Permissions
	s        *actor.Sender[managerMessage]
	children actor.Children[uuid.UUID, playerMessage]
}

// NewManager starts an empty command registry.
func NewManager(conf Config) *Manager {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Players == nil {
		conf.Players = func() []string { return nil }
	}
	m := &Manager{
		conf:     conf,
		perms:    Grant(conf.PlayerPermissions...),
		children: actor.NewChildren[uuid.UUID, playerMessage](actor.UUIDHash),
	}
	m.s = actor.Spawn[managerMessage](&manager{Manager: m, names: make(map[string]*entry)}, actor.Config{Name: "command", Log: conf.Log, Metrics: conf.Metrics})
	return m
}

// Register starts a dispatch actor for c and registers it under its name and
// aliases. If any of them is taken, nothing is registered, the dispatch
// actor is stopped and false is returned.
func (m *Manager) Register(ctx context.Context, c Command) (bool, error) {
	c.Name = strings.ToLower(c.Name)
	if c.Name == "" || c.Runner == nil {
		return false, errors.New("command needs a name and a runner")
	}
	c.Aliases = slices.Clone(c.Aliases)
	for i, a := range c.Aliases {
		c.Aliases[i] = strings.ToLower(a)
	}
	e := &entry{cmd: c}
	e.s = actor.Spawn[invocation](&dispatcher{cmd: c, log: m.conf.Log}, actor.Config{Name: "command_" + c.Name, Log: m.conf.Log, Metrics: m.conf.Metrics})

	ok, err := actor.Ask(ctx, m.s, func(r *actor.Reply[bool]) managerMessage { return register{e: e, Reply: r} })
	if err != nil || !ok {
		e.s.Close()
		return false, err
	}
	return true, nil
}

// Unregister removes the command registered under name, together with its
// aliases, and stops its dispatch actor.
func (m *Manager) Unregister(ctx context.Context, name string) (bool, error) {
	return actor.Ask(ctx, m.s, func(r *actor.Reply[bool]) managerMessage {
		return unregister{name: strings.ToLower(name), Reply: r}
	})
}

// Lookup returns the command registered under a name or alias.
func (m *Manager) Lookup(ctx context.Context, name string) (Info, error) {
	e, err := m.get(ctx, name)
	if err != nil {
		return Info{}, err
	}
	return e.info(), nil
}

// Commands returns every registered command sorted by name.
func (m *Manager) Commands(ctx context.Context) ([]Info, error) {
	return actor.Ask(ctx, m.s, func(r *actor.Reply[[]Info]) managerMessage { return list{r} })
}

// Graph returns the command graph sent to players. Commands players lack the
// permission for are left out. The graph is built once and reused until the next registration
// or removal.
func (m *Manager) Graph(ctx context.Context) (*packet.Commands, error) {
	return actor.Ask(ctx, m.s, func(r *actor.Reply[*packet.Commands]) managerMessage { return graph{r} })
}

// Execute runs a command line on behalf of data.Source. The line may start
// with a slash. Unknown commands are reported to the source.
func (m *Manager) Execute(ctx context.Context, data CommandData, line string) error {
	name, rest := splitName(line)
	if name == "" {
		return nil
	}
	e, err := m.get(ctx, name)
	if errors.Is(err, ErrUnknownCommand) {
		data.Source.SendMessage(text.Errorf(MessageUnknown, name))
		return nil
	} else if err != nil {
		return err
	}
	return e.dispatch(data, name, rest)
}

// Close stops every player child, every dispatch actor and the manager.
func (m *Manager) Close() {
	m.children.CloseAll()
	entries, _ := actor.Ask(context.Background(), m.s, func(r *actor.Reply[[]*entry]) managerMessage { return closeAll{r} })
	for _, e := range entries {
		e.s.Close()
	}
	for _, e := range entries {
		<-e.s.Done()
	}
	m.s.Close()
	<-m.s.Done()
}

func (m *Manager) get(ctx context.Context, name string) (*entry, error) {
	e, err := actor.Ask(ctx, m.s, func(r *actor.Reply[*entry]) managerMessage {
		return getCommand{name: strings.ToLower(name), Reply: r}
	})
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrUnknownCommand
	}
	return e, nil
}

// splitName cuts the command name off a line.
func splitName(line string) (name, rest string) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "/")
	name, rest, _ = strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(rest)
}

type entry struct {
	cmd Command
	s   *actor.Sender[invocation]
}

func (e *entry) info() Info {
	return Info{
		Name:        e.cmd.Name,
		Description: e.cmd.Description,
		Aliases:     slices.Clone(e.cmd.Aliases),
		Usage:       e.cmd.Usage(),
		Permission:  e.cmd.Permission,
		Params:      slices.Clone(e.cmd.Params),
	}
}

func (e *entry) dispatch(data CommandData, label, rest string) error {
	data.Label = label
	if rest == "" {
		data.Line = label
	} else {
		data.Line = label + " " + rest
	}
	return e.s.Send(invocation{data: data, words: Split(rest)})
}

type managerMessage interface{ commandManagerMessage() }

type register struct {
	e *entry
	*actor.Reply[bool]
}

type unregister struct {
	name string
	*actor.Reply[bool]
}

type getCommand struct {
	name string
	*actor.Reply[*entry]
}

type list struct{ *actor.Reply[[]Info] }

type graph struct{ *actor.Reply[*packet.Commands] }

type connect struct {
	id   uuid.UUID
	src  Source
	conn packet.Sender
	*actor.Reply[error]
}

type closeAll struct{ *actor.Reply[[]*entry] }

func (register) commandManagerMessage()   {}
func (unregister) commandManagerMessage() {}
func (getCommand) commandManagerMessage() {}
func (list) commandManagerMessage()       {}
func (graph) commandManagerMessage()      {}
func (connect) commandManagerMessage()    {}
func (closeAll) commandManagerMessage()   {}

type manager struct {
	*Manager
	names map[string]*entry
	graph *packet.Commands
}

func (m *manager) Handle(self *actor.Sender[managerMessage], msg managerMessage) bool {
	switch msg := msg.(type) {
	case register:
		keys := append([]string{msg.e.cmd.Name}, msg.e.cmd.Aliases...)
		for i, k := range keys {
			if _, taken := m.names[k]; taken || slices.Contains(keys[:i], k) {
				m.conf.Log.Warn("command name already registered: "+k, "command", msg.e.cmd.Name)
				msg.Send(false)
				return false
			}
		}
		for _, k := range keys {
			m.names[k] = msg.e
		}
		m.graph = nil
		msg.Send(true)
	case unregister:
		e, ok := m.names[msg.name]
		if ok {
			delete(m.names, e.cmd.Name)
			for _, a := range e.cmd.Aliases {
				delete(m.names, a)
			}
			e.s.Close()
			m.graph = nil
		}
		msg.Send(ok)
	case getCommand:
		msg.Send(m.names[msg.name])
	case list:
		msg.Send(m.infos())
	case graph:
		if m.graph == nil {
			m.graph = buildGraph(m.entries(), m.perms)
		}
		msg.Send(m.graph)
	case connect:
		p := &player{
			Parent:   actor.WithParent(self),
			children: m.children,
			id:       msg.id,
			src:      msg.src,
			perms:    m.perms,
			conn:     msg.conn,
			players:  m.conf.Players,
			cache:    make(map[string]*entry),
			log:      m.conf.Log,
		}
		_, err := m.children.Spawn(msg.id, p, actor.Config{Name: "command_player", Log: m.conf.Log, Metrics: m.conf.Metrics})
		msg.Send(err)
	case closeAll:
		entries := m.entries()
		clear(m.names)
		m.graph = nil
		msg.Send(entries)
	}
	return false
}

// entries returns every registered command once, sorted by name.
func (m *manager) entries() []*entry {
	var entries []*entry
	for k, e := range m.names {
		if k == e.cmd.Name {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b *entry) int { return strings.Compare(a.cmd.Name, b.cmd.Name) })
	return entries
}

func (m *manager) infos() []Info {
	entries := m.entries()
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.info())
	}
	return infos
}

type invocation struct {
	data  CommandData
	words []string
}

// runTimeout bounds the requests a command makes to other actors.
const runTimeout = 30 * time.Second

// dispatcher is the dispatch actor of one command.
type dispatcher struct {
	cmd Command
	log *slog.Logger
}

func (d *dispatcher) Handle(_ *actor.Sender[invocation], inv invocation) bool {
	data, o := inv.data, &Output{}
	switch args, err := ParseArgs(d.cmd.Params, inv.words); {
	case !data.Permitted(d.cmd.Permission):
		o.Error(MessagePermission)
	case err != nil:
		o.Error(strings.TrimPrefix(err.Error(), ErrSyntax.Error()+": "))
		o.Errorf(MessageUsage, d.cmd.Usage())
	default:
		data.Args = args
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		d.cmd.Runner.Run(ctx, data, o)
		cancel()
		d.log.Debug("command executed", "command", d.cmd.Name, "source", sourceName(data.Source))
	}
	if data.Source != nil {
		o.deliver(data.Source)
	}
	return false
}

func sourceName(src Source) string {
	if src == nil {
		return "Server"
	}
	return src.Name()
}
