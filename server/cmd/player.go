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

// ErrUnknownPlayer is returned for a player without a command child.
var ErrUnknownPlayer = errors.New("cmd: unknown player")

// Connect starts the command child of a player. src receives command output;
// completions are sent to conn.
func (m *Manager) Connect(ctx context.Context, id uuid.UUID, src Source, conn packet.Sender) error {
	err, askErr := actor.Ask(ctx, m.s, func(r *actor.Reply[error]) managerMessage {
		return connect{id: id, src: src, conn: conn, Reply: r}
	})
	if askErr != nil {
		return askErr
	}
	return err
}

// ExecuteAs runs a command line typed by a player.
func (m *Manager) ExecuteAs(id uuid.UUID, line string) error {
	return m.sendPlayer(id, execute{line: line})
}

// Suggest answers a completion request of a player.
func (m *Manager) Suggest(id uuid.UUID, pk *packet.CommandSuggestion) error {
	return m.sendPlayer(id, suggest{pk: pk})
}

// Disconnect stops the command child of a player.
func (m *Manager) Disconnect(id uuid.UUID) {
	if c, ok := m.children.Delete(id); ok {
		c.Close()
	}
}

func (m *Manager) sendPlayer(id uuid.UUID, msg playerMessage) error {
	c, ok := m.children.Load(id)
	if !ok {
		return ErrUnknownPlayer
	}
	return c.Send(msg)
}

type playerMessage interface{ commandPlayerMessage() }

type execute struct{ line string }

type suggest struct{ pk *packet.CommandSuggestion }

func (execute) commandPlayerMessage() {}
func (suggest) commandPlayerMessage() {}

// askTimeout bounds a player child's requests to the manager.
const askTimeout = 5 * time.Second

// player is the command child of one player. It remembers which dispatch
// actor serves each name it has used.
type player struct {
	actor.Parent[managerMessage]
	children actor.Children[uuid.UUID, playerMessage]
	id       uuid.UUID
	src      Source
	perms    Permissions
	conn     packet.Sender
	players  func() []string
	cache    map[string]*entry
	log      *slog.Logger
}

func (p *player) Handle(self *actor.Sender[playerMessage], msg playerMessage) bool {
	switch msg := msg.(type) {
	case execute:
		p.execute(msg.line)
	case suggest:
		if err := p.conn.SendPacket(p.suggest(msg.pk)); err != nil {
			p.log.Debug("command: send suggestions: "+err.Error(), "player", p.src.Name())
			p.children.Forget(p.id, self)
			return true
		}
	}
	return false
}

func (p *player) execute(line string) {
	name, rest := splitName(line)
	if name == "" {
		return
	}
	data := CommandData{Source: p.src, Player: p.id, Permissions: p.perms}
	for attempt := 0; attempt < 2; attempt++ {
		e := p.lookup(name)
		if e == nil {
			break
		}
		if err := e.dispatch(data, name, rest); err == nil {
			return
		}
		// The command was unregistered since it was cached.
		delete(p.cache, name)
	}
	p.src.SendMessage(text.Errorf(MessageUnknown, name))
}

// lookup returns the cached entry for name, asking the manager on a miss.
func (p *player) lookup(name string) *entry {
	if e, ok := p.cache[name]; ok {
		return e
	}
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()
	e, err := actor.Ask(ctx, p.Parent.Parent(), func(r *actor.Reply[*entry]) managerMessage {
		return getCommand{name: name, Reply: r}
	})
	if err != nil || e == nil {
		return nil
	}
	p.cache[name] = e
	return e
}

func (p *player) suggest(pk *packet.CommandSuggestion) *packet.CommandSuggestions {
	res := &packet.CommandSuggestions{TransactionID: pk.TransactionID}
	input := pk.Text
	offset := 0
	if strings.HasPrefix(input, "/") {
		input, offset = input[1:], 1
	}
	name, rest, hasArgs := strings.Cut(input, " ")
	var candidates []string
	partial := name
	if !hasArgs {
		candidates = p.commandNames()
	} else {
		e := p.lookup(strings.ToLower(name))
		if e == nil || !p.perms.Has(e.cmd.Permission) {
			return res
		}
		words := strings.Split(rest, " ")
		partial = words[len(words)-1]
		candidates = p.paramCandidates(e.cmd.Params, len(words)-1)
	}
	res.Start = int32(len(pk.Text) - len(partial))
	res.Length = int32(len(partial))
	if !hasArgs {
		res.Start = int32(offset)
	}
	lower := strings.ToLower(partial)
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), lower) {
			res.Matches = append(res.Matches, packet.Suggestion{Match: c})
		}
	}
	return res
}

func (p *player) commandNames() []string {
	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()
	infos, err := actor.Ask(ctx, p.Parent.Parent(), func(r *actor.Reply[[]Info]) managerMessage { return list{r} })
	if err != nil {
		return nil
	}
	var names []string
	for _, info := range infos {
		if !p.perms.Has(info.Permission) {
			continue
		}
		names = append(names, info.Name)
		names = append(names, info.Aliases...)
	}
	slices.Sort(names)
	return names
}

func (p *player) paramCandidates(params []Param, i int) []string {
	if i >= len(params) {
		return nil
	}
	param := params[i]
	if len(param.Suggestions) != 0 {
		return param.Suggestions
	}
	switch param.Type {
	case ParamPlayer:
		names := slices.Clone(p.players())
		slices.SortFunc(names, func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) })
		return names
	case ParamEnum:
		return param.Options
	case ParamBool:
		return []string{"false", "true"}
	}
	return nil
}
