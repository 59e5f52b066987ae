// Package playerlist keeps the authoritative set of online players.
package playerlist

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// PageSize is the number of names on one page of the /list output.
const PageSize = 20

var (
	// ErrFull is returned by Join when the server is at capacity.
	ErrFull = errors.New("playerlist: server is full")
	// ErrAlreadyOnline is returned by Join for a UUID that is already online.
	ErrAlreadyOnline = errors.New("playerlist: player already online")
	// ErrCapacity is returned by LoadData for a capacity below one.
	ErrCapacity = errors.New("playerlist: capacity must be positive")
)

// Player is an online player.
type Player struct {
	UUID uuid.UUID
	Name string
}

// Counts is the number of online players and the capacity.
type Counts struct {
	Online int
	Max    int
}

// Page is one page of the player listing.
type Page struct {
	Counts
	// Number is the 1-based page number actually returned.
	Number int
	// Pages is the number of pages.
	Pages int
	Names []string
}

type message interface{ playerListMessage() }

type join struct {
	p Player
	*actor.Reply[error]
}

type left struct {
	id uuid.UUID
	*actor.Reply[bool]
}

type check struct {
	id uuid.UUID
	*actor.Reply[bool]
}

type counts struct{ *actor.Reply[Counts] }

type loadData struct {
	c Counts
	*actor.Reply[error]
}

type online struct {
	name string
	*actor.Reply[Player]
}

type list struct {
	page   int
	locale string
	*actor.Reply[Page]
}

type players struct{ *actor.Reply[[]Player] }

func (join) playerListMessage()     {}
func (left) playerListMessage()     {}
func (check) playerListMessage()    {}
func (counts) playerListMessage()   {}
func (loadData) playerListMessage() {}
func (online) playerListMessage()   {}
func (list) playerListMessage()     {}
func (players) playerListMessage()  {}

// List is a handle to the player list actor.
type List struct {
	s *actor.Sender[message]
}

// New starts a player list with room for capacity players. A list with no
// capacity admits nobody until LoadData gives it one.
func New(capacity int, log *slog.Logger) *List {
	if log == nil {
		log = slog.Default()
	}
	l := &playerList{max: capacity, byID: map[uuid.UUID]string{}, log: log}
	return &List{s: actor.Spawn[message](l, actor.Config{Name: "player_list", Log: log})}
}

// Join adds p. It fails with ErrFull or ErrAlreadyOnline.
func (l *List) Join(ctx context.Context, p Player) error {
	err, askErr := actor.Ask(ctx, l.s, func(r *actor.Reply[error]) message { return join{p: p, Reply: r} })
	if askErr != nil {
		return askErr
	}
	return err
}

// Left removes the player with the given UUID. It reports whether the player
// was online.
func (l *List) Left(ctx context.Context, id uuid.UUID) (bool, error) {
	return actor.Ask(ctx, l.s, func(r *actor.Reply[bool]) message { return left{id: id, Reply: r} })
}

// Contains reports whether the player with the given UUID is online.
func (l *List) Contains(ctx context.Context, id uuid.UUID) (bool, error) {
	return actor.Ask(ctx, l.s, func(r *actor.Reply[bool]) message { return check{id: id, Reply: r} })
}

// Counts returns the number of online players and the capacity.
func (l *List) Counts(ctx context.Context) (Counts, error) {
	return actor.Ask(ctx, l.s, func(r *actor.Reply[Counts]) message { return counts{r} })
}

// LoadData replaces the capacity with c.Max. Players already online stay
// even when there are more of them than the new capacity. c.Online is
// ignored: the online count is always the number of joined players.
func (l *List) LoadData(ctx context.Context, c Counts) error {
	err, askErr := actor.Ask(ctx, l.s, func(r *actor.Reply[error]) message { return loadData{c: c, Reply: r} })
	if askErr != nil {
		return askErr
	}
	return err
}

// Online looks up an online player by name, ignoring case.
func (l *List) Online(ctx context.Context, name string) (Player, bool, error) {
	p, err := actor.Ask(ctx, l.s, func(r *actor.Reply[Player]) message { return online{name: name, Reply: r} })
	if err != nil {
		return Player{}, false, err
	}
	return p, p.UUID != uuid.Nil, nil
}

// Players returns every online player in join order.
func (l *List) Players(ctx context.Context) ([]Player, error) {
	return actor.Ask(ctx, l.s, func(r *actor.Reply[[]Player]) message { return players{r} })
}

// List returns page n (1-based) of the online names, sorted for locale. Out of
// range pages are clamped.
func (l *List) List(ctx context.Context, n int, locale string) (Page, error) {
	return actor.Ask(ctx, l.s, func(r *actor.Reply[Page]) message { return list{page: n, locale: locale, Reply: r} })
}

// Close stops the player list.
func (l *List) Close() { l.s.Close() }

type playerList struct {
	max   int
	byID  map[uuid.UUID]string
	order []uuid.UUID
	log   *slog.Logger
}

func (l *playerList) Handle(_ *actor.Sender[message], msg message) bool {
	switch m := msg.(type) {
	case join:
		switch {
		case l.byID[m.p.UUID] != "":
			m.Send(ErrAlreadyOnline)
		case len(l.byID) >= l.max:
			m.Send(ErrFull)
		default:
			l.byID[m.p.UUID] = m.p.Name
			l.order = append(l.order, m.p.UUID)
			m.Send(nil)
		}
	case left:
		_, ok := l.byID[m.id]
		if ok {
			delete(l.byID, m.id)
			for i, id := range l.order {
				if id == m.id {
					l.order = append(l.order[:i], l.order[i+1:]...)
					break
				}
			}
		}
		m.Send(ok)
	case check:
		_, ok := l.byID[m.id]
		m.Send(ok)
	case counts:
		m.Send(Counts{Online: len(l.byID), Max: l.max})
	case loadData:
		if m.c.Max < 1 {
			m.Send(ErrCapacity)
			break
		}
		if m.c.Max != l.max {
			l.log.Info("Player capacity changed.", "old", l.max, "new", m.c.Max)
		}
		l.max = m.c.Max
		m.Send(nil)
	case online:
		var found Player
		for id, name := range l.byID {
			if strings.EqualFold(name, m.name) {
				found = Player{UUID: id, Name: name}
				break
			}
		}
		m.Send(found)
	case players:
		out := make([]Player, 0, len(l.order))
		for _, id := range l.order {
			out = append(out, Player{UUID: id, Name: l.byID[id]})
		}
		m.Send(out)
	case list:
		m.Send(l.page(m.page, m.locale))
	}
	return false
}

func (l *playerList) page(n int, locale string) Page {
	names := make([]string, 0, len(l.byID))
	for _, name := range l.byID {
		names = append(names, name)
	}
	collate.New(parseLocale(locale), collate.IgnoreCase).SortStrings(names)

	p := Page{Counts: Counts{Online: len(names), Max: l.max}}
	p.Pages = max(1, (len(names)+PageSize-1)/PageSize)
	p.Number = min(max(n, 1), p.Pages)
	start := (p.Number - 1) * PageSize
	p.Names = names[start:min(start+PageSize, len(names))]
	return p
}

// parseLocale converts a client locale such as en_us to a language tag.
func parseLocale(locale string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.English
	}
	return tag
}
