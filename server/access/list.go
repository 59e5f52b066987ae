package access

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/text"
)

// Kind is the way a List treats the players on it.
type Kind uint8

const (
	// Blacklist rejects the players on it.
	Blacklist Kind = iota
	// Whitelist rejects everyone but the players on it.
	Whitelist
)

func (k Kind) String() string {
	if k == Whitelist {
		return "whitelist"
	}
	return "blacklist"
}

// Config configures a List.
type Config struct {
	Enable bool
	// KickMessage is shown to rejected players. {player} and {uuid} are
	// replaced with the player's name and UUID.
	KickMessage string
	Store       StoreConfig
	Log         *slog.Logger
}

// DefaultKickMessage returns the kick message used when none is configured.
func DefaultKickMessage(k Kind) string {
	if k == Whitelist {
		return "§cYou are not whitelisted on this server."
	}
	return "§cYou are banned from this server."
}

// List is a blacklist or whitelist. Store access is serialised through the
// list's actor.
type List struct {
	kind    Kind
	kick    string
	enabled atomic.Bool
	s       *actor.Sender[message]
}

// New opens the configured store and starts a list around it.
func New(kind Kind, conf Config) (*List, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	store, err := OpenStore(conf.Store)
	if err != nil {
		return nil, err
	}
	if conf.KickMessage == "" {
		conf.KickMessage = DefaultKickMessage(kind)
	}
	l := &List{kind: kind, kick: conf.KickMessage}
	l.enabled.Store(conf.Enable)
	l.s = actor.Spawn[message](&list{store: store, log: conf.Log}, actor.Config{Name: kind.String(), Log: conf.Log})
	return l, nil
}

// Kind returns whether l is a blacklist or a whitelist.
func (l *List) Kind() Kind { return l.kind }

// Enabled reports whether the list is enforced.
func (l *List) Enabled() bool { return l.enabled.Load() }

// SetEnabled changes whether the list is enforced.
func (l *List) SetEnabled(enabled bool) { l.enabled.Store(enabled) }

// Allow decides whether a joining player passes the list. If it does not, the
// returned component is the kick message.
func (l *List) Allow(ctx context.Context, e Entry) (text.Component, bool, error) {
	if !l.Enabled() {
		return text.Component{}, true, nil
	}
	ok, err := l.Contains(ctx, e)
	if err != nil {
		return text.Component{}, false, err
	}
	if ok == (l.kind == Whitelist) {
		return text.Component{}, true, nil
	}
	return l.KickMessage(e), false, nil
}

// KickMessage renders the kick message for e.
func (l *List) KickMessage(e Entry) text.Component {
	msg := strings.NewReplacer("{player}", e.Name, "{uuid}", e.UUID.String()).Replace(l.kick)
	return text.Plain(msg)
}

// Contains reports whether e is on the list, whether or not it is enforced.
func (l *List) Contains(ctx context.Context, e Entry) (bool, error) {
	return ask(ctx, l, func(s Store) (bool, error) { return s.Contains(e) })
}

// Add puts e on the list. It returns false if e was already on it.
func (l *List) Add(ctx context.Context, e Entry) (bool, error) {
	if e.Name == "" && e.UUID == uuid.Nil {
		return false, ErrInvalidName
	}
	return ask(ctx, l, func(s Store) (bool, error) { return s.Add(e) })
}

// Remove takes e off the list. It returns false if e was not on it.
func (l *List) Remove(ctx context.Context, e Entry) (bool, error) {
	return ask(ctx, l, func(s Store) (bool, error) { return s.Remove(e) })
}

// Entries returns everyone on the list.
func (l *List) Entries(ctx context.Context) ([]Entry, error) {
	return ask(ctx, l, Store.Entries)
}

// Close stops the list and closes its store.
func (l *List) Close() {
	l.s.Close()
	<-l.s.Done()
}

type result[T any] struct {
	v   T
	err error
}

type message interface{ run(s Store) }

type op[T any] struct {
	f func(Store) (T, error)
	*actor.Reply[result[T]]
}

func (o op[T]) run(s Store) {
	v, err := o.f(s)
	o.Send(result[T]{v: v, err: err})
}

func ask[T any](ctx context.Context, l *List, f func(Store) (T, error)) (T, error) {
	res, err := actor.Ask(ctx, l.s, func(r *actor.Reply[result[T]]) message {
		return op[T]{f: f, Reply: r}
	})
	if err != nil {
		return res.v, err
	}
	return res.v, res.err
}

type list struct {
	store Store
	log   *slog.Logger
}

func (l *list) Handle(_ *actor.Sender[message], msg message) bool {
	msg.run(l.store)
	return false
}

func (l *list) Stopped() {
	if err := l.store.Close(); err != nil {
		l.log.Error("close player list: " + err.Error())
	}
}
