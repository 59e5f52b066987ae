package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
)

type managerMessage interface{ managerMessage() }

type loadWorld struct {
	conf Config
	*actor.Reply[loadResult]
}

type loadResult struct {
	w   *World
	err error
}

type unloadWorld struct {
	id uuid.UUID
	*actor.Reply[error]
}

type closeWorlds struct {
	*actor.Reply[int]
}

func (loadWorld) managerMessage()   {}
func (unloadWorld) managerMessage() {}
func (closeWorlds) managerMessage() {}

// ErrUnknownWorld is returned for operations on a world that is not loaded.
var ErrUnknownWorld = errors.New("world: unknown world")

// Manager loads and unloads worlds. Lookups read a shared registry directly;
// loading and unloading go through the manager actor so they are serialised.
type Manager struct {
	s      *actor.Sender[managerMessage]
	worlds *actor.Registry[uuid.UUID, *World]
	def    atomic.Pointer[World]
	log    *slog.Logger
}

// NewManager starts a world manager.
func NewManager(log *slog.Logger, metrics *actor.Metrics) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{worlds: actor.NewRegistry[uuid.UUID, *World](actor.UUIDHash), log: log}
	m.s = actor.Spawn[managerMessage](&manager{Manager: m, metrics: metrics}, actor.Config{Name: "world_manager", Log: log, Metrics: metrics})
	return m
}

// Load starts the world described by conf and waits for its regions and
// chunks to be created. The first world loaded becomes the default.
func (m *Manager) Load(ctx context.Context, conf Config) (*World, error) {
	res, err := actor.Ask(ctx, m.s, func(r *actor.Reply[loadResult]) managerMessage {
		return loadWorld{conf: conf, Reply: r}
	})
	if err != nil {
		return nil, err
	}
	return res.w, res.err
}

// Unload closes the world with the given UUID.
func (m *Manager) Unload(ctx context.Context, id uuid.UUID) error {
	err, askErr := actor.Ask(ctx, m.s, func(r *actor.Reply[error]) managerMessage {
		return unloadWorld{id: id, Reply: r}
	})
	if askErr != nil {
		return askErr
	}
	return err
}

// World returns the loaded world with the given UUID.
func (m *Manager) World(id uuid.UUID) (*World, bool) {
	return m.worlds.Load(id)
}

// ByName returns the loaded world with the given name.
func (m *Manager) ByName(name string) (*World, bool) {
	var found *World
	m.worlds.Range(func(_ uuid.UUID, w *World) bool {
		if w.Name() == name {
			found = w
			return false
		}
		return true
	})
	return found, found != nil
}

// Default returns the world players join.
func (m *Manager) Default() (*World, bool) {
	w := m.def.Load()
	return w, w != nil
}

// SetDefault makes the loaded world with the given UUID the default.
func (m *Manager) SetDefault(id uuid.UUID) error {
	w, ok := m.worlds.Load(id)
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownWorld, id)
	}
	m.def.Store(w)
	return nil
}

// Worlds returns every loaded world.
func (m *Manager) Worlds() []*World {
	var out []*World
	m.worlds.Range(func(_ uuid.UUID, w *World) bool {
		out = append(out, w)
		return true
	})
	return out
}

// Close closes every world and stops the manager. It returns the number of
// worlds closed.
func (m *Manager) Close(ctx context.Context) (int, error) {
	return actor.Ask(ctx, m.s, func(r *actor.Reply[int]) managerMessage { return closeWorlds{r} })
}

type manager struct {
	*Manager
	metrics *actor.Metrics
}

func (m *manager) Handle(_ *actor.Sender[managerMessage], msg managerMessage) bool {
	switch msg := msg.(type) {
	case loadWorld:
		w, err := m.load(msg.conf)
		msg.Send(loadResult{w: w, err: err})
	case unloadWorld:
		msg.Send(m.unload(msg.id))
	case closeWorlds:
		n := 0
		for _, w := range m.Worlds() {
			if m.unload(w.UUID()) == nil {
				n++
			}
		}
		msg.Send(n)
		return true
	}
	return false
}

func (m *manager) load(conf Config) (*World, error) {
	if _, ok := m.worlds.Load(conf.UUID); ok {
		return nil, fmt.Errorf("world %s is already loaded", conf.UUID)
	}
	if conf.Log == nil {
		conf.Log = m.log
	}
	conf.Log = conf.Log.With("world", conf.Name)
	w := start(conf, m.metrics)
	err, askErr := actor.Ask(context.Background(), w.s, func(r *actor.Reply[error]) worldMessage { return worldInit{r} })
	if askErr != nil {
		err = askErr
	}
	if err != nil {
		w.s.Close()
		return nil, err
	}
	m.worlds.Store(conf.UUID, w)
	m.def.CompareAndSwap(nil, w)
	conf.Log.Info("World loaded.", "uuid", conf.UUID, "regions", len(conf.MapRange.Regions()))
	return w, nil
}

func (m *manager) unload(id uuid.UUID) error {
	w, ok := m.worlds.Delete(id)
	if !ok {
		return fmt.Errorf("%w %s", ErrUnknownWorld, id)
	}
	m.def.CompareAndSwap(w, nil)
	_, err := w.Close(context.Background())
	return err
}
