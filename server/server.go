// Package server wires the subsystems of a Minecraft Java Edition server
// together: the ingress accepting connections, the session manager running
// the game logic and the per-player services the sessions connect to.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/access"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/chat"
	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/cmd/builtin"
	"github.com/qexed/qexed/server/entityid"
	"github.com/qexed/qexed/server/heartbeat"
	"github.com/qexed/qexed/server/ingress"
	"github.com/qexed/qexed/server/packetsplit"
	"github.com/qexed/qexed/server/ping"
	"github.com/qexed/qexed/server/playerlist"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/query"
	"github.com/qexed/qexed/server/rule"
	"github.com/qexed/qexed/server/session"
	"github.com/qexed/qexed/server/status"
	"github.com/qexed/qexed/server/text"
	"github.com/qexed/qexed/server/title"
	"github.com/qexed/qexed/server/world"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds the saving of worlds when the server stops.
const shutdownTimeout = 30 * time.Second

// Server implements a Minecraft server. It is created with New and runs
// until Close is called or the context passed to Run is cancelled.
type Server struct {
	conf    Config
	log     *slog.Logger
	started time.Time
	metrics *actor.Metrics

	players   *playerlist.List
	status    *status.Status
	entities  *entityid.Allocator
	rules     *rule.Handle
	blacklist *access.List
	whitelist *access.List
	worlds    *world.Manager
	ping      *ping.Manager
	heartbeat *heartbeat.Manager
	split     *packetsplit.Manager
	chat      *chat.Manager
	titles    *title.Manager
	commands  *cmd.Manager
	sessions  *session.Manager

	listener *ingress.Listener
	query    *query.Responder

	// closers stop the subsystems in reverse order of creation.
	closers []func()

	once    sync.Once
	closing chan struct{}
}

// New creates every subsystem, loads the worlds and opens the listeners. If
// an error is returned, everything created so far has been stopped again.
func New(ctx context.Context, conf Config) (_ *Server, err error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	log := conf.Log
	srv := &Server{
		conf:    conf,
		log:     log,
		started: time.Now(),
		metrics: actor.NewMetrics(),
		closing: make(chan struct{}),
	}
	defer func() {
		if err != nil {
			srv.stop()
		}
	}()

	srv.players = playerlist.New(0, log.With("system", "player_list"))
	srv.closers = append(srv.closers, srv.players.Close)
	if err = srv.players.LoadData(ctx, playerlist.Counts{Max: conf.MaxPlayers}); err != nil {
		return nil, fmt.Errorf("player list: %w", err)
	}

	conf.Status.Log = log.With("system", "status")
	if srv.status, err = status.New(conf.Status, srv.players); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	srv.closers = append(srv.closers, srv.status.Close)

	conf.EntityID.Log = log.With("system", "entity_id")
	srv.entities = entityid.New(conf.EntityID)
	srv.closers = append(srv.closers, srv.entities.Close)

	srv.rules = rule.New(conf.Rules, log.With("system", "rule"))
	srv.closers = append(srv.closers, srv.rules.Close)

	conf.Blacklist.Log = log.With("system", "blacklist")
	if srv.blacklist, err = access.New(access.Blacklist, conf.Blacklist); err != nil {
		return nil, fmt.Errorf("blacklist: %w", err)
	}
	srv.closers = append(srv.closers, srv.blacklist.Close)
	conf.Whitelist.Log = log.With("system", "whitelist")
	if srv.whitelist, err = access.New(access.Whitelist, conf.Whitelist); err != nil {
		return nil, fmt.Errorf("whitelist: %w", err)
	}
	srv.closers = append(srv.closers, srv.whitelist.Close)

	srv.worlds = world.NewManager(log.With("system", "world"), srv.metrics)
	srv.closers = append(srv.closers, srv.closeWorlds)
	if err = srv.loadWorlds(ctx); err != nil {
		return nil, err
	}

	// The drop callbacks run on the ping and heartbeat goroutines and only
	// fire for connected players, which cannot exist before sessions is set.
	conf.Ping.Log = log.With("system", "ping")
	conf.Ping.OnDrop = func(id uuid.UUID, reason ping.Reason) { srv.sessions.PingDropped(id, reason) }
	srv.ping = ping.NewManager(conf.Ping)
	srv.closers = append(srv.closers, srv.ping.Close)

	conf.Heartbeat.Log = log.With("system", "heartbeat")
	conf.Heartbeat.OnEvent = func(ev heartbeat.Event) { srv.sessions.HeartbeatEvent(ev) }
	srv.heartbeat = heartbeat.NewManager(conf.Heartbeat)
	srv.closers = append(srv.closers, srv.heartbeat.Close)

	srv.split = packetsplit.NewManager(log.With("system", "packet_split"))
	srv.closers = append(srv.closers, srv.split.Close)
	srv.chat = chat.NewManager(log.With("system", "chat"))
	srv.closers = append(srv.closers, srv.chat.Close)
	srv.titles = title.NewManager(log.With("system", "title"))
	srv.closers = append(srv.closers, srv.titles.Close)

	srv.commands = cmd.NewManager(cmd.Config{Players: srv.playerNames, PlayerPermissions: conf.PlayerPermissions, Log: log.With("system", "command"), Metrics: srv.metrics})
	srv.closers = append(srv.closers, srv.commands.Close)
	if err = builtin.Register(ctx, srv.commands, srv); err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	for _, name := range conf.DisabledCommands {
		if ok, err := srv.commands.Unregister(ctx, name); err != nil {
			return nil, fmt.Errorf("disable command %v: %w", name, err)
		} else if !ok {
			log.Warn("cannot disable unknown command", "command", name)
		}
	}

	srv.sessions = session.NewManager(session.Config{
		Players:            srv.players,
		Entities:           srv.entities,
		Rules:              srv.rules,
		Worlds:             srv.worlds,
		Ping:               srv.ping,
		Heartbeat:          srv.heartbeat,
		Split:              srv.split,
		Chat:               srv.chat,
		Commands:           srv.commands,
		Titles:             srv.titles,
		ViewDistance:       conf.ViewDistance,
		SimulationDistance: conf.SimulationDistance,
		Log:                log.With("system", "session"),
		Metrics:            srv.metrics,
	})
	srv.closers = append(srv.closers, srv.sessions.Close)

	in := conf.Ingress
	in.Status, in.Players, in.Game = srv.status, srv.players, srv.sessions
	in.Blacklist, in.Whitelist = srv.blacklist, srv.whitelist
	in.Log = log.With("system", "ingress")
	if srv.listener, err = ingress.Listen(in); err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, func() { _ = srv.listener.Close() })

	if conf.QueryAddress != "" {
		srv.query, err = query.Listen(query.Config{
			Address:  conf.QueryAddress,
			Provider: srv.queryData,
			Log:      log.With("system", "query"),
		})
		if err != nil {
			return nil, err
		}
		srv.closers = append(srv.closers, func() { _ = srv.query.Close() })
	}
	return srv, nil
}

func (srv *Server) loadWorlds(ctx context.Context) error {
	if len(srv.conf.Worlds) == 0 {
		return errors.New("no world configured")
	}
	for _, wc := range srv.conf.Worlds {
		w, err := srv.worlds.Load(ctx, wc)
		if err != nil {
			return fmt.Errorf("load world %v: %w", wc.Name, err)
		}
		srv.log.Info("Loaded world.", "name", w.Name(), "namespace", w.Namespace(), "seed", w.Seed())
	}
	if srv.conf.DefaultWorld == "" {
		return nil
	}
	w, ok := srv.worlds.ByName(srv.conf.DefaultWorld)
	if !ok {
		return fmt.Errorf("default world %v is not configured", srv.conf.DefaultWorld)
	}
	return srv.worlds.SetDefault(w.UUID())
}

// Run serves connections until ctx is cancelled or Close is called, then
// shuts the server down: players are kicked, the subsystems stopped and the
// worlds saved.
func (srv *Server) Run(ctx context.Context) error {
	srv.log.Info("Server running.", "addr", srv.listener.Addr().String(), "version", packet.GameVersion)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.listener.Serve(gctx)
	})
	if srv.query != nil {
		g.Go(func() error {
			srv.log.Info("Query running.", "addr", srv.query.Addr().String())
			return srv.query.Serve(gctx)
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-srv.closing:
		}
		srv.log.Info("Server closing...")
		_ = srv.listener.Close()
		if srv.query != nil {
			_ = srv.query.Close()
		}
		return nil
	})
	err := g.Wait()
	srv.stop()
	srv.log.Info("Server closed.", "uptime", time.Since(srv.started).Round(time.Second).String())
	if errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close requests the server to stop. It does not wait for the shutdown, so it
// may be called from a command running on the server.
func (srv *Server) Close() error {
	srv.once.Do(func() { close(srv.closing) })
	return nil
}

// Addr returns the address the game listener is bound to.
func (srv *Server) Addr() net.Addr { return srv.listener.Addr() }

// stop runs the closers in reverse order. The session manager is among the
// last created, so players are kicked while the services they use still run.
func (srv *Server) stop() {
	for i := len(srv.closers) - 1; i >= 0; i-- {
		srv.closers[i]()
	}
	srv.closers = nil
}

func (srv *Server) closeWorlds() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	n, err := srv.worlds.Close(ctx)
	if err != nil {
		srv.log.Error("close worlds: "+err.Error(), "closed", n)
		return
	}
	srv.log.Info("Saved worlds.", "count", n)
}

func (srv *Server) playerNames() []string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	players, err := srv.players.Players(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return names
}

// PlayerList returns the online player list.
func (srv *Server) PlayerList() *playerlist.List { return srv.players }

// Chat returns the chat manager.
func (srv *Server) Chat() *chat.Manager { return srv.chat }

// Titles returns the title manager.
func (srv *Server) Titles() *title.Manager { return srv.titles }

// Worlds returns the world manager.
func (srv *Server) Worlds() *world.Manager { return srv.worlds }

// Rules returns the authority handle of the game rules.
func (srv *Server) Rules() *rule.Handle { return srv.rules }

// Blacklist returns the blacklist.
func (srv *Server) Blacklist() *access.List { return srv.blacklist }

// Whitelist returns the whitelist.
func (srv *Server) Whitelist() *access.List { return srv.whitelist }

// Commands returns the command manager.
func (srv *Server) Commands() *cmd.Manager { return srv.commands }

// Metrics returns the message counters of the actors.
func (srv *Server) Metrics() *actor.Metrics { return srv.metrics }

// StartTime returns the time the server was created.
func (srv *Server) StartTime() time.Time { return srv.started }

// Kick disconnects an online player.
func (srv *Server) Kick(_ context.Context, id uuid.UUID, reason text.Component) error {
	return srv.sessions.Kick(id, reason)
}
