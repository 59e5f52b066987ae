// Package ingress accepts client connections and drives them through the
// handshake, status and login states. A connection that logs in is handed to
// the Game together with its write half; the ingress goroutine then keeps
// reading and forwards every packet to the Game's Inbound.
package ingress

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/access"
	"github.com/qexed/qexed/server/playerlist"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/status"
	"github.com/qexed/qexed/server/text"
)

// Player is the identity of a client that completed login.
type Player struct {
	UUID       uuid.UUID
	Name       string
	Properties []packet.Property
	// Addr is the client's address, as forwarded by a proxy if there is one.
	Addr string
}

// Inbound receives the packets of a logged in client, starting in the
// configuration state.
type Inbound interface {
	// Handle is called for every packet read. An error closes the
	// connection.
	Handle(pk packet.Packet) error
	// Closed is called once when the connection ends.
	Closed()
}

// ErrPlayerNotAway is returned by a Game for a player that already has a
// session. The new connection is refused and the old one is kept.
var ErrPlayerNotAway = errors.New("player not away")

// Game takes over logged in clients.
type Game interface {
	Connect(ctx context.Context, p Player, c Client) (Inbound, error)
}

// StatusSource provides the server list response. *status.Status implements
// it.
type StatusSource interface {
	Response(ctx context.Context) (status.Response, error)
}

// Roster is the online player set consulted by the acceptance gate.
// *playerlist.List implements it.
type Roster interface {
	Counts(ctx context.Context) (playerlist.Counts, error)
	Contains(ctx context.Context, id uuid.UUID) (bool, error)
}

// Gate decides whether a player may join. *access.List implements it.
type Gate interface {
	Allow(ctx context.Context, e access.Entry) (text.Component, bool, error)
}

// Config configures a Listener.
type Config struct {
	// Address is the TCP address to listen on.
	Address string
	// OnlineMode requires Mojang authentication. Authentication is not
	// implemented, so online mode refuses every login.
	OnlineMode bool
	// CompressionThreshold is the packet size from which frames are
	// compressed. A negative value disables compression.
	CompressionThreshold int
	// Proxy makes the listener expect forwarding headers of ProxyProtocol
	// carrying ProxyToken.
	Proxy         bool
	ProxyProtocol ProxyProtocol
	ProxyToken    string
	RateLimit     RateLimit
	// StatusTimeout bounds the status exchange. LoginTimeout bounds the
	// handshake and login until the client is handed to the Game.
	StatusTimeout time.Duration
	LoginTimeout  time.Duration

	Status    StatusSource
	Players   Roster
	Whitelist Gate
	Blacklist Gate
	Game      Game
	Log       *slog.Logger
}

// Listener accepts connections.
type Listener struct {
	conf    Config
	ln      net.Listener
	limiter *limiter
	log     *slog.Logger

	wg sync.WaitGroup
}

// Listen opens the TCP listener.
func Listen(conf Config) (*Listener, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.StatusTimeout <= 0 {
		conf.StatusTimeout = 5 * time.Second
	}
	if conf.LoginTimeout <= 0 {
		conf.LoginTimeout = 30 * time.Second
	}
	if conf.Game == nil || conf.Status == nil || conf.Players == nil {
		return nil, errors.New("ingress: Game, Status and Players must be set")
	}
	ln, err := net.Listen("tcp", conf.Address)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Listener{conf: conf, ln: ln, limiter: newLimiter(conf.RateLimit), log: conf.Log}, nil
}

// Addr returns the address listened on.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until ctx is cancelled or the Listener is closed.
// Connections already handed to the Game outlive Serve.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()
	defer l.wg.Wait()

	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		host, _, _ := net.SplitHostPort(nc.RemoteAddr().String())
		if !l.limiter.allow(host, time.Now()) {
			l.log.Debug("connection rate limited", "raddr", nc.RemoteAddr().String())
			_ = nc.Close()
			continue
		}
		l.wg.Add(1)
		go l.handle(ctx, nc, l.wg.Done)
	}
}

// Close stops accepting connections.
func (l *Listener) Close() error { return l.ln.Close() }

// refusal is a connection ended before it reached the Game.
type refusal struct {
	reason  Reason
	message *text.Component
	err     error
}

func (r *refusal) Error() string {
	if r.err != nil {
		return r.reason.String() + ": " + r.err.Error()
	}
	return r.reason.String()
}

func (r *refusal) Unwrap() error { return r.err }

func refuse(reason Reason, err error) *refusal { return &refusal{reason: reason, err: err} }

// handle serves one connection. negotiated is called once the connection has
// been refused, answered or handed to the Game.
func (l *Listener) handle(ctx context.Context, nc net.Conn, negotiated func()) {
	c := newConn(nc, l.log)
	log := l.log.With("raddr", nc.RemoteAddr().String())

	in, p, err := l.negotiate(ctx, c)
	negotiated()
	if err != nil {
		var r *refusal
		switch {
		case errors.As(err, &r) && !r.reason.Silent():
			log.Info("connection refused: " + r.Error())
			msg := r.reason.Message()
			if r.message != nil {
				msg = *r.message
			}
			c.Disconnect(msg)
		case errors.As(err, &r):
			log.Debug("connection dropped: " + r.Error())
			_ = c.Close()
		default:
			log.Debug("connection ended: " + err.Error())
			_ = c.Close()
		}
		return
	}
	if in == nil {
		_ = c.Close()
		return
	}
	log = log.With("player", p.Name)
	_ = c.SetReadDeadline(time.Time{})
	for {
		pk, err := c.ReadPacket()
		if err != nil {
			if errors.Is(err, ErrProtocolViolation) {
				log.Info("protocol violation: " + err.Error())
				c.Disconnect(ReasonProtocolViolation.Message())
			} else {
				log.Debug("read packet: " + err.Error())
				_ = c.Close()
			}
			break
		}
		if err := in.Handle(pk); err != nil {
			log.Debug("session gone: " + err.Error())
			_ = c.Close()
			break
		}
	}
	in.Closed()
}

// negotiate runs the handshake and either the status exchange, which returns
// a nil Inbound, or the login.
func (l *Listener) negotiate(ctx context.Context, c *Conn) (Inbound, Player, error) {
	_ = c.SetReadDeadline(time.Now().Add(l.conf.LoginTimeout))
	first, err := c.r.PeekByte()
	if err != nil {
		return nil, Player{}, err
	}
	if first == packet.IDLegacyPing {
		return nil, Player{}, l.legacyPing(ctx, c)
	}
	pk, err := c.ReadPacket()
	if err != nil {
		return nil, Player{}, l.readError(err)
	}
	intention, ok := pk.(*packet.Intention)
	if !ok {
		return nil, Player{}, refuse(ReasonProtocolViolation, fmt.Errorf("unexpected %T", pk))
	}
	switch intention.NextState {
	case packet.NextStateStatus:
		c.setState(packet.StateStatus)
		return nil, Player{}, l.status(ctx, c)
	case packet.NextStateLogin, packet.NextStateTransfer:
		c.setState(packet.StateLogin)
		return l.login(ctx, c, intention)
	}
	return nil, Player{}, refuse(ReasonProtocolViolation, fmt.Errorf("next state %d", intention.NextState))
}

func (l *Listener) readError(err error) error {
	if errors.Is(err, ErrProtocolViolation) {
		return refuse(ReasonProtocolViolation, err)
	}
	return refuse(ReasonFraming, err)
}

func (l *Listener) legacyPing(ctx context.Context, c *Conn) error {
	res, err := l.conf.Status.Response(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	return writeLegacy(c.nc, res)
}

// status answers one Request and one Ping, then the connection is closed.
func (l *Listener) status(ctx context.Context, c *Conn) error {
	_ = c.SetReadDeadline(time.Now().Add(l.conf.StatusTimeout))
	for {
		pk, err := c.ReadPacket()
		if err != nil {
			return l.readError(err)
		}
		switch pk := pk.(type) {
		case *packet.StatusRequest:
			res, err := l.conf.Status.Response(ctx)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if err := c.SendPacket(&packet.StatusResponse{JSON: res.JSON}); err != nil {
				return err
			}
		case *packet.StatusPing:
			if err := c.SendPacket(&packet.StatusPong{Payload: pk.Payload}); err != nil {
				return err
			}
			return nil
		}
	}
}

func (l *Listener) login(ctx context.Context, c *Conn, intention *packet.Intention) (Inbound, Player, error) {
	var fwd *Forwarded
	if l.conf.Proxy {
		f, err := ParseForwarded(l.conf.ProxyProtocol, intention.ServerAddress)
		if err == nil {
			err = f.Verify(l.conf.ProxyToken)
		}
		if err != nil {
			return nil, Player{}, refuse(ReasonInvalidProxy, err)
		}
		fwd = &f
	}
	switch {
	case intention.ProtocolVersion < packet.ProtocolVersion:
		return nil, Player{}, refuse(ReasonOutdatedClient, fmt.Errorf("protocol %d", intention.ProtocolVersion))
	case intention.ProtocolVersion > packet.ProtocolVersion:
		return nil, Player{}, refuse(ReasonOutdatedServer, fmt.Errorf("protocol %d", intention.ProtocolVersion))
	}

	pk, err := c.ReadPacket()
	if err != nil {
		return nil, Player{}, l.readError(err)
	}
	start, ok := pk.(*packet.LoginStart)
	if !ok {
		return nil, Player{}, refuse(ReasonProtocolViolation, fmt.Errorf("unexpected %T", pk))
	}
	if !ValidName(start.Name) {
		return nil, Player{}, refuse(ReasonInvalidName, fmt.Errorf("name %q", start.Name))
	}
	if l.conf.OnlineMode && fwd == nil {
		return nil, Player{}, refuse(ReasonAuthentication, errors.New("online mode authentication is unavailable"))
	}

	p := Player{Name: start.Name, UUID: OfflineUUID(start.Name), Addr: c.RemoteAddr().String()}
	if fwd != nil {
		p.UUID, p.Properties, p.Addr = fwd.UUID, fwd.Properties, fwd.IP
	}
	if err := l.admit(ctx, p); err != nil {
		return nil, p, err
	}

	if l.conf.CompressionThreshold >= 0 {
		if err := c.enableCompression(l.conf.CompressionThreshold); err != nil {
			return nil, p, err
		}
	}
	if err := c.SendPacket(&packet.LoginSuccess{UUID: p.UUID, Name: p.Name, Properties: p.Properties}); err != nil {
		return nil, p, err
	}
	for {
		pk, err := c.ReadPacket()
		if err != nil {
			return nil, p, l.readError(err)
		}
		if _, ok := pk.(*packet.LoginAcknowledged); ok {
			break
		}
	}

	in, err := l.conf.Game.Connect(ctx, p, c)
	if errors.Is(err, ErrPlayerNotAway) {
		return nil, p, refuse(ReasonPlayerNotAway, err)
	} else if err != nil {
		return nil, p, refuse(ReasonInternal, err)
	}
	l.log.Info("player logged in", "player", p.Name, "uuid", p.UUID.String(), "raddr", p.Addr)
	return in, p, nil
}

// admit runs the acceptance gate: whitelist, blacklist, capacity, then
// uniqueness.
func (l *Listener) admit(ctx context.Context, p Player) error {
	e := access.Entry{UUID: p.UUID, Name: p.Name}
	for _, g := range []Gate{l.conf.Whitelist, l.conf.Blacklist} {
		if g == nil {
			continue
		}
		msg, ok, err := g.Allow(ctx, e)
		if err != nil {
			return fmt.Errorf("access check: %w", err)
		}
		if !ok {
			return &refusal{reason: ReasonAccessDenied, message: &msg}
		}
	}
	counts, err := l.conf.Players.Counts(ctx)
	if err != nil {
		return fmt.Errorf("player counts: %w", err)
	}
	if counts.Online >= counts.Max {
		return refuse(ReasonServerFull, nil)
	}
	online, err := l.conf.Players.Contains(ctx, p.UUID)
	if err != nil {
		return fmt.Errorf("player list: %w", err)
	}
	if online {
		return refuse(ReasonPlayerNotAway, nil)
	}
	return nil
}

// ValidName reports whether name is a valid player name: 1 to 16 letters,
// digits or underscores.
func ValidName(name string) bool {
	if len(name) == 0 || len(name) > 16 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// OfflineUUID returns the version 3 UUID offline-mode servers derive from
// "OfflinePlayer:" and the player's name.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum)
}
