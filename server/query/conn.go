package query

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	queryTypeHandshake   = 0x09
	queryTypeInformation = 0x00
)

var (
	querySplitNum  = [...]byte{'s', 'p', 'l', 'i', 't', 'n', 'u', 'm', 0x00}
	queryPlayerKey = [...]byte{0x01, 'p', 'l', 'a', 'y', 'e', 'r', '_', 0x00, 0x00}
	queryVersion   = [...]byte{0xfe, 0xfd}
)

// Provider returns the current server state. It is called once per stat
// request.
type Provider func(ctx context.Context) (Data, error)

// Config configures a Responder.
type Config struct {
	// Address is the UDP address to listen on, such as ":25565".
	Address  string
	Provider Provider
	// TokenExpiry is how long a challenge token stays valid. Defaults to 30s.
	TokenExpiry time.Duration
	Log         *slog.Logger
}

// Responder answers query requests on a UDP socket.
type Responder struct {
	conn net.PacketConn
	conf Config
	log  *slog.Logger
	host string
	port int

	mu     sync.Mutex
	tokens map[string]token
	rng    *rand.Rand

	last atomic.Pointer[Data]
}

type token struct {
	value  int32
	expiry time.Time
}

// Listen opens the UDP socket of a Responder. Serve must be called to answer
// requests.
func Listen(conf Config) (*Responder, error) {
	conn, err := net.ListenPacket("udp", conf.Address)
	if err != nil {
		return nil, fmt.Errorf("listen query: %w", err)
	}
	return newResponder(conn, conf), nil
}

func newResponder(conn net.PacketConn, conf Config) *Responder {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.TokenExpiry <= 0 {
		conf.TokenExpiry = 30 * time.Second
	}
	r := &Responder{conn: conn, conf: conf, log: conf.Log, host: "0.0.0.0"}
	if local, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		if local.IP != nil && !local.IP.IsUnspecified() {
			r.host = local.IP.String()
		}
		r.port = local.Port
	}
	return r
}

// Addr returns the address the Responder listens on.
func (r *Responder) Addr() net.Addr { return r.conn.LocalAddr() }

// Serve answers requests until ctx is cancelled or the Responder is closed.
func (r *Responder) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = r.conn.Close() })
	defer stop()

	buf := make([]byte, 1500)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read query: %w", err)
		}
		if !r.handleQuery(ctx, buf[:n], addr) {
			r.log.Debug("ignored datagram", "raddr", addr.String(), "len", n)
		}
	}
}

// Close stops the Responder.
func (r *Responder) Close() error { return r.conn.Close() }

// handleQuery recognises and processes query requests. It reports whether b
// was a query packet.
func (r *Responder) handleQuery(ctx context.Context, b []byte, addr net.Addr) bool {
	if len(b) < 7 || b[0] != queryVersion[0] || b[1] != queryVersion[1] {
		return false
	}
	reqType := b[2]
	sequence := int32(binary.BigEndian.Uint32(b[3:7]))
	switch reqType {
	case queryTypeHandshake:
		r.writeHandshake(addr, sequence, r.newToken(addr.String()))
		return true
	case queryTypeInformation:
		payload := b[7:]
		token, ok := parseTokenValue(payload)
		if !ok || !r.validateToken(addr.String(), token) {
			return true
		}
		data := r.collect(ctx)
		if len(payload) == 4 {
			r.writeBasic(addr, sequence, data)
		} else {
			r.writeFull(addr, sequence, data)
		}
		return true
	default:
		return false
	}
}

// collect asks the provider for the current state. When the provider fails the
// last successful answer is used.
func (r *Responder) collect(ctx context.Context) Data {
	var data Data
	ok := false
	if r.conf.Provider != nil {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		d, err := r.conf.Provider(ctx)
		cancel()
		if err != nil {
			r.log.Debug("query provider: " + err.Error())
		} else {
			data, ok = d, true
		}
	}
	if !ok {
		if snap := r.last.Load(); snap != nil {
			data = cloneData(*snap)
		}
	}
	if data.HostIP == "" {
		data.HostIP = r.host
	}
	if data.HostPort == 0 {
		data.HostPort = r.port
	}
	data.applyDefaults()
	if ok {
		cp := cloneData(data)
		r.last.Store(&cp)
	}
	return data
}

// newToken issues a temporary token for the provided address. The token is
// required by the query protocol to guard against amplification attacks.
func (r *Responder) newToken(addr string) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if r.tokens == nil {
		r.tokens = make(map[string]token)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	for k, t := range r.tokens {
		if now.After(t.expiry) {
			delete(r.tokens, k)
		}
	}
	value := r.rng.Int31()
	r.tokens[addr] = token{value: value, expiry: now.Add(r.conf.TokenExpiry)}
	return value
}

// validateToken checks whether a previously issued token remains valid for the
// provided address.
func (r *Responder) validateToken(addr string, value int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[addr]
	if !ok || time.Now().After(t.expiry) || t.value != value {
		delete(r.tokens, addr)
		return false
	}
	return true
}

// writeHandshake constructs the handshake response that contains the issued
// token.
func (r *Responder) writeHandshake(addr net.Addr, sequence, token int32) {
	buf := bytes.NewBuffer(make([]byte, 0, 1+4+12))
	buf.WriteByte(queryTypeHandshake)
	_ = binary.Write(buf, binary.BigEndian, sequence)

	tokenStr := strconv.FormatInt(int64(token), 10)
	if len(tokenStr) > 11 {
		tokenStr = tokenStr[:11]
	}
	buf.WriteString(tokenStr)
	buf.Write(make([]byte, 12-len(tokenStr)))
	r.write(buf.Bytes(), addr)
}

// writeBasic renders the short stat layout.
func (r *Responder) writeBasic(addr net.Addr, sequence int32, data Data) {
	buf := bytes.NewBuffer(make([]byte, 0, 128))
	buf.WriteByte(queryTypeInformation)
	_ = binary.Write(buf, binary.BigEndian, sequence)
	for _, s := range []string{data.MOTD, data.GameType, data.WorldName, strconv.Itoa(data.PlayerCount), strconv.Itoa(data.MaxPlayers)} {
		buf.WriteString(s)
		buf.WriteByte(0x00)
	}
	_ = binary.Write(buf, binary.LittleEndian, uint16(data.HostPort))
	buf.WriteString(data.HostIP)
	buf.WriteByte(0x00)
	r.write(buf.Bytes(), addr)
}

// writeFull renders the full server information payload.
func (r *Responder) writeFull(addr net.Addr, sequence int32, data Data) {
	buf := bytes.NewBuffer(make([]byte, 0, 256))
	buf.WriteByte(queryTypeInformation)
	_ = binary.Write(buf, binary.BigEndian, sequence)
	buf.Write(querySplitNum[:])
	buf.WriteByte(0x80)
	buf.WriteByte(0x00)

	for _, kv := range data.keyValues() {
		buf.WriteString(kv.key)
		buf.WriteByte(0x00)
		buf.WriteString(kv.value)
		buf.WriteByte(0x00)
	}
	buf.WriteByte(0x00)
	buf.Write(queryPlayerKey[:])
	for _, name := range data.PlayerNames {
		buf.WriteString(name)
		buf.WriteByte(0x00)
	}
	buf.WriteByte(0x00)
	r.write(buf.Bytes(), addr)
}

func (r *Responder) write(b []byte, addr net.Addr) {
	if _, err := r.conn.WriteTo(b, addr); err != nil {
		r.log.Debug("query write failed", "err", err, "raddr", addr.String())
	}
}

// parseTokenValue accepts the token both as a big endian int32 and as the
// ASCII digits some clients echo back.
func parseTokenValue(payload []byte) (int32, bool) {
	trimmed := payload
	if len(trimmed) >= 4 {
		if i := bytes.Index(trimmed, []byte{0xff, 0xff, 0xff, 0x01}); i >= 0 {
			trimmed = trimmed[:i]
		}
	}
	trimmed = bytes.TrimRight(trimmed, "\x00")
	if len(trimmed) > 4 {
		if value, err := strconv.ParseInt(string(trimmed), 10, 32); err == nil {
			return int32(value), true
		}
	}
	if len(payload) >= 4 {
		return int32(binary.BigEndian.Uint32(payload[:4])), true
	}
	return 0, false
}
