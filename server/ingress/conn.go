package ingress

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/text"
)

// ErrProtocolViolation is returned by ReadPacket for a packet that is not
// valid in the connection's state.
var ErrProtocolViolation = errors.New("ingress: protocol violation")

// flushTimeout bounds how long Close waits for queued packets to be written.
const flushTimeout = 2 * time.Second

// Client is the server side of a logged in connection.
type Client interface {
	packet.Sender
	// Disconnect sends reason in the packet of the current state and closes
	// the connection.
	Disconnect(reason text.Component)
	Close() error
	RemoteAddr() net.Addr
}

// Conn is a client connection. Packets are read by one goroutine with
// ReadPacket; SendPacket may be called from any goroutine and queues the
// packet for the connection's writer actor.
type Conn struct {
	nc    net.Conn
	r     *protocol.FrameReader
	w     *actor.Sender[outbound]
	state atomic.Uint32
	log   *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

type outbound interface{ outbound() }

type outPacket struct{ pk packet.Packet }

type outThreshold struct{ threshold int }

func (outPacket) outbound()    {}
func (outThreshold) outbound() {}

func newConn(nc net.Conn, log *slog.Logger) *Conn {
	c := &Conn{
		nc:     nc,
		r:      protocol.NewFrameReader(nc),
		log:    log,
		closed: make(chan struct{}),
	}
	c.w = actor.Spawn[outbound](&writer{nc: nc, threshold: -1, log: log}, actor.Config{Name: "conn_writer", Log: log})
	return c
}

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// State returns the protocol state packets are currently decoded in.
func (c *Conn) State() packet.State { return packet.State(c.state.Load()) }

func (c *Conn) setState(s packet.State) { c.state.Store(uint32(s)) }

// SendPacket queues pk. It fails with actor.ErrPeerGone once the connection is
// closed.
func (c *Conn) SendPacket(pk packet.Packet) error {
	return c.w.Send(outPacket{pk})
}

// ReadPacket reads and decodes the next packet. The packets that end the login
// and configuration states move the connection to the next state before the
// following packet is read.
func (c *Conn) ReadPacket() (packet.Packet, error) {
	f, err := c.r.ReadFrame()
	if err != nil {
		return nil, err
	}
	pk, err := packet.DecodeServerbound(c.State(), f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	switch pk.(type) {
	case *packet.LoginAcknowledged:
		c.setState(packet.StateConfiguration)
	case *packet.FinishConfigurationAck:
		c.setState(packet.StatePlay)
	case *packet.ConfigurationAcknowledged:
		c.setState(packet.StateConfiguration)
	}
	return pk, nil
}

// SetReadDeadline sets the deadline of the next reads.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.nc.SetReadDeadline(t) }

// enableCompression sends SetCompression and compresses every later frame in
// both directions.
func (c *Conn) enableCompression(threshold int) error {
	if err := c.SendPacket(&packet.SetCompression{Threshold: int32(threshold)}); err != nil {
		return err
	}
	if err := c.w.Send(outThreshold{threshold}); err != nil {
		return err
	}
	c.r.SetThreshold(threshold)
	return nil
}

// Disconnect sends reason with the disconnect packet of the current state and
// closes the connection. States without a disconnect packet are closed
// silently.
func (c *Conn) Disconnect(reason text.Component) {
	var pk packet.Packet
	switch c.State() {
	case packet.StateLogin:
		pk = &packet.LoginDisconnect{Reason: reason.JSON()}
	case packet.StateConfiguration:
		pk = &packet.ConfigDisconnect{Reason: reason}
	case packet.StatePlay:
		pk = &packet.PlayDisconnect{Reason: reason}
	}
	if pk != nil {
		_ = c.SendPacket(pk)
	}
	_ = c.Close()
}

// Close writes the packets still queued, waiting at most flushTimeout, and
// closes the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setState(packet.StateClosed)
		c.w.Close()
		select {
		case <-c.w.Done():
		case <-time.After(flushTimeout):
		}
		err = c.nc.Close()
		close(c.closed)
	})
	return err
}

// Closed is closed once Close has run.
func (c *Conn) Closed() <-chan struct{} { return c.closed }

// writer owns the write half of the socket. Frames are encoded here so a
// threshold change applies exactly to the packets queued after it.
type writer struct {
	nc        net.Conn
	threshold int
	buf       []byte
	log       *slog.Logger
}

func (w *writer) Handle(_ *actor.Sender[outbound], m outbound) bool {
	switch m := m.(type) {
	case outThreshold:
		w.threshold = m.threshold
	case outPacket:
		payload, err := packet.Encode(m.pk)
		if err != nil {
			w.log.Error(err.Error())
			return false
		}
		w.buf, err = protocol.AppendFrame(w.buf[:0], m.pk.ID(), payload, w.threshold)
		if err != nil {
			w.log.Error(fmt.Sprintf("frame %T: %v", m.pk, err))
			return false
		}
		if _, err := w.nc.Write(w.buf); err != nil {
			w.log.Debug("write packet: "+err.Error(), "raddr", w.nc.RemoteAddr().String())
			_ = w.nc.Close()
			return true
		}
	}
	return false
}
