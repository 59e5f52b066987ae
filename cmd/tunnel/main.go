// Command tunnel is a front-end proxy for a qexed server. It reads the
// handshake and login start of every client, forwards the client's address
// and offline identity in a QTunnel header and then relays the connection to
// the backend unchanged.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qexed/qexed/server/ingress"
	"github.com/qexed/qexed/server/protocol"
	"github.com/qexed/qexed/server/protocol/packet"
	"golang.org/x/sync/errgroup"
)

// handshakeTimeout bounds reading the packets the tunnel rewrites.
const handshakeTimeout = 10 * time.Second

type config struct {
	listen  string
	backend string
	token   string
}

func main() {
	var conf config
	flag.StringVar(&conf.listen, "listen", "0.0.0.0:25566", "address clients connect to")
	flag.StringVar(&conf.backend, "backend", "127.0.0.1:25565", "address of the qexed server")
	flag.StringVar(&conf.token, "token", "", "proxy_token configured on the server")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, conf, log); err != nil {
		fmt.Fprintln(os.Stderr, "tunnel:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, conf config, log *slog.Logger) error {
	ln, err := net.Listen("tcp", conf.listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	context.AfterFunc(ctx, func() { _ = ln.Close() })
	log.Info("Tunnel running.", "addr", ln.Addr().String(), "backend", conf.backend)

	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			if err := relay(ctx, conf, nc); err != nil {
				log.Debug("relay ended: "+err.Error(), "raddr", nc.RemoteAddr().String())
			}
		}()
	}
}

// relay rewrites the handshake of nc and joins it to a new backend
// connection.
func relay(ctx context.Context, conf config, nc net.Conn) error {
	defer nc.Close()
	_ = nc.SetReadDeadline(time.Now().Add(handshakeTimeout))
	r := protocol.NewFrameReader(nc)

	head, err := rewrite(conf, r, nc.RemoteAddr())
	if err != nil {
		return err
	}
	_ = nc.SetReadDeadline(time.Time{})

	var d net.Dialer
	backend, err := d.DialContext(ctx, "tcp", conf.backend)
	if err != nil {
		return fmt.Errorf("dial backend: %w", err)
	}
	defer backend.Close()
	if _, err := backend.Write(append(head, r.Buffered()...)); err != nil {
		return fmt.Errorf("write backend: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	context.AfterFunc(gctx, func() {
		_ = nc.Close()
		_ = backend.Close()
	})
	g.Go(func() error { return pipe(backend, nc) })
	g.Go(func() error { return pipe(nc, backend) })
	return g.Wait()
}

// pipe copies src to dst and reports the end of either side as an error so
// the opposite direction is torn down too.
func pipe(dst, src net.Conn) error {
	_, err := io.Copy(dst, src)
	if err == nil {
		err = io.EOF
	}
	return err
}

// rewrite reads the handshake and, for logins, the login start of a client.
// It returns the frames to send to the backend.
func rewrite(conf config, r *protocol.FrameReader, addr net.Addr) ([]byte, error) {
	f, err := r.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	pk, err := packet.DecodeServerbound(packet.StateHandshake, f)
	if err != nil {
		return nil, err
	}
	intention, ok := pk.(*packet.Intention)
	if !ok {
		return nil, fmt.Errorf("%w: expected handshake", ingress.ErrProtocolViolation)
	}
	if intention.NextState == packet.NextStateStatus {
		return appendPacket(nil, intention)
	}

	f, err = r.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read login start: %w", err)
	}
	pk, err = packet.DecodeServerbound(packet.StateLogin, f)
	if err != nil {
		return nil, err
	}
	start, ok := pk.(*packet.LoginStart)
	if !ok || !ingress.ValidName(start.Name) {
		return nil, fmt.Errorf("%w: expected login start", ingress.ErrProtocolViolation)
	}
	ip, _, _ := net.SplitHostPort(addr.String())
	header, err := ingress.Forwarded{
		Host:  intention.ServerAddress,
		IP:    ip,
		UUID:  ingress.OfflineUUID(start.Name),
		Token: conf.token,
	}.Encode(ingress.QTunnel)
	if err != nil {
		return nil, err
	}
	intention.ServerAddress = header

	head, err := appendPacket(nil, intention)
	if err != nil {
		return nil, err
	}
	return appendPacket(head, start)
}

func appendPacket(dst []byte, pk packet.Packet) ([]byte, error) {
	payload, err := packet.Encode(pk)
	if err != nil {
		return nil, err
	}
	return protocol.AppendFrame(dst, pk.ID(), payload, -1)
}
