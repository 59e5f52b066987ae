package query

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	gophertunnelquery "github.com/sandertv/gophertunnel/query"
)

type packetRecorder struct {
	writes [][]byte
	addrs  []net.Addr
}

func (p *packetRecorder) ReadFrom([]byte) (int, net.Addr, error) {
	return 0, nil, errors.New("not implemented")
}

func (p *packetRecorder) WriteTo(b []byte, addr net.Addr) (int, error) {
	cp := append([]byte(nil), b...)
	p.writes = append(p.writes, cp)
	p.addrs = append(p.addrs, addr)
	return len(b), nil
}

func (p *packetRecorder) Close() error { return nil }

func (p *packetRecorder) LocalAddr() net.Addr { return &net.UDPAddr{Port: 25565} }

func (p *packetRecorder) SetDeadline(time.Time) error { return nil }

func (p *packetRecorder) SetReadDeadline(time.Time) error { return nil }

func (p *packetRecorder) SetWriteDeadline(time.Time) error { return nil }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestQueryResponsesParseWithGophertunnel(t *testing.T) {
	expected := Data{
		MOTD:             "Integration Test",
		WorldName:        "lobby",
		Plugins:          "Qexed",
		PlayerCount:      3,
		MaxPlayers:       25,
		PlayerNames:      []string{"Alex", "Bob", "Steve"},
		WhitelistEnabled: true,
	}
	r, err := Listen(Config{
		Address:  "127.0.0.1:0",
		Provider: func(context.Context) (Data, error) { return expected, nil },
		Log:      discard(),
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	addr := r.Addr().(*net.UDPAddr)
	information, err := gophertunnelquery.Do(addr.String())
	if err != nil {
		t.Fatalf("query do: %v", err)
	}

	checks := map[string]string{
		"hostname":   expected.MOTD,
		"gametype":   "SMP",
		"game_id":    "MINECRAFT",
		"version":    "1.21.8",
		"plugins":    "Qexed",
		"map":        expected.WorldName,
		"numplayers": strconv.Itoa(expected.PlayerCount),
		"maxplayers": strconv.Itoa(expected.MaxPlayers),
		"whitelist":  "on",
		"hostport":   strconv.Itoa(addr.Port),
		"hostip":     "127.0.0.1",
		"players":    strings.Join(expected.PlayerNames, ", "),
	}
	for key, want := range checks {
		got, ok := information[key]
		if !ok {
			t.Fatalf("expected key %q to be present in query information", key)
		}
		if got != want {
			t.Fatalf("unexpected value for key %q: got %q, want %q", key, got, want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("serve did not return after cancellation")
	}
}

func request(kind byte, seq uint32, payload ...byte) []byte {
	b := append([]byte(nil), queryVersion[:]...)
	b = append(b, kind)
	b = binary.BigEndian.AppendUint32(b, seq)
	return append(b, payload...)
}

func TestHandleQueryAcceptsASCIIChallengeTokens(t *testing.T) {
	recorder := &packetRecorder{}
	r := newResponder(recorder, Config{Log: discard()})
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 43210}
	r.tokens = map[string]token{addr.String(): {value: 7654321, expiry: time.Now().Add(time.Minute)}}

	payload := append([]byte("7654321"), 0x00, 0xff, 0xff, 0xff, 0x01)
	if !r.handleQuery(context.Background(), request(queryTypeInformation, 42, payload...), addr) {
		t.Fatalf("expected query information request to be handled")
	}
	if len(recorder.writes) != 1 {
		t.Fatalf("expected one response write, got %d", len(recorder.writes))
	}
	if !bytes.Contains(recorder.writes[0], querySplitNum[:]) {
		t.Fatalf("expected a full stat response")
	}
}

func TestBasicStat(t *testing.T) {
	recorder := &packetRecorder{}
	r := newResponder(recorder, Config{
		Provider: func(context.Context) (Data, error) {
			return Data{MOTD: "hi", PlayerCount: 1, MaxPlayers: 20}, nil
		},
		Log: discard(),
	})
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 5000}

	r.handleQuery(context.Background(), request(queryTypeHandshake, 7), addr)
	if len(recorder.writes) != 1 {
		t.Fatalf("expected a handshake response")
	}
	tok, err := strconv.ParseInt(string(bytes.TrimRight(recorder.writes[0][5:], "\x00")), 10, 32)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	r.handleQuery(context.Background(), request(queryTypeInformation, 7, binary.BigEndian.AppendUint32(nil, uint32(tok))...), addr)
	if len(recorder.writes) != 2 {
		t.Fatalf("expected a basic stat response, got %d writes", len(recorder.writes))
	}
	resp := recorder.writes[1]
	fields := bytes.SplitN(resp[5:], []byte{0}, 6)
	if string(fields[0]) != "hi" || string(fields[1]) != "SMP" || string(fields[2]) != "world" ||
		string(fields[3]) != "1" || string(fields[4]) != "20" {
		t.Fatalf("unexpected basic stat fields %q", fields[:5])
	}
	port := binary.LittleEndian.Uint16(fields[5][:2])
	if port != 25565 {
		t.Fatalf("hostport = %d, want 25565", port)
	}
}

func TestInvalidTokenIsIgnored(t *testing.T) {
	recorder := &packetRecorder{}
	r := newResponder(recorder, Config{Log: discard()})
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 3), Port: 5000}
	if !r.handleQuery(context.Background(), request(queryTypeInformation, 1, 0, 0, 0, 9), addr) {
		t.Fatalf("query packets must be consumed")
	}
	if len(recorder.writes) != 0 {
		t.Fatalf("a request with an unknown token must not be answered")
	}
	if r.handleQuery(context.Background(), []byte{0x01, 0x02}, addr) {
		t.Fatalf("non-query datagrams must not be handled")
	}
}

func TestProviderFailureUsesLastSnapshot(t *testing.T) {
	recorder := &packetRecorder{}
	fail := false
	r := newResponder(recorder, Config{
		Provider: func(context.Context) (Data, error) {
			if fail {
				return Data{}, errors.New("gone")
			}
			return Data{MOTD: "cached", PlayerCount: 4}, nil
		},
		Log: discard(),
	})
	if d := r.collect(context.Background()); d.MOTD != "cached" {
		t.Fatalf("unexpected data %+v", d)
	}
	fail = true
	d := r.collect(context.Background())
	if d.MOTD != "cached" || d.PlayerCount != 4 {
		t.Fatalf("expected the last snapshot, got %+v", d)
	}
}
