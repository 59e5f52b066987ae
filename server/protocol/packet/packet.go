// Package packet defines the packets of protocol 772 (Minecraft 1.21.8) that
// the server speaks, grouped by connection state and direction.
package packet

import (
	"errors"
	"fmt"

	"github.com/qexed/qexed/server/protocol"
)

const (
	// ProtocolVersion is the protocol number served.
	ProtocolVersion = 772
	// GameVersion is the game release matching ProtocolVersion.
	GameVersion = "1.21.8"
)

// Packet is implemented by every packet. Marshal describes the field layout
// once for both directions.
type Packet interface {
	ID() int32
	Marshal(io protocol.IO)
}

// State is the protocol phase of a connection.
type State uint8

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StateConfiguration
	StatePlay
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StateConfiguration:
		return "configuration"
	case StatePlay:
		return "play"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ErrUnknownPacket is returned when a packet ID is not valid in a state.
var ErrUnknownPacket = errors.New("packet: unknown packet id")

// Pool maps packet IDs to constructors.
type Pool map[int32]func() Packet

var (
	serverbound = map[State]Pool{}
	clientbound = map[State]Pool{}
)

func register(pools map[State]Pool, state State, ctors ...func() Packet) {
	pool, ok := pools[state]
	if !ok {
		pool = Pool{}
		pools[state] = pool
	}
	for _, ctor := range ctors {
		id := ctor().ID()
		if _, exists := pool[id]; exists {
			panic(fmt.Sprintf("packet: duplicate %s id %#x", state, id))
		}
		pool[id] = ctor
	}
}

// Sender delivers packets to one client. Implementations are safe for
// concurrent use; SendPacket does not wait for the packet to be written.
type Sender interface {
	SendPacket(pk Packet) error
}

// Encode returns the payload of pk: its ID is not included.
func Encode(pk Packet) ([]byte, error) {
	w := protocol.NewWriter()
	pk.Marshal(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("encode %T: %w", pk, err)
	}
	return w.Data(), nil
}

// maxServerboundPlayID is the highest serverbound play packet ID of the
// protocol. IDs up to it that this package does not model decode as Unknown.
const maxServerboundPlayID = 0x41

// Unknown is a valid play packet the server does not model. It is ignored
// rather than treated as a protocol violation.
type Unknown struct {
	PacketID int32
	Payload  []byte
}

func (pk *Unknown) ID() int32 { return pk.PacketID }

func (pk *Unknown) Marshal(io protocol.IO) { io.Bytes(&pk.Payload) }

// DecodeServerbound decodes a frame sent by a client in state.
func DecodeServerbound(state State, f protocol.Frame) (Packet, error) {
	if state == StatePlay && f.ID >= 0 && f.ID <= maxServerboundPlayID {
		if _, ok := serverbound[state][f.ID]; !ok {
			return &Unknown{PacketID: f.ID, Payload: f.Payload}, nil
		}
	}
	return decode(serverbound[state], state, f)
}

// DecodeClientbound decodes a frame sent by a server in state.
func DecodeClientbound(state State, f protocol.Frame) (Packet, error) {
	return decode(clientbound[state], state, f)
}

func decode(pool Pool, state State, f protocol.Frame) (Packet, error) {
	ctor, ok := pool[f.ID]
	if !ok {
		return nil, fmt.Errorf("%w %#x in %s", ErrUnknownPacket, f.ID, state)
	}
	pk := ctor()
	r := protocol.NewReader(f.Payload)
	pk.Marshal(r)
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode %T: %w", pk, err)
	}
	return pk, nil
}
