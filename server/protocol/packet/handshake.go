package packet

import (
	"github.com/qexed/qexed/server/protocol"
)

const (
	IDIntention  = 0x00
	IDLegacyPing = 0xFE
)

// Values of Intention.NextState.
const (
	NextStateStatus   = 1
	NextStateLogin    = 2
	NextStateTransfer = 3
)

// Intention is the first packet of every connection, selecting the next state.
type Intention struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

func (*Intention) ID() int32 { return IDIntention }

func (pk *Intention) Marshal(io protocol.IO) {
	io.Varint32(&pk.ProtocolVersion)
	io.String(&pk.ServerAddress)
	io.Uint16(&pk.ServerPort)
	io.Varint32(&pk.NextState)
}

func init() {
	register(serverbound, StateHandshake, func() Packet { return &Intention{} })
}
