package packet

import (
	"github.com/qexed/qexed/server/protocol"
)

const (
	IDStatusRequest  = 0x00
	IDStatusPing     = 0x01
	IDStatusResponse = 0x00
	IDStatusPong     = 0x01
)

// StatusRequest asks for the server list entry.
type StatusRequest struct{}

func (*StatusRequest) ID() int32           { return IDStatusRequest }
func (*StatusRequest) Marshal(protocol.IO) {}

// StatusResponse carries the server list entry as JSON.
type StatusResponse struct {
	JSON string
}

func (*StatusResponse) ID() int32 { return IDStatusResponse }

func (pk *StatusResponse) Marshal(io protocol.IO) { io.String(&pk.JSON) }

// StatusPing is echoed back as StatusPong to measure latency.
type StatusPing struct {
	Payload int64
}

func (*StatusPing) ID() int32 { return IDStatusPing }

func (pk *StatusPing) Marshal(io protocol.IO) { io.Int64(&pk.Payload) }

// StatusPong echoes a StatusPing.
type StatusPong struct {
	Payload int64
}

func (*StatusPong) ID() int32 { return IDStatusPong }

func (pk *StatusPong) Marshal(io protocol.IO) { io.Int64(&pk.Payload) }

func init() {
	register(serverbound, StateStatus,
		func() Packet { return &StatusRequest{} },
		func() Packet { return &StatusPing{} },
	)
	register(clientbound, StateStatus,
		func() Packet { return &StatusResponse{} },
		func() Packet { return &StatusPong{} },
	)
}
