package packet

import (
	"github.com/qexed/qexed/server/protocol"
)

// Serverbound play packet IDs.
const (
	IDAcceptTeleportation       = 0x00
	IDChatCommand               = 0x06
	IDChat                      = 0x08
	IDChunkBatchReceived        = 0x0A
	IDClientCommand             = 0x0B
	IDClientTickEnd             = 0x0C
	IDPlayClientInformation     = 0x0D
	IDCommandSuggestion         = 0x0E
	IDConfigurationAcknowledged = 0x0F
	IDPlayCustomPayload         = 0x15
	IDKeepAliveResponse         = 0x1B
	IDMovePlayerPos             = 0x1D
	IDMovePlayerPosRot          = 0x1E
	IDMovePlayerRot             = 0x1F
	IDMovePlayerStatusOnly      = 0x20
	IDPlayerLoaded              = 0x2B
	IDPlayPong                  = 0x2C
	IDPlayCustomClickAction     = 0x41
)

// AcceptTeleportation confirms a PlayerPosition.
type AcceptTeleportation struct {
	TeleportID int32
}

func (*AcceptTeleportation) ID() int32 { return IDAcceptTeleportation }

func (pk *AcceptTeleportation) Marshal(io protocol.IO) { io.Varint32(&pk.TeleportID) }

// ChatCommand is a command typed into chat, without the leading slash.
type ChatCommand struct {
	Command string
}

func (*ChatCommand) ID() int32 { return IDChatCommand }

func (pk *ChatCommand) Marshal(io protocol.IO) { io.String(&pk.Command) }

// SignatureLen is the length of a chat message signature.
const SignatureLen = 256

// Chat is a chat message typed by the player.
type Chat struct {
	Message      string
	Timestamp    int64
	Salt         int64
	Signature    *[SignatureLen]byte
	MessageCount int32
	Acknowledged [3]byte
	Checksum     uint8
}

func (*Chat) ID() int32 { return IDChat }

func (pk *Chat) Marshal(io protocol.IO) {
	io.String(&pk.Message)
	io.Int64(&pk.Timestamp)
	io.Int64(&pk.Salt)
	protocol.Optional(io, &pk.Signature, func(s *[SignatureLen]byte) { io.FixedBytes(s[:]) })
	io.Varint32(&pk.MessageCount)
	io.FixedBytes(pk.Acknowledged[:])
	io.Uint8(&pk.Checksum)
}

// ChunkBatchReceived reports the client's desired chunk rate.
type ChunkBatchReceived struct {
	ChunksPerTick float32
}

func (*ChunkBatchReceived) ID() int32 { return IDChunkBatchReceived }

func (pk *ChunkBatchReceived) Marshal(io protocol.IO) { io.Float32(&pk.ChunksPerTick) }

// Client command actions.
const (
	ClientCommandRespawn      = 0
	ClientCommandRequestStats = 1
)

// ClientCommand requests a respawn or statistics.
type ClientCommand struct {
	Action int32
}

func (*ClientCommand) ID() int32 { return IDClientCommand }

func (pk *ClientCommand) Marshal(io protocol.IO) { io.Varint32(&pk.Action) }

// ClientTickEnd is sent at the end of every client tick.
type ClientTickEnd struct{}

func (*ClientTickEnd) ID() int32           { return IDClientTickEnd }
func (*ClientTickEnd) Marshal(protocol.IO) {}

// PlayClientInformation carries ClientSettings in play.
type PlayClientInformation struct{ ClientSettings }

func (*PlayClientInformation) ID() int32 { return IDPlayClientInformation }

// CommandSuggestion requests tab completions for a partial command line.
type CommandSuggestion struct {
	TransactionID int32
	Text          string
}

func (*CommandSuggestion) ID() int32 { return IDCommandSuggestion }

func (pk *CommandSuggestion) Marshal(io protocol.IO) {
	io.Varint32(&pk.TransactionID)
	io.String(&pk.Text)
}

// ConfigurationAcknowledged switches the connection back to configuration.
type ConfigurationAcknowledged struct{}

func (*ConfigurationAcknowledged) ID() int32           { return IDConfigurationAcknowledged }
func (*ConfigurationAcknowledged) Marshal(protocol.IO) {}

// PlayCustomPayload is a serverbound PluginMessage in play.
type PlayCustomPayload struct{ PluginMessage }

func (*PlayCustomPayload) ID() int32 { return IDPlayCustomPayload }

// KeepAliveResponse echoes a KeepAlive.
type KeepAliveResponse struct {
	KeepAliveID int64
}

func (*KeepAliveResponse) ID() int32 { return IDKeepAliveResponse }

func (pk *KeepAliveResponse) Marshal(io protocol.IO) { io.Int64(&pk.KeepAliveID) }

// Movement flags.
const (
	MoveFlagOnGround       = 0x01
	MoveFlagHorizontalWall = 0x02
)

// MovePlayerPos updates the player's position.
type MovePlayerPos struct {
	X, Y, Z float64
	Flags   uint8
}

func (*MovePlayerPos) ID() int32 { return IDMovePlayerPos }

func (pk *MovePlayerPos) Marshal(io protocol.IO) {
	io.Float64(&pk.X)
	io.Float64(&pk.Y)
	io.Float64(&pk.Z)
	io.Uint8(&pk.Flags)
}

// MovePlayerPosRot updates the player's position and rotation.
type MovePlayerPosRot struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	Flags      uint8
}

func (*MovePlayerPosRot) ID() int32 { return IDMovePlayerPosRot }

func (pk *MovePlayerPosRot) Marshal(io protocol.IO) {
	io.Float64(&pk.X)
	io.Float64(&pk.Y)
	io.Float64(&pk.Z)
	io.Float32(&pk.Yaw)
	io.Float32(&pk.Pitch)
	io.Uint8(&pk.Flags)
}

// MovePlayerRot updates the player's rotation.
type MovePlayerRot struct {
	Yaw, Pitch float32
	Flags      uint8
}

func (*MovePlayerRot) ID() int32 { return IDMovePlayerRot }

func (pk *MovePlayerRot) Marshal(io protocol.IO) {
	io.Float32(&pk.Yaw)
	io.Float32(&pk.Pitch)
	io.Uint8(&pk.Flags)
}

// MovePlayerStatusOnly updates only the movement flags.
type MovePlayerStatusOnly struct {
	Flags uint8
}

func (*MovePlayerStatusOnly) ID() int32 { return IDMovePlayerStatusOnly }

func (pk *MovePlayerStatusOnly) Marshal(io protocol.IO) { io.Uint8(&pk.Flags) }

// PlayerLoaded is sent once the client has finished loading the world.
type PlayerLoaded struct{}

func (*PlayerLoaded) ID() int32           { return IDPlayerLoaded }
func (*PlayerLoaded) Marshal(protocol.IO) {}

// PlayPong answers PlayPing.
type PlayPong struct {
	PingID int32
}

func (*PlayPong) ID() int32 { return IDPlayPong }

func (pk *PlayPong) Marshal(io protocol.IO) { io.Int32(&pk.PingID) }

// PlayCustomClickAction is ConfigCustomClickAction in play.
type PlayCustomClickAction struct {
	Action  string
	Payload []byte
}

func (*PlayCustomClickAction) ID() int32 { return IDPlayCustomClickAction }

func (pk *PlayCustomClickAction) Marshal(io protocol.IO) {
	io.String(&pk.Action)
	io.Bytes(&pk.Payload)
}

func init() {
	register(serverbound, StatePlay,
		func() Packet { return &AcceptTeleportation{} },
		func() Packet { return &ChatCommand{} },
		func() Packet { return &Chat{} },
		func() Packet { return &ChunkBatchReceived{} },
		func() Packet { return &ClientCommand{} },
		func() Packet { return &ClientTickEnd{} },
		func() Packet { return &PlayClientInformation{} },
		func() Packet { return &CommandSuggestion{} },
		func() Packet { return &ConfigurationAcknowledged{} },
		func() Packet { return &PlayCustomPayload{} },
		func() Packet { return &KeepAliveResponse{} },
		func() Packet { return &MovePlayerPos{} },
		func() Packet { return &MovePlayerPosRot{} },
		func() Packet { return &MovePlayerRot{} },
		func() Packet { return &MovePlayerStatusOnly{} },
		func() Packet { return &PlayerLoaded{} },
		func() Packet { return &PlayPong{} },
		func() Packet { return &PlayCustomClickAction{} },
	)
}
