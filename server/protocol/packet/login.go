package packet

import (
	"github.com/google/uuid"
	"github.com/qexed/qexed/server/protocol"
)

// Serverbound login packet IDs.
const (
	IDLoginStart         = 0x00
	IDEncryptionResponse = 0x01
	IDLoginPluginAnswer  = 0x02
	IDLoginAcknowledged  = 0x03
	IDLoginCookieAnswer  = 0x04
)

// Clientbound login packet IDs.
const (
	IDLoginDisconnect    = 0x00
	IDEncryptionRequest  = 0x01
	IDLoginSuccess       = 0x02
	IDSetCompression     = 0x03
	IDLoginPluginRequest = 0x04
	IDLoginCookieRequest = 0x05
)

// Property is a signed profile property such as the skin texture.
type Property struct {
	Name      string
	Value     string
	Signature *string
}

func (p *Property) Marshal(io protocol.IO) {
	io.String(&p.Name)
	io.String(&p.Value)
	protocol.Optional(io, &p.Signature, io.String)
}

// LoginStart opens the login sequence.
type LoginStart struct {
	Name string
	UUID uuid.UUID
}

func (*LoginStart) ID() int32 { return IDLoginStart }

func (pk *LoginStart) Marshal(io protocol.IO) {
	io.String(&pk.Name)
	io.UUID(&pk.UUID)
}

// EncryptionResponse answers an EncryptionRequest.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (*EncryptionResponse) ID() int32 { return IDEncryptionResponse }

func (pk *EncryptionResponse) Marshal(io protocol.IO) {
	io.ByteSlice(&pk.SharedSecret)
	io.ByteSlice(&pk.VerifyToken)
}

// LoginPluginAnswer answers a LoginPluginRequest. Data is nil when the client
// did not understand the channel.
type LoginPluginAnswer struct {
	MessageID int32
	Data      *[]byte
}

func (*LoginPluginAnswer) ID() int32 { return IDLoginPluginAnswer }

func (pk *LoginPluginAnswer) Marshal(io protocol.IO) {
	io.Varint32(&pk.MessageID)
	protocol.Optional(io, &pk.Data, io.Bytes)
}

// LoginAcknowledged switches the connection to the configuration state.
type LoginAcknowledged struct{}

func (*LoginAcknowledged) ID() int32           { return IDLoginAcknowledged }
func (*LoginAcknowledged) Marshal(protocol.IO) {}

// CookieAnswer returns a cookie previously stored on the client. It is sent in
// the login and configuration states with different IDs.
type CookieAnswer struct {
	Key     string
	Payload *[]byte
}

func (pk *CookieAnswer) marshal(io protocol.IO) {
	io.String(&pk.Key)
	protocol.Optional(io, &pk.Payload, io.ByteSlice)
}

// LoginCookieAnswer is CookieAnswer in the login state.
type LoginCookieAnswer struct{ CookieAnswer }

func (*LoginCookieAnswer) ID() int32                 { return IDLoginCookieAnswer }
func (pk *LoginCookieAnswer) Marshal(io protocol.IO) { pk.marshal(io) }

// LoginDisconnect closes the connection during login. Reason is a JSON chat
// component.
type LoginDisconnect struct {
	Reason string
}

func (*LoginDisconnect) ID() int32 { return IDLoginDisconnect }

func (pk *LoginDisconnect) Marshal(io protocol.IO) { io.String(&pk.Reason) }

// EncryptionRequest starts online-mode authentication.
type EncryptionRequest struct {
	ServerID           string
	PublicKey          []byte
	VerifyToken        []byte
	ShouldAuthenticate bool
}

func (*EncryptionRequest) ID() int32 { return IDEncryptionRequest }

func (pk *EncryptionRequest) Marshal(io protocol.IO) {
	io.String(&pk.ServerID)
	io.ByteSlice(&pk.PublicKey)
	io.ByteSlice(&pk.VerifyToken)
	io.Bool(&pk.ShouldAuthenticate)
}

// LoginSuccess completes the login state.
type LoginSuccess struct {
	UUID       uuid.UUID
	Name       string
	Properties []Property
}

func (*LoginSuccess) ID() int32 { return IDLoginSuccess }

func (pk *LoginSuccess) Marshal(io protocol.IO) {
	io.UUID(&pk.UUID)
	io.String(&pk.Name)
	protocol.SliceOf(io, &pk.Properties)
}

// SetCompression enables compression for every following frame.
type SetCompression struct {
	Threshold int32
}

func (*SetCompression) ID() int32 { return IDSetCompression }

func (pk *SetCompression) Marshal(io protocol.IO) { io.Varint32(&pk.Threshold) }

// LoginPluginRequest sends a custom query on a named channel.
type LoginPluginRequest struct {
	MessageID int32
	Channel   string
	Data      []byte
}

func (*LoginPluginRequest) ID() int32 { return IDLoginPluginRequest }

func (pk *LoginPluginRequest) Marshal(io protocol.IO) {
	io.Varint32(&pk.MessageID)
	io.String(&pk.Channel)
	io.Bytes(&pk.Data)
}

// CookieRequest asks the client for a stored cookie.
type CookieRequest struct {
	Key string
}

// LoginCookieRequest is CookieRequest in the login state.
type LoginCookieRequest struct{ CookieRequest }

func (*LoginCookieRequest) ID() int32                 { return IDLoginCookieRequest }
func (pk *LoginCookieRequest) Marshal(io protocol.IO) { io.String(&pk.Key) }

func init() {
	register(serverbound, StateLogin,
		func() Packet { return &LoginStart{} },
		func() Packet { return &EncryptionResponse{} },
		func() Packet { return &LoginPluginAnswer{} },
		func() Packet { return &LoginAcknowledged{} },
		func() Packet { return &LoginCookieAnswer{} },
	)
	register(clientbound, StateLogin,
		func() Packet { return &LoginDisconnect{} },
		func() Packet { return &EncryptionRequest{} },
		func() Packet { return &LoginSuccess{} },
		func() Packet { return &SetCompression{} },
		func() Packet { return &LoginPluginRequest{} },
		func() Packet { return &LoginCookieRequest{} },
	)
}
