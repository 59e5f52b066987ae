package packet

import (
	"github.com/qexed/qexed/server/protocol"
	"github.com/qexed/qexed/server/text"
)

// Serverbound configuration packet IDs.
const (
	IDClientInformation       = 0x00
	IDConfigCookieAnswer      = 0x01
	IDConfigCustomPayload     = 0x02
	IDFinishConfigurationAck  = 0x03
	IDConfigKeepAlive         = 0x04
	IDConfigPong              = 0x05
	IDResourcePackResponse    = 0x06
	IDClientKnownPacks        = 0x07
	IDConfigCustomClickAction = 0x08
)

// Clientbound configuration packet IDs.
const (
	IDConfigCookieRequest    = 0x00
	IDConfigPluginMessage    = 0x01
	IDConfigDisconnect       = 0x02
	IDFinishConfiguration    = 0x03
	IDConfigPing             = 0x05
	IDResetChat              = 0x06
	IDRegistryData           = 0x07
	IDUpdateEnabledFeatures  = 0x0C
	IDUpdateTags             = 0x0D
	IDServerKnownPacks       = 0x0E
	IDConfigServerLinks      = 0x10
	IDConfigTransfer         = 0x0B
	IDConfigStoreCookie      = 0x0A
	IDConfigResourcePackPush = 0x09
)

// ClientSettings are the client options sent in configuration and play.
type ClientSettings struct {
	Locale              string
	ViewDistance        int8
	ChatMode            int32
	ChatColors          bool
	DisplayedSkinParts  uint8
	MainHand            int32
	EnableTextFiltering bool
	AllowServerListings bool
	ParticleStatus      int32
}

func (s *ClientSettings) Marshal(io protocol.IO) {
	io.String(&s.Locale)
	io.Int8(&s.ViewDistance)
	io.Varint32(&s.ChatMode)
	io.Bool(&s.ChatColors)
	io.Uint8(&s.DisplayedSkinParts)
	io.Varint32(&s.MainHand)
	io.Bool(&s.EnableTextFiltering)
	io.Bool(&s.AllowServerListings)
	io.Varint32(&s.ParticleStatus)
}

// ClientInformation carries ClientSettings in the configuration state.
type ClientInformation struct{ ClientSettings }

func (*ClientInformation) ID() int32 { return IDClientInformation }

// ConfigCookieAnswer is CookieAnswer in the configuration state.
type ConfigCookieAnswer struct{ CookieAnswer }

func (*ConfigCookieAnswer) ID() int32                 { return IDConfigCookieAnswer }
func (pk *ConfigCookieAnswer) Marshal(io protocol.IO) { pk.marshal(io) }

// PluginMessage is a custom payload on a named channel.
type PluginMessage struct {
	Channel string
	Data    []byte
}

func (pk *PluginMessage) Marshal(io protocol.IO) {
	io.String(&pk.Channel)
	io.Bytes(&pk.Data)
}

// ConfigCustomPayload is a serverbound PluginMessage in configuration.
type ConfigCustomPayload struct{ PluginMessage }

func (*ConfigCustomPayload) ID() int32 { return IDConfigCustomPayload }

// ConfigPluginMessage is a clientbound PluginMessage in configuration.
type ConfigPluginMessage struct{ PluginMessage }

func (*ConfigPluginMessage) ID() int32 { return IDConfigPluginMessage }

// FinishConfigurationAck acknowledges FinishConfiguration and switches the
// connection to play.
type FinishConfigurationAck struct{}

func (*FinishConfigurationAck) ID() int32           { return IDFinishConfigurationAck }
func (*FinishConfigurationAck) Marshal(protocol.IO) {}

// ConfigKeepAlive is the keep-alive used in configuration. The client echoes
// the server's packet with the same ID.
type ConfigKeepAlive struct {
	KeepAliveID int64
}

func (*ConfigKeepAlive) ID() int32 { return IDConfigKeepAlive }

func (pk *ConfigKeepAlive) Marshal(io protocol.IO) { io.Int64(&pk.KeepAliveID) }

// ConfigPing is answered by ConfigPong with the same ID.
type ConfigPing struct {
	PingID int32
}

func (*ConfigPing) ID() int32 { return IDConfigPing }

func (pk *ConfigPing) Marshal(io protocol.IO) { io.Int32(&pk.PingID) }

// ConfigPong answers ConfigPing.
type ConfigPong struct {
	PingID int32
}

func (*ConfigPong) ID() int32 { return IDConfigPong }

func (pk *ConfigPong) Marshal(io protocol.IO) { io.Int32(&pk.PingID) }

// ResourcePackResponse reports the state of a resource pack download.
type ResourcePackResponse struct {
	UUID   [16]byte
	Result int32
}

func (*ResourcePackResponse) ID() int32 { return IDResourcePackResponse }

func (pk *ResourcePackResponse) Marshal(io protocol.IO) {
	io.FixedBytes(pk.UUID[:])
	io.Varint32(&pk.Result)
}

// KnownPack identifies a data pack both sides may have.
type KnownPack struct {
	Namespace string
	PackID    string
	Version   string
}

func (p *KnownPack) Marshal(io protocol.IO) {
	io.String(&p.Namespace)
	io.String(&p.PackID)
	io.String(&p.Version)
}

// ClientKnownPacks lists the packs from ServerKnownPacks the client has.
type ClientKnownPacks struct {
	Packs []KnownPack
}

func (*ClientKnownPacks) ID() int32 { return IDClientKnownPacks }

func (pk *ClientKnownPacks) Marshal(io protocol.IO) { protocol.SliceOf(io, &pk.Packs) }

// ServerKnownPacks lists the packs the server takes registry data from.
type ServerKnownPacks struct {
	Packs []KnownPack
}

func (*ServerKnownPacks) ID() int32 { return IDServerKnownPacks }

func (pk *ServerKnownPacks) Marshal(io protocol.IO) { protocol.SliceOf(io, &pk.Packs) }

// ConfigCustomClickAction is sent when a dialog or chat click runs a custom
// action.
type ConfigCustomClickAction struct {
	Action  string
	Payload []byte
}

func (*ConfigCustomClickAction) ID() int32 { return IDConfigCustomClickAction }

func (pk *ConfigCustomClickAction) Marshal(io protocol.IO) {
	io.String(&pk.Action)
	io.Bytes(&pk.Payload)
}

// ConfigCookieRequest is CookieRequest in configuration.
type ConfigCookieRequest struct{ CookieRequest }

func (*ConfigCookieRequest) ID() int32                 { return IDConfigCookieRequest }
func (pk *ConfigCookieRequest) Marshal(io protocol.IO) { io.String(&pk.Key) }

// ConfigDisconnect closes the connection during configuration.
type ConfigDisconnect struct {
	Reason text.Component
}

func (*ConfigDisconnect) ID() int32 { return IDConfigDisconnect }

func (pk *ConfigDisconnect) Marshal(io protocol.IO) { nbtComponent(io, &pk.Reason) }

// FinishConfiguration asks the client to switch to play.
type FinishConfiguration struct{}

func (*FinishConfiguration) ID() int32           { return IDFinishConfiguration }
func (*FinishConfiguration) Marshal(protocol.IO) {}

// ResetChat clears the client's chat history.
type ResetChat struct{}

func (*ResetChat) ID() int32           { return IDResetChat }
func (*ResetChat) Marshal(protocol.IO) {}

// RegistryEntry is one entry of a synchronised registry. Data is omitted for
// entries the client loads from a known pack.
type RegistryEntry struct {
	Name string
	Data any
}

func (e *RegistryEntry) Marshal(io protocol.IO) {
	io.String(&e.Name)
	present := e.Data != nil
	io.Bool(&present)
	if !present {
		e.Data = nil
		return
	}
	if io.Reading() {
		m := map[string]any{}
		io.NBT(&m)
		e.Data = m
		return
	}
	io.NBT(e.Data)
}

// RegistryData sends the entries of one registry.
type RegistryData struct {
	Registry string
	Entries  []RegistryEntry
}

func (*RegistryData) ID() int32 { return IDRegistryData }

func (pk *RegistryData) Marshal(io protocol.IO) {
	io.String(&pk.Registry)
	protocol.SliceOf(io, &pk.Entries)
}

// UpdateEnabledFeatures lists the enabled feature flags.
type UpdateEnabledFeatures struct {
	Features []string
}

func (*UpdateEnabledFeatures) ID() int32 { return IDUpdateEnabledFeatures }

func (pk *UpdateEnabledFeatures) Marshal(io protocol.IO) {
	protocol.Slice(io, &pk.Features, io.String)
}

// Tag is a named list of registry IDs.
type Tag struct {
	Name    string
	Entries []int32
}

func (t *Tag) Marshal(io protocol.IO) {
	io.String(&t.Name)
	protocol.Slice(io, &t.Entries, io.Varint32)
}

// RegistryTags holds the tags of one registry.
type RegistryTags struct {
	Registry string
	Tags     []Tag
}

func (t *RegistryTags) Marshal(io protocol.IO) {
	io.String(&t.Registry)
	protocol.SliceOf(io, &t.Tags)
}

// UpdateTags sends every tag of every registry.
type UpdateTags struct {
	Registries []RegistryTags
}

func (*UpdateTags) ID() int32 { return IDUpdateTags }

func (pk *UpdateTags) Marshal(io protocol.IO) { protocol.SliceOf(io, &pk.Registries) }

// ServerLink is an entry of the pause-menu link list. Label is a built-in
// label ID when Builtin is set.
type ServerLink struct {
	Builtin bool
	LabelID int32
	Label   text.Component
	URL     string
}

func (l *ServerLink) Marshal(io protocol.IO) {
	io.Bool(&l.Builtin)
	if l.Builtin {
		io.Varint32(&l.LabelID)
	} else {
		nbtComponent(io, &l.Label)
	}
	io.String(&l.URL)
}

// ConfigServerLinks sends the server links in configuration.
type ConfigServerLinks struct {
	Links []ServerLink
}

func (*ConfigServerLinks) ID() int32 { return IDConfigServerLinks }

func (pk *ConfigServerLinks) Marshal(io protocol.IO) { protocol.SliceOf(io, &pk.Links) }

// ConfigTransfer redirects the client to another server.
type ConfigTransfer struct {
	Host string
	Port int32
}

func (*ConfigTransfer) ID() int32 { return IDConfigTransfer }

func (pk *ConfigTransfer) Marshal(io protocol.IO) {
	io.String(&pk.Host)
	io.Varint32(&pk.Port)
}

// ConfigStoreCookie stores a cookie on the client.
type ConfigStoreCookie struct {
	Key     string
	Payload []byte
}

func (*ConfigStoreCookie) ID() int32 { return IDConfigStoreCookie }

func (pk *ConfigStoreCookie) Marshal(io protocol.IO) {
	io.String(&pk.Key)
	io.ByteSlice(&pk.Payload)
}

// ResourcePackPush offers a resource pack.
type ResourcePackPush struct {
	UUID   [16]byte
	URL    string
	Hash   string
	Forced bool
	Prompt *text.Component
}

func (*ResourcePackPush) ID() int32 { return IDConfigResourcePackPush }

func (pk *ResourcePackPush) Marshal(io protocol.IO) {
	io.FixedBytes(pk.UUID[:])
	io.String(&pk.URL)
	io.String(&pk.Hash)
	io.Bool(&pk.Forced)
	protocol.Optional(io, &pk.Prompt, func(c *text.Component) { nbtComponent(io, c) })
}

// nbtComponent handles a chat component sent as network NBT.
func nbtComponent(io protocol.IO, c *text.Component) {
	if io.Reading() {
		io.NBT(c)
		return
	}
	io.NBT(*c)
}

func init() {
	register(serverbound, StateConfiguration,
		func() Packet { return &ClientInformation{} },
		func() Packet { return &ConfigCookieAnswer{} },
		func() Packet { return &ConfigCustomPayload{} },
		func() Packet { return &FinishConfigurationAck{} },
		func() Packet { return &ConfigKeepAlive{} },
		func() Packet { return &ConfigPong{} },
		func() Packet { return &ResourcePackResponse{} },
		func() Packet { return &ClientKnownPacks{} },
		func() Packet { return &ConfigCustomClickAction{} },
	)
	register(clientbound, StateConfiguration,
		func() Packet { return &ConfigCookieRequest{} },
		func() Packet { return &ConfigPluginMessage{} },
		func() Packet { return &ConfigDisconnect{} },
		func() Packet { return &FinishConfiguration{} },
		func() Packet { return &ConfigKeepAlive{} },
		func() Packet { return &ConfigPing{} },
		func() Packet { return &ResetChat{} },
		func() Packet { return &RegistryData{} },
		func() Packet { return &ResourcePackPush{} },
		func() Packet { return &ConfigStoreCookie{} },
		func() Packet { return &ConfigTransfer{} },
		func() Packet { return &UpdateEnabledFeatures{} },
		func() Packet { return &UpdateTags{} },
		func() Packet { return &ServerKnownPacks{} },
		func() Packet { return &ConfigServerLinks{} },
	)
}
