package packet

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/protocol"
	"github.com/qexed/qexed/server/text"
)

// Clientbound play packet IDs.
const (
	IDChunkBatchFinished      = 0x0B
	IDChunkBatchStart         = 0x0C
	IDClearTitles             = 0x0E
	IDCommandSuggestions      = 0x0F
	IDCommands                = 0x10
	IDPlayDisconnect          = 0x1C
	IDGameEvent               = 0x22
	IDKeepAlive               = 0x26
	IDLevelChunkWithLight     = 0x27
	IDLogin                   = 0x2B
	IDPlayPing                = 0x36
	IDPlayerInfoRemove        = 0x3E
	IDPlayerInfoUpdate        = 0x3F
	IDPlayerPosition          = 0x41
	IDSetActionBarText        = 0x50
	IDSetChunkCacheCenter     = 0x57
	IDSetDefaultSpawnPosition = 0x5A
	IDSetEntityData           = 0x5C
	IDSetSubtitleText         = 0x69
	IDSetTime                 = 0x6A
	IDSetTitleText            = 0x6B
	IDSetTitlesAnimation      = 0x6C
	IDSystemChat              = 0x72
	IDTabList                 = 0x73
	IDUpdateAdvancements      = 0x7B
)

// ChunkBatchStart precedes a batch of chunks.
type ChunkBatchStart struct{}

func (*ChunkBatchStart) ID() int32           { return IDChunkBatchStart }
func (*ChunkBatchStart) Marshal(protocol.IO) {}

// ChunkBatchFinished closes a batch of BatchSize chunks.
type ChunkBatchFinished struct {
	BatchSize int32
}

func (*ChunkBatchFinished) ID() int32 { return IDChunkBatchFinished }

func (pk *ChunkBatchFinished) Marshal(io protocol.IO) { io.Varint32(&pk.BatchSize) }

// ClearTitles removes the displayed title, optionally resetting its timings.
type ClearTitles struct {
	Reset bool
}

func (*ClearTitles) ID() int32 { return IDClearTitles }

func (pk *ClearTitles) Marshal(io protocol.IO) { io.Bool(&pk.Reset) }

// Suggestion is one tab completion.
type Suggestion struct {
	Match   string
	Tooltip *text.Component
}

func (s *Suggestion) Marshal(io protocol.IO) {
	io.String(&s.Match)
	protocol.Optional(io, &s.Tooltip, func(c *text.Component) { nbtComponent(io, c) })
}

// CommandSuggestions answers a CommandSuggestion. Start and Length select the
// part of the input the matches replace.
type CommandSuggestions struct {
	TransactionID int32
	Start         int32
	Length        int32
	Matches       []Suggestion
}

func (*CommandSuggestions) ID() int32 { return IDCommandSuggestions }

func (pk *CommandSuggestions) Marshal(io protocol.IO) {
	io.Varint32(&pk.TransactionID)
	io.Varint32(&pk.Start)
	io.Varint32(&pk.Length)
	protocol.SliceOf(io, &pk.Matches)
}

// PlayDisconnect closes the connection in play.
type PlayDisconnect struct {
	Reason text.Component
}

func (*PlayDisconnect) ID() int32 { return IDPlayDisconnect }

func (pk *PlayDisconnect) Marshal(io protocol.IO) { nbtComponent(io, &pk.Reason) }

// Game events.
const (
	GameEventChangeGameMode   = 3
	GameEventImmediateRespawn = 11
	GameEventLimitedCrafting  = 12
	GameEventWaitForChunks    = 13
)

// GameEvent notifies the client of a state change.
type GameEvent struct {
	Event uint8
	Value float32
}

func (*GameEvent) ID() int32 { return IDGameEvent }

func (pk *GameEvent) Marshal(io protocol.IO) {
	io.Uint8(&pk.Event)
	io.Float32(&pk.Value)
}

// KeepAlive is sent periodically in play; the client echoes it with
// KeepAliveResponse.
type KeepAlive struct {
	KeepAliveID int64
}

func (*KeepAlive) ID() int32 { return IDKeepAlive }

func (pk *KeepAlive) Marshal(io protocol.IO) { io.Int64(&pk.KeepAliveID) }

// DeathLocation is the dimension and position of the player's last death.
type DeathLocation struct {
	Dimension string
	Position  protocol.BlockPos
}

func (d *DeathLocation) Marshal(io protocol.IO) {
	io.String(&d.Dimension)
	io.Position(&d.Position)
}

// Login starts play.
type Login struct {
	EntityID            int32
	Hardcore            bool
	Dimensions          []string
	MaxPlayers          int32
	ViewDistance        int32
	SimulationDistance  int32
	ReducedDebugInfo    bool
	EnableRespawnScreen bool
	LimitedCrafting     bool
	DimensionType       int32
	DimensionName       string
	HashedSeed          int64
	GameMode            uint8
	PreviousGameMode    int8
	Debug               bool
	Flat                bool
	DeathLocation       *DeathLocation
	PortalCooldown      int32
	SeaLevel            int32
	EnforcesSecureChat  bool
}

func (*Login) ID() int32 { return IDLogin }

func (pk *Login) Marshal(io protocol.IO) {
	io.Int32(&pk.EntityID)
	io.Bool(&pk.Hardcore)
	protocol.Slice(io, &pk.Dimensions, io.String)
	io.Varint32(&pk.MaxPlayers)
	io.Varint32(&pk.ViewDistance)
	io.Varint32(&pk.SimulationDistance)
	io.Bool(&pk.ReducedDebugInfo)
	io.Bool(&pk.EnableRespawnScreen)
	io.Bool(&pk.LimitedCrafting)
	io.Varint32(&pk.DimensionType)
	io.String(&pk.DimensionName)
	io.Int64(&pk.HashedSeed)
	io.Uint8(&pk.GameMode)
	io.Int8(&pk.PreviousGameMode)
	io.Bool(&pk.Debug)
	io.Bool(&pk.Flat)
	protocol.OptionalOf(io, &pk.DeathLocation)
	io.Varint32(&pk.PortalCooldown)
	io.Varint32(&pk.SeaLevel)
	io.Bool(&pk.EnforcesSecureChat)
}

// PlayPing is answered by PlayPong with the same ID.
type PlayPing struct {
	PingID int32
}

func (*PlayPing) ID() int32 { return IDPlayPing }

func (pk *PlayPing) Marshal(io protocol.IO) { io.Int32(&pk.PingID) }

// PlayerInfoRemove removes players from the tab list.
type PlayerInfoRemove struct {
	UUIDs []uuid.UUID
}

func (*PlayerInfoRemove) ID() int32 { return IDPlayerInfoRemove }

func (pk *PlayerInfoRemove) Marshal(io protocol.IO) { protocol.Slice(io, &pk.UUIDs, io.UUID) }

// PlayerInfoUpdate actions.
const (
	PlayerInfoAddPlayer         = 0x01
	PlayerInfoInitializeChat    = 0x02
	PlayerInfoUpdateGameMode    = 0x04
	PlayerInfoUpdateListed      = 0x08
	PlayerInfoUpdateLatency     = 0x10
	PlayerInfoUpdateDisplayName = 0x20
	PlayerInfoUpdateListOrder   = 0x40
	PlayerInfoUpdateHat         = 0x80
)

// ChatSession is the public key data of a signed chat session.
type ChatSession struct {
	SessionID    uuid.UUID
	ExpiresAt    int64
	PublicKey    []byte
	KeySignature []byte
}

func (s *ChatSession) Marshal(io protocol.IO) {
	io.UUID(&s.SessionID)
	io.Int64(&s.ExpiresAt)
	io.ByteSlice(&s.PublicKey)
	io.ByteSlice(&s.KeySignature)
}

// PlayerInfoEntry is the data of one player in a PlayerInfoUpdate. Only the
// fields of the packet's actions are sent.
type PlayerInfoEntry struct {
	UUID        uuid.UUID
	Name        string
	Properties  []Property
	ChatSession *ChatSession
	GameMode    int32
	Listed      bool
	Latency     int32
	DisplayName *text.Component
	ListOrder   int32
	ShowHat     bool
}

// PlayerInfoUpdate adds or updates tab list entries.
type PlayerInfoUpdate struct {
	Actions uint8
	Entries []PlayerInfoEntry
}

func (*PlayerInfoUpdate) ID() int32 { return IDPlayerInfoUpdate }

func (pk *PlayerInfoUpdate) Marshal(io protocol.IO) {
	io.Uint8(&pk.Actions)
	protocol.Slice(io, &pk.Entries, func(e *PlayerInfoEntry) {
		io.UUID(&e.UUID)
		if pk.Actions&PlayerInfoAddPlayer != 0 {
			io.String(&e.Name)
			protocol.SliceOf(io, &e.Properties)
		}
		if pk.Actions&PlayerInfoInitializeChat != 0 {
			protocol.OptionalOf(io, &e.ChatSession)
		}
		if pk.Actions&PlayerInfoUpdateGameMode != 0 {
			io.Varint32(&e.GameMode)
		}
		if pk.Actions&PlayerInfoUpdateListed != 0 {
			io.Bool(&e.Listed)
		}
		if pk.Actions&PlayerInfoUpdateLatency != 0 {
			io.Varint32(&e.Latency)
		}
		if pk.Actions&PlayerInfoUpdateDisplayName != 0 {
			protocol.Optional(io, &e.DisplayName, func(c *text.Component) { nbtComponent(io, c) })
		}
		if pk.Actions&PlayerInfoUpdateListOrder != 0 {
			io.Varint32(&e.ListOrder)
		}
		if pk.Actions&PlayerInfoUpdateHat != 0 {
			io.Bool(&e.ShowHat)
		}
	})
}

// PlayerPosition teleports the player. The client must confirm TeleportID
// with AcceptTeleportation.
type PlayerPosition struct {
	TeleportID                      int32
	X, Y, Z                         float64
	VelocityX, VelocityY, VelocityZ float64
	Yaw, Pitch                      float32
	Flags                           int32
}

func (*PlayerPosition) ID() int32 { return IDPlayerPosition }

func (pk *PlayerPosition) Marshal(io protocol.IO) {
	io.Varint32(&pk.TeleportID)
	io.Float64(&pk.X)
	io.Float64(&pk.Y)
	io.Float64(&pk.Z)
	io.Float64(&pk.VelocityX)
	io.Float64(&pk.VelocityY)
	io.Float64(&pk.VelocityZ)
	io.Float32(&pk.Yaw)
	io.Float32(&pk.Pitch)
	io.Int32(&pk.Flags)
}

// SetActionBarText shows text above the hotbar.
type SetActionBarText struct {
	Text text.Component
}

func (*SetActionBarText) ID() int32 { return IDSetActionBarText }

func (pk *SetActionBarText) Marshal(io protocol.IO) { nbtComponent(io, &pk.Text) }

// SetChunkCacheCenter moves the centre of the client's loaded chunk area.
type SetChunkCacheCenter struct {
	ChunkX, ChunkZ int32
}

func (*SetChunkCacheCenter) ID() int32 { return IDSetChunkCacheCenter }

func (pk *SetChunkCacheCenter) Marshal(io protocol.IO) {
	io.Varint32(&pk.ChunkX)
	io.Varint32(&pk.ChunkZ)
}

// SetDefaultSpawnPosition sets the compass target and respawn point.
type SetDefaultSpawnPosition struct {
	Position protocol.BlockPos
	Angle    float32
}

func (*SetDefaultSpawnPosition) ID() int32 { return IDSetDefaultSpawnPosition }

func (pk *SetDefaultSpawnPosition) Marshal(io protocol.IO) {
	io.Position(&pk.Position)
	io.Float32(&pk.Angle)
}

// Entity metadata serializer types.
const (
	MetadataByte    = 0
	MetadataVarInt  = 1
	MetadataFloat   = 3
	MetadataString  = 4
	MetadataBoolean = 8
)

// MetadataSkinParts is the player metadata index of the displayed skin parts.
const MetadataSkinParts = 17

// EntityMetadata is one entity data item. The field matching Type holds the
// value.
type EntityMetadata struct {
	Index  uint8
	Type   int32
	Byte   int8
	VarInt int32
	Float  float32
	String string
	Bool   bool
}

// SetEntityData updates entity metadata.
type SetEntityData struct {
	EntityID int32
	Metadata []EntityMetadata
}

func (*SetEntityData) ID() int32 { return IDSetEntityData }

const metadataEnd = 0xFF

func (pk *SetEntityData) Marshal(io protocol.IO) {
	io.Varint32(&pk.EntityID)
	if io.Reading() {
		pk.Metadata = nil
		for {
			var index uint8
			io.Uint8(&index)
			if index == metadataEnd || io.Err() != nil {
				return
			}
			m := EntityMetadata{Index: index}
			io.Varint32(&m.Type)
			if !m.marshalValue(io) {
				return
			}
			pk.Metadata = append(pk.Metadata, m)
		}
	}
	for i := range pk.Metadata {
		m := &pk.Metadata[i]
		io.Uint8(&m.Index)
		io.Varint32(&m.Type)
		m.marshalValue(io)
	}
	end := uint8(metadataEnd)
	io.Uint8(&end)
}

func (m *EntityMetadata) marshalValue(io protocol.IO) bool {
	switch m.Type {
	case MetadataByte:
		io.Int8(&m.Byte)
	case MetadataVarInt:
		io.Varint32(&m.VarInt)
	case MetadataFloat:
		io.Float32(&m.Float)
	case MetadataString:
		io.String(&m.String)
	case MetadataBoolean:
		io.Bool(&m.Bool)
	default:
		io.Fail(fmt.Errorf("packet: unsupported entity metadata type %d", m.Type))
		return false
	}
	return true
}

// SetSubtitleText sets the subtitle shown with the next title.
type SetSubtitleText struct {
	Text text.Component
}

func (*SetSubtitleText) ID() int32 { return IDSetSubtitleText }

func (pk *SetSubtitleText) Marshal(io protocol.IO) { nbtComponent(io, &pk.Text) }

// SetTime updates the world age and time of day.
type SetTime struct {
	WorldAge          int64
	TimeOfDay         int64
	TimeOfDayAdvances bool
}

func (*SetTime) ID() int32 { return IDSetTime }

func (pk *SetTime) Marshal(io protocol.IO) {
	io.Int64(&pk.WorldAge)
	io.Int64(&pk.TimeOfDay)
	io.Bool(&pk.TimeOfDayAdvances)
}

// SetTitleText shows a title.
type SetTitleText struct {
	Text text.Component
}

func (*SetTitleText) ID() int32 { return IDSetTitleText }

func (pk *SetTitleText) Marshal(io protocol.IO) { nbtComponent(io, &pk.Text) }

// SetTitlesAnimation sets title timings in ticks.
type SetTitlesAnimation struct {
	FadeIn, Stay, FadeOut int32
}

func (*SetTitlesAnimation) ID() int32 { return IDSetTitlesAnimation }

func (pk *SetTitlesAnimation) Marshal(io protocol.IO) {
	io.Int32(&pk.FadeIn)
	io.Int32(&pk.Stay)
	io.Int32(&pk.FadeOut)
}

// SystemChat is an unsigned chat message. Overlay shows it on the action bar.
type SystemChat struct {
	Content text.Component
	Overlay bool
}

func (*SystemChat) ID() int32 { return IDSystemChat }

func (pk *SystemChat) Marshal(io protocol.IO) {
	nbtComponent(io, &pk.Content)
	io.Bool(&pk.Overlay)
}

// TabList sets the tab list header and footer.
type TabList struct {
	Header, Footer text.Component
}

func (*TabList) ID() int32 { return IDTabList }

func (pk *TabList) Marshal(io protocol.IO) {
	nbtComponent(io, &pk.Header)
	nbtComponent(io, &pk.Footer)
}

// UpdateAdvancements synchronises advancements. The server only ever sends
// the empty reset form.
type UpdateAdvancements struct {
	Reset            bool
	Removed          []string
	ShowAdvancements bool
}

func (*UpdateAdvancements) ID() int32 { return IDUpdateAdvancements }

func (pk *UpdateAdvancements) Marshal(io protocol.IO) {
	io.Bool(&pk.Reset)
	var added, progress int
	io.Count(&added)
	protocol.Slice(io, &pk.Removed, io.String)
	io.Count(&progress)
	if added != 0 || progress != 0 {
		io.Fail(fmt.Errorf("packet: advancement entries are not supported (%d added, %d progress)", added, progress))
		return
	}
	io.Bool(&pk.ShowAdvancements)
}

func init() {
	register(clientbound, StatePlay,
		func() Packet { return &ChunkBatchFinished{} },
		func() Packet { return &ChunkBatchStart{} },
		func() Packet { return &ClearTitles{} },
		func() Packet { return &CommandSuggestions{} },
		func() Packet { return &Commands{} },
		func() Packet { return &PlayDisconnect{} },
		func() Packet { return &GameEvent{} },
		func() Packet { return &KeepAlive{} },
		func() Packet { return &LevelChunkWithLight{} },
		func() Packet { return &Login{} },
		func() Packet { return &PlayPing{} },
		func() Packet { return &PlayerInfoRemove{} },
		func() Packet { return &PlayerInfoUpdate{} },
		func() Packet { return &PlayerPosition{} },
		func() Packet { return &SetActionBarText{} },
		func() Packet { return &SetChunkCacheCenter{} },
		func() Packet { return &SetDefaultSpawnPosition{} },
		func() Packet { return &SetEntityData{} },
		func() Packet { return &SetSubtitleText{} },
		func() Packet { return &SetTime{} },
		func() Packet { return &SetTitleText{} },
		func() Packet { return &SetTitlesAnimation{} },
		func() Packet { return &SystemChat{} },
		func() Packet { return &TabList{} },
		func() Packet { return &UpdateAdvancements{} },
	)
}
