package packet

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/protocol"
	"github.com/qexed/qexed/server/text"
)

func roundTrip(t *testing.T, state State, serverbound bool, pk Packet) Packet {
	t.Helper()
	payload, err := Encode(pk)
	if err != nil {
		t.Fatalf("encode %T: %v", pk, err)
	}
	f := protocol.Frame{ID: pk.ID(), Payload: payload}
	var out Packet
	if serverbound {
		out, err = DecodeServerbound(state, f)
	} else {
		out, err = DecodeClientbound(state, f)
	}
	if err != nil {
		t.Fatalf("decode %T: %v", pk, err)
	}
	again, err := Encode(out)
	if err != nil {
		t.Fatalf("re-encode %T: %v", pk, err)
	}
	if !bytes.Equal(payload, again) {
		t.Fatalf("%T: re-encoding differs\n%x\n%x", pk, payload, again)
	}
	return out
}

func TestIntentionBytes(t *testing.T) {
	pk := &Intention{ProtocolVersion: ProtocolVersion, ServerAddress: "localhost", ServerPort: 25565, NextState: NextStateLogin}
	payload, err := Encode(pk)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x84, 0x06, 0x09, 'l', 'o', 'c', 'a', 'l', 'h', 'o', 's', 't', 0x63, 0xdd, 0x02}
	if !bytes.Equal(payload, want) {
		t.Fatalf("expected %x, got %x", want, payload)
	}
	out := roundTrip(t, StateHandshake, true, pk).(*Intention)
	if *out != *pk {
		t.Fatalf("expected %+v, got %+v", pk, out)
	}
}

func TestStatusPongBytes(t *testing.T) {
	payload, _ := Encode(&StatusPong{Payload: 42})
	if !bytes.Equal(payload, []byte{0, 0, 0, 0, 0, 0, 0, 42}) {
		t.Fatalf("unexpected pong payload %x", payload)
	}
}

func TestLoginRoundTrips(t *testing.T) {
	id := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	sig := "sig"
	success := &LoginSuccess{UUID: id, Name: "Notch", Properties: []Property{{Name: "textures", Value: "abc", Signature: &sig}}}
	out := roundTrip(t, StateLogin, false, success).(*LoginSuccess)
	if !reflect.DeepEqual(out, success) {
		t.Fatalf("expected %+v, got %+v", success, out)
	}

	start := roundTrip(t, StateLogin, true, &LoginStart{Name: "Notch", UUID: id}).(*LoginStart)
	if start.UUID != id || start.Name != "Notch" {
		t.Fatalf("unexpected login start %+v", start)
	}

	data := []byte{1, 2, 3}
	answer := roundTrip(t, StateLogin, true, &LoginPluginAnswer{MessageID: 7, Data: &data}).(*LoginPluginAnswer)
	if answer.Data == nil || !bytes.Equal(*answer.Data, data) {
		t.Fatalf("unexpected plugin answer %+v", answer)
	}
	roundTrip(t, StateLogin, false, &SetCompression{Threshold: 256})
	roundTrip(t, StateLogin, false, &EncryptionRequest{ServerID: "", PublicKey: []byte{1}, VerifyToken: []byte{2, 3}, ShouldAuthenticate: true})
}

func TestConfigurationRoundTrips(t *testing.T) {
	roundTrip(t, StateConfiguration, true, &ClientInformation{ClientSettings{Locale: "en_us", ViewDistance: 12, ChatColors: true, DisplayedSkinParts: 0x7f, MainHand: 1, AllowServerListings: true}})
	roundTrip(t, StateConfiguration, true, &ClientKnownPacks{Packs: []KnownPack{{"minecraft", "core", GameVersion}}})
	roundTrip(t, StateConfiguration, false, &RegistryData{Registry: "minecraft:dimension_type", Entries: []RegistryEntry{{Name: "minecraft:overworld"}}})
	roundTrip(t, StateConfiguration, false, &UpdateTags{Registries: []RegistryTags{{Registry: "minecraft:block", Tags: []Tag{{Name: "minecraft:logs", Entries: []int32{1, 2, 300}}}}}})
	roundTrip(t, StateConfiguration, false, &ConfigDisconnect{Reason: text.Error("bye")})
	roundTrip(t, StateConfiguration, false, &FinishConfiguration{})
	roundTrip(t, StateConfiguration, true, &FinishConfigurationAck{})
	roundTrip(t, StateConfiguration, false, &ConfigKeepAlive{KeepAliveID: -9})
}

func TestPlayRoundTrips(t *testing.T) {
	login := &Login{
		EntityID: 1, Dimensions: []string{"minecraft:overworld"}, MaxPlayers: 20, ViewDistance: 10,
		SimulationDistance: 10, EnableRespawnScreen: true, DimensionName: "minecraft:overworld",
		HashedSeed: -5, GameMode: 1, PreviousGameMode: -1, SeaLevel: 63,
		DeathLocation: &DeathLocation{Dimension: "minecraft:overworld", Position: protocol.BlockPos{X: 1, Y: -3, Z: 9}},
	}
	if out := roundTrip(t, StatePlay, false, login).(*Login); !reflect.DeepEqual(out, login) {
		t.Fatalf("expected %+v, got %+v", login, out)
	}
	roundTrip(t, StatePlay, false, &SystemChat{Content: text.Plain("§ehello"), Overlay: false})
	roundTrip(t, StatePlay, false, &SetTitleText{Text: text.Plain("title")})
	roundTrip(t, StatePlay, false, &SetTitlesAnimation{FadeIn: 10, Stay: 70, FadeOut: 20})
	roundTrip(t, StatePlay, false, &PlayerInfoUpdate{
		Actions: PlayerInfoAddPlayer | PlayerInfoUpdateListed | PlayerInfoUpdateLatency | PlayerInfoUpdateGameMode,
		Entries: []PlayerInfoEntry{{UUID: uuid.New(), Name: "Alex", Listed: true, Latency: 40, GameMode: 1}},
	})
	roundTrip(t, StatePlay, false, &PlayerInfoRemove{UUIDs: []uuid.UUID{uuid.New()}})
	roundTrip(t, StatePlay, false, &SetEntityData{EntityID: 3, Metadata: []EntityMetadata{{Index: MetadataSkinParts, Type: MetadataByte, Byte: 0x7f}}})
	roundTrip(t, StatePlay, false, &UpdateAdvancements{Reset: true})
	roundTrip(t, StatePlay, false, &PlayerPosition{TeleportID: 1, X: 0.5, Y: 64, Z: 0.5})
	roundTrip(t, StatePlay, false, &CommandSuggestions{TransactionID: 1, Start: 1, Length: 2, Matches: []Suggestion{{Match: "help"}}})
	roundTrip(t, StatePlay, false, &LevelChunkWithLight{
		ChunkX: -1, ChunkZ: 2,
		Heightmaps:   []Heightmap{{Type: HeightmapMotionBlocking, Data: make([]int64, 37)}},
		Data:         []byte{0, 0, 0, 0},
		SkyLightMask: protocol.BitSet{3},
		SkyLight:     [][]byte{make([]byte, 2048), make([]byte, 2048)},
	})
	roundTrip(t, StatePlay, false, &Commands{Root: 0, Nodes: []CommandNode{
		{Flags: NodeRoot, Children: []int32{1}},
		{Flags: NodeLiteral | NodeExecutable, Children: []int32{2}, Name: "tp"},
		{Flags: NodeArgument | NodeExecutable | NodeHasSuggestions, Name: "count", Parser: ParserInteger,
			Properties: ParserProperties{Flags: IntegerHasMin | IntegerHasMax, Min: 1, Max: 64}, Suggestions: SuggestAskServer},
		{Flags: NodeLiteral | NodeHasRedirect, Redirect: 1, Name: "teleport"},
	}})
}

func TestServerboundPlay(t *testing.T) {
	sig := [SignatureLen]byte{1}
	chat := roundTrip(t, StatePlay, true, &Chat{Message: "hi", Timestamp: 1, Salt: 2, Signature: &sig, MessageCount: 3}).(*Chat)
	if chat.Signature == nil || chat.Signature[0] != 1 {
		t.Fatalf("signature lost: %+v", chat)
	}
	roundTrip(t, StatePlay, true, &ChatCommand{Command: "say hi"})
	roundTrip(t, StatePlay, true, &MovePlayerPosRot{X: 1, Y: 2, Z: 3, Yaw: 90, Pitch: 45, Flags: MoveFlagOnGround})
	roundTrip(t, StatePlay, true, &KeepAliveResponse{KeepAliveID: 99})
	roundTrip(t, StatePlay, true, &CommandSuggestion{TransactionID: 4, Text: "/he"})
}

func TestUnknownPackets(t *testing.T) {
	pk, err := DecodeServerbound(StatePlay, protocol.Frame{ID: 0x29, Payload: []byte{1}})
	if err != nil {
		t.Fatalf("expected unmodelled play packet to decode, got %v", err)
	}
	if _, ok := pk.(*Unknown); !ok {
		t.Fatalf("expected *Unknown, got %T", pk)
	}
	if _, err := DecodeServerbound(StatePlay, protocol.Frame{ID: 0x70}); !errors.Is(err, ErrUnknownPacket) {
		t.Fatalf("expected ErrUnknownPacket, got %v", err)
	}
	if _, err := DecodeServerbound(StateLogin, protocol.Frame{ID: 0x09}); !errors.Is(err, ErrUnknownPacket) {
		t.Fatalf("expected ErrUnknownPacket, got %v", err)
	}
}

func TestTrailingBytesRejected(t *testing.T) {
	_, err := DecodeServerbound(StateStatus, protocol.Frame{ID: IDStatusRequest, Payload: []byte{0}})
	if !errors.Is(err, protocol.ErrTrailingBytes) {
		t.Fatalf("expected ErrTrailingBytes, got %v", err)
	}
}
