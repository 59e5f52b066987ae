package query

import (
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/qexed/qexed/server/protocol/packet"
)

// Data summarises the information returned by the query responder. The server
// package supplies values without being aware of the exact key/value pairs
// that are sent over the wire.
type Data struct {
	// MOTD is the server list message, without formatting codes.
	MOTD string
	// WorldName holds the name of the default world.
	WorldName string
	// Plugins describes the server software, as "Qexed" or "Qexed: a; b".
	Plugins string
	// Version is the game version advertised to clients.
	Version     string
	PlayerCount int
	MaxPlayers  int
	// HostIP and HostPort are the game listener's address.
	HostIP   string
	HostPort int
	// PlayerNames lists the names of online players in sorted order.
	PlayerNames []string
	// GameType defaults to "SMP" and GameID to "MINECRAFT" when empty.
	GameType         string
	GameID           string
	WhitelistEnabled bool
}

type keyValue struct {
	key   string
	value string
}

// engineLabel identifies the software in the plugins key.
var engineLabel = buildEngineLabel()

func buildEngineLabel() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return "Qexed"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	return "Qexed (" + version + ")"
}

// applyDefaults ensures that required fields are initialised before the data is
// serialised into key/value pairs.
func (d *Data) applyDefaults() {
	if d.HostIP == "" {
		d.HostIP = "0.0.0.0"
	}
	if d.Plugins == "" {
		d.Plugins = engineLabel
	}
	if d.Version == "" {
		d.Version = packet.GameVersion
	}
	if d.GameType == "" {
		d.GameType = "SMP"
	}
	if d.GameID == "" {
		d.GameID = "MINECRAFT"
	}
	if d.WorldName == "" {
		d.WorldName = "world"
	}
	d.HostPort = int(uint16(d.HostPort))
}

// keyValues converts Data into the ordered key/value pairs of a full stat
// response.
func (d Data) keyValues() []keyValue {
	whitelist := "off"
	if d.WhitelistEnabled {
		whitelist = "on"
	}
	values := []keyValue{
		{"hostname", d.MOTD},
		{"gametype", d.GameType},
		{"game_id", d.GameID},
		{"version", d.Version},
		{"plugins", d.Plugins},
		{"map", d.WorldName},
		{"numplayers", strconv.Itoa(d.PlayerCount)},
		{"maxplayers", strconv.Itoa(d.MaxPlayers)},
		{"hostport", strconv.Itoa(d.HostPort)},
		{"hostip", d.HostIP},
		{"whitelist", whitelist},
	}
	if len(d.PlayerNames) > 0 {
		values = append(values, keyValue{"players", strings.Join(d.PlayerNames, ", ")})
	}
	return values
}

// cloneData deep-copies the Data structure so that cached snapshots remain
// immutable.
func cloneData(data Data) Data {
	cp := data
	if data.PlayerNames != nil {
		cp.PlayerNames = append([]string(nil), data.PlayerNames...)
	}
	return cp
}
