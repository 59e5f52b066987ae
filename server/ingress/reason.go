package ingress

import (
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/text"
)

// Reason is why a connection was refused or closed.
type Reason uint8

const (
	ReasonProtocolViolation Reason = iota + 1
	ReasonFraming
	ReasonOutdatedClient
	ReasonOutdatedServer
	ReasonAuthentication
	ReasonAccessDenied
	ReasonServerFull
	ReasonPlayerNotAway
	ReasonRateLimited
	ReasonInvalidProxy
	ReasonInvalidName
	ReasonShutdown
	ReasonInternal
)

func (r Reason) String() string {
	switch r {
	case ReasonProtocolViolation:
		return "protocol violation"
	case ReasonFraming:
		return "framing error"
	case ReasonOutdatedClient:
		return "outdated client"
	case ReasonOutdatedServer:
		return "outdated server"
	case ReasonAuthentication:
		return "authentication failed"
	case ReasonAccessDenied:
		return "access denied"
	case ReasonServerFull:
		return "server full"
	case ReasonPlayerNotAway:
		return "player not away"
	case ReasonRateLimited:
		return "rate limited"
	case ReasonInvalidProxy:
		return "invalid proxy"
	case ReasonInvalidName:
		return "invalid name"
	case ReasonShutdown:
		return "shutdown"
	case ReasonInternal:
		return "internal error"
	}
	return "unknown"
}

// Silent reports whether the connection is closed without a Disconnect
// packet.
func (r Reason) Silent() bool {
	return r == ReasonFraming || r == ReasonRateLimited || r == ReasonInvalidProxy
}

// Message returns the text shown to the client.
func (r Reason) Message() text.Component {
	switch r {
	case ReasonProtocolViolation:
		return text.Translatable("multiplayer.disconnect.invalid_packet")
	case ReasonOutdatedClient:
		return text.Translatable("multiplayer.disconnect.outdated_client", packet.GameVersion)
	case ReasonOutdatedServer:
		return text.Translatable("multiplayer.disconnect.incompatible", packet.GameVersion)
	case ReasonAuthentication:
		return text.Translatable("multiplayer.disconnect.authservers_down")
	case ReasonServerFull:
		return text.Translatable("multiplayer.disconnect.server_full")
	case ReasonPlayerNotAway:
		return text.Translatable("multiplayer.disconnect.duplicate_login")
	case ReasonInvalidName:
		return text.Translatable("multiplayer.disconnect.invalid_player_data")
	case ReasonShutdown:
		return text.Translatable("multiplayer.disconnect.server_shutdown")
	}
	return text.Translatable("disconnect.closed")
}
