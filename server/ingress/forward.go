package ingress

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/protocol/packet"
)

// ProxyProtocol is the layout a front-end proxy uses to forward the original
// client's identity inside the Intention server address.
type ProxyProtocol string

const (
	// BungeeCord is host\0ip\0uuid\0properties. The token travels as the
	// bungeeguard-token property.
	BungeeCord ProxyProtocol = "BungeeCord"
	// QTunnel is host\0QTunnel\0ip\0uuid\0properties\0token.
	QTunnel ProxyProtocol = "QTunnel"
	// Victory is host\0Victory\0token\0ip\0uuid\0properties.
	Victory ProxyProtocol = "Victory"
)

// ErrInvalidProxy is returned for a forwarding header that is malformed or
// carries the wrong token.
var ErrInvalidProxy = errors.New("ingress: invalid proxy forwarding")

const bungeeGuardProperty = "bungeeguard-token"

// Forwarded is the identity a proxy forwarded for a client.
type Forwarded struct {
	Host       string
	IP         string
	UUID       uuid.UUID
	Properties []packet.Property
	Token      string
}

// property is the JSON form of a profile property in a forwarding header.
type property struct {
	Name      string  `json:"name"`
	Value     string  `json:"value"`
	Signature *string `json:"signature,omitempty"`
}

// ParseForwarded decodes the server address of an Intention packet sent by a
// proxy speaking p.
func ParseForwarded(p ProxyProtocol, addr string) (Forwarded, error) {
	parts := strings.Split(addr, "\x00")
	var f Forwarded
	var id, props string
	switch p {
	case BungeeCord:
		if len(parts) != 3 && len(parts) != 4 {
			return f, fmt.Errorf("%w: %d fields", ErrInvalidProxy, len(parts))
		}
		f.Host, f.IP, id = parts[0], parts[1], parts[2]
		if len(parts) == 4 {
			props = parts[3]
		}
	case QTunnel:
		if len(parts) != 6 || parts[1] != string(QTunnel) {
			return f, fmt.Errorf("%w: not a QTunnel header", ErrInvalidProxy)
		}
		f.Host, f.IP, id, props, f.Token = parts[0], parts[2], parts[3], parts[4], parts[5]
	case Victory:
		if len(parts) != 6 || parts[1] != string(Victory) {
			return f, fmt.Errorf("%w: not a Victory header", ErrInvalidProxy)
		}
		f.Host, f.Token, f.IP, id, props = parts[0], parts[2], parts[3], parts[4], parts[5]
	default:
		return f, fmt.Errorf("%w: unknown protocol %q", ErrInvalidProxy, p)
	}

	if net.ParseIP(f.IP) == nil {
		return f, fmt.Errorf("%w: bad address %q", ErrInvalidProxy, f.IP)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return f, fmt.Errorf("%w: bad uuid: %v", ErrInvalidProxy, err)
	}
	f.UUID = u
	if props != "" {
		var list []property
		if err := json.Unmarshal([]byte(props), &list); err != nil {
			return f, fmt.Errorf("%w: bad properties: %v", ErrInvalidProxy, err)
		}
		for _, pr := range list {
			if p == BungeeCord && pr.Name == bungeeGuardProperty {
				f.Token = pr.Value
				continue
			}
			f.Properties = append(f.Properties, packet.Property{Name: pr.Name, Value: pr.Value, Signature: pr.Signature})
		}
	}
	return f, nil
}

// Verify checks the forwarded token against the configured one.
func (f Forwarded) Verify(token string) error {
	if f.Token != token {
		return fmt.Errorf("%w: token mismatch", ErrInvalidProxy)
	}
	return nil
}

// Encode renders f in the layout of p. It is the inverse of ParseForwarded.
func (f Forwarded) Encode(p ProxyProtocol) (string, error) {
	list := make([]property, 0, len(f.Properties)+1)
	for _, pr := range f.Properties {
		list = append(list, property{Name: pr.Name, Value: pr.Value, Signature: pr.Signature})
	}
	if p == BungeeCord && f.Token != "" {
		list = append(list, property{Name: bungeeGuardProperty, Value: f.Token})
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	id := strings.ReplaceAll(f.UUID.String(), "-", "")
	switch p {
	case BungeeCord:
		return strings.Join([]string{f.Host, f.IP, id, string(b)}, "\x00"), nil
	case QTunnel:
		return strings.Join([]string{f.Host, string(QTunnel), f.IP, id, string(b), f.Token}, "\x00"), nil
	case Victory:
		return strings.Join([]string{f.Host, string(Victory), f.Token, f.IP, id, string(b)}, "\x00"), nil
	}
	return "", fmt.Errorf("%w: unknown protocol %q", ErrInvalidProxy, p)
}
