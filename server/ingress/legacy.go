package ingress

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/status"
	mctext "github.com/sandertv/gophertunnel/minecraft/text"
	"golang.org/x/text/encoding/unicode"
)

// legacyKick is the first byte of the answer to a pre-netty server list ping.
const legacyKick = 0xFF

// legacyResponse renders the kick packet answering a 0xFE server list ping:
// the §1 form listing protocol, version, MOTD and player counts, as UTF-16BE
// prefixed with its length in code units.
func legacyResponse(res status.Response) ([]byte, error) {
	motd := strings.ReplaceAll(mctext.Clean(res.MOTD), "\x00", "")
	s := strings.Join([]string{
		"§1",
		strconv.Itoa(packet.ProtocolVersion),
		packet.GameVersion,
		motd,
		strconv.Itoa(res.Online),
		strconv.Itoa(res.Max),
	}, "\x00")
	enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	b, err := enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode legacy ping: %w", err)
	}
	out := make([]byte, 3, 3+len(b))
	out[0] = legacyKick
	binary.BigEndian.PutUint16(out[1:], uint16(len(b)/2))
	return append(out, b...), nil
}

func writeLegacy(w io.Writer, res status.Response) error {
	b, err := legacyResponse(res)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
