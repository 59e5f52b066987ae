// Package status answers server list pings with the JSON status document.
package status

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/playerlist"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/text"
)

// maxSample is the number of player names listed in the hover sample.
const maxSample = 12

// Config configures the status responder.
type Config struct {
	// MOTD holds the messages of the day. One is chosen at random per
	// response.
	MOTD []string
	// Favicon is the path of a 64x64 PNG. Empty disables the icon.
	Favicon string
	// Cache is how long a response is reused. A negative value disables
	// caching.
	Cache time.Duration
	// VersionName is shown by clients running a different protocol.
	VersionName string
	Log         *slog.Logger
}

// Response is one status answer.
type Response struct {
	// JSON is the status document sent in StatusResponse.
	JSON string
	// MOTD is the message of the day chosen for this response.
	MOTD   string
	Online int
	Max    int
}

type document struct {
	Version            version        `json:"version"`
	Players            players        `json:"players"`
	Description        text.Component `json:"description"`
	Favicon            string         `json:"favicon,omitempty"`
	EnforcesSecureChat bool           `json:"enforcesSecureChat"`
}

type version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type players struct {
	Max    int      `json:"max"`
	Online int      `json:"online"`
	Sample []sample `json:"sample,omitempty"`
}

type sample struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type request struct {
	*actor.Reply[Response]
}

// Status is a handle to the status actor.
type Status struct {
	s *actor.Sender[request]
}

// New starts the status responder. Player counts are read from list.
func New(conf Config, list *playerlist.List) (*Status, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.VersionName == "" {
		conf.VersionName = packet.GameVersion
	}
	if len(conf.MOTD) == 0 {
		conf.MOTD = []string{"A Minecraft Server"}
	}
	h := &handler{conf: conf, list: list}
	if conf.Favicon != "" {
		b, err := os.ReadFile(conf.Favicon)
		if err != nil {
			return nil, fmt.Errorf("read favicon: %w", err)
		}
		h.favicon = "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
	}
	return &Status{s: actor.Spawn[request](h, actor.Config{Name: "status", Log: conf.Log})}, nil
}

// Response returns the current status response, possibly from cache.
func (s *Status) Response(ctx context.Context) (Response, error) {
	return actor.Ask(ctx, s.s, func(r *actor.Reply[Response]) request { return request{r} })
}

// Close stops the responder.
func (s *Status) Close() { s.s.Close() }

type handler struct {
	conf    Config
	list    *playerlist.List
	favicon string

	cached  Response
	expires time.Time
}

func (h *handler) Handle(_ *actor.Sender[request], m request) bool {
	if h.conf.Cache >= 0 && !h.expires.IsZero() && time.Now().Before(h.expires) {
		m.Send(h.cached)
		return false
	}
	res, err := h.build()
	if err != nil {
		h.conf.Log.Error("build status: " + err.Error())
		m.Drop()
		return false
	}
	if h.conf.Cache >= 0 {
		h.cached, h.expires = res, time.Now().Add(h.conf.Cache)
	}
	m.Send(res)
	return false
}

func (h *handler) build() (Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	counts, err := h.list.Counts(ctx)
	if err != nil {
		return Response{}, err
	}
	online, err := h.list.Players(ctx)
	if err != nil {
		return Response{}, err
	}
	motd := h.conf.MOTD[rand.IntN(len(h.conf.MOTD))]
	doc := document{
		Version:     version{Name: h.conf.VersionName, Protocol: packet.ProtocolVersion},
		Players:     players{Max: counts.Max, Online: counts.Online},
		Description: text.Plain(motd),
		Favicon:     h.favicon,
	}
	for _, p := range online[:min(len(online), maxSample)] {
		doc.Players.Sample = append(doc.Players.Sample, sample{Name: p.Name, ID: p.UUID.String()})
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return Response{}, err
	}
	return Response{JSON: string(b), MOTD: motd, Online: counts.Online, Max: counts.Max}, nil
}
