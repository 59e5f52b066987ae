package server

import (
	"context"
	"net"
	"sort"
	"strconv"

	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/query"
	mctext "github.com/sandertv/gophertunnel/minecraft/text"
)

// queryData assembles the Data served by the query responder. It collects
// the dynamic server state while keeping the query package agnostic of the
// Server internals.
func (srv *Server) queryData(ctx context.Context) (query.Data, error) {
	res, err := srv.status.Response(ctx)
	if err != nil {
		return query.Data{}, err
	}
	players, err := srv.players.Players(ctx)
	if err != nil {
		return query.Data{}, err
	}
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	sort.Strings(names)

	worldName := ""
	if w, ok := srv.worlds.Default(); ok {
		worldName = w.Name()
	}
	host, port := "", 0
	if srv.listener != nil {
		h, p, err := net.SplitHostPort(srv.listener.Addr().String())
		if err == nil {
			host = h
			port, _ = strconv.Atoi(p)
		}
	}
	return query.Data{
		MOTD:             mctext.Clean(res.MOTD),
		WorldName:        worldName,
		Version:          packet.GameVersion,
		PlayerCount:      res.Online,
		MaxPlayers:       res.Max,
		HostIP:           host,
		HostPort:         port,
		PlayerNames:      names,
		WhitelistEnabled: srv.whitelist.Enabled(),
	}, nil
}
