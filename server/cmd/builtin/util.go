package builtin

import (
	"context"
	"slices"
	"strings"

	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/playerlist"
)

// sourceName returns a user facing name for the source invoking a command.
func sourceName(data cmd.CommandData) string {
	if data.Source == nil || data.IsCmd {
		return "Server"
	}
	return data.Source.Name()
}

// joinNames joins player names into a readable list.
func joinNames(names []string) string {
	names = slices.Clone(names)
	slices.SortFunc(names, func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) })
	return strings.Join(names, ", ")
}

// targets resolves a player parameter. "@a" selects everyone online.
func targets(ctx context.Context, list *playerlist.List, name string) ([]playerlist.Player, error) {
	if name == "@a" {
		return list.Players(ctx)
	}
	p, ok, err := list.Online(ctx, name)
	if err != nil || !ok {
		return nil, err
	}
	return []playerlist.Player{p}, nil
}

func bytesToMiB(v uint64) float64 {
	return float64(v) / (1024 * 1024)
}
