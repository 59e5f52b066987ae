package builtin

import (
	"context"
	"errors"
	"strings"

	"github.com/qexed/qexed/server/access"
	"github.com/qexed/qexed/server/cmd"
)

type accessCommand struct {
	list func() *access.List
	srv  serverAdapter
}

func newAccessCommand(list func() *access.List, name, description string, srv serverAdapter) cmd.Command {
	actions := []string{"add", "remove", "list", "on", "off"}
	return cmd.Command{
		Name:        name,
		Description: description,
		Permission:  "qexed." + name,
		Params: []cmd.Param{
			{Name: "action", Type: cmd.ParamEnum, Options: actions},
			{Name: "player", Type: cmd.ParamString, Optional: true},
		},
		Runner: accessCommand{list: list, srv: srv},
	}
}

func (c accessCommand) Run(ctx context.Context, data cmd.CommandData, o *cmd.Output) {
	l := c.list()
	if l == nil {
		o.Error("player list is not configured")
		return
	}
	kind := l.Kind().String()
	switch action := data.Args.String("action"); action {
	case "list":
		entries, err := l.Entries(ctx)
		if err != nil {
			o.Error(err)
			return
		}
		status := "enabled"
		if !l.Enabled() {
			status = "disabled"
		}
		o.Printf("%s (%s): %d player(s).", strings.ToUpper(kind[:1])+kind[1:], status, len(entries))
		if len(entries) != 0 {
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.String())
			}
			o.Print(strings.Join(names, ", "))
		}
	case "on", "off":
		l.SetEnabled(action == "on")
		o.Printf("Turned %s the %s.", action, kind)
	default:
		e, err := access.ParseEntry(data.Args.String("player"))
		if err != nil {
			o.Errorf(cmd.MessageUsage, "/"+kind+" "+action+" <player>")
			return
		}
		if action == "add" {
			c.add(ctx, l, e, o)
			return
		}
		removed, err := l.Remove(ctx, e)
		switch {
		case err != nil:
			o.Error(err)
		case removed:
			o.Printf("Removed %s from the %s.", e, kind)
		default:
			o.Printf("%s is not on the %s.", e, kind)
		}
	}
}

func (c accessCommand) add(ctx context.Context, l *access.List, e access.Entry, o *cmd.Output) {
	kind := l.Kind().String()
	if e.Name != "" {
		if online, ok, err := c.srv.PlayerList().Online(ctx, e.Name); err == nil && ok {
			e = access.Entry{UUID: online.UUID, Name: online.Name}
		}
	}
	added, err := l.Add(ctx, e)
	if err != nil {
		if errors.Is(err, access.ErrInvalidName) {
			o.Errorf(cmd.MessageUsage, "/"+kind+" add <player>")
			return
		}
		o.Error(err)
		return
	}
	if !added {
		o.Printf("%s is already on the %s.", e, kind)
		return
	}
	o.Printf("Added %s to the %s.", e, kind)
	if l.Kind() != access.Blacklist || !l.Enabled() {
		return
	}
	players, err := c.srv.PlayerList().Players(ctx)
	if err != nil {
		return
	}
	for _, p := range players {
		if online := (access.Entry{UUID: p.UUID, Name: p.Name}); e.Matches(online) {
			_ = c.srv.Kick(ctx, p.UUID, l.KickMessage(online))
		}
	}
}
