package builtin

import (
	"context"
	"strings"

	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/text"
)

const defaultKickReason = "Kicked by an operator."

type kickCommand struct {
	srv serverAdapter
}

func newKickCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "kick",
		Description: "Removes one or more players from the server.",
		Permission:  "qexed.kick",
		Params:      []cmd.Param{{Name: "target", Type: cmd.ParamPlayer}, {Name: "reason", Type: cmd.ParamText, Optional: true}},
		Runner:      kickCommand{srv: srv},
	}
}

func (k kickCommand) Run(ctx context.Context, data cmd.CommandData, o *cmd.Output) {
	players, err := targets(ctx, k.srv.PlayerList(), data.Args.String("target"))
	if err != nil {
		o.Error(err)
		return
	}
	if len(players) == 0 {
		o.Error("No targets matched selector")
		return
	}
	reason := defaultKickReason
	if t := strings.TrimSpace(data.Args.String("reason")); t != "" {
		reason = t
	}
	names := make([]string, 0, len(players))
	for _, p := range players {
		if err := k.srv.Kick(ctx, p.UUID, text.Plain(reason)); err != nil {
			o.Errorf("Could not kick %s: %v", p.Name, err)
			continue
		}
		names = append(names, p.Name)
	}
	if len(names) != 0 {
		o.Printf("Kicked %s", joinNames(names))
	}
}
