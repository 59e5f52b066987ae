package builtin

import (
	"context"
	"strings"

	"github.com/qexed/qexed/server/cmd"
)

func newHelpCommand(m *cmd.Manager) cmd.Command {
	return cmd.Command{
		Name:        "help",
		Description: "Shows available commands and their usage.",
		Permission:  "qexed.help",
		Aliases:     []string{"?"},
		Params: []cmd.Param{{
			Name:        "command",
			Description: "The command to describe.",
			Type:        cmd.ParamString,
			Optional:    true,
		}},
		Runner: helpCommand{m: m},
	}
}

type helpCommand struct {
	m *cmd.Manager
}

func (h helpCommand) Run(ctx context.Context, data cmd.CommandData, o *cmd.Output) {
	if data.Args.Has("command") {
		name := strings.ToLower(strings.TrimPrefix(data.Args.String("command"), "/"))
		info, err := h.m.Lookup(ctx, name)
		if err != nil || !data.Permitted(info.Permission) {
			o.Errorf(cmd.MessageUnknown, name)
			return
		}
		if info.Description != "" {
			o.Print(info.Description)
		}
		o.Print(info.Usage)
		for _, p := range info.Params {
			if p.Description != "" {
				o.Printf("  %s: %s", p.Name, p.Description)
			}
		}
		if len(info.Aliases) != 0 {
			o.Printf("Aliases: %s", strings.Join(info.Aliases, ", "))
		}
		return
	}

	infos, err := h.m.Commands(ctx)
	if err != nil {
		o.Error(err)
		return
	}
	available := infos[:0]
	for _, info := range infos {
		if data.Permitted(info.Permission) {
			available = append(available, info)
		}
	}
	if len(available) == 0 {
		o.Print("No commands available.")
		return
	}
	o.Printf("Available commands (%d):", len(available))
	for _, info := range available {
		line := "/" + info.Name
		if info.Description != "" {
			line += " - " + info.Description
		}
		o.Print(line)
	}
}
