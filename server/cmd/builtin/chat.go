package builtin

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/text"
	mctext "github.com/sandertv/gophertunnel/minecraft/text"
)

type sayCommand struct {
	srv serverAdapter
}

func newSayCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "say",
		Description: "Broadcasts a message to all players.",
		Permission:  "qexed.say",
		Params:      []cmd.Param{{Name: "message", Type: cmd.ParamText}},
		Runner:      sayCommand{srv: srv},
	}
}

func (c sayCommand) Run(_ context.Context, data cmd.CommandData, o *cmd.Output) {
	msg := strings.TrimSpace(data.Args.String("message"))
	if msg == "" {
		o.Errorf(cmd.MessageUsage, "/say <message>")
		return
	}
	line := "[" + sourceName(data) + "] " + msg
	if err := c.srv.Chat().Broadcast(uuid.Nil, text.Plain(line)); err != nil {
		o.Error(err)
		return
	}
	if data.IsCmd {
		o.Print(line)
	}
}

type meCommand struct {
	srv serverAdapter
}

func newMeCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "me",
		Description: "Performs an action in chat.",
		Permission:  "qexed.me",
		Params:      []cmd.Param{{Name: "action", Type: cmd.ParamText}},
		Runner:      meCommand{srv: srv},
	}
}

func (c meCommand) Run(_ context.Context, data cmd.CommandData, o *cmd.Output) {
	action := strings.TrimSpace(data.Args.String("action"))
	if action == "" {
		o.Errorf(cmd.MessageUsage, "/me <action>")
		return
	}
	line := "* " + sourceName(data) + " " + action
	if err := c.srv.Chat().Broadcast(uuid.Nil, text.Plain(line)); err != nil {
		o.Error(err)
		return
	}
	if data.IsCmd {
		o.Print(line)
	}
}

type tellCommand struct {
	srv serverAdapter
}

func newTellCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "tell",
		Description: "Sends a private message to a player.",
		Permission:  "qexed.tell",
		Aliases:     []string{"msg", "w"},
		Params:      []cmd.Param{{Name: "player", Type: cmd.ParamPlayer}, {Name: "message", Type: cmd.ParamText}},
		Runner:      tellCommand{srv: srv},
	}
}

func (c tellCommand) Run(ctx context.Context, data cmd.CommandData, o *cmd.Output) {
	name := data.Args.String("player")
	target, ok, err := c.srv.PlayerList().Online(ctx, name)
	if err != nil {
		o.Error(err)
		return
	}
	if !ok {
		o.Errorf("No player was found: %s", name)
		return
	}
	msg := strings.TrimSpace(data.Args.String("message"))
	whisper := mctext.Colourf("<grey>%s whispers to you: %s</grey>", sourceName(data), msg)
	if err := c.srv.Chat().Send(target.UUID, text.Plain(whisper)); err != nil {
		o.Errorf("No player was found: %s", name)
		return
	}
	o.Print(mctext.Colourf("<grey>You whisper to %s: %s</grey>", target.Name, msg))
}
