package builtin

import (
	"context"
	"strconv"
	"strings"

	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/text"
	"github.com/qexed/qexed/server/title"
)

type titleCommand struct {
	srv serverAdapter
}

func newTitleCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "title",
		Description: "Controls screen titles.",
		Permission:  "qexed.title",
		Params: []cmd.Param{
			{Name: "targets", Type: cmd.ParamPlayer},
			{Name: "action", Type: cmd.ParamEnum, Options: []string{"title", "subtitle", "actionbar", "clear", "reset", "times"}},
			{Name: "text", Type: cmd.ParamText, Optional: true},
		},
		Runner: titleCommand{srv: srv},
	}
}

func (c titleCommand) Run(ctx context.Context, data cmd.CommandData, o *cmd.Output) {
	target := data.Args.String("targets")
	players, err := targets(ctx, c.srv.PlayerList(), target)
	if err != nil {
		o.Error(err)
		return
	}
	if len(players) == 0 {
		o.Error("No targets matched selector")
		return
	}
	all := target == "@a"
	titles := c.srv.Titles()
	action, arg := data.Args.String("action"), strings.TrimSpace(data.Args.String("text"))

	switch action {
	case "clear", "reset":
		reset := action == "reset"
		if all {
			err = titles.BroadcastClear(reset)
			break
		}
		err = titles.Clear(players[0].UUID, reset)
	case "times":
		t, ok := parseTimes(arg)
		if !ok {
			o.Errorf(cmd.MessageUsage, "/title <targets> times <fadeIn> <stay> <fadeOut>")
			return
		}
		if all {
			err = titles.BroadcastTimes(t)
			break
		}
		err = titles.SetTimes(players[0].UUID, t)
	default:
		kind, _ := title.ParseKind(action)
		if arg == "" {
			o.Errorf(cmd.MessageUsage, "/title <targets> "+action+" <text>")
			return
		}
		if all {
			err = titles.Broadcast(kind, text.Plain(arg))
			break
		}
		err = titles.Show(players[0].UUID, kind, text.Plain(arg))
	}
	if err != nil {
		o.Error(err)
		return
	}
	if all {
		o.Printf("Showing new %s for %d players", action, len(players))
		return
	}
	o.Printf("Showing new %s for %s", action, players[0].Name)
}

func parseTimes(s string) (title.Times, bool) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return title.Times{}, false
	}
	var v [3]int32
	for i, f := range fields {
		n, err := strconv.ParseInt(f, 10, 32)
		if err != nil || n < 0 {
			return title.Times{}, false
		}
		v[i] = int32(n)
	}
	return title.Times{FadeIn: v[0], Stay: v[1], FadeOut: v[2]}, true
}
