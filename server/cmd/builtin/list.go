package builtin

import (
	"context"
	"strings"

	"github.com/qexed/qexed/server/cmd"
)

type listCommand struct {
	srv serverAdapter
}

func newListCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "list",
		Description: "Lists players currently online.",
		Permission:  "qexed.list",
		Aliases:     []string{"players"},
		Params:      []cmd.Param{{Name: "page", Type: cmd.ParamInt, Optional: true, Min: cmd.Bound(1)}},
		Runner:      listCommand{srv: srv},
	}
}

func (l listCommand) Run(ctx context.Context, data cmd.CommandData, o *cmd.Output) {
	n := 1
	if data.Args.Has("page") {
		n = int(data.Args.Int("page"))
	}
	page, err := l.srv.PlayerList().List(ctx, n, locale(data))
	if err != nil {
		o.Error(err)
		return
	}
	o.Printf("There are %d/%d players online.", page.Online, page.Max)
	if len(page.Names) == 0 {
		return
	}
	if page.Pages > 1 {
		o.Printf("Page %d of %d:", page.Number, page.Pages)
	}
	o.Print(strings.Join(page.Names, ", "))
}

// localeSource is implemented by sources that know the client's language.
type localeSource interface {
	Locale() string
}

func locale(data cmd.CommandData) string {
	if l, ok := data.Source.(localeSource); ok {
		return l.Locale()
	}
	return "en_us"
}
