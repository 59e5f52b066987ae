package builtin

import (
	"context"

	"github.com/qexed/qexed/server/cmd"
)

type stopCommand struct {
	srv serverAdapter
}

func newStopCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "stop",
		Description: "Stops the server.",
		Permission:  "qexed.stop",
		Runner:      stopCommand{srv: srv},
	}
}

func (s stopCommand) Run(_ context.Context, _ cmd.CommandData, o *cmd.Output) {
	o.Print("Stopping server...")
	if err := s.srv.Close(); err != nil {
		o.Error(err)
	}
}
