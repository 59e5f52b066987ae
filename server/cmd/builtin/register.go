package builtin

import (
	"context"
	"fmt"

	"github.com/qexed/qexed/server/cmd"
)

// PlayerPermissions are the nodes of the built-in commands every player may
// run. The remaining built-ins are left to the console and to players granted
// their nodes.
var PlayerPermissions = []string{
	"qexed.help",
	"qexed.list",
	"qexed.tell",
	"qexed.me",
	"qexed.say",
	"qexed.seed",
	"qexed.title",
	"qexed.version",
}

// Register registers the built-in command set on m.
func Register(ctx context.Context, m *cmd.Manager, srv serverAdapter) error {
	ruleCommand, err := newRuleCommand(ctx, srv)
	if err != nil {
		return fmt.Errorf("rule command: %w", err)
	}
	for _, c := range []cmd.Command{
		newHelpCommand(m),
		newListCommand(srv),
		newTellCommand(srv),
		newMeCommand(srv),
		newSayCommand(srv),
		newSeedCommand(srv),
		newTitleCommand(srv),
		newVersionCommand(srv),
		newStopCommand(srv),
		newStatusCommand(srv),
		newGCCommand(),
		newKickCommand(srv),
		ruleCommand,
		newAccessCommand(srv.Blacklist, "blacklist", "Manages the blacklist.", srv),
		newAccessCommand(srv.Whitelist, "whitelist", "Manages the whitelist.", srv),
	} {
		ok, err := m.Register(ctx, c)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("command %v already registered", c.Name)
		}
	}
	return nil
}
