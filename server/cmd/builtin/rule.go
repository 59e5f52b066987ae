package builtin

import (
	"context"
	"errors"
	"strings"

	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/rule"
)

// ruleCommand owns its own rule handle. The command's dispatch actor is the
// only goroutine using it.
type ruleCommand struct {
	rules *rule.Handle
}

func newRuleCommand(ctx context.Context, srv serverAdapter) (cmd.Command, error) {
	h, err := srv.Rules().Clone(ctx)
	if err != nil {
		return cmd.Command{}, err
	}
	return cmd.Command{
		Name:        "rule",
		Description: "Shows or changes a gameplay rule.",
		Aliases:     []string{"gamerule"},
		Permission:  "qexed.rule",
		Params: []cmd.Param{
			{Name: "name", Type: cmd.ParamEnum, Optional: true, Options: rule.Names()},
			{Name: "value", Type: cmd.ParamString, Optional: true},
		},
		Runner: ruleCommand{rules: h},
	}, nil
}

func (c ruleCommand) Run(ctx context.Context, data cmd.CommandData, o *cmd.Output) {
	if err := c.rules.Check(ctx); err != nil {
		o.Error(err)
		return
	}
	if !data.Args.Has("name") {
		lines := make([]string, 0, len(rule.Names()))
		for _, name := range rule.Names() {
			v, _ := c.rules.Local.Get(name)
			lines = append(lines, name+" = "+v)
		}
		o.Print("Rules: " + strings.Join(lines, ", "))
		return
	}
	name := data.Args.String("name")
	if !data.Args.Has("value") {
		v, _ := c.rules.Local.Get(name)
		o.Printf("Rule %s is currently set to: %s", name, v)
		return
	}
	value := data.Args.String("value")
	if err := c.rules.Local.Set(name, value); err != nil {
		if errors.Is(err, rule.ErrInvalidValue) {
			o.Errorf("Invalid value for rule %s: %s", name, value)
			return
		}
		o.Error(err)
		return
	}
	if err := c.rules.Commit(ctx); err != nil {
		o.Error(err)
		return
	}
	o.Printf("Rule %s is now set to: %s", name, value)
}
