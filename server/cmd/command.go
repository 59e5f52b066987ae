// Package cmd implements the command system: a registry of commands, each
// served by its own dispatch actor, argument parsing, the client command
// graph and a per-player child that caches command lookups.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/text"
)

// Source is whoever executes a command.
type Source interface {
	// Name is the name shown to other players, "Server" for the console.
	Name() string
	// SendMessage shows a command output line to the source.
	SendMessage(c text.Component)
}

// CommandData describes one execution of a command.
type CommandData struct {
	Source Source
	// Player is the UUID of the executing player, uuid.Nil for the console.
	Player uuid.UUID
	// IsCmd is set for commands typed into the server console. The console
	// holds every permission.
	IsCmd bool
	// Permissions are the nodes granted to the executor.
	Permissions Permissions
	// Label is the name or alias the command was invoked with.
	Label string
	// Line is the full command line without the leading slash.
	Line string
	Args Args
}

// Permitted reports whether the executor may run a command requiring node.
func (d CommandData) Permitted(node string) bool {
	return d.IsCmd || d.Permissions.Has(node)
}

// Runner runs a command. Run is called from the command's dispatch actor, so
// runs of one command never overlap.
type Runner interface {
	Run(ctx context.Context, data CommandData, o *Output)
}

// RunnerFunc is a Runner implemented by a function.
type RunnerFunc func(ctx context.Context, data CommandData, o *Output)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, data CommandData, o *Output) { f(ctx, data, o) }

// Command is a command ready to be registered.
type Command struct {
	Name        string
	Description string
	Aliases     []string
	// Permission is the node an executor needs, for example "qexed.list".
	// An empty node lets everyone run the command.
	Permission  string
	Params      []Param
	Runner      Runner
}

// Usage returns the usage line of c, for example "/tell <player> <message>".
func (c Command) Usage() string {
	var sb strings.Builder
	sb.WriteString("/" + c.Name)
	for _, p := range c.Params {
		sb.WriteByte(' ')
		sb.WriteString(p.usage())
	}
	return sb.String()
}

// Info describes a registered command without giving access to its runner.
type Info struct {
	Name        string
	Description string
	Aliases     []string
	Usage       string
	Permission  string
	Params      []Param
}

// Output collects the lines a command prints.
type Output struct {
	messages []text.Component
	errors   int
}

// Print adds a line.
func (o *Output) Print(a ...any) {
	o.messages = append(o.messages, text.Plain(fmt.Sprint(a...)))
}

// Printf adds a formatted line.
func (o *Output) Printf(format string, a ...any) {
	o.messages = append(o.messages, text.Plainf(format, a...))
}

// Error adds a red line.
func (o *Output) Error(a ...any) {
	o.messages = append(o.messages, text.Error(fmt.Sprint(a...)))
	o.errors++
}

// Errorf adds a formatted red line.
func (o *Output) Errorf(format string, a ...any) {
	o.messages = append(o.messages, text.Errorf(format, a...))
	o.errors++
}

// Messages returns every line added so far.
func (o *Output) Messages() []text.Component { return o.messages }

// ErrorCount returns the number of error lines.
func (o *Output) ErrorCount() int { return o.errors }

func (o *Output) deliver(src Source) {
	for _, m := range o.messages {
		src.SendMessage(m)
	}
}

// Messages shared by the command system.
const (
	MessageUnknown    = "Unknown command: %v. Please check that the command exists and that you have permission to use it."
	MessagePermission = "You do not have permission to use this command."
	MessageUsage      = "Usage: %v"
)
