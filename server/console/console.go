// Package console reads commands typed into the server terminal.
package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/text"
)

// Executor runs command lines. *cmd.Manager implements it.
type Executor interface {
	Execute(ctx context.Context, data cmd.CommandData, line string) error
}

// Console provides a simple CLI backed command source that reads commands from
// an io.Reader (defaulting to os.Stdin) and executes them with the IsCmd flag
// set.
type Console struct {
	exec   Executor
	exit   func()
	log    *slog.Logger
	reader io.Reader
}

// New returns a Console bound to the provided executor. The console reads from
// os.Stdin and writes command output to the supplied logger. exit is called
// when "exit" is typed.
func New(exec Executor, exit func(), log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{
		exec:   exec,
		exit:   exit,
		log:    log,
		reader: os.Stdin,
	}
}

// WithReader sets a custom reader for the console input. It enables testing the
// console without relying on os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run starts consuming commands from the console. It blocks until the context
// is cancelled, the underlying reader reaches EOF or "exit" is typed.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	src := &consoleSource{log: c.log}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("console input error", "err", err)
			}
			return
		}
		line := strings.TrimPrefix(strings.TrimSpace(scanner.Text()), "/")
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			if c.exit != nil {
				c.exit()
			}
			return
		}
		if err := c.exec.Execute(ctx, cmd.CommandData{Source: src, IsCmd: true, Permissions: cmd.AllPermissions()}, line); err != nil {
			c.log.Error("execute command: "+err.Error(), "line", line)
		}
	}
}

type consoleSource struct {
	log *slog.Logger
}

func (c *consoleSource) Name() string { return "Server" }

// SendMessage logs a command output line. Formatting codes are removed.
func (c *consoleSource) SendMessage(msg text.Component) {
	if msg.Color == "red" {
		c.log.Error(msg.String())
		return
	}
	c.log.Info(msg.String())
}
