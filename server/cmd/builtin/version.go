package builtin

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/qexed/qexed/server/cmd"
	"github.com/qexed/qexed/server/protocol/packet"
)

type versionCommand struct {
	srv serverAdapter
}

func newVersionCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "version",
		Description: "Displays the server version.",
		Permission:  "qexed.version",
		Aliases:     []string{"ver", "about"},
		Runner:      versionCommand{srv: srv},
	}
}

func (v versionCommand) Run(_ context.Context, _ cmd.CommandData, o *cmd.Output) {
	info, ok := debug.ReadBuildInfo()
	goVersion := runtime.Version()
	if ok && info != nil && info.GoVersion != "" {
		goVersion = info.GoVersion
	}
	o.Printf("This server is running Qexed for Minecraft %s (protocol %d)", packet.GameVersion, packet.ProtocolVersion)
	o.Printf("Go runtime: %s", goVersion)

	if info != nil {
		revision := ""
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				revision = setting.Value
				break
			}
		}
		if revision != "" {
			o.Printf("Commit: %s", revision)
		}
	}
	if started := v.srv.StartTime(); !started.IsZero() {
		o.Printf("Uptime: %s", time.Since(started).Round(time.Second))
	}
}

type seedCommand struct {
	srv serverAdapter
}

func newSeedCommand(srv serverAdapter) cmd.Command {
	return cmd.Command{
		Name:        "seed",
		Description: "Displays the world seed.",
		Permission:  "qexed.seed",
		Runner:      seedCommand{srv: srv},
	}
}

func (s seedCommand) Run(_ context.Context, _ cmd.CommandData, o *cmd.Output) {
	w, ok := s.srv.Worlds().Default()
	if !ok {
		o.Error("world unavailable")
		return
	}
	o.Printf("Seed: [%d]", w.Seed())
}
