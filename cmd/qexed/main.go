// Command qexed runs a Minecraft Java Edition server configured by the TOML
// files in ./config.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/qexed/qexed/server"
	"github.com/qexed/qexed/server/console"
)

func main() {
	configDir := flag.String("config", "config", "directory holding the configuration files")
	logDir := flag.String("log", "log", "directory of latest.log")
	flag.Parse()

	if err := run(*configDir, *logDir); err != nil {
		fmt.Fprintln(os.Stderr, "qexed:", err)
		os.Exit(1)
	}
}

func run(configDir, logDir string) error {
	uc, err := server.LoadConfig(configDir)
	if err != nil {
		return err
	}
	level, err := uc.Level()
	if err != nil {
		return err
	}
	log, logFile, err := newLogger(logDir, level)
	if err != nil {
		return err
	}
	defer logFile.Close()

	conf, err := uc.Config(log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, conf)
	if err != nil {
		return err
	}
	go console.New(srv.Commands(), func() { _ = srv.Close() }, log.With("system", "console")).Run(ctx)
	return srv.Run(ctx)
}

// newLogger logs to stdout and to latest.log in dir.
func newLogger(dir string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "latest.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, f), &slog.HandlerOptions{Level: level})
	return slog.New(h), f, nil
}
