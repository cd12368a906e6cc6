// Package main provides the buildengine CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/born-ml/buildengine/internal/cli"
	"github.com/born-ml/buildengine/internal/ctxlog"
	"github.com/born-ml/buildengine/internal/pipeline"
	"github.com/born-ml/buildengine/internal/registry"
	"github.com/born-ml/buildengine/internal/toolchain"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("buildengine %s\n", version)
		return
	}

	// Use a minimal logger until the level is known.
	slog.SetDefault(ctxlog.New(os.Stderr, slog.LevelInfo))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, env{
		out:     os.Stdout,
		logs:    os.Stderr,
		args:    os.Args[1:],
		baseDir: executableDir(),
		prompt:  cli.TerminalPrompter(),
		runner:  toolchain.ExecRunner{},
	})
	if err != nil {
		stop()
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env carries everything run needs from the process.
type env struct {
	out     io.Writer
	logs    io.Writer
	args    []string
	baseDir string
	prompt  cli.Prompter
	runner  toolchain.Runner
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, e env) error {
	reg, err := registry.Load(e.baseDir)
	if err != nil {
		return err
	}

	cfg, shouldExit, err := cli.Parse(e.args, reg.Names(), e.out, e.prompt)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := ctxlog.New(e.logs, cfg.LogLevel)
	ctx = ctxlog.WithLogger(ctx, logger)

	res, err := pipeline.New(reg, e.runner).Run(ctx, cfg.Model)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s: wrote %d byte engine to %s\n", res.Model, res.EngineBytes, res.EnginePath)
	return nil
}

// executableDir is the root every registry path is resolved against.
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
