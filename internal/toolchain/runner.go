// Package toolchain runs the external converter and engine builder.
//
// Tool output is streamed line by line into the context logger so progress
// from long builds shows up as it happens. On failure the last lines of
// stderr are kept on the returned ExitError.
package toolchain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/buildengine/internal/ctxlog"
)

// TailLines is how many trailing stderr lines an ExitError keeps.
const TailLines = 10

// ErrToolNotFound is returned when a tool is not on PATH.
var ErrToolNotFound = errors.New("tool not found")

// Runner runs an external tool to completion.
type Runner interface {
	Run(ctx context.Context, tool string, args ...string) error
}

// ExitError reports a tool that exited unsuccessfully.
type ExitError struct {
	Tool string
	Code int
	Tail []string // last lines written to stderr
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

// DefaultWaitDelay bounds how long Run keeps reading output after the tool
// exits or is killed. Grandchildren that inherit stdout can otherwise hold
// the pipes open indefinitely.
const DefaultWaitDelay = 5 * time.Second

// maxLineBytes caps a single logged line; the rest of the line is dropped.
const maxLineBytes = 64 * 1024

// ExecRunner runs tools as child processes.
type ExecRunner struct {
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// WaitDelay overrides DefaultWaitDelay when positive.
	WaitDelay time.Duration
}

// Run starts tool with args and waits for it. Cancelling ctx kills the process.
func (r ExecRunner) Run(ctx context.Context, tool string, args ...string) error {
	path, err := exec.LookPath(tool)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrToolNotFound, tool, err)
	}

	name := filepath.Base(tool)
	logger := ctxlog.FromContext(ctx).With("tool", name)
	logger.Info("Running tool.", "path", path, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	var tail []string
	var g errgroup.Group
	g.Go(func() error {
		_, err := streamLines(ctx, stdoutR, logger, slog.LevelDebug, 0)
		return err
	})
	g.Go(func() error {
		var err error
		tail, err = streamLines(ctx, stderrR, logger, slog.LevelInfo, TailLines)
		return err
	})

	// Wait returns once the copies into the pipes finish or WaitDelay
	// expires; only then are the readers told there is nothing more.
	waitErr := cmd.Wait()
	_ = stdoutW.Close()
	_ = stderrW.Close()
	streamErr := g.Wait()

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Warn("Tool exited but its output stayed open; stopped reading.", "waitDelay", cmd.WaitDelay)
		waitErr = nil
	}
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s interrupted: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ExitError{Tool: name, Code: exitErr.ExitCode(), Tail: tail}
		}
		return fmt.Errorf("failed to wait for %s: %w", name, waitErr)
	}
	if streamErr != nil {
		return fmt.Errorf("failed to read %s output: %w", name, streamErr)
	}

	logger.Debug("Tool finished.")
	return nil
}

// streamLines logs every line read from rd and returns the last keep lines.
// Lines longer than maxLineBytes are cut short. rd is always read to the
// end so the writer never blocks.
func streamLines(ctx context.Context, rd io.Reader, logger *slog.Logger, level slog.Level, keep int) ([]string, error) {
	var tail []string
	br := bufio.NewReaderSize(rd, maxLineBytes)
	line := make([]byte, 0, 256)
	truncated := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return tail, nil
			}
			_, _ = io.Copy(io.Discard, rd)
			return tail, err
		}
		if room := maxLineBytes - len(line); len(chunk) > room {
			line = append(line, chunk[:room]...)
			truncated = true
		} else {
			line = append(line, chunk...)
		}
		if isPrefix {
			continue
		}

		text := strings.TrimRight(string(line), "\r")
		if truncated {
			text += " (truncated)"
		}
		line, truncated = line[:0], false
		if text == "" {
			continue
		}
		logger.Log(ctx, level, text)
		if keep > 0 {
			tail = append(tail, text)
			if len(tail) > keep {
				tail = tail[1:]
			}
		}
	}
}
