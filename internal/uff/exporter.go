// Package uff exports an edited graph to the UFF exchange format by running
// the external converter over a serialized copy of it.
package uff

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/born-ml/buildengine/internal/ctxlog"
	"github.com/born-ml/buildengine/internal/graphdef"
	"github.com/born-ml/buildengine/internal/toolchain"
)

// ErrEmptyOutput is returned when the converter exits cleanly without
// producing a file.
var ErrEmptyOutput = errors.New("converter produced no output")

// Options select the converter flags.
type Options struct {
	OutputNodes []string
	Text        bool // also write a readable .pbtxt next to the output
	Quiet       bool
	ListNodes   bool
	Debug       bool
}

// ProductionOptions are the flags used for engine builds.
func ProductionOptions() Options {
	return Options{Quiet: true, ListNodes: true, Debug: true}
}

// DebugOptions emit a text dump alongside the binary file.
func DebugOptions() Options {
	return Options{Text: true, Debug: true}
}

// Args returns the converter command line for src written to dest.
func (o Options) Args(src, dest string) []string {
	args := []string{src, "-o", dest}
	for _, n := range o.OutputNodes {
		args = append(args, "-O", n)
	}
	if o.Text {
		args = append(args, "-t")
	}
	if o.Quiet {
		args = append(args, "-q")
	}
	if o.ListNodes {
		args = append(args, "-l")
	}
	if o.Debug {
		args = append(args, "-d")
	}
	return args
}

// Exporter runs the UFF converter.
type Exporter struct {
	Converter  string
	Runner     toolchain.Runner
	ScratchDir string // where the serialized graph is staged; empty means os.TempDir
	Options    Options
}

// Export writes g as UFF to dest, marking outputNodes as the graph outputs.
func (e *Exporter) Export(ctx context.Context, g *graphdef.GraphDef, outputNodes []string, dest string) error {
	logger := ctxlog.FromContext(ctx)

	dir := e.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	staged := filepath.Join(dir, uuid.NewString()+".pb")
	if err := graphdef.WriteFile(g, staged); err != nil {
		return fmt.Errorf("failed to stage graph: %w", err)
	}
	defer func() {
		if err := os.Remove(staged); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove staged graph.", "path", staged, "error", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}
	// A leftover file from an earlier run must not pass for fresh output.
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale %s: %w", dest, err)
	}

	opts := e.Options
	opts.OutputNodes = outputNodes
	logger.Info("Exporting UFF.", "nodes", len(g.Nodes), "outputs", outputNodes, "dest", dest)
	if err := e.Runner.Run(ctx, e.Converter, opts.Args(staged, dest)...); err != nil {
		return fmt.Errorf("uff export: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrEmptyOutput, dest)
		}
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrEmptyOutput, dest)
	}

	logger.Debug("UFF written.", "path", dest, "bytes", info.Size())
	return nil
}
