// Package engine compiles a UFF graph into a serialized inference engine
// with the external engine builder.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/born-ml/buildengine/internal/ctxlog"
	"github.com/born-ml/buildengine/internal/toolchain"
)

var (
	// ErrPluginLibrary is returned when a plugin library cannot be loaded.
	ErrPluginLibrary = errors.New("plugin library unavailable")
	// ErrEmptyEngine is returned when the builder produced no engine.
	ErrEmptyEngine = errors.New("builder produced no engine")
)

// Binding names a network tensor, with its dimensions for inputs.
type Binding struct {
	Name string
	Dims []int // CHW, batch excluded
}

func (b Binding) String() string {
	if len(b.Dims) == 0 {
		return b.Name
	}
	parts := make([]string, 0, len(b.Dims)+1)
	parts = append(parts, b.Name)
	for _, d := range b.Dims {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// Config holds the build settings.
type Config struct {
	Input           Binding
	Output          Binding
	WorkspaceBytes  int64
	MaxBatchSize    int
	FP16            bool
	PluginLibraries []string
}

// Validate checks the settings before any tool runs.
func (c Config) Validate() error {
	switch {
	case c.Input.Name == "" || len(c.Input.Dims) == 0:
		return errors.New("engine config: input binding needs a name and dimensions")
	case c.Output.Name == "":
		return errors.New("engine config: output binding needs a name")
	case c.WorkspaceBytes < 1<<20:
		return fmt.Errorf("engine config: workspace of %d bytes is below 1 MiB", c.WorkspaceBytes)
	case c.MaxBatchSize <= 0:
		return errors.New("engine config: max batch size must be positive")
	}
	return nil
}

// Builder runs the engine builder.
type Builder struct {
	Tool       string
	Runner     toolchain.Runner
	ScratchDir string // where the engine is written before it is read back; empty means os.TempDir
}

// Build compiles the UFF file at uffPath and returns the serialized engine.
func (b *Builder) Build(ctx context.Context, uffPath string, cfg Config) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, lib := range cfg.PluginLibraries {
		info, err := os.Stat(lib)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPluginLibrary, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s is not a regular file", ErrPluginLibrary, lib)
		}
	}

	dir := b.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	scratch := filepath.Join(dir, uuid.NewString()+".engine")
	defer func() {
		if err := os.Remove(scratch); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove scratch engine.", "path", scratch, "error", err)
		}
	}()

	logger.Info("Building engine.",
		"uff", uffPath,
		"input", cfg.Input.String(),
		"output", cfg.Output.Name,
		"workspace_bytes", cfg.WorkspaceBytes,
		"max_batch", cfg.MaxBatchSize,
		"fp16", cfg.FP16,
	)
	if err := b.Runner.Run(ctx, b.Tool, Args(uffPath, scratch, cfg)...); err != nil {
		return nil, fmt.Errorf("engine build: %w", err)
	}

	data, err := os.ReadFile(scratch)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrEmptyEngine
		}
		return nil, fmt.Errorf("failed to read engine: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyEngine
	}

	logger.Debug("Engine built.", "bytes", len(data))
	return data, nil
}

// Args returns the builder command line.
func Args(uffPath, savePath string, cfg Config) []string {
	args := []string{
		"--uff=" + uffPath,
		"--uffInput=" + cfg.Input.String(),
		"--output=" + cfg.Output.Name,
		"--workspace=" + strconv.FormatInt(cfg.WorkspaceBytes>>20, 10),
		"--maxBatch=" + strconv.Itoa(cfg.MaxBatchSize),
	}
	if cfg.FP16 {
		args = append(args, "--fp16")
	}
	for _, lib := range cfg.PluginLibraries {
		args = append(args, "--plugins="+lib)
	}
	return append(args, "--saveEngine="+savePath)
}
