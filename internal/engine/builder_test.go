package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/buildengine/internal/toolchain/toolchaintest"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	lib := filepath.Join(t.TempDir(), "libflattenconcat.so")
	require.NoError(t, os.WriteFile(lib, []byte("elf"), 0o600))
	return Config{
		Input:           Binding{Name: "Input", Dims: []int{3, 300, 300}},
		Output:          Binding{Name: "MarkOutput_0"},
		WorkspaceBytes:  1 << 28,
		MaxBatchSize:    1,
		FP16:            true,
		PluginLibraries: []string{lib},
	}
}

func TestArgs(t *testing.T) {
	cfg := Config{
		Input:           Binding{Name: "Input", Dims: []int{3, 300, 300}},
		Output:          Binding{Name: "MarkOutput_0"},
		WorkspaceBytes:  1 << 28,
		MaxBatchSize:    1,
		FP16:            true,
		PluginLibraries: []string{"/opt/lib/libflattenconcat.so"},
	}

	want := []string{
		"--uff=model.uff",
		"--uffInput=Input,3,300,300",
		"--output=MarkOutput_0",
		"--workspace=256",
		"--maxBatch=1",
		"--fp16",
		"--plugins=/opt/lib/libflattenconcat.so",
		"--saveEngine=out.engine",
	}
	assert.Equal(t, want, Args("model.uff", "out.engine", cfg))

	cfg.FP16 = false
	assert.NotContains(t, Args("model.uff", "out.engine", cfg), "--fp16")
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	scratch := t.TempDir()

	runner := toolchaintest.NewRunner()
	runner.Handle("trtexec", func(args []string) error {
		c := toolchaintest.Call{Args: args}
		path, ok := c.Flag("saveEngine")
		if !ok {
			return os.ErrInvalid
		}
		return os.WriteFile(path, []byte("serialized"), 0o600)
	})

	b := &Builder{Tool: "trtexec", Runner: runner, ScratchDir: scratch}
	data, err := b.Build(context.Background(), "model.uff", cfg)
	require.NoError(t, err)
	assert.Equal(t, "serialized", string(data))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	uff, _ := calls[0].Flag("uff")
	assert.Equal(t, "model.uff", uff)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch engine is removed")
}

func TestBuildMissingPluginLibrary(t *testing.T) {
	cfg := testConfig(t)
	cfg.PluginLibraries = []string{filepath.Join(t.TempDir(), "missing.so")}

	runner := toolchaintest.NewRunner()
	b := &Builder{Tool: "trtexec", Runner: runner, ScratchDir: t.TempDir()}
	_, err := b.Build(context.Background(), "model.uff", cfg)

	assert.ErrorIs(t, err, ErrPluginLibrary)
	assert.Empty(t, runner.Calls(), "builder does not run without its plugins")
}

func TestBuildNoEngine(t *testing.T) {
	runner := toolchaintest.NewRunner()
	runner.Handle("trtexec", nil)

	b := &Builder{Tool: "trtexec", Runner: runner, ScratchDir: t.TempDir()}
	_, err := b.Build(context.Background(), "model.uff", testConfig(t))
	assert.ErrorIs(t, err, ErrEmptyEngine)
}

func TestConfigValidate(t *testing.T) {
	base := Config{
		Input:          Binding{Name: "Input", Dims: []int{3, 300, 300}},
		Output:         Binding{Name: "MarkOutput_0"},
		WorkspaceBytes: 1 << 28,
		MaxBatchSize:   1,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no input dims", func(c *Config) { c.Input.Dims = nil }},
		{"no output", func(c *Config) { c.Output.Name = "" }},
		{"tiny workspace", func(c *Config) { c.WorkspaceBytes = 1024 }},
		{"zero batch", func(c *Config) { c.MaxBatchSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
