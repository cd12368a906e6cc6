package uff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/buildengine/internal/graphdef"
	"github.com/born-ml/buildengine/internal/toolchain"
	"github.com/born-ml/buildengine/internal/toolchain/toolchaintest"
)

func testGraph() *graphdef.GraphDef {
	return &graphdef.GraphDef{Nodes: []graphdef.NodeDef{
		{Name: "Input", Op: "Placeholder"},
		{Name: "NMS", Op: "NMS_TRT", Inputs: []string{"Input"}},
	}}
}

func TestOptionsArgs(t *testing.T) {
	prod := ProductionOptions()
	prod.OutputNodes = []string{"NMS"}
	assert.Equal(t,
		[]string{"in.pb", "-o", "out.uff", "-O", "NMS", "-q", "-l", "-d"},
		prod.Args("in.pb", "out.uff"))

	dbg := DebugOptions()
	dbg.OutputNodes = []string{"NMS"}
	assert.Equal(t,
		[]string{"in.pb", "-o", "out.uff", "-O", "NMS", "-t", "-d"},
		dbg.Args("in.pb", "out.uff"))
}

func TestExport(t *testing.T) {
	scratch := t.TempDir()
	dest := filepath.Join(t.TempDir(), "nested", "tmp.uff")

	runner := toolchaintest.NewRunner()
	var staged *graphdef.GraphDef
	runner.Handle("convert-to-uff", func(args []string) error {
		var err error
		staged, err = graphdef.ParseFile(args[0])
		if err != nil {
			return err
		}
		return os.WriteFile(args[2], []byte("uff"), 0o600)
	})

	e := &Exporter{Converter: "convert-to-uff", Runner: runner, ScratchDir: scratch, Options: ProductionOptions()}
	require.NoError(t, e.Export(context.Background(), testGraph(), []string{"NMS"}, dest))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "convert-to-uff", calls[0].Tool)
	assert.Equal(t, []string{"-o", dest, "-O", "NMS", "-q", "-l", "-d"}, calls[0].Args[1:])
	assert.Equal(t, scratch, filepath.Dir(calls[0].Args[0]))

	require.NotNil(t, staged)
	assert.Len(t, staged.Nodes, 2)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged graph is removed")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "uff", string(data))
}

func TestExportNoOutput(t *testing.T) {
	runner := toolchaintest.NewRunner()
	runner.Handle("convert-to-uff", nil)

	e := &Exporter{Converter: "convert-to-uff", Runner: runner, ScratchDir: t.TempDir()}
	err := e.Export(context.Background(), testGraph(), []string{"NMS"}, filepath.Join(t.TempDir(), "out.uff"))
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestExportIgnoresStaleOutput(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.uff")
	require.NoError(t, os.WriteFile(dest, []byte("uff from last run"), 0o600))

	runner := toolchaintest.NewRunner()
	runner.Handle("convert-to-uff", nil)

	e := &Exporter{Converter: "convert-to-uff", Runner: runner, ScratchDir: t.TempDir()}
	err := e.Export(context.Background(), testGraph(), []string{"NMS"}, dest)
	assert.ErrorIs(t, err, ErrEmptyOutput)

	_, statErr := os.Stat(dest)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestExportEmptyOutput(t *testing.T) {
	runner := toolchaintest.NewRunner()
	runner.Handle("convert-to-uff", func(args []string) error {
		return os.WriteFile(args[2], nil, 0o600)
	})

	e := &Exporter{Converter: "convert-to-uff", Runner: runner, ScratchDir: t.TempDir()}
	err := e.Export(context.Background(), testGraph(), []string{"NMS"}, filepath.Join(t.TempDir(), "out.uff"))
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestExportConverterFailure(t *testing.T) {
	scratch := t.TempDir()
	runner := toolchaintest.NewRunner()
	runner.Handle("convert-to-uff", func([]string) error {
		return &toolchain.ExitError{Tool: "convert-to-uff", Code: 1, Tail: []string{"unsupported op"}}
	})

	e := &Exporter{Converter: "convert-to-uff", Runner: runner, ScratchDir: scratch}
	err := e.Export(context.Background(), testGraph(), []string{"NMS"}, filepath.Join(t.TempDir(), "out.uff"))

	var exitErr *toolchain.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged graph is removed on failure")
}
