package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/buildengine/internal/cli"
	"github.com/born-ml/buildengine/internal/ssd/ssdtest"
	"github.com/born-ml/buildengine/internal/toolchain/toolchaintest"
)

func TestRun_UnknownModel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := toolchaintest.NewRunner()
	out := &bytes.Buffer{}

	err := run(context.Background(), env{
		out:     out,
		logs:    &bytes.Buffer{},
		args:    []string{"ssd_inception_v2_coco"},
		baseDir: dir,
		runner:  runner,
	})

	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Empty(t, runner.Calls())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written for an unknown model")
}

func TestRun_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), env{
		out:     out,
		logs:    &bytes.Buffer{},
		args:    []string{"-h"},
		baseDir: t.TempDir(),
		runner:  toolchaintest.NewRunner(),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_Converts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ssdtest.WriteGraph(t, ssdtest.V1Coco, filepath.Join(dir, "ssd_mobilenet_v1_coco.pb"))
	lib := filepath.Join(dir, "lib", "libflattenconcat.so")
	require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0o755))
	require.NoError(t, os.WriteFile(lib, []byte("elf"), 0o600))

	runner := toolchaintest.NewRunner()
	runner.Handle("convert-to-uff", func(args []string) error {
		return os.WriteFile(args[2], []byte("uff"), 0o600)
	})
	runner.Handle("trtexec", func(args []string) error {
		save, _ := toolchaintest.Call{Args: args}.Flag("saveEngine")
		return os.WriteFile(save, []byte("engine"), 0o600)
	})

	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}
	err := run(context.Background(), env{
		out:     out,
		logs:    logs,
		args:    []string{"ssd_mobilenet_v1_coco"},
		baseDir: dir,
		runner:  runner,
	})
	require.NoError(t, err)

	enginePath := filepath.Join(dir, "TRT_ssd_mobilenet_v1_coco.bin")
	data, err := os.ReadFile(enginePath)
	require.NoError(t, err)
	assert.Equal(t, "engine", string(data))
	assert.Contains(t, out.String(), enginePath)
	assert.Contains(t, logs.String(), "model=ssd_mobilenet_v1_coco")
}

func TestRun_MissingSource(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), env{
		out:     &bytes.Buffer{},
		logs:    &bytes.Buffer{},
		args:    []string{"ssd_mobilenet_v1_coco"},
		baseDir: t.TempDir(),
		runner:  toolchaintest.NewRunner(),
	})
	require.ErrorIs(t, err, os.ErrNotExist)

	var exitErr *cli.ExitError
	assert.False(t, errors.As(err, &exitErr), "runtime failures exit with status 1")
}
