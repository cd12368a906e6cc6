// Package pipeline turns a registered frozen SSD graph into a serialized
// inference engine: load, edit, export, build, write.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/buildengine/internal/ctxlog"
	"github.com/born-ml/buildengine/internal/engine"
	"github.com/born-ml/buildengine/internal/graphdef"
	"github.com/born-ml/buildengine/internal/registry"
	"github.com/born-ml/buildengine/internal/ssd"
	"github.com/born-ml/buildengine/internal/surgeon"
	"github.com/born-ml/buildengine/internal/toolchain"
	"github.com/born-ml/buildengine/internal/uff"
)

// Pipeline runs one conversion.
type Pipeline struct {
	Registry *registry.Registry
	Exporter *uff.Exporter
	Builder  *engine.Builder
}

// New wires a pipeline whose external tools run through runner.
func New(reg *registry.Registry, runner toolchain.Runner) *Pipeline {
	return &Pipeline{
		Registry: reg,
		Exporter: &uff.Exporter{
			Converter: reg.Toolchain.UFFConverter,
			Runner:    runner,
			Options:   uff.ProductionOptions(),
		},
		Builder: &engine.Builder{
			Tool:   reg.Toolchain.EngineBuilder,
			Runner: runner,
		},
	}
}

// Result summarises a finished conversion.
type Result struct {
	Model       string
	EnginePath  string
	EngineBytes int
	SourceNodes int
	EditedNodes int
	Duration    time.Duration
}

// Run converts the model registered under modelID.
func (p *Pipeline) Run(ctx context.Context, modelID string) (*Result, error) {
	start := time.Now()

	spec, err := p.Registry.Lookup(modelID)
	if err != nil {
		return nil, err
	}
	if err := spec.CheckSource(); err != nil {
		return nil, err
	}

	logger := ctxlog.FromContext(ctx).With("model", spec.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	dg, err := surgeon.Load(spec.InputPB)
	if err != nil {
		return nil, err
	}
	sourceNodes := dg.Len()
	logger.Info("Loaded source graph.", "path", spec.InputPB, "nodes", sourceNodes)

	dg, err = ssd.AddPlugins(ctx, dg, spec.Name, ssd.ParamsFor(spec))
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.Name, err)
	}
	edited := dg.AsGraphDef()
	summary := graphdef.Summarize(edited)
	logger.Info("Graph edited.", "nodes", summary.NodeCount, "outputs", summary.Outputs)

	if err := p.Exporter.Export(ctx, edited, []string{ssd.NMSName}, spec.TmpUFF); err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.Name, err)
	}

	data, err := p.Builder.Build(ctx, spec.TmpUFF, p.engineConfig())
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.Name, err)
	}

	if err := writeAtomic(spec.OutputBin, data); err != nil {
		return nil, fmt.Errorf("model %s: %w", spec.Name, err)
	}

	res := &Result{
		Model:       spec.Name,
		EnginePath:  spec.OutputBin,
		EngineBytes: len(data),
		SourceNodes: sourceNodes,
		EditedNodes: summary.NodeCount,
		Duration:    time.Since(start),
	}
	logger.Info("Engine written.", "path", res.EnginePath, "bytes", res.EngineBytes, "duration", res.Duration)
	return res, nil
}

func (p *Pipeline) engineConfig() engine.Config {
	b := p.Registry.Build
	return engine.Config{
		Input:           engine.Binding{Name: b.InputName, Dims: b.InputDims},
		Output:          engine.Binding{Name: b.OutputName},
		WorkspaceBytes:  b.WorkspaceBytes,
		MaxBatchSize:    b.MaxBatchSize,
		FP16:            b.FP16,
		PluginLibraries: []string{p.Registry.Toolchain.PluginLibrary},
	}
}

// writeAtomic replaces path with data so readers never see a partial file.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move engine into place: %w", err)
	}
	return nil
}
