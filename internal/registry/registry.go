// Package registry holds the static table of convertible models and the
// toolchain settings shared by every build.
//
// The table is an HCL document embedded in the binary. Paths in it are
// templates over ${base_dir}, the directory holding the executable, so every
// artefact lives at a fixed location relative to the program.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

//go:embed models.hcl
var embedded []byte

// ErrUnknownModel is returned by Lookup for identifiers not in the table.
var ErrUnknownModel = errors.New("unknown model")

// ModelSpec describes one convertible model.
type ModelSpec struct {
	Name       string
	InputPB    string  // frozen source graph
	TmpUFF     string  // intermediate exchange file
	OutputBin  string  // serialized engine
	NumClasses int     // classes including background
	MinSize    float32 // smallest anchor scale
	MaxSize    float32 // largest anchor scale
	InputOrder []int   // NMS input positions of loc_data, conf_data, priorbox_data
}

// CheckSource verifies the source graph exists and is a regular file.
func (s ModelSpec) CheckSource() error {
	info, err := os.Stat(s.InputPB)
	if err != nil {
		return fmt.Errorf("model %s: source graph: %w", s.Name, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("model %s: source graph %s is not a regular file", s.Name, s.InputPB)
	}
	return nil
}

// Toolchain locates the external converter, builder and plugin library.
type Toolchain struct {
	PluginLibrary string `hcl:"plugin_library"`
	UFFConverter  string `hcl:"uff_converter"`
	EngineBuilder string `hcl:"engine_builder"`
}

// Build holds the engine build settings.
type Build struct {
	InputName      string `hcl:"input_name"`
	InputDims      []int  `hcl:"input_dims"`
	OutputName     string `hcl:"output_name"`
	WorkspaceBytes int64  `hcl:"workspace_bytes"`
	MaxBatchSize   int    `hcl:"max_batch_size"`
	FP16           bool   `hcl:"fp16"`
}

// Registry is the loaded model table.
type Registry struct {
	Toolchain Toolchain
	Build     Build

	models map[string]ModelSpec
	names  []string
}

// hclFile is the top-level structure of the registry document.
type hclFile struct {
	Toolchain Toolchain   `hcl:"toolchain,block"`
	Build     Build       `hcl:"build,block"`
	Models    []*hclModel `hcl:"model,block"`
}

type hclModel struct {
	Name       string  `hcl:"name,label"`
	InputPB    string  `hcl:"input_pb"`
	TmpUFF     string  `hcl:"tmp_uff"`
	OutputBin  string  `hcl:"output_bin"`
	NumClasses int     `hcl:"num_classes"`
	MinSize    float64 `hcl:"min_size"`
	MaxSize    float64 `hcl:"max_size"`
	InputOrder []int   `hcl:"input_order"`
}

// Load decodes the embedded registry with paths rooted at baseDir.
func Load(baseDir string) (*Registry, error) {
	return Parse(embedded, "models.hcl", baseDir)
}

// Parse decodes a registry document with paths rooted at baseDir.
func Parse(src []byte, filename, baseDir string) (*Registry, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse registry %s: %w", filename, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"base_dir": cty.StringVal(baseDir),
		},
	}

	var parsed hclFile
	diags = gohcl.DecodeBody(file.Body, evalCtx, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode registry %s: %w", filename, diags)
	}

	r := &Registry{
		Toolchain: parsed.Toolchain,
		Build:     parsed.Build,
		models:    make(map[string]ModelSpec, len(parsed.Models)),
	}
	for _, m := range parsed.Models {
		if _, dup := r.models[m.Name]; dup {
			return nil, fmt.Errorf("registry %s: duplicate model %q", filename, m.Name)
		}
		r.models[m.Name] = ModelSpec{
			Name:       m.Name,
			InputPB:    m.InputPB,
			TmpUFF:     m.TmpUFF,
			OutputBin:  m.OutputBin,
			NumClasses: m.NumClasses,
			MinSize:    float32(m.MinSize),
			MaxSize:    float32(m.MaxSize),
			InputOrder: m.InputOrder,
		}
		r.names = append(r.names, m.Name)
	}

	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("registry %s: %w", filename, err)
	}
	return r, nil
}

// Lookup returns the spec registered under id.
func (r *Registry) Lookup(id string) (ModelSpec, error) {
	spec, ok := r.models[id]
	if !ok {
		return ModelSpec{}, fmt.Errorf("%w %q (choose from %s)", ErrUnknownModel, id, strings.Join(r.names, ", "))
	}
	return spec, nil
}

// Names returns the registered identifiers in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) validate() error {
	var problems []string
	if len(r.models) == 0 {
		problems = append(problems, "no models declared")
	}
	for _, name := range r.names {
		m := r.models[name]
		if m.NumClasses <= 0 {
			problems = append(problems, fmt.Sprintf("%s: num_classes must be positive", name))
		}
		if !(m.MinSize > 0 && m.MinSize < m.MaxSize && m.MaxSize <= 1) {
			problems = append(problems, fmt.Sprintf("%s: need 0 < min_size < max_size <= 1", name))
		}
		if !isPermutation(m.InputOrder, 3) {
			problems = append(problems, fmt.Sprintf("%s: input_order must order loc, conf and priorbox (a permutation of 0,1,2)", name))
		}
	}
	if len(r.Build.InputDims) != 3 {
		problems = append(problems, "build: input_dims must be channels, height, width")
	}
	if r.Build.WorkspaceBytes <= 0 || r.Build.MaxBatchSize <= 0 {
		problems = append(problems, "build: workspace_bytes and max_batch_size must be positive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range order {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
