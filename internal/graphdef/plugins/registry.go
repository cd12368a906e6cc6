package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/buildengine/internal/graphdef"
)

// Spec describes one plugin operator.
type Spec struct {
	Op       string
	Required []string // attributes the native implementation reads
}

// Registry maps plugin op names to their specs.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry creates a registry with all built-in plugin operators.
func NewRegistry() *Registry {
	r := &Registry{
		specs: make(map[string]Spec),
	}

	r.Register(Spec{
		Op: "GridAnchor_TRT",
		Required: []string{
			"minSize", "maxSize", "aspectRatios", "variance", "featureMapShapes", "numLayers",
		},
	})
	r.Register(Spec{
		Op: "NMS_TRT",
		Required: []string{
			"shareLocation", "varianceEncodedInTarget", "backgroundLabelId", "confidenceThreshold",
			"nmsThreshold", "topK", "keepTopK", "numClasses", "inputOrder", "confSigmoid", "isNormalized",
		},
	})
	r.Register(Spec{Op: "FlattenConcat_TRT"})

	return r
}

// Register adds or replaces a plugin operator.
func (r *Registry) Register(spec Spec) {
	r.specs[spec.Op] = spec
}

// Get returns the spec for an op.
func (r *Registry) Get(op string) (Spec, bool) {
	s, ok := r.specs[op]
	return s, ok
}

// IsPlugin reports whether op is a registered plugin operator.
func (r *Registry) IsPlugin(op string) bool {
	_, ok := r.specs[op]
	return ok
}

// Ops returns all registered plugin ops, sorted.
func (r *Registry) Ops() []string {
	ops := make([]string, 0, len(r.specs))
	for op := range r.specs {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Validate checks that every plugin node in the graph carries the
// attributes its operator requires.
func (r *Registry) Validate(g *graphdef.GraphDef) error {
	var problems []string
	for i := range g.Nodes {
		node := &g.Nodes[i]
		spec, ok := r.specs[node.Op]
		if !ok {
			continue
		}
		for _, attr := range spec.Required {
			if _, ok := node.Attr(attr); !ok {
				problems = append(problems, fmt.Sprintf("%s (%s): missing %s", node.Name, node.Op, attr))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid plugin nodes: %s", strings.Join(problems, "; "))
	}
	return nil
}
