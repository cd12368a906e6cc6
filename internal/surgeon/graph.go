// Package surgeon edits frozen TensorFlow graphs in place.
//
// A DynamicGraph wraps the nodes of a graphdef.GraphDef behind stable
// pointers, so a node found once stays valid (and editable) across later
// removals and collapses. Edits never reorder surviving nodes.
package surgeon

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/buildengine/internal/graphdef"
)

// ErrNodeNotFound is returned when a node that must exist is absent.
var ErrNodeNotFound = errors.New("node not found")

// DynamicGraph is an editable view over a GraphDef.
type DynamicGraph struct {
	nodes  []*graphdef.NodeDef
	header graphdef.GraphDef // everything but the nodes
}

// New wraps the nodes of g. The nodes are copied; g is not modified.
func New(g *graphdef.GraphDef) *DynamicGraph {
	dg := &DynamicGraph{
		nodes:  make([]*graphdef.NodeDef, len(g.Nodes)),
		header: *g,
	}
	dg.header.Nodes = nil
	for i := range g.Nodes {
		n := g.Nodes[i].Clone()
		dg.nodes[i] = &n
	}
	return dg
}

// Load parses a frozen graph file into a DynamicGraph.
func Load(path string) (*DynamicGraph, error) {
	g, err := graphdef.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", path, err)
	}
	return New(g), nil
}

// AsGraphDef returns the current graph as a GraphDef.
func (dg *DynamicGraph) AsGraphDef() *graphdef.GraphDef {
	g := dg.header
	g.Nodes = make([]graphdef.NodeDef, len(dg.nodes))
	for i, n := range dg.nodes {
		g.Nodes[i] = n.Clone()
	}
	return &g
}

// Nodes returns the nodes in graph order.
func (dg *DynamicGraph) Nodes() []*graphdef.NodeDef {
	return append([]*graphdef.NodeDef(nil), dg.nodes...)
}

// Len returns the number of nodes.
func (dg *DynamicGraph) Len() int {
	return len(dg.nodes)
}

// Append adds nodes at the end of the graph.
func (dg *DynamicGraph) Append(nodes ...*graphdef.NodeDef) {
	dg.nodes = append(dg.nodes, nodes...)
}

// Node returns the node with the given name.
func (dg *DynamicGraph) Node(name string) (*graphdef.NodeDef, error) {
	for _, n := range dg.nodes {
		if n.Name == name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
}

// FindNodesByOp returns all nodes with the given op.
func (dg *DynamicGraph) FindNodesByOp(op string) []*graphdef.NodeDef {
	var out []*graphdef.NodeDef
	for _, n := range dg.nodes {
		if n.Op == op {
			out = append(out, n)
		}
	}
	return out
}

// FindNodesByName returns all nodes with the given name.
func (dg *DynamicGraph) FindNodesByName(name string) []*graphdef.NodeDef {
	var out []*graphdef.NodeDef
	for _, n := range dg.nodes {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

// FindNodesByNamespace returns the nodes named ns or nested under ns/.
func (dg *DynamicGraph) FindNodesByNamespace(ns string) []*graphdef.NodeDef {
	var out []*graphdef.NodeDef
	for _, n := range dg.nodes {
		if inNamespace(n.Name, ns) {
			out = append(out, n)
		}
	}
	return out
}

// GraphOutputs returns the nodes no other node consumes.
func (dg *DynamicGraph) GraphOutputs() []*graphdef.NodeDef {
	consumed := dg.consumers()
	var out []*graphdef.NodeDef
	for _, n := range dg.nodes {
		if len(consumed[n.Name]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// consumers maps each node name to the names of the nodes reading it.
func (dg *DynamicGraph) consumers() map[string][]string {
	out := make(map[string][]string)
	for _, n := range dg.nodes {
		for _, in := range n.Inputs {
			producer := graphdef.InputNode(in)
			out[producer] = append(out[producer], n.Name)
		}
	}
	return out
}

// Remove deletes nodes from the graph and strips every reference to them
// from the remaining inputs. With removeExclusiveDependencies, producers
// whose consumers are all being removed are removed too, transitively.
func (dg *DynamicGraph) Remove(nodes []*graphdef.NodeDef, removeExclusiveDependencies bool) {
	if len(nodes) == 0 {
		return
	}

	doomed := make(map[string]bool, len(nodes))
	queue := make([]*graphdef.NodeDef, 0, len(nodes))
	for _, n := range nodes {
		if !doomed[n.Name] {
			doomed[n.Name] = true
			queue = append(queue, n)
		}
	}

	if removeExclusiveDependencies {
		byName := dg.byName()
		consumers := dg.consumers()
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			for _, in := range n.Inputs {
				producer := graphdef.InputNode(in)
				if doomed[producer] {
					continue
				}
				p, ok := byName[producer]
				if !ok || !allIn(consumers[producer], doomed) {
					continue
				}
				doomed[producer] = true
				queue = append(queue, p)
			}
		}
	}

	kept := dg.nodes[:0]
	for _, n := range dg.nodes {
		if !doomed[n.Name] {
			kept = append(kept, n)
		}
	}
	dg.nodes = kept

	for _, n := range dg.nodes {
		inputs := n.Inputs[:0]
		for _, in := range n.Inputs {
			if !doomed[graphdef.InputNode(in)] {
				inputs = append(inputs, in)
			}
		}
		n.Inputs = inputs
	}
}

// ForwardInputs removes pass-through nodes, splicing each node's inputs into
// the input lists of its consumers in place of the reference to it.
// Control references stay control references.
func (dg *DynamicGraph) ForwardInputs(nodes []*graphdef.NodeDef) {
	for _, f := range nodes {
		for _, n := range dg.nodes {
			if n == f {
				continue
			}
			n.Inputs = forward(n.Inputs, f)
		}
		dg.drop(f)
	}
}

func forward(inputs []string, f *graphdef.NodeDef) []string {
	var out []string
	changed := false
	for _, in := range inputs {
		name, _, control := graphdef.ParseInput(in)
		if name != f.Name {
			out = append(out, in)
			continue
		}
		changed = true
		for _, fin := range f.Inputs {
			if control {
				out = appendUnique(out, graphdef.FormatInput(graphdef.InputNode(fin), 0, true))
				continue
			}
			out = append(out, fin)
		}
	}
	if !changed {
		return inputs
	}
	return out
}

// CollapseNamespaces replaces every namespace in m with its node.
//
// Each graph node belongs to the longest namespace key that matches it.
// All members of one replacement node are dropped and the replacement is
// inserted where its first member was. Its inputs become the members'
// inputs from outside the group, renamed and deduplicated; consumers of any
// member now read the replacement. Keys with no members are skipped.
//
//nolint:gocognit // Membership, input collection and rewiring in one pass.
func (dg *DynamicGraph) CollapseNamespaces(m map[string]*graphdef.NodeDef) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	memberOf := make(map[string]*graphdef.NodeDef)
	for _, n := range dg.nodes {
		for _, k := range keys {
			if inNamespace(n.Name, k) {
				memberOf[n.Name] = m[k]
				break
			}
		}
	}
	if len(memberOf) == 0 {
		return
	}

	rename := func(in string) string {
		name, _, control := graphdef.ParseInput(in)
		if target, ok := memberOf[name]; ok {
			return graphdef.FormatInput(target.Name, 0, control)
		}
		return in
	}

	emitted := make(map[*graphdef.NodeDef]bool)
	out := make([]*graphdef.NodeDef, 0, len(dg.nodes))
	for _, n := range dg.nodes {
		target, member := memberOf[n.Name]
		if !member {
			for i, in := range n.Inputs {
				n.Inputs[i] = rename(in)
			}
			out = append(out, n)
			continue
		}

		if !emitted[target] {
			emitted[target] = true
			out = append(out, target)
		}
		for _, in := range n.Inputs {
			if memberOf[graphdef.InputNode(in)] == target {
				continue
			}
			renamed := rename(in)
			if graphdef.InputNode(renamed) == target.Name {
				continue
			}
			target.Inputs = appendUnique(target.Inputs, renamed)
		}
	}
	dg.nodes = out
}

func (dg *DynamicGraph) drop(target *graphdef.NodeDef) {
	for i, n := range dg.nodes {
		if n == target {
			dg.nodes = append(dg.nodes[:i], dg.nodes[i+1:]...)
			return
		}
	}
}

func (dg *DynamicGraph) byName() map[string]*graphdef.NodeDef {
	out := make(map[string]*graphdef.NodeDef, len(dg.nodes))
	for _, n := range dg.nodes {
		out[n.Name] = n
	}
	return out
}

func inNamespace(name, ns string) bool {
	return name == ns || strings.HasPrefix(name, ns+"/")
}

func allIn(names []string, set map[string]bool) bool {
	for _, n := range names {
		if !set[n] {
			return false
		}
	}
	return true
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}
