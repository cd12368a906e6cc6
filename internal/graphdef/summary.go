package graphdef

import "sort"

// Summary contains basic information about a graph.
type Summary struct {
	Producer     int32
	NodeCount    int
	OpCounts     map[string]int
	Placeholders []string // Nodes with op Placeholder
	Outputs      []string // Nodes no other node consumes
}

// Summarize extracts basic info from a graph.
func Summarize(g *GraphDef) Summary {
	s := Summary{
		NodeCount: len(g.Nodes),
		OpCounts:  make(map[string]int),
	}
	if g.Versions != nil {
		s.Producer = g.Versions.Producer
	}

	consumed := make(map[string]bool)
	for i := range g.Nodes {
		for _, in := range g.Nodes[i].Inputs {
			consumed[InputNode(in)] = true
		}
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		s.OpCounts[n.Op]++
		if n.Op == "Placeholder" {
			s.Placeholders = append(s.Placeholders, n.Name)
		}
		if !consumed[n.Name] {
			s.Outputs = append(s.Outputs, n.Name)
		}
	}
	return s
}

// Ops returns the distinct operations in the summary, sorted.
func (s Summary) Ops() []string {
	ops := make([]string, 0, len(s.OpCounts))
	for op := range s.OpCounts {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
