// Package graphsurgeon provides frozen TensorFlow graph editing for buildengine.
//
// It exposes the GraphDef codec and the DynamicGraph editor used to rewrite
// SSD detectors for the inference runtime, so other tools can inspect or
// patch graphs the same way the converter does.
//
// # Example Usage
//
//	import "github.com/born-ml/buildengine/graphsurgeon"
//
//	dg, err := graphsurgeon.Load("ssd_mobilenet_v1_coco.pb")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Drop validation nodes and everything only they consume.
//	dg.Remove(dg.FindNodesByOp("Assert"), true)
//
//	// Bypass pass-through nodes.
//	dg.ForwardInputs(dg.FindNodesByOp("Identity"))
//
//	if err := graphsurgeon.WriteFile(dg.AsGraphDef(), "edited.pb"); err != nil {
//	    log.Fatal(err)
//	}
package graphsurgeon

import (
	"github.com/born-ml/buildengine/internal/graphdef"
	"github.com/born-ml/buildengine/internal/surgeon"
)

// GraphDef is a decoded frozen graph.
type GraphDef = graphdef.GraphDef

// NodeDef is a single graph operation.
type NodeDef = graphdef.NodeDef

// AttrValue is a node attribute.
type AttrValue = graphdef.AttrValue

// Summary contains basic information about a graph.
type Summary = graphdef.Summary

// DynamicGraph is an editable view over a GraphDef.
//
// Nodes found through it are stable pointers: they stay valid and editable
// across later removals and collapses.
type DynamicGraph = surgeon.DynamicGraph

// Attrs are node attributes given as plain Go values.
type Attrs = surgeon.Attrs

// Load parses a frozen graph file into a DynamicGraph.
func Load(path string) (*DynamicGraph, error) {
	return surgeon.Load(path)
}

// New wraps an already decoded graph. The graph is copied, not modified.
func New(g *GraphDef) *DynamicGraph {
	return surgeon.New(g)
}

// Parse decodes a serialized GraphDef.
func Parse(data []byte) (*GraphDef, error) {
	return graphdef.Parse(data)
}

// WriteFile serializes g to path. Identical graphs produce identical bytes.
func WriteFile(g *GraphDef, path string) error {
	return graphdef.WriteFile(g, path)
}

// Summarize extracts node counts, placeholders and outputs from a graph
// without editing it.
//
// Example:
//
//	g, _ := graphsurgeon.Parse(data)
//	s := graphsurgeon.Summarize(g)
//	fmt.Println("Nodes:", s.NodeCount)
//	fmt.Println("Inputs:", s.Placeholders)
//	fmt.Println("Outputs:", s.Outputs)
func Summarize(g *GraphDef) Summary {
	return graphdef.Summarize(g)
}

// CreatePluginNode builds a detached node for a runtime plugin operator,
// ready to be used as a CollapseNamespaces target.
func CreatePluginNode(name, op string, attrs Attrs) (*NodeDef, error) {
	return surgeon.CreatePluginNode(name, op, attrs)
}
