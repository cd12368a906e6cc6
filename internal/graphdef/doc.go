// Package graphdef reads and writes frozen TensorFlow graphs (GraphDef protobufs).
//
// The package models just enough of the TensorFlow protobuf schema to edit a
// frozen inference graph: nodes, their inputs and attributes. Payloads that
// are never edited (constant tensors, function libraries, unknown node fields)
// are carried as raw protobuf bytes so that weights survive a read/write
// cycle byte-for-byte.
//
// Key components:
//   - GraphDef: top-level graph with nodes, version info and an opaque function library
//   - NodeDef: single operation (name, op, inputs, device, attributes)
//   - AttrValue: attribute value (string, int, float, bool, type, shape, tensor, list, ...)
//   - TensorShape: attribute shape with optional unknown rank
//
// Encoding is deterministic: attribute maps are written in sorted key order,
// so identical graphs always serialize to identical bytes.
//
// Example usage:
//
//	graph, err := graphdef.ParseFile("frozen_inference_graph.pb")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	summary := graphdef.Summarize(graph)
//	fmt.Printf("%d nodes, outputs %v\n", summary.NodeCount, summary.Outputs)
//
//	if err := graphdef.WriteFile(graph, "edited.pb"); err != nil {
//	    log.Fatal(err)
//	}
package graphdef
