// Package ssdtest builds miniature frozen SSD graphs for tests.
//
// The graphs keep the namespace layout of a TensorFlow object-detection
// export (preprocessing, feature extractor, box predictors, anchor
// generator, post-processing, output heads) with one or two nodes per
// namespace, which is all the graph editor looks at.
package ssdtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/buildengine/internal/graphdef"
)

// Layout selects which export layout to mimic.
type Layout int

const (
	// V1Coco nests the anchor concatenation under MultipleGridAnchorGenerator
	// and feeds the post-processor loc, priorbox, conf (input order 0, 2, 1).
	V1Coco Layout = iota
	// Faces keeps the anchor concatenation top level and feeds the
	// post-processor conf, loc, priorbox (input order 1, 0, 2).
	Faces
)

// InputOrder returns the NMS input order the layout produces.
func (l Layout) InputOrder() []int {
	if l == Faces {
		return []int{1, 0, 2}
	}
	return []int{0, 2, 1}
}

func node(name, op string, inputs ...string) graphdef.NodeDef {
	return graphdef.NodeDef{Name: name, Op: op, Inputs: inputs}
}

func constant(name string) graphdef.NodeDef {
	n := node(name, "Const")
	n.SetAttr("dtype", graphdef.TypeAttr(graphdef.DTFloat))
	n.SetAttr("value", graphdef.AttrValue{Kind: graphdef.AttrTensor, Tensor: []byte{0x08, 0x01}})
	return n
}

// Graph returns a miniature frozen SSD graph.
func Graph(layout Layout) *graphdef.GraphDef {
	anchorConcat := "MultipleGridAnchorGenerator/Concatenate/concat"
	if layout == Faces {
		anchorConcat = "Concatenate/concat"
	}

	image := node("image_tensor", "Placeholder")
	image.SetAttr("dtype", graphdef.TypeAttr(graphdef.DTUint8))

	nodes := []graphdef.NodeDef{
		image,
		node("ToFloat", "Cast", "image_tensor:0"),
		constant("Preprocessor/sub/y"),
		node("Preprocessor/sub", "Sub", "ToFloat", "Preprocessor/sub/y"),
		node("Preprocessor/mul", "Mul", "Preprocessor/sub"),

		// Shape check that only guards the post-processor.
		constant("Assert/data_0"),
		node("Assert/Equal", "Equal", "Preprocessor/mul", "Assert/data_0"),
		node("Assert/Assert", "Assert", "Assert/Equal", "Assert/data_0"),

		constant("FeatureExtractor/w0"),
		node("FeatureExtractor/conv0", "Conv2D", "Preprocessor/mul", "FeatureExtractor/w0"),
		node("FeatureExtractor/relu", "Relu6", "FeatureExtractor/conv0"),
		node("FeatureExtractor/Identity", "Identity", "FeatureExtractor/relu"),

		constant("BoxPredictor_0/w"),
		node("BoxPredictor_0/BoxEncodingPredictor", "Conv2D", "FeatureExtractor/relu", "BoxPredictor_0/w"),
		node("BoxPredictor_0/Reshape", "Reshape", "BoxPredictor_0/BoxEncodingPredictor"),
		node("BoxPredictor_0/ClassPredictor", "Conv2D", "FeatureExtractor/relu", "BoxPredictor_0/w"),
		node("BoxPredictor_0/Reshape_1", "Reshape", "BoxPredictor_0/ClassPredictor"),
		node("BoxPredictor_1/BoxEncodingPredictor", "Conv2D", "FeatureExtractor/Identity", "BoxPredictor_0/w"),
		node("BoxPredictor_1/Reshape", "Reshape", "BoxPredictor_1/BoxEncodingPredictor"),
		node("BoxPredictor_1/ClassPredictor", "Conv2D", "FeatureExtractor/Identity", "BoxPredictor_0/w"),
		node("BoxPredictor_1/Reshape_1", "Reshape", "BoxPredictor_1/ClassPredictor"),

		constant("concat/axis"),
		node("concat", "ConcatV2", "BoxPredictor_0/Reshape", "BoxPredictor_1/Reshape", "concat/axis"),
		constant("concat_1/axis"),
		node("concat_1", "ConcatV2", "BoxPredictor_0/Reshape_1", "BoxPredictor_1/Reshape_1", "concat_1/axis"),

		node("MultipleGridAnchorGenerator/Shape", "Shape", "Preprocessor/mul"),
		constant("MultipleGridAnchorGenerator/Const"),
		node("MultipleGridAnchorGenerator/GridAnchor/mul", "Mul", "MultipleGridAnchorGenerator/Const", "MultipleGridAnchorGenerator/Shape"),
		node("MultipleGridAnchorGenerator/GridAnchor_1/mul", "Mul", "MultipleGridAnchorGenerator/Const"),
		node(anchorConcat, "ConcatV2", "MultipleGridAnchorGenerator/GridAnchor/mul", "MultipleGridAnchorGenerator/GridAnchor_1/mul"),
	}

	loc := node("Postprocessor/Reshape", "Reshape", "concat", "^Assert/Assert")
	prior := node("Postprocessor/Tile", "Tile", anchorConcat)
	shape := node("Postprocessor/Shape", "Shape", "Preprocessor/mul")
	conf := node("Postprocessor/convert_scores", "Sigmoid", "concat_1")
	if layout == Faces {
		nodes = append(nodes, conf, loc, prior, shape)
	} else {
		nodes = append(nodes, loc, prior, shape, conf)
	}

	nodes = append(nodes,
		node("Postprocessor/BatchMultiClassNonMaxSuppression/boxes", "Pack",
			"Postprocessor/Reshape", "Postprocessor/Tile", "Postprocessor/convert_scores", "Postprocessor/Shape"),
		node("Postprocessor/BatchMultiClassNonMaxSuppression/classes", "Pack",
			"Postprocessor/BatchMultiClassNonMaxSuppression/boxes:1"),
		node("detection_boxes", "Identity", "Postprocessor/BatchMultiClassNonMaxSuppression/boxes"),
		node("num_detections", "Identity", "Postprocessor/BatchMultiClassNonMaxSuppression/boxes:3"),
		constant("add/y"),
		node("add", "Add", "Postprocessor/BatchMultiClassNonMaxSuppression/classes", "add/y"),
	)

	return &graphdef.GraphDef{
		Nodes:    nodes,
		Versions: &graphdef.VersionDef{Producer: 26},
	}
}

// WriteGraph writes Graph(layout) to path, creating parent directories.
func WriteGraph(t testing.TB, layout Layout, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := graphdef.WriteFile(Graph(layout), path); err != nil {
		t.Fatalf("write graph: %v", err)
	}
}
