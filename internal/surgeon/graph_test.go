package surgeon

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/buildengine/internal/graphdef"
)

func node(name, op string, inputs ...string) graphdef.NodeDef {
	return graphdef.NodeDef{Name: name, Op: op, Inputs: inputs}
}

func names(nodes []*graphdef.NodeDef) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func inputsOf(t *testing.T, dg *DynamicGraph, name string) []string {
	t.Helper()
	n, err := dg.Node(name)
	require.NoError(t, err)
	return n.Inputs
}

func TestFindNodes(t *testing.T) {
	dg := New(&graphdef.GraphDef{Nodes: []graphdef.NodeDef{
		node("Preprocessor/sub", "Sub"),
		node("Preprocessor/mul", "Mul", "Preprocessor/sub"),
		node("PreprocessorX", "Const"),
		node("Assert/Assert", "Assert"),
	}})

	assert.Equal(t, []string{"Assert/Assert"}, names(dg.FindNodesByOp("Assert")))
	assert.Equal(t, []string{"Preprocessor/sub", "Preprocessor/mul"}, names(dg.FindNodesByNamespace("Preprocessor")))
	assert.Equal(t, []string{"PreprocessorX"}, names(dg.FindNodesByName("PreprocessorX")))

	_, err := dg.Node("missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNewDoesNotAliasGraphDef(t *testing.T) {
	g := &graphdef.GraphDef{Nodes: []graphdef.NodeDef{node("a", "Relu", "b")}}
	dg := New(g)

	n, err := dg.Node("a")
	require.NoError(t, err)
	n.Inputs[0] = "changed"

	assert.Equal(t, "b", g.Nodes[0].Inputs[0])
}

func TestRemoveWithExclusiveDependencies(t *testing.T) {
	dg := New(&graphdef.GraphDef{Nodes: []graphdef.NodeDef{
		node("x", "Placeholder"),
		node("shared", "Const"),
		node("Assert/data", "Const"),
		node("Assert/Equal", "Equal", "x", "shared"),
		node("Assert/Assert", "Assert", "Assert/Equal", "Assert/data"),
		node("y", "Relu", "x", "shared", "^Assert/Assert"),
	}})

	dg.Remove(dg.FindNodesByOp("Assert"), true)

	assert.Equal(t, []string{"x", "shared", "y"}, names(dg.Nodes()))
	assert.Equal(t, []string{"x", "shared"}, inputsOf(t, dg, "y"), "control edge to removed node is stripped")
}

func TestRemoveWithoutExclusiveDependencies(t *testing.T) {
	dg := New(&graphdef.GraphDef{Nodes: []graphdef.NodeDef{
		node("c", "Const"),
		node("a", "Add", "c"),
	}})

	dg.Remove(dg.FindNodesByName("a"), false)

	assert.Equal(t, []string{"c"}, names(dg.Nodes()))
}

func TestRemoveEmpty(t *testing.T) {
	dg := New(&graphdef.GraphDef{Nodes: []graphdef.NodeDef{node("a", "Const")}})
	dg.Remove(nil, true)
	assert.Equal(t, 1, dg.Len())
}

func TestForwardInputs(t *testing.T) {
	dg := New(&graphdef.GraphDef{Nodes: []graphdef.NodeDef{
		node("a", "Const"),
		node("ctrl", "NoOp"),
		node("id1", "Identity", "a:1", "^ctrl"),
		node("id2", "Identity", "id1"),
		node("b", "Relu", "id2"),
		node("c", "Relu", "^id1"),
	}})

	dg.ForwardInputs(dg.FindNodesByOp("Identity"))

	assert.Equal(t, []string{"a", "ctrl", "b", "c"}, names(dg.Nodes()))
	assert.Equal(t, []string{"a:1", "^ctrl"}, inputsOf(t, dg, "b"))
	assert.Equal(t, []string{"^a", "^ctrl"}, inputsOf(t, dg, "c"))
}

func TestCollapseNamespaces(t *testing.T) {
	dg := New(&graphdef.GraphDef{Nodes: []graphdef.NodeDef{
		node("image_tensor", "Placeholder"),
		node("Preprocessor/ToFloat", "Cast", "image_tensor:0"),
		node("Preprocessor/sub", "Sub", "Preprocessor/ToFloat"),
		node("Anchors/grid", "Range", "Preprocessor/sub"),
		node("Anchors/Concatenate/concat", "ConcatV2", "Anchors/grid", "Anchors/grid:1"),
		node("conv", "Conv2D", "Preprocessor/sub"),
		node("Post/decode", "Mul", "conv:1", "Anchors/Concatenate/concat", "conv"),
		node("Post/out", "Identity", "Post/decode", "Preprocessor/sub:2"),
		node("add", "Add", "Post/out:0"),
	}})

	input, err := CreatePluginNode("Input", "Placeholder", Attrs{"shape": []int{1, 3, 300, 300}})
	require.NoError(t, err)
	anchor, err := CreatePluginNode("Grid", "GridAnchor_TRT", nil)
	require.NoError(t, err)
	concat, err := CreateNode("concat_priorbox", "ConcatV2", Attrs{"axis": 2})
	require.NoError(t, err)
	post, err := CreatePluginNode("NMS", "NMS_TRT", nil)
	require.NoError(t, err)
	unused, err := CreatePluginNode("Unused", "FlattenConcat_TRT", nil)
	require.NoError(t, err)

	dg.CollapseNamespaces(map[string]*graphdef.NodeDef{
		"image_tensor":        input,
		"Preprocessor":        input,
		"Anchors":             anchor,
		"Anchors/Concatenate": concat,
		"Post":                post,
		"Missing/Namespace":   unused,
	})

	want := []string{"Input", "Grid", "concat_priorbox", "conv", "NMS", "add"}
	assert.Equal(t, want, names(dg.Nodes()))

	assert.Empty(t, input.Inputs, "inputs from the same group are internal")
	assert.Equal(t, []string{"Input"}, anchor.Inputs)
	assert.Equal(t, []string{"Grid"}, concat.Inputs, "nested namespace wins and inputs are deduplicated")
	assert.Equal(t, []string{"Input"}, inputsOf(t, dg, "conv"))
	if diff := cmp.Diff([]string{"conv:1", "concat_priorbox", "conv", "Input"}, post.Inputs); diff != "" {
		t.Errorf("NMS inputs mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"NMS"}, inputsOf(t, dg, "add"))

	n, err := dg.Node("NMS")
	require.NoError(t, err)
	assert.Same(t, post, n, "collapse inserts the given node, not a copy")
}

func TestGraphOutputs(t *testing.T) {
	dg := New(&graphdef.GraphDef{Nodes: []graphdef.NodeDef{
		node("a", "Const"),
		node("b", "Relu", "a"),
		node("c", "Relu", "a"),
		node("d", "Add", "b"),
	}})

	assert.Equal(t, []string{"c", "d"}, names(dg.GraphOutputs()))
}

func TestCreatePluginNodeAttrs(t *testing.T) {
	n, err := CreatePluginNode("Input", "Placeholder", Attrs{"shape": []int{1, 3, 300, 300}})
	require.NoError(t, err)

	shape, ok := n.Attr("shape")
	require.True(t, ok)
	assert.Equal(t, graphdef.AttrShape, shape.Kind)
	assert.Equal(t, []int64{1, 3, 300, 300}, shape.Shape.Sizes())

	dtype, ok := n.Attr("dtype")
	require.True(t, ok)
	assert.Equal(t, graphdef.DTFloat, dtype.Type)

	_, err = CreateNode("bad", "Op", Attrs{"x": map[string]int{}})
	assert.ErrorIs(t, err, graphdef.ErrUnsupportedAttr)
}

func TestAsGraphDefAndLoad(t *testing.T) {
	dg := New(&graphdef.GraphDef{
		Nodes:    []graphdef.NodeDef{node("a", "Const"), node("b", "Relu", "a")},
		Versions: &graphdef.VersionDef{Producer: 26},
	})
	dg.Remove(dg.FindNodesByName("b"), false)

	path := filepath.Join(t.TempDir(), "g.pb")
	require.NoError(t, graphdef.WriteFile(dg.AsGraphDef(), path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names(loaded.Nodes()))
	assert.Equal(t, int32(26), loaded.AsGraphDef().Versions.Producer)

	_, err = Load(filepath.Join(t.TempDir(), "missing.pb"))
	assert.Error(t, err)
}

func TestAsGraphDefKeepsUnknownGraphFields(t *testing.T) {
	var node []byte
	node = protowire.AppendTag(node, 1, protowire.BytesType)
	node = protowire.AppendString(node, "a")
	node = protowire.AppendTag(node, 2, protowire.BytesType)
	node = protowire.AppendString(node, "Const")

	var debugInfo []byte
	debugInfo = protowire.AppendTag(debugInfo, 5, protowire.BytesType)
	debugInfo = protowire.AppendBytes(debugInfo, []byte{0x0a, 0x01, 'x'})

	data := protowire.AppendTag(nil, 1, protowire.BytesType)
	data = protowire.AppendBytes(data, node)
	data = append(data, debugInfo...)

	g, err := graphdef.Parse(data)
	require.NoError(t, err)

	dg := New(g)
	dg.Append(&graphdef.NodeDef{Name: "b", Op: "Relu", Inputs: []string{"a"}})
	out := graphdef.Marshal(dg.AsGraphDef())

	assert.True(t, bytes.HasSuffix(out, debugInfo), "debug_info is re-emitted after editing")
	reparsed, err := graphdef.Parse(out)
	require.NoError(t, err)
	assert.Len(t, reparsed.Nodes, 2)
}
