package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/buildengine/internal/graphdef"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, []string{"FlattenConcat_TRT", "GridAnchor_TRT", "NMS_TRT"}, r.Ops())
	assert.True(t, r.IsPlugin("NMS_TRT"))
	assert.False(t, r.IsPlugin("ConcatV2"))

	spec, ok := r.Get("GridAnchor_TRT")
	require.True(t, ok)
	assert.Contains(t, spec.Required, "featureMapShapes")
}

func TestValidate(t *testing.T) {
	r := NewRegistry()

	anchor := graphdef.NodeDef{Name: "GridAnchor", Op: "GridAnchor_TRT"}
	anchor.SetAttr("minSize", graphdef.FloatAttr(0.2))

	g := &graphdef.GraphDef{Nodes: []graphdef.NodeDef{
		anchor,
		{Name: "concat_box_loc", Op: "FlattenConcat_TRT"},
		{Name: "relu", Op: "Relu6"},
	}}

	err := r.Validate(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GridAnchor (GridAnchor_TRT): missing maxSize")
	assert.NotContains(t, err.Error(), "concat_box_loc")
}

func TestValidateCustomPlugin(t *testing.T) {
	r := NewRegistry()
	r.Register(specOf("Resize_TRT", "scale"))

	n := graphdef.NodeDef{Name: "resize", Op: "Resize_TRT"}
	n.SetAttr("scale", graphdef.IntAttr(2))

	assert.NoError(t, r.Validate(&graphdef.GraphDef{Nodes: []graphdef.NodeDef{n}}))
}

func specOf(op string, required ...string) Spec {
	return Spec{Op: op, Required: required}
}
