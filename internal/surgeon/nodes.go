package surgeon

import (
	"fmt"

	"github.com/born-ml/buildengine/internal/graphdef"
)

// Attrs are node attributes given as plain Go values.
// See graphdef.AttrFromValue for the accepted types.
type Attrs map[string]any

// CreateNode builds a detached node. A "shape" attribute given as an
// integer slice becomes a shape attribute rather than a list.
func CreateNode(name, op string, attrs Attrs) (*graphdef.NodeDef, error) {
	n := &graphdef.NodeDef{Name: name, Op: op}
	for key, value := range attrs {
		attr, err := toAttr(key, value)
		if err != nil {
			return nil, fmt.Errorf("node %s attr %s: %w", name, key, err)
		}
		n.SetAttr(key, attr)
	}
	return n, nil
}

// CreatePluginNode builds a detached node for a runtime plugin operator.
// Plugin nodes default to a float32 dtype attribute.
func CreatePluginNode(name, op string, attrs Attrs) (*graphdef.NodeDef, error) {
	n, err := CreateNode(name, op, attrs)
	if err != nil {
		return nil, err
	}
	if _, ok := n.Attr("dtype"); !ok {
		n.SetAttr("dtype", graphdef.TypeAttr(graphdef.DTFloat))
	}
	return n, nil
}

func toAttr(key string, value any) (graphdef.AttrValue, error) {
	if key == "shape" {
		switch dims := value.(type) {
		case []int64:
			return graphdef.ShapeAttr(dims...), nil
		case []int:
			sizes := make([]int64, len(dims))
			for i, d := range dims {
				sizes[i] = int64(d)
			}
			return graphdef.ShapeAttr(sizes...), nil
		}
	}
	return graphdef.AttrFromValue(value)
}
