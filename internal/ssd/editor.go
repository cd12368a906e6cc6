package ssd

import (
	"context"
	"errors"
	"fmt"

	"github.com/born-ml/buildengine/internal/ctxlog"
	"github.com/born-ml/buildengine/internal/graphdef"
	"github.com/born-ml/buildengine/internal/graphdef/plugins"
	"github.com/born-ml/buildengine/internal/surgeon"
)

// ErrMissingNode is returned when the graph lacks structure the edit expects.
var ErrMissingNode = errors.New("graph is missing an expected node")

// AddPlugins rewrites dg in place for the inference runtime and returns it.
func AddPlugins(ctx context.Context, dg *surgeon.DynamicGraph, model string, p Params) (*surgeon.DynamicGraph, error) {
	logger := ctxlog.FromContext(ctx).With("model", model)
	logger.Debug("Editing graph.", "nodes", dg.Len())

	asserts := dg.FindNodesByOp("Assert")
	dg.Remove(asserts, true)

	identities := dg.FindNodesByOp("Identity")
	dg.ForwardInputs(identities)
	logger.Debug("Removed validation and pass-through nodes.", "asserts", len(asserts), "identities", len(identities), "nodes", dg.Len())

	repl, err := newReplacements(p)
	if err != nil {
		return nil, err
	}

	dg.CollapseNamespaces(repl.namespaceMap())
	dg.Remove(dg.GraphOutputs(), false)

	nms := dg.FindNodesByOp(OpNMS)
	if len(nms) == 0 {
		return nil, fmt.Errorf("%w: no %s node after collapsing Postprocessor", ErrMissingNode, OpNMS)
	}
	if !removeInput(nms[0], InputName) {
		return nil, fmt.Errorf("%w: %s does not read %s", ErrMissingNode, nms[0].Name, InputName)
	}

	if err := Check(dg); err != nil {
		return nil, err
	}

	logger.Debug("Graph edited.", "nodes", dg.Len(), "nms_inputs", nms[0].Inputs)
	return dg, nil
}

// replacements are the nodes the SSD namespaces collapse into.
type replacements struct {
	input          *graphdef.NodeDef
	priorBox       *graphdef.NodeDef
	nms            *graphdef.NodeDef
	concatPriorBox *graphdef.NodeDef
	concatBoxLoc   *graphdef.NodeDef
	concatBoxConf  *graphdef.NodeDef
}

func newReplacements(p Params) (*replacements, error) {
	var r replacements
	var err error

	r.input, err = surgeon.CreatePluginNode(InputName, "Placeholder", surgeon.Attrs{
		"shape": InputShape,
	})
	if err != nil {
		return nil, err
	}

	r.priorBox, err = surgeon.CreatePluginNode(GridAnchorName, OpGridAnchor, surgeon.Attrs{
		"minSize":          p.MinSize,
		"maxSize":          p.MaxSize,
		"aspectRatios":     AspectRatios,
		"variance":         Variance,
		"featureMapShapes": FeatureMapShapes,
		"numLayers":        NumLayers,
	})
	if err != nil {
		return nil, err
	}

	r.nms, err = surgeon.CreatePluginNode(NMSName, OpNMS, surgeon.Attrs{
		"shareLocation":           p.NMS.ShareLocation,
		"varianceEncodedInTarget": p.NMS.VarianceEncodedInTarget,
		"backgroundLabelId":       p.NMS.BackgroundLabelID,
		"confidenceThreshold":     p.NMS.ConfidenceThreshold,
		"nmsThreshold":            p.NMS.NMSThreshold,
		"topK":                    p.NMS.TopK,
		"keepTopK":                p.NMS.KeepTopK,
		"numClasses":              p.NumClasses,
		"inputOrder":              p.InputOrder,
		"confSigmoid":             p.NMS.ConfSigmoid,
		"isNormalized":            p.NMS.IsNormalized,
	})
	if err != nil {
		return nil, err
	}

	r.concatPriorBox, err = surgeon.CreateNode(ConcatPriorBox, "ConcatV2", surgeon.Attrs{
		"axis": 2,
	})
	if err != nil {
		return nil, err
	}

	r.concatBoxLoc, err = surgeon.CreatePluginNode(ConcatBoxLoc, OpFlattenConcat, nil)
	if err != nil {
		return nil, err
	}

	r.concatBoxConf, err = surgeon.CreatePluginNode(ConcatBoxConf, OpFlattenConcat, nil)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// namespaceMap covers both export layouts: ssd_mobilenet_v1_coco nests the
// anchor concatenation under the generator, other exports keep it top level.
func (r *replacements) namespaceMap() map[string]*graphdef.NodeDef {
	return map[string]*graphdef.NodeDef{
		"MultipleGridAnchorGenerator":             r.priorBox,
		"Postprocessor":                           r.nms,
		"Preprocessor":                            r.input,
		"ToFloat":                                 r.input,
		"image_tensor":                            r.input,
		"MultipleGridAnchorGenerator/Concatenate": r.concatPriorBox,
		"Concatenate":                             r.concatPriorBox,
		"concat":                                  r.concatBoxLoc,
		"concat_1":                                r.concatBoxConf,
	}
}

// Check verifies the edited graph has the shape the exporter and the engine
// builder expect.
func Check(dg *surgeon.DynamicGraph) error {
	if n := len(dg.FindNodesByName(InputName)); n != 1 {
		return fmt.Errorf("%w: want exactly one %s node, found %d", ErrMissingNode, InputName, n)
	}
	for _, op := range []string{OpGridAnchor, OpNMS} {
		if n := len(dg.FindNodesByOp(op)); n != 1 {
			return fmt.Errorf("%w: want exactly one %s node, found %d", ErrMissingNode, op, n)
		}
	}
	for _, op := range []string{"Assert", "Identity"} {
		if n := len(dg.FindNodesByOp(op)); n != 0 {
			return fmt.Errorf("graph still contains %d %s nodes", n, op)
		}
	}
	return plugins.NewRegistry().Validate(dg.AsGraphDef())
}

// removeInput drops the first input exactly equal to name.
func removeInput(n *graphdef.NodeDef, name string) bool {
	for i, in := range n.Inputs {
		if in == name {
			n.Inputs = append(n.Inputs[:i], n.Inputs[i+1:]...)
			return true
		}
	}
	return false
}
