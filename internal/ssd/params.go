package ssd

import "github.com/born-ml/buildengine/internal/registry"

// Node names the edited graph must expose.
const (
	InputName      = "Input"
	GridAnchorName = "GridAnchor"
	NMSName        = "NMS"
	ConcatPriorBox = "concat_priorbox"
	ConcatBoxLoc   = "concat_box_loc"
	ConcatBoxConf  = "concat_box_conf"
)

// Plugin operators used by the edited graph.
const (
	OpGridAnchor    = "GridAnchor_TRT"
	OpNMS           = "NMS_TRT"
	OpFlattenConcat = "FlattenConcat_TRT"
)

// InputShape is the NCHW shape of the placeholder that replaces preprocessing.
var InputShape = []int64{1, 3, 300, 300}

// Anchor generator constants for the six SSD feature maps.
var (
	AspectRatios     = []float32{1.0, 2.0, 0.5, 3.0, 0.33}
	Variance         = []float32{0.1, 0.1, 0.2, 0.2}
	FeatureMapShapes = []int64{19, 10, 5, 3, 2, 1}
)

// NumLayers is the number of feature maps anchors are generated for.
const NumLayers = 6

// NMSConfig holds the detection output parameters.
type NMSConfig struct {
	ShareLocation           int64
	VarianceEncodedInTarget int64
	BackgroundLabelID       int64
	ConfidenceThreshold     float32
	NMSThreshold            float32
	TopK                    int64
	KeepTopK                int64
	ConfSigmoid             int64
	IsNormalized            int64
}

// NMSDefaults are the NMS settings shared by every registered model.
var NMSDefaults = NMSConfig{
	ShareLocation:           1,
	VarianceEncodedInTarget: 0,
	BackgroundLabelID:       0,
	ConfidenceThreshold:     0.3,
	NMSThreshold:            0.6,
	TopK:                    100,
	KeepTopK:                100,
	ConfSigmoid:             1,
	IsNormalized:            1,
}

// Params are the per-model values the edit depends on.
type Params struct {
	NumClasses int
	MinSize    float32
	MaxSize    float32
	InputOrder []int // NMS input positions of loc_data, conf_data, priorbox_data
	NMS        NMSConfig
}

// ParamsFor derives edit parameters from a registry entry.
func ParamsFor(spec registry.ModelSpec) Params {
	return Params{
		NumClasses: spec.NumClasses,
		MinSize:    spec.MinSize,
		MaxSize:    spec.MaxSize,
		InputOrder: spec.InputOrder,
		NMS:        NMSDefaults,
	}
}
