package graphdef

import "strconv"

// TensorFlow protobuf data structures (subset of graph.proto, node_def.proto,
// attr_value.proto and tensor_shape.proto).

// GraphDef represents a TensorFlow computation graph.
type GraphDef struct {
	Nodes    []NodeDef   // Operation nodes, in file order
	Versions *VersionDef // Producer/consumer versions
	Library  []byte      // FunctionDefLibrary, kept opaque

	extra []byte // unrecognised fields (deprecated version, debug_info), re-emitted verbatim
}

// VersionDef records the TensorFlow versions a graph was produced for.
type VersionDef struct {
	Producer     int32
	MinConsumer  int32
	BadConsumers []int32
}

// NodeDef represents a single operation.
type NodeDef struct {
	Name   string               // Node name, "/" separates namespaces
	Op     string               // Operation (e.g. "Conv2D", "Identity", "NMS_TRT")
	Inputs []string             // "name", "name:port" or "^name" for control inputs
	Device string               // Placement hint
	Attrs  map[string]AttrValue // Operation attributes

	extra []byte // unrecognised fields, re-emitted verbatim
}

// Clone returns a deep copy of the node.
func (n *NodeDef) Clone() NodeDef {
	c := NodeDef{
		Name:   n.Name,
		Op:     n.Op,
		Device: n.Device,
		extra:  n.extra,
	}
	if n.Inputs != nil {
		c.Inputs = append([]string(nil), n.Inputs...)
	}
	if n.Attrs != nil {
		c.Attrs = make(map[string]AttrValue, len(n.Attrs))
		for k, v := range n.Attrs {
			c.Attrs[k] = v
		}
	}
	return c
}

// Attr returns the named attribute.
func (n *NodeDef) Attr(name string) (AttrValue, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// SetAttr sets an attribute, allocating the map if needed.
func (n *NodeDef) SetAttr(name string, v AttrValue) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]AttrValue)
	}
	n.Attrs[name] = v
}

// AttrKind tells which member of the AttrValue oneof is set.
type AttrKind int

// Attribute kinds (AttrValue.value oneof).
const (
	AttrNone        AttrKind = iota
	AttrList                 // list
	AttrString               // s
	AttrInt                  // i
	AttrFloat                // f
	AttrBool                 // b
	AttrType                 // type
	AttrShape                // shape
	AttrTensor               // tensor
	AttrPlaceholder          // placeholder
	AttrFunc                 // func
)

// AttrValue represents a node attribute.
type AttrValue struct {
	Kind        AttrKind
	S           []byte
	I           int64
	F           float32
	B           bool
	Type        DataType
	Shape       *TensorShape
	Tensor      []byte // TensorProto, kept opaque
	Placeholder string
	Func        []byte // NameAttrList, kept opaque
	List        *ListValue
}

// ListValue holds the repeated members of a list attribute.
type ListValue struct {
	S      [][]byte
	I      []int64
	F      []float32
	B      []bool
	Type   []DataType
	Shape  []TensorShape
	Tensor [][]byte
	Func   [][]byte
}

// TensorShape describes tensor dimensions. A size of -1 is unknown.
type TensorShape struct {
	Dims        []Dim
	UnknownRank bool
}

// Dim is one dimension of a TensorShape.
type Dim struct {
	Size int64
	Name string
}

// Sizes returns the dimension sizes.
func (s *TensorShape) Sizes() []int64 {
	out := make([]int64, len(s.Dims))
	for i, d := range s.Dims {
		out[i] = d.Size
	}
	return out
}

// DataType is a TensorFlow element type (types.proto).
type DataType int32

// TensorFlow data types.
const (
	DTInvalid  DataType = 0
	DTFloat    DataType = 1  // float32
	DTDouble   DataType = 2  // float64
	DTInt32    DataType = 3  // int32
	DTUint8    DataType = 4  // uint8
	DTInt16    DataType = 5  // int16
	DTInt8     DataType = 6  // int8
	DTString   DataType = 7  // string
	DTComplex  DataType = 8  // complex64
	DTInt64    DataType = 9  // int64
	DTBool     DataType = 10 // bool
	DTBfloat16 DataType = 14 // bfloat16
	DTHalf     DataType = 19 // float16
)

var dataTypeNames = map[DataType]string{
	DTInvalid:  "DT_INVALID",
	DTFloat:    "DT_FLOAT",
	DTDouble:   "DT_DOUBLE",
	DTInt32:    "DT_INT32",
	DTUint8:    "DT_UINT8",
	DTInt16:    "DT_INT16",
	DTInt8:     "DT_INT8",
	DTString:   "DT_STRING",
	DTComplex:  "DT_COMPLEX64",
	DTInt64:    "DT_INT64",
	DTBool:     "DT_BOOL",
	DTBfloat16: "DT_BFLOAT16",
	DTHalf:     "DT_HALF",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return "DT_" + strconv.Itoa(int(t))
}
