package graphdef

import (
	"fmt"
	"math"
	"os"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// WriteFile serializes the graph and writes it to path.
func WriteFile(g *GraphDef, path string) error {
	//nolint:gosec // G306: Graph files are build artefacts read by other tools.
	if err := os.WriteFile(path, Marshal(g), 0o644); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}

// Marshal serializes the graph to protobuf wire format.
// Attribute maps are emitted in sorted key order.
func Marshal(g *GraphDef) []byte {
	var b []byte
	for i := range g.Nodes {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, appendNodeDef(nil, &g.Nodes[i]))
	}
	if g.Library != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, g.Library)
	}
	if g.Versions != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, appendVersionDef(nil, g.Versions))
	}
	return append(b, g.extra...)
}

func appendVersionDef(b []byte, m *VersionDef) []byte {
	if m.Producer != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(m.Producer))) //nolint:gosec // G115: int32 widened.
	}
	if m.MinConsumer != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(m.MinConsumer))) //nolint:gosec // G115: int32 widened.
	}
	if len(m.BadConsumers) > 0 {
		var packed []byte
		for _, v := range m.BadConsumers {
			packed = protowire.AppendVarint(packed, uint64(int64(v))) //nolint:gosec // G115: int32 widened.
		}
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func appendNodeDef(b []byte, m *NodeDef) []byte {
	if m.Name != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Name)
	}
	if m.Op != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.Op)
	}
	for _, in := range m.Inputs {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, in)
	}
	if m.Device != "" {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, m.Device)
	}

	keys := make([]string, 0, len(m.Attrs))
	for k := range m.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		v := m.Attrs[k]
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendBytes(entry, appendAttrValue(nil, &v))

		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return append(b, m.extra...)
}

//nolint:gocyclo,cyclop // One case per oneof member.
func appendAttrValue(b []byte, m *AttrValue) []byte {
	switch m.Kind {
	case AttrList:
		var list []byte
		if m.List != nil {
			list = appendListValue(nil, m.List)
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, list)
	case AttrString:
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.S)
	case AttrInt:
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.I)) //nolint:gosec // G115: two's complement on the wire.
	case AttrFloat:
		b = protowire.AppendTag(b, 4, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(m.F))
	case AttrBool:
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(m.B))
	case AttrType:
		b = protowire.AppendTag(b, 6, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type)) //nolint:gosec // G115: enum on the wire.
	case AttrShape:
		var shape []byte
		if m.Shape != nil {
			shape = appendTensorShape(nil, m.Shape)
		}
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, shape)
	case AttrTensor:
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Tensor)
	case AttrPlaceholder:
		b = protowire.AppendTag(b, 9, protowire.BytesType)
		b = protowire.AppendString(b, m.Placeholder)
	case AttrFunc:
		b = protowire.AppendTag(b, 10, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Func)
	case AttrNone:
	}
	return b
}

//nolint:gocognit // One block per repeated member.
func appendListValue(b []byte, m *ListValue) []byte {
	for _, s := range m.S {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, s)
	}
	if len(m.I) > 0 {
		var packed []byte
		for _, v := range m.I {
			packed = protowire.AppendVarint(packed, uint64(v)) //nolint:gosec // G115: two's complement on the wire.
		}
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(m.F) > 0 {
		var packed []byte
		for _, v := range m.F {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(m.B) > 0 {
		var packed []byte
		for _, v := range m.B {
			packed = protowire.AppendVarint(packed, protowire.EncodeBool(v))
		}
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	if len(m.Type) > 0 {
		var packed []byte
		for _, v := range m.Type {
			packed = protowire.AppendVarint(packed, uint64(v)) //nolint:gosec // G115: enum on the wire.
		}
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	for i := range m.Shape {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, appendTensorShape(nil, &m.Shape[i]))
	}
	for _, t := range m.Tensor {
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, t)
	}
	for _, f := range m.Func {
		b = protowire.AppendTag(b, 9, protowire.BytesType)
		b = protowire.AppendBytes(b, f)
	}
	return b
}

func appendTensorShape(b []byte, m *TensorShape) []byte {
	for _, dim := range m.Dims {
		var d []byte
		if dim.Size != 0 {
			d = protowire.AppendTag(d, 1, protowire.VarintType)
			d = protowire.AppendVarint(d, uint64(dim.Size)) //nolint:gosec // G115: two's complement on the wire.
		}
		if dim.Name != "" {
			d = protowire.AppendTag(d, 2, protowire.BytesType)
			d = protowire.AppendString(d, dim.Name)
		}
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, d)
	}
	if m.UnknownRank {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	return b
}
