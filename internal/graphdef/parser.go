package graphdef

import (
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// ParseFile parses a GraphDef from file.
//
//nolint:gosec // G304: Path comes from the model registry, reading it is the point.
func ParseFile(path string) (*GraphDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse parses a GraphDef from bytes.
func Parse(data []byte) (*GraphDef, error) {
	g := &GraphDef{}
	if err := readGraphDef(&decoder{data: data}, g); err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	return g, nil
}

// decoder walks the fields of one protobuf message.
type decoder struct {
	data []byte
}

func (d *decoder) more() bool {
	return len(d.data) > 0
}

// next reads a field tag.
func (d *decoder) next() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(d.data)
	if n < 0 {
		return 0, 0, malformed(n)
	}
	d.data = d.data[n:]
	return num, typ, nil
}

// bytes reads a length-delimited field.
func (d *decoder) bytes() ([]byte, error) {
	v, n := protowire.ConsumeBytes(d.data)
	if n < 0 {
		return nil, malformed(n)
	}
	d.data = d.data[n:]
	return v, nil
}

func (d *decoder) str() (string, error) {
	v, err := d.bytes()
	return string(v), err
}

// varint reads a varint field.
func (d *decoder) varint() (uint64, error) {
	v, n := protowire.ConsumeVarint(d.data)
	if n < 0 {
		return 0, malformed(n)
	}
	d.data = d.data[n:]
	return v, nil
}

// float32 reads a fixed32 field as a float.
func (d *decoder) float32() (float32, error) {
	v, n := protowire.ConsumeFixed32(d.data)
	if n < 0 {
		return 0, malformed(n)
	}
	d.data = d.data[n:]
	return math.Float32frombits(v), nil
}

// skip consumes a field value and returns its raw encoding including the tag.
func (d *decoder) skip(num protowire.Number, typ protowire.Type) ([]byte, error) {
	n := protowire.ConsumeFieldValue(num, typ, d.data)
	if n < 0 {
		return nil, malformed(n)
	}
	raw := protowire.AppendTag(nil, num, typ)
	raw = append(raw, d.data[:n]...)
	d.data = d.data[n:]
	return raw, nil
}

func malformed(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
}

// readGraphDef reads GraphDef message.
func readGraphDef(d *decoder, m *GraphDef) error {
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // node
			data, err := d.bytes()
			if err != nil {
				return err
			}
			node := NodeDef{}
			if err := readNodeDef(&decoder{data: data}, &node); err != nil {
				return fmt.Errorf("node %d: %w", len(m.Nodes), err)
			}
			m.Nodes = append(m.Nodes, node)
		case num == 2 && typ == protowire.BytesType: // library
			if m.Library, err = d.bytes(); err != nil {
				return err
			}
		case num == 4 && typ == protowire.BytesType: // versions
			data, err := d.bytes()
			if err != nil {
				return err
			}
			m.Versions = &VersionDef{}
			if err := readVersionDef(&decoder{data: data}, m.Versions); err != nil {
				return err
			}
		default:
			raw, err := d.skip(num, typ)
			if err != nil {
				return err
			}
			m.extra = append(m.extra, raw...)
		}
	}
	return nil
}

// readVersionDef reads VersionDef message.
func readVersionDef(d *decoder, m *VersionDef) error {
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.VarintType: // producer
			v, err := d.varint()
			if err != nil {
				return err
			}
			m.Producer = int32(v) //nolint:gosec // G115: int32 field on the wire.
		case num == 2 && typ == protowire.VarintType: // min_consumer
			v, err := d.varint()
			if err != nil {
				return err
			}
			m.MinConsumer = int32(v) //nolint:gosec // G115: int32 field on the wire.
		case num == 3: // bad_consumers
			vals, err := d.repeatedVarint(typ)
			if err != nil {
				return err
			}
			for _, v := range vals {
				m.BadConsumers = append(m.BadConsumers, int32(v)) //nolint:gosec // G115: int32 field on the wire.
			}
		default:
			if _, err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// readNodeDef reads NodeDef message.
//
//nolint:gocognit,gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic
func readNodeDef(d *decoder, m *NodeDef) error {
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // name
			if m.Name, err = d.str(); err != nil {
				return err
			}
		case num == 2 && typ == protowire.BytesType: // op
			if m.Op, err = d.str(); err != nil {
				return err
			}
		case num == 3 && typ == protowire.BytesType: // input
			in, err := d.str()
			if err != nil {
				return err
			}
			m.Inputs = append(m.Inputs, in)
		case num == 4 && typ == protowire.BytesType: // device
			if m.Device, err = d.str(); err != nil {
				return err
			}
		case num == 5 && typ == protowire.BytesType: // attr (map entry)
			data, err := d.bytes()
			if err != nil {
				return err
			}
			key, val, err := readAttrEntry(&decoder{data: data})
			if err != nil {
				return fmt.Errorf("attr of %q: %w", m.Name, err)
			}
			m.SetAttr(key, val)
		default:
			raw, err := d.skip(num, typ)
			if err != nil {
				return err
			}
			m.extra = append(m.extra, raw...)
		}
	}
	return nil
}

// readAttrEntry reads one map<string, AttrValue> entry.
func readAttrEntry(d *decoder) (string, AttrValue, error) {
	var key string
	var val AttrValue
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return "", val, err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // key
			if key, err = d.str(); err != nil {
				return "", val, err
			}
		case num == 2 && typ == protowire.BytesType: // value
			data, err := d.bytes()
			if err != nil {
				return "", val, err
			}
			if err := readAttrValue(&decoder{data: data}, &val); err != nil {
				return "", val, fmt.Errorf("%s: %w", key, err)
			}
		default:
			if _, err := d.skip(num, typ); err != nil {
				return "", val, err
			}
		}
	}
	return key, val, nil
}

// readAttrValue reads AttrValue message.
//
//nolint:gocognit,gocyclo,cyclop,funlen // One case per oneof member.
func readAttrValue(d *decoder, m *AttrValue) error {
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.BytesType: // list
			data, err := d.bytes()
			if err != nil {
				return err
			}
			m.Kind = AttrList
			m.List = &ListValue{}
			if err := readListValue(&decoder{data: data}, m.List); err != nil {
				return err
			}
		case num == 2 && typ == protowire.BytesType: // s
			m.Kind = AttrString
			if m.S, err = d.bytes(); err != nil {
				return err
			}
		case num == 3 && typ == protowire.VarintType: // i
			v, err := d.varint()
			if err != nil {
				return err
			}
			m.Kind = AttrInt
			m.I = int64(v) //nolint:gosec // G115: two's complement int64 on the wire.
		case num == 4 && typ == protowire.Fixed32Type: // f
			m.Kind = AttrFloat
			if m.F, err = d.float32(); err != nil {
				return err
			}
		case num == 5 && typ == protowire.VarintType: // b
			v, err := d.varint()
			if err != nil {
				return err
			}
			m.Kind = AttrBool
			m.B = protowire.DecodeBool(v)
		case num == 6 && typ == protowire.VarintType: // type
			v, err := d.varint()
			if err != nil {
				return err
			}
			m.Kind = AttrType
			m.Type = DataType(v) //nolint:gosec // G115: enum on the wire.
		case num == 7 && typ == protowire.BytesType: // shape
			data, err := d.bytes()
			if err != nil {
				return err
			}
			m.Kind = AttrShape
			m.Shape = &TensorShape{}
			if err := readTensorShape(&decoder{data: data}, m.Shape); err != nil {
				return err
			}
		case num == 8 && typ == protowire.BytesType: // tensor
			m.Kind = AttrTensor
			if m.Tensor, err = d.bytes(); err != nil {
				return err
			}
		case num == 9 && typ == protowire.BytesType: // placeholder
			m.Kind = AttrPlaceholder
			if m.Placeholder, err = d.str(); err != nil {
				return err
			}
		case num == 10 && typ == protowire.BytesType: // func
			m.Kind = AttrFunc
			if m.Func, err = d.bytes(); err != nil {
				return err
			}
		default:
			if _, err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// readListValue reads AttrValue.ListValue message.
//
//nolint:gocognit,gocyclo,cyclop // One case per repeated member.
func readListValue(d *decoder, m *ListValue) error {
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return err
		}

		switch num {
		case 2: // s
			v, err := d.bytes()
			if err != nil {
				return err
			}
			m.S = append(m.S, v)
		case 3: // i
			vals, err := d.repeatedVarint(typ)
			if err != nil {
				return err
			}
			for _, v := range vals {
				m.I = append(m.I, int64(v)) //nolint:gosec // G115: two's complement int64 on the wire.
			}
		case 4: // f
			vals, err := d.repeatedFloat(typ)
			if err != nil {
				return err
			}
			m.F = append(m.F, vals...)
		case 5: // b
			vals, err := d.repeatedVarint(typ)
			if err != nil {
				return err
			}
			for _, v := range vals {
				m.B = append(m.B, protowire.DecodeBool(v))
			}
		case 6: // type
			vals, err := d.repeatedVarint(typ)
			if err != nil {
				return err
			}
			for _, v := range vals {
				m.Type = append(m.Type, DataType(v)) //nolint:gosec // G115: enum on the wire.
			}
		case 7: // shape
			data, err := d.bytes()
			if err != nil {
				return err
			}
			shape := TensorShape{}
			if err := readTensorShape(&decoder{data: data}, &shape); err != nil {
				return err
			}
			m.Shape = append(m.Shape, shape)
		case 8: // tensor
			v, err := d.bytes()
			if err != nil {
				return err
			}
			m.Tensor = append(m.Tensor, v)
		case 9: // func
			v, err := d.bytes()
			if err != nil {
				return err
			}
			m.Func = append(m.Func, v)
		default:
			if _, err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// readTensorShape reads TensorShapeProto message.
func readTensorShape(d *decoder, m *TensorShape) error {
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return err
		}

		switch {
		case num == 2 && typ == protowire.BytesType: // dim
			data, err := d.bytes()
			if err != nil {
				return err
			}
			dim := Dim{}
			if err := readDim(&decoder{data: data}, &dim); err != nil {
				return err
			}
			m.Dims = append(m.Dims, dim)
		case num == 3 && typ == protowire.VarintType: // unknown_rank
			v, err := d.varint()
			if err != nil {
				return err
			}
			m.UnknownRank = protowire.DecodeBool(v)
		default:
			if _, err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// readDim reads TensorShapeProto.Dim message.
func readDim(d *decoder, m *Dim) error {
	for d.more() {
		num, typ, err := d.next()
		if err != nil {
			return err
		}

		switch {
		case num == 1 && typ == protowire.VarintType: // size
			v, err := d.varint()
			if err != nil {
				return err
			}
			m.Size = int64(v) //nolint:gosec // G115: two's complement int64 on the wire.
		case num == 2 && typ == protowire.BytesType: // name
			if m.Name, err = d.str(); err != nil {
				return err
			}
		default:
			if _, err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// repeatedVarint reads a repeated varint field in packed or unpacked form.
func (d *decoder) repeatedVarint(typ protowire.Type) ([]uint64, error) {
	if typ == protowire.VarintType {
		v, err := d.varint()
		if err != nil {
			return nil, err
		}
		return []uint64{v}, nil
	}
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("%w: wire type %d for repeated varint", ErrMalformed, typ)
	}
	data, err := d.bytes()
	if err != nil {
		return nil, err
	}
	sub := &decoder{data: data}
	var out []uint64
	for sub.more() {
		v, err := sub.varint()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// repeatedFloat reads a repeated float field in packed or unpacked form.
func (d *decoder) repeatedFloat(typ protowire.Type) ([]float32, error) {
	if typ == protowire.Fixed32Type {
		v, err := d.float32()
		if err != nil {
			return nil, err
		}
		return []float32{v}, nil
	}
	if typ != protowire.BytesType {
		return nil, fmt.Errorf("%w: wire type %d for repeated float", ErrMalformed, typ)
	}
	data, err := d.bytes()
	if err != nil {
		return nil, err
	}
	sub := &decoder{data: data}
	var out []float32
	for sub.more() {
		v, err := sub.float32()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
