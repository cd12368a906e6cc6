package graphdef

import "fmt"

// IntAttr returns an int attribute.
func IntAttr(v int64) AttrValue { return AttrValue{Kind: AttrInt, I: v} }

// FloatAttr returns a float attribute.
func FloatAttr(v float32) AttrValue { return AttrValue{Kind: AttrFloat, F: v} }

// BoolAttr returns a bool attribute.
func BoolAttr(v bool) AttrValue { return AttrValue{Kind: AttrBool, B: v} }

// StringAttr returns a string attribute.
func StringAttr(v string) AttrValue { return AttrValue{Kind: AttrString, S: []byte(v)} }

// TypeAttr returns a data type attribute.
func TypeAttr(v DataType) AttrValue { return AttrValue{Kind: AttrType, Type: v} }

// ShapeAttr returns a shape attribute with the given dimension sizes.
func ShapeAttr(dims ...int64) AttrValue {
	shape := &TensorShape{Dims: make([]Dim, len(dims))}
	for i, d := range dims {
		shape.Dims[i] = Dim{Size: d}
	}
	return AttrValue{Kind: AttrShape, Shape: shape}
}

// IntListAttr returns a list(int) attribute.
func IntListAttr(v ...int64) AttrValue {
	return AttrValue{Kind: AttrList, List: &ListValue{I: v}}
}

// FloatListAttr returns a list(float) attribute.
func FloatListAttr(v ...float32) AttrValue {
	return AttrValue{Kind: AttrList, List: &ListValue{F: v}}
}

// StringListAttr returns a list(string) attribute.
func StringListAttr(v ...string) AttrValue {
	list := &ListValue{S: make([][]byte, len(v))}
	for i, s := range v {
		list.S[i] = []byte(s)
	}
	return AttrValue{Kind: AttrList, List: list}
}

// AttrFromValue converts a Go value into an attribute.
// Integers become int attributes, floats become float attributes and slices
// become list attributes of the matching element kind.
//
//nolint:gocyclo,cyclop // One case per supported Go type.
func AttrFromValue(v any) (AttrValue, error) {
	switch x := v.(type) {
	case AttrValue:
		return x, nil
	case int:
		return IntAttr(int64(x)), nil
	case int32:
		return IntAttr(int64(x)), nil
	case int64:
		return IntAttr(x), nil
	case float32:
		return FloatAttr(x), nil
	case float64:
		return FloatAttr(float32(x)), nil
	case bool:
		return BoolAttr(x), nil
	case string:
		return StringAttr(x), nil
	case DataType:
		return TypeAttr(x), nil
	case []int:
		out := make([]int64, len(x))
		for i, e := range x {
			out[i] = int64(e)
		}
		return IntListAttr(out...), nil
	case []int64:
		return IntListAttr(x...), nil
	case []float32:
		return FloatListAttr(x...), nil
	case []float64:
		out := make([]float32, len(x))
		for i, e := range x {
			out[i] = float32(e)
		}
		return FloatListAttr(out...), nil
	case []string:
		return StringListAttr(x...), nil
	default:
		return AttrValue{}, fmt.Errorf("%w: %T", ErrUnsupportedAttr, v)
	}
}
