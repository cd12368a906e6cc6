package graphdef

import "errors"

// Common errors.
var (
	ErrMalformed       = errors.New("malformed protobuf")
	ErrUnsupportedAttr = errors.New("unsupported attribute value")
)
