package graphdef

import (
	"strconv"
	"strings"
)

// ParseInput splits a NodeDef input reference into the producing node name,
// its output port and whether it is a control dependency ("^name").
func ParseInput(in string) (name string, port int, control bool) {
	if strings.HasPrefix(in, "^") {
		return in[1:], 0, true
	}
	if i := strings.LastIndexByte(in, ':'); i >= 0 {
		if p, err := strconv.Atoi(in[i+1:]); err == nil {
			return in[:i], p, false
		}
	}
	return in, 0, false
}

// FormatInput is the inverse of ParseInput. Port 0 is written without a suffix.
func FormatInput(name string, port int, control bool) string {
	switch {
	case control:
		return "^" + name
	case port > 0:
		return name + ":" + strconv.Itoa(port)
	default:
		return name
	}
}

// InputNode returns the name of the node an input reference points at.
func InputNode(in string) string {
	name, _, _ := ParseInput(in)
	return name
}
