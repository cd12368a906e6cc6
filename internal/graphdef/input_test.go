package graphdef

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		port    int
		control bool
	}{
		{"concat", "concat", 0, false},
		{"concat:0", "concat", 0, false},
		{"Postprocessor/Slice:1", "Postprocessor/Slice", 1, false},
		{"^Assert/AssertGuard", "Assert/AssertGuard", 0, true},
		{"weird:name", "weird:name", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, port, control := ParseInput(tt.in)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.control, control)
		})
	}
}

func TestFormatInput(t *testing.T) {
	assert.Equal(t, "a", FormatInput("a", 0, false))
	assert.Equal(t, "a:2", FormatInput("a", 2, false))
	assert.Equal(t, "^a", FormatInput("a", 3, true))
	assert.Equal(t, "NMS", InputNode("^NMS"))
}
