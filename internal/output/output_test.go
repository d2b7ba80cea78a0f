package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("🔍", "Building product index...")

	// Then: output contains icon and message
	assert.Equal(t, "🔍 Building product index...\n", buf.String())
}

func TestWriter_BufferIsPlain(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("Index built")
	w.Warning("Vocabulary empty")
	w.Error("Corpus unreachable")

	out := buf.String()
	assert.Contains(t, out, "✅ Index built")
	assert.Contains(t, out, "Vocabulary empty")
	assert.Contains(t, out, "❌ Corpus unreachable")
	assert.NotContains(t, out, "\x1b[", "non-terminal output carries no escape codes")
}

func TestWriter_Ranked(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithStyles(buf, NoColorStyles())

	w.Ranked(1, "#42", 0.5, "Matched on features: teapot")
	w.Ranked(2, "#7", 0.25, "")

	assert.Equal(t, " 1. #42  0.5000\n    Matched on features: teapot\n 2. #7  0.2500\n", buf.String())
}

func TestWriter_KeyValueAndBlock(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithStyles(buf, NoColorStyles())

	w.KeyValue("version", "3")
	w.Block("line one\nline two")

	assert.Contains(t, buf.String(), "version:")
	assert.Contains(t, buf.String(), "  line one\n  line two\n")
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	require.NoError(t, w.JSON(map[string]int{"count": 3}))
	assert.JSONEq(t, `{"count": 3}`, buf.String())
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}
