package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKeys []string
	}{
		{"plain object", `{"full_track":[],"added_notes":[]}`, []string{"full_track", "added_notes"}},
		{"junk prefix", `junk_prefix{"full_track":[],"added_notes":[]}`, []string{"full_track", "added_notes"}},
		{"framed both sides", "/json\x00\x00\x00,s\x00\x00{\"event\":\"x\"}\x00\x00", []string{"event"}},
		{"nested braces", `xx{"a":{"b":1}}yy`, []string{"a"}},
		{"leading whitespace", "  \n{\"a\":1}\n", []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Recover(tt.input)
			require.NoError(t, err)
			for _, k := range tt.wantKeys {
				assert.Contains(t, obj, k)
			}
		})
	}
}

func TestRecover_Unrecoverable(t *testing.T) {
	inputs := map[string]string{
		"no braces":       "not json at all",
		"empty":           "",
		"broken inside":   `xx{"a":}yy`,
		"reversed braces": "} junk {",
		"json array":      `[1,2,3]`,
		"json null":       `null`,
		"two objects":     `{"a":1} and {"b":2}`,
		"only open brace": `{"a":1`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Recover(input)
			assert.ErrorIs(t, err, ErrUnrecoverablePayload)
		})
	}
}
