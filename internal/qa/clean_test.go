package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain answer untouched",
			raw:  "The refund window is 30 days.",
			want: "The refund window is 30 days.",
		},
		{
			name: "thinking preamble stripped",
			raw:  "Thinking about your documents...\nThe refund window is 30 days.",
			want: "The refund window is 30 days.",
		},
		{
			name: "thought-for preamble stripped",
			raw:  "Thought for 12 seconds\nThe refund window is 30 days.",
			want: "The refund window is 30 days.",
		},
		{
			name: "parenthetical citation tail stripped",
			raw:  "The refund window is 30 days. (3 citations)",
			want: "The refund window is 30 days.",
		},
		{
			name: "citation tail on earlier line stripped",
			raw:  "The refund window is 30 days. (see sources)\nExceptions apply for digital goods.",
			want: "The refund window is 30 days.\nExceptions apply for digital goods.",
		},
		{
			name: "sources counter stripped",
			raw:  "The refund window is 30 days.\n\n4 Sources",
			want: "The refund window is 30 days.",
		},
		{
			name: "all three layers together",
			raw:  "Show thinking\nThe refund window is 30 days. (2 citations)\n3 sources",
			want: "The refund window is 30 days.",
		},
		{
			name: "parenthetical without citation keyword kept",
			raw:  "The refund window is 30 days (business days).",
			want: "The refund window is 30 days (business days).",
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "  \n The refund window is 30 days. \n ",
			want: "The refund window is 30 days.",
		},
		{
			name: "empty after cleaning",
			raw:  "Thinking...\n2 sources",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.raw))
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	raws := []string{
		"Thought for 5 seconds\nAnswer body. (1 citation)\n2 Sources",
		"Answer body.",
		"",
	}
	for _, raw := range raws {
		once := Clean(raw)
		assert.Equal(t, once, Clean(once))
	}
}
