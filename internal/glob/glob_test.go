package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern   string
		candidate string
		want      bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"a*", "apple", true},
		{"a*", "a", true},
		{"a*", "banana", false},
		{"*a", "banana", true},
		{"h?llo", "hello", true},
		{"h?llo", "hllo", false},
		{"h[ae]llo", "hallo", true},
		{"h[ae]llo", "hillo", false},
		{"h[^e]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{"h[!e]llo", "hello", false},
		{"h[a-c]llo", "hbllo", true},
		{"user:*", "user:42", true},
		{"a/*", "a/b/c", true},
		{"{a,b}", "{a,b}", true},
		{"{a,b}", "a", false},
		{`a\*`, "a*", true},
		{`a\*`, "ab", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.pattern, tt.candidate), "Match(%q, %q)", tt.pattern, tt.candidate)
	}
}

func TestMatch_Cached(t *testing.T) {
	assert.True(t, Match("cache*", "cache-hit"))
	assert.True(t, Match("cache*", "cache-again"))

	mu.Lock()
	_, ok := cache["cache*"]
	mu.Unlock()
	assert.True(t, ok)
}
