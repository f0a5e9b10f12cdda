// Package glob implements the shell-style pattern matching used by KEYS.
//
// Supported syntax: '*' matches any run of characters, '?' exactly one,
// '[abc]', '[a-z]' and '[^abc]' (or '[!abc]') a class, and '\' escapes the
// next character. Braces are literal.
package glob

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

const cacheLimit = 256

var (
	mu    sync.Mutex
	cache = make(map[string]glob.Glob)
)

// Match reports whether candidate matches pattern. A pattern that does not
// compile matches nothing.
func Match(pattern, candidate string) bool {
	g, ok := compile(pattern)
	if !ok {
		return false
	}
	return g.Match(candidate)
}

func compile(pattern string) (glob.Glob, bool) {
	mu.Lock()
	g, ok := cache[pattern]
	mu.Unlock()
	if ok {
		return g, g != nil
	}

	g, err := glob.Compile(translate(pattern))
	if err != nil {
		g = nil
	}

	mu.Lock()
	if len(cache) >= cacheLimit {
		cache = make(map[string]glob.Glob)
	}
	cache[pattern] = g
	mu.Unlock()

	return g, g != nil
}

// translate rewrites Redis glob syntax into gobwas syntax: class negation
// with '^' becomes '!', and braces, which gobwas treats as alternation,
// are escaped.
func translate(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))

	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			b.WriteByte(c)
			i++
			b.WriteByte(pattern[i])
		case inClass:
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
		case c == '[':
			inClass = true
			b.WriteByte(c)
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				b.WriteByte('!')
				i++
			}
		case c == '{' || c == '}':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
