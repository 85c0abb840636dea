// Package stackcache implements the Path-Prefix Stack Cache of spec §4.3: it
// turns an outer-function source file path such as
// "/src/vendor/zlib/inflate.c" into a chain of interned label-frame stacks,
// one per cumulative path prefix ("/src", "/src/vendor", ...,
// "/src/vendor/zlib/inflate.c"), rooted at a caller-supplied per-section
// stack, and memoises the result by the untrimmed path string so repeated
// addresses under the same enclosing function are O(1).
//
// Because the underlying frames and stacks are themselves content-addressed
// by internal/profile (mirroring github.com/google/pprof/profile's
// Location/Function caching), two different Cache instances — one per
// section, as the specification scopes them — still collapse identical
// prefixes to identical handles; this cache only saves the cost of
// re-splitting and re-walking a path already seen.
package stackcache

import (
	"strings"

	"j5.nz/binsizeprof/internal/profile"
)

// buildSandboxPrefix is the one hard-coded CI build-sandbox path prefix
// trimmed from source paths before splitting.
const buildSandboxPrefix = `C:\b\s\w\ir\cache\builder\`

// Cache interns path-prefix stacks for the addresses of a single section,
// rooted under that section's stack.
type Cache struct {
	prof        *profile.Profile
	sectionRoot profile.StackHandle

	byPath map[string]profile.StackHandle
}

// New creates a Cache whose path-prefix stacks are all children of
// sectionRoot, the per-section stack for the section being resolved.
func New(prof *profile.Profile, sectionRoot profile.StackHandle) *Cache {
	return &Cache{
		prof:        prof,
		sectionRoot: sectionRoot,
		byPath:      make(map[string]profile.StackHandle),
	}
}

// StackFor returns the stack handle ending at sourcePath's final path
// component, built from cumulative path-prefix label frames rooted at the
// Cache's section stack. Results are memoised by the untrimmed sourcePath.
func (c *Cache) StackFor(sourcePath string) profile.StackHandle {
	if h, ok := c.byPath[sourcePath]; ok {
		return h
	}

	trimmed := strings.TrimPrefix(sourcePath, buildSandboxPrefix)
	components := strings.FieldsFunc(trimmed, func(r rune) bool { return r == '/' || r == '\\' })

	stack := c.sectionRoot
	var accumulated strings.Builder
	for _, component := range components {
		accumulated.WriteByte('/')
		accumulated.WriteString(component)
		frame := c.prof.InternLabelFrame(accumulated.String())
		stack = c.prof.InternStack(stack, frame)
	}

	c.byPath[sourcePath] = stack
	return stack
}
