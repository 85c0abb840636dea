package stackcache

import (
	"testing"

	"j5.nz/binsizeprof/internal/profile"
)

func TestStackForSharesPrefixes(t *testing.T) {
	p := profile.New("t")
	root := p.InternStack(profile.NoStack, p.InternLabelFrame("root"))
	c := New(p, root)

	a := c.StackFor("/src/a/x.cc")
	b := c.StackFor("/src/a/y.cc")
	if a == b {
		t.Fatalf("distinct leaf files produced the same stack")
	}

	// Both paths share the "/src/a" prefix; re-deriving x.cc's stack from
	// scratch (a fresh Cache, same section root) must converge on the same
	// handle, since the underlying frames/stacks are content-addressed.
	if again := New(p, root).StackFor("/src/a/x.cc"); again != a {
		t.Fatalf("re-deriving the same path from a fresh cache produced a different stack")
	}
}

func TestStackForMemoizesByUntrimmedPath(t *testing.T) {
	p := profile.New("t")
	root := p.InternStack(profile.NoStack, p.InternLabelFrame("root"))
	c := New(p, root)

	a := c.StackFor("/src/a.cc")
	b := c.StackFor("/src/a.cc")
	if a != b {
		t.Fatalf("same path produced two different stacks")
	}
}

func TestStackForTrimsBuildSandboxPrefix(t *testing.T) {
	p := profile.New("t")
	root := p.InternStack(profile.NoStack, p.InternLabelFrame("root"))

	c1 := New(p, root)
	trimmed := c1.StackFor(`C:\b\s\w\ir\cache\builder\src\a.cc`)

	c2 := New(p, root)
	untrimmed := c2.StackFor(`/src/a.cc`)

	if trimmed != untrimmed {
		t.Fatalf("build-sandbox-prefixed path did not collapse to the same stack as its trimmed equivalent")
	}
}

func TestStackForSplitsOnBothSlashKinds(t *testing.T) {
	p := profile.New("t")
	root := p.InternStack(profile.NoStack, p.InternLabelFrame("root"))

	forward := New(p, root).StackFor("/src/a/b.cc")
	backward := New(p, root).StackFor(`\src\a\b.cc`)

	if forward != backward {
		t.Fatalf("forward- and back-slash paths did not produce the same stack")
	}
}
