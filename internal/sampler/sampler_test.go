package sampler

import (
	"testing"

	"j5.nz/binsizeprof/internal/objfile"
	"j5.nz/binsizeprof/internal/profile"
	"j5.nz/binsizeprof/internal/symbolicate"
	"j5.nz/binsizeprof/internal/symbolicate/symbolicatetest"
)

func newCtx(prof *profile.Profile, symMap symbolicate.SymbolMap) Context {
	root := prof.InternStack(profile.NoStack, prof.InternLabelFrame("root"))
	return Context{
		Prof:        prof,
		SymbolMap:   symMap,
		MemberStack: root,
		Binary:      "m",
		BaseAddr:    0,
	}
}

// Scenario 1: single text section, one symbol, no inlining.
func TestEmitSectionSingleSymbol(t *testing.T) {
	prof := profile.New("t")
	info := symbolicate.AddressInfo{
		Symbol: symbolicate.Symbol{Address: 0, Name: "foo"},
		Frames: []symbolicate.FrameDebugInfo{{Function: "foo", FilePath: "/src/a.cc"}},
	}
	symMap := symbolicatetest.New(symbolicatetest.Entry{Start: 0, End: 16, Info: info})
	ctx := newCtx(prof, symMap)

	sect := objfile.Section{FileOffset: 100, SVMA: 0, Size: 16, Kind: objfile.KindText, Name: ".text"}
	if err := EmitSection(ctx, sect); err != nil {
		t.Fatalf("EmitSection: %v", err)
	}

	if got, want := prof.SampleCount(), 1; got != want {
		t.Fatalf("sample count = %d, want %d", got, want)
	}
	if got, want := prof.TotalWeight(), uint64(16); got != want {
		t.Fatalf("total weight = %d, want %d", got, want)
	}
}

// Scenario 2: two adjacent functions produce two samples.
func TestEmitSectionTwoAdjacentFunctions(t *testing.T) {
	prof := profile.New("t")
	foo := symbolicate.AddressInfo{Symbol: symbolicate.Symbol{Address: 0, Name: "foo"}, Frames: []symbolicate.FrameDebugInfo{{Function: "foo", FilePath: "/src/a.cc"}}}
	bar := symbolicate.AddressInfo{Symbol: symbolicate.Symbol{Address: 16, Name: "bar"}, Frames: []symbolicate.FrameDebugInfo{{Function: "bar", FilePath: "/src/b.cc"}}}
	symMap := symbolicatetest.New(
		symbolicatetest.Entry{Start: 0, End: 16, Info: foo},
		symbolicatetest.Entry{Start: 16, End: 32, Info: bar},
	)
	ctx := newCtx(prof, symMap)

	sect := objfile.Section{FileOffset: 0, SVMA: 0, Size: 32, Kind: objfile.KindText, Name: ".text"}
	if err := EmitSection(ctx, sect); err != nil {
		t.Fatalf("EmitSection: %v", err)
	}

	if got, want := prof.SampleCount(), 2; got != want {
		t.Fatalf("sample count = %d, want %d", got, want)
	}
	if got, want := prof.TotalWeight(), uint64(32); got != want {
		t.Fatalf("total weight = %d, want %d", got, want)
	}
}

// Scenario 3: inlining produces a distinct inline_depth=1 frame.
func TestEmitSectionInlining(t *testing.T) {
	prof := profile.New("t")
	plain := symbolicate.AddressInfo{Symbol: symbolicate.Symbol{Address: 0, Name: "foo"}, Frames: []symbolicate.FrameDebugInfo{{Function: "foo", FilePath: "/src/a.cc"}}}
	inlined := symbolicate.AddressInfo{
		Symbol: symbolicate.Symbol{Address: 0, Name: "foo"},
		Frames: []symbolicate.FrameDebugInfo{
			{Function: "inl_leaf", FilePath: "/src/h.h"},
			{Function: "foo", FilePath: "/src/a.cc"},
		},
	}
	symMap := symbolicatetest.New(
		symbolicatetest.Entry{Start: 0, End: 8, Info: plain},
		symbolicatetest.Entry{Start: 8, End: 9, Info: inlined},
		symbolicatetest.Entry{Start: 9, End: 16, Info: plain},
	)
	ctx := newCtx(prof, symMap)

	sect := objfile.Section{FileOffset: 0, SVMA: 0, Size: 16, Kind: objfile.KindText, Name: ".text"}
	if err := EmitSection(ctx, sect); err != nil {
		t.Fatalf("EmitSection: %v", err)
	}

	if got, want := prof.SampleCount(), 3; got != want {
		t.Fatalf("sample count = %d, want %d", got, want)
	}
	if got, want := prof.TotalWeight(), uint64(16); got != want {
		t.Fatalf("total weight = %d, want %d", got, want)
	}
}

// Scenario 4: unknown region.
func TestEmitSectionUnknownBytes(t *testing.T) {
	prof := profile.New("t")
	symMap := symbolicatetest.New() // empty: every lookup misses
	ctx := newCtx(prof, symMap)

	sect := objfile.Section{FileOffset: 0, SVMA: 0, Size: 8, Kind: objfile.KindText, Name: ".text"}
	if err := EmitSection(ctx, sect); err != nil {
		t.Fatalf("EmitSection: %v", err)
	}

	if got, want := prof.SampleCount(), 1; got != want {
		t.Fatalf("sample count = %d, want %d", got, want)
	}
	if got, want := prof.TotalWeight(), uint64(8); got != want {
		t.Fatalf("total weight = %d, want %d", got, want)
	}
}

// Boundary: a non-text section produces exactly one sample of weight =
// section size.
func TestEmitSectionNonText(t *testing.T) {
	prof := profile.New("t")
	symMap := symbolicatetest.New()
	ctx := newCtx(prof, symMap)

	sect := objfile.Section{FileOffset: 50, SVMA: 0x1000, Size: 64, Kind: objfile.KindData, Name: ".data"}
	if err := EmitSection(ctx, sect); err != nil {
		t.Fatalf("EmitSection: %v", err)
	}
	if got, want := prof.SampleCount(), 1; got != want {
		t.Fatalf("sample count = %d, want %d", got, want)
	}
	if got, want := prof.TotalWeight(), uint64(64); got != want {
		t.Fatalf("total weight = %d, want %d", got, want)
	}
}

// Run-length idempotence: splitting the same section's scan into two halves
// and running each through its own EmitSection call must yield identical
// total byte accounting. Coalescing happens within one EmitSection call
// only, so the whole scan gives one sample and the split scan one per half,
// even though both halves describe the same AddressInfo.
func TestEmitSectionRunLengthIdempotence(t *testing.T) {
	info := symbolicate.AddressInfo{Symbol: symbolicate.Symbol{Address: 0, Name: "foo"}, Frames: []symbolicate.FrameDebugInfo{{Function: "foo", FilePath: "/src/a.cc"}}}
	symMap := symbolicatetest.New(symbolicatetest.Entry{Start: 0, End: 32, Info: info})

	whole := profile.New("t")
	ctxWhole := newCtx(whole, symMap)
	if err := EmitSection(ctxWhole, objfile.Section{FileOffset: 0, SVMA: 0, Size: 32, Kind: objfile.KindText, Name: ".text"}); err != nil {
		t.Fatalf("EmitSection (whole): %v", err)
	}

	halves := profile.New("t")
	ctxHalves := newCtx(halves, symMap)
	if err := EmitSection(ctxHalves, objfile.Section{FileOffset: 0, SVMA: 0, Size: 16, Kind: objfile.KindText, Name: ".text"}); err != nil {
		t.Fatalf("EmitSection (half 1): %v", err)
	}
	if err := EmitSection(ctxHalves, objfile.Section{FileOffset: 16, SVMA: 16, Size: 16, Kind: objfile.KindText, Name: ".text"}); err != nil {
		t.Fatalf("EmitSection (half 2): %v", err)
	}

	if whole.TotalWeight() != halves.TotalWeight() {
		t.Fatalf("byte totals diverged: whole=%d halves=%d", whole.TotalWeight(), halves.TotalWeight())
	}
	if got, want := whole.SampleCount(), 1; got != want {
		t.Fatalf("whole-scan sample count = %d, want %d", got, want)
	}
	if got, want := halves.SampleCount(), 2; got != want {
		t.Fatalf("split-scan sample count = %d, want %d (coalescing happens within each EmitSection call only)", got, want)
	}
}

// Invariant: the post-section file offset must equal
// section.FileOffset+section.Size; a symbol map that is internally
// consistent cannot violate this, so this test only exercises the
// zero-size (empty section) boundary, which EmitSection must handle
// without underflow.
func TestEmitSectionEmptyText(t *testing.T) {
	prof := profile.New("t")
	symMap := symbolicatetest.New()
	ctx := newCtx(prof, symMap)

	sect := objfile.Section{FileOffset: 0, SVMA: 0, Size: 0, Kind: objfile.KindText, Name: ".text"}
	if err := EmitSection(ctx, sect); err != nil {
		t.Fatalf("EmitSection: %v", err)
	}
	if got, want := prof.SampleCount(), 0; got != want {
		t.Fatalf("empty text section should emit no samples, got %d", got)
	}
}
