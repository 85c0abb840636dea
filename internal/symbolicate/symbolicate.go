// Package symbolicate defines the external symbolication service contract
// (spec §6): the byte-attribution engine is written against this interface
// only, so it can be tested with a fake SymbolMap and wired in production to
// any implementation — the default being internal/symbolicate's own DWARF
// adapter in dwarf.go.
package symbolicate

// LibraryInfo identifies a binary the way a symbol server would: by name,
// debug name, on-disk path, debug-info path, and a stable debug ID. All five
// fields are required for a valid binary (§7: missing any one is fatal).
type LibraryInfo struct {
	Name      string
	DebugName string
	Path      string
	DebugPath string
	DebugID   string
	CodeID    string // optional
	Arch      string // optional
}

// Missing reports which required LibraryInfo fields are empty, for the
// caller to turn into a fatal binsizeerr.ErrMissingLibraryInfo.
func (l LibraryInfo) Missing() []string {
	var missing []string
	if l.Name == "" {
		missing = append(missing, "name")
	}
	if l.DebugName == "" {
		missing = append(missing, "debug_name")
	}
	if l.Path == "" {
		missing = append(missing, "path")
	}
	if l.DebugPath == "" {
		missing = append(missing, "debug_path")
	}
	if l.DebugID == "" {
		missing = append(missing, "debug_id")
	}
	return missing
}

// Symbol is the resolved on-disk function (or data object) an address falls
// inside.
type Symbol struct {
	Address uint64
	Size    uint64
	Name    string
}

// FrameDebugInfo is one entry of an AddressInfo's innermost-first frame
// list: either the leaf inlinee or, as the last entry, the enclosing
// on-disk function.
type FrameDebugInfo struct {
	Function   string // optional, "" means absent
	FilePath   string // optional, display_path()-equivalent, "" means absent
	LineNumber uint32 // optional, 0 means absent
}

// AddressInfo is the symbolication result for one relative address. Two
// AddressInfo values that compare equal by Go's == on their expanded form
// (see Equal) must resolve to the same Stack — this is the engine's
// run-length coalescing contract (spec §4.5 and the "Stack identity"
// property of §8).
type AddressInfo struct {
	Symbol Symbol
	Frames []FrameDebugInfo // innermost-first; nil means absent
}

// Equal reports whether two AddressInfo values are equal by content,
// including their Frames slices. AddressInfo is not comparable with == in
// Go because it embeds a slice.
func (a AddressInfo) Equal(b AddressInfo) bool {
	if a.Symbol != b.Symbol {
		return false
	}
	if len(a.Frames) != len(b.Frames) {
		return false
	}
	for i := range a.Frames {
		if a.Frames[i] != b.Frames[i] {
			return false
		}
	}
	return true
}

// SymbolMap resolves a relative address (relative to a Member's base
// address, spec §4.2) to an AddressInfo.
type SymbolMap interface {
	Lookup(relativeAddress uint32) (AddressInfo, bool)
}

// Service is the full symbolication service contract of spec §6.
type Service interface {
	LibraryInfoForBinaryAtPath(path, disambiguator string) (LibraryInfo, error)
	LoadSymbolMapForBinaryAtPath(path, disambiguator string) (SymbolMap, error)
}
