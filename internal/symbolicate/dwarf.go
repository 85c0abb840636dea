package symbolicate

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"path/filepath"
	"sort"
)

// dwarfService is the default, best-effort Service implementation: it reads
// a binary's own ELF symbol table and DWARF debug info to answer Lookup
// queries. It is deliberately thin — the engine's own tests run against a
// fake SymbolMap, never against this adapter — and it supports ELF only;
// Mach-O and PE binaries (which carry line tables via dSYM bundles or PDBs
// respectively, not inline DWARF) get a SymbolMap that always misses, which
// the engine treats as "no AddressInfo" per spec §7, not as an error.
type dwarfService struct{}

// NewDWARFService returns the default symbolication Service, grounded on
// debug/dwarf + debug/elf.
func NewDWARFService() Service {
	return dwarfService{}
}

func (dwarfService) LibraryInfoForBinaryAtPath(path, disambiguator string) (LibraryInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		// Not an ELF we can introspect; still report identity fields from
		// the path alone so the caller can proceed with unknown-bytes
		// attribution rather than failing outright.
		name := filepath.Base(path)
		debugID := disambiguator
		if debugID == "" {
			debugID = name
		}
		return LibraryInfo{
			Name:      name,
			DebugName: name,
			Path:      path,
			DebugPath: path,
			DebugID:   debugID,
		}, nil
	}
	defer f.Close()

	debugID := f.Machine.String()
	if disambiguator != "" {
		debugID = debugID + "/" + disambiguator
	}
	name := filepath.Base(path)
	return LibraryInfo{
		Name:      name,
		DebugName: name,
		Path:      path,
		DebugPath: path,
		DebugID:   debugID,
		Arch:      f.Machine.String(),
	}, nil
}

func (dwarfService) LoadSymbolMapForBinaryAtPath(path, disambiguator string) (SymbolMap, error) {
	f, err := elf.Open(path)
	if err != nil {
		return emptySymbolMap{}, nil
	}
	defer f.Close()

	base := elfBaseAddrFor(f)

	var syms []Symbol
	if raw, err := f.Symbols(); err == nil {
		for _, s := range raw {
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
				continue
			}
			syms = append(syms, Symbol{Address: s.Value, Size: s.Size, Name: s.Name})
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i].Address < syms[j].Address })
	// A zero st_size takes its size from the next symbol's address; a
	// trailing zero-size symbol keeps size 0 and never matches a lookup.
	for i := range syms {
		if syms[i].Size == 0 && i+1 < len(syms) {
			syms[i].Size = syms[i+1].Address - syms[i].Address
		}
	}

	data, err := f.DWARF()
	if err != nil {
		// No debug info: fall back to a symbol-table-only map (frames
		// absent, per spec §4.4 step 3's "if frames is absent" case).
		return &symtabOnlyMap{symbols: syms, base: base}, nil
	}

	return &dwarfSymbolMap{symbols: syms, data: data, base: base}, nil
}

func elfBaseAddrFor(f *elf.File) uint64 {
	var base uint64
	first := true
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		anchor := prog.Vaddr - prog.Off
		if first || anchor < base {
			base = anchor
			first = false
		}
	}
	return base
}

type emptySymbolMap struct{}

func (emptySymbolMap) Lookup(uint32) (AddressInfo, bool) { return AddressInfo{}, false }

// symtabOnlyMap answers from the ELF symbol table alone, with no inline
// frame information.
type symtabOnlyMap struct {
	symbols []Symbol
	base    uint64
}

func (m *symtabOnlyMap) Lookup(relativeAddress uint32) (AddressInfo, bool) {
	abs := uint64(relativeAddress) + m.base
	sym, ok := findSymbol(m.symbols, abs)
	if !ok {
		return AddressInfo{}, false
	}
	return AddressInfo{Symbol: sym}, true
}

func findSymbol(symbols []Symbol, addr uint64) (Symbol, bool) {
	i := sort.Search(len(symbols), func(i int) bool { return symbols[i].Address > addr })
	if i == 0 {
		return Symbol{}, false
	}
	sym := symbols[i-1]
	if addr >= sym.Address+sym.Size {
		return Symbol{}, false
	}
	return sym, true
}

// dwarfSymbolMap walks the DWARF compile-unit tree to recover the innermost-
// first inline-frame chain for an address, falling back to the symbol table
// alone when an address has no DW_TAG_subprogram covering it.
type dwarfSymbolMap struct {
	symbols []Symbol
	data    *dwarf.Data
	base    uint64

	built bool
	units []subprogram
}

// subprogram is a flattened DW_TAG_subprogram or DW_TAG_inlined_subroutine
// entry with its covering PC range, used to answer Lookup without
// re-walking the DWARF tree on every call.
type subprogram struct {
	lowPC, highPC uint64
	name          string
	file          string
	line          uint32
	depth         int // 0 = outermost on-disk function
	parent        int // index into units, -1 for none
}

func (m *dwarfSymbolMap) Lookup(relativeAddress uint32) (AddressInfo, bool) {
	if !m.built {
		m.build()
		m.built = true
	}
	abs := uint64(relativeAddress) + m.base

	sym, haveSym := findSymbol(m.symbols, abs)

	leaf := -1
	for i := range m.units {
		u := m.units[i]
		if abs >= u.lowPC && abs < u.highPC {
			if leaf == -1 || m.units[i].depth > m.units[leaf].depth {
				leaf = i
			}
		}
	}
	if leaf == -1 {
		if !haveSym {
			return AddressInfo{}, false
		}
		return AddressInfo{Symbol: sym}, true
	}

	var frames []FrameDebugInfo
	for idx := leaf; idx != -1; idx = m.units[idx].parent {
		u := m.units[idx]
		frames = append(frames, FrameDebugInfo{Function: u.name, FilePath: u.file, LineNumber: u.line})
	}
	if !haveSym {
		sym = Symbol{Address: m.units[leaf].lowPC, Name: m.units[leaf].name}
	}
	return AddressInfo{Symbol: sym, Frames: frames}, true
}

// build walks every compile unit once, flattening DW_TAG_subprogram and
// nested DW_TAG_inlined_subroutine entries into m.units.
func (m *dwarfSymbolMap) build() {
	r := m.data.Reader()
	// origins walks DW_AT_abstract_origin/DW_AT_specification chains with a
	// reader of its own, so seeking it to resolve a name never disturbs r's
	// position in the main tree walk.
	origins := m.data.Reader()
	// scopeStack mirrors the DWARF tree's nesting: scopeStack[i] is the
	// units index pushed by the entry at depth i, or -1 for a non-subprogram
	// scope (e.g. a lexical block). A null entry closes the innermost scope.
	var scopeStack []int
	// cu is the compile unit currently being walked; its line table is the
	// one LineReader can open.
	var cu *dwarf.Entry
	for {
		entry, err := r.Next()
		if err != nil {
			break
		}
		if entry == nil {
			break
		}
		if entry.Tag == dwarf.TagCompileUnit {
			cu = entry
		}
		if entry.Tag == 0 {
			if len(scopeStack) > 0 {
				scopeStack = scopeStack[:len(scopeStack)-1]
			}
			continue
		}

		unitsIdx := -1
		if entry.Tag == dwarf.TagSubprogram || entry.Tag == dwarf.TagInlinedSubroutine {
			if low, high, ok := entryPCRange(entry); ok {
				parent := -1
				for i := len(scopeStack) - 1; i >= 0; i-- {
					if scopeStack[i] != -1 {
						parent = scopeStack[i]
						break
					}
				}
				depth := 0
				if parent != -1 {
					depth = m.units[parent].depth + 1
				}
				name, _ := entry.Val(dwarf.AttrName).(string)
				if name == "" {
					name = resolveAbstractOriginName(origins, entry)
				}
				if name == "" {
					name = fmt.Sprintf("unnamed_%x", low)
				}
				file, line := m.lineFor(cu, low)
				m.units = append(m.units, subprogram{
					lowPC: low, highPC: high, name: name, file: file, line: line,
					depth: depth, parent: parent,
				})
				unitsIdx = len(m.units) - 1
			}
		}

		if entry.Children {
			scopeStack = append(scopeStack, unitsIdx)
		}
	}
}

// resolveAbstractOriginName follows an entry's DW_AT_abstract_origin (and,
// failing that, DW_AT_specification) reference chain to recover its name.
// A DW_TAG_inlined_subroutine (and, less commonly, an out-of-line
// DW_TAG_subprogram) carries no DW_AT_name of its own — gcc/clang/Go all
// emit the real name only on the DW_TAG_subprogram the reference points at.
// r is seeked and read independently of the caller's own tree-walking
// reader.
func resolveAbstractOriginName(r *dwarf.Reader, entry *dwarf.Entry) string {
	off, ok := originOffset(entry)
	if !ok {
		return ""
	}
	// Bound the walk: well-formed DWARF never chains more than a couple of
	// hops, and a bound avoids looping forever on a malformed reference.
	for hop := 0; hop < 8; hop++ {
		r.Seek(off)
		origin, err := r.Next()
		if err != nil || origin == nil {
			return ""
		}
		if name, ok := origin.Val(dwarf.AttrName).(string); ok && name != "" {
			return name
		}
		next, ok := originOffset(origin)
		if !ok {
			return ""
		}
		off = next
	}
	return ""
}

func originOffset(entry *dwarf.Entry) (dwarf.Offset, bool) {
	if off, ok := entry.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset); ok {
		return off, true
	}
	if off, ok := entry.Val(dwarf.AttrSpecification).(dwarf.Offset); ok {
		return off, true
	}
	return 0, false
}

func entryPCRange(entry *dwarf.Entry) (low, high uint64, ok bool) {
	lowVal := entry.Val(dwarf.AttrLowpc)
	low, ok = lowVal.(uint64)
	if !ok {
		return 0, 0, false
	}
	switch h := entry.Val(dwarf.AttrHighpc).(type) {
	case uint64:
		// Some producers encode a relative offset rather than an absolute
		// address here; treat values smaller than low as an offset.
		if h < low {
			return low, low + h, true
		}
		return low, h, true
	case int64:
		return low, low + uint64(h), true
	default:
		return 0, 0, false
	}
}

// lineFor looks pc up in the line table of the compile unit cu and returns
// the file and line of the row starting exactly at pc, or ("", 0).
func (m *dwarfSymbolMap) lineFor(cu *dwarf.Entry, pc uint64) (file string, line uint32) {
	if cu == nil {
		return "", 0
	}
	lr, err := m.data.LineReader(cu)
	if err != nil || lr == nil {
		return "", 0
	}
	var le dwarf.LineEntry
	for {
		if err := lr.Next(&le); err != nil {
			break
		}
		if le.Address == pc && le.File != nil {
			return le.File.Name, uint32(le.Line)
		}
	}
	return "", 0
}
