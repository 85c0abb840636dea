// Package symbolicatetest provides a fake symbolicate.SymbolMap backed by a
// plain slice of address ranges, used by internal/sampler and
// internal/driver's tests so those packages never need
// to exercise a real object file or DWARF reader to test the
// byte-attribution engine itself.
package symbolicatetest

import (
	"sort"

	"j5.nz/binsizeprof/internal/symbolicate"
)

// Entry maps one half-open relative-address range to an AddressInfo.
type Entry struct {
	Start, End uint64 // [Start, End)
	Info       symbolicate.AddressInfo
}

// Map is a fake symbolicate.SymbolMap over a fixed list of Entry ranges.
type Map struct {
	entries []Entry
}

// New builds a Map from entries. Entries need not be pre-sorted.
func New(entries ...Entry) *Map {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return &Map{entries: sorted}
}

// Lookup implements symbolicate.SymbolMap.
func (m *Map) Lookup(relativeAddress uint32) (symbolicate.AddressInfo, bool) {
	addr := uint64(relativeAddress)
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].End > addr })
	if i == len(m.entries) {
		return symbolicate.AddressInfo{}, false
	}
	e := m.entries[i]
	if addr < e.Start || addr >= e.End {
		return symbolicate.AddressInfo{}, false
	}
	return e.Info, true
}

// Service is a fake symbolicate.Service that always returns the given
// LibraryInfo and SymbolMap, regardless of path/disambiguator.
type Service struct {
	Info      symbolicate.LibraryInfo
	SymbolMap symbolicate.SymbolMap
}

func (s Service) LibraryInfoForBinaryAtPath(string, string) (symbolicate.LibraryInfo, error) {
	return s.Info, nil
}

func (s Service) LoadSymbolMapForBinaryAtPath(string, string) (symbolicate.SymbolMap, error) {
	return s.SymbolMap, nil
}
