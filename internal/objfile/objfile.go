// Package objfile implements the Section Extractor and Coordinate Mapper: it
// enumerates the ordered, non-overlapping on-disk sections of an object file
// or one slice of a fat multi-architecture container, and computes the
// relative-address base each slice's addresses are anchored to.
//
// Parsing the container formats themselves is an external collaborator per
// the byte-attribution engine's scope — this package is the thin adapter
// layer over debug/elf, github.com/blacktop/go-macho and
// github.com/saferwall/pe that turns each format's native section table into
// the uniform Section/Member shape the rest of the engine consumes.
package objfile

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"j5.nz/binsizeprof/internal/binsizeerr"
)

// Kind classifies a Section for symbolication and padding purposes.
type Kind int

const (
	KindText Kind = iota
	KindData
	KindReadOnlyData
	KindDebug
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return ".text"
	case KindData:
		return "Data"
	case KindReadOnlyData:
		return "ReadOnlyData"
	case KindDebug:
		return "Debug"
	default:
		return "Other"
	}
}

// Section is an immutable record for one on-disk range of a member.
type Section struct {
	FileOffset   uint64
	SVMA         uint64
	Size         uint64 // on-disk size; the compressed size when IsCompressed
	Kind         Kind
	Name         string
	IsCompressed bool
}

// RelativeRange returns the [start, end) relative-address range symbolicated
// for this section, given the owning member's base address.
func (s Section) RelativeRange(base uint64) (start, end uint64) {
	return s.SVMA - base, s.SVMA + s.Size - base
}

// Member is one architecture slice of a container — the whole file for a
// plain ELF/PE binary, or one slice of a Mach-O fat archive.
type Member struct {
	ArchName      string
	FileOffset    uint64 // member_start_file_offset, absolute within the container
	Size          uint64 // member_size
	Disambiguator string
	BaseAddr      uint64 // relative-address base: relative_address = svma - BaseAddr
	Sections      []Section
}

// File is the parsed result of opening a container: one Member for a plain
// ELF/PE binary, or one-or-more for a Mach-O fat archive. Fat is set for the
// latter even when the archive happens to carry a single architecture
// slice, since that slice's FileOffset/Size still span only part of the
// file (the fat header and fat_arch table precede it) rather than the
// whole container the way a plain binary's one Member does.
type File struct {
	Members []Member
	Fat     bool
}

// NewMember applies the Section Extractor rules of spec §4.1 to a raw,
// unordered, possibly-zero-size section list: it drops zero-size entries,
// sorts by file offset, and rejects overlap.
func NewMember(archName string, fileOffset, size uint64, disambiguator string, baseAddr uint64, raw []Section) (Member, error) {
	kept := make([]Section, 0, len(raw))
	for _, s := range raw {
		if s.Size == 0 {
			continue
		}
		kept = append(kept, s)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].FileOffset < kept[j].FileOffset })
	for i := 1; i < len(kept); i++ {
		prev, cur := kept[i-1], kept[i]
		if cur.FileOffset < prev.FileOffset+prev.Size {
			return Member{}, errors.Wrapf(binsizeerr.ErrOverlappingSections,
				"section %q [%d,%d) overlaps %q [%d,%d)",
				prev.Name, prev.FileOffset, prev.FileOffset+prev.Size,
				cur.Name, cur.FileOffset, cur.FileOffset+cur.Size)
		}
	}
	return Member{
		ArchName:      archName,
		FileOffset:    fileOffset,
		Size:          size,
		Disambiguator: disambiguator,
		BaseAddr:      baseAddr,
		Sections:      kept,
	}, nil
}

// Open sniffs the container format from its magic bytes and dispatches to
// the matching format adapter. The returned File's single Member (non-fat
// formats) has its Size set to the whole file's length.
func Open(path string) (*File, error) {
	magic, size, err := readMagic(path)
	if err != nil {
		return nil, errors.Wrap(err, "objfile: read magic")
	}
	var file *File
	switch {
	case bytes.HasPrefix(magic, elfMagic):
		file, err = openELF(path)
	case isMachOMagic(magic):
		file, err = openMachO(path)
	case bytes.HasPrefix(magic, peMagic):
		file, err = openPE(path)
	default:
		return nil, errors.Wrapf(binsizeerr.ErrMalformedContainer, "%s: unrecognized file kind", path)
	}
	if err != nil {
		return nil, err
	}
	if len(file.Members) == 1 && file.Members[0].Size == 0 {
		file.Members[0].Size = size
	}
	return file, nil
}

var (
	elfMagic = []byte{0x7f, 'E', 'L', 'F'}
	peMagic  = []byte{'M', 'Z'}
)

// Mach-O and Mach-O fat magics, both byte orders (32/64-bit).
var machoMagics = [][]byte{
	{0xfe, 0xed, 0xfa, 0xce}, // MH_MAGIC
	{0xce, 0xfa, 0xed, 0xfe}, // MH_CIGAM
	{0xfe, 0xed, 0xfa, 0xcf}, // MH_MAGIC_64
	{0xcf, 0xfa, 0xed, 0xfe}, // MH_CIGAM_64
	{0xca, 0xfe, 0xba, 0xbe}, // FAT_MAGIC
	{0xbe, 0xba, 0xfe, 0xca}, // FAT_CIGAM
}

func isMachOMagic(magic []byte) bool {
	for _, m := range machoMagics {
		if bytes.HasPrefix(magic, m) {
			return true
		}
	}
	return false
}
