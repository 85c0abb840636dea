package objfile

import (
	"strings"

	peparser "github.com/saferwall/pe"

	"github.com/pkg/errors"
)

// openPE adapts github.com/saferwall/pe into a single-member objfile.File.
// PE has no fat container concept, so the result always has exactly one
// Member.
//
// The relative-address base is the image base: PE symbolication (PDB RVAs)
// already addresses code as offsets from ImageBase, so
// relative_address = svma - ImageBase reduces to the section's
// VirtualAddress directly, independent of on-disk layout.
func openPE(path string) (*File, error) {
	f, err := peparser.New(path, &peparser.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "pe: open")
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return nil, errors.Wrap(err, "pe: parse")
	}

	baseAddr := peImageBase(f)

	raw := make([]Section, 0, len(f.Sections))
	for _, sect := range f.Sections {
		hdr := sect.Header
		name := strings.TrimRight(string(hdr.Name[:]), "\x00")
		raw = append(raw, Section{
			FileOffset:   uint64(hdr.PointerToRawData),
			SVMA:         baseAddr + uint64(hdr.VirtualAddress),
			Size:         uint64(hdr.SizeOfRawData),
			Kind:         peSectionKind(hdr.Characteristics, name),
			Name:         name,
			IsCompressed: false,
		})
	}

	member, err := NewMember(peMachineName(f), 0, 0, "", baseAddr, raw)
	if err != nil {
		return nil, err
	}
	return &File{Members: []Member{member}}, nil
}

func peImageBase(f *peparser.File) uint64 {
	if f.Is64 {
		if oh, ok := f.NtHeader.OptionalHeader.(peparser.ImageOptionalHeader64); ok {
			return oh.ImageBase
		}
		return 0
	}
	if oh, ok := f.NtHeader.OptionalHeader.(peparser.ImageOptionalHeader32); ok {
		return uint64(oh.ImageBase)
	}
	return 0
}

func peMachineName(f *peparser.File) string {
	if f.Is64 {
		return "x86_64"
	}
	return "x86"
}

const (
	imageScnCntCode            = 0x00000020
	imageScnCntInitializedData = 0x00000040
	imageScnMemWrite           = 0x80000000
	imageScnMemExecute         = 0x20000000
)

func peSectionKind(characteristics uint32, name string) Kind {
	switch {
	case characteristics&imageScnCntCode != 0 || characteristics&imageScnMemExecute != 0:
		return KindText
	case strings.HasPrefix(name, ".debug"):
		return KindDebug
	case characteristics&imageScnMemWrite != 0:
		return KindData
	case characteristics&imageScnCntInitializedData != 0:
		return KindReadOnlyData
	default:
		return KindOther
	}
}
