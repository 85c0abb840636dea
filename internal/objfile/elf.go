package objfile

import (
	"debug/elf"

	"github.com/pkg/errors"
)

// openELF adapts debug/elf into a single-member objfile.File. ELF has no fat
// container concept, so the result always has exactly one Member.
//
// The relative-address base is the standard breakpad/samply anchor: the
// smallest (p_vaddr - p_offset) across all PT_LOAD segments. For PIE
// executables and shared libraries this is usually 0; for non-PIE
// executables linked at a fixed address (e.g. 0x400000) it is that address,
// so relative addresses count from the start of the mapped image. The
// default symbolication adapter adds the same base back before comparing
// against DWARF/symtab addresses.
func openELF(path string) (*File, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "elf: open")
	}
	defer f.Close()

	baseAddr := elfBaseAddr(f)

	raw := make([]Section, 0, len(f.Sections))
	for _, sect := range f.Sections {
		if sect.Type == elf.SHT_NOBITS {
			// .bss and friends occupy no file bytes at all.
			continue
		}
		// sh_size is the on-disk size for SHF_COMPRESSED sections per the
		// ELF spec (the decompressed size lives in the section's Elf_Chdr,
		// not sh_size); debug/elf keeps sh_size in FileSize and puts the
		// decompressed size in Size, so FileSize is exactly the on-disk
		// byte count we want to attribute.
		raw = append(raw, Section{
			FileOffset:   sect.Offset,
			SVMA:         sect.Addr,
			Size:         sect.FileSize,
			Kind:         elfSectionKind(sect),
			Name:         sect.Name,
			IsCompressed: sect.Flags&elf.SHF_COMPRESSED != 0,
		})
	}

	member, err := NewMember(f.Machine.String(), 0, 0 /* filled in by objfile.Open via stat */, "", baseAddr, raw)
	if err != nil {
		return nil, err
	}
	return &File{Members: []Member{member}}, nil
}

func elfBaseAddr(f *elf.File) uint64 {
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

func elfSectionKind(sect *elf.Section) Kind {
	switch {
	case sect.Flags&elf.SHF_EXECINSTR != 0:
		return KindText
	case len(sect.Name) >= 6 && sect.Name[:6] == ".debug":
		return KindDebug
	case sect.Flags&elf.SHF_WRITE != 0:
		return KindData
	case sect.Type == elf.SHT_PROGBITS:
		return KindReadOnlyData
	default:
		return KindOther
	}
}
