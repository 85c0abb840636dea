package objfile

import (
	"fmt"
	"strings"

	macho "github.com/blacktop/go-macho"
	"github.com/pkg/errors"

	"j5.nz/binsizeprof/internal/binsizeerr"
)

// openMachO adapts github.com/blacktop/go-macho into one or more
// objfile.Members. A plain Mach-O becomes a single Member; a Mach-O fat
// archive becomes one Member per architecture slice, ordered by
// member_start_file_offset as spec §3 requires for FatMember.
func openMachO(path string) (*File, error) {
	if fat, err := macho.OpenFat(path); err == nil {
		defer fat.Close()
		return fatMachOFile(fat)
	}

	f, err := macho.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "macho: open")
	}
	defer f.Close()

	member, err := machoMember(f, "", 0, 0)
	if err != nil {
		return nil, err
	}
	return &File{Members: []Member{member}}, nil
}

func fatMachOFile(fat *macho.FatFile) (*File, error) {
	members := make([]Member, 0, len(fat.Arches))
	var prevEnd uint64
	for i, arch := range fat.Arches {
		start := uint64(arch.Offset)
		size := uint64(arch.Size)
		if i > 0 && start < prevEnd {
			return nil, errors.Wrapf(binsizeerr.ErrOverlappingSections,
				"fat member %d starts at %d, before previous member ends at %d", i, start, prevEnd)
		}
		archName := arch.CPU.String()
		if archName == "" {
			archName = fmt.Sprintf("Fat32 archive member with cputype %d and cpusubtype %d", arch.CPU, arch.SubCPU)
		}
		member, err := machoMember(arch.File, archName, start, size)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
		prevEnd = start + size
	}
	return &File{Members: members, Fat: true}, nil
}

func machoMember(f *macho.File, archName string, fileOffset, size uint64) (Member, error) {
	if archName == "" {
		archName = f.CPU.String()
	}

	var baseAddr uint64
	if text := f.Segment("__TEXT"); text != nil {
		baseAddr = text.Addr - text.Offset
	}

	raw := make([]Section, 0, len(f.Sections))
	for _, sect := range f.Sections {
		raw = append(raw, Section{
			FileOffset:   uint64(sect.Offset),
			SVMA:         sect.Addr,
			Size:         sect.Size,
			Kind:         machoSectionKind(sect.Seg, sect.Name),
			Name:         sect.Seg + "," + sect.Name,
			IsCompressed: false,
		})
	}

	return NewMember(archName, fileOffset, size, "", baseAddr, raw)
}

func machoSectionKind(seg, name string) Kind {
	switch {
	case seg == "__TEXT" && name == "__text":
		return KindText
	case strings.HasPrefix(seg, "__DWARF"):
		return KindDebug
	case seg == "__DATA" || seg == "__DATA_CONST":
		return KindData
	case seg == "__TEXT":
		return KindReadOnlyData
	default:
		return KindOther
	}
}
